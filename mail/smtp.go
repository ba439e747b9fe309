package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPOptions configures an SMTP relay reached with STARTTLS.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

type SMTPSender struct {
	opts SMTPOptions
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewSMTPSender(opts SMTPOptions) *SMTPSender {
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.From == "" {
		opts.From = opts.Username
	}
	d := &net.Dialer{Timeout: 8 * time.Second}
	return &SMTPSender{opts: opts, dial: d.DialContext}
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := buildMessage(formatAddress(s.opts.FromName, s.opts.From), to, subject, body)

	if err := s.deliver(ctx, to, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed").
			WithMetadata(map[string]any{"to": to, "relay": s.addr()})
	}
	return nil
}

func (s *SMTPSender) deliver(ctx context.Context, to string, msg []byte) error {
	conn, err := s.dial(ctx, "tcp", s.addr())
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(s.opts.Timeout))

	c, err := smtp.NewClient(conn, s.opts.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.opts.Host}); err != nil {
			return err
		}
	}

	if s.opts.Username != "" {
		auth := smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(s.opts.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n"))
}
