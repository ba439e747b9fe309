package enrollment

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Logger is satisfied by glog loggers and by defLogger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the options consumed by the package
type Config interface {
	GetAdminUsername() string
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetSessionCookie() string
	GetSessionTTL() time.Duration
	GetTokenCookie() string
	GetOTPTTL() time.Duration
	GetMinPasswordLength() int
	GetSecureCookies() bool
	GetPhoneRegion() string
}

// Mailer delivers a message out of band. Callers treat failures as log-only.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, to, subject, body string) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, to, subject, body string) error {
	if f == nil {
		return nil
	}
	return f(ctx, to, subject, body)
}

// ImageStore persists uploaded files and returns durable references.
type ImageStore interface {
	Put(ctx context.Context, filename string, r io.Reader) (Image, error)
	Delete(ctx context.Context, filename string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] ENROLLMENT " + render(format, args))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] ENROLLMENT " + render(format, args))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] ENROLLMENT " + render(format, args))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] ENROLLMENT " + render(format, args))
}

// render accepts both printf style calls and glog style key/value pairs.
func render(format string, args []any) string {
	if len(args) == 0 {
		return newline(format)
	}
	if strings.Contains(format, "%") {
		return newline(fmt.Sprintf(format, args...))
	}
	var b strings.Builder
	b.WriteString(format)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
