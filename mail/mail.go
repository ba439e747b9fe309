// Package mail delivers one time codes and other notices, directly over SMTP
// or through a Kafka topic drained by the mailer binary.
package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/emotionlab/go-enrollment"
)

// Message is the queued form of a single mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers one message. It satisfies enrollment.Mailer.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

var (
	_ enrollment.Mailer = (*SMTPSender)(nil)
	_ enrollment.Mailer = (*QueueSender)(nil)
	_ enrollment.Mailer = (*ThrottledSender)(nil)
	_ enrollment.Mailer = LogSender{}
)

// LogSender writes mail to the logger instead of delivering it.
type LogSender struct {
	Logger enrollment.Logger
}

func (l LogSender) Send(ctx context.Context, to, subject, body string) error {
	l.logger().Info("mail", "to", to, "subject", subject, "body", body)
	return nil
}

func formatAddress(name, addr string) string {
	if strings.TrimSpace(name) == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

type printLogger struct{}

func (printLogger) Debug(format string, args ...any) { printLine("DBG", format, args) }
func (printLogger) Info(format string, args ...any)  { printLine("INF", format, args) }
func (printLogger) Warn(format string, args ...any)  { printLine("WRN", format, args) }
func (printLogger) Error(format string, args ...any) { printLine("ERR", format, args) }

func printLine(level, msg string, args []any) {
	fmt.Printf("[%s] MAIL %s", level, msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Printf(" %v=%v", args[i], args[i+1])
	}
	fmt.Println()
}

func (l LogSender) logger() enrollment.Logger {
	if l.Logger == nil {
		return printLogger{}
	}
	return l.Logger
}
