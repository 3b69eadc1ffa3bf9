// Package mail renders the outbound emails and delivers them.
//
// The pieces:
//
//	Renderer   → turns a template + data into a Message (HTML and plain text)
//	Sender     → delivers one Message (SMTP, or a logger in development)
//	Dispatcher → queues Messages and sends them from background workers
//
// Handlers never wait on SMTP for notifications: the services enqueue and
// move on, and a send failure is logged instead of failing the request.
package mail

import (
	"context"
	"log/slog"
	"strings"
)

// Message is a fully rendered email.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender "delivers" mail by logging it. It is used when no SMTP host is
// configured so development setups work without a mail server.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (not sent, no SMTP host configured)",
		slog.String("to", strings.Join(msg.To, ", ")),
		slog.String("subject", msg.Subject),
	)
	s.logger.Debug("email body", slog.String("text", msg.Text))
	return nil
}
