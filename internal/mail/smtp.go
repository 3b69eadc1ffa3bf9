package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
)

// SMTPConfig holds the connection settings of the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers mail through an SMTP server with jordan-wright/email,
// which builds the multipart/alternative body (text + HTML) for us.
type SMTPSender struct {
	from string
	addr string
	auth smtp.Auth
	send func(e *email.Email, addr string, a smtp.Auth) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		from: cfg.From,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth: auth,
		send: func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
}

// Send delivers msg. The email library has no context support, so the send
// runs in its own goroutine and Send returns early when ctx is done; the
// SMTP conversation itself is then abandoned to finish or fail on its own.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	e := email.NewEmail()
	e.From = s.from
	e.To = msg.To
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	e.HTML = []byte(msg.HTML)
	if msg.ReplyTo != "" {
		e.ReplyTo = []string{msg.ReplyTo}
	}

	errc := make(chan error, 1)
	go func() { errc <- s.send(e, s.addr, s.auth) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("mail: sending %q via %s: %w", msg.Subject, s.addr, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail: sending %q: %w", msg.Subject, ctx.Err())
	}
}
