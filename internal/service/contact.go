package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippetshare/internal/mail"
	"github.com/sakif/snippetshare/internal/validate"
)

// ContactService forwards contact-form messages to the site's inbox.
//
// Unlike the account emails, this one is sent synchronously: the visitor
// is told "sent" only once the SMTP server accepted it.
type ContactService struct {
	renderer *mail.Renderer
	sender   mail.Sender
	to       string
	logger   *slog.Logger
}

func NewContactService(renderer *mail.Renderer, sender mail.Sender, to string, logger *slog.Logger) *ContactService {
	return &ContactService{renderer: renderer, sender: sender, to: to, logger: logger}
}

// ContactInput is the body of POST /contact.
type ContactInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required"`
}

// Submit validates the form and emails it to the configured inbox with
// Reply-To set to the visitor.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	if err := validate.Struct(in); err != nil {
		return err
	}

	msg, err := s.renderer.Contact(s.to, mail.ContactForm{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	})
	if err != nil {
		return fmt.Errorf("service/contact: rendering: %w", err)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error("sending contact message",
			slog.String("from", in.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/contact: sending: %w", err)
	}

	s.logger.Info("contact message sent", slog.String("from", in.Email))
	return nil
}
