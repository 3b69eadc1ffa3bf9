package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/mail"
	"github.com/sakif/snippetshare/internal/model"
)

// PASSWORD RESET FLOW:
//
//	1. POST /auth/password-reset          RequestPasswordReset
//	   → store sha256(secret), email a link containing the secret
//	2. POST /auth/password-reset/validate ValidateResetToken
//	   → lets the frontend show "link expired" before the user types
//	3. POST /auth/password-reset/confirm  ConfirmPasswordReset
//	   → set the password, delete every pending token for the user
//
// The secret never touches the database, so a leaked table cannot be used
// to take over accounts.

const noActiveUserMessage = "There is no active user associated with this e-mail address or the password can not be changed"

// ResetRequestInput is the body of POST /auth/password-reset plus the
// client details recorded with the token.
type ResetRequestInput struct {
	Email     string
	IPAddress string
	UserAgent string
}

// RequestPasswordReset creates a reset token for an active account and
// queues the email with the reset link.
func (s *AuthService) RequestPasswordReset(ctx context.Context, in ResetRequestInput) error {
	email := normalizeEmail(in.Email)
	if email == "" {
		return apperror.ValidationFailed("email", "This field is required.")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("email", noActiveUserMessage)
		}
		return fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if !user.IsActive {
		return apperror.ValidationFailed("email", noActiveUserMessage)
	}

	secret, hash, err := auth.NewResetSecret()
	if err != nil {
		return fmt.Errorf("service/auth: generating reset secret: %w", err)
	}

	now := s.now().UTC()
	token := &model.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hash,
		IPAddress: in.IPAddress,
		UserAgent: truncate(in.UserAgent, 500),
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return fmt.Errorf("service/auth: storing reset token: %w", err)
	}

	s.metrics.PasswordReset("requested")
	s.logger.Info("password reset requested",
		slog.String("userID", user.ID),
		slog.String("ip", in.IPAddress),
	)

	msg, err := s.renderer.PasswordReset(user.Email, mail.ResetRequest{
		Username:  user.Username,
		ResetURL:  s.resetURL(secret),
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		ExpiresIn: s.resetTTL,
	})
	if err != nil {
		s.logger.Error("rendering password reset email",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	s.mail.Enqueue(msg)
	return nil
}

func (s *AuthService) resetURL(secret string) string {
	return s.renderer.FrontendURL() + "/reset-password?token=" + url.QueryEscape(secret)
}

// ValidateResetToken reports whether secret names a live reset token.
// An expired token is deleted on sight.
func (s *AuthService) ValidateResetToken(ctx context.Context, secret string) error {
	_, err := s.lookupResetToken(ctx, secret)
	return err
}

func errTokenRequired() error {
	return apperror.ValidationFailed("token", "Token is required")
}

func (s *AuthService) lookupResetToken(ctx context.Context, secret string) (*model.PasswordResetToken, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errTokenRequired()
	}

	invalid := apperror.ValidationFailed("token", "Invalid or expired token")

	token, err := s.resets.GetByHash(ctx, auth.HashResetSecret(secret))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: looking up reset token: %w", err)
	}

	if token.Expired(s.now()) {
		if err := s.resets.Delete(ctx, token.ID); err != nil {
			s.logger.Warn("deleting expired reset token",
				slog.String("tokenID", token.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, invalid
	}
	return token, nil
}

// ConfirmResetInput is the body of POST /auth/password-reset/confirm.
type ConfirmResetInput struct {
	Token     string `json:"token"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// ConfirmPasswordReset sets a new password using a reset token. Every
// pending token of the user is consumed, not just the one used.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, in ConfirmResetInput) error {
	// A missing token is reported on its own, before any password problem.
	if strings.TrimSpace(in.Token) == "" {
		return errTokenRequired()
	}

	errs := apperror.FieldErrors{}
	if in.Password == "" {
		errs.Add("password", "This field is required.")
	}
	if in.Password2 == "" {
		errs.Add("password2", "This field is required.")
	}
	if in.Password != "" && in.Password2 != "" && in.Password != in.Password2 {
		errs.Add("password", "Password fields didn't match.")
	}
	if err := errs.Err(); err != nil {
		return err
	}

	token, err := s.lookupResetToken(ctx, in.Token)
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("token", "Invalid or expired token")
		}
		return fmt.Errorf("service/auth: loading user %s: %w", token.UserID, err)
	}

	if problems := auth.CheckStrength(in.Password, user.Username, user.Email); len(problems) > 0 {
		return apperror.ValidationFields(map[string][]string{"password": problems})
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.users.SetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("service/auth: setting password for %s: %w", user.ID, err)
	}
	if err := s.resets.DeleteForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("service/auth: consuming reset tokens: %w", err)
	}

	s.metrics.PasswordReset("completed")
	s.logger.Info("password reset completed", slog.String("userID", user.ID))

	msg, err := s.renderer.PasswordResetConfirmation(user.Email, user.Username, s.now())
	if err != nil {
		s.logger.Error("rendering reset confirmation email",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	s.mail.Enqueue(msg)
	return nil
}
