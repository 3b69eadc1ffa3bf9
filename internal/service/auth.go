package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/mail"
	"github.com/sakif/snippetshare/internal/metrics"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/repository"
	"github.com/sakif/snippetshare/internal/validate"
)

// DefaultResetTokenTTL is how long a password-reset link stays valid.
const DefaultResetTokenTTL = 24 * time.Hour

// AuthDeps groups AuthService's collaborators. Everything except Metrics is
// required.
type AuthDeps struct {
	Users     repository.UserRepository
	Resets    repository.ResetTokenRepository
	Revoked   repository.RevokedTokenStore
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	Renderer  *mail.Renderer
	Mail      MailQueue
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	ResetTokenTTL time.Duration
}

// AuthService handles registration, login, token refresh/revocation,
// password reset and GitHub sign-in.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), Renderer + MailQueue (email)
type AuthService struct {
	users     repository.UserRepository
	resets    repository.ResetTokenRepository
	revoked   repository.RevokedTokenStore
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	renderer  *mail.Renderer
	mail      MailQueue
	metrics   *metrics.Metrics
	logger    *slog.Logger
	resetTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(d AuthDeps) *AuthService {
	ttl := d.ResetTokenTTL
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &AuthService{
		users:     d.Users,
		resets:    d.Resets,
		revoked:   d.Revoked,
		tokens:    d.Tokens,
		passwords: d.Passwords,
		renderer:  d.Renderer,
		mail:      d.Mail,
		metrics:   d.Metrics,
		logger:    d.Logger,
		resetTTL:  ttl,
		now:       time.Now,
	}
}

// ============================================================
// Registration
// ============================================================

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,max=150,username"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

var registerMessages = validate.Messages{
	"email.required":     "Email is required",
	"email.email":        "Please enter a valid email address",
	"username.required":  "Username is required",
	"username.username":  "Username can only contain letters, numbers, and @/./+/-/_ characters",
	"password.required":  "Password is required",
	"password2.required": "Please confirm your password",
}

// Register creates an account and queues the welcome email. Every problem
// with the input is reported at once, keyed by field.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	errs := validate.Check(in, registerMessages)

	if in.Password != "" && in.Password2 != "" && in.Password != in.Password2 {
		errs.Add("password", "Password fields didn't match.")
		errs.Add("password2", "Password fields didn't match.")
	}
	if in.Password != "" {
		for _, problem := range auth.CheckStrength(in.Password, in.Username, in.Email) {
			errs.Add("password", problem)
		}
	}

	// Friendly duplicate checks. The unique constraints still decide races;
	// see conflictAsFieldError below.
	if _, ok := errs["email"]; !ok {
		if err := s.checkFree(ctx, "email", in.Email, s.users.GetByEmail); err != nil {
			if !errors.Is(err, apperror.ErrValidation) {
				return nil, err
			}
			errs.Add("email", "This email is already registered. Please use a different email address.")
		}
	}
	if _, ok := errs["username"]; !ok {
		if err := s.checkFree(ctx, "username", in.Username, s.users.GetByUsername); err != nil {
			if !errors.Is(err, apperror.ErrValidation) {
				return nil, err
			}
			errs.Add("username", "This username is already taken. Please choose a different username.")
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, conflictAsFieldError(err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	s.metrics.Registration("password")
	s.sendWelcome(user)

	return user, nil
}

// checkFree returns a validation error when lookup finds a user for value.
func (s *AuthService) checkFree(ctx context.Context, field, value string,
	lookup func(context.Context, string) (*model.User, error)) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return apperror.ValidationFailed(field, "already taken")
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("service/auth: checking %s: %w", field, err)
	}
}

// sendWelcome queues the welcome email. Failures are logged and never
// reach the caller: the account exists either way.
func (s *AuthService) sendWelcome(user *model.User) {
	msg, err := s.renderer.Welcome(user.Email, user.Username)
	if err != nil {
		s.logger.Error("rendering welcome email", slog.String("userID", user.ID), slog.String("error", err.Error()))
		return
	}
	s.mail.Enqueue(msg)
}

// ============================================================
// Login, refresh, logout
// ============================================================

// Login checks email + password and issues an access/refresh pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*auth.Pair, *model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, apperror.ValidationFailed("", "Please provide both email and password.")
	}

	invalid := apperror.Unauthorized("Invalid credentials").WithCode("invalid_credentials")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.Login("invalid_credentials")
			return nil, nil, invalid
		}
		return nil, nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if !user.HasUsablePassword() {
		s.metrics.Login("invalid_credentials")
		return nil, nil, invalid
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.metrics.Login("invalid_credentials")
			return nil, nil, invalid
		}
		return nil, nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	// Checked after the password so a disabled account is only revealed to
	// someone who knows its password.
	if !user.IsActive {
		s.metrics.Login("inactive")
		return nil, nil, apperror.Forbidden("User account is disabled.")
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/auth: issuing tokens for %s: %w", user.ID, err)
	}

	s.metrics.Login("success")
	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return pair, user, nil
}

func tokenNotValid() error {
	return apperror.Unauthorized("Token is invalid or expired").WithCode("token_not_valid")
}

// Refresh trades a refresh token for a new access token. Revoked tokens,
// deleted users and disabled accounts are all rejected.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.tokens.Validate(strings.TrimSpace(refresh), auth.RefreshToken)
	if err != nil {
		return "", tokenNotValid()
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.JTI())
	if err != nil {
		return "", fmt.Errorf("service/auth: checking denylist: %w", err)
	}
	if revoked {
		return "", tokenNotValid()
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", tokenNotValid()
		}
		return "", fmt.Errorf("service/auth: loading user %s: %w", claims.UserID(), err)
	}
	if !user.IsActive {
		return "", tokenNotValid()
	}

	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing access token: %w", err)
	}
	return access, nil
}

// Logout revokes the caller's access token and, when given, their refresh
// token. A refresh token that is invalid or belongs to someone else is
// ignored: logout always succeeds for an authenticated caller.
func (s *AuthService) Logout(ctx context.Context, access *auth.Claims, refresh string) error {
	now := s.now()

	err := s.revoked.Revoke(ctx, model.RevokedToken{
		JTI:       access.JTI(),
		UserID:    access.UserID(),
		ExpiresAt: access.Expiry(),
		RevokedAt: now,
	})
	if err != nil {
		return fmt.Errorf("service/auth: revoking access token: %w", err)
	}

	if refresh = strings.TrimSpace(refresh); refresh != "" {
		rc, err := s.tokens.Validate(refresh, auth.RefreshToken)
		switch {
		case err != nil:
			s.logger.Debug("logout: ignoring invalid refresh token", slog.String("userID", access.UserID()))
		case rc.UserID() != access.UserID():
			s.logger.Warn("logout: refresh token belongs to another user", slog.String("userID", access.UserID()))
		default:
			err := s.revoked.Revoke(ctx, model.RevokedToken{
				JTI:       rc.JTI(),
				UserID:    rc.UserID(),
				ExpiresAt: rc.Expiry(),
				RevokedAt: now,
			})
			if err != nil {
				return fmt.Errorf("service/auth: revoking refresh token: %w", err)
			}
		}
	}

	s.logger.Info("user logged out", slog.String("userID", access.UserID()))
	return nil
}

// ============================================================
// GitHub sign-in
// ============================================================

// LoginWithGitHub finds or creates the local account for a GitHub profile
// and issues tokens for it.
//
// Lookup order:
//  1. an account already linked to this GitHub id
//  2. an account with the same (verified) email, which gets linked
//  3. a new account with an unusable password; the owner can set a
//     password later through the reset flow
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*auth.Pair, *model.User, error) {
	if gh == nil || gh.ID == 0 {
		return nil, nil, fmt.Errorf("service/auth: GitHub user must not be empty")
	}

	user, err := s.users.GetByGitHubID(ctx, gh.ID)
	switch {
	case err == nil:
		// already linked
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.linkOrCreateGitHubUser(ctx, gh)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("service/auth: looking up GitHub user %d: %w", gh.ID, err)
	}

	if !user.IsActive {
		return nil, nil, apperror.Forbidden("User account is disabled.")
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/auth: issuing tokens for %s: %w", user.ID, err)
	}

	s.metrics.Login("github")
	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return pair, user, nil
}

func (s *AuthService) linkOrCreateGitHubUser(ctx context.Context, gh *auth.GitHubUser) (*model.User, error) {
	if gh.Email == "" {
		return nil, apperror.ValidationFailed("email",
			"Your GitHub account has no verified primary email address.")
	}

	ghID := gh.ID
	existing, err := s.users.GetByEmail(ctx, gh.Email)
	switch {
	case err == nil:
		existing.GitHubID = &ghID
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("service/auth: linking GitHub account: %w", err)
		}
		s.logger.Info("linked GitHub account", slog.String("userID", existing.ID), slog.Int64("githubID", ghID))
		return existing, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %s: %w", gh.Email, err)
	}

	username, err := s.availableUsername(ctx, gh.Login)
	if err != nil {
		return nil, err
	}
	first, last, _ := strings.Cut(strings.TrimSpace(gh.Name), " ")

	user := &model.User{
		Username:     username,
		Email:        gh.Email,
		FirstName:    truncate(first, 150),
		LastName:     truncate(strings.TrimSpace(last), 150),
		PasswordHash: unusablePassword(),
		GitHubID:     &ghID,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating GitHub user: %w", err)
	}

	s.metrics.Registration("github")
	s.sendWelcome(user)
	return user, nil
}

var disallowedUsernameChars = regexp.MustCompile(`[^\p{L}\p{N}@.+\-_]`)

// availableUsername derives a free username from a GitHub login: the login
// itself, then login2, login3..., and finally login plus a random suffix.
func (s *AuthService) availableUsername(ctx context.Context, login string) (string, error) {
	base := truncate(disallowedUsernameChars.ReplaceAllString(login, ""), 140)
	if base == "" {
		base = "user"
	}

	for i := 1; i <= 10; i++ {
		candidate := base
		if i > 1 {
			candidate = base + strconv.Itoa(i)
		}
		_, err := s.users.GetByUsername(ctx, candidate)
		if errors.Is(err, apperror.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("service/auth: checking username %s: %w", candidate, err)
		}
	}
	return base + "-" + xid.New().String()[:8], nil
}

// unusablePassword returns a hash that no password can ever match.
func unusablePassword() string {
	buf := make([]byte, 20)
	_, _ = rand.Read(buf)
	return model.UnusablePasswordPrefix + hex.EncodeToString(buf)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
