// Package auth provides JWT issuance/validation, password hashing, reset
// secrets and the HTTP middleware that turns a Bearer token into a user ID.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /auth/login with email + password → {"access": ..., "refresh": ...}
//  2. API calls send "Authorization: Bearer <access>"
//  3. RequireAuth/OptionalAuth validate the access token, check it hasn't been
//     revoked, and store the user ID in the request context
//  4. When the access token expires, POST /auth/login/refresh with the
//     refresh token returns a new access token
//  5. POST /auth/logout revokes both tokens by their "jti" claim
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","typ":"access","jti":"<uuid>","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens. Both are
// signed with the same key, so the type claim is what stops a refresh token
// being used as a Bearer credential (and vice versa).
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Default lifetimes. Access tokens are short so a leaked one is useful only
// briefly; refresh tokens last a day.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
	DefaultIssuer     = "snippetshare"
)

var (
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrTokenInvalid   = errors.New("auth: invalid token")
	ErrWrongTokenType = errors.New("auth: wrong token type")
)

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret used to sign and verify tokens. The same secret
// must be used for both operations; rotating it logs everyone out.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithIssuer sets the "iss" claim written and required on validation.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) { s.issuer = issuer }
}

// WithTTLs overrides the access and refresh lifetimes. Zero keeps the default.
func WithTTLs(access, refresh time.Duration) TokenOption {
	return func(s *TokenService) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

// WithClock replaces time.Now. Tests use it to mint already-expired tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	s := &TokenService{
		secret:     []byte(secret),
		issuer:     DefaultIssuer,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Claims is the JWT payload. It embeds jwt.RegisteredClaims (iss, sub,
// exp, iat, jti) and adds the token type.
type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// JTI returns the unique token id used for revocation.
func (c *Claims) JTI() string { return c.ID }

// Expiry returns the expiration time.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Pair is what a successful login returns.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// IssuePair creates a fresh access + refresh token for userID.
func (s *TokenService) IssuePair(userID string) (*Pair, error) {
	access, err := s.issue(userID, AccessToken, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issue(userID, RefreshToken, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{Access: access, Refresh: refresh}, nil
}

// IssueAccess creates a new access token only (the refresh endpoint).
func (s *TokenService) IssueAccess(userID string) (string, error) {
	return s.issue(userID, AccessToken, s.accessTTL)
}

// AccessTTL reports the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// issue signs a token. Every token gets a random uuid "jti" so that two
// tokens minted in the same second for the same user are still distinct
// and can be revoked individually.
//
// Signing algorithm: HS256 (HMAC-SHA256). Symmetric: same key for signing
// and verifying, which is fine for a single service.
func (s *TokenService) issue(userID string, typ TokenType, ttl time.Duration) (string, error) {
	now := s.now()

	c := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT of the expected type.
//
// VALIDATION CHECKS:
//   - Signature is valid (wasn't tampered with)
//   - Algorithm is HS256 (prevents "alg: none" and algorithm confusion)
//   - Token is not expired and has an expiry at all
//   - Issuer matches
//   - Type claim matches want, subject and jti are present
//
// Revocation is NOT checked here; that needs storage (see Guard).
func (s *TokenService) Validate(tokenStr string, want TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: bad claims", ErrTokenInvalid)
	}
	if c.Type != want {
		return nil, ErrWrongTokenType
	}
	if c.Subject == "" || c.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or jti", ErrTokenInvalid)
	}

	return c, nil
}
