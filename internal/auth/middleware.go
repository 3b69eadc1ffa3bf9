package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/snippetshare/internal/repository"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the values stored under it.
type contextKey string

const claimsKey contextKey = "claims"

// Guard authenticates requests from the "Authorization: Bearer <token>"
// header. It validates the access token and rejects tokens that were
// revoked by logout.
type Guard struct {
	tokens  *TokenService
	revoked repository.RevokedTokenStore
	logger  *slog.Logger
}

// NewGuard creates a Guard. revoked may be nil to skip the denylist check.
func NewGuard(tokens *TokenService, revoked repository.RevokedTokenStore, logger *slog.Logger) *Guard {
	return &Guard{tokens: tokens, revoked: revoked, logger: logger}
}

// RequireAuth rejects requests without a valid, unrevoked access token
// with 401 and stores the token's claims in the context otherwise.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it.
// Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, present := bearerToken(r)
		if !present {
			writeUnauthorized(w, "Authentication credentials were not provided.", "not_authenticated")
			return
		}

		claims, err := g.authenticate(r.Context(), raw)
		if err != nil {
			writeUnauthorized(w, "Given token not valid for any token type", "token_not_valid")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// OptionalAuth lets anonymous requests through but still rejects a token
// that is present and bad. A client holding an expired token gets a 401 it
// can react to (refresh) instead of silently seeing the anonymous view.
func (g *Guard) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, present := bearerToken(r)
		if !present {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := g.authenticate(r.Context(), raw)
		if err != nil {
			writeUnauthorized(w, "Given token not valid for any token type", "token_not_valid")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// authenticate validates an access token and checks the denylist.
func (g *Guard) authenticate(ctx context.Context, raw string) (*Claims, error) {
	claims, err := g.tokens.Validate(raw, AccessToken)
	if err != nil {
		return nil, err
	}

	if g.revoked != nil {
		revoked, err := g.revoked.IsRevoked(ctx, claims.JTI())
		if err != nil {
			// Storage trouble: fail closed.
			g.logger.Error("checking token denylist", slog.String("error", err.Error()))
			return nil, err
		}
		if revoked {
			return nil, ErrTokenInvalid
		}
	}
	return claims, nil
}

// WithClaims stores validated claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the claims of the authenticated caller.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns ("", false) for anonymous requests.
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // anonymous user
//	}
func UserIDFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.UserID() == "" {
		return "", false
	}
	return c.UserID(), true
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively. present is false when the
// header is missing or uses another scheme.
func bearerToken(r *http.Request) (token string, present bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, value, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func writeUnauthorized(w http.ResponseWriter, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
		"code":    code,
	})
}
