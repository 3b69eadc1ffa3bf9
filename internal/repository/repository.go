// Package repository declares the storage interfaces the services depend on.
//
// Services only see these interfaces. The sqldb package implements them on
// database/sql (SQLite or Postgres), redisstore implements RevokedTokenStore
// on Redis, and the service tests use in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/snippetshare/internal/model"
)

// Page selects a window of an ordered listing.
type Page struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetPassword(ctx context.Context, userID, hash string) error
	List(ctx context.Context, page Page) ([]model.UserSummary, int, error)
	GetSummary(ctx context.Context, id string) (*model.UserSummary, error)
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, filter model.SnippetFilter, page Page) ([]model.Snippet, int, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

type ResetTokenRepository interface {
	Create(ctx context.Context, token *model.PasswordResetToken) error
	GetByHash(ctx context.Context, hash string) (*model.PasswordResetToken, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RevokedTokenStore remembers JWT ids that were revoked before expiry.
type RevokedTokenStore interface {
	Revoke(ctx context.Context, token model.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Purger is implemented by stores that need expired rows removed
// periodically. Redis expires keys on its own and does not implement it.
type Purger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
