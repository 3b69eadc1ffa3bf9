package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/repository"
)

var (
	_ repository.ResetTokenRepository = (*ResetTokenStore)(nil)
	_ repository.Purger               = (*ResetTokenStore)(nil)
	_ repository.RevokedTokenStore    = (*RevokedTokenStore)(nil)
	_ repository.Purger               = (*RevokedTokenStore)(nil)
)

// ResetTokenStore persists pending password resets.
type ResetTokenStore struct {
	db *DB
}

// Create stores a reset token. The caller sets UserID, TokenHash and
// ExpiresAt; ID and CreatedAt are filled here.
func (s *ResetTokenStore) Create(ctx context.Context, token *model.PasswordResetToken) error {
	token.ID = xid.New().String()
	token.CreatedAt = s.db.now()

	_, err := s.db.exec(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token_hash, ip_address, user_agent, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.TokenHash, token.IPAddress, token.UserAgent,
		token.ExpiresAt.UTC(), token.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return conflictOn("reset token", "token_hash")
		}
		return fmt.Errorf("sqldb: creating reset token: %w", err)
	}
	return nil
}

// GetByHash finds a token by the hash of its secret.
func (s *ResetTokenStore) GetByHash(ctx context.Context, hash string) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := s.db.queryRow(ctx,
		`SELECT id, user_id, token_hash, ip_address, user_agent, expires_at, created_at
		 FROM password_reset_tokens WHERE token_hash = ?`,
		hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IPAddress, &t.UserAgent, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The hash is a secret's fingerprint; keep it out of the message.
			return nil, apperror.NotFound("reset token", "(redacted)")
		}
		return nil, fmt.Errorf("sqldb: getting reset token: %w", err)
	}
	return &t, nil
}

// Delete removes one token.
func (s *ResetTokenStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM password_reset_tokens WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqldb: deleting reset token %s: %w", id, err)
	}
	return nil
}

// DeleteForUser removes every outstanding token for a user. Called after a
// successful reset so older emails stop working too.
func (s *ResetTokenStore) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqldb: deleting reset tokens for %s: %w", userID, err)
	}
	return nil
}

// DeleteExpired purges tokens whose expiry is at or before now.
func (s *ResetTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqldb: purging reset tokens: %w", err)
	}
	return result.RowsAffected()
}

// RevokedTokenStore is the SQL-backed JWT denylist, used when Redis is not
// configured.
type RevokedTokenStore struct {
	db *DB
}

// Revoke records a JWT id. Revoking the same id twice is not an error.
func (s *RevokedTokenStore) Revoke(ctx context.Context, token model.RevokedToken) error {
	if token.RevokedAt.IsZero() {
		token.RevokedAt = s.db.now()
	}

	_, err := s.db.exec(ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at) VALUES (?, ?, ?, ?)`,
		token.JTI, token.UserID, token.ExpiresAt.UTC(), token.RevokedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("sqldb: revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is on the denylist.
func (s *RevokedTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&n); err != nil {
		return false, fmt.Errorf("sqldb: checking revoked token: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired drops denylist rows for tokens that have expired anyway.
func (s *RevokedTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqldb: purging revoked tokens: %w", err)
	}
	return result.RowsAffected()
}
