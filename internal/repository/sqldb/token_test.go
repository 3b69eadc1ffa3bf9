package sqldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokens(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	store := db.ResetTokens()

	now := time.Now().UTC()
	live := &model.PasswordResetToken{
		UserID:    alice.ID,
		TokenHash: "hash-live",
		IPAddress: "10.0.0.1",
		UserAgent: "curl/8.0",
		ExpiresAt: now.Add(24 * time.Hour),
	}
	stale := &model.PasswordResetToken{
		UserID:    alice.ID,
		TokenHash: "hash-stale",
		ExpiresAt: now.Add(-time.Minute),
	}
	require.NoError(t, store.Create(ctx, live))
	require.NoError(t, store.Create(ctx, stale))

	got, err := store.GetByHash(ctx, "hash-live")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.UserID)
	assert.Equal(t, "curl/8.0", got.UserAgent)
	assert.False(t, got.Expired(now))

	t.Run("duplicate hash is a conflict", func(t *testing.T) {
		err := store.Create(ctx, &model.PasswordResetToken{UserID: alice.ID, TokenHash: "hash-live", ExpiresAt: now})
		assert.True(t, errors.Is(err, apperror.ErrConflict))
	})

	t.Run("purge removes only expired", func(t *testing.T) {
		n, err := store.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		_, err = store.GetByHash(ctx, "hash-stale")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
		_, err = store.GetByHash(ctx, "hash-live")
		assert.NoError(t, err)
	})

	t.Run("delete for user", func(t *testing.T) {
		require.NoError(t, store.DeleteForUser(ctx, alice.ID))
		_, err := store.GetByHash(ctx, "hash-live")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})
}

func TestRevokedTokens(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := db.RevokedTokens()
	now := time.Now().UTC()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	tok := model.RevokedToken{JTI: "jti-1", UserID: "u1", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.Revoke(ctx, tok))
	require.NoError(t, store.Revoke(ctx, tok), "revoking twice is fine")

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, store.Revoke(ctx, model.RevokedToken{JTI: "jti-old", UserID: "u1", ExpiresAt: now.Add(-time.Hour)}))
	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked, "unexpired entries survive the purge")
}
