package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippetshare/internal/model"
)

func newTestDenylist(t *testing.T) (*Denylist, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	d := New(rdb)
	d.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	return d, mr
}

func TestDenylist_RevokeAndCheck(t *testing.T) {
	d, mr := newTestDenylist(t)
	ctx := context.Background()

	err := d.Revoke(ctx, model.RevokedToken{
		JTI:       "jti-1",
		UserID:    "user-1",
		ExpiresAt: d.now().Add(15 * time.Minute),
	})
	require.NoError(t, err)

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = d.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.Equal(t, 15*time.Minute, mr.TTL("revoked:jti-1"))
	got, _ := mr.Get("revoked:jti-1")
	assert.Equal(t, "user-1", got)
}

func TestDenylist_KeyExpiresWithToken(t *testing.T) {
	d, mr := newTestDenylist(t)
	ctx := context.Background()

	require.NoError(t, d.Revoke(ctx, model.RevokedToken{JTI: "jti-1", ExpiresAt: d.now().Add(time.Minute)}))

	mr.FastForward(2 * time.Minute)

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestDenylist_ExpiredTokenIsNotStored(t *testing.T) {
	d, mr := newTestDenylist(t)

	err := d.Revoke(context.Background(), model.RevokedToken{JTI: "old", ExpiresAt: d.now().Add(-time.Second)})
	require.NoError(t, err)
	assert.False(t, mr.Exists("revoked:old"))
}

func TestDenylist_RedisDown(t *testing.T) {
	d, mr := newTestDenylist(t)
	mr.Close()

	_, err := d.IsRevoked(context.Background(), "jti-1")
	assert.Error(t, err)
	assert.Error(t, d.Ping(context.Background()))
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url")
	assert.Error(t, err)

	// Nothing listens on this port.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()
	assert.Error(t, New(rdb).Ping(context.Background()))
}
