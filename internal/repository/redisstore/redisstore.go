// Package redisstore keeps the JWT denylist in Redis.
//
// Each revoked token becomes one key, "revoked:<jti>", whose TTL is the time
// left until the token would have expired anyway. Redis drops the key at
// that moment, so the denylist never grows beyond the set of live tokens and
// needs no purge job.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/repository"
)

const keyPrefix = "revoked:"

var _ repository.RevokedTokenStore = (*Denylist)(nil)

// Denylist implements repository.RevokedTokenStore on Redis.
type Denylist struct {
	rdb *redis.Client
	now func() time.Time
}

// Connect parses a redis:// URL, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parsing REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return rdb, nil
}

func New(rdb *redis.Client) *Denylist {
	return &Denylist{rdb: rdb, now: time.Now}
}

// Revoke stores the jti until the token's expiry. A token that has already
// expired is not stored: validation rejects it on its own.
func (d *Denylist) Revoke(ctx context.Context, tok model.RevokedToken) error {
	ttl := tok.ExpiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.rdb.Set(ctx, keyPrefix+tok.JTI, tok.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: revoking %s: %w", tok.JTI, err)
	}
	return nil
}

func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.rdb.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: checking %s: %w", jti, err)
	}
	return n > 0, nil
}

// Ping is used by the readiness probe.
func (d *Denylist) Ping(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}
