// Package lock provides a Redis advisory lock so two ingestion runs cannot
// hammer the upstream API for the same key at the same time. Overlapping
// runs are safe at the row level (last write wins); the lock only prevents
// wasted quota.
package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Minute

type Lock struct {
	Rdb *redis.Client
	Key string
	TTL time.Duration
}

func New(rdb *redis.Client, key string) *Lock {
	if key == "" {
		key = "ingest:run-lock"
	}
	return &Lock{Rdb: rdb, Key: key, TTL: defaultTTL}
}

// Acquire takes the lock with a token identifying the holder. Returns false
// when another run holds it.
func (l *Lock) Acquire(ctx context.Context, token string) (bool, error) {
	if l == nil || l.Rdb == nil {
		// No redis configured: behave as if the lock is always free.
		return true, nil
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return l.Rdb.SetNX(ctx, l.Key, token, ttl).Result()
}

// releaseScript deletes the key only when it still holds our token, so an
// expired-and-reacquired lock is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

// Release frees the lock if token still owns it.
func (l *Lock) Release(ctx context.Context, token string) error {
	if l == nil || l.Rdb == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.Rdb, []string{l.Key}, token).Err()
}

// Holder returns the current lock token, or "" when free.
func (l *Lock) Holder(ctx context.Context) (string, error) {
	if l == nil || l.Rdb == nil {
		return "", nil
	}
	v, err := l.Rdb.Get(ctx, l.Key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}
