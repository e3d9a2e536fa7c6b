// Package lock provides a Redis-backed per-key mutex for multi-instance
// deployments.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/zatekoja/provider-directory/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

const keyPrefix = "lock:"

// releaseScript deletes the lock only if it is still held by this token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker grants mutual exclusion per key using SET NX PX.
// The TTL bounds how long a crashed holder can block others.
type RedisLocker struct {
	client       *redisclient.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisLocker creates a locker whose leases expire after ttl
func NewRedisLocker(client *redisclient.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:       client,
		ttl:          ttl,
		pollInterval: 20 * time.Millisecond,
	}
}

// Lock blocks until key is held or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.Client().SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, apperrors.FromContext("timed out waiting for lock", err)
			}
			return nil, apperrors.NewUnavailableError("failed to acquire lock", err)
		}
		if ok {
			return func() { l.release(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.FromContext(fmt.Sprintf("timed out waiting for lock %s", key), ctx.Err())
		case <-time.After(l.pollInterval):
		}
	}
}

func (l *RedisLocker) release(redisKey, token string) {
	// Released on a fresh context so a cancelled request still frees the lease
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client.Client(), []string{redisKey}, token).Err(); err != nil {
		log.Warn().Err(err).Str("key", redisKey).Msg("Failed to release lock; it will expire with its TTL")
	}
}
