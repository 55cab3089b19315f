package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

const (
	defaultTTL   = 30 * time.Second
	pollInterval = 50 * time.Millisecond
	keyPrefix    = "snapstudio:lock:"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process pointed at the same Redis.
type Redis struct {
	client redis.Cmdable
	logger *logging.Logger
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client redis.Cmdable, logger *logging.Logger) *Redis {
	if logger == nil {
		logger = logging.Default()
	}
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		release, err := r.TryAcquire(ctx, key, ttl)
		if !errors.Is(err, ErrNotAcquired) {
			return release, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("locks: acquire %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("locks: set %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return r.releaser(key, token), nil
}

func (r *Redis) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.release(key, token) })
	}
}

// release runs on a fresh context since the caller's may already be done.
func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
		r.logger.Warn("locks: release failed", "key", key, "error", err)
	}
}
