package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

const (
	keyPrefix    = "pagecraft:lock:"
	pollInterval = 100 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease held in Redis, shared by every API and worker
// process. The lease expires after ttl even if the holder dies.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	k := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, appErr.Wrap(ctx.Err(), appErr.CodeUnavailable, "waiting for lock cancelled").WithMeta("key", key)
			}
			return nil, appErr.Wrap(err, appErr.CodeUnavailable, "acquire lock failed").WithMeta("key", key)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, appErr.Wrap(ctx.Err(), appErr.CodeUnavailable, "waiting for lock cancelled").WithMeta("key", key)
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{k}, token).Err(); err != nil {
				logger.L().Warn("release lock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
