package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

const defaultKeyPrefix = "lease-agent:lock:"

// unlockScript deletes the key only while it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisLocker is a try-lock shared by every instance using the same Redis.
// A lock expires after ttl so a crashed holder cannot block a request forever.
type RedisLocker struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisLocker creates a locker on an existing client
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client:    client,
		ttl:       ttl,
		keyPrefix: defaultKeyPrefix,
		logger:    logger,
	}
}

// TryLock sets the key with SET NX PX. A held key fails at once with
// workflow.ErrConcurrentModification.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (port.Unlock, error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		l.logger.Error("Failed to acquire lock", zap.String("key", redisKey), zap.Error(err))
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is locked", workflow.ErrConcurrentModification, key)
	}

	return func() {
		// release even when the caller's context is already done
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Error("Failed to release lock", zap.String("key", redisKey), zap.Error(err))
		}
	}, nil
}

// Key returns the Redis key used for a lock key
func (l *RedisLocker) Key(key string) string {
	return l.keyPrefix + key
}

var _ port.Locker = (*RedisLocker)(nil)
