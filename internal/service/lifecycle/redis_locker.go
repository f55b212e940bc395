package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу токена.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisClient — подмножество *redis.Client, нужное для блокировки.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker — распределённая блокировка заявки для нескольких экземпляров сервиса.
type RedisLocker struct {
	client        RedisClient
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
	logger        *log.Entry
}

// NewRedisLocker создаёт блокировку; ttl ограничивает время удержания при падении владельца.
func NewRedisLocker(client RedisClient, prefix string, ttl, retryInterval time.Duration, logger *log.Entry) *RedisLocker {
	if prefix == "" {
		prefix = "shelter:request-lock:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retryInterval <= 0 {
		retryInterval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = log.New().WithField("component", "redis-locker")
	}
	return &RedisLocker{
		client:        client,
		prefix:        prefix,
		ttl:           ttl,
		retryInterval: retryInterval,
		logger:        logger,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		acquired, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire redis lock %s: %w", key, err)
		}
		if acquired {
			return func() { l.unlock(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *RedisLocker) unlock(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.logger.WithError(err).WithField("key", redisKey).Warn("failed to release redis lock")
	}
}

var _ Locker = (*RedisLocker)(nil)
