package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisPrefix    = "temps:poll:"
	redisOpTimeout = 250 * time.Millisecond
	redisEntryTTL  = 15 * time.Minute
)

// RedisStore shares poll results between processes through Redis.
type RedisStore struct {
	client  *redis.Client
	logger  *zap.Logger
	prefix  string
	timeout time.Duration
	ttl     time.Duration
}

// NewRedisStore connects to the Redis server at url (redis:// or rediss://)
// and verifies the connection.
func NewRedisStore(url string, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:  client,
		logger:  logger,
		prefix:  redisPrefix,
		timeout: redisOpTimeout,
		ttl:     redisEntryTTL,
	}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		s.logRedisError("set", err)
		return err
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		s.logRedisError("get", err)
		return nil, false, err
	}
	return v, true, nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) logRedisError(op string, err error) {
	s.logger.Warn("redis poll cache error", zap.String("op", op), zap.Error(err))
}
