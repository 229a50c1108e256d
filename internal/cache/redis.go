package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nouns-dao/nouns-onchain/internal/apperror"
)

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores entries in a shared Redis instance.
type Redis struct {
	rdb *redis.Client
}

var _ Store = (*Redis)(nil)

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperror.New(apperror.CodeCacheError,
			apperror.WithCause(err),
			apperror.WithContext("redis ping "+cfg.Addr))
	}

	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperror.New(apperror.CodeCacheError, apperror.WithCause(err), apperror.WithContext("get "+key))
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperror.New(apperror.CodeCacheError, apperror.WithCause(err), apperror.WithContext("set "+key))
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Ping checks connectivity for health probes.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
