package redisstorage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStorage interface {
	SetTokenPrices(ctx context.Context, prices []TokenPrice) error
	GetTokenPrice(ctx context.Context, symbol string) (TokenPrice, error)
	GetTokenPrices(ctx context.Context, symbols []string) ([]TokenPrice, error)
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}
