package redisstorage

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

type fakeClient struct {
	hash  map[string]string
	locks map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{hash: map[string]string{}, locks: map[string]string{}}
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeClient) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for i := 0; i+1 < len(values); i += 2 {
		f.hash[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeClient) HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd {
	out := make([]interface{}, len(fields))
	for i, field := range fields {
		if v, ok := f.hash[field]; ok {
			out[i] = v
		}
	}
	return redis.NewSliceResult(out, nil)
}

func (f *fakeClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if _, ok := f.locks[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.locks[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if f.locks[keys[0]] == args[0].(string) {
		delete(f.locks, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestTokenPrices(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newRedisStorage(newFakeClient(), time.Hour)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	err := s.SetTokenPrices(ctx, []TokenPrice{
		{Symbol: "eth", USD: decimal.RequireFromString("2500.5")},
		{Symbol: "HBAR", USD: decimal.RequireFromString("0.07"), UpdatedAt: now.Add(-2 * time.Hour)},
		{Symbol: "BAD", USD: decimal.Zero},
	})
	require.NoError(t, err)

	price, err := s.GetTokenPrice(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, "ETH", price.Symbol)
	assert.Equal(t, "2500.5", price.USD.String())

	_, err = s.GetTokenPrice(ctx, "HBAR")
	require.ErrorIs(t, err, gerror.ErrStorageNotFound, "stale price")
	_, err = s.GetTokenPrice(ctx, "BAD")
	require.ErrorIs(t, err, gerror.ErrStorageNotFound)

	prices, err := s.GetTokenPrices(ctx, []string{"usdc", "eth"})
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.True(t, prices[0].USD.IsZero())
	assert.Equal(t, "2500.5", prices[1].USD.String())
}

func TestLock(t *testing.T) {
	s := newRedisStorage(newFakeClient(), 0)
	ctx := context.Background()

	token, ok, err := s.AcquireLock(ctx, "payout:base", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = s.AcquireLock(ctx, "payout:base", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseLock(ctx, "payout:base", "someone-else"))
	_, ok, err = s.AcquireLock(ctx, "payout:base", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a lock is only released by its holder")

	require.NoError(t, s.ReleaseLock(ctx, "payout:base", token))
	_, ok, err = s.AcquireLock(ctx, "payout:base", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
