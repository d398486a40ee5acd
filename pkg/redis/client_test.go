package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/creditpacks-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCommands()
	client := &Client{cmd: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "consume:user:u1", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
	require.Len(t, mock.expireCalls, 1)
	assert.Equal(t, expireCall{key: "credits:rate_limit:consume:user:u1", ttl: time.Second}, mock.expireCalls[0])

	allowed, count, err = client.FixedWindowAllow(ctx, "consume:user:u1", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(2), count)
	assert.Len(t, mock.expireCalls, 1, "window must not be extended")

	allowed, _, err = client.FixedWindowAllow(ctx, "consume:user:u1", 2, time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestFixedWindowAllowDropsCounterWithoutExpiry(t *testing.T) {
	mock := newMockCommands()
	mock.expireErr = errors.New("READONLY")
	client := &Client{cmd: mock}

	_, _, err := client.FixedWindowAllow(context.Background(), "consume:user:u1", 5, time.Minute)
	require.Error(t, err)
	assert.NotContains(t, mock.incr, "credits:rate_limit:consume:user:u1")
}

func TestReservationLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newMockCommands()}
	key := client.IdempotencyKey("lemonsqueezy", "order_created:1001")

	won, err := client.Reserve(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = client.Reserve(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.False(t, won, "replay must not win the reservation")

	require.NoError(t, client.Store(ctx, key, "done", time.Hour))
	value, found, err := client.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "done", value)

	require.NoError(t, client.Release(ctx, key))
	_, found, err = client.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "credits:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "credits:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "credits:idempotency:scope", client.IdempotencyKey(" scope ", "  "))
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	_, _, err := client.Load(ctx, "k")
	assert.ErrorIs(t, err, errNotConnected)
	_, err = client.Reserve(ctx, "k", "v", time.Second)
	assert.ErrorIs(t, err, errNotConnected)
	assert.ErrorIs(t, client.Ping(ctx), errNotConnected)
	assert.NoError(t, client.Close())
}

func TestOptions(t *testing.T) {
	opts, err := options(config.RedisConfig{
		URL:         "redis://:secret@cache.internal:6380/2?pool_size=4",
		PoolSize:    10,
		DialTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize, "url settings win")
	assert.Equal(t, 3*time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{Address: "localhost:6379", DB: 1, PoolSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)

	_, err = options(config.RedisConfig{})
	assert.Error(t, err)
}

type expireCall struct {
	key string
	ttl time.Duration
}

type mockCommands struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
	expireErr   error
}

func newMockCommands() *mockCommands {
	return &mockCommands{data: map[string]string{}, incr: map[string]int64{}}
}

func (m *mockCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.incr, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCommands) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if m.expireErr != nil {
		return redis.NewBoolResult(false, m.expireErr)
	}
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: ttl})
	return redis.NewBoolResult(true, nil)
}
