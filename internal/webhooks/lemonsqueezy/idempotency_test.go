package lemonsqueezywebhook

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Reserve(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("credits:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return s.err
}

func TestIdempotencyGuard(t *testing.T) {
	store := newInMemoryStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "lemonsqueezy")
	require.NoError(t, err)
	ctx := context.Background()
	key := DeliveryKey("order_created", "1001")

	seen, err := guard.CheckAndMark(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(ctx, key))
	seen, err = guard.CheckAndMark(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen, "released key is claimable again")

	refundSeen, err := guard.CheckAndMark(ctx, DeliveryKey("order_refunded", "1001"))
	require.NoError(t, err)
	assert.False(t, refundSeen, "refund of the same order is a different delivery")

	_, err = guard.CheckAndMark(ctx, "")
	assert.Error(t, err)
}

func TestDeliveryKey(t *testing.T) {
	assert.Equal(t, "order_created:1001", DeliveryKey(" order_created ", "1001"))
	assert.Empty(t, DeliveryKey("order_created", ""))
	assert.Empty(t, DeliveryKey("", "1001"))
}

func TestNewIdempotencyGuardValidates(t *testing.T) {
	_, err := NewIdempotencyGuard(nil, time.Hour, "x")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(newInMemoryStore(), -time.Second, "x")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(newInMemoryStore(), time.Hour, "")
	assert.Error(t, err)
}
