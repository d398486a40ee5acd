package lemonsqueezywebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeliveryStore is the slice of pkg/redis the guard needs.
type DeliveryStore interface {
	IdempotencyKey(scope, id string) string
	Reserve(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// IdempotencyGuard short-circuits provider redeliveries before they reach the
// database. The order table stays the source of truth.
type IdempotencyGuard struct {
	store DeliveryStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store DeliveryStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// DeliveryKey identifies one logical delivery: the same order can be created
// once and refunded once.
func DeliveryKey(eventName, orderID string) string {
	eventName = strings.TrimSpace(eventName)
	orderID = strings.TrimSpace(orderID)
	if eventName == "" || orderID == "" {
		return ""
	}
	return eventName + ":" + orderID
}

// CheckAndMark claims key and reports whether it was already claimed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("delivery key is required")
	}
	// The value records when the delivery was first claimed, for operators.
	won, err := g.store.Reserve(ctx, g.store.IdempotencyKey(g.scope, key), time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("reserve delivery %s: %w", key, err)
	}
	return !won, nil
}

// Delete releases key so a provider retry is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("delivery key is required")
	}
	return g.store.Release(ctx, g.store.IdempotencyKey(g.scope, key))
}
