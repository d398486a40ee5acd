package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingLimiter struct {
	counts map[string]int64
	err    error
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func serveAs(handler http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, consumePath, nil)
	req = req.WithContext(WithUserID(req.Context(), userID))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	limiter := &countingLimiter{}
	handler := RateLimit(NewRateLimitPolicy("consume", time.Minute, 2), limiter, nil)(okHandler())

	assert.Equal(t, http.StatusOK, serveAs(handler, "user-1").Code)
	assert.Equal(t, http.StatusOK, serveAs(handler, "user-1").Code)

	blocked := serveAs(handler, "user-1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serveAs(handler, "user-2").Code, "limits are per user")
	assert.Contains(t, limiter.counts, "consume:user:user-1")
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}
	handler := RateLimit(NewRateLimitPolicy("consume", time.Minute, 1), limiter, nil)(okHandler())

	assert.Equal(t, http.StatusOK, serveAs(handler, "user-1").Code)
	assert.Equal(t, http.StatusOK, serveAs(handler, "user-1").Code)
}

func TestRateLimitDisabledPolicy(t *testing.T) {
	limiter := &countingLimiter{}
	handler := RateLimit(NewRateLimitPolicy("consume", 0, 1), limiter, nil)(okHandler())

	assert.Equal(t, http.StatusOK, serveAs(handler, "user-1").Code)
	assert.Equal(t, http.StatusOK, serveAs(handler, "user-1").Code)
	assert.Empty(t, limiter.counts)
}
