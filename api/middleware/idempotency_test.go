package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
)

const consumePath = "/api/v1/credits/consume"

type fakeStore struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	loadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "fake:" + scope + ":" + id
}

func (f *fakeStore) Reserve(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], f.ttls[key] = value, ttl
	return true, nil
}

func (f *fakeStore) Load(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, f.loadErr
}

func (f *fakeStore) Store(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key], f.ttls[key] = value, ttl
	return nil
}

func (f *fakeStore) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeStore) record(t *testing.T, key string) idempotencyRecord {
	t.Helper()
	var rec idempotencyRecord
	require.NoError(t, json.Unmarshal([]byte(f.data[key]), &rec))
	return rec
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func consumeRequest(body, key, userID string) *http.Request {
	req := requestWithPattern(http.MethodPost, consumePath, consumePath, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req.WithContext(WithUserID(req.Context(), userID))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return payload.Error.Code
}

func TestIdempotentRoutes(t *testing.T) {
	assert.Equal(t, 24*time.Hour, idempotentRoutes["POST /api/v1/credits/consume"])
	assert.Equal(t, time.Hour, idempotentRoutes["POST /api/v1/checkout"])

	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), requestWithPattern(http.MethodGet, "/api/v1/credits/balance", "/api/v1/credits/balance", nil))
	assert.True(t, called, "reads pass through without a key")
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { handlerCalled = true })

	for _, key := range []string{"", strings.Repeat("k", maxIdempotencyKeyLen+1)} {
		resp := httptest.NewRecorder()
		Idempotency(newFakeStore(), nil)(handler).ServeHTTP(resp, consumeRequest(`{"amount":1}`, key, "user-1"))
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	}
	assert.False(t, handlerCalled, "handler should not run without a usable key")
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"amount":1}`, string(body), "handler still sees the body")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"new_balance":9}}`))
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, consumeRequest(`{"amount":1}`, "abc", "user-1"))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(ReplayHeader))

	key := store.IdempotencyKey("user-1|POST|"+consumePath, "abc")
	assert.Equal(t, stateComplete, store.record(t, key).State)
	assert.Equal(t, 24*time.Hour, store.ttls[key])

	replay := httptest.NewRecorder()
	mw(handler).ServeHTTP(replay, consumeRequest(`{ "amount": 1 }`, "abc", "user-1"))
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(ReplayHeader))
	assert.Equal(t, `{"data":{"new_balance":9}}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	mw(handler).ServeHTTP(httptest.NewRecorder(), consumeRequest(`{"amount":1}`, "abc", "user-2"))
	assert.Equal(t, 2, calls, "keys are scoped per user")
}

func TestIdempotencyMiddlewareReplaysClientErrors(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), consumeRequest(`{"amount":5}`, "k402", "user-1"))
	replay := httptest.NewRecorder()
	mw(handler).ServeHTTP(replay, consumeRequest(`{"amount":5}`, "k402", "user-1"))

	assert.Equal(t, http.StatusPaymentRequired, replay.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyMiddlewareReleasesOnServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), consumeRequest(`{"amount":1}`, "k1", "user-1"))
	assert.Empty(t, store.data, "5xx must release the reservation")
	mw(handler).ServeHTTP(httptest.NewRecorder(), consumeRequest(`{"amount":1}`, "k1", "user-1"))
	assert.Equal(t, 2, calls, "expected retry after 5xx")
}

func TestIdempotencyMiddlewareReleasesOnPanic(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("ledger exploded")
	}))

	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), consumeRequest(`{"amount":1}`, "kp", "user-1"))
	})
	assert.Empty(t, store.data)
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		mw(handler).ServeHTTP(httptest.NewRecorder(), consumeRequest(`{"amount":1}`, "race", "user-1"))
	}()
	<-started

	dup := httptest.NewRecorder()
	mw(handler).ServeHTTP(dup, consumeRequest(`{"amount":1}`, "race", "user-1"))
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, dup))

	close(release)
	<-done
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), consumeRequest(`{"amount":1}`, "xyz", "user-1"))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, consumeRequest(`{"amount":2}`, "xyz", "user-1"))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, resp))
}

func TestIdempotencyMiddlewareStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("redis unavailable")
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	mw(handler).ServeHTTP(httptest.NewRecorder(), consumeRequest(`{"amount":1}`, "k", "user-1"))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, consumeRequest(`{"amount":1}`, "k", "user-1"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRequestFingerprintCanonicalizesJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, consumePath, nil)
	a := requestFingerprint(req, []byte(`{"amount":2,"description":"render"}`))
	b := requestFingerprint(req, []byte(`{ "description": "render", "amount": 2 }`))
	c := requestFingerprint(req, []byte(`{"amount":2.0,"description":"render"}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "numbers keep their literal form")

	other := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	assert.NotEqual(t, a, requestFingerprint(other, []byte(`{"amount":2,"description":"render"}`)))
	assert.NotEmpty(t, requestFingerprint(req, []byte("not json")))
}
