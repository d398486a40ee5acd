package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
)

func TestRequestIDKeepsWellFormedCallerID(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	handler := RequestID(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logg.Info(r.Context(), "credits.balance")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil)
	req.Header.Set(RequestIDHeader, "edge-42.a")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "edge-42.a", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"edge-42.a"`)
}

func TestRequestIDReplacesMalformedCallerID(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, supplied := range []string{"", "has spaces", "line\nbreak", strings.Repeat("a", 129)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, supplied)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		got := rec.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "supplied %q produced %q", supplied, got)
	}
}

func TestRecoverWritesInternalEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	handler := Recover(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("ledger exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/credits/consume", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic.recovered")
	assert.Contains(t, buf.String(), "ledger exploded")
	assert.NotContains(t, rec.Body.String(), "ledger exploded")
}

func TestRecoverReraisesAbortHandler(t *testing.T) {
	handler := Recover(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		assert.Equal(t, http.ErrAbortHandler, rec)
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Fatal("expected panic to propagate")
}
