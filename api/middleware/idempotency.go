package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/creditpacks-backend/api/responses"
	"github.com/angelmondragon/creditpacks-backend/api/validators"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/creditpacks-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// ReplayHeader marks a response served from a stored record.
	ReplayHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
	// pendingTTL bounds how long a crashed request can hold its key.
	pendingTTL = time.Minute
)

// idempotentRoutes maps "METHOD pattern" to how long a completed response is
// replayed. A consume retried within a day must not debit twice.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/v1/credits/consume": 24 * time.Hour,
	http.MethodPost + " /api/v1/checkout":        time.Hour,
}

type recordState string

const (
	statePending  recordState = "pending"
	stateComplete recordState = "complete"
)

type idempotencyRecord struct {
	State       recordState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency makes the mutating credit endpoints safe to retry. The first
// request with a key reserves it; concurrent duplicates get 409 until it
// finishes; later duplicates replay the stored response. A key reused with a
// different body is rejected. 5xx outcomes release the key so a retry runs.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := idempotentRoutes[r.Method+" "+routePattern(r)]
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			id := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if id == "" || len(id) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required").
					WithDetails(map[string]string{IdempotencyHeader: "must be 1-255 characters"}))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r, body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, id)

			pending, _ := json.Marshal(idempotencyRecord{State: statePending, Fingerprint: fingerprint})
			won, err := store.Reserve(ctx, key, string(pending), pendingTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !won {
				replayOrReject(w, r, store, key, fingerprint, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			completed := false
			defer func() {
				// A panic or 5xx leaves the outcome unknown to the caller.
				if !completed {
					if err := store.Release(ctx, key); err != nil && logg != nil {
						logg.Error(ctx, "idempotency.release_failed", err)
					}
				}
			}()
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}
			final, err := json.Marshal(idempotencyRecord{
				State:       stateComplete,
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err == nil {
				err = store.Store(ctx, key, string(final), ttl)
			}
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "idempotency.store_failed", err)
				}
				return
			}
			completed = true
		})
	}
}

func replayOrReject(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	ctx := r.Context()
	raw, found, err := store.Load(ctx, key)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var record idempotencyRecord
	if found {
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
			return
		}
	}

	switch {
	case !found || record.State == statePending:
		if found && record.Fingerprint != fingerprint {
			responses.WriteError(ctx, logg, w, errKeyReused())
			return
		}
		// Not found means the first request released the key between our
		// Reserve and Load; the client should simply retry.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
	case record.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, errKeyReused())
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(ReplayHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func errKeyReused() error {
	return pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key reused with a different request").
		WithDetails(map[string]string{IdempotencyHeader: "already used for a different request body"})
}

// requestFingerprint hashes method, path and the JSON body with its keys
// sorted, so `{"a":1,"b":2}` and `{ "b": 2, "a": 1 }` count as the same
// request. Non-JSON bodies are hashed as sent.
func requestFingerprint(r *http.Request, body []byte) string {
	canonical := body
	var decoded any
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err == nil {
			if _, err := dec.Token(); errors.Is(err, io.EOF) {
				if out, err := json.Marshal(decoded); err == nil {
					canonical = out
				}
			}
		}
	}
	sum := sha256.New()
	sum.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	sum.Write(canonical)
	return hex.EncodeToString(sum.Sum(nil))
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
