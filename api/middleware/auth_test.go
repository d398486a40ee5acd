package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/creditpacks-backend/pkg/auth/authtest"
	"github.com/angelmondragon/creditpacks-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejects(t *testing.T) {
	for name, header := range map[string]string{
		"missing":      "",
		"empty bearer": "Bearer   ",
		"invalid":      "Bearer invalid",
		"foreign":      "Bearer " + authtest.Token(t, config.JWTConfig{Secret: "other", Issuer: "issuer"}, "user-1"),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp := httptest.NewRecorder()
			Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", resp.Code)
			}
		})
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	token := authtest.Token(t, testJWT, "user-1")

	for name, header := range map[string]string{
		"bearer":     "Bearer " + token,
		"lower case": "bearer " + token,
		"bare":       token,
	} {
		t.Run(name, func(t *testing.T) {
			var user string
			handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d", resp.Code)
			}
			if user != "user-1" {
				t.Fatalf("unexpected user %q", user)
			}
		})
	}
}
