// Package authtest signs access tokens shaped like the identity provider's so
// handler and router tests can authenticate.
package authtest

import (
	"testing"
	"time"

	"github.com/angelmondragon/creditpacks-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

// Token signs a token for userID that is valid for the next hour.
func Token(t testing.TB, cfg config.JWTConfig, userID string) string {
	t.Helper()
	now := time.Now()
	return Sign(t, cfg.Secret, jwt.MapClaims{
		"iss":     cfg.Issuer,
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
}

// Sign signs arbitrary claims with HS256.
func Sign(t testing.TB, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// Bearer is the Authorization header value for userID.
func Bearer(t testing.TB, cfg config.JWTConfig, userID string) string {
	t.Helper()
	return "Bearer " + Token(t, cfg, userID)
}
