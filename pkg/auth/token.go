// Package auth verifies the HS256 access tokens minted by the identity
// provider. This service never issues tokens of its own.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/creditpacks-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

// clockSkew tolerates small drift between the provider and this host.
const clockSkew = 30 * time.Second

var (
	ErrNoSecret    = errors.New("jwt secret is required")
	ErrMissingUser = errors.New("token names no user")
	ErrTokenTooOld = errors.New("token issued too long ago")
)

// AccessTokenClaims is the provider's token body. Older tokens carry the user
// only in sub.
type AccessTokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// VerifyAccessToken checks signature, issuer and expiry and returns the
// caller's user id. When cfg.ExpirationMinutes is set, a token whose iat is
// older than that is refused even if its exp is still ahead.
func VerifyAccessToken(cfg config.JWTConfig, raw string) (string, error) {
	return verifyAt(cfg, raw, time.Now())
}

func verifyAt(cfg config.JWTConfig, raw string, now time.Time) (string, error) {
	if cfg.Secret == "" {
		return "", ErrNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	var claims AccessTokenClaims
	if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return "", err
	}

	if maxAge := time.Duration(cfg.ExpirationMinutes) * time.Minute; maxAge > 0 && claims.IssuedAt != nil {
		if age := now.Sub(claims.IssuedAt.Time); age > maxAge+clockSkew {
			return "", fmt.Errorf("%w: %s old", ErrTokenTooOld, age.Round(time.Second))
		}
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return "", ErrMissingUser
	}
	return userID, nil
}
