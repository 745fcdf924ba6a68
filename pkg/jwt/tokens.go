package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT indicates an opaque token, such as a tk_ API key.
var ErrNotJWT = errors.New("token is not a jwt")

// Claims defines the session token payload issued by the control plane.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

// GenerateToken issues a signed HS256 token for the subject with the given ttl.
func GenerateToken(subject, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			Issuer:    "temps",
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Inspect decodes the claims of token without verifying its signature. The
// client never holds the signing key; this is only used to spot expired
// sessions before a request is made.
func Inspect(token string) (*Claims, error) {
	trimmed := strings.TrimSpace(token)
	if strings.Count(trimmed, ".") != 2 {
		return nil, ErrNotJWT
	}
	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(trimmed, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Expired reports whether token is a JWT whose exp lies before now.
// Opaque tokens and tokens without exp never count as expired.
func Expired(token string, now time.Time) bool {
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
