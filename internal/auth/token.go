// Package auth mints and checks the short-lived tokens that let a client
// open an audio session for one form.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenFormat = errors.New("invalid token format")
	ErrTokenSig    = errors.New("invalid token signature")
	ErrTokenExp    = errors.New("token expired")
	ErrTokenSID    = errors.New("session id mismatch")
	ErrTokenForm   = errors.New("form id mismatch")
)

type Claims struct {
	SessionID string
	FormID    string
	Exp       int64
}

type sessionClaims struct {
	FormID string `json:"form_id"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs an HS256 token whose subject is the session id.
func GenerateSessionToken(secret string, c Claims) (string, error) {
	if secret == "" {
		return "", errors.New("token secret not configured")
	}
	if c.SessionID == "" {
		return "", ErrTokenFormat
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		FormID: c.FormID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.SessionID,
			ExpiresAt: jwt.NewNumericDate(time.Unix(c.Exp, 0)),
		},
	})
	return tok.SignedString([]byte(secret))
}

// ValidateSessionToken parses and validates the token. Empty expectations
// are not checked. skew extends the expiry.
func ValidateSessionToken(secret, token, expectSessionID, expectFormID string, now time.Time, skew time.Duration) (Claims, error) {
	var sc sessionClaims
	_, err := jwt.ParseWithClaims(token, &sc,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(skew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExp
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrTokenSig
	default:
		return Claims{}, ErrTokenFormat
	}
	c := Claims{SessionID: sc.Subject, FormID: sc.FormID, Exp: sc.ExpiresAt.Unix()}
	if expectSessionID != "" && c.SessionID != expectSessionID {
		return Claims{}, ErrTokenSID
	}
	if expectFormID != "" && c.FormID != expectFormID {
		return Claims{}, ErrTokenForm
	}
	return c, nil
}
