// Package auth provides credential verification for web sessions and
// browser-extension keys.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSessionToken indicates the JWT failed verification.
	ErrInvalidSessionToken = errors.New("invalid session token")
	// ErrMissingSubject indicates the JWT carries no user subject.
	ErrMissingSubject = errors.New("session token missing subject")
)

// SessionClaims are the claims the identity provider puts in web session
// tokens. Only sub and email are consumed here.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionVerifier validates HS256 session JWTs minted by the external
// identity provider with a shared secret.
type SessionVerifier struct {
	secret []byte
}

// NewSessionVerifier creates a verifier for the given shared secret.
func NewSessionVerifier(secret string) *SessionVerifier {
	return &SessionVerifier{secret: []byte(secret)}
}

// Verify parses and validates a session token and returns its claims.
// Expired or tampered tokens fail with ErrInvalidSessionToken.
func (v *SessionVerifier) Verify(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSessionToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidSessionToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}
