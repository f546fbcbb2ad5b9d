package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates a malformed, expired, or mis-signed token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSubject indicates a valid token without a subject claim.
	ErrMissingSubject = errors.New("token has no subject")
)

// Config holds JWT configuration.
type Config struct {
	SecretKey string
}

// Validator validates HMAC-signed tokens presented on the realtime handshake.
type Validator struct {
	secret []byte
}

// NewValidator creates a new Validator instance.
func NewValidator(cfg Config) *Validator {
	return &Validator{secret: []byte(cfg.SecretKey)}
}

// ExtractUserID validates the token and returns its subject claim.
func (v *Validator) ExtractUserID(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}
