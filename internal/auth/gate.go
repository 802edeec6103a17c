// Package auth implements the stateless shared-secret gate.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"imgbed/pkg/config"
)

// ErrForbidden indicates the supplied password did not match the configured
// secret.
var ErrForbidden = errors.New("password mismatch")

// OpenToken is returned when no secret is configured at all: absence of
// configuration means open access, not a fail-closed default.
const OpenToken = "open"

// Gate verifies the shared secret and issues an opaque token. The token
// carries no server-side session state; it only lets the client remember
// that it passed the check.
type Gate struct {
	password     string
	passwordHash string
	tokenTTL     time.Duration
}

// NewGate creates a gate from the auth configuration.
func NewGate(cfg *config.AuthConfig) *Gate {
	return &Gate{
		password:     cfg.Password,
		passwordHash: cfg.PasswordHash,
		tokenTTL:     cfg.TokenTTL,
	}
}

// Open reports whether the gate accepts any password.
func (g *Gate) Open() bool {
	return g.password == "" && g.passwordHash == ""
}

// Verify checks the supplied password. With no secret configured it always
// succeeds with the open token. On a match it returns a signed stateless
// token; otherwise ErrForbidden.
func (g *Gate) Verify(password string) (string, error) {
	if g.Open() {
		return OpenToken, nil
	}

	if g.passwordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(g.passwordHash), []byte(password)) != nil {
			return "", ErrForbidden
		}
	} else if subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) != 1 {
		return "", ErrForbidden
	}

	return g.issueToken()
}

func (g *Gate) issueToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.signingKey())
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (g *Gate) signingKey() []byte {
	if g.passwordHash != "" {
		return []byte(g.passwordHash)
	}
	return []byte(g.password)
}
