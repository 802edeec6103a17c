package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"imgbed/pkg/config"
)

func newGate(password, hash string) *Gate {
	return NewGate(&config.AuthConfig{
		Password:     password,
		PasswordHash: hash,
		TokenTTL:     time.Hour,
	})
}

func TestVerify_OpenWhenNoSecretConfigured(t *testing.T) {
	gate := newGate("", "")

	token, err := gate.Verify("anything")
	require.NoError(t, err)
	assert.Equal(t, OpenToken, token)
	assert.True(t, gate.Open())

	// The empty password verifies too.
	token, err = gate.Verify("")
	require.NoError(t, err)
	assert.Equal(t, OpenToken, token)
}

func TestVerify_CorrectPassword(t *testing.T) {
	gate := newGate("s3cret", "")

	token, err := gate.Verify("s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEqual(t, OpenToken, token)

	// The token is a valid signed claim set, nothing session-bound.
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "admin", claims.Subject)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestVerify_WrongPassword(t *testing.T) {
	gate := newGate("s3cret", "")

	_, err := gate.Verify("wrong")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = gate.Verify("")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerify_BcryptHashVariant(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	gate := newGate("", string(hash))

	token, err := gate.Verify("s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = gate.Verify("wrong")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerify_HashTakesPrecedenceOverPlaintext(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	require.NoError(t, err)

	gate := newGate("plain", string(hash))

	_, err = gate.Verify("plain")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = gate.Verify("hashed")
	assert.NoError(t, err)
}
