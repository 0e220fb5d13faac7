package erp

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "sync",
		"exp": exp.Unix(),
	}).SignedString([]byte("erp-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	issued := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	t.Run("opaque token uses ttl", func(t *testing.T) {
		assert.Equal(t, issued.Add(time.Hour), tokenExpiry("abc123", issued, time.Hour))
	})

	t.Run("short-lived jwt wins", func(t *testing.T) {
		exp := issued.Add(10 * time.Minute)
		got := tokenExpiry(signedToken(t, exp), issued, time.Hour)
		assert.Equal(t, exp.Add(-tokenExpirySkew), got)
	})

	t.Run("long-lived jwt capped by ttl", func(t *testing.T) {
		got := tokenExpiry(signedToken(t, issued.Add(24*time.Hour)), issued, time.Hour)
		assert.Equal(t, issued.Add(time.Hour), got)
	})

	t.Run("jwt without exp uses ttl", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "sync"}).SignedString([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, issued.Add(time.Hour), tokenExpiry(token, issued, time.Hour))
	})
}
