package erp

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpirySkew renews JWTs slightly before the server rejects them.
const tokenExpirySkew = 30 * time.Second

// tokenExpiry returns when a token acquired at issued should be renewed.
// Opaque tokens live for ttl. JWTs live for ttl or until their exp claim,
// whichever comes first. The signature is not checked; the ERP does that.
func tokenExpiry(token string, issued time.Time, ttl time.Duration) time.Time {
	expiresAt := issued.Add(ttl)

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return expiresAt
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return expiresAt
	}
	if claimed := exp.Add(-tokenExpirySkew); claimed.Before(expiresAt) {
		return claimed
	}
	return expiresAt
}
