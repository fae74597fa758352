package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotJWT = errors.New("credential is not a JWT")

// Claims is what the client can read from a JWT credential without the
// signing key. The token stays opaque for every other purpose.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// ParseClaims decodes the registered claims of token without verifying
// its signature. Tokens that are not JWTs yield ErrNotJWT.
func ParseClaims(token string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &rc); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}

	c := &Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}

// Expired reports whether the token carried an exp claim that is not after now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}
