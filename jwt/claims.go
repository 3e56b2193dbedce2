package jwt

import (
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Registered claim names the issuer controls or reads.
const (
	ClaimSubject   = "sub"
	ClaimIssuer    = "iss"
	ClaimAudience  = "aud"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimTokenID   = "jti"
)

// Claims is the payload of a token that passed validation. It is a private copy;
// callers may read it freely.
type Claims struct {
	raw jwt.MapClaims
}

func newClaims(m jwt.MapClaims) *Claims {
	return &Claims{raw: m}
}

// Map returns a copy of every claim.
func (c *Claims) Map() map[string]any {
	if c == nil {
		return nil
	}
	return maps.Clone(map[string]any(c.raw))
}

// Get returns a single claim value.
func (c *Claims) Get(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.raw[name]
	return v, ok
}

// Subject returns the sub claim, or "".
func (c *Claims) Subject() string {
	if c == nil {
		return ""
	}
	s, _ := c.raw.GetSubject()
	return s
}

// Issuer returns the iss claim, or "".
func (c *Claims) Issuer() string {
	if c == nil {
		return ""
	}
	s, _ := c.raw.GetIssuer()
	return s
}

// Audience returns the aud claim as a list.
func (c *Claims) Audience() []string {
	if c == nil {
		return nil
	}
	aud, _ := c.raw.GetAudience()
	return aud
}

// ID returns the jti claim, or "".
func (c *Claims) ID() string {
	if c == nil {
		return ""
	}
	s, _ := c.raw[ClaimTokenID].(string)
	return s
}

// ExpiresAt returns exp, or the zero time.
func (c *Claims) ExpiresAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return numericTime(c.raw.GetExpirationTime())
}

// IssuedAt returns iat, or the zero time.
func (c *Claims) IssuedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return numericTime(c.raw.GetIssuedAt())
}

// NotBefore returns nbf, or the zero time.
func (c *Claims) NotBefore() time.Time {
	if c == nil {
		return time.Time{}
	}
	return numericTime(c.raw.GetNotBefore())
}

func numericTime(d *jwt.NumericDate, err error) time.Time {
	if err != nil || d == nil {
		return time.Time{}
	}
	return d.Time
}
