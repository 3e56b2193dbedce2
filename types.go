package certauth

import (
	"time"

	"github.com/MrEthical07/certauth/jwt"
)

// Principal is the caller identity established by a validated token.
type Principal struct {
	Subject   string
	TokenID   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Mode      ValidationMode
	Claims    *jwt.Claims
}

func newPrincipal(claims *jwt.Claims, mode ValidationMode) *Principal {
	return &Principal{
		Subject:   claims.Subject(),
		TokenID:   claims.ID(),
		Issuer:    claims.Issuer(),
		Audience:  claims.Audience(),
		IssuedAt:  claims.IssuedAt(),
		ExpiresAt: claims.ExpiresAt(),
		Mode:      mode,
		Claims:    claims,
	}
}
