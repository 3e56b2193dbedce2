package jwt

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrEthical07/certauth/certstore"
)

// DefaultTTL is the token lifetime used when IssuerConfig.TTL is zero.
const DefaultTTL = time.Hour

// IssuerConfig controls token construction.
//
// IssuerConfig instances are intended to be configured during initialization and then treated as immutable.
type IssuerConfig struct {
	TTL time.Duration
	// Issuer and Audience are stamped into tokens unless the caller supplied iss/aud.
	Issuer   string
	Audience string
	// IncludeTokenID adds a random jti when the caller did not supply one. Required
	// for revocation. Off by default so equal input yields equal tokens.
	IncludeTokenID bool
}

// Issuer signs bearer tokens with the private key of a [certstore.SigningIdentity].
//
// Issuer holds no mutable state and is safe for concurrent use.
type Issuer struct {
	identity *certstore.SigningIdentity
	method   jwt.SigningMethod
	cfg      IssuerConfig
}

// IssuedToken is a signed token and the values it was built from.
type IssuedToken struct {
	Raw       string
	Header    map[string]any
	Claims    map[string]any
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
	ID        string
}

// String returns the compact serialization.
func (t *IssuedToken) String() string {
	if t == nil {
		return ""
	}
	return t.Raw
}

// NewIssuer binds an issuer to identity. The signing algorithm is fixed by the
// identity's key type.
func NewIssuer(identity *certstore.SigningIdentity, cfg IssuerConfig) (*Issuer, error) {
	if identity == nil || identity.Signer() == nil {
		return nil, ErrNoSigningKey
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	method, err := methodFor(identity.Algorithm())
	if err != nil {
		return nil, err
	}

	return &Issuer{identity: identity, method: method, cfg: cfg}, nil
}

// Issue builds and signs a token for subjectClaims at now.
//
// Claims are copied verbatim; their meaning is the caller's responsibility. iat,
// nbf and exp are always set from now and the configured TTL and replace any
// caller values with those names.
//
// Time claims are NumericDate values with one-second resolution: now is
// truncated to the second. Without a jti, two calls with equal claims whose now
// falls in the same second return the same token; set IncludeTokenID when
// tokens must be unique.
func (i *Issuer) Issue(subjectClaims map[string]any, now time.Time) (*IssuedToken, error) {
	if i == nil || i.identity == nil || i.identity.Signer() == nil {
		return nil, ErrNoSigningKey
	}

	claims := make(jwt.MapClaims, len(subjectClaims)+6)
	maps.Copy(claims, subjectClaims)

	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(i.cfg.TTL))
	claims[ClaimIssuedAt] = iat
	claims[ClaimNotBefore] = iat
	claims[ClaimExpiresAt] = exp

	if _, ok := claims[ClaimIssuer]; !ok && i.cfg.Issuer != "" {
		claims[ClaimIssuer] = i.cfg.Issuer
	}
	if _, ok := claims[ClaimAudience]; !ok && i.cfg.Audience != "" {
		claims[ClaimAudience] = i.cfg.Audience
	}
	if _, ok := claims[ClaimTokenID]; !ok && i.cfg.IncludeTokenID {
		claims[ClaimTokenID] = uuid.NewString()
	}

	token := jwt.NewWithClaims(i.method, claims)
	token.Header["kid"] = i.identity.KeyID()
	token.Header["x5t"] = i.identity.X5T()

	raw, err := token.SignedString(i.identity.Signer())
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	id, _ := claims[ClaimTokenID].(string)
	return &IssuedToken{
		Raw:       raw,
		Header:    maps.Clone(token.Header),
		Claims:    maps.Clone(map[string]any(claims)),
		IssuedAt:  iat.Time,
		NotBefore: iat.Time,
		ExpiresAt: exp.Time,
		ID:        id,
	}, nil
}

// Algorithm returns the JWS alg value used for every token.
func (i *Issuer) Algorithm() string {
	if i == nil || i.method == nil {
		return ""
	}
	return i.method.Alg()
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	if i == nil {
		return 0
	}
	return i.cfg.TTL
}

// LoadID returns the load that produced the issuer's identity.
func (i *Issuer) LoadID() string {
	if i == nil {
		return ""
	}
	return i.identity.LoadID()
}

func methodFor(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case "RS256":
		return jwt.SigningMethodRS256, nil
	case "ES256":
		return jwt.SigningMethodES256, nil
	case "ES384":
		return jwt.SigningMethodES384, nil
	case "ES512":
		return jwt.SigningMethodES512, nil
	case "EdDSA":
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
}
