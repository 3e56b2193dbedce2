package jwt

import (
	"encoding/base64"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/certauth/certstore"
	"github.com/MrEthical07/certauth/extract"
)

// MaxClockSkew bounds PolicyOptions.ClockSkew.
const MaxClockSkew = 5 * time.Minute

// PolicyOptions selects how incoming tokens are checked.
//
// Audience and issuer checks are off unless enabled here. That widens acceptance
// to tokens minted for other audiences or by other issuers that share the key.
type PolicyOptions struct {
	ValidateAudience bool
	ValidateIssuer   bool
	Audience         string
	Issuer           string
	ClockSkew        time.Duration
	Extraction       extract.Strategy
}

// ValidationPolicy is the immutable set of parameters an authentication pipeline
// applies to every candidate token. It holds the verification key only.
type ValidationPolicy struct {
	key              certstore.VerificationKey
	validateAudience bool
	validateIssuer   bool
	audience         string
	issuer           string
	clockSkew        time.Duration
	extraction       extract.Strategy
}

// BuildPolicy derives a policy from the public half of identity.
func BuildPolicy(identity *certstore.SigningIdentity, opts PolicyOptions) (*ValidationPolicy, error) {
	if identity == nil {
		return nil, errors.New("nil signing identity")
	}
	key := identity.VerificationKey()
	if key.IsZero() {
		return nil, errors.New("signing identity has no public key")
	}
	if _, err := methodFor(key.Algorithm); err != nil {
		return nil, err
	}

	opts.Audience = strings.TrimSpace(opts.Audience)
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	if opts.ClockSkew < 0 || opts.ClockSkew > MaxClockSkew {
		return nil, errors.New("invalid clock skew configuration")
	}
	if opts.ValidateAudience && opts.Audience == "" {
		return nil, errors.New("audience validation requires an audience")
	}
	if opts.ValidateIssuer && opts.Issuer == "" {
		return nil, errors.New("issuer validation requires an issuer")
	}
	if opts.Extraction == nil {
		opts.Extraction = extract.None()
	}

	return &ValidationPolicy{
		key:              key,
		validateAudience: opts.ValidateAudience,
		validateIssuer:   opts.ValidateIssuer,
		audience:         opts.Audience,
		issuer:           opts.Issuer,
		clockSkew:        opts.ClockSkew,
		extraction:       opts.Extraction,
	}, nil
}

// Validate checks token against the policy at now.
//
// Order: structure, algorithm, key id, signature, then time claims and finally
// issuer/audience when enabled. Rejections are *ValidationError values.
func (p *ValidationPolicy) Validate(token string, now time.Time) (*Claims, error) {
	if p == nil || p.key.IsZero() {
		return nil, NewValidationError(ErrSignatureMismatch, errors.New("no verification key"))
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewValidationError(ErrMalformedToken, errors.New("empty token"))
	}

	parsed, err := jwt.NewParser(p.parserOptions(now)...).ParseWithClaims(token, jwt.MapClaims{}, p.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) && undecodableSignature(token) {
			return nil, NewValidationError(ErrSignatureMismatch, err)
		}
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, NewValidationError(ErrMalformedToken, jwt.ErrTokenInvalidClaims)
	}
	if err := p.checkIdentityClaims(claims); err != nil {
		return nil, err
	}
	return newClaims(claims), nil
}

// checkIdentityClaims applies the optional iss/aud checks. A missing claim counts
// as a mismatch.
func (p *ValidationPolicy) checkIdentityClaims(claims jwt.MapClaims) error {
	if p.validateIssuer {
		iss, err := claims.GetIssuer()
		if err != nil || iss != p.issuer {
			return NewValidationError(ErrIssuerMismatch, jwt.ErrTokenInvalidIssuer)
		}
	}
	if p.validateAudience {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, p.audience) {
			return NewValidationError(ErrAudienceMismatch, jwt.ErrTokenInvalidAudience)
		}
	}
	return nil
}

func (p *ValidationPolicy) parserOptions(now time.Time) []jwt.ParserOption {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{p.key.Algorithm}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
	}
	if p.clockSkew > 0 {
		options = append(options, jwt.WithLeeway(p.clockSkew))
	}
	return options
}

// undecodableSignature reports whether header and payload decode but the
// signature segment does not. A corrupted signature is a mismatch, not a
// malformed token.
func undecodableSignature(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	enc := base64.RawURLEncoding.Strict()
	for _, seg := range parts[:2] {
		if _, err := enc.DecodeString(seg); err != nil {
			return false
		}
	}
	_, err := enc.DecodeString(parts[2])
	return err != nil
}

func (p *ValidationPolicy) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != p.key.Algorithm {
		return nil, NewValidationError(ErrSignatureMismatch, errors.New("unexpected signing algorithm"))
	}
	if kid, ok := t.Header["kid"].(string); ok && kid != p.key.KeyID {
		return nil, NewValidationError(ErrSignatureMismatch, errors.New("unknown kid"))
	}
	return p.key.PublicKey, nil
}

// VerificationKey returns the public key material the policy verifies with.
func (p *ValidationPolicy) VerificationKey() certstore.VerificationKey { return p.key }

// ValidateAudience reports whether aud is checked.
func (p *ValidationPolicy) ValidateAudience() bool { return p.validateAudience }

// ValidateIssuer reports whether iss is checked.
func (p *ValidationPolicy) ValidateIssuer() bool { return p.validateIssuer }

// Audience returns the expected audience ("" when unchecked).
func (p *ValidationPolicy) Audience() string { return p.audience }

// Issuer returns the expected issuer ("" when unchecked).
func (p *ValidationPolicy) Issuer() string { return p.issuer }

// ClockSkew returns the tolerated clock difference.
func (p *ValidationPolicy) ClockSkew() time.Duration { return p.clockSkew }

// Extraction returns the configured alternate extraction strategy.
func (p *ValidationPolicy) Extraction() extract.Strategy { return p.extraction }

// Extractor returns the full per-request extraction order: the alternate strategy
// first, then the Authorization bearer header.
func (p *ValidationPolicy) Extractor() extract.Strategy { return extract.Pipeline(p.extraction) }

// LoadID returns the load that produced the verification key.
func (p *ValidationPolicy) LoadID() string { return p.key.LoadID }
