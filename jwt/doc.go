// Package jwt issues and verifies compact JWS tokens bound to a certificate
// identity loaded by package certstore.
//
// An Issuer signs with the private key. A ValidationPolicy holds the public key
// only, plus the audience, issuer, clock skew and extraction settings applied to
// incoming tokens. Every rejection is a *ValidationError whose reason is one of
// ErrSignatureMismatch, ErrExpired, ErrNotYetValid, ErrMalformedToken,
// ErrAudienceMismatch, ErrIssuerMismatch or ErrRevoked.
package jwt
