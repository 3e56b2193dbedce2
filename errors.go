package certauth

import (
	"errors"

	"github.com/MrEthical07/certauth/certstore"
	"github.com/MrEthical07/certauth/jwt"
)

var (
	// ErrUnauthorized is returned by Authenticate for any rejected request. It wraps
	// the specific reason.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenMissing means no extraction strategy found a token.
	ErrTokenMissing = errors.New("token missing")
	// ErrInvalidRouteMode is returned for a mode other than ModeInherit,
	// ModeJWTOnly or ModeStrict.
	ErrInvalidRouteMode = errors.New("invalid route mode")
	// ErrRevocationUnavailable means strict validation could not reach the
	// revocation store. The token is rejected.
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
	// ErrRevocationDisabled means Revoke was called without a Redis client or
	// without token ids.
	ErrRevocationDisabled = errors.New("revocation disabled")
	// ErrEngineNotReady is returned by a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Certificate loading.
var (
	ErrCertificateNotFound   = certstore.ErrCertificateNotFound
	ErrCertificateUnreadable = certstore.ErrCertificateUnreadable
	ErrCertificateExpired    = certstore.ErrCertificateExpired
)

// Issuance and validation.
var (
	ErrNoSigningKey          = jwt.ErrNoSigningKey
	ErrTokenValidationFailed = jwt.ErrTokenValidationFailed
	ErrSignatureMismatch     = jwt.ErrSignatureMismatch
	ErrExpired               = jwt.ErrExpired
	ErrNotYetValid           = jwt.ErrNotYetValid
	ErrMalformedToken        = jwt.ErrMalformedToken
	ErrAudienceMismatch      = jwt.ErrAudienceMismatch
	ErrIssuerMismatch        = jwt.ErrIssuerMismatch
	ErrRevoked               = jwt.ErrRevoked
)
