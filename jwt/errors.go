package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSigningKey is returned by an issuer that holds no private key. It signals
	// a wiring mistake, not a runtime condition.
	ErrNoSigningKey = errors.New("no signing key")
	// ErrTokenValidationFailed matches every *ValidationError via errors.Is.
	ErrTokenValidationFailed = errors.New("token validation failed")

	// ErrSignatureMismatch means the signature does not verify under the policy key
	// (including tokens signed with another algorithm or another key id).
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrExpired means the validation time is at or past exp (after skew).
	ErrExpired = errors.New("token expired")
	// ErrNotYetValid means nbf or iat lies after the validation time (after skew).
	ErrNotYetValid = errors.New("token not yet valid")
	// ErrMalformedToken means the token is not a well-formed compact JWS.
	ErrMalformedToken = errors.New("malformed token")
	// ErrAudienceMismatch means audience validation is enabled and aud does not match.
	ErrAudienceMismatch = errors.New("audience mismatch")
	// ErrIssuerMismatch means issuer validation is enabled and iss does not match.
	ErrIssuerMismatch = errors.New("issuer mismatch")
	// ErrRevoked means the token id is on the revocation list.
	ErrRevoked = errors.New("token revoked")
)

// ValidationError reports why a token was rejected.
//
// errors.Is matches both ErrTokenValidationFailed and the Reason sentinel.
type ValidationError struct {
	Reason error
	Err    error
}

// NewValidationError wraps cause under reason.
func NewValidationError(reason, cause error) *ValidationError {
	return &ValidationError{Reason: reason, Err: cause}
}

func (e *ValidationError) Error() string {
	if e.Err == nil || e.Err == e.Reason {
		return fmt.Sprintf("%s: %s", ErrTokenValidationFailed, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTokenValidationFailed, e.Reason, e.Err)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrTokenValidationFailed || target == e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the rejection reason carried by err, or nil.
func ReasonOf(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return nil
}

// classify maps golang-jwt parser errors onto rejection reasons. Signature errors
// are checked first because the parser verifies the signature before any claim.
func classify(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return NewValidationError(ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return NewValidationError(ErrSignatureMismatch, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return NewValidationError(ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return NewValidationError(ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return NewValidationError(ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return NewValidationError(ErrIssuerMismatch, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return NewValidationError(ErrAudienceMismatch, err)
	default:
		return NewValidationError(ErrMalformedToken, err)
	}
}
