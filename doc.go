// Package certauth issues and validates certificate-backed JWT access tokens.
//
// A single PKCS#12 container is loaded once at startup (see package certstore).
// Its private key signs tokens; its public key, wrapped in an immutable
// [jwt.ValidationPolicy], verifies them. Both come from the same load.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Validation modes
//
// ModeJWTOnly checks signature, expiry and not-before (and audience or issuer when
// enabled) with no I/O. ModeStrict additionally consults a Redis denylist of token
// ids and fails closed when Redis is unreachable.
//
// # Token extraction
//
// Authenticate looks for a token in the configured alternate source first (a
// header, cookie or query parameter, default none) and then in the
// Authorization bearer header. When both carry a token, the alternate wins.
//
// # What this package must NOT do
//
//   - Expose the private key beyond the issuer.
//   - Log or audit raw tokens.
//   - Reload the certificate after Build.
package certauth
