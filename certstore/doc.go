// Package certstore loads the asymmetric signing identity used by certauth from a
// passphrase-protected PKCS#12 container.
//
// A [SigningIdentity] is loaded once during startup and shared read-only with the
// token issuer and the validation policy. The private key is never exported as a
// field: issuers reach it through [SigningIdentity.Signer], validators only ever
// receive the [VerificationKey] half.
//
// # Errors
//
//   - [ErrCertificateNotFound] — the container file does not exist.
//   - [ErrCertificateUnreadable] — wrong passphrase, malformed container, unsupported
//     or mismatched key material.
//   - [ErrCertificateExpired] — the load time is outside the certificate validity window.
//
// All three are fatal at startup; no partially-initialized identity is ever returned.
package certstore
