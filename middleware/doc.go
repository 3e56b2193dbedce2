// Package middleware exposes HTTP guards built on certauth.Engine.Authenticate.
//
// # Guards
//
//   - [Guard] uses the given route mode (ModeInherit follows Engine config).
//   - [RequireJWTOnly] verifies the token only, no Redis call.
//   - [RequireStrict] also checks the revocation denylist.
//
// Rejected requests get 401 with a WWW-Authenticate: Bearer challenge, carrying
// error="invalid_token" when a token was presented. Accepted requests carry the
// principal in their context; see [PrincipalFromContext].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Echo the rejection reason to the client.
package middleware
