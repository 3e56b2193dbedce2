package middleware

import (
	"net/http"

	"github.com/MrEthical07/certauth"
)

// RequireJWTOnly returns middleware that overrides the validation mode to
// [certauth.ModeJWTOnly] for the wrapped handler, skipping Redis entirely.
func RequireJWTOnly(engine *certauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, certauth.ModeJWTOnly)
}
