package middleware

import (
	"net/http"

	"github.com/MrEthical07/certauth"
)

func RequireStrict(engine *certauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, certauth.ModeStrict)
}
