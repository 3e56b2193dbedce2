package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/certauth"
	"github.com/MrEthical07/certauth/extract"
)

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by a guard.
func PrincipalFromContext(ctx context.Context) (*certauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*certauth.Principal)
	return p, ok
}

// Guard authenticates every request with engine under routeMode. Tokens are
// looked up in the engine's configured order.
func Guard(engine *certauth.Engine, routeMode certauth.RouteMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w, r, false)
				return
			}

			p, err := engine.Authenticate(r.Context(), extract.FromHTTP(r), routeMode)
			if err != nil {
				unauthorized(w, r, !errors.Is(err, certauth.ErrTokenMissing))
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// unauthorized answers 401 with a bearer challenge and a problem body. The
// rejection reason stays in logs and metrics.
func unauthorized(w http.ResponseWriter, r *http.Request, tokenPresent bool) {
	challenge, detail := "Bearer", "bearer token required"
	if tokenPresent {
		challenge, detail = `Bearer error="invalid_token"`, "bearer token rejected"
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteProblem(w, r, http.StatusUnauthorized, detail)
}
