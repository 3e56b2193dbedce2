package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MrEthical07/certauth"
	"github.com/MrEthical07/certauth/extract"
	"github.com/MrEthical07/certauth/internal/rate"
	"github.com/MrEthical07/certauth/metrics/export/prometheus"
	"github.com/MrEthical07/certauth/middleware"
)

type tokenRequest struct {
	Subject string         `json:"sub"`
	Claims  map[string]any `json:"claims,omitempty"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenID     string    `json:"jti,omitempty"`
}

// newRouter mounts the demo API:
//
//	GET  /healthz   liveness
//	GET  /metrics   Prometheus exposition
//	POST /token     issue a token for {"sub": ...}, limited when limiter is set
//	GET  /whoami    principal of a valid token (configured mode)
//	POST /revoke    revoke the presented token (strict routes)
func newRouter(engine *certauth.Engine, limiter *rate.Limiter, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(echoRequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLog(log))
	r.Use(chimw.Recoverer)
	r.Use(clientIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", prometheus.NewCollector(engine).Handler())

	r.Post("/token", func(w http.ResponseWriter, req *http.Request) {
		var body tokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16)).Decode(&body); err != nil || body.Subject == "" {
			middleware.WriteProblem(w, req, http.StatusBadRequest, "sub required")
			return
		}
		if err := limiter.AllowIssue(req.Context(), body.Subject, remoteHost(req)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				middleware.WriteProblem(w, req, http.StatusTooManyRequests, "issuance limit reached for this window")
				return
			}
			log.Error("issue limiter failed", zap.Error(err))
			middleware.WriteProblem(w, req, http.StatusServiceUnavailable, "issuance limiter unavailable")
			return
		}

		claims := make(map[string]any, len(body.Claims)+1)
		for k, v := range body.Claims {
			claims[k] = v
		}
		claims["sub"] = body.Subject

		tok, err := engine.Issue(req.Context(), claims)
		if err != nil {
			log.Error("issue failed", zap.Error(err))
			middleware.WriteProblem(w, req, http.StatusInternalServerError, "token issuance failed")
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: tok.Raw,
			TokenType:   "Bearer",
			ExpiresAt:   tok.ExpiresAt.UTC(),
			TokenID:     tok.ID,
		})
	})

	r.With(middleware.Guard(engine, certauth.ModeInherit)).Get("/whoami", func(w http.ResponseWriter, req *http.Request) {
		p, _ := middleware.PrincipalFromContext(req.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"sub":        p.Subject,
			"jti":        p.TokenID,
			"expires_at": p.ExpiresAt.UTC(),
			"mode":       p.Mode.String(),
		})
	})

	r.With(middleware.RequireStrict(engine)).Post("/revoke", func(w http.ResponseWriter, req *http.Request) {
		token, _ := engine.Policy().Extractor().Extract(extract.FromHTTP(req))
		if err := engine.Revoke(req.Context(), token); err != nil {
			if errors.Is(err, certauth.ErrRevocationDisabled) {
				middleware.WriteProblem(w, req, http.StatusConflict, "revocation is not enabled")
				return
			}
			log.Error("revoke failed", zap.Error(err))
			middleware.WriteProblem(w, req, http.StatusInternalServerError, "revocation failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// echoRequestID exposes chi's request id so error bodies and clients can quote it.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

// requestLog writes one entry per request. Headers are never logged, so
// bearer tokens stay out of the log.
func requestLog(log *zap.Logger) func(http.Handler) http.Handler {
	log = log.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("request_id", chimw.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// clientIP records the peer address for audit events. RealIP has already
// rewritten RemoteAddr from forwarding headers.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(certauth.WithClientIP(r.Context(), remoteHost(r))))
	})
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
