package certauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/certauth/certstore"
	"github.com/MrEthical07/certauth/extract"
	"github.com/MrEthical07/certauth/jwt"
	"github.com/MrEthical07/certauth/revocation"
)

// Engine issues and validates tokens for one certificate identity.
//
// Engine is immutable after Build and safe for concurrent use. Issue and
// JWT-only validation perform no I/O.
type Engine struct {
	config      Config
	identity    *certstore.SigningIdentity
	issuer      *jwt.Issuer
	policy      *jwt.ValidationPolicy
	extractor   extract.Strategy
	revocations *revocation.Store
	audit       *auditDispatcher
	metrics     *Metrics
	log         *zap.Logger
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Policy returns the validation policy shared by every request.
func (e *Engine) Policy() *jwt.ValidationPolicy {
	if e == nil {
		return nil
	}
	return e.policy
}

// Certificate returns metadata of the loaded signing certificate.
func (e *Engine) Certificate() certstore.Metadata {
	if e == nil {
		return certstore.Metadata{}
	}
	return e.identity.Metadata()
}

// Issue signs claims with iat and nbf set to now and exp set to now plus the TTL.
func (e *Engine) Issue(ctx context.Context, claims map[string]any) (*jwt.IssuedToken, error) {
	return e.IssueAt(ctx, claims, time.Now())
}

// IssueAt is Issue with an explicit issuance time.
func (e *Engine) IssueAt(ctx context.Context, claims map[string]any, now time.Time) (*jwt.IssuedToken, error) {
	if e == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}

	tok, err := e.issuer.Issue(claims, now)
	if err != nil {
		e.metricInc(MetricTokenIssueFailure)
		e.log.Error("token issue failed", zap.Error(err))
		return nil, err
	}

	e.metricInc(MetricTokenIssued)
	subject, _ := tok.Claims[jwt.ClaimSubject].(string)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditTokenIssued,
		Subject:   subject,
		TokenID:   tok.ID,
		KeyID:     e.identity.KeyID(),
		Success:   true,
		Metadata: map[string]string{
			"expires_at": tok.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
	return tok, nil
}

// Validate checks token under routeMode at the current time.
func (e *Engine) Validate(ctx context.Context, token string, routeMode RouteMode) (*Principal, error) {
	return e.ValidateAt(ctx, token, routeMode, time.Now())
}

// ValidateAt checks token under routeMode at now.
//
// ModeJWTOnly verifies signature and claims without I/O. ModeStrict also rejects
// denylisted token ids; if the revocation store cannot answer the token is
// rejected with ErrRevocationUnavailable.
func (e *Engine) ValidateAt(ctx context.Context, token string, routeMode RouteMode, now time.Time) (*Principal, error) {
	if e == nil || e.policy == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	mode, err := e.resolveRouteMode(routeMode)
	if err != nil {
		return nil, err
	}

	claims, err := e.policy.Validate(token, now)
	if err != nil {
		e.reject(ctx, err, nil)
		return nil, err
	}

	if mode == ModeStrict {
		if err := e.checkRevocation(ctx, claims); err != nil {
			e.reject(ctx, err, claims)
			return nil, err
		}
	}

	e.metricInc(MetricValidateSuccess)
	return newPrincipal(claims, mode), nil
}

func (e *Engine) checkRevocation(ctx context.Context, claims *jwt.Claims) error {
	if e.revocations == nil {
		e.metricInc(MetricRevocationUnavailable)
		return fmt.Errorf("%w: no redis client", ErrRevocationUnavailable)
	}
	jti := claims.ID()
	if jti == "" {
		return jwt.NewValidationError(jwt.ErrMalformedToken, errors.New("strict validation requires a jti claim"))
	}
	revoked, err := e.revocations.IsRevoked(ctx, jti)
	if err != nil {
		e.metricInc(MetricRevocationUnavailable)
		e.log.Warn("revocation lookup failed; rejecting", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}
	if revoked {
		return jwt.NewValidationError(jwt.ErrRevoked, nil)
	}
	return nil
}

// Authenticate extracts a token from r using the configured order (alternate
// source first, then the Authorization bearer header) and validates it.
//
// Every failure matches ErrUnauthorized. A request with no token also matches
// ErrTokenMissing.
func (e *Engine) Authenticate(ctx context.Context, r extract.Request, routeMode RouteMode) (*Principal, error) {
	if e == nil || e.extractor == nil {
		return nil, ErrEngineNotReady
	}
	token, ok := e.extractor.Extract(r)
	if !ok {
		e.metricInc(MetricTokenMissing)
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenMissing)
	}
	p, err := e.Validate(ctx, token, routeMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return p, nil
}

// Revoke denylists a valid token until its expiry.
func (e *Engine) Revoke(ctx context.Context, token string) error {
	return e.RevokeAt(ctx, token, time.Now())
}

// RevokeAt is Revoke with an explicit current time.
func (e *Engine) RevokeAt(ctx context.Context, token string, now time.Time) error {
	if e == nil || e.policy == nil {
		return ErrEngineNotReady
	}
	if e.revocations == nil {
		return fmt.Errorf("%w: no redis client", ErrRevocationDisabled)
	}

	claims, err := e.policy.Validate(token, now)
	if err != nil {
		return err
	}
	jti := claims.ID()
	if jti == "" {
		return fmt.Errorf("%w: token has no jti", ErrRevocationDisabled)
	}

	if err := e.revocations.RevokeFor(ctx, jti, claims.ExpiresAt().Sub(now)+e.policy.ClockSkew()); err != nil {
		e.log.Error("revoke failed", zap.String("jti", jti), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditTokenRevoked,
		Subject:   claims.Subject(),
		TokenID:   jti,
		KeyID:     e.identity.KeyID(),
		Success:   true,
	})
	return nil
}

func (e *Engine) resolveRouteMode(routeMode RouteMode) (ValidationMode, error) {
	switch routeMode {
	case ModeInherit:
		switch e.config.ValidationMode {
		case ModeJWTOnly:
			return ModeJWTOnly, nil
		case ModeStrict:
			return ModeStrict, nil
		default:
			return 0, ErrInvalidRouteMode
		}
	case ModeJWTOnly:
		return ModeJWTOnly, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return 0, ErrInvalidRouteMode
	}
}

var rejectMetrics = map[error]MetricID{
	jwt.ErrSignatureMismatch: MetricRejectSignatureMismatch,
	jwt.ErrExpired:           MetricRejectExpired,
	jwt.ErrNotYetValid:       MetricRejectNotYetValid,
	jwt.ErrMalformedToken:    MetricRejectMalformed,
	jwt.ErrAudienceMismatch:  MetricRejectAudienceMismatch,
	jwt.ErrIssuerMismatch:    MetricRejectIssuerMismatch,
	jwt.ErrRevoked:           MetricRejectRevoked,
}

// reject records a failed validation. The token itself is never logged.
func (e *Engine) reject(ctx context.Context, err error, claims *jwt.Claims) {
	e.metricInc(MetricValidateFailure)

	reason := "unknown"
	if r := jwt.ReasonOf(err); r != nil {
		reason = r.Error()
		if id, ok := rejectMetrics[r]; ok {
			e.metricInc(id)
		}
	} else if errors.Is(err, ErrRevocationUnavailable) {
		reason = ErrRevocationUnavailable.Error()
	}

	e.log.Debug("token rejected", zap.String("reason", reason))
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditTokenRejected,
		Subject:   claims.Subject(),
		TokenID:   claims.ID(),
		KeyID:     e.identity.KeyID(),
		Success:   false,
		Error:     reason,
	})
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}
