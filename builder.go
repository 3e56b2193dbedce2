package certauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/certauth/certstore"
	"github.com/MrEthical07/certauth/extract"
	"github.com/MrEthical07/certauth/jwt"
	"github.com/MrEthical07/certauth/revocation"
)

// Builder assembles an Engine. A Builder is single use; configure it during
// startup and call Build once.
type Builder struct {
	config    Config
	identity  *certstore.SigningIdentity
	redis     redis.UniversalClient
	logger    *zap.Logger
	extractor extract.Strategy
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithIdentity supplies an already loaded signing identity. Build then skips the
// container load and ignores Config.Certificate.Path.
func (b *Builder) WithIdentity(id *certstore.SigningIdentity) *Builder {
	b.identity = id
	return b
}

// WithRedis enables the revocation store. Required for ModeStrict.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.logger = log
	return b
}

// WithExtractor overrides the configured alternate extraction strategy. The
// bearer header is still consulted after it.
func (b *Builder) WithExtractor(s extract.Strategy) *Builder {
	b.extractor = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, loads the certificate exactly once and
// derives both the issuer and the validation policy from that single load.
//
// Certificate errors are returned unchanged in the chain, so callers can match
// ErrCertificateNotFound, ErrCertificateUnreadable and ErrCertificateExpired.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ValidationMode == ModeStrict && b.redis == nil {
		return nil, errors.New("Strict mode requires redis client")
	}

	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("certauth")

	// -------- SIGNING IDENTITY --------
	identity := b.identity
	if identity == nil {
		path := strings.TrimSpace(cfg.Certificate.Path)
		if path == "" {
			return nil, fmt.Errorf("%w: Certificate Path is empty", ErrCertificateNotFound)
		}
		loaded, err := certstore.Load(path, cfg.Certificate.Passphrase)
		if err != nil {
			log.Error("certificate load failed", zap.String("path", path), zap.Error(err))
			return nil, fmt.Errorf("load certificate: %w", err)
		}
		identity = loaded
	}

	// -------- ISSUER & POLICY --------
	issuer, err := jwt.NewIssuer(identity, cfg.issuerConfig())
	if err != nil {
		return nil, err
	}

	opts, err := cfg.policyOptions()
	if err != nil {
		return nil, err
	}
	if b.extractor != nil {
		opts.Extraction = b.extractor
	}
	policy, err := jwt.BuildPolicy(identity, opts)
	if err != nil {
		return nil, err
	}
	if issuer.LoadID() != policy.LoadID() {
		return nil, errors.New("issuer and policy derived from different certificate loads")
	}

	engine := &Engine{
		config:    cfg,
		identity:  identity,
		issuer:    issuer,
		policy:    policy,
		extractor: policy.Extractor(),
		log:       log,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink, log.Named("audit")),
	}
	if b.redis != nil {
		engine.revocations = revocation.NewStore(b.redis, cfg.Revocation.RedisPrefix)
	}

	engine.logLoaded(time.Now())
	b.built = true

	return engine, nil
}

func (e *Engine) logLoaded(now time.Time) {
	meta := e.identity.Metadata()
	e.log.Info("certificate loaded",
		zap.String("subject", meta.Subject),
		zap.String("thumbprint", meta.Thumbprint),
		zap.String("algorithm", e.identity.Algorithm()),
		zap.Time("not_after", meta.NotAfter),
		zap.String("load_id", e.identity.LoadID()),
		zap.Stringer("validation_mode", e.config.ValidationMode),
	)

	for _, w := range e.warnings(now) {
		if w.Severity >= LintWarn {
			e.log.Warn("risky configuration", zap.String("code", w.Code), zap.String("detail", w.Message))
		}
	}

	e.emitAudit(context.Background(), AuditEvent{
		EventType: AuditCertificateLoaded,
		KeyID:     e.identity.KeyID(),
		Success:   true,
		Metadata: map[string]string{
			"subject":   meta.Subject,
			"not_after": meta.NotAfter.UTC().Format(time.RFC3339),
			"algorithm": e.identity.Algorithm(),
		},
	})
}
