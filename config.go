package certauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/certauth/extract"
	"github.com/MrEthical07/certauth/jwt"
)

// Config is the complete engine configuration.
//
// Config values are copied into the Engine at Build time; later edits to the
// caller's copy have no effect.
type Config struct {
	Certificate    CertificateConfig
	Token          TokenConfig
	Validation     ValidationConfig
	Extraction     ExtractionConfig
	Revocation     RevocationConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ValidationMode ValidationMode
}

/*
====================================
CERTIFICATE CONFIG
====================================
*/

// CertificateConfig locates the PKCS#12 container holding the signing identity.
// Path and Passphrase come from deployment configuration, never from code.
type CertificateConfig struct {
	Path       string
	Passphrase string
	// ExpiryWarning is how close to NotAfter the certificate may get before Lint
	// and the build log flag it. Zero disables the warning.
	ExpiryWarning time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls issuance.
type TokenConfig struct {
	TTL            time.Duration
	Issuer         string
	Audience       string
	IncludeTokenID bool
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig controls how incoming tokens are checked. Audience and issuer
// checks are off by default.
type ValidationConfig struct {
	ValidateAudience bool
	ValidateIssuer   bool
	Audience         string
	Issuer           string
	ClockSkew        time.Duration
}

// ExtractionConfig names the optional alternate token source consulted before
// the Authorization header.
type ExtractionConfig struct {
	Source extract.Source
	Name   string
}

// RevocationConfig controls the Redis denylist used in strict mode.
type RevocationConfig struct {
	RedisPrefix string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the validate latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode selects whether validation consults the revocation store.
type ValidationMode int

const (
	// ModeInherit defers to Config.ValidationMode.
	ModeInherit ValidationMode = -1

	// ModeJWTOnly verifies signature and claims only. No I/O.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict additionally rejects revoked token ids. Fails closed when the
	// revocation store is unreachable.
	ModeStrict
)

// String returns the mode name used in logs and reports.
func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeJWTOnly:
		return "jwt_only"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseValidationMode accepts the names produced by String. Inherit is not a
// valid engine mode and is rejected.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jwt_only", "jwt-only", "jwtonly":
		return ModeJWTOnly, nil
	case "strict":
		return ModeStrict, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRouteMode, s)
	}
}

// RouteMode is the per-route override passed to Engine.Validate.
type RouteMode = ValidationMode

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL: jwt.DefaultTTL,
		},
		Extraction: ExtractionConfig{
			Source: extract.SourceNone,
		},
		Revocation: RevocationConfig{
			RedisPrefix: "certauth:revoked",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		ValidationMode: ModeJWTOnly,
	}
}

// DefaultConfig returns the baseline configuration: one hour tokens, JWT-only
// validation, no audience or issuer checks, no alternate extraction source.
func DefaultConfig() Config {
	return defaultConfig()
}

// HighSecurityConfig tightens the defaults: short tokens with ids, audience and
// issuer checks on, strict validation, audit on. Issuer and Audience must still
// be filled in before Build.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Token.TTL = 5 * time.Minute
	cfg.Token.IncludeTokenID = true
	cfg.Validation.ValidateAudience = true
	cfg.Validation.ValidateIssuer = true
	cfg.Certificate.ExpiryWarning = 30 * 24 * time.Hour
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.ValidationMode = ModeStrict
	return cfg
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first structural problem in c. It does not touch the
// filesystem; a missing container surfaces from Build as ErrCertificateNotFound.
func (c *Config) Validate() error {
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Validation.ClockSkew < 0 || c.Validation.ClockSkew > jwt.MaxClockSkew {
		return fmt.Errorf("Validation ClockSkew must be within [0, %s]", jwt.MaxClockSkew)
	}
	if c.Validation.ValidateAudience && strings.TrimSpace(c.Validation.Audience) == "" {
		return errors.New("Validation Audience is required when ValidateAudience is true")
	}
	if c.Validation.ValidateIssuer && strings.TrimSpace(c.Validation.Issuer) == "" {
		return errors.New("Validation Issuer is required when ValidateIssuer is true")
	}
	if _, err := extract.FromConfig(c.Extraction.Source, c.Extraction.Name); err != nil {
		return fmt.Errorf("Extraction: %w", err)
	}
	if c.Certificate.ExpiryWarning < 0 {
		return errors.New("Certificate ExpiryWarning must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("invalid ValidationMode")
	}
	if c.ValidationMode == ModeStrict {
		if !c.Token.IncludeTokenID {
			return errors.New("Strict mode requires Token IncludeTokenID")
		}
		if strings.TrimSpace(c.Revocation.RedisPrefix) == "" {
			return errors.New("Revocation RedisPrefix must not be empty in Strict mode")
		}
	}
	if c.Validation.ValidateIssuer && c.Token.Issuer != "" && c.Token.Issuer != c.Validation.Issuer {
		return errors.New("Token Issuer and Validation Issuer disagree; issued tokens would be rejected")
	}
	if c.Validation.ValidateAudience && c.Token.Audience != "" && c.Token.Audience != c.Validation.Audience {
		return errors.New("Token Audience and Validation Audience disagree; issued tokens would be rejected")
	}
	return nil
}

func (c *Config) policyOptions() (jwt.PolicyOptions, error) {
	alt, err := extract.FromConfig(c.Extraction.Source, c.Extraction.Name)
	if err != nil {
		return jwt.PolicyOptions{}, err
	}
	return jwt.PolicyOptions{
		ValidateAudience: c.Validation.ValidateAudience,
		ValidateIssuer:   c.Validation.ValidateIssuer,
		Audience:         c.Validation.Audience,
		Issuer:           c.Validation.Issuer,
		ClockSkew:        c.Validation.ClockSkew,
		Extraction:       alt,
	}, nil
}

func (c *Config) issuerConfig() jwt.IssuerConfig {
	return jwt.IssuerConfig{
		TTL:            c.Token.TTL,
		Issuer:         c.Token.Issuer,
		Audience:       c.Token.Audience,
		IncludeTokenID: c.Token.IncludeTokenID,
	}
}
