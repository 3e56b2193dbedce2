// Package settings loads deployment configuration for the certauth commands.
//
// Values come from an optional YAML file overlaid by CERTAUTH_* environment
// variables, where nested keys join with "_" (certificate.passphrase becomes
// CERTAUTH_CERTIFICATE_PASSPHRASE).
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/MrEthical07/certauth"
	"github.com/MrEthical07/certauth/extract"
	"github.com/MrEthical07/certauth/jwt"
	"github.com/MrEthical07/certauth/revocation"
)

const EnvPrefix = "CERTAUTH"

type Settings struct {
	Certificate Certificate `mapstructure:"certificate"`
	Token       Token       `mapstructure:"token"`
	Validation  Validation  `mapstructure:"validation"`
	Extraction  Extraction  `mapstructure:"extraction"`
	Mode        string      `mapstructure:"mode" validate:"oneof=jwt_only strict"`
	Redis       Redis       `mapstructure:"redis"`
	Audit       Audit       `mapstructure:"audit"`
	Metrics     Metrics     `mapstructure:"metrics"`
	Log         Log         `mapstructure:"log"`
	Server      Server      `mapstructure:"server"`
}

type Certificate struct {
	Path           string        `mapstructure:"path" validate:"required,file_exists"`
	Passphrase     string        `mapstructure:"passphrase"`
	PassphraseFile string        `mapstructure:"passphrase_file" validate:"omitempty,file_exists"`
	ExpiryWarning  time.Duration `mapstructure:"expiry_warning" validate:"gte=0s"`
}

type Token struct {
	TTL            time.Duration `mapstructure:"ttl" validate:"gt=0s"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	IncludeTokenID bool          `mapstructure:"include_token_id"`
}

type Validation struct {
	ValidateAudience bool          `mapstructure:"validate_audience"`
	ValidateIssuer   bool          `mapstructure:"validate_issuer"`
	Audience         string        `mapstructure:"audience" validate:"required_if=ValidateAudience true"`
	Issuer           string        `mapstructure:"issuer" validate:"required_if=ValidateIssuer true"`
	ClockSkew        time.Duration `mapstructure:"clock_skew" validate:"gte=0s,lte=5m"`
}

type Extraction struct {
	Source string `mapstructure:"source" validate:"extraction_source"`
	Name   string `mapstructure:"name"`
}

type Redis struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

type Audit struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" validate:"gte=0"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

type Metrics struct {
	Enabled bool `mapstructure:"enabled"`
	Latency bool `mapstructure:"latency"`
}

type Log struct {
	Env   string `mapstructure:"env" validate:"oneof=dev prod"`
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type Server struct {
	Addr string `mapstructure:"addr" validate:"required"`
	// IssueLimit caps tokens per subject per IssueWindow on POST /token. Zero
	// disables the limit. Requires redis.addr.
	IssueLimit      int           `mapstructure:"issue_limit" validate:"gte=0"`
	IssueWindow     time.Duration `mapstructure:"issue_window" validate:"gte=0s"`
	IssueLimitPerIP bool          `mapstructure:"issue_limit_per_ip"`
}

// NewViper returns a viper instance wired for CERTAUTH_* variables with every
// key defaulted, so env-only deployments unmarshal fully.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("certificate.path", "")
	v.SetDefault("certificate.passphrase", "")
	v.SetDefault("certificate.passphrase_file", "")
	v.SetDefault("certificate.expiry_warning", "0s")
	v.SetDefault("token.ttl", jwt.DefaultTTL.String())
	v.SetDefault("token.issuer", "")
	v.SetDefault("token.audience", "")
	v.SetDefault("token.include_token_id", false)
	v.SetDefault("validation.validate_audience", false)
	v.SetDefault("validation.validate_issuer", false)
	v.SetDefault("validation.audience", "")
	v.SetDefault("validation.issuer", "")
	v.SetDefault("validation.clock_skew", "0s")
	v.SetDefault("extraction.source", string(extract.SourceNone))
	v.SetDefault("extraction.name", "")
	v.SetDefault("mode", certauth.ModeJWTOnly.String())
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", revocation.DefaultPrefix)
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.buffer_size", 1024)
	v.SetDefault("audit.drop_if_full", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.latency", false)
	v.SetDefault("log.env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.issue_limit", 0)
	v.SetDefault("server.issue_window", "1m")
	v.SetDefault("server.issue_limit_per_ip", false)
}

// Load reads path (when non-empty) into v, applies the environment and
// validates the result. A nil v gets NewViper.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.resolvePassphrase(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) resolvePassphrase() error {
	if s.Certificate.Passphrase != "" || s.Certificate.PassphraseFile == "" {
		return nil
	}
	b, err := os.ReadFile(s.Certificate.PassphraseFile)
	if err != nil {
		return fmt.Errorf("read passphrase file: %w", err)
	}
	s.Certificate.Passphrase = strings.TrimRight(string(b), "\r\n")
	return nil
}

// Validate runs struct rules and the checks that span sections.
func (s *Settings) Validate() error {
	if err := validateStruct(s); err != nil {
		return err
	}
	if s.Mode == certauth.ModeStrict.String() && s.Redis.Addr == "" {
		return errors.New("mode strict requires redis.addr")
	}
	if s.Server.IssueLimit > 0 && s.Redis.Addr == "" {
		return errors.New("server.issue_limit requires redis.addr")
	}
	if s.Server.IssueLimit > 0 && s.Server.IssueWindow <= 0 {
		return errors.New("server.issue_window must be > 0 when server.issue_limit is set")
	}
	return nil
}

// ToConfig converts settings to an engine configuration and validates it.
func (s *Settings) ToConfig() (certauth.Config, error) {
	mode, err := certauth.ParseValidationMode(s.Mode)
	if err != nil {
		return certauth.Config{}, err
	}

	cfg := certauth.DefaultConfig()
	cfg.Certificate = certauth.CertificateConfig{
		Path:          s.Certificate.Path,
		Passphrase:    s.Certificate.Passphrase,
		ExpiryWarning: s.Certificate.ExpiryWarning,
	}
	cfg.Token = certauth.TokenConfig{
		TTL:            s.Token.TTL,
		Issuer:         s.Token.Issuer,
		Audience:       s.Token.Audience,
		IncludeTokenID: s.Token.IncludeTokenID,
	}
	cfg.Validation = certauth.ValidationConfig{
		ValidateAudience: s.Validation.ValidateAudience,
		ValidateIssuer:   s.Validation.ValidateIssuer,
		Audience:         s.Validation.Audience,
		Issuer:           s.Validation.Issuer,
		ClockSkew:        s.Validation.ClockSkew,
	}
	cfg.Extraction = certauth.ExtractionConfig{
		Source: extract.Source(s.Extraction.Source),
		Name:   s.Extraction.Name,
	}
	cfg.Revocation.RedisPrefix = s.Redis.Prefix
	cfg.Audit = certauth.AuditConfig{
		Enabled:    s.Audit.Enabled,
		BufferSize: s.Audit.BufferSize,
		DropIfFull: s.Audit.DropIfFull,
	}
	cfg.Metrics = certauth.MetricsConfig{
		Enabled:                 s.Metrics.Enabled,
		EnableLatencyHistograms: s.Metrics.Latency,
	}
	cfg.ValidationMode = mode

	if err := cfg.Validate(); err != nil {
		return certauth.Config{}, err
	}
	return cfg, nil
}

// RedisClient returns a client for redis.addr, or nil when none is set.
func (s *Settings) RedisClient() redis.UniversalClient {
	if s.Redis.Addr == "" {
		return nil
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{s.Redis.Addr},
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
	})
}
