package certauth

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	// LintInfo marks a setting worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that widens what the engine accepts.
	LintWarn
	// LintHigh marks a setting that is very likely a mistake.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one finding from Config.Lint.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that are valid but risky. Unlike Validate it never fails.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Validation.ValidateAudience {
		add("audience_validation_disabled", LintWarn,
			"tokens minted for any audience are accepted")
	}
	if !c.Validation.ValidateIssuer {
		add("issuer_validation_disabled", LintWarn,
			"tokens from any issuer sharing the key are accepted")
	}
	if c.Validation.ClockSkew > time.Minute {
		add("clock_skew_large", LintWarn,
			fmt.Sprintf("clock skew %s extends every token window", c.Validation.ClockSkew))
	}
	if c.Token.TTL > 24*time.Hour {
		add("ttl_long", LintHigh,
			fmt.Sprintf("token TTL %s exceeds one day", c.Token.TTL))
	} else if c.Token.TTL > time.Hour {
		add("ttl_long", LintWarn,
			fmt.Sprintf("token TTL %s exceeds one hour", c.Token.TTL))
	}
	if c.ValidationMode == ModeJWTOnly && c.Token.IncludeTokenID {
		add("token_id_unused", LintInfo,
			"token ids are issued but JWT-only validation never checks revocation")
	}
	if c.Extraction.Source == "query" {
		add("query_extraction", LintWarn,
			"tokens in query strings end up in access logs")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "no audit trail for issued or rejected tokens")
	}
	if c.Certificate.ExpiryWarning == 0 {
		add("certificate_expiry_unmonitored", LintInfo,
			"no warning is raised as the certificate nears NotAfter")
	}
	return ws
}
