package certauth

import (
	"fmt"
	"time"

	"github.com/MrEthical07/certauth/certstore"
)

// SecurityReport summarises the effective security posture of a built Engine.
type SecurityReport struct {
	SigningAlgorithm  string
	KeyType           certstore.KeyType
	KeyBits           int
	KeyID             string
	CertificateExpiry time.Time
	ValidationMode    ValidationMode
	TokenTTL          time.Duration
	TokenIDsIssued    bool
	AudienceChecked   bool
	IssuerChecked     bool
	ClockSkew         time.Duration
	ExtractionSource  string
	RevocationActive  bool
	AuditEnabled      bool
	Warnings          LintResult
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil || e.identity == nil {
		return SecurityReport{}
	}

	meta := e.identity.Metadata()
	source := string(e.config.Extraction.Source)
	if source == "" {
		source = "none"
	}

	return SecurityReport{
		SigningAlgorithm:  e.identity.Algorithm(),
		KeyType:           meta.KeyType,
		KeyBits:           meta.KeyBits,
		KeyID:             e.identity.KeyID(),
		CertificateExpiry: meta.NotAfter,
		ValidationMode:    e.config.ValidationMode,
		TokenTTL:          e.issuer.TTL(),
		TokenIDsIssued:    e.config.Token.IncludeTokenID,
		AudienceChecked:   e.policy.ValidateAudience(),
		IssuerChecked:     e.policy.ValidateIssuer(),
		ClockSkew:         e.policy.ClockSkew(),
		ExtractionSource:  source,
		RevocationActive:  e.revocations != nil,
		AuditEnabled:      e.audit != nil,
		Warnings:          e.warnings(time.Now()),
	}
}

// warnings extends Config.Lint with findings that need the loaded certificate.
func (e *Engine) warnings(now time.Time) LintResult {
	ws := e.config.Lint()
	meta := e.identity.Metadata()

	if window := e.config.Certificate.ExpiryWarning; window > 0 && meta.NotAfter.Sub(now) < window {
		ws = append(ws, LintWarning{
			Code:     "certificate_expiring_soon",
			Severity: LintHigh,
			Message:  fmt.Sprintf("certificate expires %s", meta.NotAfter.UTC().Format(time.RFC3339)),
		})
	}
	if meta.KeyType == certstore.KeyTypeRSA && meta.KeyBits < 3072 {
		ws = append(ws, LintWarning{
			Code:     "rsa_key_small",
			Severity: LintInfo,
			Message:  fmt.Sprintf("RSA key is %d bits", meta.KeyBits),
		})
	}
	if e.policy.ClockSkew() > 0 && e.issuer.TTL() <= e.policy.ClockSkew() {
		ws = append(ws, LintWarning{
			Code:     "skew_exceeds_ttl",
			Severity: LintHigh,
			Message:  "clock skew is at least the token lifetime",
		})
	}
	return ws
}
