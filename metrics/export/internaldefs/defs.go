package internaldefs

import (
	"github.com/MrEthical07/certauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   certauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   certauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: certauth.MetricTokenIssued, Name: "certauth_token_issued_total", Help: "Signed tokens."},
	{ID: certauth.MetricTokenIssueFailure, Name: "certauth_token_issue_failure_total", Help: "Token issuance errors."},
	{ID: certauth.MetricValidateSuccess, Name: "certauth_validate_success_total", Help: "Accepted tokens."},
	{ID: certauth.MetricValidateFailure, Name: "certauth_validate_failure_total", Help: "Rejected tokens."},
	{ID: certauth.MetricRejectSignatureMismatch, Name: "certauth_reject_signature_mismatch_total", Help: "Tokens rejected for a bad signature or algorithm."},
	{ID: certauth.MetricRejectExpired, Name: "certauth_reject_expired_total", Help: "Tokens rejected as expired."},
	{ID: certauth.MetricRejectNotYetValid, Name: "certauth_reject_not_yet_valid_total", Help: "Tokens rejected before nbf."},
	{ID: certauth.MetricRejectMalformed, Name: "certauth_reject_malformed_total", Help: "Tokens rejected as malformed."},
	{ID: certauth.MetricRejectAudienceMismatch, Name: "certauth_reject_audience_mismatch_total", Help: "Tokens rejected for audience."},
	{ID: certauth.MetricRejectIssuerMismatch, Name: "certauth_reject_issuer_mismatch_total", Help: "Tokens rejected for issuer."},
	{ID: certauth.MetricRejectRevoked, Name: "certauth_reject_revoked_total", Help: "Tokens rejected as revoked."},
	{ID: certauth.MetricRevocationUnavailable, Name: "certauth_revocation_unavailable_total", Help: "Strict checks that failed closed."},
	{ID: certauth.MetricTokenRevoked, Name: "certauth_token_revoked_total", Help: "Revoke operations."},
	{ID: certauth.MetricTokenMissing, Name: "certauth_token_missing_total", Help: "Requests without a token."},
}

var HistogramDefs = []HistogramDef{
	{ID: certauth.MetricValidateLatency, Name: "certauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds in seconds. The last bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, including +Inf, for flat gauge exports.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
