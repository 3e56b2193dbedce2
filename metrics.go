package certauth

import (
	"sort"
	"sync/atomic"
	"time"
)

// MetricID indexes a counter or histogram in Metrics.
type MetricID uint16

const (
	// MetricTokenIssued counts signed tokens.
	MetricTokenIssued MetricID = iota
	// MetricTokenIssueFailure counts issuance errors.
	MetricTokenIssueFailure
	// MetricValidateSuccess counts accepted tokens.
	MetricValidateSuccess
	// MetricValidateFailure counts rejected tokens, whatever the reason.
	MetricValidateFailure
	MetricRejectSignatureMismatch
	MetricRejectExpired
	MetricRejectNotYetValid
	MetricRejectMalformed
	MetricRejectAudienceMismatch
	MetricRejectIssuerMismatch
	MetricRejectRevoked
	// MetricRevocationUnavailable counts strict checks that failed closed.
	MetricRevocationUnavailable
	// MetricTokenRevoked counts successful Revoke calls.
	MetricTokenRevoked
	// MetricTokenMissing counts Authenticate calls where no strategy found a token.
	MetricTokenMissing
	// MetricValidateLatency is the only histogram.
	MetricValidateLatency
)

// counterCount bounds the counter IDs; MetricValidateLatency and later are
// histograms.
const counterCount = int(MetricValidateLatency)

const cacheLineSize = 64

// latencyBounds are inclusive upper bounds; anything slower lands in the
// overflow bucket.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the validate latency histogram. All
// methods are nil-safe and no-ops when disabled.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [counterCount]paddedCounter
	latency       [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates counters according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc bumps counter id by one. Histogram IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || int(id) >= counterCount {
		return
	}
	m.counters[id].value.Add(1)
}

// Observe records d when id is MetricValidateLatency.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.latency[latencyBucket(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || int(id) >= counterCount {
		return 0
	}
	return m.counters[id].value.Load()
}

// Snapshot copies current values. The histogram appears only when latency is on.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := 0; id < counterCount; id++ {
		s.Counters[MetricID(id)] = m.counters[id].value.Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}

func latencyBucket(d time.Duration) int {
	return sort.Search(len(latencyBounds), func(i int) bool {
		return d <= latencyBounds[i]
	})
}
