package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricSessionCreated
	MetricSessionInvalidated
	MetricSessionExpiredLazily
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricStaleTokenRejected
	MetricAuthAllowed
	MetricAuthDenied
	MetricLogout
	MetricLogoutAll
	MetricRegisterSuccess
	MetricPasswordReset

	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricSessionCreated:       "session_created",
	MetricSessionInvalidated:   "session_invalidated",
	MetricSessionExpiredLazily: "session_expired_lazily",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricStaleTokenRejected:   "stale_token_rejected",
	MetricAuthAllowed:          "auth_allowed",
	MetricAuthDenied:           "auth_denied",
	MetricLogout:               "logout",
	MetricLogoutAll:            "logout_all",
	MetricRegisterSuccess:      "register_success",
	MetricPasswordReset:        "password_reset",
}

func (id MetricID) String() string {
	if id < 0 || id >= metricCount {
		return "unknown"
	}
	return metricNames[id]
}

// paddedCounter occupies its own cache line so hot counters do not falsely
// share with their neighbors.
type paddedCounter struct {
	value atomic.Uint64
	_     [56]byte
}

var latencyBuckets = [...]time.Duration{
	100 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	5 * time.Millisecond,
	25 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
}

// latencyHistogram is a fixed-bucket histogram; the final slot counts
// observations above the largest bound.
type latencyHistogram struct {
	buckets [len(latencyBuckets) + 1]atomic.Uint64
	sum     atomic.Int64
	count   atomic.Uint64
}

func (h *latencyHistogram) observe(d time.Duration) {
	i := 0
	for ; i < len(latencyBuckets); i++ {
		if d <= latencyBuckets[i] {
			break
		}
	}
	h.buckets[i].Add(1)
	h.sum.Add(int64(d))
	h.count.Add(1)
}

// Metrics holds the engine's in-process counters. All methods are safe for
// concurrent use; a nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled   bool
	latencies bool

	counters    [metricCount]paddedCounter
	authLatency latencyHistogram
}

func newMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:   cfg.Enabled,
		latencies: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricCount {
		return
	}
	m.counters[id].value.Add(1)
}

func (m *Metrics) observeAuthLatency(d time.Duration) {
	if m == nil || !m.latencies {
		return
	}
	m.authLatency.observe(d)
}

// Get returns the current value of one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id < 0 || id >= metricCount {
		return 0
	}
	return m.counters[id].value.Load()
}

// LatencySnapshot is a point-in-time view of the authenticate latency
// histogram.
type LatencySnapshot struct {
	Bounds  []time.Duration
	Buckets []uint64
	Sum     time.Duration
	Count   uint64
}

// Snapshot returns all counter values keyed by name, for export.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, metricCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricCount; id++ {
		out[id.String()] = m.counters[id].value.Load()
	}
	return out
}

// AuthLatency returns the authenticate latency histogram. Empty when
// latency histograms are disabled.
func (m *Metrics) AuthLatency() LatencySnapshot {
	snap := LatencySnapshot{}
	if m == nil || !m.latencies {
		return snap
	}

	snap.Bounds = latencyBuckets[:]
	snap.Buckets = make([]uint64, len(m.authLatency.buckets))
	for i := range m.authLatency.buckets {
		snap.Buckets[i] = m.authLatency.buckets[i].Load()
	}
	snap.Sum = time.Duration(m.authLatency.sum.Load())
	snap.Count = m.authLatency.count.Load()
	return snap
}
