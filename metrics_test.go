package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})

	m.inc(MetricLoginSuccess)
	m.inc(MetricLoginSuccess)
	m.inc(MetricAuthDenied)

	if got := m.Get(MetricLoginSuccess); got != 2 {
		t.Errorf("login_success = %d, want 2", got)
	}
	if got := m.Get(MetricAuthDenied); got != 1 {
		t.Errorf("auth_denied = %d, want 1", got)
	}
	if got := m.Get(MetricLogout); got != 0 {
		t.Errorf("logout = %d, want 0", got)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})
	m.inc(MetricSessionCreated)

	snap := m.Snapshot()
	if snap["session_created"] != 1 {
		t.Errorf("snapshot[session_created] = %d", snap["session_created"])
	}
	if len(snap) != int(metricCount) {
		t.Errorf("snapshot has %d entries, want %d", len(snap), metricCount)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := newMetrics(MetricsConfig{})
	m.inc(MetricLoginSuccess)
	if got := m.Get(MetricLoginSuccess); got != 0 {
		t.Errorf("disabled metrics counted: %d", got)
	}

	var nilMetrics *Metrics
	nilMetrics.inc(MetricLoginSuccess)
	nilMetrics.observeAuthLatency(time.Millisecond)
	if got := nilMetrics.Get(MetricLoginSuccess); got != 0 {
		t.Errorf("nil metrics returned %d", got)
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.inc(MetricAuthAllowed)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(MetricAuthAllowed); got != 8000 {
		t.Errorf("auth_allowed = %d, want 8000", got)
	}
}

func TestAuthLatencyHistogram(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.observeAuthLatency(50 * time.Microsecond)
	m.observeAuthLatency(2 * time.Millisecond)
	m.observeAuthLatency(time.Second) // overflow bucket

	snap := m.AuthLatency()
	if snap.Count != 3 {
		t.Fatalf("count = %d, want 3", snap.Count)
	}
	if snap.Buckets[0] != 1 {
		t.Errorf("first bucket = %d, want 1", snap.Buckets[0])
	}
	if snap.Buckets[len(snap.Buckets)-1] != 1 {
		t.Errorf("overflow bucket = %d, want 1", snap.Buckets[len(snap.Buckets)-1])
	}
	if snap.Sum == 0 {
		t.Error("sum not accumulated")
	}

	disabled := newMetrics(MetricsConfig{Enabled: true})
	disabled.observeAuthLatency(time.Millisecond)
	if disabled.AuthLatency().Count != 0 {
		t.Error("latency recorded while histograms disabled")
	}
}

func TestMetricNames(t *testing.T) {
	for id := MetricID(0); id < metricCount; id++ {
		if id.String() == "" || id.String() == "unknown" {
			t.Errorf("metric %d has no name", id)
		}
	}
	if MetricID(-1).String() != "unknown" {
		t.Error("out-of-range metric ID not reported unknown")
	}
}
