package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAttempt("a", OutcomeFailure, 20*time.Millisecond)
	m.ObserveAttempt("b", OutcomeSuccess, 40*time.Millisecond)
	m.ObserveAttempt("c", OutcomeSkipped, 0)
	m.Fallback()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.SetSuccessRate("a", 0)

	cases := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"failed attempt", m.Attempts.WithLabelValues("a", OutcomeFailure), 1},
		{"skipped attempt", m.Attempts.WithLabelValues("c", OutcomeSkipped), 1},
		{"fallbacks", m.Fallbacks, 1},
		{"exhausted", m.Exhausted, 0},
		{"cache misses", m.CacheLookups.WithLabelValues("miss"), 2},
	}
	for _, tc := range cases {
		if got := testutil.ToFloat64(tc.collector); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
	if n := testutil.CollectAndCount(m.AttemptLatency); n != 2 {
		t.Fatalf("expected latency series for 2 backends, got %d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("nil metrics panicked: %v", r)
		}
	}()
	var m *Metrics
	m.ObserveAttempt("a", OutcomeSuccess, time.Second)
	m.Fallback()
	m.CascadeExhausted()
	m.CacheLookup(true)
	m.SetSuccessRate("a", 100)
}
