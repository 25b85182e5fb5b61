// Package health keeps rolling outcome statistics per backend.
package health

import (
	"sync"
	"time"
)

// AvailabilityThreshold is the success rate a backend must exceed to stay available.
const AvailabilityThreshold = 50.0

// Record is the rolling state of one backend.
type Record struct {
	RequestCount  int       `json:"request_count"`
	FailureCount  int       `json:"failure_count"`
	SuccessCount  int       `json:"success_count"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	SuccessRate   float64   `json:"success_rate"`
	Available     bool      `json:"available"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitempty"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
}

// Fresh returns the optimistic record for a backend with no history.
func Fresh() Record {
	return Record{SuccessRate: 100, Available: true}
}

// Tracker records outcomes. The zero value is not usable; call NewTracker.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Record applies one outcome. Unknown ids start from Fresh.
func (t *Tracker) Record(backendID string, success bool, latencyMs float64, errMsg string) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[backendID]
	if !ok {
		fresh := Fresh()
		r = &fresh
		t.records[backendID] = r
	}

	r.RequestCount++
	n := float64(r.RequestCount)
	if success {
		if latencyMs < 0 {
			latencyMs = 0
		}
		r.SuccessCount++
		r.AvgLatencyMs = latencyMs/n + r.AvgLatencyMs*(n-1)/n
		r.LastSuccessAt = t.now()
	} else {
		r.FailureCount++
		r.LastError = errMsg
		r.LastErrorAt = t.now()
	}

	r.SuccessRate = float64(r.RequestCount-r.FailureCount) / n * 100
	r.Available = r.SuccessRate > AvailabilityThreshold
	return *r
}

// Get returns the record for id, or Fresh without creating one.
func (t *Tracker) Get(backendID string) Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.records[backendID]; ok {
		return *r
	}
	return Fresh()
}

// Snapshot returns a copy of every known record.
func (t *Tracker) Snapshot() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Record, len(t.records))
	for id, r := range t.records {
		out[id] = *r
	}
	return out
}

// Reset forgets the history of id.
func (t *Tracker) Reset(backendID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, backendID)
}
