// Package score turns a backend's weight and health into one comparable number.
package score

import (
	"math"

	"github.com/zen-systems/switchboard/pkg/catalog"
	"github.com/zen-systems/switchboard/pkg/health"
)

// Term weights. They sum to 1 so every term in [0,100] keeps the total in [0,100].
const (
	WeightShare  = 0.4
	SuccessShare = 0.3
	LatencyShare = 0.2
	LoadShare    = 0.1
)

const (
	latencyStart      = 80.0
	latencyMsPerPoint = 200.0
	loadStart         = 100.0
	loadPerRequest    = 2.0
	loadFloor         = 30.0
)

// Breakdown exposes the individual terms for introspection.
type Breakdown struct {
	Weight  float64 `json:"weight"`
	Success float64 `json:"success"`
	Latency float64 `json:"latency"`
	Load    float64 `json:"load"`
	Total   float64 `json:"total"`
}

// Score returns a value in [0,100].
func Score(d catalog.Descriptor, r health.Record) float64 {
	return Explain(d, r).Total
}

// Explain computes the score and its terms.
func Explain(d catalog.Descriptor, r health.Record) Breakdown {
	b := Breakdown{
		Weight:  clamp(float64(d.Weight)),
		Success: clamp(successRate(r)),
		Latency: LatencyTerm(r),
		Load:    LoadTerm(r),
	}
	b.Total = clamp(WeightShare*b.Weight + SuccessShare*b.Success + LatencyShare*b.Latency + LoadShare*b.Load)
	return b
}

// LatencyTerm is 80 with no successful samples, then loses a point per 200ms.
func LatencyTerm(r health.Record) float64 {
	if r.RequestCount == 0 || r.SuccessCount == 0 {
		return latencyStart
	}
	avg := r.AvgLatencyMs
	if math.IsNaN(avg) || avg < 0 {
		avg = 0
	}
	return math.Max(0, latencyStart-avg/latencyMsPerPoint)
}

// LoadTerm is 100 for an untouched backend, minus 2 per request, floored at 30.
func LoadTerm(r health.Record) float64 {
	n := r.RequestCount
	if n < 0 {
		n = 0
	}
	return math.Max(loadFloor, loadStart-loadPerRequest*float64(n))
}

func successRate(r health.Record) float64 {
	if r.RequestCount == 0 {
		return 100
	}
	return r.SuccessRate
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(100, math.Max(0, v))
}
