package adapter

import "github.com/zen-systems/switchboard/pkg/artifact"

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Normalize fills TotalTokens when a vendor only reports the parts.
func (u Usage) Normalize() Usage {
	if u.TotalTokens == 0 && (u.PromptTokens > 0 || u.CompletionTokens > 0) {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// Cost captures normalized cost estimates.
type Cost struct {
	Currency     string  `json:"currency"`
	Amount       float64 `json:"amount"`
	IsEstimate   bool    `json:"is_estimate"`
	PricingModel string  `json:"pricing_model,omitempty"`
}

// Pricing defines per-1k token pricing for a backend.
type Pricing struct {
	PromptPer1K     float64 `json:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `json:"completion_per_1k,omitempty"`
}

// EstimateCost prices usage. The second result is false when no pricing is known.
func EstimateCost(p *Pricing, usage Usage) (Cost, bool) {
	if p == nil {
		return Cost{Currency: "USD"}, false
	}
	promptCost := (float64(usage.PromptTokens) / 1000.0) * p.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * p.CompletionPer1K
	return Cost{
		Currency:     "USD",
		Amount:       promptCost + completionCost,
		IsEstimate:   true,
		PricingModel: "per_1k_tokens",
	}, true
}

// CallReport captures metadata for one backend attempt inside a cascade.
type CallReport struct {
	Backend   string  `json:"backend"`
	Adapter   string  `json:"adapter"`
	Model     string  `json:"model"`
	Usage     Usage   `json:"usage"`
	Cost      Cost    `json:"cost"`
	LatencyMs float64 `json:"latency_ms"`
	Skipped   bool    `json:"skipped,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Response wraps an adapter output and optional usage data.
type Response struct {
	Artifact *artifact.Artifact
	Usage    *Usage
}
