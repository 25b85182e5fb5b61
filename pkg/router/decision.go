package router

import (
	"time"

	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/classify"
	"github.com/zen-systems/switchboard/pkg/score"
)

// Override sources.
const (
	OverrideFromRequest = "request"
	OverrideFromRule    = "rule"
)

// RouteRequest is one inbound chat request.
type RouteRequest struct {
	Messages    []adapter.Message
	Backend     string
	Rules       []classify.Rule
	Temperature *float64
	MaxTokens   int
	NoCache     bool
}

// Candidate is one ranked backend with its score.
type Candidate struct {
	ID        string          `json:"id"`
	Score     float64         `json:"score"`
	Available bool            `json:"available"`
	Breakdown score.Breakdown `json:"breakdown"`
}

// Decision is the routing outcome for one request. BackendUsed and
// ElapsedMs stay empty until Execute succeeds; the full execution
// detail is on Result.
type Decision struct {
	ID             string           `json:"id"`
	Candidates     []string         `json:"candidates"`
	Ranking        []Candidate      `json:"ranking,omitempty"`
	Signals        classify.Signals `json:"signals"`
	Override       string           `json:"override,omitempty"`
	OverrideSource string           `json:"override_source,omitempty"`
	Preferred      string           `json:"preferred,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	BackendUsed    string           `json:"backend_used,omitempty"`
	ElapsedMs      float64          `json:"elapsed_ms,omitempty"`
}

// Result is a successful execution.
type Result struct {
	DecisionID  string               `json:"decision_id"`
	Response    *adapter.Response    `json:"-"`
	Content     string               `json:"content"`
	BackendUsed string               `json:"backend_used"`
	Model       string               `json:"model"`
	Elapsed     time.Duration        `json:"-"`
	ElapsedMs   float64              `json:"elapsed_ms"`
	Usage       adapter.Usage        `json:"usage"`
	Cost        adapter.Cost         `json:"cost"`
	Attempts    []adapter.CallReport `json:"attempts,omitempty"`
	CacheHit    bool                 `json:"cache_hit,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// DeferredOutcome is an outcome observed outside Execute.
type DeferredOutcome struct {
	Backend   string  `json:"backend"`
	Success   bool    `json:"success"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Error     string  `json:"error,omitempty"`
}
