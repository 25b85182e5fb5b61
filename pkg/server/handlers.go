package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/catalog"
	"github.com/zen-systems/switchboard/pkg/classify"
	"github.com/zen-systems/switchboard/pkg/health"
	"github.com/zen-systems/switchboard/pkg/router"
	"go.uber.org/zap"
)

// ChatMessage is one message in a chat request.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// RuleBody is a per-request override rule.
type RuleBody struct {
	Pattern string `json:"pattern" validate:"required"`
	Backend string `json:"backend" validate:"required"`
}

// ChatRequest is an OpenAI-style chat completion request. Backend names a
// catalog id to try first; Model does the same only when it equals a catalog
// id. Rules are checked before configured rules.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Backend     string        `json:"backend,omitempty"`
	Model       string        `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int           `json:"max_tokens,omitempty" validate:"gte=0"`
	Rules       []RuleBody    `json:"rules,omitempty" validate:"omitempty,dive"`
	NoCache     bool          `json:"no_cache,omitempty"`
}

// ChatResponse mirrors the OpenAI chat completion shape plus routing metadata.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
	Routing RoutingInfo  `json:"switchboard"`
}

// ChatChoice is a completion choice.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage reports token counts.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RoutingInfo describes how a chat request was served.
type RoutingInfo struct {
	DecisionID  string               `json:"decision_id"`
	BackendUsed string               `json:"backend_used"`
	ElapsedMs   float64              `json:"elapsed_ms"`
	Cost        adapter.Cost         `json:"cost"`
	CacheHit    bool                 `json:"cache_hit"`
	Attempts    []adapter.CallReport `json:"attempts,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// FeedbackRequest reports an outcome by backend id or by decision id.
type FeedbackRequest struct {
	DecisionID string  `json:"decision_id" validate:"required_without=Backend"`
	Backend    string  `json:"backend"`
	Success    *bool   `json:"success" validate:"required"`
	ElapsedMs  float64 `json:"elapsed_ms" validate:"gte=0"`
	Error      string  `json:"error,omitempty"`
}

// WeightRequest sets a backend base weight.
type WeightRequest struct {
	Weight *int `json:"weight" validate:"required,gte=0,lte=100"`
}

// BackendView is one catalog entry with its health.
type BackendView struct {
	catalog.Descriptor
	AdapterName string        `json:"adapter"`
	Eligible    bool          `json:"eligible"`
	Health      health.Record `json:"health"`
}

func (s *Server) routeRequest(req ChatRequest) router.RouteRequest {
	rr := req.routeRequest()
	if rr.Backend == "" && req.Model != "" {
		for _, id := range s.backendIDs() {
			if id == req.Model {
				rr.Backend = id
				break
			}
		}
	}
	return rr
}

func (s *Server) backendIDs() []string {
	descs := s.router.Catalog()
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}
	return ids
}

func (req ChatRequest) routeRequest() router.RouteRequest {
	msgs := make([]adapter.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = adapter.Message{Role: m.Role, Content: m.Content}
	}
	var rules []classify.Rule
	for _, r := range req.Rules {
		rules = append(rules, classify.Rule{Pattern: r.Pattern, Backend: r.Backend})
	}
	return router.RouteRequest{
		Messages:    msgs,
		Backend:     req.Backend,
		Rules:       rules,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		NoCache:     req.NoCache,
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.router.RouteAndExecute(r.Context(), s.routeRequest(req))
	if err != nil {
		s.logger.Warn("chat failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		s.routerError(w, err)
		return
	}

	s.respond(w, http.StatusOK, ChatResponse{
		ID:      res.DecisionID,
		Object:  "chat.completion",
		Created: s.now().Unix(),
		Model:   res.Model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: res.Content},
			FinishReason: "stop",
		}},
		Usage: ChatUsage{
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			TotalTokens:      res.Usage.TotalTokens,
		},
		Routing: RoutingInfo{
			DecisionID:  res.DecisionID,
			BackendUsed: res.BackendUsed,
			ElapsedMs:   res.ElapsedMs,
			Cost:        res.Cost,
			CacheHit:    res.CacheHit,
			Attempts:    res.Attempts,
			Warnings:    res.Warnings,
		},
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	decision, err := s.router.Route(s.routeRequest(req))
	if err != nil {
		s.routerError(w, err)
		return
	}
	s.respond(w, http.StatusOK, decision)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}

	var err error
	if req.DecisionID != "" {
		err = s.router.ReportFeedback(req.DecisionID, *req.Success, req.Error)
	} else {
		err = s.router.ReportDeferredOutcome(router.DeferredOutcome{
			Backend:   req.Backend,
			Success:   *req.Success,
			ElapsedMs: req.ElapsedMs,
			Error:     req.Error,
		})
	}
	if err != nil {
		s.routerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{"backends": s.router.HealthSnapshot()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	eligible := 0
	backends := s.router.Catalog()
	for _, d := range backends {
		if d.Eligible() {
			eligible++
		}
	}
	s.respond(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"backends": len(backends),
		"eligible": eligible,
	})
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	snap := s.router.HealthSnapshot()
	descs := s.router.Catalog()
	views := make([]BackendView, 0, len(descs))
	for _, d := range descs {
		views = append(views, BackendView{
			Descriptor:  d,
			AdapterName: d.AdapterName(),
			Eligible:    d.Eligible(),
			Health:      snap[d.ID],
		})
	}
	s.respond(w, http.StatusOK, map[string]any{"backends": views})
}

func (s *Server) handleSetWeight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req WeightRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.router.SetWeight(id, *req.Weight); err != nil {
		if errors.Is(err, router.ErrUnknownBackend) {
			s.fail(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		s.badRequest(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.router.ResetHealth(chi.URLParam(r, "id")); err != nil {
		s.fail(w, http.StatusNotFound, err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshCredentials(w http.ResponseWriter, _ *http.Request) {
	s.router.RefreshCredentials()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, enabled, err := s.router.CacheStats(r.Context())
	if err != nil {
		s.routerError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"enabled": enabled, "stats": stats})
}

func (s *Server) handleFlushCache(w http.ResponseWriter, r *http.Request) {
	if err := s.router.FlushCache(r.Context()); err != nil {
		s.routerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
