package router

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/artifact"
	"github.com/zen-systems/switchboard/pkg/cache"
	"github.com/zen-systems/switchboard/pkg/catalog"
	"github.com/zen-systems/switchboard/pkg/classify"
	"github.com/zen-systems/switchboard/pkg/health"
	"github.com/zen-systems/switchboard/pkg/metrics"
	"go.uber.org/zap"
)

// Router classifies, orders and executes requests over a catalog of backends.
// It owns the health tracker shared by all in-flight requests.
type Router struct {
	catalog    *catalog.Catalog
	tracker    *health.Tracker
	classifier classify.Classifier
	rules      []classify.Rule
	selector   *Selector
	cascade    *Cascade
	decisions  *decisionLog
	logger     *zap.Logger
	metrics    *metrics.Metrics

	cache    cache.Store
	cacheTTL time.Duration

	logSize int
	now     func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithTracker injects a health tracker, e.g. to share one between routers.
func WithTracker(t *health.Tracker) Option {
	return func(r *Router) {
		r.tracker = t
	}
}

// WithClassifier replaces the heuristic classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(r *Router) {
		r.classifier = c
	}
}

// WithRules sets override rules applied after any per-request rules.
func WithRules(rules []classify.Rule) Option {
	return func(r *Router) {
		r.rules = append([]classify.Rule(nil), rules...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// WithMetrics enables Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithCache enables the reply cache.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(r *Router) {
		r.cache = store
		r.cacheTTL = ttl
	}
}

// WithDecisionLogSize bounds the number of decisions kept for feedback.
func WithDecisionLogSize(n int) Option {
	return func(r *Router) {
		r.logSize = n
	}
}

// New creates a router over cat.
func New(cat *catalog.Catalog, opts ...Option) *Router {
	r := &Router{
		catalog: cat,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracker == nil {
		r.tracker = health.NewTracker()
	}
	if r.classifier == nil {
		r.classifier = classify.NewHeuristic()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("router")
	r.selector = NewSelector(cat, r.tracker)
	r.cascade = NewCascade(cat, r.tracker, r.logger.Named("cascade"), r.metrics)
	r.decisions = newDecisionLog(r.logSize)
	return r
}

// Route classifies and orders candidates without calling any backend.
func (r *Router) Route(req RouteRequest) (*Decision, error) {
	rules := make([]classify.Rule, 0, len(req.Rules)+len(r.rules))
	rules = append(rules, req.Rules...)
	rules = append(rules, r.rules...)

	signals := r.classifier.Classify(req.Messages, rules)
	plan, err := r.selector.Plan(req, signals)
	if err != nil {
		return nil, err
	}

	d := &Decision{
		ID:             uuid.NewString(),
		Candidates:     plan.Candidates,
		Ranking:        plan.Ranking,
		Signals:        signals,
		Override:       plan.Override,
		OverrideSource: plan.OverrideSource,
		Preferred:      plan.Preferred,
		Warnings:       plan.Warnings,
		CreatedAt:      r.now(),
	}
	for _, w := range d.Warnings {
		r.logger.Warn(w, zap.String("decision_id", d.ID))
	}
	r.logger.Debug("routed",
		zap.String("decision_id", d.ID),
		zap.Strings("candidates", d.Candidates),
		zap.Strings("signals", signals.Tags()),
		zap.String("override", d.Override),
		zap.String("preferred", d.Preferred),
	)
	return d, nil
}

// Execute runs the cascade for a decision. A nil decision is routed first.
func (r *Router) Execute(ctx context.Context, decision *Decision, req RouteRequest) (*Result, error) {
	if decision == nil {
		d, err := r.Route(req)
		if err != nil {
			return nil, err
		}
		decision = d
	}

	key := ""
	if r.cache != nil && !req.NoCache {
		key = cache.Key(decision.Override, req.Messages, req.Temperature, req.MaxTokens)
		if res := r.cached(ctx, key, decision); res != nil {
			decision.BackendUsed = res.BackendUsed
			return res, nil
		}
	}

	res, err := r.cascade.Run(ctx, decision.Candidates, req)
	if err != nil {
		return nil, err
	}
	res.DecisionID = decision.ID
	res.Warnings = decision.Warnings
	decision.BackendUsed = res.BackendUsed
	decision.ElapsedMs = res.ElapsedMs
	r.decisions.add(decision.ID, res.BackendUsed, res.Elapsed)

	if key != "" {
		entry := &cache.Entry{
			Backend:   res.BackendUsed,
			Model:     res.Model,
			Content:   res.Content,
			Usage:     res.Usage,
			CreatedAt: r.now(),
		}
		if res.Response != nil && res.Response.Artifact != nil {
			entry.Adapter = res.Response.Artifact.Adapter
		}
		if err := r.cache.Set(ctx, key, entry, r.cacheTTL); err != nil {
			r.logger.Warn("cache store failed", zap.Error(err))
		}
	}
	return res, nil
}

// RouteAndExecute routes and executes in one call.
func (r *Router) RouteAndExecute(ctx context.Context, req RouteRequest) (*Result, error) {
	decision, err := r.Route(req)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, decision, req)
}

// cached returns a hit as a Result, or nil. Hits do not touch the tracker
// since no backend was invoked.
func (r *Router) cached(ctx context.Context, key string, decision *Decision) *Result {
	entry, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache lookup failed", zap.Error(err))
		return nil
	}
	if ok && !r.servable(decision, entry.Backend) {
		r.logger.Debug("dropping cached reply from ineligible backend",
			zap.String("decision_id", decision.ID),
			zap.String("backend", entry.Backend),
		)
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logger.Warn("cache delete failed", zap.Error(err))
		}
		ok = false
	}
	r.metrics.CacheLookup(ok)
	if !ok {
		return nil
	}

	art := artifact.New(entry.Content, entry.Adapter, entry.Model).
		ForBackend(entry.Backend).
		WithMetadata("cache", "hit")
	usage := entry.Usage
	return &Result{
		DecisionID:  decision.ID,
		Response:    &adapter.Response{Artifact: art, Usage: &usage},
		Content:     entry.Content,
		BackendUsed: entry.Backend,
		Model:       entry.Model,
		Usage:       usage,
		Cost:        adapter.Cost{Currency: "USD"},
		CacheHit:    true,
		Warnings:    decision.Warnings,
	}
}

// servable reports whether a reply cached from backend may answer decision.
// The backend must still be a candidate with credentials, and enabled
// unless it is the override.
func (r *Router) servable(decision *Decision, backend string) bool {
	if !slices.Contains(decision.Candidates, backend) {
		return false
	}
	d, ok := r.catalog.Get(backend)
	if !ok || !d.Credentialed {
		return false
	}
	return backend == decision.Override || d.Enabled()
}

// ReportDeferredOutcome feeds an outcome observed outside Execute into the tracker.
func (r *Router) ReportDeferredOutcome(o DeferredOutcome) error {
	if o.Backend == "" {
		return fmt.Errorf("%w: empty backend id", ErrUnknownBackend)
	}
	if _, ok := r.catalog.Get(o.Backend); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, o.Backend)
	}
	errMsg := o.Error
	if !o.Success && errMsg == "" {
		errMsg = "reported failure"
	}
	if o.Success {
		errMsg = ""
	}
	rec := r.tracker.Record(o.Backend, o.Success, o.ElapsedMs, errMsg)
	r.metrics.SetSuccessRate(o.Backend, rec.SuccessRate)
	r.logger.Debug("deferred outcome recorded",
		zap.String("backend", o.Backend),
		zap.Bool("success", o.Success),
		zap.Float64("elapsed_ms", o.ElapsedMs),
	)
	return nil
}

// ReportFeedback records an outcome against the backend that served an
// executed decision. Each decision accepts feedback once.
func (r *Router) ReportFeedback(decisionID string, success bool, errMsg string) error {
	entry, ok := r.decisions.take(decisionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDecision, decisionID)
	}
	return r.ReportDeferredOutcome(DeferredOutcome{
		Backend:   entry.backend,
		Success:   success,
		ElapsedMs: float64(entry.elapsed) / float64(time.Millisecond),
		Error:     errMsg,
	})
}

// HealthSnapshot returns a record for every catalog backend plus any
// backend the tracker has seen.
func (r *Router) HealthSnapshot() map[string]health.Record {
	snap := r.tracker.Snapshot()
	for _, id := range r.catalog.IDs() {
		if _, ok := snap[id]; !ok {
			snap[id] = health.Fresh()
		}
	}
	return snap
}

// Catalog returns copies of all descriptors.
func (r *Router) Catalog() []catalog.Descriptor {
	return r.catalog.List()
}

// SetWeight changes a backend's base weight. Zero disables it.
func (r *Router) SetWeight(id string, weight int) error {
	if err := r.catalog.SetWeight(id, weight); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownBackend, id)
		}
		return err
	}
	r.logger.Info("backend weight changed", zap.String("backend", id), zap.Int("weight", weight))
	return nil
}

// RefreshCredentials re-reads credential variables for every backend.
func (r *Router) RefreshCredentials() {
	r.catalog.RefreshCredentials()
}

// ResetHealth forgets the history of a backend.
func (r *Router) ResetHealth(id string) error {
	if _, ok := r.catalog.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}
	r.tracker.Reset(id)
	return nil
}

// CacheStats reports reply cache statistics; ok is false when caching is off.
func (r *Router) CacheStats(ctx context.Context) (cache.Stats, bool, error) {
	if r.cache == nil {
		return cache.Stats{}, false, nil
	}
	stats, err := r.cache.Stats(ctx)
	return stats, true, err
}

// FlushCache empties the reply cache.
func (r *Router) FlushCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Flush(ctx)
}
