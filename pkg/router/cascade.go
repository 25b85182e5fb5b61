package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/catalog"
	"github.com/zen-systems/switchboard/pkg/health"
	"github.com/zen-systems/switchboard/pkg/metrics"
	"go.uber.org/zap"
)

// CascadeState is the executor state for one request.
type CascadeState int

const (
	StatePending CascadeState = iota
	StateAttempting
	StateSucceeded
	StateExhausted
)

func (s CascadeState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errEmptyReply = errors.New("empty reply")

// Cascade walks a candidate list until one backend answers.
type Cascade struct {
	catalog *catalog.Catalog
	tracker *health.Tracker
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// onTransition observes state changes; used by tests.
	onTransition func(state CascadeState, backend string)
}

// NewCascade creates an executor. logger and m may be nil.
func NewCascade(cat *catalog.Catalog, tracker *health.Tracker, logger *zap.Logger, m *metrics.Metrics) *Cascade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cascade{
		catalog: cat,
		tracker: tracker,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Run attempts candidates in order. It makes at most len(candidates)
// invocations. Attempts run detached from ctx cancellation so their outcome
// is always recorded; ctx is checked before each new attempt.
func (c *Cascade) Run(ctx context.Context, candidates []string, req RouteRequest) (*Result, error) {
	c.transition(StatePending, "")
	start := c.now()

	var (
		reports  []adapter.CallReport
		last     *InvocationError
		attempts int
	)

	for i, id := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cascade interrupted after %d attempts: %w", attempts, err)
		}

		d, ok := c.catalog.Get(id)
		if !ok || !d.Credentialed {
			c.logger.Warn("skipping backend without credentials", zap.String("backend", id))
			c.metrics.ObserveAttempt(id, metrics.OutcomeSkipped, 0)
			reports = append(reports, adapter.CallReport{Backend: id, Model: d.Model, Skipped: true, Error: "credentials unavailable"})
			continue
		}

		c.transition(StateAttempting, id)
		attempts++
		if attempts > 1 {
			c.metrics.Fallback()
		}

		resp, latency, err := c.invoke(ctx, d, req)
		latencyMs := float64(latency) / float64(time.Millisecond)
		report := adapter.CallReport{
			Backend:   id,
			Adapter:   d.AdapterName(),
			Model:     d.Model,
			LatencyMs: latencyMs,
		}

		if err != nil {
			rec := c.tracker.Record(id, false, latencyMs, err.Error())
			c.metrics.ObserveAttempt(id, metrics.OutcomeFailure, latency)
			c.metrics.SetSuccessRate(id, rec.SuccessRate)
			report.Error = err.Error()
			reports = append(reports, report)
			last = &InvocationError{Backend: id, Err: err}
			c.logger.Warn("backend attempt failed",
				zap.String("backend", id),
				zap.Int("attempt", attempts),
				zap.Int("remaining", len(candidates)-i-1),
				zap.Bool("transient", adapter.IsTransient(err)),
				zap.Float64("latency_ms", latencyMs),
				zap.Error(err),
			)
			continue
		}

		rec := c.tracker.Record(id, true, latencyMs, "")
		c.metrics.ObserveAttempt(id, metrics.OutcomeSuccess, latency)
		c.metrics.SetSuccessRate(id, rec.SuccessRate)

		var usage adapter.Usage
		if resp.Usage != nil {
			usage = resp.Usage.Normalize()
		}
		cost, _ := adapter.EstimateCost(d.Pricing, usage)
		report.Usage = usage
		report.Cost = cost
		reports = append(reports, report)

		art := resp.Artifact.ForBackend(id)
		resp = &adapter.Response{Artifact: art, Usage: resp.Usage}
		elapsed := c.now().Sub(start)
		c.transition(StateSucceeded, id)

		return &Result{
			Response:    resp,
			Content:     art.Content,
			BackendUsed: id,
			Model:       d.Model,
			Elapsed:     elapsed,
			ElapsedMs:   float64(elapsed) / float64(time.Millisecond),
			Usage:       usage,
			Cost:        cost,
			Attempts:    reports,
		}, nil
	}

	c.transition(StateExhausted, "")
	if attempts == 0 {
		return nil, fmt.Errorf("%w: every candidate lost its credentials", ErrNoEligibleBackend)
	}

	c.metrics.CascadeExhausted()
	c.logger.Error("cascade exhausted",
		zap.Int("attempts", attempts),
		zap.String("last_backend", last.Backend),
		zap.Error(last.Err),
	)
	return nil, &CascadeExhaustedError{Last: last, Attempts: attempts, Reports: reports}
}

func (c *Cascade) invoke(ctx context.Context, d catalog.Descriptor, req RouteRequest) (*adapter.Response, time.Duration, error) {
	if d.Adapter == nil {
		return nil, 0, fmt.Errorf("backend %s has no adapter", d.ID)
	}

	started := c.now()
	resp, err := d.Adapter.Chat(context.WithoutCancel(ctx), adapter.Request{
		Model:       d.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	latency := c.now().Sub(started)
	if err == nil && (resp == nil || resp.Artifact == nil) {
		err = errEmptyReply
	}
	return resp, latency, err
}

func (c *Cascade) transition(state CascadeState, backend string) {
	if c.onTransition != nil {
		c.onTransition(state, backend)
	}
}
