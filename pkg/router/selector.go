package router

import (
	"fmt"
	"sort"

	"github.com/zen-systems/switchboard/pkg/catalog"
	"github.com/zen-systems/switchboard/pkg/classify"
	"github.com/zen-systems/switchboard/pkg/health"
	"github.com/zen-systems/switchboard/pkg/score"
)

// Selector builds the candidate order for a request.
type Selector struct {
	catalog *catalog.Catalog
	tracker *health.Tracker
}

// NewSelector creates a selector over a catalog and tracker.
func NewSelector(cat *catalog.Catalog, tracker *health.Tracker) *Selector {
	return &Selector{catalog: cat, tracker: tracker}
}

// Plan is the full output of candidate ordering.
type Plan struct {
	Candidates     []string
	Ranking        []Candidate
	Override       string
	OverrideSource string
	Preferred      string
	Warnings       []string
}

// BuildCandidateOrder returns the ordered backend ids and any warnings.
func (s *Selector) BuildCandidateOrder(req RouteRequest, signals classify.Signals) ([]string, []string, error) {
	plan, err := s.Plan(req, signals)
	if err != nil {
		return nil, nil, err
	}
	return plan.Candidates, plan.Warnings, nil
}

// Plan orders candidates:
//  1. an explicit request backend, else a rule override, goes first even
//     when disabled by the operator;
//  2. otherwise the classified backend goes first;
//  3. the rest are eligible backends, available before unavailable, then
//     by score descending, then by id.
func (s *Selector) Plan(req RouteRequest, signals classify.Signals) (*Plan, error) {
	plan := &Plan{}

	override, source, err := s.resolveOverride(req, signals, plan)
	if err != nil {
		return nil, err
	}

	ranking := s.rank(override.ID)
	plan.Ranking = ranking

	if override.ID != "" {
		plan.Override = override.ID
		plan.OverrideSource = source
		if !override.Enabled() {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("backend %s is disabled by operator; using it because it was named explicitly", override.ID))
		}
		plan.Candidates = append(plan.Candidates, override.ID)
		for _, c := range ranking {
			plan.Candidates = append(plan.Candidates, c.ID)
		}
	} else {
		plan.Preferred = s.preferred(ranking, signals)
		if plan.Preferred != "" {
			plan.Candidates = append(plan.Candidates, plan.Preferred)
		}
		for _, c := range ranking {
			if c.ID != plan.Preferred {
				plan.Candidates = append(plan.Candidates, c.ID)
			}
		}
	}

	if len(plan.Candidates) == 0 {
		return nil, ErrNoEligibleBackend
	}
	return plan, nil
}

func (s *Selector) resolveOverride(req RouteRequest, signals classify.Signals, plan *Plan) (catalog.Descriptor, string, error) {
	if req.Backend != "" {
		d, ok := s.catalog.Get(req.Backend)
		if !ok {
			return catalog.Descriptor{}, "", fmt.Errorf("%w: %s", ErrUnknownBackend, req.Backend)
		}
		if !d.Credentialed {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("backend %s has no credentials; falling back to scoring", d.ID))
			return catalog.Descriptor{}, "", nil
		}
		return d, OverrideFromRequest, nil
	}

	if signals.Override != "" {
		d, ok := s.catalog.Get(signals.Override)
		if !ok {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("rule %q names unknown backend %s; ignored", signals.OverridePattern, signals.Override))
			return catalog.Descriptor{}, "", nil
		}
		if !d.Credentialed {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("rule %q names backend %s which has no credentials; ignored", signals.OverridePattern, d.ID))
			return catalog.Descriptor{}, "", nil
		}
		return d, OverrideFromRule, nil
	}

	return catalog.Descriptor{}, "", nil
}

// rank scores every eligible backend except skip.
func (s *Selector) rank(skip string) []Candidate {
	var ranking []Candidate
	for _, d := range s.catalog.List() {
		if d.ID == skip || !d.Eligible() {
			continue
		}
		rec := s.tracker.Get(d.ID)
		b := score.Explain(d, rec)
		ranking = append(ranking, Candidate{
			ID:        d.ID,
			Score:     b.Total,
			Available: rec.Available,
			Breakdown: b,
		})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		a, b := ranking[i], ranking[j]
		if a.Available != b.Available {
			return a.Available
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
	return ranking
}

// preferred picks the available backend whose tags match the most signal
// tags. Ties go to the better-ranked backend.
func (s *Selector) preferred(ranking []Candidate, signals classify.Signals) string {
	if signals.Empty {
		return ""
	}
	tags := signals.Tags()
	if len(tags) == 0 {
		return ""
	}

	best, bestMatches := "", 0
	for _, c := range ranking {
		if !c.Available {
			continue
		}
		d, ok := s.catalog.Get(c.ID)
		if !ok {
			continue
		}
		matches := 0
		for _, tag := range tags {
			if d.HasTag(tag) {
				matches++
			}
		}
		if matches > bestMatches {
			best, bestMatches = c.ID, matches
		}
	}
	return best
}
