// Package router selects among versioned claim analyzers, descending from
// primary to fallback to archived, and reports the health of the chain.
package router

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/analyzer"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/metrics"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
)

// NoneVersion is the target of a descent past the last analyzer.
const NoneVersion = "none"

// retryRecommendation is the single recommendation of a degraded result.
const retryRecommendation = "Analysis is temporarily unavailable. Please retry in a few minutes."

// State is the router's shared mutable state: provider breakers and the
// fallback event log.
type State struct {
	Breakers *resilience.ServiceBreakers
	Events   *EventLog
}

// NewState creates router state. A nil breakers registry gets the defaults.
func NewState(breakers *resilience.ServiceBreakers, eventCapacity int) *State {
	if breakers == nil {
		breakers = resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	return &State{Breakers: breakers, Events: NewEventLog(eventCapacity)}
}

// Router is safe for concurrent use.
type Router struct {
	chain   []analyzer.Analyzer
	state   *State
	nowFunc func() time.Time
	log     *zap.Logger
}

// New creates a router over analyzers, ordered by role. The last analyzer
// must be archived; it is invoked without an availability check.
func New(state *State, analyzers ...analyzer.Analyzer) (*Router, error) {
	if len(analyzers) == 0 {
		return nil, eris.New("router: no analyzers")
	}
	chain := slices.Clone(analyzers)
	slices.SortStableFunc(chain, func(a, b analyzer.Analyzer) int {
		return a.Version().Role.Rank() - b.Version().Role.Rank()
	})
	if last := chain[len(chain)-1].Version(); last.Role != model.RoleArchived {
		return nil, eris.Errorf("router: last analyzer %s must be %s", last.ID, model.RoleArchived)
	}
	if state == nil {
		state = NewState(nil, DefaultEventCapacity)
	}
	return &Router{
		chain:   chain,
		state:   state,
		nowFunc: time.Now,
		log:     zap.L().With(zap.String("component", "router")),
	}, nil
}

// State returns the router's shared state.
func (r *Router) State() *State { return r.state }

// Analyze runs the chain and returns the first successful result. It never
// fails: when every analyzer fails it returns a degraded result.
func (r *Router) Analyze(ctx context.Context, in model.ClaimAuditInput) *model.ClaimAuditResult {
	start := r.nowFunc()
	defer func() {
		metrics.AnalysisDuration.Observe(r.nowFunc().Sub(start).Seconds())
	}()

	var lastReason string
	for i, a := range r.chain {
		v := a.Version()
		next := NoneVersion
		if i+1 < len(r.chain) {
			next = r.chain[i+1].Version().ID
		}
		last := i == len(r.chain)-1

		if !last && !configured(a) {
			lastReason = v.ID + " not configured"
			metrics.SkippedAnalyzers.WithLabelValues(v.ID).Inc()
			continue
		}
		if !last && !r.available(ctx, a) {
			lastReason = v.ID + " unavailable"
			r.record(v.ID, next, lastReason)
			continue
		}

		res, err := r.invoke(ctx, a, in)
		if err == nil && res != nil && res.Success {
			res.Version, res.Role = v.ID, v.Role
			res.Confidence = v.Role.ClampConfidence(res.Confidence)
			metrics.AnalysisResults.WithLabelValues(v.ID, string(v.Role)).Inc()
			return res
		}

		lastReason = failureReason(v.ID, res, err)
		r.record(v.ID, next, lastReason)
	}

	return r.degraded(start, lastReason)
}

// invoke calls a.Analyze, converting a panic into ErrAnalyzer.
func (r *Router) invoke(ctx context.Context, a analyzer.Analyzer, in model.ClaimAuditInput) (res *model.ClaimAuditResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = eris.Wrapf(resilience.ErrAnalyzer, "router: %s panicked: %v", a.Version().ID, p)
		}
	}()
	return a.Analyze(ctx, in)
}

func configured(a analyzer.Analyzer) bool {
	c, ok := a.(analyzer.Configurable)
	return !ok || c.Configured()
}

// available probes a, treating a panic as unavailable.
func (r *Router) available(ctx context.Context, a analyzer.Analyzer) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("router: availability probe panicked",
				zap.String("version", a.Version().ID),
				zap.Any("panic", p),
			)
			ok = false
		}
	}()
	return a.Available(ctx)
}

func failureReason(id string, res *model.ClaimAuditResult, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case res == nil:
		return id + " returned no result"
	case res.Error != "":
		return res.Error
	default:
		return id + " returned an unsuccessful result"
	}
}

func (r *Router) record(from, to, reason string) {
	e := FallbackEvent{
		ID:        uuid.NewString(),
		Timestamp: r.nowFunc().UTC(),
		From:      from,
		To:        to,
		Reason:    reason,
	}
	r.state.Events.Add(e)
	metrics.FallbackEvents.WithLabelValues(from, to).Inc()
	r.log.Warn("router: fallback",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("reason", reason),
	)
}

func (r *Router) degraded(start time.Time, reason string) *model.ClaimAuditResult {
	v := r.chain[len(r.chain)-1].Version()
	now := r.nowFunc()
	metrics.AnalysisResults.WithLabelValues(NoneVersion, string(v.Role)).Inc()
	r.log.Error("router: every analyzer failed", zap.String("reason", reason))
	return &model.ClaimAuditResult{
		ID:              uuid.NewString(),
		Version:         v.ID,
		Role:            v.Role,
		Success:         false,
		Items:           []model.AuditedItem{},
		MissingItems:    []model.MissingItem{},
		CarrierPatterns: []model.CarrierPattern{},
		Recommendations: []string{retryRecommendation},
		Confidence:      0,
		ProcessingTime:  now.Sub(start),
		FallbackReason:  fmt.Sprintf("all analyzers failed: %s", reason),
		Error:           reason,
		CreatedAt:       now.UTC(),
	}
}

// RecentEvents returns a copy of the retained fallback events, oldest first.
func (r *Router) RecentEvents() []FallbackEvent {
	return r.state.Events.Events()
}
