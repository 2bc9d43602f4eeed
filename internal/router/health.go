package router

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
)

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// VersionHealth is the availability of one analyzer.
type VersionHealth struct {
	model.AnalyzerVersion
	Available bool `json:"available"`
}

// Health is a point-in-time view of the analyzer chain.
type Health struct {
	Status          string                              `json:"status"`
	ActiveVersion   model.AnalyzerVersion               `json:"active_version"`
	FallbackChain   []model.AnalyzerVersion             `json:"fallback_chain"`
	Versions        []VersionHealth                     `json:"versions"`
	RecentFallbacks int                                 `json:"recent_fallbacks"`
	Providers       map[string]resilience.BreakerStatus `json:"providers"`
	CheckedAt       time.Time                           `json:"checked_at"`
}

// Health probes every analyzer concurrently. The active version is the
// highest-role available one, or the archived analyzer when none is.
func (r *Router) Health(ctx context.Context) Health {
	avail := make([]bool, len(r.chain))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range r.chain {
		g.Go(func() error {
			avail[i] = r.available(gctx, a)
			return nil
		})
	}
	_ = g.Wait()

	now := r.nowFunc()
	h := Health{
		Versions:        make([]VersionHealth, len(r.chain)),
		RecentFallbacks: r.state.Events.CountSince(now.Add(-time.Hour)),
		Providers:       r.state.Breakers.States(),
		CheckedAt:       now.UTC(),
	}

	active := len(r.chain) - 1
	for i, ok := range avail {
		if ok {
			active = i
			break
		}
	}
	nAvail := 0
	for i, a := range r.chain {
		v := a.Version()
		h.Versions[i] = VersionHealth{AnalyzerVersion: v, Available: avail[i]}
		if avail[i] {
			nAvail++
		}
		if i == active {
			h.ActiveVersion = v
		} else {
			h.FallbackChain = append(h.FallbackChain, v)
		}
	}

	switch role := h.ActiveVersion.Role; {
	case nAvail == len(r.chain) && role == model.RolePrimary:
		h.Status = StatusHealthy
	case nAvail >= 2 && role != model.RoleArchived:
		h.Status = StatusDegraded
	default:
		h.Status = StatusCritical
	}
	return h
}
