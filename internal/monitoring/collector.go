package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/router"
)

// MetricsSnapshot holds a point-in-time view of analysis health.
type MetricsSnapshot struct {
	Status        string `json:"status"`
	ActiveVersion string `json:"active_version"`

	// Fallbacks within the lookback window, keyed by source version.
	Fallbacks       int            `json:"fallbacks"`
	FallbacksByFrom map[string]int `json:"fallbacks_by_from,omitempty"`
	Degraded        int            `json:"degraded"`

	OpenBreakers []string `json:"open_breakers,omitempty"`

	// Metadata.
	LookbackMins int       `json:"lookback_mins"`
	CollectedAt  time.Time `json:"collected_at"`
}

// HealthSource is the part of the analysis router the collector reads.
type HealthSource interface {
	Health(ctx context.Context) router.Health
	RecentEvents() []router.FallbackEvent
}

// Collector gathers snapshots from the router.
type Collector struct {
	source  HealthSource
	nowFunc func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(source HealthSource) *Collector {
	return &Collector{source: source, nowFunc: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackMins int) (*MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "monitoring: collect")
	}

	now := c.nowFunc().UTC()
	h := c.source.Health(ctx)
	snap := &MetricsSnapshot{
		Status:          h.Status,
		ActiveVersion:   h.ActiveVersion.ID,
		FallbacksByFrom: make(map[string]int),
		LookbackMins:    lookbackMins,
		CollectedAt:     now,
	}

	cutoff := now.Add(-time.Duration(lookbackMins) * time.Minute)
	for _, e := range c.source.RecentEvents() {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		snap.Fallbacks++
		snap.FallbacksByFrom[e.From]++
		if e.To == router.NoneVersion {
			snap.Degraded++
		}
	}

	for name, st := range h.Providers {
		if st.Open {
			snap.OpenBreakers = append(snap.OpenBreakers, name)
		}
	}
	sort.Strings(snap.OpenBreakers)

	return snap, nil
}
