package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/router"
)

// fakeSource implements HealthSource for testing.
type fakeSource struct {
	health router.Health
	events []router.FallbackEvent
}

func (f *fakeSource) Health(context.Context) router.Health { return f.health }
func (f *fakeSource) RecentEvents() []router.FallbackEvent { return f.events }

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestCollector(src HealthSource) *Collector {
	c := NewCollector(src)
	c.nowFunc = func() time.Time { return testNow }
	return c
}

func TestCollector_Healthy(t *testing.T) {
	src := &fakeSource{health: router.Health{
		Status:        router.StatusHealthy,
		ActiveVersion: model.AnalyzerVersion{ID: "v3-llm", Role: model.RolePrimary},
		Providers: map[string]resilience.BreakerStatus{
			"anthropic": {Name: "anthropic", State: "closed"},
		},
	}}

	snap, err := newTestCollector(src).Collect(context.Background(), 15)
	require.NoError(t, err)

	assert.Equal(t, router.StatusHealthy, snap.Status)
	assert.Equal(t, "v3-llm", snap.ActiveVersion)
	assert.Zero(t, snap.Fallbacks)
	assert.Empty(t, snap.OpenBreakers)
	assert.Equal(t, 15, snap.LookbackMins)
	assert.Equal(t, testNow, snap.CollectedAt)
}

func TestCollector_CountsFallbacksInWindow(t *testing.T) {
	src := &fakeSource{
		health: router.Health{
			Status:        router.StatusDegraded,
			ActiveVersion: model.AnalyzerVersion{ID: "v2-db", Role: model.RoleFallback},
			Providers: map[string]resilience.BreakerStatus{
				"selfhosted": {Name: "selfhosted", Open: true},
				"anthropic":  {Name: "anthropic", Open: true},
			},
		},
		events: []router.FallbackEvent{
			{From: "v3-llm", To: "v2-db", Timestamp: testNow.Add(-time.Minute)},
			{From: "v3-llm", To: "v2-db", Timestamp: testNow.Add(-5 * time.Minute)},
			{From: "v1-rules", To: router.NoneVersion, Timestamp: testNow.Add(-10 * time.Minute)},
			// Outside lookback window.
			{From: "v3-llm", To: "v2-db", Timestamp: testNow.Add(-time.Hour)},
		},
	}

	snap, err := newTestCollector(src).Collect(context.Background(), 15)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Fallbacks)
	assert.Equal(t, 2, snap.FallbacksByFrom["v3-llm"])
	assert.Equal(t, 1, snap.Degraded)
	assert.Equal(t, []string{"anthropic", "selfhosted"}, snap.OpenBreakers)
}

func TestCollector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestCollector(&fakeSource{}).Collect(ctx, 15)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: collect")
}
