// Package metrics defines the Prometheus collectors shared by the analysis
// router, the LLM gateway and the placement service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FallbackEvents counts analyzer descents by source and target version.
	FallbackEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maxclaim_fallback_events_total",
		Help: "Analyzer fallback events by source and target version",
	}, []string{"from", "to"})

	// SkippedAnalyzers counts analyzers passed over because the deployment
	// does not configure them. These are not fallback events.
	SkippedAnalyzers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maxclaim_analyzer_skipped_total",
		Help: "Analyzers skipped as unconfigured, by version",
	}, []string{"version"})

	// AnalysisResults counts claim analyses by producing version and role.
	AnalysisResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maxclaim_analysis_results_total",
		Help: "Claim analyses by producing version and role",
	}, []string{"version", "role"})

	// AnalysisDuration tracks end-to-end router latency.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "maxclaim_analysis_duration_seconds",
		Help:    "Router analysis duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
	})

	// ProviderCalls counts LLM provider attempts by outcome kind.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maxclaim_llm_provider_calls_total",
		Help: "LLM provider call attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	// BreakerOpen is 1 while a provider's circuit is open.
	BreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "maxclaim_circuit_breaker_open",
		Help: "1 if the provider circuit breaker is open",
	}, []string{"provider"})

	// Placements counts placement responses by mode.
	Placements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maxclaim_placements_total",
		Help: "Placement responses by mode",
	}, []string{"mode"})

	// PlacementEligible tracks how many partners passed the eligibility filter.
	PlacementEligible = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "maxclaim_placement_eligible_partners",
		Help:    "Eligible partners per placement request",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})
)

// SetBreakerOpen records a breaker state transition.
func SetBreakerOpen(provider string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	BreakerOpen.WithLabelValues(provider).Set(v)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
