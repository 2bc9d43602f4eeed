// Package analyzer holds the versioned claim analyzers. Each one audits a
// claim against market pricing and reports a confidence bounded by its role.
package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// Version identifiers.
const (
	VersionLLM   = "v3-llm"
	VersionDB    = "v2-db"
	VersionRules = "v1-rules"
)

// Analyzer is one versioned claim-analysis implementation.
type Analyzer interface {
	Version() model.AnalyzerVersion
	// Available is a cheap readiness probe. It must not run an analysis.
	Available(ctx context.Context) bool
	Analyze(ctx context.Context, in model.ClaimAuditInput) (*model.ClaimAuditResult, error)
}

// Configurable is implemented by analyzers that depend on deployment
// settings. An unconfigured analyzer is skipped without a fallback event,
// since its absence is not a runtime failure.
type Configurable interface {
	Configured() bool
}

// Store is the market data read by the database-backed analyzers. A price
// lookup with no match returns nil and no error.
type Store interface {
	LookupPrice(ctx context.Context, description, zip string) (*model.PriceLookup, error)
	CarrierTrends(ctx context.Context, carrier string) ([]model.CarrierTrend, error)
	Ping(ctx context.Context) error
}

// newResult starts a result tagged with v.
func newResult(v model.AnalyzerVersion, now time.Time) *model.ClaimAuditResult {
	return &model.ClaimAuditResult{
		ID:        uuid.NewString(),
		Version:   v.ID,
		Role:      v.Role,
		CreatedAt: now.UTC(),
	}
}

// trendPatterns converts stored carrier trends to result patterns.
func trendPatterns(trends []model.CarrierTrend) []model.CarrierPattern {
	out := make([]model.CarrierPattern, 0, len(trends))
	for _, t := range trends {
		out = append(out, model.CarrierPattern{
			Carrier:     t.Carrier,
			Strategy:    t.Strategy,
			Frequency:   t.Frequency,
			Description: t.Description,
		})
	}
	return out
}
