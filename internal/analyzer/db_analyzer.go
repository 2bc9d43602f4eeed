package analyzer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
)

// DefaultPingTimeout bounds the availability probe of store-backed analyzers.
const DefaultPingTimeout = 2 * time.Second

// DBAnalyzer audits claims against database pricing and carrier trend
// history, filling pricing gaps from the rule pack.
type DBAnalyzer struct {
	store       Store
	rules       *RulePack
	pingTimeout time.Duration
	nowFunc     func() time.Time
	log         *zap.Logger
}

// NewDBAnalyzer creates the fallback analyzer.
func NewDBAnalyzer(store Store, rules *RulePack) *DBAnalyzer {
	return &DBAnalyzer{
		store:       store,
		rules:       rules,
		pingTimeout: DefaultPingTimeout,
		nowFunc:     time.Now,
		log:         zap.L().With(zap.String("component", "analyzer"), zap.String("version", VersionDB)),
	}
}

// WithPingTimeout bounds the availability probe. Non-positive values keep
// the default.
func (a *DBAnalyzer) WithPingTimeout(d time.Duration) *DBAnalyzer {
	if d > 0 {
		a.pingTimeout = d
	}
	return a
}

// Version returns v2-db in the fallback role.
func (a *DBAnalyzer) Version() model.AnalyzerVersion {
	return model.AnalyzerVersion{ID: VersionDB, Role: model.RoleFallback}
}

// Configured reports whether a store is attached.
func (a *DBAnalyzer) Configured() bool { return a.store != nil }

// Available pings the store.
func (a *DBAnalyzer) Available(ctx context.Context) bool {
	return pingStore(ctx, a.store, a.pingTimeout)
}

// Analyze fails when the store cannot answer any price lookup.
func (a *DBAnalyzer) Analyze(ctx context.Context, in model.ClaimAuditInput) (*model.ClaimAuditResult, error) {
	start := a.nowFunc()
	res := newResult(a.Version(), start)

	items, carrier := collectItems(in)
	if len(items) == 0 {
		return nil, eris.Wrap(resilience.ErrAnalyzer, "analyzer: v2-db: no line items recognized")
	}

	price, storeErrs := storePricer(a.store, a.rules, a.log)
	audited, st := auditItems(ctx, a.rules, items, in.ZipCode, price)
	if *storeErrs == len(items) {
		return nil, eris.Wrap(resilience.ErrAnalyzer, "analyzer: v2-db: store unavailable for all price lookups")
	}

	missing := a.rules.Missing(items)
	res.Success = true
	res.Items = audited
	res.MissingItems = missing
	res.CarrierPatterns = carrierPatterns(ctx, a.store, a.rules, a.log, carrier, len(missing) > 0, st.underpriced)
	res.Summary = summarize(audited, missing)
	res.Recommendations = recommend(audited, missing, res.Summary)

	storeShare := float64(st.storePriced) / float64(st.audited)
	res.Confidence = res.Role.ClampConfidence(0.45 + 0.2*st.pricedFraction() + 0.1*storeShare)
	res.ProcessingTime = a.nowFunc().Sub(start)
	return res, nil
}

// carrierPatterns prefers stored trends for the carrier over the generic
// rules.
func carrierPatterns(ctx context.Context, store Store, rules *RulePack, log *zap.Logger, carrier string, hasMissing, hasUnderpriced bool) []model.CarrierPattern {
	if carrier != "" {
		trends, err := store.CarrierTrends(ctx, carrier)
		if err != nil {
			log.Warn("analyzer: carrier trends lookup failed", zap.String("carrier", carrier), zap.Error(err))
		} else if len(trends) > 0 {
			return trendPatterns(trends)
		}
	}
	return rules.Patterns(carrier, hasMissing, hasUnderpriced)
}

// storePricer looks prices up in the store and falls back to the rule pack.
// The returned counter tracks lookups that failed with an error.
func storePricer(store Store, rules *RulePack, log *zap.Logger) (priceFunc, *int) {
	errs := new(int)
	return func(ctx context.Context, it model.LineItem, zip string) (*model.PriceLookup, bool) {
		lookup, err := store.LookupPrice(ctx, it.Description, zip)
		if err != nil {
			*errs++
			log.Warn("analyzer: price lookup failed",
				zap.String("item", it.Description),
				zap.Error(err),
			)
		} else if lookup != nil && lookup.AveragePrice > 0 {
			return lookup, true
		}
		return rules.LookupPrice(it.Description), false
	}, errs
}

func pingStore(ctx context.Context, store Store, timeout time.Duration) bool {
	if store == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return store.Ping(pctx) == nil
}
