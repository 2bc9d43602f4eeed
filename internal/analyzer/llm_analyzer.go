package analyzer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/gateway"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
)

// degradedConfidence caps the primary result when the gateway answered with
// its rule extractor instead of an LLM.
const degradedConfidence = 0.6

// Extractor is the LLM gateway as seen by the primary analyzer.
type Extractor interface {
	Configured() bool
	Available() bool
	Extract(ctx context.Context, req gateway.Request) *gateway.Response
}

// LLMAnalyzer reads the claim through the LLM gateway and prices the
// extracted items from the store, falling back to the rule pack.
type LLMAnalyzer struct {
	gw      Extractor
	store   Store
	rules   *RulePack
	nowFunc func() time.Time
	log     *zap.Logger
}

// NewLLMAnalyzer creates the primary analyzer. store may be nil, in which
// case only the rule pack prices items.
func NewLLMAnalyzer(gw Extractor, store Store, rules *RulePack) *LLMAnalyzer {
	return &LLMAnalyzer{
		gw:      gw,
		store:   store,
		rules:   rules,
		nowFunc: time.Now,
		log:     zap.L().With(zap.String("component", "analyzer"), zap.String("version", VersionLLM)),
	}
}

// Version returns v3-llm in the primary role.
func (a *LLMAnalyzer) Version() model.AnalyzerVersion {
	return model.AnalyzerVersion{ID: VersionLLM, Role: model.RolePrimary}
}

// Configured reports whether any LLM provider has credentials or an endpoint.
func (a *LLMAnalyzer) Configured() bool {
	return a.gw != nil && a.gw.Configured()
}

// Available reports whether any LLM provider would be tried.
func (a *LLMAnalyzer) Available(context.Context) bool {
	return a.gw != nil && a.gw.Available()
}

// Analyze fails when the extraction yields no line items.
func (a *LLMAnalyzer) Analyze(ctx context.Context, in model.ClaimAuditInput) (*model.ClaimAuditResult, error) {
	start := a.nowFunc()
	res := newResult(a.Version(), start)

	resp := a.gw.Extract(ctx, gateway.Request{Input: in})
	ext := resp.Extraction
	if len(ext.Items) == 0 {
		return nil, eris.Wrapf(resilience.ErrAnalyzer, "analyzer: v3-llm: no line items extracted by %s", resp.Provider)
	}

	price := func(_ context.Context, it model.LineItem, _ string) (*model.PriceLookup, bool) {
		return a.rules.LookupPrice(it.Description), false
	}
	if a.store != nil {
		price, _ = storePricer(a.store, a.rules, a.log)
	}
	audited, st := auditItems(ctx, a.rules, ext.Items, in.ZipCode, price)

	missing := mergeMissing(ext.MissingItems, a.rules.Missing(ext.Items))
	carrier := ext.CarrierName
	if carrier == "" {
		carrier = in.CarrierName
	}

	res.Success = true
	res.Items = audited
	res.MissingItems = missing
	if a.store != nil {
		res.CarrierPatterns = carrierPatterns(ctx, a.store, a.rules, a.log, carrier, len(missing) > 0, st.underpriced)
	} else {
		res.CarrierPatterns = a.rules.Patterns(carrier, len(missing) > 0, st.underpriced)
	}
	res.Summary = summarize(audited, missing)
	res.Recommendations = recommend(audited, missing, res.Summary, ext.Recommendations...)

	conf := ext.Confidence*0.7 + 0.25*st.pricedFraction()
	if !resp.UsedLLM() {
		res.FallbackReason = resp.FallbackReason
		conf = min(conf, degradedConfidence)
	}
	res.Confidence = res.Role.ClampConfidence(conf)
	res.ProcessingTime = a.nowFunc().Sub(start)

	a.log.Debug("analyzer: claim analyzed",
		zap.String("provider", resp.Provider),
		zap.Int("items", len(audited)),
		zap.Int("missing", len(missing)),
		zap.Float64("confidence", res.Confidence),
	)
	return res, nil
}
