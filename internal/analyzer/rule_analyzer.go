package analyzer

import (
	"context"
	"time"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// RuleAnalyzer audits claims against the static rule pack only. It has no
// external dependencies and is always available.
type RuleAnalyzer struct {
	rules   *RulePack
	nowFunc func() time.Time
}

// NewRuleAnalyzer creates the archived-but-viable analyzer.
func NewRuleAnalyzer(rules *RulePack) *RuleAnalyzer {
	return &RuleAnalyzer{rules: rules, nowFunc: time.Now}
}

// Version returns v1-rules in the archived role.
func (a *RuleAnalyzer) Version() model.AnalyzerVersion {
	return model.AnalyzerVersion{ID: VersionRules, Role: model.RoleArchived}
}

// Available always reports true.
func (a *RuleAnalyzer) Available(context.Context) bool { return true }

// Analyze never returns an error.
func (a *RuleAnalyzer) Analyze(ctx context.Context, in model.ClaimAuditInput) (*model.ClaimAuditResult, error) {
	start := a.nowFunc()
	res := newResult(a.Version(), start)

	items, carrier := collectItems(in)
	audited, st := auditItems(ctx, a.rules, items, in.ZipCode, func(_ context.Context, it model.LineItem, _ string) (*model.PriceLookup, bool) {
		return a.rules.LookupPrice(it.Description), false
	})
	missing := a.rules.Missing(items)

	res.Success = true
	res.Items = audited
	res.MissingItems = missing
	res.CarrierPatterns = a.rules.Patterns(carrier, len(missing) > 0, st.underpriced)
	res.Summary = summarize(audited, missing)

	var extra []string
	if len(items) == 0 {
		extra = append(extra, "No line items were recognized; upload an itemized estimate for a full review.")
	}
	res.Recommendations = recommend(audited, missing, res.Summary, extra...)

	conf := 0.1
	if st.audited > 0 {
		conf = 0.25 + 0.15*st.pricedFraction()
	}
	res.Confidence = res.Role.ClampConfidence(conf)
	res.ProcessingTime = a.nowFunc().Sub(start)
	return res, nil
}
