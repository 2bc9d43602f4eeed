package analyzer

import (
	"context"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/gateway"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// money formats v as US dollars with thousands separators.
func money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// priceFunc resolves the market unit price of one item. fromStore reports
// whether the price came from the database rather than the rule pack.
type priceFunc func(ctx context.Context, it model.LineItem, zip string) (lookup *model.PriceLookup, fromStore bool)

// auditStats counts how an item set was priced.
type auditStats struct {
	audited     int
	priced      int
	storePriced int
	underpriced bool
}

// pricedFraction is the share of items that had market data.
func (s auditStats) pricedFraction() float64 {
	if s.audited == 0 {
		return 0
	}
	return float64(s.priced) / float64(s.audited)
}

// collectItems returns the structured items of in, categorized, followed by
// priced lines parsed from its document text. Zero quantities are kept so
// the audit can flag them.
func collectItems(in model.ClaimAuditInput) (items []model.LineItem, carrier string) {
	for _, it := range in.Items {
		if strings.TrimSpace(it.Description) == "" {
			continue
		}
		if it.Category == "" {
			it.Category = gateway.Categorize(it.Description)
		}
		items = append(items, it)
	}
	carrier = in.CarrierName
	if in.DocumentText != "" {
		ext := gateway.NewRuleExtractor().Extract(model.ClaimAuditInput{
			CarrierName:  in.CarrierName,
			DocumentText: in.DocumentText,
		})
		items = append(items, ext.Items...)
		carrier = ext.CarrierName
	}
	return items, carrier
}

// auditItems compares each item against its market price.
func auditItems(ctx context.Context, rp *RulePack, items []model.LineItem, zip string, price priceFunc) ([]model.AuditedItem, auditStats) {
	out := make([]model.AuditedItem, 0, len(items))
	var st auditStats

	for _, it := range items {
		ai := model.AuditedItem{LineItem: it}
		qty := it.Quantity
		if qty <= 0 {
			ai.Flags = append(ai.Flags, model.FlagZeroQuantity)
			qty = 1
		}
		st.audited++

		lookup, fromStore := price(ctx, it, zip)
		if lookup == nil || lookup.AveragePrice <= 0 {
			ai.Flags = append(ai.Flags, model.FlagNoMarketData)
			ai.Recommendation = "Get a contractor quote for " + it.Description + "; no market data is available for this item."
			out = append(out, ai)
			continue
		}
		st.priced++
		if fromStore {
			st.storePriced++
		}
		if ai.Unit == "" {
			ai.Unit = lookup.Unit
		}
		if ai.Category == "" {
			ai.Category = lookup.Category
		}

		ai.MarketPrice = round2(lookup.AveragePrice * qty)
		ai.HighPrice = round2(lookup.HighPrice * qty)
		ai.VariancePct = round2((it.QuotedPrice - ai.MarketPrice) / ai.MarketPrice * 100)

		switch {
		case ai.VariancePct <= rp.Thresholds.UnderpricedPct:
			ai.Flags = append(ai.Flags, model.FlagUnderpriced)
			st.underpriced = true
			ai.Recommendation = printer.Sprintf("Request %s more for %s: quoted %s against a market price of %s.",
				money(ai.MarketPrice-it.QuotedPrice), it.Description, money(it.QuotedPrice), money(ai.MarketPrice))
		case ai.VariancePct >= rp.Thresholds.OverpricedPct:
			ai.Flags = append(ai.Flags, model.FlagOverpriced)
			ai.Recommendation = "Verify the scope of " + it.Description + "; it is quoted above the typical market price."
		}
		out = append(out, ai)
	}
	return out, st
}

// summarize totals the audited and missing items. Items without market data
// count at their quoted price.
func summarize(items []model.AuditedItem, missing []model.MissingItem) model.AuditSummary {
	var s model.AuditSummary
	for _, it := range items {
		s.ItemsAudited++
		s.TotalQuoted += it.QuotedPrice
		if it.HasFlag(model.FlagNoMarketData) {
			s.TotalMarket += it.QuotedPrice
		} else {
			s.TotalMarket += it.MarketPrice
		}
		if len(it.Flags) > 0 {
			s.ItemsFlagged++
		}
		if it.HasFlag(model.FlagUnderpriced) {
			s.PotentialRecovery += it.MarketPrice - it.QuotedPrice
		}
	}
	for _, m := range missing {
		s.PotentialRecovery += m.EstimatedValue
	}
	s.MissingItems = len(missing)
	s.TotalQuoted = round2(s.TotalQuoted)
	s.TotalMarket = round2(s.TotalMarket)
	s.PotentialRecovery = round2(s.PotentialRecovery)
	return s
}

// recommend lists item recommendations, then missing items, then the total.
func recommend(items []model.AuditedItem, missing []model.MissingItem, summary model.AuditSummary, extra ...string) []string {
	out := make([]string, 0, len(items)+len(missing)+len(extra)+1)
	seen := map[string]bool{}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, it := range items {
		add(it.Recommendation)
	}
	for _, m := range missing {
		rec := "Ask the adjuster to add " + m.Description
		if m.Reason != "" {
			rec += " (" + m.Reason + ")"
		}
		add(rec + ".")
	}
	for _, e := range extra {
		add(e)
	}
	if summary.PotentialRecovery > 0 {
		add(printer.Sprintf("Potential recovery of %s; consider filing a supplement request.", money(summary.PotentialRecovery)))
	}
	return out
}

// mergeMissing appends items from b whose description is not already in a.
func mergeMissing(a, b []model.MissingItem) []model.MissingItem {
	seen := make(map[string]bool, len(a))
	for _, m := range a {
		seen[strings.ToLower(m.Description)] = true
	}
	for _, m := range b {
		k := strings.ToLower(m.Description)
		if !seen[k] {
			seen[k] = true
			a = append(a, m)
		}
	}
	return a
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
