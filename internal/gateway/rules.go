package gateway

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// categoryKeywords maps a trade category to description keywords, checked in
// order so that more specific trades win.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"gutters", []string{"gutter", "downspout"}},
	{"roofing", []string{"shingle", "roof", "drip edge", "underlayment", "felt", "ridge", "flashing", "ice & water", "ice and water", "starter"}},
	{"siding", []string{"siding", "soffit", "fascia", "house wrap"}},
	{"windows", []string{"window", "glazing", "screen"}},
	{"drywall", []string{"drywall", "sheetrock", "gypsum", "texture"}},
	{"painting", []string{"paint", "primer", "stain"}},
	{"flooring", []string{"carpet", "floor", "tile", "laminate", "vinyl plank", "pad"}},
	{"plumbing", []string{"plumb", "pipe", "water heater", "faucet", "toilet"}},
	{"electrical", []string{"electric", "outlet", "wiring", "breaker", "fixture"}},
	{"hvac", []string{"hvac", "furnace", "condenser", "duct", "air handler"}},
	{"cleanup", []string{"debris", "haul", "dumpster", "tear off", "tear-off", "mitigation"}},
}

// Categorize returns the trade category for a line item description, or
// "general" when nothing matches.
func Categorize(description string) string {
	d := strings.ToLower(description)
	for _, c := range categoryKeywords {
		for _, k := range c.keywords {
			if strings.Contains(d, k) {
				return c.category
			}
		}
	}
	return "general"
}

var (
	// "Laminated shingles 24.5 SQ $6,125.00" or "Drip edge - 180 LF @ 2.10 = 378.00"
	linePattern = regexp.MustCompile(
		`(?i)^\s*(?:\d+[.)]\s*)?(?P<desc>[a-z][^$@=\d]*?)\s*[-:]?\s*` +
			`(?:(?P<qty>\d+(?:\.\d+)?)\s*(?P<unit>sq|lf|sf|sy|ea|hr|each)\b\.?\s*)?` +
			`(?:@\s*\$?\d[\d,]*(?:\.\d+)?\s*)?(?:=\s*)?\$?(?P<price>\d[\d,]*\.\d{2})\s*$`)
	carrierPattern = regexp.MustCompile(`(?im)^\s*(?:carrier|insurer|insurance company)\s*[:\-]\s*(.+?)\s*$`)
)

// RuleExtractor reads claims with regular expressions. It never fails and is
// the last step of the gateway cascade.
type RuleExtractor struct{}

// NewRuleExtractor returns a rule extractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Extract categorizes structured items and parses priced lines out of the
// free-text estimate.
func (r *RuleExtractor) Extract(in model.ClaimAuditInput) *Extraction {
	ext := &Extraction{CarrierName: in.CarrierName, Confidence: 0.5}

	for _, it := range in.Items {
		if strings.TrimSpace(it.Description) == "" {
			continue
		}
		if it.Category == "" {
			it.Category = Categorize(it.Description)
		}
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		ext.Items = append(ext.Items, it)
	}

	if ext.CarrierName == "" {
		if m := carrierPattern.FindStringSubmatch(in.DocumentText); m != nil {
			ext.CarrierName = m[1]
		}
	}

	for _, line := range strings.Split(in.DocumentText, "\n") {
		if it, ok := parseLine(line); ok {
			ext.Items = append(ext.Items, it)
		}
	}

	if len(ext.Items) == 0 {
		ext.Confidence = 0.2
		ext.Recommendations = append(ext.Recommendations,
			"No priced line items were recognized; upload an itemized estimate for a full review.")
	}
	return ext
}

// summaryPrefixes start estimate lines that are totals rather than work items.
var summaryPrefixes = []string{"total", "subtotal", "sub-total", "sales tax", "tax", "deductible", "depreciation", "net claim", "acv", "rcv", "balance", "amount due", "paid"}

func isSummaryLine(desc string) bool {
	d := strings.ToLower(desc)
	for _, p := range summaryPrefixes {
		if strings.HasPrefix(d, p) {
			return true
		}
	}
	return false
}

func parseLine(line string) (model.LineItem, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return model.LineItem{}, false
	}
	get := func(name string) string { return m[linePattern.SubexpIndex(name)] }

	desc := strings.TrimSpace(strings.TrimRight(get("desc"), "-: "))
	if desc == "" || isSummaryLine(desc) {
		return model.LineItem{}, false
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(get("price"), ",", ""), 64)
	if err != nil {
		return model.LineItem{}, false
	}
	qty := 1.0
	if q := get("qty"); q != "" {
		if v, err := strconv.ParseFloat(q, 64); err == nil && v > 0 {
			qty = v
		}
	}
	return model.LineItem{
		Description: desc,
		QuotedPrice: price,
		Category:    Categorize(desc),
		Quantity:    qty,
		Unit:        strings.ToUpper(get("unit")),
	}, true
}
