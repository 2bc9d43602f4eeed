package analyzer

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

//go:embed rules.yaml
var defaultRules []byte

// Pattern conditions.
const (
	whenMissingItems = "missing_items"
	whenUnderpriced  = "underpriced"
	whenAlways       = "always"
)

// RulePack is the static knowledge used when database or LLM analysis is
// unavailable, and to fill gaps in both.
type RulePack struct {
	Thresholds      Thresholds    `yaml:"thresholds"`
	Prices          []PriceRule   `yaml:"prices"`
	MissingItems    []MissingRule `yaml:"missing_items"`
	CarrierPatterns []PatternRule `yaml:"carrier_patterns"`
}

// Thresholds are the variance limits for flagging, in percent.
type Thresholds struct {
	UnderpricedPct float64 `yaml:"underpriced_pct"`
	OverpricedPct  float64 `yaml:"overpriced_pct"`
}

// PriceRule is a unit price for descriptions containing any keyword.
type PriceRule struct {
	Keywords []string `yaml:"keywords"`
	Category string   `yaml:"category"`
	Unit     string   `yaml:"unit"`
	Average  float64  `yaml:"average"`
	High     float64  `yaml:"high"`
}

// MissingRule expects companion items when a trigger item is present.
type MissingRule struct {
	Trigger []string       `yaml:"trigger"`
	Expect  []ExpectedItem `yaml:"expect"`
}

// ExpectedItem is a companion item and the keywords that show it is present.
type ExpectedItem struct {
	Description    string   `yaml:"description"`
	Category       string   `yaml:"category"`
	Keywords       []string `yaml:"keywords"`
	Reason         string   `yaml:"reason"`
	EstimatedValue float64  `yaml:"estimated_value"`
}

// PatternRule is a carrier tactic that applies when its condition holds.
type PatternRule struct {
	Carrier     string  `yaml:"carrier"`
	Strategy    string  `yaml:"strategy"`
	Frequency   float64 `yaml:"frequency"`
	Description string  `yaml:"description"`
	When        string  `yaml:"when"`
}

// LoadRulePack reads a rule pack from path, or the embedded pack when path
// is empty.
func LoadRulePack(path string) (*RulePack, error) {
	data := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "analyzer: read rule pack %s", path)
		}
		data = b
	}
	return ParseRulePack(data)
}

// ParseRulePack decodes and validates a YAML rule pack.
func ParseRulePack(data []byte) (*RulePack, error) {
	var rp RulePack
	if err := yaml.Unmarshal(data, &rp); err != nil {
		return nil, eris.Wrap(err, "analyzer: parse rule pack")
	}
	if len(rp.Prices) == 0 {
		return nil, eris.New("analyzer: rule pack has no prices")
	}
	for i, p := range rp.Prices {
		if len(p.Keywords) == 0 || p.Average <= 0 {
			return nil, eris.Errorf("analyzer: price rule %d needs keywords and a positive average", i)
		}
		for j, k := range p.Keywords {
			rp.Prices[i].Keywords[j] = strings.ToLower(k)
		}
	}
	if rp.Thresholds.UnderpricedPct == 0 {
		rp.Thresholds.UnderpricedPct = -10
	}
	if rp.Thresholds.OverpricedPct == 0 {
		rp.Thresholds.OverpricedPct = 20
	}
	return &rp, nil
}

// MustDefaultRulePack returns the embedded rule pack.
func MustDefaultRulePack() *RulePack {
	rp, err := ParseRulePack(defaultRules)
	if err != nil {
		panic(err)
	}
	return rp
}

// LookupPrice returns the unit price of the most specific rule matching
// description, or nil. Longer keyword matches win.
func (rp *RulePack) LookupPrice(description string) *model.PriceLookup {
	d := strings.ToLower(description)
	var best *PriceRule
	bestLen := 0
	for i := range rp.Prices {
		for _, k := range rp.Prices[i].Keywords {
			if len(k) > bestLen && strings.Contains(d, k) {
				best, bestLen = &rp.Prices[i], len(k)
			}
		}
	}
	if best == nil {
		return nil
	}
	return &model.PriceLookup{
		Description:  description,
		Category:     best.Category,
		Unit:         best.Unit,
		AveragePrice: best.Average,
		HighPrice:    best.High,
	}
}

// PriceTable flattens the price rules into national price rows, one per
// keyword, for seeding the store.
func (rp *RulePack) PriceTable() []model.PriceLookup {
	var out []model.PriceLookup
	for _, r := range rp.Prices {
		for _, k := range r.Keywords {
			out = append(out, model.PriceLookup{
				Description:  k,
				Category:     r.Category,
				Unit:         r.Unit,
				AveragePrice: r.Average,
				HighPrice:    r.High,
			})
		}
	}
	return out
}

// Missing returns expected companion items absent from items.
func (rp *RulePack) Missing(items []model.LineItem) []model.MissingItem {
	descs := make([]string, len(items))
	for i, it := range items {
		descs[i] = strings.ToLower(it.Description)
	}
	anyContains := func(keywords []string) bool {
		for _, d := range descs {
			for _, k := range keywords {
				if strings.Contains(d, strings.ToLower(k)) {
					return true
				}
			}
		}
		return false
	}

	var out []model.MissingItem
	seen := map[string]bool{}
	for _, r := range rp.MissingItems {
		if !anyContains(r.Trigger) {
			continue
		}
		for _, e := range r.Expect {
			if seen[e.Description] || anyContains(e.Keywords) {
				continue
			}
			seen[e.Description] = true
			out = append(out, model.MissingItem{
				Description:    e.Description,
				Category:       e.Category,
				Reason:         e.Reason,
				EstimatedValue: e.EstimatedValue,
			})
		}
	}
	return out
}

// Patterns returns the generic carrier patterns whose condition holds.
func (rp *RulePack) Patterns(carrier string, hasMissing, hasUnderpriced bool) []model.CarrierPattern {
	var out []model.CarrierPattern
	for _, p := range rp.CarrierPatterns {
		if p.Carrier != "*" && !strings.EqualFold(p.Carrier, carrier) {
			continue
		}
		switch p.When {
		case whenMissingItems:
			if !hasMissing {
				continue
			}
		case whenUnderpriced:
			if !hasUnderpriced {
				continue
			}
		case whenAlways, "":
		default:
			continue
		}
		name := carrier
		if name == "" {
			name = "unknown"
		}
		out = append(out, model.CarrierPattern{
			Carrier:     name,
			Strategy:    p.Strategy,
			Frequency:   p.Frequency,
			Description: p.Description,
		})
	}
	return out
}
