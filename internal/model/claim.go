package model

import "time"

// Item flags attached during an audit.
const (
	FlagUnderpriced  = "underpriced"
	FlagOverpriced   = "overpriced"
	FlagNoMarketData = "no_market_data"
	FlagZeroQuantity = "zero_quantity"
)

// LineItem is a single priced entry on a carrier estimate.
type LineItem struct {
	Description string  `json:"description"`
	QuotedPrice float64 `json:"quoted_price"`
	Category    string  `json:"category,omitempty"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
}

// ClaimAuditInput is the request for a claim analysis.
type ClaimAuditInput struct {
	CarrierName  string     `json:"carrier_name,omitempty"`
	ZipCode      string     `json:"zip_code"`
	Items        []LineItem `json:"items"`
	DocumentText string     `json:"document_text,omitempty"`
}

// AuditedItem is a line item annotated with market comparison data.
type AuditedItem struct {
	LineItem
	MarketPrice    float64  `json:"market_price"`
	HighPrice      float64  `json:"high_price,omitempty"`
	VariancePct    float64  `json:"variance_pct"`
	Flags          []string `json:"flags,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// HasFlag reports whether the item carries flag f.
func (a AuditedItem) HasFlag(f string) bool {
	for _, fl := range a.Flags {
		if fl == f {
			return true
		}
	}
	return false
}

// MissingItem is an expected line item absent from the estimate.
type MissingItem struct {
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Reason         string  `json:"reason"`
	EstimatedValue float64 `json:"estimated_value,omitempty"`
}

// CarrierPattern is a known carrier underpayment tactic matched to this claim.
type CarrierPattern struct {
	Carrier     string  `json:"carrier"`
	Strategy    string  `json:"strategy"`
	Frequency   float64 `json:"frequency"`
	Description string  `json:"description,omitempty"`
}

// AuditSummary aggregates the audited items.
type AuditSummary struct {
	TotalQuoted       float64 `json:"total_quoted"`
	TotalMarket       float64 `json:"total_market"`
	PotentialRecovery float64 `json:"potential_recovery"`
	ItemsAudited      int     `json:"items_audited"`
	ItemsFlagged      int     `json:"items_flagged"`
	MissingItems      int     `json:"missing_items"`
}

// ClaimAuditResult is the outcome of a claim analysis. Version and Role tag
// the producing analyzer; Confidence is never mixed across versions.
type ClaimAuditResult struct {
	ID              string           `json:"id"`
	Version         string           `json:"version"`
	Role            AnalyzerRole     `json:"role"`
	Success         bool             `json:"success"`
	Items           []AuditedItem    `json:"items"`
	MissingItems    []MissingItem    `json:"missing_items"`
	CarrierPatterns []CarrierPattern `json:"carrier_patterns"`
	Recommendations []string         `json:"recommendations"`
	Summary         AuditSummary     `json:"summary"`
	Confidence      float64          `json:"confidence"`
	ProcessingTime  time.Duration    `json:"processing_time_ns"`
	FallbackReason  string           `json:"fallback_reason,omitempty"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PriceLookup is a market price record returned by the pricing collaborator.
type PriceLookup struct {
	Description  string  `json:"description"`
	Category     string  `json:"category,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	AveragePrice float64 `json:"average_price"`
	HighPrice    float64 `json:"high_price"`
	ZipPrefix    string  `json:"zip_prefix,omitempty"`
}

// CarrierTrend is a historical underpayment strategy observed for a carrier.
type CarrierTrend struct {
	Carrier     string    `json:"carrier"`
	Strategy    string    `json:"strategy"`
	Frequency   float64   `json:"frequency"`
	Description string    `json:"description,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}
