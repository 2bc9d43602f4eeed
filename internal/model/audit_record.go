package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// AuditSchema tags the stored shape of an audit record.
type AuditSchema string

const (
	// AuditSchemaLegacy is the pre-router shape carrying a top-level status.
	AuditSchemaLegacy AuditSchema = "legacy"
	// AuditSchemaV2 is a ClaimAuditResult produced by the analysis router.
	AuditSchemaV2 AuditSchema = "v2"
)

// legacyStatuses are the overall verdicts written by the legacy auditor.
var legacyStatuses = map[string]bool{
	"underpaid": true,
	"fair":      true,
	"overpaid":  true,
	"review":    true,
}

// LegacyAuditItem is a line item as stored by the legacy auditor.
type LegacyAuditItem struct {
	Description string  `json:"description"`
	Quoted      float64 `json:"quoted"`
	Market      float64 `json:"market"`
	Difference  float64 `json:"difference"`
	Status      string  `json:"status"`
}

// LegacyAuditResult is the stored shape written before versioned analyzers.
type LegacyAuditResult struct {
	Status      string            `json:"status"`
	Carrier     string            `json:"carrier,omitempty"`
	ZipCode     string            `json:"zip_code,omitempty"`
	Items       []LegacyAuditItem `json:"items"`
	TotalQuoted float64           `json:"total_quoted"`
	TotalMarket float64           `json:"total_market"`
	Notes       []string          `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// AuditRecord is a stored audit resolved to exactly one schema. Consumers
// switch on Schema instead of probing fields.
type AuditRecord struct {
	Schema  AuditSchema
	Legacy  *LegacyAuditResult
	Current *ClaimAuditResult
}

// DecodeAuditRecord resolves raw stored JSON into a tagged AuditRecord.
// Records with an explicit version field decode as v2; records whose status
// field holds a legacy verdict decode as legacy.
func DecodeAuditRecord(data []byte) (AuditRecord, error) {
	var probe struct {
		Version string `json:"version"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return AuditRecord{}, eris.Wrap(err, "model: decode audit record")
	}

	switch {
	case probe.Version != "":
		var cur ClaimAuditResult
		if err := json.Unmarshal(data, &cur); err != nil {
			return AuditRecord{}, eris.Wrap(err, "model: decode v2 audit")
		}
		return AuditRecord{Schema: AuditSchemaV2, Current: &cur}, nil
	case legacyStatuses[probe.Status]:
		var leg LegacyAuditResult
		if err := json.Unmarshal(data, &leg); err != nil {
			return AuditRecord{}, eris.Wrap(err, "model: decode legacy audit")
		}
		return AuditRecord{Schema: AuditSchemaLegacy, Legacy: &leg}, nil
	default:
		return AuditRecord{}, eris.Errorf("model: unrecognized audit record (status %q)", probe.Status)
	}
}

// Normalize converts the record into the current result shape. Legacy records
// map to the archived role since that auditor had no confidence model.
func (r AuditRecord) Normalize() ClaimAuditResult {
	switch r.Schema {
	case AuditSchemaV2:
		if r.Current != nil {
			return *r.Current
		}
	case AuditSchemaLegacy:
		if r.Legacy != nil {
			return r.Legacy.toCurrent()
		}
	}
	return ClaimAuditResult{}
}

func (l *LegacyAuditResult) toCurrent() ClaimAuditResult {
	out := ClaimAuditResult{
		Version:         "legacy",
		Role:            RoleArchived,
		Success:         true,
		Recommendations: append([]string(nil), l.Notes...),
		CreatedAt:       l.CreatedAt,
	}
	for _, it := range l.Items {
		ai := AuditedItem{
			LineItem:    LineItem{Description: it.Description, QuotedPrice: it.Quoted, Quantity: 1},
			MarketPrice: it.Market,
		}
		if it.Market > 0 {
			ai.VariancePct = (it.Quoted - it.Market) / it.Market * 100
		}
		switch it.Status {
		case "underpaid":
			ai.Flags = []string{FlagUnderpriced}
		case "overpaid":
			ai.Flags = []string{FlagOverpriced}
		}
		if len(ai.Flags) > 0 {
			out.Summary.ItemsFlagged++
		}
		out.Items = append(out.Items, ai)
	}
	out.Summary.ItemsAudited = len(l.Items)
	out.Summary.TotalQuoted = l.TotalQuoted
	out.Summary.TotalMarket = l.TotalMarket
	if diff := l.TotalMarket - l.TotalQuoted; diff > 0 {
		out.Summary.PotentialRecovery = diff
	}
	return out
}
