// Package importer loads partner ad configurations and regional demand from
// CSV or XLSX sheets.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// Options selects the source sheet.
type Options struct {
	// Sheet names the XLSX sheet to read. The first sheet is used when empty.
	Sheet string
}

// RowError describes a rejected row. Line is the 1-based record number,
// counting the header and skipping comment lines.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// record is one data row keyed by normalized header name.
type record struct {
	line   int
	fields map[string]string
}

func (r record) get(keys ...string) string {
	for _, k := range keys {
		if v, ok := r.fields[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// readRecords streams the file and maps each row onto the header row.
func readRecords(ctx context.Context, path string, opts Options) ([]record, error) {
	var (
		rowCh <-chan []string
		errCh <-chan error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rowCh, errCh = streamXLSX(ctx, path, opts.Sheet)
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rowCh, errCh = streamCSV(ctx, f)
	default:
		return nil, eris.Errorf("importer: unsupported file type %s", filepath.Ext(path))
	}

	var (
		header []string
		out    []record
		line   int
	)
	for row := range rowCh {
		line++
		if header == nil {
			header = make([]string, len(row))
			for i, h := range row {
				header[i] = normalizeHeader(h)
			}
			continue
		}
		if blank(row) {
			continue
		}
		rec := record{line: line, fields: make(map[string]string, len(header))}
		for i, h := range header {
			if i < len(row) {
				rec.fields[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if header == nil {
		return nil, eris.Errorf("importer: %s is empty", path)
	}
	return out, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// ReadPartners parses partner rows. Invalid rows are skipped and reported.
//
// Recognized columns: partner_id (or id), name, trade_type (or trade), tier,
// monthly_budget (or budget), budget_spent (or spent), regions (separated by
// ';', '|' or ','), state, trade_association, status.
func ReadPartners(ctx context.Context, path string, opts Options) ([]model.PartnerAdConfig, []RowError, error) {
	recs, err := readRecords(ctx, path, opts)
	if err != nil {
		return nil, nil, err
	}

	var (
		partners []model.PartnerAdConfig
		rejected []RowError
		seen     = make(map[string]int)
	)
	for _, rec := range recs {
		p, reason := parsePartner(rec)
		if reason != "" {
			rejected = append(rejected, RowError{Line: rec.line, Reason: reason})
			continue
		}
		// Later rows replace earlier ones with the same ID.
		if i, ok := seen[p.PartnerID]; ok {
			partners[i] = p
			continue
		}
		seen[p.PartnerID] = len(partners)
		partners = append(partners, p)
	}
	return partners, rejected, nil
}

func parsePartner(rec record) (model.PartnerAdConfig, string) {
	p := model.PartnerAdConfig{
		PartnerID: rec.get("partner_id", "id"),
		Name:      rec.get("name", "partner_name"),
		TradeType: strings.ToLower(rec.get("trade_type", "trade")),
		Tier:      model.PartnerTier(strings.ToLower(rec.get("tier"))),
		State:     strings.ToUpper(rec.get("state")),
		Regions:   splitList(rec.get("regions", "region")),
		Status:    model.PartnerStatus(strings.ToLower(rec.get("status"))),
	}
	if p.PartnerID == "" {
		return p, "partner_id is required"
	}
	if p.TradeType == "" {
		return p, "trade_type is required"
	}
	if p.Tier == "" {
		p.Tier = model.TierFree
	}
	if !p.Tier.Valid() {
		return p, fmt.Sprintf("unknown tier %q", p.Tier)
	}
	switch p.Status {
	case "":
		p.Status = model.PartnerActive
	case model.PartnerActive, model.PartnerPaused, model.PartnerExhausted:
	default:
		return p, fmt.Sprintf("unknown status %q", p.Status)
	}

	var err error
	if p.MonthlyBudget, err = parseMoney(rec.get("monthly_budget", "budget")); err != nil {
		return p, "monthly_budget: " + err.Error()
	}
	if p.BudgetSpent, err = parseMoney(rec.get("budget_spent", "spent")); err != nil {
		return p, "budget_spent: " + err.Error()
	}
	if p.MonthlyBudget < 0 || p.BudgetSpent < 0 {
		return p, "budgets must not be negative"
	}
	if p.TradeAssociation, err = parseFlag(rec.get("trade_association", "association")); err != nil {
		return p, "trade_association: " + err.Error()
	}
	return p, ""
}

// ReadDemand parses regional demand rows. Recognized columns: state, region,
// demand_index, disaster_declared, competitor_count, base_cpc_multiplier.
func ReadDemand(ctx context.Context, path string, opts Options) ([]model.RegionalDemand, []RowError, error) {
	recs, err := readRecords(ctx, path, opts)
	if err != nil {
		return nil, nil, err
	}

	var (
		out      []model.RegionalDemand
		rejected []RowError
	)
	for _, rec := range recs {
		d, reason := parseDemand(rec)
		if reason != "" {
			rejected = append(rejected, RowError{Line: rec.line, Reason: reason})
			continue
		}
		out = append(out, d)
	}
	return out, rejected, nil
}

func parseDemand(rec record) (model.RegionalDemand, string) {
	d := model.RegionalDemand{
		State:  strings.ToUpper(rec.get("state")),
		Region: rec.get("region"),
	}
	if d.State == "" {
		return d, "state is required"
	}

	var err error
	if d.DemandIndex, err = parseNumber(rec.get("demand_index", "demand")); err != nil {
		return d, "demand_index: " + err.Error()
	}
	if d.DemandIndex < 0 || d.DemandIndex > 100 {
		return d, "demand_index must be between 0 and 100"
	}
	if d.DisasterDeclared, err = parseFlag(rec.get("disaster_declared", "disaster")); err != nil {
		return d, "disaster_declared: " + err.Error()
	}
	if s := rec.get("competitor_count", "competitors"); s != "" {
		if d.CompetitorCount, err = strconv.Atoi(s); err != nil {
			return d, fmt.Sprintf("competitor_count: invalid integer %q", s)
		}
	}
	if d.BaseCPCMultiplier, err = parseNumber(rec.get("base_cpc_multiplier", "cpc_multiplier")); err != nil {
		return d, "base_cpc_multiplier: " + err.Error()
	}
	return d, ""
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' || r == ',' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseMoney accepts "1,250.00" and "$1250".
func parseMoney(s string) (float64, error) {
	return parseNumber(strings.NewReplacer("$", "", ",", "").Replace(s))
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y", "x":
		return true, nil
	}
	return false, eris.Errorf("invalid flag %q", s)
}
