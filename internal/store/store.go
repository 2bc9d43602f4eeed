// Package store persists market pricing, carrier trends, regional demand,
// partner ad configurations and audit results on Postgres or SQLite.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for claim analysis and partner
// placement.
type Store interface {
	// Market data
	LookupPrice(ctx context.Context, description, zip string) (*model.PriceLookup, error)
	UpsertPrices(ctx context.Context, prices []model.PriceLookup) (int64, error)
	CarrierTrends(ctx context.Context, carrier string) ([]model.CarrierTrend, error)
	RegionalDemand(ctx context.Context, state, region string) (*model.RegionalDemand, error)
	UpsertDemand(ctx context.Context, demand []model.RegionalDemand) (int64, error)

	// Partners
	ListPartners(ctx context.Context, filter model.PartnerFilter) ([]model.PartnerAdConfig, error)
	GetPartner(ctx context.Context, id string) (*model.PartnerAdConfig, error)
	UpsertPartners(ctx context.Context, partners []model.PartnerAdConfig) (int64, error)
	RecordImpressions(ctx context.Context, ids []string, at time.Time) error

	// Audits
	SaveAudit(ctx context.Context, res *model.ClaimAuditResult) error
	GetAudit(ctx context.Context, id string) (*model.ClaimAuditResult, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// zipPrefix returns the three-digit ZIP prefix used to regionalize prices.
func zipPrefix(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) < 3 {
		return ""
	}
	return zip[:3]
}

func joinRegions(regions []string) string {
	return strings.Join(regions, ",")
}

func splitRegions(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// filterRegion keeps partners serving region. Regions are stored as a
// delimited list so the match happens here rather than in SQL.
func filterRegion(partners []model.PartnerAdConfig, region string) []model.PartnerAdConfig {
	if region == "" {
		return partners
	}
	out := partners[:0]
	for _, p := range partners {
		for _, r := range p.Regions {
			if strings.EqualFold(r, region) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// rowScanner is satisfied by both pgx.Row and *sql.Row(s).
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPartner(row rowScanner) (model.PartnerAdConfig, error) {
	var (
		p       model.PartnerAdConfig
		regions string
		tier    string
		status  string
	)
	err := row.Scan(&p.PartnerID, &p.Name, &p.TradeType, &tier, &p.MonthlyBudget, &p.BudgetSpent,
		&regions, &p.State, &p.TradeAssociation, &status, &p.LastShownAt, &p.Impressions, &p.Clicks)
	if err != nil {
		return p, err
	}
	p.Tier = model.PartnerTier(tier)
	p.Status = model.PartnerStatus(status)
	p.Regions = splitRegions(regions)
	if p.LastShownAt != nil {
		t := p.LastShownAt.UTC()
		p.LastShownAt = &t
	}
	return p, nil
}

func partnerRow(p model.PartnerAdConfig, now time.Time) []any {
	status := p.Status
	if status == "" {
		status = model.PartnerActive
	}
	return []any{
		p.PartnerID, p.Name, strings.ToLower(p.TradeType), string(p.Tier), p.MonthlyBudget, p.BudgetSpent,
		joinRegions(p.Regions), strings.ToUpper(p.State), p.TradeAssociation, string(status), now,
	}
}

func priceRow(p model.PriceLookup, now time.Time) []any {
	return []any{
		strings.ToLower(strings.TrimSpace(p.Description)), p.Category, p.Unit, p.ZipPrefix,
		p.AveragePrice, p.HighPrice, now,
	}
}

func demandRow(d model.RegionalDemand, now time.Time) []any {
	mult := d.BaseCPCMultiplier
	if mult == 0 {
		mult = 1
	}
	return []any{
		strings.ToUpper(d.State), d.Region, d.DemandIndex, d.DisasterDeclared, d.CompetitorCount, mult, now,
	}
}
