package store

import (
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

var partnerColumns = []string{
	"partner_id", "name", "trade_type", "tier", "monthly_budget", "budget_spent",
	"regions", "state", "trade_association", "status", "last_shown_at", "impressions", "clicks",
}

// partnerWriteColumns are the columns owned by the partner import. Impression
// counters and last_shown_at are maintained by placements.
var partnerWriteColumns = []string{
	"partner_id", "name", "trade_type", "tier", "monthly_budget", "budget_spent",
	"regions", "state", "trade_association", "status", "updated_at",
}

var priceColumns = []string{"keyword", "category", "unit", "zip_prefix", "average_price", "high_price", "updated_at"}

var demandColumns = []string{
	"state", "region", "demand_index", "disaster_declared", "competitor_count", "base_cpc_multiplier", "updated_at",
}

// queries builds the SQL shared by both backends. Only the placeholder
// format differs.
type queries struct {
	sb sq.StatementBuilderType
}

func newQueries(ph sq.PlaceholderFormat) queries {
	return queries{sb: sq.StatementBuilder.PlaceholderFormat(ph)}
}

// lookupPrice matches stored keywords contained in the description. A
// regional price beats the national one and longer keywords beat shorter.
func (q queries) lookupPrice(description, zip string) sq.SelectBuilder {
	return q.sb.Select("keyword", "category", "unit", "zip_prefix", "average_price", "high_price").
		From("price_data").
		Where("CAST(? AS TEXT) LIKE '%' || keyword || '%'", strings.ToLower(description)).
		Where(sq.Or{sq.Eq{"zip_prefix": zipPrefix(zip)}, sq.Eq{"zip_prefix": ""}}).
		OrderBy("CASE WHEN zip_prefix = '' THEN 1 ELSE 0 END", "length(keyword) DESC").
		Limit(1)
}

func (q queries) upsertPrices(prices []model.PriceLookup, now time.Time) sq.InsertBuilder {
	b := q.sb.Insert("price_data").Columns(priceColumns...)
	for _, p := range prices {
		b = b.Values(priceRow(p, now)...)
	}
	return b.Suffix(`ON CONFLICT (keyword, zip_prefix) DO UPDATE SET
		category = excluded.category, unit = excluded.unit,
		average_price = excluded.average_price, high_price = excluded.high_price,
		updated_at = excluded.updated_at`)
}

func (q queries) carrierTrends(carrier string) sq.SelectBuilder {
	return q.sb.Select("carrier", "strategy", "frequency", "description", "observed_at").
		From("carrier_trends").
		Where("lower(carrier) = ?", strings.ToLower(carrier)).
		OrderBy("frequency DESC", "observed_at DESC")
}

// regionalDemand prefers the exact region over the state-wide row.
func (q queries) regionalDemand(state, region string) sq.SelectBuilder {
	return q.sb.Select(demandColumns[:6]...).
		From("regional_demand").
		Where(sq.Eq{"state": strings.ToUpper(state)}).
		Where(sq.Or{sq.Eq{"region": region}, sq.Eq{"region": ""}}).
		OrderBy("region DESC").
		Limit(1)
}

func (q queries) upsertDemand(demand []model.RegionalDemand, now time.Time) sq.InsertBuilder {
	b := q.sb.Insert("regional_demand").Columns(demandColumns...)
	for _, d := range demand {
		b = b.Values(demandRow(d, now)...)
	}
	return b.Suffix(`ON CONFLICT (state, region) DO UPDATE SET
		demand_index = excluded.demand_index, disaster_declared = excluded.disaster_declared,
		competitor_count = excluded.competitor_count, base_cpc_multiplier = excluded.base_cpc_multiplier,
		updated_at = excluded.updated_at`)
}

// listPartners applies the state, trade and status filters. The region
// filter is applied after scanning.
func (q queries) listPartners(f model.PartnerFilter) sq.SelectBuilder {
	b := q.sb.Select(partnerColumns...).From("partners").OrderBy("partner_id")
	if f.State != "" {
		b = b.Where(sq.Eq{"state": strings.ToUpper(f.State)})
	}
	if f.TradeType != "" {
		b = b.Where(sq.Eq{"trade_type": strings.ToLower(f.TradeType)})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	return b
}

func (q queries) getPartner(id string) sq.SelectBuilder {
	return q.sb.Select(partnerColumns...).From("partners").Where(sq.Eq{"partner_id": id})
}

func (q queries) upsertPartners(partners []model.PartnerAdConfig, now time.Time) sq.InsertBuilder {
	b := q.sb.Insert("partners").Columns(partnerWriteColumns...)
	for _, p := range partners {
		b = b.Values(partnerRow(p, now)...)
	}
	return b.Suffix(`ON CONFLICT (partner_id) DO UPDATE SET
		name = excluded.name, trade_type = excluded.trade_type, tier = excluded.tier,
		monthly_budget = excluded.monthly_budget, budget_spent = excluded.budget_spent,
		regions = excluded.regions, state = excluded.state,
		trade_association = excluded.trade_association, status = excluded.status,
		updated_at = excluded.updated_at`)
}

// recordImpressions bumps counters and only moves last_shown_at forward.
func (q queries) recordImpressions(ids []string, at time.Time) sq.UpdateBuilder {
	return q.sb.Update("partners").
		Set("impressions", sq.Expr("impressions + 1")).
		Set("last_shown_at", sq.Expr("CASE WHEN last_shown_at IS NULL OR last_shown_at < ? THEN ? ELSE last_shown_at END", at, at)).
		Where(sq.Eq{"partner_id": ids})
}

func (q queries) saveAudit(id, version, role string, payload []byte, createdAt time.Time) sq.InsertBuilder {
	return q.sb.Insert("audits").
		Columns("id", "version", "role", "payload", "created_at").
		Values(id, version, role, string(payload), createdAt)
}

func (q queries) getAudit(id string) sq.SelectBuilder {
	return q.sb.Select("payload").From("audits").Where(sq.Eq{"id": id})
}
