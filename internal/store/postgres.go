package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/db"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	q       queries
	closeFn func()
	nowFunc func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool), nil
}

func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		q:       newQueries(sq.Dollar),
		closeFn: pool.Close,
		nowFunc: time.Now,
	}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS price_data (
	keyword       TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	unit          TEXT NOT NULL DEFAULT '',
	zip_prefix    TEXT NOT NULL DEFAULT '',
	average_price DOUBLE PRECISION NOT NULL,
	high_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (keyword, zip_prefix)
);

CREATE TABLE IF NOT EXISTS carrier_trends (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	carrier     TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	frequency   DOUBLE PRECISION NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_carrier_trends_carrier ON carrier_trends(lower(carrier));

CREATE TABLE IF NOT EXISTS regional_demand (
	state               TEXT NOT NULL,
	region              TEXT NOT NULL DEFAULT '',
	demand_index        DOUBLE PRECISION NOT NULL DEFAULT 0,
	disaster_declared   BOOLEAN NOT NULL DEFAULT false,
	competitor_count    INTEGER NOT NULL DEFAULT 0,
	base_cpc_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (state, region)
);

CREATE TABLE IF NOT EXISTS partners (
	partner_id        TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	trade_type        TEXT NOT NULL,
	tier              TEXT NOT NULL,
	monthly_budget    DOUBLE PRECISION NOT NULL DEFAULT 0,
	budget_spent      DOUBLE PRECISION NOT NULL DEFAULT 0,
	regions           TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	trade_association BOOLEAN NOT NULL DEFAULT false,
	status            TEXT NOT NULL DEFAULT 'active',
	last_shown_at     TIMESTAMPTZ,
	impressions       BIGINT NOT NULL DEFAULT 0,
	clicks            BIGINT NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_partners_state_trade ON partners(state, trade_type);
CREATE INDEX IF NOT EXISTS idx_partners_status ON partners(status);

CREATE TABLE IF NOT EXISTS partner_impressions (
	partner_id TEXT NOT NULL REFERENCES partners(partner_id),
	shown_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_partner_impressions_partner ON partner_impressions(partner_id, shown_at DESC);

CREATE TABLE IF NOT EXISTS audits (
	id         TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	role       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audits_created_at ON audits(created_at DESC);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LookupPrice(ctx context.Context, description, zip string) (*model.PriceLookup, error) {
	query, args, err := s.q.lookupPrice(description, zip).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build price lookup")
	}

	var p model.PriceLookup
	var keyword string
	err = s.pool.QueryRow(ctx, query, args...).Scan(&keyword, &p.Category, &p.Unit, &p.ZipPrefix, &p.AveragePrice, &p.HighPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: lookup price %q", description)
	}
	p.Description = description
	return &p, nil
}

func (s *PostgresStore) UpsertPrices(ctx context.Context, prices []model.PriceLookup) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	query, args, err := s.q.upsertPrices(prices, s.nowFunc().UTC()).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build price upsert")
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert prices")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CarrierTrends(ctx context.Context, carrier string) ([]model.CarrierTrend, error) {
	query, args, err := s.q.carrierTrends(carrier).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build carrier trends")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: carrier trends %s", carrier)
	}
	defer rows.Close()

	var trends []model.CarrierTrend
	for rows.Next() {
		var t model.CarrierTrend
		if err := rows.Scan(&t.Carrier, &t.Strategy, &t.Frequency, &t.Description, &t.ObservedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan carrier trend")
		}
		trends = append(trends, t)
	}
	return trends, eris.Wrap(rows.Err(), "postgres: iterate carrier trends")
}

func (s *PostgresStore) RegionalDemand(ctx context.Context, state, region string) (*model.RegionalDemand, error) {
	query, args, err := s.q.regionalDemand(state, region).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build regional demand")
	}
	var d model.RegionalDemand
	err = s.pool.QueryRow(ctx, query, args...).Scan(&d.State, &d.Region, &d.DemandIndex, &d.DisasterDeclared, &d.CompetitorCount, &d.BaseCPCMultiplier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: regional demand %s/%s", state, region)
	}
	return &d, nil
}

func (s *PostgresStore) UpsertDemand(ctx context.Context, demand []model.RegionalDemand) (int64, error) {
	if len(demand) == 0 {
		return 0, nil
	}
	query, args, err := s.q.upsertDemand(demand, s.nowFunc().UTC()).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build demand upsert")
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert demand")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListPartners(ctx context.Context, filter model.PartnerFilter) ([]model.PartnerAdConfig, error) {
	query, args, err := s.q.listPartners(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list partners")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list partners")
	}
	defer rows.Close()

	var partners []model.PartnerAdConfig
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan partner")
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate partners")
	}
	return filterRegion(partners, filter.Region), nil
}

func (s *PostgresStore) GetPartner(ctx context.Context, id string) (*model.PartnerAdConfig, error) {
	query, args, err := s.q.getPartner(id).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get partner")
	}
	p, err := scanPartner(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: partner %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get partner %s", id)
	}
	return &p, nil
}

// UpsertPartners merges partners on partner_id through a staging table.
func (s *PostgresStore) UpsertPartners(ctx context.Context, partners []model.PartnerAdConfig) (int64, error) {
	now := s.nowFunc().UTC()
	rows := make([][]any, len(partners))
	for i, p := range partners {
		rows[i] = partnerRow(p, now)
	}
	n, err := db.Merge(ctx, s.pool, db.Batch{
		Table:   "partners",
		Columns: partnerWriteColumns,
		Rows:    rows,
	}, "partner_id")
	return n, eris.Wrap(err, "postgres: upsert partners")
}

// RecordImpressions updates partner counters and appends to the impression
// log.
func (s *PostgresStore) RecordImpressions(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	at = at.UTC()
	query, args, err := s.q.recordImpressions(ids, at).ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build record impressions")
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return eris.Wrap(err, "postgres: record impressions")
	}

	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{id, at}
	}
	_, err = db.Append(ctx, s.pool, db.Batch{
		Table:   "partner_impressions",
		Columns: []string{"partner_id", "shown_at"},
		Rows:    rows,
	})
	return eris.Wrap(err, "postgres: log impressions")
}

func (s *PostgresStore) SaveAudit(ctx context.Context, res *model.ClaimAuditResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit")
	}
	query, args, err := s.q.saveAudit(res.ID, res.Version, string(res.Role), payload, res.CreatedAt).ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build save audit")
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return eris.Wrapf(err, "postgres: save audit %s", res.ID)
}

// GetAudit decodes stored results of either schema into the current shape.
func (s *PostgresStore) GetAudit(ctx context.Context, id string) (*model.ClaimAuditResult, error) {
	query, args, err := s.q.getAudit(id).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get audit")
	}
	var payload []byte
	err = s.pool.QueryRow(ctx, query, args...).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: audit %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get audit %s", id)
	}
	return decodeAudit(id, payload)
}

func decodeAudit(id string, payload []byte) (*model.ClaimAuditResult, error) {
	rec, err := model.DecodeAuditRecord(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "store: decode audit %s", id)
	}
	res := rec.Normalize()
	if res.ID == "" {
		res.ID = id
	}
	return &res, nil
}
