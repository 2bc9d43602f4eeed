package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	q       queries
	nowFunc func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: newQueries(sq.Question), nowFunc: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS price_data (
	keyword       TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	unit          TEXT NOT NULL DEFAULT '',
	zip_prefix    TEXT NOT NULL DEFAULT '',
	average_price REAL NOT NULL,
	high_price    REAL NOT NULL DEFAULT 0,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (keyword, zip_prefix)
);

CREATE TABLE IF NOT EXISTS carrier_trends (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	carrier     TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	frequency   REAL NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	observed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_carrier_trends_carrier ON carrier_trends(carrier);

CREATE TABLE IF NOT EXISTS regional_demand (
	state               TEXT NOT NULL,
	region              TEXT NOT NULL DEFAULT '',
	demand_index        REAL NOT NULL DEFAULT 0,
	disaster_declared   BOOLEAN NOT NULL DEFAULT 0,
	competitor_count    INTEGER NOT NULL DEFAULT 0,
	base_cpc_multiplier REAL NOT NULL DEFAULT 1,
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (state, region)
);

CREATE TABLE IF NOT EXISTS partners (
	partner_id        TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	trade_type        TEXT NOT NULL,
	tier              TEXT NOT NULL,
	monthly_budget    REAL NOT NULL DEFAULT 0,
	budget_spent      REAL NOT NULL DEFAULT 0,
	regions           TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	trade_association BOOLEAN NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'active',
	last_shown_at     DATETIME,
	impressions       INTEGER NOT NULL DEFAULT 0,
	clicks            INTEGER NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_partners_state_trade ON partners(state, trade_type);

CREATE TABLE IF NOT EXISTS partner_impressions (
	partner_id TEXT NOT NULL REFERENCES partners(partner_id),
	shown_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audits (
	id         TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	role       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LookupPrice(ctx context.Context, description, zip string) (*model.PriceLookup, error) {
	query, args, err := s.q.lookupPrice(description, zip).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build price lookup")
	}

	var p model.PriceLookup
	var keyword string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&keyword, &p.Category, &p.Unit, &p.ZipPrefix, &p.AveragePrice, &p.HighPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: lookup price %q", description)
	}
	p.Description = description
	return &p, nil
}

func (s *SQLiteStore) UpsertPrices(ctx context.Context, prices []model.PriceLookup) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	return s.exec(ctx, s.q.upsertPrices(prices, s.nowFunc().UTC()), "upsert prices")
}

func (s *SQLiteStore) CarrierTrends(ctx context.Context, carrier string) ([]model.CarrierTrend, error) {
	query, args, err := s.q.carrierTrends(carrier).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build carrier trends")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: carrier trends %s", carrier)
	}
	defer rows.Close() //nolint:errcheck

	var trends []model.CarrierTrend
	for rows.Next() {
		var t model.CarrierTrend
		if err := rows.Scan(&t.Carrier, &t.Strategy, &t.Frequency, &t.Description, &t.ObservedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan carrier trend")
		}
		trends = append(trends, t)
	}
	return trends, eris.Wrap(rows.Err(), "sqlite: iterate carrier trends")
}

func (s *SQLiteStore) RegionalDemand(ctx context.Context, state, region string) (*model.RegionalDemand, error) {
	query, args, err := s.q.regionalDemand(state, region).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build regional demand")
	}
	var d model.RegionalDemand
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&d.State, &d.Region, &d.DemandIndex, &d.DisasterDeclared, &d.CompetitorCount, &d.BaseCPCMultiplier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: regional demand %s/%s", state, region)
	}
	return &d, nil
}

func (s *SQLiteStore) UpsertDemand(ctx context.Context, demand []model.RegionalDemand) (int64, error) {
	if len(demand) == 0 {
		return 0, nil
	}
	return s.exec(ctx, s.q.upsertDemand(demand, s.nowFunc().UTC()), "upsert demand")
}

func (s *SQLiteStore) ListPartners(ctx context.Context, filter model.PartnerFilter) ([]model.PartnerAdConfig, error) {
	query, args, err := s.q.listPartners(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list partners")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list partners")
	}
	defer rows.Close() //nolint:errcheck

	var partners []model.PartnerAdConfig
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan partner")
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate partners")
	}
	return filterRegion(partners, filter.Region), nil
}

func (s *SQLiteStore) GetPartner(ctx context.Context, id string) (*model.PartnerAdConfig, error) {
	query, args, err := s.q.getPartner(id).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get partner")
	}
	p, err := scanPartner(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: partner %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get partner %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertPartners(ctx context.Context, partners []model.PartnerAdConfig) (int64, error) {
	if len(partners) == 0 {
		return 0, nil
	}
	return s.exec(ctx, s.q.upsertPartners(partners, s.nowFunc().UTC()), "upsert partners")
}

// RecordImpressions updates partner counters and appends to the impression
// log in one transaction.
func (s *SQLiteStore) RecordImpressions(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	at = at.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := s.q.recordImpressions(ids, at).ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build record impressions")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrap(err, "sqlite: record impressions")
	}

	ins := s.q.sb.Insert("partner_impressions").Columns("partner_id", "shown_at")
	for _, id := range ids {
		ins = ins.Values(id, at)
	}
	query, args, err = ins.ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build impression log")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrap(err, "sqlite: log impressions")
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit impressions")
}

func (s *SQLiteStore) SaveAudit(ctx context.Context, res *model.ClaimAuditResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit")
	}
	_, err = s.exec(ctx, s.q.saveAudit(res.ID, res.Version, string(res.Role), payload, res.CreatedAt.UTC()), "save audit")
	return err
}

// GetAudit decodes stored results of either schema into the current shape.
func (s *SQLiteStore) GetAudit(ctx context.Context, id string) (*model.ClaimAuditResult, error) {
	query, args, err := s.q.getAudit(id).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get audit")
	}
	var payload string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: audit %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get audit %s", id)
	}
	return decodeAudit(id, []byte(payload))
}

func (s *SQLiteStore) exec(ctx context.Context, b sq.Sqlizer, op string) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: build %s", op)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: %s", op)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
