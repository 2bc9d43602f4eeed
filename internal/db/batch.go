// Package db holds the Postgres batch writers behind the partner, price and
// impression tables.
package db

import (
	"context"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Batch is a set of rows bound for one table, in Columns order. Table may be
// schema-qualified ("ads.partners").
type Batch struct {
	Table   string
	Columns []string
	Rows    [][]any
}

func (b Batch) ident() pgx.Identifier {
	return pgx.Identifier(strings.Split(b.Table, "."))
}

// Append streams the batch into its table over the COPY protocol. Rows are
// inserted as-is; the impression log is append-only.
func Append(ctx context.Context, pool Pool, b Batch) (int64, error) {
	if len(b.Rows) == 0 {
		return 0, nil
	}
	n, err := pool.CopyFrom(ctx, b.ident(), b.Columns, pgx.CopyFromRows(b.Rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: append %s", b.Table)
	}
	return n, nil
}

// Merge copies the batch into a staging table that lives for one
// transaction, then inserts it into the target. Rows whose key already exists
// take the incoming values for every non-key column.
func Merge(ctx context.Context, pool Pool, b Batch, key ...string) (int64, error) {
	if len(b.Rows) == 0 {
		return 0, nil
	}
	if len(b.Columns) == 0 || len(key) == 0 {
		return 0, eris.Errorf("db: merge %s: columns and key are required", b.Table)
	}
	for _, k := range key {
		if !slices.Contains(b.Columns, k) {
			return 0, eris.Errorf("db: merge %s: key column %q not in batch", b.Table, k)
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: begin", b.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := stagingName(b.Table)
	create := "CREATE TEMP TABLE " + staging.Sanitize() + " (LIKE " + b.ident().Sanitize() + " INCLUDING DEFAULTS) ON COMMIT DROP"
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: create staging", b.Table)
	}
	if _, err := tx.CopyFrom(ctx, staging, b.Columns, pgx.CopyFromRows(b.Rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: copy staging", b.Table)
	}

	tag, err := tx.Exec(ctx, mergeSQL(b.ident(), staging, b.Columns, key))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: insert", b.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: commit", b.Table)
	}
	return tag.RowsAffected(), nil
}

// stagingName maps "ads.partners" to "ads_partners_staging".
func stagingName(table string) pgx.Identifier {
	return pgx.Identifier{strings.ReplaceAll(table, ".", "_") + "_staging"}
}

func mergeSQL(target, staging pgx.Identifier, columns, key []string) string {
	cols := quoted(columns)
	var sb strings.Builder
	sb.WriteString("INSERT INTO " + target.Sanitize() + " (" + cols + ") SELECT " + cols + " FROM " + staging.Sanitize())
	sb.WriteString(" ON CONFLICT (" + quoted(key) + ")")

	var sets []string
	for _, c := range columns {
		if slices.Contains(key, c) {
			continue
		}
		id := pgx.Identifier{c}.Sanitize()
		sets = append(sets, id+" = EXCLUDED."+id)
	}
	if len(sets) == 0 {
		sb.WriteString(" DO NOTHING")
	} else {
		sb.WriteString(" DO UPDATE SET " + strings.Join(sets, ", "))
	}
	return sb.String()
}

func quoted(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(out, ", ")
}
