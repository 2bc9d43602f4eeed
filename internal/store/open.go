package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects and tunes the backing database.
type Options struct {
	Driver string
	DSN    string
	Pool   PoolConfig
	Retry  resilience.RetryConfig
}

// Open connects to the configured database. Postgres connections are
// retried on transient errors.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.DSN == "" {
		return nil, eris.New("store: dsn is required")
	}
	switch opts.Driver {
	case DriverPostgres, "":
		retry := opts.Retry
		if retry.OnRetry == nil {
			retry.OnRetry = resilience.RetryLogger("store", "connect")
		}
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (Store, error) {
			s, err := NewPostgres(ctx, opts.DSN, &opts.Pool)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	case DriverSQLite:
		s, err := NewSQLite(opts.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", opts.Driver)
	}
}
