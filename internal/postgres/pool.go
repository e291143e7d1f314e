// Package postgres opens traced pgx connection pools.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options tune Open. The zero value is usable.
type Options struct {
	MaxConns      int32
	SlowQuery     time.Duration
	QueryObserver QueryObserver
}

// Open parses databaseURL, installs the otelpgx tracer wrapped with query
// logging and metrics, and pings the server before returning the pool.
func Open(ctx context.Context, databaseURL string, opts Options) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		pc.MaxConns = opts.MaxConns
	}
	pc.ConnConfig.Tracer = newQueryTracer(otelpgx.NewTracer(), opts.QueryObserver, opts.SlowQuery)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
