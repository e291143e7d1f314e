package main

import (
	"context"
	"fmt"

	vc "github.com/linnemanlabs/pcsboard/internal/cfg"
	"github.com/linnemanlabs/pcsboard/internal/kv"
	"github.com/linnemanlabs/pcsboard/internal/kv/memkv"
	"github.com/linnemanlabs/pcsboard/internal/kv/pgkv"
	"github.com/linnemanlabs/pcsboard/internal/kv/rediskv"
	"github.com/linnemanlabs/pcsboard/internal/postgres"
)

// openStore builds the kv backend selected by c. The returned close func is
// never nil.
func openStore(ctx context.Context, c *vc.Config, observer postgres.QueryObserver) (kv.Store, func(), error) {
	switch c.KVBackend {
	case vc.KVPostgres:
		pool, err := postgres.Open(ctx, c.DatabaseURL, postgres.Options{
			MaxConns:      int32(c.DBMaxConns), //nolint:gosec // validated >= 0
			SlowQuery:     c.SlowQuery(),
			QueryObserver: observer,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("postgres pool: %w", err)
		}
		store, err := pgkv.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, func() {}, fmt.Errorf("pgkv init: %w", err)
		}
		return store, pool.Close, nil
	case vc.KVRedis:
		store, err := rediskv.Open(ctx, rediskv.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("redis: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case vc.KVMemory, "":
		return memkv.New(), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown kv backend %q", c.KVBackend)
	}
}
