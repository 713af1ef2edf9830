package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// The node serves a single rep plus the background worker, so a small
	// pool is plenty. Sync stages hold one connection each under the fan-out
	// cap, the API a handful more.
	maxConns = 8

	connMaxIdleTime = 5 * time.Minute
	pingTimeout     = 3 * time.Second
)

// New opens the node's Postgres pool and verifies the database is reachable
// before anything else starts. Both binaries call this at boot, so a bad DSN
// fails fast instead of surfacing mid-sync.
func New(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	config.MaxConns = maxConns
	config.MaxConnIdleTime = connMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}
