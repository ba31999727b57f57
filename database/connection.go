package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxConns bounds the pool. Balance history has a single writer plus health checks.
	DefaultMaxConns          = 4
	DefaultHealthCheckPeriod = 30 * time.Second
	DefaultMaxConnIdleTime   = 5 * time.Minute
)

// DB is the connection pool behind balance history
type DB struct {
	*pgxpool.Pool
}

// PoolOptions tunes the balance history pool. Zero values fall back to the defaults.
type PoolOptions struct {
	MaxConns          int32
	HealthCheckPeriod time.Duration
	MaxConnIdleTime   time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxConns <= 0 {
		o.MaxConns = DefaultMaxConns
	}
	if o.HealthCheckPeriod <= 0 {
		o.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	if o.MaxConnIdleTime <= 0 {
		o.MaxConnIdleTime = DefaultMaxConnIdleTime
	}
	return o
}

// poolConfig parses databaseURL and applies opts. Timestamps are stored in UTC.
func poolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	opts = opts.withDefaults()
	config.MaxConns = opts.MaxConns
	if config.MinConns > config.MaxConns {
		config.MinConns = config.MaxConns
	}
	config.HealthCheckPeriod = opts.HealthCheckPeriod
	config.MaxConnIdleTime = opts.MaxConnIdleTime
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"
	config.ConnConfig.RuntimeParams["application_name"] = "watchparty"
	return config, nil
}

// NewConnection opens the pool and verifies it with a ping
func NewConnection(ctx context.Context, databaseURL string, opts PoolOptions) (*DB, error) {
	config, err := poolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(log.Fields{
		"host":     config.ConnConfig.Host,
		"database": config.ConnConfig.Database,
		"maxConns": config.MaxConns,
	}).Debug("Balance history pool ready")
	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}
