package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaforge/vaforge-engine/pkg/config"
	"github.com/vaforge/vaforge-engine/pkg/retry"
)

const (
	defaultMaxConnections  = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
	defaultApplicationName = "vaforge-engine"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration.
type Config struct {
	URL             string
	ApplicationName string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// Connect retries the first ping, e.g. while Postgres is still starting.
	// Nil means a single attempt.
	Connect *retry.Config
}

// NewConnection creates a connection pool and verifies it with a ping.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = valueOr(cfg.MaxConnections, defaultMaxConnections)
	poolConfig.MaxConnLifetime = valueOr(cfg.MaxConnLifetime, defaultMaxConnLifetime)
	poolConfig.MaxConnIdleTime = valueOr(cfg.MaxConnIdleTime, defaultMaxConnIdleTime)
	poolConfig.ConnConfig.RuntimeParams["application_name"] = valueOr(cfg.ApplicationName, defaultApplicationName)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	connectCfg := cfg.Connect
	if connectCfg == nil {
		connectCfg = &retry.Config{}
	}
	if err := retry.Do(ctx, connectCfg, func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// ConfigFromSettings maps application database settings to a pool Config.
// Startup retries the first ping for a few seconds.
func ConfigFromSettings(c *config.DatabaseConfig) *Config {
	connect := retry.DefaultConfig()
	connect.MaxRetries = 5
	connect.InitialDelay = 500 * time.Millisecond
	return &Config{
		URL:            c.ConnectionString(),
		MaxConnections: c.MaxConnections,
		Connect:        connect,
	}
}

func valueOr[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
