// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"research-workers/internal/common/config"

	_ "github.com/lib/pq"
)

const (
	defaultPostgresMaxOpen = 10
	defaultPostgresMaxIdle = 2
	postgresConnLifetime   = 5 * time.Minute
)

// PostgresClient wraps the history database pool.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool without dialing. Unset pool sizes use the package defaults and
// idle connections never exceed open ones.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("postgres host is required")
	}
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	maxOpen := cfg.MaxConnections
	if maxOpen <= 0 {
		maxOpen = defaultPostgresMaxOpen
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = defaultPostgresMaxIdle
	}
	maxIdle = min(maxIdle, maxOpen)

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(postgresConnLifetime)
	db.SetConnMaxIdleTime(postgresConnLifetime)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// PoolStats reports open and in-use connections.
func (c *PostgresClient) PoolStats() (open, inUse int) {
	s := c.DB.Stats()
	return s.OpenConnections, s.InUse
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
