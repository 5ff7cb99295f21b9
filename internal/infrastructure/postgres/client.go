package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
)

// ClientConfig holds pool settings for the PostgreSQL client.
type ClientConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultClientConfig returns the pool settings used when none are configured.
// A create or update holds one connection for the whole saga, uploads included,
// so MaxConns bounds concurrent writes.
func DefaultClientConfig(dsn string) ClientConfig {
	return ClientConfig{
		DSN:             dsn,
		MaxConns:        25,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient creates a new PostgreSQL client with connection pooling.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Zero values keep the pgxpool defaults.
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if poolConfig.MinConns > poolConfig.MaxConns {
		return nil, fmt.Errorf("min conns %d exceeds max conns %d", poolConfig.MinConns, poolConfig.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{pool: pool}, nil
}

// Pool returns the pool that read-only repositories query directly.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// TxManager returns a TxManager that opens transactions on the pool.
func (c *Client) TxManager() *TxManager {
	return NewTxManager(c.pool)
}

// Migrate applies pending schema migrations.
func (c *Client) Migrate(ctx context.Context) error {
	return Migrate(ctx, c.pool)
}

// Ping verifies the database connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes all connections in the pool.
func (c *Client) Close() {
	c.pool.Close()
}

// PoolStats returns a snapshot of the connection pool.
func (c *Client) PoolStats() metrics.PoolStats {
	s := c.pool.Stat()
	return metrics.PoolStats{
		Acquired: s.AcquiredConns(),
		Idle:     s.IdleConns(),
		Total:    s.TotalConns(),
		Max:      s.MaxConns(),
	}
}
