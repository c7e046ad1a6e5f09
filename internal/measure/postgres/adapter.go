// Package postgres provides the Postgres row counter. Amazon Redshift
// speaks the Postgres wire protocol, so this one counter serves both
// Postgres and Redshift connection strings via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq" // Postgres driver; also used for Redshift
)

// Config configures the counter's connection.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	ConnectTimeout time.Duration
}

// DefaultConfig returns sensible connection defaults.
func DefaultConfig() Config {
	return Config{
		Port:           5432,
		SSLMode:        "require",
		ConnectTimeout: 30 * time.Second,
	}
}

// Validate checks that the minimum fields needed to connect are set.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("postgres counter: host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("postgres counter: database is required")
	}
	if c.User == "" {
		return fmt.Errorf("postgres counter: user is required")
	}
	return nil
}

// Counter implements measure.RowCounter against Postgres or Redshift.
type Counter struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// New opens a counter against the given connection config.
func New(ctx context.Context, cfg Config) (*Counter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres counter: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres counter: connection test failed: %w", err)
	}

	return &Counter{db: db}, nil
}

// Name returns the engine name.
func (c *Counter) Name() string { return "postgres" }

// CountRows runs sql wrapped as SELECT COUNT(*) FROM (...) and returns
// the row count.
func (c *Counter) CountRows(ctx context.Context, subquery string) (int64, error) {
	c.mu.RLock()
	if c.closed || c.db == nil {
		c.mu.RUnlock()
		return 0, fmt.Errorf("postgres counter: connection is closed")
	}
	db := c.db
	c.mu.RUnlock()

	query := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _jse_count", subquery)
	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres counter: count query failed: %w", err)
	}
	return count, nil
}

// Close releases the underlying connection. Idempotent.
func (c *Counter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
