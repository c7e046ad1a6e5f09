// Package snowflake provides the Snowflake row counter via the
// gosnowflake database/sql driver.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // registers as "snowflake"
)

// Config configures the counter's connection.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string

	ConnectTimeout time.Duration
}

// DefaultConfig returns sensible connection defaults.
func DefaultConfig() Config {
	return Config{ConnectTimeout: 30 * time.Second}
}

// Validate checks that the minimum fields needed to connect are set.
func (c Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("snowflake counter: account is required")
	}
	if c.User == "" {
		return fmt.Errorf("snowflake counter: user is required")
	}
	if c.Warehouse == "" {
		return fmt.Errorf("snowflake counter: warehouse is required")
	}
	return nil
}

// Counter implements measure.RowCounter against Snowflake.
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

	dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s",
		cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema, cfg.Warehouse)
	if cfg.Role != "" {
		dsn += fmt.Sprintf("&role=%s", cfg.Role)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("snowflake counter: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("snowflake counter: connection test failed: %w", err)
	}

	return &Counter{db: db}, nil
}

// Name returns the engine name.
func (c *Counter) Name() string { return "snowflake" }

// CountRows runs sql wrapped as SELECT COUNT(*) FROM (...) and returns
// the row count.
func (c *Counter) CountRows(ctx context.Context, subquery string) (int64, error) {
	c.mu.RLock()
	if c.closed || c.db == nil {
		c.mu.RUnlock()
		return 0, fmt.Errorf("snowflake counter: connection is closed")
	}
	db := c.db
	c.mu.RUnlock()

	query := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _jse_count", subquery)
	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("snowflake counter: count query failed: %w", err)
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
