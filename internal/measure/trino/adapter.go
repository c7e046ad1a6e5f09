// Package trino provides the Trino row counter, usable for measuring
// any engine Trino federates (Hive, Iceberg, Delta, and so on), and as
// the stand-in for distributed-engine measurement generally.
package trino

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/trinodb/trino-go-client/trino" // Trino driver
)

// Config configures the counter's connection.
type Config struct {
	Host    string
	Port    int
	Catalog string
	Schema  string
	User    string
	SSLMode string

	ConnectTimeout time.Duration
}

// DefaultConfig returns sensible connection defaults.
func DefaultConfig() Config {
	return Config{
		User:           "canonic",
		Catalog:        "memory",
		Schema:         "default",
		ConnectTimeout: 10 * time.Second,
	}
}

// Counter implements measure.RowCounter against Trino.
type Counter struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// New opens a counter against the given connection config.
func New(cfg Config) (*Counter, error) {
	if cfg.User == "" {
		cfg.User = "canonic"
	}
	if cfg.Catalog == "" {
		cfg.Catalog = "memory"
	}
	if cfg.Schema == "" {
		cfg.Schema = "default"
	}

	scheme := "http"
	if cfg.SSLMode == "require" {
		scheme = "https"
	}
	dsn := fmt.Sprintf("%s://%s@%s:%d?catalog=%s&schema=%s",
		scheme, cfg.User, cfg.Host, cfg.Port, cfg.Catalog, cfg.Schema)

	db, err := sql.Open("trino", dsn)
	if err != nil {
		return nil, fmt.Errorf("trino counter: open: %w", err)
	}
	return &Counter{db: db}, nil
}

// Name returns the engine name.
func (c *Counter) Name() string { return "trino" }

// CountRows runs sql wrapped as SELECT COUNT(*) FROM (...) and returns
// the row count.
func (c *Counter) CountRows(ctx context.Context, subquery string) (int64, error) {
	c.mu.RLock()
	if c.closed || c.db == nil {
		c.mu.RUnlock()
		return 0, fmt.Errorf("trino counter: connection is closed")
	}
	db := c.db
	c.mu.RUnlock()

	query := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _jse_count", subquery)
	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("trino counter: count query failed: %w", err)
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
