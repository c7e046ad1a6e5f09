// Package duckdb provides the DuckDB row counter, used for local
// development and as the default measurement backend.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
)

// Counter implements measure.RowCounter against a DuckDB database.
type Counter struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Config configures the counter.
type Config struct {
	// DatabasePath is the path to the DuckDB database file. Use
	// ":memory:" for an in-memory database.
	DatabasePath string
}

// New opens a DuckDB row counter.
func New(cfg Config) (*Counter, error) {
	path := cfg.DatabasePath
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckdb counter: open: %w", err)
	}
	return &Counter{db: db}, nil
}

// Name returns the engine name.
func (c *Counter) Name() string { return "duckdb" }

// CountRows runs sql wrapped as SELECT COUNT(*) FROM (...) and returns
// the row count.
func (c *Counter) CountRows(ctx context.Context, subquery string) (int64, error) {
	c.mu.RLock()
	if c.closed || c.db == nil {
		c.mu.RUnlock()
		return 0, fmt.Errorf("duckdb counter: connection is closed")
	}
	db := c.db
	c.mu.RUnlock()

	query := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _jse_count", subquery)
	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("duckdb counter: count query failed: %w", err)
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
