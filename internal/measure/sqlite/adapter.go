// Package sqlite provides the SQLite row counter. There is no
// sqlite-specific adapter in the canonica lineage this package is
// adapted from; the shape is generalized from duckdb's, the closest
// database/sql-driver analog, since modernc.org/sqlite is a
// pure-Go driver requiring no cgo toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// Counter implements measure.RowCounter against a SQLite database.
type Counter struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Config configures the counter.
type Config struct {
	// DatabasePath is the path to the SQLite database file. Use
	// ":memory:" for an in-memory database.
	DatabasePath string
}

// New opens a SQLite row counter.
func New(cfg Config) (*Counter, error) {
	path := cfg.DatabasePath
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite counter: open: %w", err)
	}
	return &Counter{db: db}, nil
}

// Name returns the engine name.
func (c *Counter) Name() string { return "sqlite" }

// CountRows runs sql wrapped as SELECT COUNT(*) FROM (...) and returns
// the row count.
func (c *Counter) CountRows(ctx context.Context, subquery string) (int64, error) {
	c.mu.RLock()
	if c.closed || c.db == nil {
		c.mu.RUnlock()
		return 0, fmt.Errorf("sqlite counter: connection is closed")
	}
	db := c.db
	c.mu.RUnlock()

	query := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _jse_count", subquery)
	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite counter: count query failed: %w", err)
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
