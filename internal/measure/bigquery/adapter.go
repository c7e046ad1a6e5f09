// Package bigquery provides the BigQuery row counter. BigQuery has no
// database/sql driver in this stack, so it keeps its own client shape
// built on cloud.google.com/go/bigquery, same as the rest of the
// warehouse counters' shared grounding adapter did.
package bigquery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Config configures the counter's client.
type Config struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	QueryTimeout    time.Duration
}

// DefaultConfig returns sensible client defaults.
func DefaultConfig() Config {
	return Config{Location: "US", QueryTimeout: 5 * time.Minute}
}

// Validate checks that the minimum fields needed to connect are set.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("bigquery counter: project_id is required")
	}
	return nil
}

// Counter implements measure.RowCounter against BigQuery.
type Counter struct {
	mu     sync.RWMutex
	client *bigquery.Client
	cfg    Config
	closed bool
}

// New opens a BigQuery client-backed counter.
func New(ctx context.Context, cfg Config) (*Counter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery counter: failed to create client: %w", err)
	}

	return &Counter{client: client, cfg: cfg}, nil
}

// Name returns the engine name.
func (c *Counter) Name() string { return "bigquery" }

// CountRows runs sql wrapped as SELECT COUNT(*) FROM (...) and returns
// the row count.
func (c *Counter) CountRows(ctx context.Context, subquery string) (int64, error) {
	c.mu.RLock()
	if c.closed || c.client == nil {
		c.mu.RUnlock()
		return 0, fmt.Errorf("bigquery counter: client is closed")
	}
	client := c.client
	c.mu.RUnlock()

	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	q := client.Query(fmt.Sprintf("SELECT COUNT(*) AS row_count FROM (%s) AS _jse_count", subquery))
	if c.cfg.Location != "" {
		q.Location = c.cfg.Location
	}

	it, err := q.Read(queryCtx)
	if err != nil {
		return 0, fmt.Errorf("bigquery counter: query failed: %w", err)
	}

	var row struct {
		RowCount int64 `bigquery:"row_count"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("bigquery counter: failed to read result: %w", err)
	}
	return row.RowCount, nil
}

// Close releases the underlying client. Idempotent.
func (c *Counter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
