// Package measure defines the common interface engine-specific row
// counters implement to answer "how many rows does this sub-query
// return," the optional measurement supplement to enumeration.
//
// Counters are stateless, replaceable, thin: no silent retries, no
// hidden fallbacks. Retries, where wanted, are explicit via
// ExecuteWithRetry in retry.go.
package measure

import "context"

// RowCounter measures the row count of a reconstructed sub-query
// against one warehouse engine.
type RowCounter interface {
	// Name returns the unique name of this engine.
	Name() string

	// CountRows runs sql (a reconstructed sub-query, without its
	// terminating semicolon) and returns the number of rows it produces. Implementations wrap sql as
	// SELECT COUNT(*) FROM (<sql>) AS _jse_count rather than
	// re-deriving a count from the query's own shape.
	CountRows(ctx context.Context, sql string) (int64, error)

	// Close releases any resources held by the counter.
	Close() error
}

// Registry manages named row counters, one per configured engine.
type Registry struct {
	counters map[string]RowCounter
}

// NewRegistry returns an empty counter registry.
func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]RowCounter)}
}

// Register adds a counter to the registry, keyed by its Name.
func (r *Registry) Register(c RowCounter) {
	r.counters[c.Name()] = c
}

// Get returns a counter by name.
func (r *Registry) Get(name string) (RowCounter, bool) {
	c, ok := r.counters[name]
	return c, ok
}

// Available returns the names of all registered counters.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	return names
}

// CloseAll closes every registered counter, returning the last error
// encountered, if any.
func (r *Registry) CloseAll() error {
	var lastErr error
	for _, c := range r.counters {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// IsEmpty reports whether no counters are registered.
func (r *Registry) IsEmpty() bool {
	return len(r.counters) == 0
}
