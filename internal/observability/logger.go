// Package observability provides structured logging for the join
// subset enumerator driver. Every processed query emits one JSON line
// per diagnostic raised, plus one JSON summary line: query id, alias
// count, subplan count, and elapsed time.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	cerrors "github.com/canonica-labs/canonica/internal/errors"
)

// QuerySummary is the one-line-per-query record a driver run emits
// after Pipeline.Run returns.
type QuerySummary struct {
	QueryID       string
	RelationCount int
	SubplanCount  int
	Elapsed       time.Duration
	Outcome       string // "ok" or "skipped"
}

// Validate checks that the summary's required fields are present.
func (s *QuerySummary) Validate() error {
	if s.QueryID == "" {
		return fmt.Errorf("observability: query_id is required")
	}
	if s.Elapsed < 0 {
		return fmt.Errorf("observability: elapsed cannot be negative")
	}
	return nil
}

type diagnosticLogOutput struct {
	Timestamp  string `json:"timestamp"`
	Level      string `json:"level"`
	QueryID    string `json:"query_id"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type summaryLogOutput struct {
	Timestamp     string `json:"timestamp"`
	Level         string `json:"level"`
	QueryID       string `json:"query_id"`
	RelationCount int    `json:"relation_count"`
	SubplanCount  int    `json:"subplan_count"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	Outcome       string `json:"outcome"`
}

// DiagnosticLogger is the interface a driver uses to report one
// query's diagnostics and summary.
type DiagnosticLogger interface {
	LogDiagnostic(queryID string, d *cerrors.Diagnostic) error
	LogSummary(s QuerySummary) error
	CodeCounts() map[string]int
}

// JSONLogger implements DiagnosticLogger with one JSON object per line.
type JSONLogger struct {
	writer      io.Writer
	codeCounts  map[string]int
	mu          sync.Mutex
}

// NewJSONLogger returns a logger writing newline-delimited JSON to w.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{writer: w, codeCounts: map[string]int{}}
}

// LogDiagnostic writes one diagnostic line and tallies it by code.
func (l *JSONLogger) LogDiagnostic(queryID string, d *cerrors.Diagnostic) error {
	level := "warn"
	if d.Code == cerrors.InputShape {
		level = "error"
	}
	output := diagnosticLogOutput{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Level:      level,
		QueryID:    queryID,
		Code:       d.Code.String(),
		Message:    d.Message,
		Reason:     d.Reason,
		Suggestion: d.Suggestion,
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("observability: failed to marshal diagnostic: %w", err)
	}
	l.mu.Lock()
	l.codeCounts[d.Code.String()]++
	_, werr := l.writer.Write(append(data, '\n'))
	l.mu.Unlock()
	if werr != nil {
		return fmt.Errorf("observability: failed to write diagnostic: %w", werr)
	}
	return nil
}

// LogSummary writes one per-query summary line.
func (l *JSONLogger) LogSummary(s QuerySummary) error {
	if err := s.Validate(); err != nil {
		return err
	}
	output := summaryLogOutput{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Level:         "info",
		QueryID:       s.QueryID,
		RelationCount: s.RelationCount,
		SubplanCount:  s.SubplanCount,
		ElapsedMs:     s.Elapsed.Milliseconds(),
		Outcome:       s.Outcome,
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("observability: failed to marshal summary: %w", err)
	}
	l.mu.Lock()
	_, werr := l.writer.Write(append(data, '\n'))
	l.mu.Unlock()
	if werr != nil {
		return fmt.Errorf("observability: failed to write summary: %w", werr)
	}
	return nil
}

// CodeCounts returns the number of diagnostics logged so far, by code,
// highest first when iterated via SortedCodeCounts.
func (l *JSONLogger) CodeCounts() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.codeCounts))
	for k, v := range l.codeCounts {
		out[k] = v
	}
	return out
}

// SortedCodeCounts returns (code, count) pairs sorted by count
// descending, for a run's closing report.
func SortedCodeCounts(counts map[string]int) []struct {
	Code  string
	Count int
} {
	var out []struct {
		Code  string
		Count int
	}
	for k, v := range counts {
		out = append(out, struct {
			Code  string
			Count int
		}{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// NoopLogger discards all logs. Useful for tests or --verbose=false.
type NoopLogger struct{}

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (l *NoopLogger) LogDiagnostic(queryID string, d *cerrors.Diagnostic) error { return nil }
func (l *NoopLogger) LogSummary(s QuerySummary) error                          { return nil }
func (l *NoopLogger) CodeCounts() map[string]int                              { return map[string]int{} }
