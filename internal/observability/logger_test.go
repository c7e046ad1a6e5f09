package observability

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	cerrors "github.com/canonica-labs/canonica/internal/errors"
)

func TestLogDiagnosticIncludesRequiredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	d := cerrors.NewInputShape("no FROM clause", "a FROM clause is required", "add one")
	if err := logger.LogDiagnostic("q1", d); err != nil {
		t.Fatalf("LogDiagnostic failed: %v", err)
	}

	var output map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	for _, field := range []string{"query_id", "code", "message", "level"} {
		if _, ok := output[field]; !ok {
			t.Errorf("missing required field: %s", field)
		}
	}
	if output["code"] != "input_shape" {
		t.Errorf("expected code 'input_shape', got %v", output["code"])
	}
}

func TestLogDiagnosticInputShapeIsError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	d := cerrors.NewInputShape("no FROM clause", "reason", "suggestion")
	if err := logger.LogDiagnostic("q1", d); err != nil {
		t.Fatalf("LogDiagnostic failed: %v", err)
	}

	var output map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if output["level"] != "error" {
		t.Errorf("InputShape diagnostics should log at level 'error', got %v", output["level"])
	}
}

func TestLogDiagnosticNonFatalIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	d := cerrors.NewClosureFuel(10)
	if err := logger.LogDiagnostic("q1", d); err != nil {
		t.Fatalf("LogDiagnostic failed: %v", err)
	}

	var output map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if output["level"] != "warn" {
		t.Errorf("non-InputShape diagnostics should log at level 'warn', got %v", output["level"])
	}
}

func TestLogSummaryRejectsMissingQueryID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	err := logger.LogSummary(QuerySummary{Outcome: "ok"})
	if err == nil {
		t.Fatal("expected an error for a summary with no query_id")
	}
}

func TestLogSummaryIncludesCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	err := logger.LogSummary(QuerySummary{
		QueryID:       "q1",
		RelationCount: 3,
		SubplanCount:  7,
		Elapsed:       150 * time.Millisecond,
		Outcome:       "ok",
	})
	if err != nil {
		t.Fatalf("LogSummary failed: %v", err)
	}

	var output map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if output["relation_count"] != float64(3) {
		t.Errorf("expected relation_count 3, got %v", output["relation_count"])
	}
	if output["subplan_count"] != float64(7) {
		t.Errorf("expected subplan_count 7, got %v", output["subplan_count"])
	}
}

func TestCodeCountsTalliesByCode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	logger.LogDiagnostic("q1", cerrors.NewClosureFuel(10))
	logger.LogDiagnostic("q2", cerrors.NewClosureFuel(10))
	logger.LogDiagnostic("q3", cerrors.NewUnsupportedConstruct("top-level OR", "excluded"))

	counts := logger.CodeCounts()
	if counts["closure_fuel"] != 2 {
		t.Errorf("expected 2 closure_fuel diagnostics, got %d", counts["closure_fuel"])
	}
	if counts["unsupported_construct"] != 1 {
		t.Errorf("expected 1 unsupported_construct diagnostic, got %d", counts["unsupported_construct"])
	}
}

func TestSortedCodeCountsOrdersDescending(t *testing.T) {
	sorted := SortedCodeCounts(map[string]int{"a": 1, "b": 5, "c": 3})
	if len(sorted) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(sorted))
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Count < sorted[i].Count {
			t.Fatalf("expected descending order, got %v", sorted)
		}
	}
}

func TestNoopLoggerDiscardsEverything(t *testing.T) {
	logger := NewNoopLogger()
	if err := logger.LogDiagnostic("q1", cerrors.NewClosureFuel(10)); err != nil {
		t.Fatalf("NoopLogger.LogDiagnostic should never fail: %v", err)
	}
	if err := logger.LogSummary(QuerySummary{QueryID: "q1"}); err != nil {
		t.Fatalf("NoopLogger.LogSummary should never fail: %v", err)
	}
	if len(logger.CodeCounts()) != 0 {
		t.Fatal("NoopLogger.CodeCounts should always be empty")
	}
}
