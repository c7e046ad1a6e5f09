// Package errors provides explicit, human-readable diagnostic types for
// the join subset enumerator. Every diagnostic carries a Reason and a
// Suggestion for actionable feedback, in a
// Diagnostic{Code, Message, Reason, Suggestion, Cause} shape.
//
// The core never raises directly: each failure mode surfaces as a
// Diagnostic collected in a Sink. InputShape is the one code that is
// also returned to the caller as a Go error, via AsError, since that
// failure means the query is skipped entirely.
package errors

import "fmt"

// Code identifies one of the five diagnostic classes the core raises.
type Code int

const (
	InputShape Code = iota + 1
	PredicateShape
	UnsupportedConstruct
	ClosureFuel
	Internal
)

func (c Code) String() string {
	switch c {
	case InputShape:
		return "input_shape"
	case PredicateShape:
		return "predicate_shape"
	case UnsupportedConstruct:
		return "unsupported_construct"
	case ClosureFuel:
		return "closure_fuel"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Diagnostic is a single condition raised by the core. Every
// diagnostic must provide a human-readable reason and suggestion.
type Diagnostic struct {
	Code       Code
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

func (d *Diagnostic) Error() string {
	msg := fmt.Sprintf("[%s] %s", d.Code, d.Message)
	if d.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, d.Reason)
	}
	if d.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, d.Suggestion)
	}
	if d.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, d.Cause)
	}
	return msg
}

func (d *Diagnostic) Unwrap() error { return d.Cause }

// NewInputShape reports a query with no FROM clause, no alias
// extractable, or zero relations detected. Reported to the caller; the
// driver skips that query.
func NewInputShape(message, reason, suggestion string) *Diagnostic {
	return &Diagnostic{Code: InputShape, Message: message, Reason: reason, Suggestion: suggestion}
}

// NewPredicateShape reports unbalanced quotes or parentheses in a
// WHERE clause. The classifier already produced a best-effort partial
// result; the core proceeds.
func NewPredicateShape(message, reason string) *Diagnostic {
	return &Diagnostic{
		Code:       PredicateShape,
		Message:    message,
		Reason:     reason,
		Suggestion: "review the WHERE clause for unbalanced quotes or parentheses",
	}
}

// NewUnsupportedConstruct reports a predicate shape the classifier
// does not attempt to interpret as a join or selection (top-level OR,
// a non-equality join, OUTER/SEMI/ANTI, a subquery). The predicate is
// preserved verbatim as a complex predicate and excluded from join and
// EC inference.
func NewUnsupportedConstruct(construct, handling string) *Diagnostic {
	return &Diagnostic{
		Code:       UnsupportedConstruct,
		Message:    fmt.Sprintf("unsupported construct: %s", construct),
		Reason:     handling,
		Suggestion: "rewrite as a conjunction of equality joins and single-table selections if enumeration over this predicate is required",
	}
}

// NewClosureFuel reports that column-aware transitive closure did not
// converge within the iteration cap. Closure halts; enumeration
// proceeds with whatever edges exist.
func NewClosureFuel(cap int) *Diagnostic {
	return &Diagnostic{
		Code:       ClosureFuel,
		Message:    fmt.Sprintf("column-aware closure did not converge within %d iterations", cap),
		Reason:     "closure halted; enumeration proceeds with whatever edges exist",
		Suggestion: "raise the iteration cap if this schema legitimately needs deeper join chaining",
	}
}

// NewInternal reports a connected subset with no valid decomposition,
// treated as a bug in the enumerator. The subset is skipped.
func NewInternal(subset string) *Diagnostic {
	return &Diagnostic{
		Code:       Internal,
		Message:    fmt.Sprintf("connected subset %q has no valid decomposition", subset),
		Reason:     "every strictly smaller connected subset should already be enumerable when this occurs; treated as a bug",
		Suggestion: "report this subset and its originating query",
	}
}

// AsError returns d as a Go error when its code is InputShape (the one
// diagnostic class the driver must treat as fatal to the query), and
// nil otherwise.
func (d *Diagnostic) AsError() error {
	if d == nil || d.Code != InputShape {
		return nil
	}
	return d
}

// Sink collects diagnostics for one query's processing.
type Sink struct {
	diagnostics []*Diagnostic
}

// NewSink returns an empty diagnostic sink.
func NewSink() *Sink { return &Sink{} }

// Add appends a diagnostic to the sink.
func (s *Sink) Add(d *Diagnostic) { s.diagnostics = append(s.diagnostics, d) }

// All returns every diagnostic added so far, in add order.
func (s *Sink) All() []*Diagnostic { return s.diagnostics }

// Empty reports whether no diagnostics were added.
func (s *Sink) Empty() bool { return len(s.diagnostics) == 0 }
