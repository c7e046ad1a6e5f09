package enumeration

import (
	"fmt"
	"strings"

	cerrors "github.com/canonica-labs/canonica/internal/errors"
)

// Result is the outcome of running the pipeline on one query.
type Result struct {
	QueryID  string
	Aliases  []string
	Subplans []Subplan
	SQL      map[string]string // subset canonical key -> reconstructed SQL
}

// Pipeline wires the analyzer front, predicate classifier, join graph,
// enumerator, and reconstructor into the one-shot per-query flow. A
// fresh Pipeline (and the JoinGraph/Classifier it builds per call) owns
// no state across queries.
type Pipeline struct {
	// MaxLevel caps the enumerator at subsets of at most this many
	// relations (0 = unbounded).
	MaxLevel int
}

// NewPipeline returns a pipeline with the given max-level bound.
func NewPipeline(maxLevel int) *Pipeline {
	return &Pipeline{MaxLevel: maxLevel}
}

// Run processes one query end to end. It returns the enumerated
// subplans and SQL, a diagnostic sink populated for every non-fatal
// failure class encountered, and a non-nil error only when the
// InputShape class fires, meaning that query is skipped entirely.
func (p *Pipeline) Run(queryID, sql string) (*Result, *cerrors.Sink, error) {
	sink := cerrors.NewSink()
	trimmed := strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")

	front, ok := AnalyzeFrom(trimmed)
	if !ok || len(front.Relations) == 0 {
		d := cerrors.NewInputShape(
			fmt.Sprintf("query %s: no FROM clause or no relations extractable", queryID),
			"a FROM clause naming at least one relation is required",
			"check that the query begins with a recognizable FROM clause",
		)
		sink.Add(d)
		return nil, sink, d.AsError()
	}

	relations := make(map[string]Relation, len(front.Relations))
	var aliases []string
	for _, r := range front.Relations {
		relations[r.Alias] = r
		aliases = append(aliases, r.Alias)
	}

	classification := NewClassifier().Classify(trimmed)
	if classification.Malformed {
		sink.Add(cerrors.NewPredicateShape(
			fmt.Sprintf("query %s: WHERE clause has unbalanced quotes or parentheses", queryID),
			"the classifier produced a best-effort partial split of the WHERE clause",
		))
	}
	for _, cp := range classification.Complex {
		if cp.TopLevelOR {
			sink.Add(cerrors.NewUnsupportedConstruct(
				"top-level OR predicate",
				"preserved verbatim as a complex predicate; excluded from join and EC inference",
			))
		}
	}

	graph := NewJoinGraph()
	for _, j := range front.ExplicitJoins {
		graph.Ingest(j)
	}
	for _, j := range classification.Joins {
		graph.Ingest(j)
	}
	for _, derived := range InferConstantEquality(classification.Selections) {
		graph.Ingest(derived)
	}
	graph.BuildEquivalenceClasses()
	if exceeded := graph.RunClosure(); exceeded {
		sink.Add(cerrors.NewClosureFuel(closureCap))
	}

	enumerator := NewEnumerator(graph, p.MaxLevel)
	subplans, skipped := enumerator.Enumerate(aliases)
	for _, subset := range skipped {
		sink.Add(cerrors.NewInternal(subset))
	}

	reconstructor := NewReconstructor(relations, classification, graph)
	sqlBySubset := make(map[string]string, len(subplans))
	for _, sp := range subplans {
		sqlBySubset[sp.Subset] = reconstructor.Reconstruct(sp)
	}

	return &Result{
		QueryID:  queryID,
		Aliases:  aliases,
		Subplans: subplans,
		SQL:      sqlBySubset,
	}, sink, nil
}
