package enumeration

import (
	"reflect"
	"testing"
)

func runOrFail(t *testing.T, sql string) *Result {
	t.Helper()
	p := NewPipeline(0)
	res, sink, err := p.Run("t", sql)
	if err != nil {
		t.Fatalf("Run(%q) returned error: %v (diagnostics: %v)", sql, err, sink.All())
	}
	return res
}

// S1: SELECT * FROM A, B WHERE A.x = B.y AND A.z > 10;
func TestScenarioS1(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM A, B WHERE A.x = B.y AND A.z > 10;")
	wantKeys := []string{"A", "B", "A,B"}
	assertSubsetKeys(t, res, wantKeys)

	got := res.SQL["A,B"]
	want := "SELECT * FROM A\nJOIN B ON A.x = B.y\nWHERE A.z > 10;"
	if got != want {
		t.Errorf("S1 {A,B} SQL =\n%s\nwant\n%s", got, want)
	}
}

// S2: SELECT * FROM C, D, E WHERE C.a = D.b AND D.b = E.c;
func TestScenarioS2(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM C, D, E WHERE C.a = D.b AND D.b = E.c;")
	if len(res.Subplans) != 7 {
		t.Fatalf("S2: got %d subplans, want 7 (%v)", len(res.Subplans), keysOf(res))
	}

	got := res.SQL["C,E"]
	want := "SELECT * FROM C\nJOIN E ON C.a = E.c;"
	if got != want {
		t.Errorf("S2 {C,E} SQL =\n%s\nwant\n%s", got, want)
	}
}

// S3: SELECT * FROM A, B, C WHERE A.x = B.y AND B.z = C.w;
func TestScenarioS3(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM A, B, C WHERE A.x = B.y AND B.z = C.w;")
	wantKeys := []string{"A", "B", "C", "A,B", "B,C", "A,B,C"}
	assertSubsetKeys(t, res, wantKeys)

	for _, sp := range res.Subplans {
		if sp.Subset == "A,B,C" {
			if sp.Left != "A" || sp.Right != "B,C" {
				t.Errorf("S3 decomposition of {A,B,C} = (%s, %s), want (A, B,C)", sp.Left, sp.Right)
			}
		}
	}
}

// S4: constant-equality derived join.
func TestScenarioS4(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM X, Y WHERE X.k = 'p' AND Y.k = 'p';")
	assertSubsetKeys(t, res, []string{"X", "Y", "X,Y"})

	got := res.SQL["X,Y"]
	want := "SELECT * FROM X\nJOIN Y ON X.k = Y.k\nWHERE X.k = 'p'\n  AND Y.k = 'p';"
	if got != want {
		t.Errorf("S4 {X,Y} SQL =\n%s\nwant\n%s", got, want)
	}
}

// S5: no WHERE clause at all.
func TestScenarioS5(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM A")
	assertSubsetKeys(t, res, []string{"A"})
	if got, want := res.SQL["A"], "SELECT * FROM A;"; got != want {
		t.Errorf("S5 SQL = %q, want %q", got, want)
	}
}

// S6: two aliases of the same base relation.
func TestScenarioS6(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM title t1, title t2 WHERE t1.id = t2.id;")
	assertSubsetKeys(t, res, []string{"t1", "t2", "t1,t2"})

	if got, want := res.SQL["t1"], "SELECT * FROM title t1;"; got != want {
		t.Errorf("S6 {t1} SQL = %q, want %q", got, want)
	}
	if got, want := res.SQL["t2"], "SELECT * FROM title t2;"; got != want {
		t.Errorf("S6 {t2} SQL = %q, want %q", got, want)
	}
	got := res.SQL["t1,t2"]
	want := "SELECT * FROM title t1\nJOIN title t2 ON t1.id = t2.id;"
	if got != want {
		t.Errorf("S6 {t1,t2} SQL =\n%s\nwant\n%s", got, want)
	}
}

// Boundary: singleton query emits exactly one subplan, no JOIN clause.
func TestBoundarySingletonQuery(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM orders o WHERE o.status = 'open';")
	if len(res.Subplans) != 1 {
		t.Fatalf("got %d subplans, want 1", len(res.Subplans))
	}
	if got := res.SQL["o"]; got != "SELECT * FROM orders o\nWHERE o.status = 'open';" {
		t.Errorf("got %q", got)
	}
}

// Boundary: fully disconnected alias universe emits exactly n singletons.
func TestBoundaryFullyDisconnected(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM A, B, C")
	assertSubsetKeys(t, res, []string{"A", "B", "C"})
}

// Boundary: a clique graph on n aliases emits exactly 2^n - 1 subplans.
func TestBoundaryClique(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM A, B, C WHERE A.x = B.x AND B.x = C.x AND A.x = C.x;")
	if len(res.Subplans) != 7 {
		t.Fatalf("got %d subplans, want 7 (2^3 - 1)", len(res.Subplans))
	}
}

// Invariant: every emitted subplan's decomposition is valid (left and
// right are non-empty, both are emitted subsets, and together they
// partition the subset); subset keys are strictly unique.
func TestInvariantDecompositionValidity(t *testing.T) {
	queries := []string{
		"SELECT * FROM A, B, C, D WHERE A.x = B.x AND B.y = C.y AND C.z = D.z;",
		"SELECT * FROM C, D, E WHERE C.a = D.b AND D.b = E.c;",
		"SELECT * FROM X, Y WHERE X.k = 'p' AND Y.k = 'p';",
	}
	for _, q := range queries {
		res := runOrFail(t, q)

		seen := map[string]bool{}
		bySubset := map[string]Subplan{}
		for _, sp := range res.Subplans {
			if seen[sp.Subset] {
				t.Fatalf("%s: duplicate subset key %q", q, sp.Subset)
			}
			seen[sp.Subset] = true
			bySubset[sp.Subset] = sp
		}

		for _, sp := range res.Subplans {
			if sp.Level == 1 {
				continue
			}
			if sp.Left == "" || sp.Right == "" {
				t.Errorf("%s: subplan %q has empty decomposition", q, sp.Subset)
				continue
			}
			if _, ok := bySubset[sp.Left]; !ok {
				t.Errorf("%s: left %q of %q was not emitted", q, sp.Left, sp.Subset)
			}
			if _, ok := bySubset[sp.Right]; !ok {
				t.Errorf("%s: right %q of %q was not emitted", q, sp.Right, sp.Subset)
			}
			union := SubsetKey(append(append([]string{}, SplitSubsetKey(sp.Left)...), SplitSubsetKey(sp.Right)...))
			if union != sp.Subset {
				t.Errorf("%s: left %q + right %q != subset %q", q, sp.Left, sp.Right, sp.Subset)
			}
		}
	}
}

// Invariant: deterministic output - identical input produces identical
// subplans and SQL across repeated runs.
func TestInvariantDeterminism(t *testing.T) {
	q := "SELECT * FROM C, D, E WHERE C.a = D.b AND D.b = E.c;"
	first := runOrFail(t, q)
	second := runOrFail(t, q)

	if len(first.Subplans) != len(second.Subplans) {
		t.Fatalf("subplan counts differ: %d vs %d", len(first.Subplans), len(second.Subplans))
	}
	for i := range first.Subplans {
		if !reflect.DeepEqual(first.Subplans[i], second.Subplans[i]) {
			t.Errorf("subplan %d differs: %+v vs %+v", i, first.Subplans[i], second.Subplans[i])
		}
	}
	for k, v := range first.SQL {
		if second.SQL[k] != v {
			t.Errorf("SQL for %q differs: %q vs %q", k, v, second.SQL[k])
		}
	}
}

// Invariant: closure is idempotent - running RunClosure again adds no
// new edges.
func TestInvariantClosureIdempotent(t *testing.T) {
	graph := NewJoinGraph()
	graph.Ingest(JoinPredicate{Left: ColumnRef{"C", "a"}, Right: ColumnRef{"D", "b"}, Original: true})
	graph.Ingest(JoinPredicate{Left: ColumnRef{"D", "b"}, Right: ColumnRef{"E", "c"}, Original: true})
	graph.BuildEquivalenceClasses()
	graph.RunClosure()

	before := countEdgeDetails(graph)
	graph.RunClosure()
	after := countEdgeDetails(graph)
	if before != after {
		t.Errorf("closure not idempotent: %d edges before second run, %d after", before, after)
	}
}

func countEdgeDetails(g *JoinGraph) int {
	n := 0
	for _, details := range g.edges {
		n += len(details)
	}
	return n
}

// Invariant: malformed WHERE (unbalanced parens) yields a best-effort
// partial classification rather than a panic or a fatal error.
func TestPredicateShapeBestEffort(t *testing.T) {
	res := runOrFail(t, "SELECT * FROM A, B WHERE (A.x = B.y")
	if res == nil {
		t.Fatal("expected a best-effort result, got nil")
	}
}

// InputShape: a query with no FROM clause is reported and skipped.
func TestInputShapeNoFrom(t *testing.T) {
	p := NewPipeline(0)
	res, sink, err := p.Run("bad", "SELECT 1")
	if err == nil {
		t.Fatal("expected an InputShape error, got nil")
	}
	if res != nil {
		t.Fatalf("expected nil result on InputShape failure, got %+v", res)
	}
	if sink.Empty() {
		t.Fatal("expected a diagnostic in the sink")
	}
}

func assertSubsetKeys(t *testing.T, res *Result, want []string) {
	t.Helper()
	got := keysOf(res)
	if len(got) != len(want) {
		t.Fatalf("got %d subset keys %v, want %d %v", len(got), got, len(want), want)
	}
	wantSet := map[string]bool{}
	for _, w := range want {
		wantSet[w] = true
	}
	for _, g := range got {
		if !wantSet[g] {
			t.Errorf("unexpected subset key %q, want one of %v", g, want)
		}
	}
}

func keysOf(res *Result) []string {
	var keys []string
	for _, sp := range res.Subplans {
		keys = append(keys, sp.Subset)
	}
	return keys
}
