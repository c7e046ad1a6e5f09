package enumeration

import (
	"regexp"
	"sort"
	"strings"
)

// closureCap bounds the column-aware transitive closure's iteration
// count (see DESIGN.md's Open Question resolution): a fixed cap of 10,
// not n².
const closureCap = 10

// JoinGraph implements the join graph and equivalence-class engine: it
// stores join-predicate details keyed by canonical edge, partitions
// column references into equivalence classes via union-find, and
// answers connectivity queries.
type JoinGraph struct {
	edges        map[string][]JoinPredicate // edge key -> details
	aliasColumns map[string][]string        // alias -> "alias.column" strings seen
	parent       map[string]string          // union-find over "alias.column"
	rank         map[string]int
}

// NewJoinGraph returns an empty join graph, scoped to one query.
func NewJoinGraph() *JoinGraph {
	return &JoinGraph{
		edges:        map[string][]JoinPredicate{},
		aliasColumns: map[string][]string{},
		parent:       map[string]string{},
		rank:         map[string]int{},
	}
}

// Ingest records one join predicate, canonicalizing its edge key and
// de-duplicating against any existing detail with the same unordered
// column pair on that edge.
func (g *JoinGraph) Ingest(p JoinPredicate) {
	key := p.EdgeKey()
	if g.hasDetail(key, p) {
		return
	}
	g.edges[key] = append(g.edges[key], p)
	g.aliasColumns[p.Left.Alias] = appendUnique(g.aliasColumns[p.Left.Alias], p.Left.String())
	g.aliasColumns[p.Right.Alias] = appendUnique(g.aliasColumns[p.Right.Alias], p.Right.String())
}

func (g *JoinGraph) hasDetail(key string, p JoinPredicate) bool {
	for _, existing := range g.edges[key] {
		if sameColumnPair(existing, p) {
			return true
		}
	}
	return false
}

func sameColumnPair(a, b JoinPredicate) bool {
	return (a.Left == b.Left && a.Right == b.Right) || (a.Left == b.Right && a.Right == b.Left)
}

// EdgeDetails returns the join-predicate details stored for the edge
// between a and b, in ingestion order.
func (g *JoinGraph) EdgeDetails(a, b string) []JoinPredicate {
	return g.edges[EdgeKey(a, b)]
}

func (g *JoinGraph) hasEdge(a, b string) bool {
	return len(g.edges[EdgeKey(a, b)]) > 0
}

// --- union-find over "alias.column" keys ---

func (g *JoinGraph) find(x string) string {
	if _, ok := g.parent[x]; !ok {
		g.parent[x] = x
		g.rank[x] = 0
		return x
	}
	if g.parent[x] != x {
		g.parent[x] = g.find(g.parent[x])
	}
	return g.parent[x]
}

func (g *JoinGraph) union(a, b string) {
	ra, rb := g.find(a), g.find(b)
	if ra == rb {
		return
	}
	if g.rank[ra] < g.rank[rb] {
		ra, rb = rb, ra
	}
	g.parent[rb] = ra
	if g.rank[ra] == g.rank[rb] {
		g.rank[ra]++
	}
}

// BuildEquivalenceClasses runs the single-pass union-find construction
// over every join predicate ingested so far (original and any
// constant-equality-derived predicates already ingested before this
// call).
func (g *JoinGraph) BuildEquivalenceClasses() {
	for _, details := range g.edges {
		for _, d := range details {
			g.union(d.Left.String(), d.Right.String())
		}
	}
}

// ecConnected reports whether some column of alias a and some column
// of alias b belong to the same equivalence class.
func (g *JoinGraph) ecConnected(a, b string) bool {
	for _, ca := range g.aliasColumns[a] {
		ra := g.find(ca)
		for _, cb := range g.aliasColumns[b] {
			if g.find(cb) == ra {
				return true
			}
		}
	}
	return false
}

// Connected implements C2's connected(subset) query: BFS over the
// subset's aliases, treating two aliases as neighbors if they are
// EC-connected or share an explicit edge. Empty and singleton subsets
// are connected by definition.
func (g *JoinGraph) Connected(aliases []string) bool {
	if len(aliases) <= 1 {
		return true
	}
	visited := map[string]bool{aliases[0]: true}
	queue := []string{aliases[0]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, other := range aliases {
			if visited[other] {
				continue
			}
			if g.ecConnected(cur, other) || g.hasEdge(cur, other) {
				visited[other] = true
				queue = append(queue, other)
			}
		}
	}
	return len(visited) == len(aliases)
}

// CanJoin implements C2's can_join(left, right) query.
func (g *JoinGraph) CanJoin(left, right []string) bool {
	for _, l := range left {
		for _, r := range right {
			if g.ecConnected(l, r) || g.hasEdge(l, r) {
				return true
			}
		}
	}
	return false
}

// RunClosure performs column-aware transitive closure: repeatedly
// scans all pairs of stored join-predicate details on different edges;
// whenever they share a relation and agree on the
// column of that shared relation, a new predicate is derived on the
// resulting edge. Iterates until no new predicate is added, for at most
// closureCap passes plus one final pass. Returns true if that final
// pass still added predicates (the ClosureFuel condition).
func (g *JoinGraph) RunClosure() bool {
	for iter := 0; iter < closureCap; iter++ {
		if !g.closurePass() {
			return false
		}
	}
	return g.closurePass()
}

type detailRef struct {
	edgeKey string
	pred    JoinPredicate
}

func (g *JoinGraph) closurePass() bool {
	var all []detailRef
	for ek, details := range g.edges {
		for _, d := range details {
			all = append(all, detailRef{ek, d})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].edgeKey != all[j].edgeKey {
			return all[i].edgeKey < all[j].edgeKey
		}
		return all[i].pred.Render() < all[j].pred.Render()
	})

	added := false
	for i := range all {
		for j := range all {
			if i == j || all[i].edgeKey == all[j].edgeKey {
				continue
			}
			newPred, ok := transitivePredicate(all[i].pred, all[j].pred)
			if !ok {
				continue
			}
			key := newPred.EdgeKey()
			if g.hasDetail(key, newPred) {
				continue
			}
			g.Ingest(newPred)
			g.union(newPred.Left.String(), newPred.Right.String())
			added = true
		}
	}
	return added
}

// transitivePredicate checks the four orientations: d1 and d2 form a
// transitive join iff they share a relation and agree on the column of
// that shared relation.
func transitivePredicate(d1, d2 JoinPredicate) (JoinPredicate, bool) {
	type combo struct {
		shared1, shared2 ColumnRef
		out              JoinPredicate
	}
	combos := []combo{
		{d1.Right, d2.Left, JoinPredicate{Left: d1.Left, Right: d2.Right}},
		{d1.Right, d2.Right, JoinPredicate{Left: d1.Left, Right: d2.Left}},
		{d1.Left, d2.Left, JoinPredicate{Left: d1.Right, Right: d2.Right}},
		{d1.Left, d2.Right, JoinPredicate{Left: d1.Right, Right: d2.Left}},
	}
	for _, c := range combos {
		if c.shared1 == c.shared2 && c.out.Left.Alias != c.out.Right.Alias {
			out := c.out
			out.Original = false
			return out, true
		}
	}
	return JoinPredicate{}, false
}

// --- constant-equality inference ---

var literalPattern = `('(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"|-?\d+(?:\.\d+)?)`

var (
	constEqRe = regexp.MustCompile(`(?i)^\s*[A-Za-z_][A-Za-z0-9_]*\.([A-Za-z_][A-Za-z0-9_]*)\s*=\s*` + literalPattern + `\s*(?:::\s*\w+)?\s*$`)
	constInRe = regexp.MustCompile(`(?i)^\s*[A-Za-z_][A-Za-z0-9_]*\.([A-Za-z_][A-Za-z0-9_]*)\s+IN\s*\(\s*` + literalPattern + `\s*\)\s*$`)
)

// InferConstantEquality scans selection predicates for the two
// single-value-constraint patterns (`alias.col = <literal>` and
// `alias.col IN (<single literal>)`), normalizes each
// literal, and groups by (column-name, normalized-value). Any group
// with two or more distinct aliases produces pairwise derived join
// predicates across those aliases.
func InferConstantEquality(selections map[string][]SelectionPredicate) []JoinPredicate {
	type groupKey struct{ column, literal string }
	groups := map[groupKey][]ColumnRef{}
	var order []groupKey

	var aliases []string
	for alias := range selections {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	for _, alias := range aliases {
		for _, p := range selections[alias] {
			column, literal, ok := matchConstantEquality(p.Text)
			if !ok {
				continue
			}
			k := groupKey{column, normalizeLiteral(literal)}
			if _, seen := groups[k]; !seen {
				order = append(order, k)
			}
			groups[k] = append(groups[k], ColumnRef{Alias: alias, Column: column})
		}
	}

	var derived []JoinPredicate
	for _, k := range order {
		refs := dedupeByAlias(groups[k])
		if len(refs) < 2 {
			continue
		}
		for i := 0; i < len(refs); i++ {
			for j := i + 1; j < len(refs); j++ {
				derived = append(derived, JoinPredicate{Left: refs[i], Right: refs[j], Original: false})
			}
		}
	}
	return derived
}

func dedupeByAlias(refs []ColumnRef) []ColumnRef {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Alias < refs[j].Alias })
	seen := map[string]bool{}
	var out []ColumnRef
	for _, r := range refs {
		if seen[r.Alias] {
			continue
		}
		seen[r.Alias] = true
		out = append(out, r)
	}
	return out
}

func matchConstantEquality(text string) (column, literal string, ok bool) {
	if m := constEqRe.FindStringSubmatch(text); m != nil {
		return m[1], m[2], true
	}
	if m := constInRe.FindStringSubmatch(text); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

// normalizeLiteral strips outer quotes, any "::type" cast suffix, and
// surrounding whitespace.
func normalizeLiteral(lit string) string {
	lit = strings.TrimSpace(lit)
	if idx := strings.Index(lit, "::"); idx >= 0 {
		lit = strings.TrimSpace(lit[:idx])
	}
	if len(lit) >= 2 {
		if (lit[0] == '\'' && lit[len(lit)-1] == '\'') || (lit[0] == '"' && lit[len(lit)-1] == '"') {
			lit = lit[1 : len(lit)-1]
		}
	}
	return strings.TrimSpace(lit)
}
