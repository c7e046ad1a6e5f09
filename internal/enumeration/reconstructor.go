package enumeration

import (
	"sort"
	"strings"
)

// Reconstructor emits the SQL for an enumerated subplan: a left-deep
// join tree built with strings.Join, following a fixed edge-preference
// rule (chooseNext) for which join predicate anchors each ON clause.
type Reconstructor struct {
	relations      map[string]Relation
	classification Classification
	graph          *JoinGraph
}

// NewReconstructor returns a reconstructor for one query's relations,
// classified predicates, and join graph.
func NewReconstructor(relations map[string]Relation, classification Classification, graph *JoinGraph) *Reconstructor {
	return &Reconstructor{relations: relations, classification: classification, graph: graph}
}

// Reconstruct emits the SQL for one subplan.
func (r *Reconstructor) Reconstruct(sp Subplan) string {
	if len(sp.Aliases) == 1 {
		return r.reconstructSingleton(sp.Aliases[0])
	}
	return r.reconstructJoin(sp.Aliases)
}

func (r *Reconstructor) reconstructSingleton(alias string) string {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(r.relations[alias].Rendered())
	if where := r.whereClause([]string{alias}, nil); where != "" {
		sb.WriteString("\nWHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(";")
	return sb.String()
}

func (r *Reconstructor) reconstructJoin(aliases []string) string {
	sorted := append([]string(nil), aliases...)
	sort.Strings(sorted)

	added := []string{sorted[0]}
	remaining := sorted[1:]
	used := map[string]bool{}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(r.relations[sorted[0]].Rendered())

	for len(remaining) > 0 {
		next, pred, found := r.chooseNext(added, remaining)
		if !found {
			break // disconnected; should not arise for enumerable subsets
		}
		sb.WriteString("\nJOIN ")
		sb.WriteString(r.relations[next].Rendered())
		if pred != nil {
			sb.WriteString(" ON ")
			sb.WriteString(pred.Render())
			used[pred.Render()] = true
		}
		added = append(added, next)
		remaining = removeAlias(remaining, next)
	}

	if where := r.whereClause(sorted, used); where != "" {
		sb.WriteString("\nWHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(";")
	return sb.String()
}

// chooseNext scans remaining in iteration order, requests all
// join-predicate details between added
// and each candidate from C2, and prefer the first candidate with an
// Original detail; otherwise fall back to the first candidate with any
// detail, returned only after exhausting remaining.
func (r *Reconstructor) chooseNext(added, remaining []string) (string, *JoinPredicate, bool) {
	addedSorted := append([]string(nil), added...)
	sort.Strings(addedSorted)

	var fallbackAlias string
	var fallbackPred JoinPredicate
	haveFallback := false

	for _, c := range remaining {
		details := r.detailsBetween(addedSorted, c)
		if len(details) == 0 {
			continue
		}
		for _, d := range details {
			if d.Original {
				chosen := d
				return c, &chosen, true
			}
		}
		if !haveFallback {
			fallbackAlias = c
			fallbackPred = details[0]
			haveFallback = true
		}
	}
	if haveFallback {
		return fallbackAlias, &fallbackPred, true
	}
	return "", nil, false
}

func (r *Reconstructor) detailsBetween(added []string, c string) []JoinPredicate {
	var out []JoinPredicate
	for _, a := range added {
		out = append(out, r.graph.EdgeDetails(a, c)...)
	}
	return out
}

// whereClause aggregates selections, complex predicates, and any
// original join predicate between aliases both in subset that was not
// already consumed as an ON clause, joined by "\n  AND ".
func (r *Reconstructor) whereClause(subset []string, used map[string]bool) string {
	selections, joins, complex := r.classification.PredicatesFor(subset)

	var parts []string
	for _, s := range selections {
		parts = append(parts, s.Text)
	}
	for _, cp := range complex {
		parts = append(parts, cp.Text)
	}
	for _, j := range joins {
		text := j.Render()
		if used != nil && used[text] {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n  AND ")
}
