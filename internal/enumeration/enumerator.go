package enumeration

import "sort"

// Enumerator runs a level-by-level dynamic-programming pass over
// connected subsets of the alias universe.
type Enumerator struct {
	graph    *JoinGraph
	maxLevel int // 0 means unbounded
}

// NewEnumerator returns an enumerator over graph, capping enumeration
// at maxLevel relations per subset (0 = no cap).
func NewEnumerator(graph *JoinGraph, maxLevel int) *Enumerator {
	return &Enumerator{graph: graph, maxLevel: maxLevel}
}

// Enumerate returns subplans for every connected subset of aliases, in
// strict level order and, within a level, lexicographic-combination
// order. The second return value lists subset keys that were connected
// but had no valid decomposition found (the Internal diagnostic
// condition); this should not occur in practice and is a safety net.
func (e *Enumerator) Enumerate(aliases []string) ([]Subplan, []string) {
	sorted := append([]string(nil), aliases...)
	sort.Strings(sorted)
	n := len(sorted)

	table := map[string]Subplan{}
	var plans []Subplan
	var skipped []string

	for _, a := range sorted {
		key := SubsetKey([]string{a})
		sp := Subplan{Level: 1, Subset: key, Aliases: []string{a}}
		table[key] = sp
		plans = append(plans, sp)
	}

	limit := n
	if e.maxLevel > 0 && e.maxLevel < limit {
		limit = e.maxLevel
	}

	for level := 2; level <= limit; level++ {
		for _, combo := range combinations(sorted, level) {
			key := SubsetKey(combo)
			if _, exists := table[key]; exists {
				continue
			}
			if !e.graph.Connected(combo) {
				continue
			}
			left, right, ok := e.decompose(combo, table)
			if !ok {
				skipped = append(skipped, key)
				continue
			}
			sp := Subplan{Level: level, Subset: key, Aliases: combo, Left: left, Right: right}
			table[key] = sp
			plans = append(plans, sp)
		}
	}
	return plans, skipped
}

// decompose finds the first accepted binary partition of subset,
// scanning ascending leftSize from 1 to ⌊L/2⌋, and within a size,
// lexicographic-combination order.
func (e *Enumerator) decompose(subset []string, table map[string]Subplan) (left, right string, ok bool) {
	n := len(subset)
	for leftSize := 1; leftSize <= n/2; leftSize++ {
		for _, leftCombo := range combinations(subset, leftSize) {
			leftKey := SubsetKey(leftCombo)
			if _, exists := table[leftKey]; !exists {
				continue
			}
			rightCombo := difference(subset, leftCombo)
			rightKey := SubsetKey(rightCombo)
			if _, exists := table[rightKey]; !exists {
				continue
			}
			if !e.graph.CanJoin(leftCombo, rightCombo) {
				continue
			}
			return leftKey, rightKey, true
		}
	}
	return "", "", false
}
