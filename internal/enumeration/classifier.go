package enumeration

import (
	"regexp"
	"sort"
	"strings"
)

var (
	whereClauseRe  = regexp.MustCompile(`(?is)\bWHERE\b(.*?)(?:\bGROUP\s+BY\b|\bORDER\s+BY\b|\bLIMIT\b|$)`)
	identDotIdent  = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\b`)
	joinPredicate2 = regexp.MustCompile(`(?i)^\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*(?:=|==)\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*$`)
)

// Classification is C1's output: predicates grouped by kind.
type Classification struct {
	Selections map[string][]SelectionPredicate // keyed by alias
	Joins      []JoinPredicate
	Complex    []ComplexPredicate
	Malformed  bool // unbalanced quotes/parens in the WHERE clause
}

// Classifier implements the Predicate Classifier (C1): regex handles
// per-clause shape matching, but AND/OR splitting is a hand-written
// top-level scanner, since regex alone cannot express that correctly
// (nested parens, BETWEEN...AND, quoted literals).
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify locates the WHERE clause and splits it into selection,
// join, and complex predicates.
func (c *Classifier) Classify(sql string) Classification {
	result := Classification{Selections: map[string][]SelectionPredicate{}}

	m := whereClauseRe.FindStringSubmatch(sql)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return result
	}

	clauses, malformed := splitTopLevelAnd(m[1])
	result.Malformed = malformed

	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		classifyPredicate(&result, clause)
	}
	return result
}

func classifyPredicate(result *Classification, clause string) {
	aliases := extractAliases(clause)
	hasOR, _ := topLevelOr(clause)
	multiTableOR := len(aliases) > 1 && strings.HasPrefix(strings.TrimSpace(clause), "(") &&
		strings.Contains(strings.ToUpper(clause), " OR ")

	if hasOR {
		result.Complex = append(result.Complex, ComplexPredicate{Aliases: aliases, Text: clause, TopLevelOR: true, MultiTableOR: multiTableOR})
		return
	}

	if len(aliases) >= 2 {
		if jm := joinPredicate2.FindStringSubmatch(clause); jm != nil {
			result.Joins = append(result.Joins, JoinPredicate{
				Left:     ColumnRef{Alias: jm[1], Column: jm[2]},
				Right:    ColumnRef{Alias: jm[3], Column: jm[4]},
				Original: true,
			})
			return
		}
		result.Complex = append(result.Complex, ComplexPredicate{Aliases: aliases, Text: clause, MultiTableOR: multiTableOR})
		return
	}

	if len(aliases) == 1 {
		alias := aliases[0]
		result.Selections[alias] = append(result.Selections[alias], SelectionPredicate{Alias: alias, Text: clause})
		return
	}

	// Zero aliases referenced (e.g. a degenerate "1=1"): keep as a
	// complex predicate with no alias requirement, so it is applicable
	// to every subset.
	result.Complex = append(result.Complex, ComplexPredicate{Text: clause})
}

// extractAliases returns the sorted, de-duplicated set of aliases
// referenced via "alias.column" tokens in clause.
func extractAliases(clause string) []string {
	seen := map[string]bool{}
	var aliases []string
	for _, m := range identDotIdent.FindAllStringSubmatch(clause, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			aliases = append(aliases, m[1])
		}
	}
	return aliases
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// matchKeyword reports whether the case-insensitive keyword kw occurs
// at s[i:] as a whole word (not a substring of a longer identifier).
func matchKeyword(s string, i int, kw string) bool {
	if i+len(kw) > len(s) {
		return false
	}
	if !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isWordChar(s[i-1]) {
		return false
	}
	j := i + len(kw)
	if j < len(s) && isWordChar(s[j]) {
		return false
	}
	return true
}

// splitTopLevelAnd splits s at top-level AND boundaries: it respects
// parenthesis nesting, quoted string literals
// (backslash-escaped), the AND inside BETWEEN x AND y, and rejects
// false matches inside identifiers (e.g. LANDING). The second return
// value reports whether the scan ended with unbalanced parens/quotes
// (PredicateShape).
func splitTopLevelAnd(s string) ([]string, bool) {
	var clauses []string
	depth := 0
	var quote byte
	betweenPending := 0
	start := 0
	n := len(s)

	for i := 0; i < n; {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' && i+1 < n {
				i += 2
				continue
			}
			if ch == quote {
				quote = 0
			}
			i++
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
			i++
			continue
		case '(':
			depth++
			i++
			continue
		case ')':
			if depth > 0 {
				depth--
			}
			i++
			continue
		}
		if depth == 0 {
			if matchKeyword(s, i, "BETWEEN") {
				betweenPending++
				i += len("BETWEEN")
				continue
			}
			if matchKeyword(s, i, "AND") {
				if betweenPending > 0 {
					betweenPending--
					i += len("AND")
					continue
				}
				clauses = append(clauses, s[start:i])
				i += len("AND")
				start = i
				continue
			}
		}
		i++
	}
	clauses = append(clauses, s[start:])
	malformed := quote != 0 || depth != 0
	return clauses, malformed
}

// topLevelOr reports whether clause contains a top-level OR (outside
// all parens and quoted strings), and whether the scan found
// unbalanced parens/quotes.
func topLevelOr(clause string) (bool, bool) {
	depth := 0
	var quote byte
	n := len(clause)
	for i := 0; i < n; i++ {
		ch := clause[i]
		if quote != 0 {
			if ch == '\\' && i+1 < n {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && matchKeyword(clause, i, "OR") {
				return true, false
			}
		}
	}
	return false, quote != 0 || depth != 0
}

// PredicatesFor returns predicates applicable to a subset of aliases:
// selections for any alias in subset (in alias-sorted, then
// encounter, order), joins whose both endpoints lie in subset, and
// complex predicates whose every referenced alias lies in subset. The
// order is deterministic given a fixed Classification.
func (c Classification) PredicatesFor(subset []string) ([]SelectionPredicate, []JoinPredicate, []ComplexPredicate) {
	inSubset := make(map[string]bool, len(subset))
	for _, a := range subset {
		inSubset[a] = true
	}

	sorted := append([]string(nil), subset...)
	sort.Strings(sorted)

	var selections []SelectionPredicate
	for _, alias := range sorted {
		selections = append(selections, c.Selections[alias]...)
	}

	var joins []JoinPredicate
	for _, j := range c.Joins {
		if inSubset[j.Left.Alias] && inSubset[j.Right.Alias] {
			joins = append(joins, j)
		}
	}

	var complex []ComplexPredicate
	for _, cp := range c.Complex {
		allIn := true
		for _, a := range cp.Aliases {
			if !inSubset[a] {
				allIn = false
				break
			}
		}
		if allIn {
			complex = append(complex, cp)
		}
	}
	return selections, joins, complex
}

// JoinPredicatesBetween returns join predicates with one endpoint in
// left and the other in right.
func (c Classification) JoinPredicatesBetween(left, right []string) []JoinPredicate {
	inLeft := make(map[string]bool, len(left))
	for _, a := range left {
		inLeft[a] = true
	}
	inRight := make(map[string]bool, len(right))
	for _, a := range right {
		inRight[a] = true
	}
	var out []JoinPredicate
	for _, j := range c.Joins {
		if (inLeft[j.Left.Alias] && inRight[j.Right.Alias]) || (inLeft[j.Right.Alias] && inRight[j.Left.Alias]) {
			out = append(out, j)
		}
	}
	return out
}
