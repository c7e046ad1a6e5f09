package enumeration

import (
	"regexp"
	"strings"
)

// Regex-based extraction throughout this file uses numbered capture
// groups read via submatch index, compiled once at package init. A
// hand-written lexer could replace this without changing externally
// observable behavior; this stays regex-first.
var (
	joinKeywordRe     = regexp.MustCompile(`(?i)\bJOIN\b`)
	fromClauseRe      = regexp.MustCompile(`(?is)\bFROM\b(.*?)(?:\bWHERE\b|\bGROUP\s+BY\b|\bORDER\s+BY\b|\bLIMIT\b|$)`)
	explicitJoinRe    = regexp.MustCompile(`(?i)\bJOIN\s+([A-Za-z_][A-Za-z0-9_.]*)\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_]*)\s+ON\s+([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*(?:=|==)\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)`)
	aliasedRelationRe = regexp.MustCompile(`(?is)^\s*([A-Za-z_][A-Za-z0-9_.]*)\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*$`)
	bareRelationRe    = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s*$`)
	whitespaceRe      = regexp.MustCompile(`\s+`)
)

// AnalyzeResult is the analyzer front's output: relations and raw join
// edges extracted from the FROM/JOIN clause, ahead of C1's
// classification of the WHERE clause.
type AnalyzeResult struct {
	Relations     []Relation
	ExplicitJoins []JoinPredicate // ON-clause equalities, Original=true
	Style         string          // "comma" or "join"
}

// AnalyzeFrom implements the analyzer front: it locates the FROM
// clause, detects comma-style vs. explicit-JOIN style (presence of a
// whitespace-bounded JOIN keyword selects the explicit-JOIN path), and
// extracts relations plus any ON-clause join predicates.
func AnalyzeFrom(sql string) (AnalyzeResult, bool) {
	normalized := whitespaceRe.ReplaceAllString(sql, " ")
	m := fromClauseRe.FindStringSubmatch(normalized)
	if m == nil {
		return AnalyzeResult{}, false
	}
	fromClause := strings.TrimSpace(m[1])
	if fromClause == "" {
		return AnalyzeResult{}, false
	}

	style := "comma"
	if joinKeywordRe.MatchString(fromClause) {
		style = "join"
	}

	var relations []Relation
	var joins []JoinPredicate
	if style == "join" {
		relations, joins = parseExplicitJoinFrom(fromClause)
	} else {
		relations = parseCommaFrom(fromClause)
	}

	if len(relations) == 0 {
		return AnalyzeResult{}, false
	}
	return AnalyzeResult{Relations: relations, ExplicitJoins: joins, Style: style}, true
}

func parseCommaFrom(fromClause string) []Relation {
	parts := splitTopLevelComma(fromClause)
	var relations []Relation
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if m := aliasedRelationRe.FindStringSubmatch(p); m != nil {
			relations = append(relations, Relation{Base: m[1], Alias: m[2]})
			continue
		}
		if m := bareRelationRe.FindStringSubmatch(p); m != nil {
			relations = append(relations, Relation{Base: m[1], Alias: m[1]})
		}
	}
	return relations
}

func parseExplicitJoinFrom(fromClause string) ([]Relation, []JoinPredicate) {
	loc := joinKeywordRe.FindStringIndex(fromClause)
	head := fromClause
	tail := ""
	if loc != nil {
		head = fromClause[:loc[0]]
		tail = fromClause[loc[0]:]
	}

	relations := parseCommaFrom(head)
	matches := explicitJoinRe.FindAllStringSubmatch(tail, -1)

	var joins []JoinPredicate
	for _, m := range matches {
		relations = append(relations, Relation{Base: m[1], Alias: m[2]})
		joins = append(joins, JoinPredicate{
			Left:     ColumnRef{Alias: m[3], Column: m[4]},
			Right:    ColumnRef{Alias: m[5], Column: m[6]},
			Original: true,
		})
	}
	return relations, joins
}

// splitTopLevelComma splits s on top-level commas, respecting
// parenthesis nesting and quoted string literals.
func splitTopLevelComma(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	n := len(s)
	for i := 0; i < n; i++ {
		ch := s[i]
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
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
