// Package sqlgate pre-validates raw SQL before it reaches the
// regex-based enumeration core. It never replaces that core: a future
// true-parser migration must not change externally observable
// categorization, so this gate only raises InputShape diagnostics for
// shapes the core cannot be asked to handle at all - unparsable text,
// multiple statements, non-SELECT statements, set operations, and a
// SELECT with no FROM clause - using a real SQL parser rather than
// pattern matching.
package sqlgate

import (
	cerrors "github.com/canonica-labs/canonica/internal/errors"
	"github.com/dolthub/vitess/go/vt/sqlparser"
)

// Gate validates raw query text before enumeration.Pipeline.Run sees
// it.
type Gate struct{}

// NewGate returns a pre-validation gate.
func NewGate() *Gate {
	return &Gate{}
}

// Check parses sql with dolthub/vitess's sqlparser and reports an
// InputShape diagnostic if the text is not exactly one SELECT
// statement with a FROM clause. A nil return means the core may proceed.
func (g *Gate) Check(sql string) *cerrors.Diagnostic {
	stmts, err := sqlparser.SplitStatementToPieces(sql)
	if err != nil {
		return cerrors.NewInputShape(
			"query does not parse as SQL",
			err.Error(),
			"check for a stray semicolon or unterminated string literal",
		)
	}
	if len(stmts) != 1 {
		return cerrors.NewInputShape(
			"query contains more than one statement",
			"the enumerator processes exactly one query at a time",
			"submit one statement per query",
		)
	}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return cerrors.NewInputShape(
			"query does not parse as SQL",
			err.Error(),
			"check for unsupported syntax or a malformed clause",
		)
	}

	switch s := stmt.(type) {
	case *sqlparser.Select:
		if len(s.From) == 0 {
			return cerrors.NewInputShape(
				"SELECT has no FROM clause",
				"the enumerator requires at least one base relation",
				"add a FROM clause naming at least one relation",
			)
		}
		return nil
	case *sqlparser.SetOp:
		return cerrors.NewInputShape(
			"query is a set operation (UNION/INTERSECT/EXCEPT)",
			"the enumerator processes single SELECT statements over inner joins only",
			"submit one SELECT statement",
		)
	default:
		return cerrors.NewInputShape(
			"query is not a SELECT statement",
			"only SELECT queries can be enumerated",
			"submit a SELECT query",
		)
	}
}
