package catalog

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// indexColumns parses a pg_get_indexdef string and returns one entry per
// key: the column name, or the deparsed text of an expression key.
func indexColumns(definition string) ([]string, error) {
	if definition == "" {
		return nil, fmt.Errorf("empty index definition")
	}
	result, err := pg_query.Parse(definition)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index definition: %w", err)
	}

	var stmt *pg_query.IndexStmt
	for _, raw := range result.Stmts {
		if node := raw.GetStmt(); node != nil {
			if s := node.GetIndexStmt(); s != nil {
				stmt = s
				break
			}
		}
	}
	if stmt == nil {
		return nil, fmt.Errorf("no CREATE INDEX statement found in definition")
	}

	cols := make([]string, 0, len(stmt.IndexParams))
	for _, param := range stmt.IndexParams {
		elem := param.GetIndexElem()
		if elem == nil {
			continue
		}
		if elem.Name != "" {
			cols = append(cols, elem.Name)
			continue
		}
		cols = append(cols, deparseExpression(elem.Expr))
	}
	return cols, nil
}

// deparseExpression renders expr by wrapping it in a SELECT target list.
func deparseExpression(expr *pg_query.Node) string {
	if expr == nil {
		return ""
	}
	tree := &pg_query.ParseResult{
		Stmts: []*pg_query.RawStmt{{
			Stmt: &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: &pg_query.SelectStmt{
				TargetList: []*pg_query.Node{{
					Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: expr}},
				}},
				Op:          pg_query.SetOperation_SETOP_NONE,
				LimitOption: pg_query.LimitOption_LIMIT_OPTION_DEFAULT,
			}}},
		}},
	}
	out, err := pg_query.Deparse(tree)
	if err != nil {
		return "(expression)"
	}
	return strings.TrimPrefix(out, "SELECT ")
}
