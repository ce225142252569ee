package postgres

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgschema/pgreconcile/internal/identifier"
)

// CheckClause renders the enum constraint expression for column.
func (d *Dialect) CheckClause(column string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = identifier.Literal(v)
	}
	return fmt.Sprintf("CHECK (%s IN (%s))", identifier.Quote(column), strings.Join(quoted, ", "))
}

// EnumValues decodes the allowed values of an enum CHECK definition as
// pg_get_constraintdef prints it. Accepted shapes:
//
//	CHECK ((("S")::text = ANY ((ARRAY['A'::character varying, 'B'::character varying])::text[])))
//	CHECK ((("S")::text = 'A'::text))
//	CHECK (("S" IN ('A', 'B')))
//
// The definition is parsed as an expression; when the parser rejects it
// the quoted literals are scanned instead.
func (d *Dialect) EnumValues(constraintDef string) ([]string, error) {
	expr := checkExpression(constraintDef)
	if expr == "" {
		return nil, fmt.Errorf("empty constraint definition")
	}

	result, err := pg_query.Parse("SELECT " + expr)
	if err != nil {
		values := scanLiterals(expr)
		if len(values) == 0 {
			return nil, fmt.Errorf("failed to parse constraint %q: %w", constraintDef, err)
		}
		return values, nil
	}
	if len(result.Stmts) != 1 {
		return nil, fmt.Errorf("unexpected constraint %q", constraintDef)
	}
	sel := result.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil || len(sel.TargetList) != 1 {
		return nil, fmt.Errorf("unexpected constraint %q", constraintDef)
	}
	target := sel.TargetList[0].GetResTarget()
	if target == nil || target.Val == nil {
		return nil, fmt.Errorf("unexpected constraint %q", constraintDef)
	}

	var values []string
	if !collectEnumValues(target.Val, &values) || len(values) == 0 {
		return nil, fmt.Errorf("constraint %q is not an enum membership test", constraintDef)
	}
	return values, nil
}

// checkExpression strips the CHECK keyword and a NOT VALID suffix.
func checkExpression(def string) string {
	s := strings.TrimSpace(def)
	if len(s) >= 5 && strings.EqualFold(s[:5], "CHECK") {
		s = strings.TrimSpace(s[5:])
	}
	if upper := strings.ToUpper(s); strings.HasSuffix(upper, "NOT VALID") {
		s = strings.TrimSpace(s[:len(s)-len("NOT VALID")])
	}
	return s
}

// collectEnumValues appends the string constants compared for equality
// with a column. It returns false for any other expression shape.
func collectEnumValues(node *pg_query.Node, values *[]string) bool {
	switch {
	case node.GetAExpr() != nil:
		expr := node.GetAExpr()
		switch expr.Kind {
		case pg_query.A_Expr_Kind_AEXPR_OP, pg_query.A_Expr_Kind_AEXPR_OP_ANY:
			if operatorName(expr) != "=" {
				return false
			}
		case pg_query.A_Expr_Kind_AEXPR_IN:
			if operatorName(expr) != "=" {
				return false
			}
		default:
			return false
		}
		return collectConstants(expr.Rexpr, values)
	case node.GetBoolExpr() != nil:
		b := node.GetBoolExpr()
		if b.Boolop != pg_query.BoolExprType_OR_EXPR {
			return false
		}
		for _, arg := range b.Args {
			if !collectEnumValues(arg, values) {
				return false
			}
		}
		return true
	}
	return false
}

func operatorName(expr *pg_query.A_Expr) string {
	if len(expr.Name) == 0 {
		return ""
	}
	if s := expr.Name[len(expr.Name)-1].GetString_(); s != nil {
		return s.Sval
	}
	return ""
}

// collectConstants appends string constants reached through casts, array
// constructors and lists.
func collectConstants(node *pg_query.Node, values *[]string) bool {
	if node == nil {
		return false
	}
	switch {
	case node.GetAConst() != nil:
		sval := node.GetAConst().GetSval()
		if sval == nil {
			return false
		}
		*values = append(*values, sval.Sval)
		return true
	case node.GetTypeCast() != nil:
		return collectConstants(node.GetTypeCast().Arg, values)
	case node.GetAArrayExpr() != nil:
		for _, el := range node.GetAArrayExpr().Elements {
			if !collectConstants(el, values) {
				return false
			}
		}
		return true
	case node.GetList() != nil:
		for _, item := range node.GetList().Items {
			if !collectConstants(item, values) {
				return false
			}
		}
		return true
	}
	return false
}

// scanLiterals returns every single-quoted literal in s in order, with
// doubled quotes unescaped.
func scanLiterals(s string) []string {
	var (
		values  []string
		current strings.Builder
		inside  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inside {
			if c == '\'' {
				inside = true
				current.Reset()
			}
			continue
		}
		if c == '\'' {
			if i+1 < len(s) && s[i+1] == '\'' {
				current.WriteByte('\'')
				i++
				continue
			}
			inside = false
			values = append(values, current.String())
			continue
		}
		current.WriteByte(c)
	}
	return values
}
