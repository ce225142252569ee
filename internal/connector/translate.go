package connector

import (
	"fmt"
	"strconv"
	"strings"
)

// Param is a parameter carrying an explicit type hint. Only Value is sent
// to the server; Type documents intent at the call site.
type Param struct {
	Type  string
	Value any
}

type scanState int

const (
	outsideLiteral scanState = iota
	insideLiteral
)

// Translate rewrites portable ? placeholders into $1, $2, ... and flattens
// typed parameters. A ? inside a single-quoted literal is left alone and
// does not consume a parameter. The number of rewritten placeholders must
// match the number of parameters.
func Translate(sql string, params []any) (string, []any, error) {
	out, count := ReplacePlaceholders(sql)
	values := flattenParams(params)
	if count != len(values) {
		return "", nil, fmt.Errorf("placeholder count mismatch: statement has %d, got %d parameters", count, len(values))
	}
	return out, values, nil
}

// ReplacePlaceholders rewrites placeholders and reports how many it
// rewrote.
func ReplacePlaceholders(sql string) (string, int) {
	var b strings.Builder
	b.Grow(len(sql) + 8)

	state := outsideLiteral
	n := 0
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\\' && i+1 < len(sql) && (sql[i+1] == '\'' || sql[i+1] == '\\'):
			// Backslash escapes only a quote or another backslash.
			b.WriteByte(c)
			i++
			b.WriteByte(sql[i])
		case c == '\'' && state == outsideLiteral:
			state = insideLiteral
			b.WriteByte(c)
		case c == '\'' && state == insideLiteral:
			if i+1 < len(sql) && sql[i+1] == '\'' {
				// Doubled quote stays inside the literal.
				b.WriteString("''")
				i++
				continue
			}
			state = outsideLiteral
			b.WriteByte(c)
		case c == '?' && state == outsideLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), n
}

// TogglesLiteral reports whether a fragment of SQL text, scanned from the
// outside of any literal, ends inside one. Escaped backslashes are ignored
// and backslash-escaped quotes do not count.
func TogglesLiteral(fragment string) bool {
	fragment = strings.ReplaceAll(fragment, `\\`, "")
	total := strings.Count(fragment, "'")
	escaped := strings.Count(fragment, `\'`)
	return (total-escaped)%2 != 0
}

func flattenParams(params []any) []any {
	if len(params) == 0 {
		return nil
	}
	values := make([]any, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case Param:
			values = append(values, v.Value)
		case *Param:
			values = append(values, v.Value)
		default:
			values = append(values, v)
		}
	}
	return values
}
