package identifier

import (
	"strings"

	"github.com/lib/pq"
)

// Quote double-quotes an identifier, doubling embedded quotes.
func Quote(name string) string {
	return pq.QuoteIdentifier(name)
}

// QuoteList quotes each name and joins them with ", ".
func QuoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = Quote(name)
	}
	return strings.Join(quoted, ", ")
}

// Literal quotes a string literal with symmetric '' escaping.
func Literal(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
