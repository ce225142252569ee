package postgres

import (
	"fmt"
	"strings"

	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/ir"
)

// IndexName returns the physical name of a declared index.
func (d *Dialect) IndexName(table, name string) string {
	return d.names.Index(table, name)
}

// IndexMethod returns the access method the catalog reports for idx.
func (d *Dialect) IndexMethod(idx ir.IndexSpec) string {
	switch idx.EffectiveKind() {
	case ir.IndexHash:
		return "hash"
	case ir.IndexFulltext:
		return d.method
	default:
		return "btree"
	}
}

// PlanIndex returns the CREATE INDEX statement of a declared index.
func (d *Dialect) PlanIndex(table string, idx ir.IndexSpec) string {
	if idx.Kind == ir.IndexFulltext {
		return d.PlanFulltext(table, idx).IndexDDL
	}

	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Kind == ir.IndexUnique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX %s ON %s", identifier.Quote(d.IndexName(table, idx.Name)), identifier.Quote(table))
	switch idx.Kind {
	case ir.IndexBtree:
		b.WriteString(" USING btree")
	case ir.IndexHash:
		b.WriteString(" USING hash")
	}
	fmt.Fprintf(&b, " (%s)", indexColumns(idx.Columns))
	writeIndexOptions(&b, idx)
	return b.String()
}

// DropIndex returns the DROP INDEX statement for a physical index name.
func (d *Dialect) DropIndex(name string) string {
	return "DROP INDEX IF EXISTS " + identifier.Quote(name)
}

// PlanFulltext returns the statements of a fulltext unit.
func (d *Dialect) PlanFulltext(table string, idx ir.IndexSpec) dialect.FulltextUnit {
	u := dialect.FulltextUnit{
		ShadowColumn: d.names.ShadowColumn(idx.Name),
		TriggerName:  d.names.Trigger(table, idx.Name),
		IndexName:    d.names.Index(table, idx.Name),
		Columns:      append([]string(nil), idx.Columns...),
		Language:     "pg_catalog." + d.language,
	}
	qt := identifier.Quote(table)
	qcol := identifier.Quote(u.ShadowColumn)

	u.ShadowColumnDDL = qcol + " tsvector"
	u.AddColumnDDL = fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", qt, u.ShadowColumnDDL)
	u.DropColumnDDL = fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", qt, qcol)
	u.TriggerDDL = fmt.Sprintf(
		"CREATE TRIGGER %s BEFORE INSERT OR UPDATE ON %s FOR EACH ROW EXECUTE PROCEDURE tsvector_update_trigger(%s, %s, %s)",
		identifier.Quote(u.TriggerName), qt, qcol, identifier.Literal(u.Language), identifier.QuoteList(idx.Columns))
	u.DropTriggerDDL = fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", identifier.Quote(u.TriggerName), qt)

	method := "gin"
	if d.method == config.MethodGiST {
		method = "gist"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE INDEX %s ON %s USING %s (%s)", identifier.Quote(u.IndexName), qt, method, qcol)
	writeIndexOptions(&b, idx)
	u.IndexDDL = b.String()
	u.DropIndexDDL = d.DropIndex(u.IndexName)

	if len(idx.Columns) > 0 {
		first := identifier.Quote(idx.Columns[0])
		u.BackfillDDL = fmt.Sprintf("UPDATE %s SET %s = %s", qt, first, first)
	}
	return u
}

func writeIndexOptions(b *strings.Builder, idx ir.IndexSpec) {
	if idx.FillFactor > 0 {
		fmt.Fprintf(b, " WITH (fillfactor = %d)", idx.FillFactor)
	}
	if w := strings.TrimSpace(idx.Where); w != "" {
		b.WriteString(" WHERE " + w)
	}
}

// indexColumns quotes plain column names and keeps expressions verbatim.
func indexColumns(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		if isExpression(c) {
			parts[i] = c
		} else {
			parts[i] = identifier.Quote(c)
		}
	}
	return strings.Join(parts, ", ")
}

func isExpression(column string) bool {
	return strings.ContainsAny(column, `()" `)
}
