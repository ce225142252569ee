package reconcile

import (
	"fmt"
	"strings"

	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/plan"
)

// createTable emits one CREATE TABLE carrying columns, shadow columns,
// enum constraints and the primary key, followed by index and trigger DDL.
func (b *builder) createTable() {
	table := b.spec.Name
	d := b.r.d

	var defs []string
	var checks []string
	for _, f := range b.spec.EffectiveFields() {
		phys := d.ToPhysical(f)
		defs = append(defs, columnDefinition(f.Name, phys))
		if len(phys.Check) > 0 {
			checks = append(checks, fmt.Sprintf("CONSTRAINT %s %s",
				identifier.Quote(b.r.names.Constraint(table, f.Name)), d.CheckClause(f.Name, phys.Check)))
		}
	}
	for _, idx := range b.spec.FulltextIndexes() {
		defs = append(defs, d.PlanFulltext(table, idx).ShadowColumnDDL)
	}
	defs = append(defs, checks...)
	defs = append(defs, fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)",
		identifier.Quote(b.r.names.PrimaryKey(table)), identifier.Quote(b.spec.Key())))

	var sql strings.Builder
	fmt.Fprintf(&sql, "CREATE TABLE %s (\n    %s\n)", identifier.Quote(table), strings.Join(defs, ",\n    "))
	if ts := b.spec.Options.Tablespace; ts != nil && ts.Name != "" {
		sql.WriteString(" TABLESPACE " + identifier.Quote(ts.Name))
	}
	if extra := strings.TrimSpace(b.spec.Options.Extra); extra != "" {
		sql.WriteString(" " + extra)
	}
	b.add(plan.ObjectTypeTable, plan.OperationCreate, table, table, sql.String())

	for _, idx := range b.spec.Indexes {
		if idx.Kind == ir.IndexFulltext {
			u := d.PlanFulltext(table, idx)
			b.add(plan.ObjectTypeTrigger, plan.OperationCreate, table, u.TriggerName, u.TriggerDDL)
			b.add(plan.ObjectTypeIndex, plan.OperationCreate, table, u.IndexName, u.IndexDDL)
			continue
		}
		b.add(plan.ObjectTypeIndex, plan.OperationCreate, table, d.IndexName(table, idx.Name), d.PlanIndex(table, idx))
	}
}

// columnDefinition renders a column for CREATE TABLE and ADD COLUMN.
func columnDefinition(name string, phys dialect.Physical) string {
	typ := phys.Type
	if phys.CreateType != "" {
		typ = phys.CreateType
	}
	def := identifier.Quote(name) + " " + typ
	if phys.Default != "" {
		def += " DEFAULT " + phys.Default
	}
	if phys.NotNull {
		def += " NOT NULL"
	}
	return def
}
