package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/plan"
)

// RenameTable renames a table together with the column CHECK constraints
// bound to its name.
func (r *Reconciler) RenameTable(ctx context.Context, from, to string) (*plan.Plan, error) {
	p := plan.New(r.cat.Schema())
	exists, err := r.cat.TableExists(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to check table %s: %w", from, err)
	}
	if !exists {
		return nil, fmt.Errorf("table %s does not exist", from)
	}
	checks, err := r.cat.CheckConstraints(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to read constraints of %s: %w", from, err)
	}

	p.Add(plan.Step{
		SQL:       fmt.Sprintf("ALTER TABLE %s RENAME TO %s", identifier.Quote(from), identifier.Quote(to)),
		Type:      plan.ObjectTypeTable,
		Operation: plan.OperationAlter,
		Table:     from,
		Name:      to,
	})
	for _, name := range checks {
		if !strings.HasPrefix(name, from+"_") || !strings.HasSuffix(name, "_check") {
			continue
		}
		column := strings.TrimSuffix(strings.TrimPrefix(name, from+"_"), "_check")
		renamed := r.names.Constraint(to, column)
		p.Add(plan.Step{
			SQL: fmt.Sprintf("ALTER TABLE %s RENAME CONSTRAINT %s TO %s",
				identifier.Quote(to), identifier.Quote(name), identifier.Quote(renamed)),
			Type:      plan.ObjectTypeConstraint,
			Operation: plan.OperationAlter,
			Table:     to,
			Name:      renamed,
		})
	}
	return p, r.Apply(ctx, p)
}

// RenameColumn renames a column, and its bound CHECK constraint, when the
// column exists. A missing column yields an empty plan.
func (r *Reconciler) RenameColumn(ctx context.Context, table, from, to string) (*plan.Plan, error) {
	p := plan.New(r.cat.Schema())
	cols, err := r.cat.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	found := false
	for _, c := range cols {
		if c.Name == from {
			found = true
			break
		}
	}
	if !found {
		return p, nil
	}

	qt := identifier.Quote(table)
	p.Add(plan.Step{
		SQL:       fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", qt, identifier.Quote(from), identifier.Quote(to)),
		Type:      plan.ObjectTypeColumn,
		Operation: plan.OperationAlter,
		Table:     table,
		Name:      to,
	})
	oldCheck, newCheck := r.names.Constraint(table, from), r.names.Constraint(table, to)
	exists, err := r.cat.ConstraintExists(ctx, table, oldCheck)
	if err != nil {
		return nil, fmt.Errorf("failed to read constraint %s: %w", oldCheck, err)
	}
	if exists {
		p.Add(plan.Step{
			SQL:       fmt.Sprintf("ALTER TABLE %s RENAME CONSTRAINT %s TO %s", qt, identifier.Quote(oldCheck), identifier.Quote(newCheck)),
			Type:      plan.ObjectTypeConstraint,
			Operation: plan.OperationAlter,
			Table:     table,
			Name:      newCheck,
		})
	}
	return p, r.Apply(ctx, p)
}

// CheckAndRepairTable compacts, analyzes and reindexes a table. The plan
// cannot run inside a transaction.
func (r *Reconciler) CheckAndRepairTable(ctx context.Context, table string) (*plan.Plan, error) {
	p := plan.New(r.cat.Schema())
	qt := identifier.Quote(table)
	p.Add(plan.Step{SQL: "VACUUM FULL ANALYZE " + qt, Type: plan.ObjectTypeMaintain, Operation: plan.OperationUpdate, Table: table})
	p.Add(plan.Step{SQL: "REINDEX TABLE " + qt, Type: plan.ObjectTypeMaintain, Operation: plan.OperationUpdate, Table: table})
	return p, r.Apply(ctx, p)
}

// EnumValuesForField returns the allowed values of an emulated enum
// column, or nil when the column has no bound constraint. An undecodable
// constraint also yields nil: the column is usable as plain varchar.
func (r *Reconciler) EnumValuesForField(ctx context.Context, table, field string) ([]string, error) {
	name := r.names.Constraint(table, field)
	def, err := r.cat.ConstraintDefinition(ctx, table, name)
	if err != nil || def == "" {
		return nil, err
	}
	values, err := r.d.EnumValues(def)
	if err != nil {
		r.warnDegraded(table, name, def, err)
		return nil, nil
	}
	return values, nil
}
