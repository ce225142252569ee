package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/plan"
)

// columns adds missing columns and alters the ones whose type,
// nullability, default or enum constraint drifted. Undeclared live columns
// are left alone.
func (b *builder) columns(ctx context.Context, live *ir.LiveTable) error {
	for _, f := range b.spec.EffectiveFields() {
		col, ok := live.Column(f.Name)
		if !ok {
			b.addColumn(f)
			continue
		}
		// Sequence-backed keys are never altered.
		if f.AutoIncrement {
			continue
		}
		if err := b.alterColumn(ctx, f, col); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addColumn(f ir.FieldSpec) {
	table := b.spec.Name
	phys := b.r.d.ToPhysical(f)
	b.add(plan.ObjectTypeColumn, plan.OperationCreate, table, f.Name,
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", identifier.Quote(table), columnDefinition(f.Name, phys)))
	if len(phys.Check) > 0 {
		b.addCheck(table, f.Name, phys.Check)
	}
}

// columnDrift is what differs between a declared and a live column.
type columnDrift struct {
	typ, null, def, check bool
	// liveCheck is the definition of the live bound constraint, if any.
	liveCheck string
}

func (c columnDrift) any() bool {
	return c.typ || c.null || c.def || c.check
}

func (b *builder) drift(ctx context.Context, f ir.FieldSpec, phys dialect.Physical, col ir.LiveColumn) (columnDrift, error) {
	d := b.r.d
	table := b.spec.Name
	name := b.r.names.Constraint(table, f.Name)

	liveCheck, err := b.r.cat.ConstraintDefinition(ctx, table, name)
	if err != nil {
		return columnDrift{}, fmt.Errorf("failed to read constraint %s: %w", name, err)
	}
	c := columnDrift{
		typ:       d.NormalizeType(col.Type) != d.NormalizeType(phys.Type),
		null:      col.NotNull != phys.NotNull,
		def:       d.NormalizeDefault(col.Default) != d.NormalizeDefault(phys.Default),
		liveCheck: liveCheck,
	}
	switch {
	case len(phys.Check) == 0:
		c.check = liveCheck != ""
	case liveCheck == "":
		c.check = true
	default:
		values, err := d.EnumValues(liveCheck)
		if err != nil || len(values) == 0 {
			b.p.Warn(table, "cannot decode constraint %s (%s); recreating it", name, liveCheck)
			c.check = true
		} else {
			c.check = !slices.Equal(values, phys.Check)
		}
	}
	return c, nil
}

// alterColumn emits, in order: drop the stale constraint, change the type,
// fill NULLs, change nullability, change the default, repair rows outside
// the new value set, and re-add the constraint.
func (b *builder) alterColumn(ctx context.Context, f ir.FieldSpec, col ir.LiveColumn) error {
	phys := b.r.d.ToPhysical(f)
	c, err := b.drift(ctx, f, phys, col)
	if err != nil || !c.any() {
		return err
	}

	table := b.spec.Name
	qt, qc := identifier.Quote(table), identifier.Quote(f.Name)
	alter := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s ", qt, qc)
	checkName := b.r.names.Constraint(table, f.Name)

	if c.liveCheck != "" && (c.check || c.typ) {
		b.add(plan.ObjectTypeConstraint, plan.OperationDrop, table, checkName,
			fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", qt, identifier.Quote(checkName)))
	}

	defaultDropped := false
	if c.typ {
		// The old default may not cast to the new type.
		if col.Default != "" {
			b.add(plan.ObjectTypeColumn, plan.OperationAlter, table, f.Name, alter+"DROP DEFAULT")
			defaultDropped = true
		}
		b.add(plan.ObjectTypeColumn, plan.OperationAlter, table, f.Name,
			fmt.Sprintf("%sTYPE %s USING %s::%s", alter, phys.Type, qc, phys.Type))
	}

	if c.null {
		if phys.NotNull {
			if phys.Default != "" {
				b.add(plan.ObjectTypeData, plan.OperationUpdate, table, f.Name,
					fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL", qt, qc, phys.Default, qc))
			}
			b.add(plan.ObjectTypeColumn, plan.OperationAlter, table, f.Name, alter+"SET NOT NULL")
		} else {
			b.add(plan.ObjectTypeColumn, plan.OperationAlter, table, f.Name, alter+"DROP NOT NULL")
		}
	}

	switch {
	case phys.Default == "":
		if col.Default != "" && !defaultDropped {
			b.add(plan.ObjectTypeColumn, plan.OperationAlter, table, f.Name, alter+"DROP DEFAULT")
		}
	case c.def || defaultDropped:
		b.add(plan.ObjectTypeColumn, plan.OperationAlter, table, f.Name, alter+"SET DEFAULT "+phys.Default)
	}

	if len(phys.Check) > 0 && (c.check || (c.typ && c.liveCheck != "")) {
		if err := b.repairEnum(ctx, f); err != nil {
			return err
		}
		b.addCheck(b.spec.Name, f.Name, phys.Check)
	}
	return nil
}

func (b *builder) addCheck(table, column string, values []string) {
	name := b.r.names.Constraint(table, column)
	b.add(plan.ObjectTypeConstraint, plan.OperationCreate, table, name,
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s",
			identifier.Quote(table), identifier.Quote(name), b.r.d.CheckClause(column, values)))
}

// repairEnum coerces values outside the declared set to the repair value
// in the base table and in every existing shadow table that has the
// column. Shadow tables get their own constraint rebuilt around the repair.
func (b *builder) repairEnum(ctx context.Context, f ir.FieldSpec) error {
	table := b.spec.Name
	shadows, err := b.shadowTables(ctx, f.Name)
	if err != nil {
		return err
	}

	for _, shadow := range shadows {
		name := b.r.names.Constraint(shadow, f.Name)
		exists, err := b.r.cat.ConstraintExists(ctx, shadow, name)
		if err != nil {
			return fmt.Errorf("failed to read constraint %s: %w", name, err)
		}
		if exists {
			b.add(plan.ObjectTypeConstraint, plan.OperationDrop, shadow, name,
				fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", identifier.Quote(shadow), identifier.Quote(name)))
		}
	}

	allowed := make([]string, len(f.Values))
	for i, v := range f.Values {
		allowed[i] = identifier.Literal(v)
	}
	value := identifier.Literal(f.RepairValue())
	qc := identifier.Quote(f.Name)
	for _, t := range append([]string{table}, shadows...) {
		b.add(plan.ObjectTypeData, plan.OperationUpdate, t, f.Name,
			fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s NOT IN (%s)",
				identifier.Quote(t), qc, value, qc, strings.Join(allowed, ", ")))
	}
	for _, shadow := range shadows {
		b.addCheck(shadow, f.Name, f.Values)
	}
	return nil
}

// shadowTables returns the versioned and live copies of the table that
// exist and carry column.
func (b *builder) shadowTables(ctx context.Context, column string) ([]string, error) {
	var out []string
	for _, suffix := range b.r.cfg.ShadowTableSuffixes {
		name := b.spec.Name + suffix
		exists, err := b.r.cat.TableExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", name, err)
		}
		if !exists || slices.Contains(out, name) {
			continue
		}
		cols, err := b.r.cat.Columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read columns of %s: %w", name, err)
		}
		for _, c := range cols {
			if c.Name == column {
				out = append(out, name)
				break
			}
		}
	}
	return out, nil
}
