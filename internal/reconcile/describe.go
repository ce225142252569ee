package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/logger"
	"github.com/pgschema/pgreconcile/internal/plan"
)

const shadowColumnPrefix = "ts_"

// DescribeTable reads a live table back into declared form. Shadow columns
// fold back into fulltext indexes; other indexes keep their physical
// names. It returns nil when the table does not exist.
func (r *Reconciler) DescribeTable(ctx context.Context, table string) (*ir.TableSpec, []plan.Warning, error) {
	live, err := r.cat.Table(ctx, table)
	if err != nil || live == nil {
		return nil, nil, err
	}

	spec := &ir.TableSpec{Name: table}
	var warnings []plan.Warning

	shadow := map[string]bool{}
	consumed := map[string]string{}
	var fulltext []ir.IndexSpec
	for _, col := range live.Columns {
		if col.BaseType != "tsvector" || !strings.HasPrefix(col.Name, shadowColumnPrefix) {
			continue
		}
		shadow[col.Name] = true
		logical := strings.TrimPrefix(col.Name, shadowColumnPrefix)
		trigger := r.names.Trigger(table, logical)
		args, ok, err := r.cat.TriggerArguments(ctx, table, trigger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read trigger %s: %w", trigger, err)
		}
		if !ok {
			warnings = append(warnings, plan.Warning{Table: table,
				Message: fmt.Sprintf("shadow column %s has no trigger %s", col.Name, trigger)})
			continue
		}
		idx := ir.IndexSpec{Name: logical, Kind: ir.IndexFulltext, Columns: args}
		physical := r.d.IndexName(table, logical)
		if li, ok := live.Indexes[physical]; ok {
			idx.FillFactor = li.FillFactor
			idx.Where = li.Where
			consumed[physical] = logical
		}
		fulltext = append(fulltext, idx)
	}

	for _, li := range live.Indexes {
		if li.Primary && len(li.Columns) == 1 && li.Columns[0] != ir.DefaultPrimaryKey {
			spec.PrimaryKey = li.Columns[0]
		}
	}

	for _, col := range live.Columns {
		if shadow[col.Name] {
			continue
		}
		name := r.names.Constraint(table, col.Name)
		def, err := r.cat.ConstraintDefinition(ctx, table, name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read constraint %s: %w", name, err)
		}
		f, degraded := r.d.ToPortable(col, def)
		if degraded {
			warnings = append(warnings, plan.Warning{Table: table,
				Message: fmt.Sprintf("cannot decode constraint %s (%s); column %s described as varchar", name, def, col.Name)})
		}
		spec.Fields = append(spec.Fields, f)
	}

	names := make([]string, 0, len(live.Indexes))
	for name := range live.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		li := live.Indexes[name]
		if li.Primary || consumed[name] != "" {
			continue
		}
		kind := ir.IndexPlain
		switch {
		case li.Unique:
			kind = ir.IndexUnique
		case li.Method == "hash":
			kind = ir.IndexHash
		}
		spec.Indexes = append(spec.Indexes, ir.IndexSpec{
			Name:       name,
			Kind:       kind,
			Columns:    li.Columns,
			FillFactor: li.FillFactor,
			Where:      li.Where,
		})
	}
	spec.Indexes = append(spec.Indexes, fulltext...)

	if c := live.ClusteredIndex(); c != "" {
		if logical, ok := consumed[c]; ok {
			spec.Options.Cluster = logical
		} else if !live.Indexes[c].Primary {
			spec.Options.Cluster = c
		}
	}
	if live.Tablespace != "" {
		spec.Options.Tablespace = &ir.Tablespace{Name: live.Tablespace}
	}
	return spec, warnings, nil
}

func (r *Reconciler) warnDegraded(table, name, def string, err error) {
	logger.Get().Warn("Could not decode enum constraint",
		"table", table, "constraint", name, "definition", def, "error", err)
}
