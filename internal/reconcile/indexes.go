package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/plan"
)

// indexes reconciles declared indexes. Undeclared indexes are never
// dropped unless they carry a legacy name of a declared one.
func (b *builder) indexes(ctx context.Context, live *ir.LiveTable) error {
	var units []fulltextRebuild
	for _, idx := range b.spec.Indexes {
		if idx.Kind == ir.IndexFulltext {
			u, err := b.fulltext(ctx, live, idx)
			if err != nil {
				return err
			}
			if u != nil {
				units = append(units, *u)
			}
			continue
		}
		b.index(live, idx)
	}
	b.finishFulltext(b.spec.Name, units)
	return nil
}

func (b *builder) index(live *ir.LiveTable, idx ir.IndexSpec) {
	table := b.spec.Name
	d := b.r.d
	name := d.IndexName(table, idx.Name)

	current, exists := live.Indexes[name]
	if exists && indexMatches(current, idx, d.IndexMethod(idx)) {
		return
	}
	// A declaration naming a live index by its physical name, as described
	// tables do, keeps that index while it still matches.
	if direct, ok := live.Indexes[idx.Name]; !exists && ok && !direct.Primary && indexMatches(direct, idx, d.IndexMethod(idx)) {
		if b.adopted == nil {
			b.adopted = map[string]string{}
		}
		b.adopted[idx.Name] = direct.Name
		return
	}
	if exists {
		b.add(plan.ObjectTypeIndex, plan.OperationDrop, table, name, d.DropIndex(name))
	}
	b.dropLegacyIndexes(live, idx.Name, name)
	b.add(plan.ObjectTypeIndex, plan.OperationCreate, table, name, d.PlanIndex(table, idx))
	b.markRebuilt(name)
}

// dropLegacyIndexes drops indexes created under an older naming scheme for
// the same logical index.
func (b *builder) dropLegacyIndexes(live *ir.LiveTable, logical, current string) {
	table := b.spec.Name
	for _, legacy := range b.r.names.LegacyIndexNames(table, logical) {
		idx, ok := live.Indexes[legacy]
		if !ok || legacy == current || idx.Primary {
			continue
		}
		b.add(plan.ObjectTypeIndex, plan.OperationDrop, table, legacy, b.r.d.DropIndex(legacy))
	}
}

// indexMatches compares uniqueness, method, key columns, fill factor and
// whether a predicate is present. Predicate text is not compared: the
// catalog reformats it.
func indexMatches(live ir.LiveIndex, idx ir.IndexSpec, method string) bool {
	if live.Unique != (idx.Kind == ir.IndexUnique) {
		return false
	}
	if live.Method != method {
		return false
	}
	if live.FillFactor != idx.FillFactor {
		return false
	}
	if (live.Where == "") != (strings.TrimSpace(idx.Where) == "") {
		return false
	}
	return slices.EqualFunc(live.Columns, idx.Columns, func(a, b string) bool {
		return normalizeKey(a) == normalizeKey(b)
	})
}

func normalizeKey(key string) string {
	return strings.NewReplacer(`"`, "", " ", "").Replace(key)
}

// fulltextRebuild is a fulltext unit whose index must be (re)created
// after the backfill.
type fulltextRebuild struct {
	unit     dialect.FulltextUnit
	backfill bool
}

// fulltext diffs the shadow column, trigger and index of idx as one unit.
// A missing column or trigger, or a trigger fed by other columns or
// another search configuration, rebuilds the whole unit. Only the index
// is rebuilt when it alone drifted.
func (b *builder) fulltext(ctx context.Context, live *ir.LiveTable, idx ir.IndexSpec) (*fulltextRebuild, error) {
	table := b.spec.Name
	d := b.r.d
	u := d.PlanFulltext(table, idx)

	_, hasColumn := live.Column(u.ShadowColumn)
	args, hasTrigger, err := b.r.cat.TriggerArguments(ctx, table, u.TriggerName)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger %s: %w", u.TriggerName, err)
	}
	language := ""
	if hasTrigger {
		if language, err = b.r.cat.TriggerLanguage(ctx, table, u.TriggerName); err != nil {
			return nil, fmt.Errorf("failed to read trigger %s: %w", u.TriggerName, err)
		}
	}
	current, hasIndex := live.Indexes[u.IndexName]

	if hasColumn && hasTrigger && slices.Equal(args, u.Columns) && language == u.Language {
		if hasIndex && indexMatches(current, ir.IndexSpec{Columns: []string{u.ShadowColumn}, FillFactor: idx.FillFactor, Where: idx.Where}, d.IndexMethod(idx)) {
			return nil, nil
		}
		if hasIndex {
			b.add(plan.ObjectTypeIndex, plan.OperationDrop, table, u.IndexName, u.DropIndexDDL)
		}
		b.dropLegacyIndexes(live, idx.Name, u.IndexName)
		return &fulltextRebuild{unit: u}, nil
	}

	if hasTrigger {
		b.add(plan.ObjectTypeTrigger, plan.OperationDrop, table, u.TriggerName, u.DropTriggerDDL)
	}
	if hasIndex {
		b.add(plan.ObjectTypeIndex, plan.OperationDrop, table, u.IndexName, u.DropIndexDDL)
	}
	b.dropLegacyIndexes(live, idx.Name, u.IndexName)
	if hasColumn {
		b.add(plan.ObjectTypeColumn, plan.OperationDrop, table, u.ShadowColumn, u.DropColumnDDL)
	}
	b.add(plan.ObjectTypeColumn, plan.OperationCreate, table, u.ShadowColumn, u.AddColumnDDL)
	b.add(plan.ObjectTypeTrigger, plan.OperationCreate, table, u.TriggerName, u.TriggerDDL)
	if b.shadowAdded == nil {
		b.shadowAdded = map[string]bool{}
	}
	b.shadowAdded[u.ShadowColumn] = true
	return &fulltextRebuild{unit: u, backfill: true}, nil
}

// finishFulltext issues one no-op UPDATE on table so the new triggers fill
// their shadow columns for existing rows, then creates the pending indexes.
func (b *builder) finishFulltext(table string, units []fulltextRebuild) {
	for _, r := range units {
		if r.backfill && r.unit.BackfillDDL != "" {
			b.add(plan.ObjectTypeData, plan.OperationUpdate, table, r.unit.ShadowColumn, r.unit.BackfillDDL)
			break
		}
	}
	for _, r := range units {
		b.add(plan.ObjectTypeIndex, plan.OperationCreate, table, r.unit.IndexName, r.unit.IndexDDL)
		b.markRebuilt(r.unit.IndexName)
	}
}
