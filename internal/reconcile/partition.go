package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/plan"
)

const routingLanguage = "plpgsql"

var newRowRef = regexp.MustCompile(`(?i)\bNEW\.`)

// partitions sets up inheritance partitioning: CHECK-constrained children,
// their keys and indexes, and the BEFORE INSERT trigger routing rows from
// the parent into the matching child.
func (b *builder) partitions(ctx context.Context) error {
	parts := b.spec.Options.Partitions
	if len(parts) == 0 {
		return nil
	}
	table := b.spec.Name

	ok, err := b.r.cat.LanguageExists(ctx, routingLanguage)
	if err != nil {
		return fmt.Errorf("failed to check language %s: %w", routingLanguage, err)
	}
	if !ok {
		b.add(plan.ObjectTypeLanguage, plan.OperationCreate, "", routingLanguage, "CREATE LANGUAGE "+routingLanguage)
	}

	for _, part := range parts {
		if err := b.partition(ctx, part); err != nil {
			return err
		}
	}

	fn := b.r.names.PartitionFunction(table)
	body := routingBody(table, parts)
	src, exists, err := b.r.cat.FunctionSource(ctx, fn)
	if err != nil {
		return fmt.Errorf("failed to read function %s: %w", fn, err)
	}
	if !exists || strings.TrimSpace(src) != strings.TrimSpace(body) {
		op := plan.OperationCreate
		if exists {
			op = plan.OperationAlter
		}
		b.add(plan.ObjectTypeFunction, op, table, fn,
			fmt.Sprintf("CREATE OR REPLACE FUNCTION %s() RETURNS TRIGGER AS $$%s$$ LANGUAGE %s",
				identifier.Quote(fn), body, routingLanguage))
	}

	trigger := b.r.names.PartitionTrigger(table)
	exists, err = b.r.cat.TriggerExists(ctx, table, trigger)
	if err != nil {
		return fmt.Errorf("failed to read trigger %s: %w", trigger, err)
	}
	if !exists {
		b.add(plan.ObjectTypeTrigger, plan.OperationCreate, table, trigger,
			fmt.Sprintf("CREATE TRIGGER %s BEFORE INSERT ON %s FOR EACH ROW EXECUTE PROCEDURE %s()",
				identifier.Quote(trigger), identifier.Quote(table), identifier.Quote(fn)))
	}
	return nil
}

// partition ensures one child table with its primary key and the parent's
// declared indexes.
func (b *builder) partition(ctx context.Context, part ir.Partition) error {
	parent := b.spec.Name
	child := part.Name
	d := b.r.d
	qc := identifier.Quote(child)

	live, err := b.r.cat.Table(ctx, child)
	if err != nil {
		return fmt.Errorf("failed to read partition %s: %w", child, err)
	}

	existed := live != nil
	if !existed {
		sql := fmt.Sprintf("CREATE TABLE %s (CHECK (%s)) INHERITS (%s)", qc, partitionCheck(part.Condition), identifier.Quote(parent))
		if ts := b.partitionTablespace(part); ts != "" {
			sql += " TABLESPACE " + identifier.Quote(ts)
		}
		b.add(plan.ObjectTypePartition, plan.OperationCreate, child, child, sql)
		live = &ir.LiveTable{Name: child}
	}

	pkey := b.r.names.PrimaryKey(child)
	hasKey := false
	if existed {
		if hasKey, err = b.r.cat.ConstraintExists(ctx, child, pkey); err != nil {
			return fmt.Errorf("failed to read constraint %s: %w", pkey, err)
		}
	}
	if !hasKey {
		b.add(plan.ObjectTypeConstraint, plan.OperationCreate, child, pkey,
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)", qc, identifier.Quote(pkey), identifier.Quote(b.spec.Key())))
	}

	var units []fulltextRebuild
	for _, idx := range b.spec.Indexes {
		if idx.Kind != ir.IndexFulltext {
			name := d.IndexName(child, idx.Name)
			if _, ok := live.Indexes[name]; !ok {
				b.add(plan.ObjectTypeIndex, plan.OperationCreate, child, name, d.PlanIndex(child, idx))
			}
			continue
		}
		u, err := b.partitionFulltext(ctx, live, existed, idx)
		if err != nil {
			return err
		}
		if u != nil {
			units = append(units, *u)
		}
	}
	b.finishFulltext(child, units)
	return nil
}

// partitionFulltext keeps a child's fulltext trigger and index in step with
// the parent's unit. The shadow column itself is inherited, so a column
// re-added on the parent leaves the child with an empty column and no
// index on it.
func (b *builder) partitionFulltext(ctx context.Context, live *ir.LiveTable, existed bool, idx ir.IndexSpec) (*fulltextRebuild, error) {
	child := live.Name
	u := b.r.d.PlanFulltext(child, idx)
	if !existed {
		b.add(plan.ObjectTypeTrigger, plan.OperationCreate, child, u.TriggerName, u.TriggerDDL)
		return &fulltextRebuild{unit: u}, nil
	}

	args, hasTrigger, err := b.r.cat.TriggerArguments(ctx, child, u.TriggerName)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger %s: %w", u.TriggerName, err)
	}
	language := ""
	if hasTrigger {
		if language, err = b.r.cat.TriggerLanguage(ctx, child, u.TriggerName); err != nil {
			return nil, fmt.Errorf("failed to read trigger %s: %w", u.TriggerName, err)
		}
	}
	_, hasIndex := live.Indexes[u.IndexName]
	cascaded := b.shadowAdded[u.ShadowColumn]

	if hasTrigger && slices.Equal(args, u.Columns) && language == u.Language {
		switch {
		case cascaded:
			return &fulltextRebuild{unit: u, backfill: true}, nil
		case hasIndex:
			return nil, nil
		default:
			return &fulltextRebuild{unit: u}, nil
		}
	}

	if hasTrigger {
		b.add(plan.ObjectTypeTrigger, plan.OperationDrop, child, u.TriggerName, u.DropTriggerDDL)
	}
	if hasIndex && !cascaded {
		b.add(plan.ObjectTypeIndex, plan.OperationDrop, child, u.IndexName, u.DropIndexDDL)
	}
	b.add(plan.ObjectTypeTrigger, plan.OperationCreate, child, u.TriggerName, u.TriggerDDL)
	return &fulltextRebuild{unit: u, backfill: true}, nil
}

func (b *builder) partitionTablespace(part ir.Partition) string {
	if part.Tablespace != "" {
		return part.Tablespace
	}
	if ts := b.spec.Options.Tablespace; ts != nil {
		return ts.Name
	}
	return ""
}

// partitionCheck turns a routing condition written against NEW into the
// child's CHECK expression.
func partitionCheck(condition string) string {
	return newRowRef.ReplaceAllString(strings.TrimSpace(condition), "")
}

// routingBody is the PL/pgSQL body of the insert-routing function.
func routingBody(table string, parts []ir.Partition) string {
	var b strings.Builder
	b.WriteString("\nBEGIN\n")
	for i, part := range parts {
		keyword := "ELSIF"
		if i == 0 {
			keyword = "IF"
		}
		fmt.Fprintf(&b, "    %s (%s) THEN\n        INSERT INTO %s VALUES (NEW.*);\n",
			keyword, strings.TrimSpace(part.Condition), identifier.Quote(part.Name))
	}
	fmt.Fprintf(&b, "    ELSE\n        RAISE EXCEPTION %s;\n    END IF;\n    RETURN NULL;\nEND;\n",
		identifier.Literal("No partition of "+table+" accepts this row"))
	return b.String()
}
