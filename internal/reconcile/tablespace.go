package reconcile

import (
	"context"
	"fmt"

	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/plan"
)

// tablespace creates the declared tablespace when it does not exist. An
// existing tablespace at another location is reported, not moved.
func (b *builder) tablespace(ctx context.Context) error {
	ts := b.spec.Options.Tablespace
	if ts == nil || ts.Name == "" {
		return nil
	}
	return b.ensureTablespace(ctx, *ts)
}

func (b *builder) ensureTablespace(ctx context.Context, ts ir.Tablespace) error {
	location, exists, err := b.r.cat.Tablespace(ctx, ts.Name)
	if err != nil {
		return fmt.Errorf("failed to read tablespace %s: %w", ts.Name, err)
	}
	if exists {
		if ts.Location != "" && location != "" && location != ts.Location {
			b.p.Warn(b.spec.Name, "tablespace %s is located at %s, declared at %s", ts.Name, location, ts.Location)
		}
		return nil
	}
	if ts.Location == "" {
		return fmt.Errorf("tablespace %s does not exist and declares no location", ts.Name)
	}
	b.add(plan.ObjectTypeTablespace, plan.OperationCreate, "", ts.Name,
		fmt.Sprintf("CREATE TABLESPACE %s LOCATION %s", identifier.Quote(ts.Name), identifier.Literal(ts.Location)))
	return nil
}

// options reconciles the table-level layout last: tablespace moves and
// clustering. live is nil for a table created by this plan.
func (b *builder) options(live *ir.LiveTable) {
	table := b.spec.Name
	qt := identifier.Quote(table)

	if ts := b.spec.Options.Tablespace; live != nil && ts != nil && ts.Name != "" && !sameTablespace(live.Tablespace, ts.Name) {
		b.add(plan.ObjectTypeTablespace, plan.OperationAlter, table, ts.Name,
			fmt.Sprintf("ALTER TABLE %s SET TABLESPACE %s", qt, identifier.Quote(ts.Name)))
	}

	current := ""
	if live != nil {
		current = live.ClusteredIndex()
	}
	if b.spec.Options.Cluster == "" {
		if current != "" {
			b.add(plan.ObjectTypeIndex, plan.OperationAlter, table, current,
				fmt.Sprintf("ALTER TABLE %s SET WITHOUT CLUSTER", qt))
		}
		return
	}
	name := b.clusterIndexName()
	if name == current && !b.rebuilt[name] {
		return
	}
	b.add(plan.ObjectTypeIndex, plan.OperationAlter, table, name,
		fmt.Sprintf("CLUSTER %s USING %s", qt, identifier.Quote(name)))
}

// clusterIndexName maps the declared cluster index onto its physical name.
func (b *builder) clusterIndexName() string {
	table := b.spec.Name
	logical := b.spec.Options.Cluster
	if physical, ok := b.adopted[logical]; ok {
		return physical
	}
	if _, ok := b.spec.Index(logical); ok {
		return b.r.d.IndexName(table, logical)
	}
	return logical
}

func sameTablespace(live, declared string) bool {
	if live == "" {
		return declared == "pg_default"
	}
	return live == declared
}
