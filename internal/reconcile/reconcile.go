// Package reconcile compares declared tables with the live catalog and
// emits the statements that converge one onto the other without dropping
// data.
//
// Planning reads a snapshot of the table and orders every statement so that
// later ones only depend on the effects of earlier ones: column changes come
// before indexes, constraint drops before data repair, data repair before
// constraint re-creation, and table options last.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/logger"
	"github.com/pgschema/pgreconcile/internal/plan"
)

// Catalog is the read side of reconciliation.
type Catalog interface {
	Schema() string
	Table(ctx context.Context, table string) (*ir.LiveTable, error)
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]ir.LiveColumn, error)
	ConstraintDefinition(ctx context.Context, table, name string) (string, error)
	ConstraintExists(ctx context.Context, table, name string) (bool, error)
	CheckConstraints(ctx context.Context, table string) ([]string, error)
	TriggerExists(ctx context.Context, table, name string) (bool, error)
	TriggerArguments(ctx context.Context, table, name string) ([]string, bool, error)
	TriggerLanguage(ctx context.Context, table, name string) (string, error)
	Tablespace(ctx context.Context, name string) (string, bool, error)
	FunctionSource(ctx context.Context, name string) (string, bool, error)
	LanguageExists(ctx context.Context, name string) (bool, error)
	// Invalidate drops cached facts about table after it was changed.
	Invalidate(table string)
}

// Executor runs one mutating statement.
type Executor interface {
	Exec(ctx context.Context, sql string, params ...any) (int64, error)
}

// TableError reports the statement that failed while reconciling a table.
// It wraps the connector's StatementError.
type TableError struct {
	Table string
	Step  plan.Step
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("failed to reconcile table %s at %s: %v", e.Table, e.Step.Address(), e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// Reconciler plans and applies table changes. It is not safe for
// concurrent use; statements run strictly in order.
type Reconciler struct {
	cat   Catalog
	exec  Executor
	d     dialect.Dialect
	names identifier.Namer
	cfg   config.Config
}

// New returns a Reconciler. exec may be nil, in which case only planning
// is available.
func New(cat Catalog, exec Executor, d dialect.Dialect, cfg config.Config) *Reconciler {
	return &Reconciler{
		cat:   cat,
		exec:  exec,
		d:     d,
		names: cfg.Namer(),
		cfg:   cfg,
	}
}

// Plan computes the statements RequireTable would run for spec without
// executing anything.
func (r *Reconciler) Plan(ctx context.Context, spec ir.TableSpec) (*plan.Plan, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	p := plan.New(r.cat.Schema())
	b := &builder{r: r, p: p, spec: spec}

	live, err := r.cat.Table(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", spec.Name, err)
	}

	if err := b.tablespace(ctx); err != nil {
		return nil, err
	}
	if live == nil {
		b.createTable()
	} else {
		if err := b.columns(ctx, live); err != nil {
			return nil, err
		}
		if err := b.indexes(ctx, live); err != nil {
			return nil, err
		}
	}
	if err := b.partitions(ctx); err != nil {
		return nil, err
	}
	b.options(live)

	logger.Get().Debug("Planned table", "table", spec.Name, "steps", len(p.Steps), "warnings", len(p.Warnings))
	return p, nil
}

// RequireTable converges the live table onto spec and returns the plan it
// executed. A failing statement stops the table; the error is a
// *TableError wrapping the connector's error.
func (r *Reconciler) RequireTable(ctx context.Context, spec ir.TableSpec) (*plan.Plan, error) {
	p, err := r.Plan(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := r.Apply(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// Apply executes the steps of p in order, invalidating cached catalog
// facts for every table a step touches.
func (r *Reconciler) Apply(ctx context.Context, p *plan.Plan) error {
	if r.exec == nil {
		return errors.New("reconciler has no executor")
	}
	log := logger.Get()
	for _, w := range p.Warnings {
		log.Warn(w.Message, "table", w.Table)
	}
	for _, step := range p.Steps {
		_, err := r.exec.Exec(ctx, step.SQL)
		if step.Table != "" {
			r.cat.Invalidate(step.Table)
		}
		if err != nil {
			return &TableError{Table: step.Table, Step: step, Err: err}
		}
	}
	return nil
}

// builder accumulates the steps for one table.
type builder struct {
	r    *Reconciler
	p    *plan.Plan
	spec ir.TableSpec

	// rebuilt holds physical index names dropped and recreated by this
	// plan; they lose their clustered flag.
	rebuilt map[string]bool

	// shadowAdded holds fulltext shadow columns (re)added to the parent by
	// this plan. Children inherit the fresh column without their index.
	shadowAdded map[string]bool

	// adopted maps logical index names onto live indexes kept under the
	// physical name they were declared with.
	adopted map[string]string
}

func (b *builder) add(typ plan.ObjectType, op plan.Operation, table, name, sql string) {
	b.p.Add(plan.Step{SQL: sql, Type: typ, Operation: op, Table: table, Name: name})
}

func (b *builder) markRebuilt(name string) {
	if b.rebuilt == nil {
		b.rebuilt = map[string]bool{}
	}
	b.rebuilt[name] = true
}
