package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgschema/pgreconcile/internal/fingerprint"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/logger"
	"github.com/pgschema/pgreconcile/internal/plan"
)

// Result is the outcome for one table of a batch.
type Result struct {
	Table string
	Plan  *plan.Plan
	Err   error
}

// Report collects the per-table outcomes of Migrate in declaration order.
type Report struct {
	Results []Result
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err joins the errors of every failed table.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}

// Steps counts the statements executed for tables that succeeded.
func (r *Report) Steps() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && res.Plan != nil {
			n += len(res.Plan.Steps)
		}
	}
	return n
}

// PlanAll plans every table against the current catalog and merges the
// steps into one plan stamped with the fingerprint of the tables it read.
// Nothing is executed.
func (db *Database) PlanAll(ctx context.Context, specs []ir.TableSpec) (*plan.Plan, error) {
	all := plan.New(db.cat.Schema())
	for _, spec := range specs {
		p, err := db.rec.Plan(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("failed to plan table %s: %w", spec.Name, err)
		}
		all.Merge(p)
	}
	fp, err := db.Fingerprint(ctx, specs)
	if err != nil {
		return nil, err
	}
	all.SourceFingerprint = fp
	return all, nil
}

// Fingerprint hashes the live state of the declared tables and their
// partitions. Cached catalog reads are dropped first.
func (db *Database) Fingerprint(ctx context.Context, specs []ir.TableSpec) (*fingerprint.SchemaFingerprint, error) {
	db.cat.Reset()
	var states []fingerprint.TableState
	for _, spec := range specs {
		names := []string{spec.Name}
		for _, part := range spec.Options.Partitions {
			names = append(names, part.Name)
		}
		for _, name := range names {
			state, err := db.tableState(ctx, name)
			if err != nil {
				return nil, err
			}
			states = append(states, state)
		}
	}
	return fingerprint.ComputeFingerprint(states)
}

func (db *Database) tableState(ctx context.Context, table string) (fingerprint.TableState, error) {
	state := fingerprint.TableState{Name: table}
	live, err := db.cat.Table(ctx, table)
	if err != nil || live == nil {
		return state, err
	}
	state.Live = live
	checks, err := db.cat.CheckConstraints(ctx, table)
	if err != nil {
		return state, err
	}
	for _, name := range checks {
		def, err := db.cat.ConstraintDefinition(ctx, table, name)
		if err != nil {
			return state, err
		}
		if state.Checks == nil {
			state.Checks = map[string]string{}
		}
		state.Checks[name] = def
	}
	return state, nil
}

// CheckFingerprint fails when the declared tables changed since p was
// planned.
func (db *Database) CheckFingerprint(ctx context.Context, p *plan.Plan, specs []ir.TableSpec) error {
	if p.SourceFingerprint == nil {
		return nil
	}
	current, err := db.Fingerprint(ctx, specs)
	if err != nil {
		return err
	}
	return fingerprint.Compare(p.SourceFingerprint, current)
}

// Migrate reconciles each table in order. With cfg.Transaction the batch
// runs in one transaction and a failing table is rolled back to its own
// savepoint. With cfg.KeepGoing the remaining tables are still attempted
// after a failure; otherwise the batch stops (and, in a transaction, is
// rolled back entirely).
func (db *Database) Migrate(ctx context.Context, specs []ir.TableSpec) (*Report, error) {
	if db.cfg.Transaction {
		return db.migrateInTransaction(ctx, specs)
	}

	report := &Report{}
	for _, spec := range specs {
		p, err := db.rec.RequireTable(ctx, spec)
		report.Results = append(report.Results, Result{Table: spec.Name, Plan: p, Err: err})
		if err != nil {
			logger.Get().Error("Table migration failed", "table", spec.Name, "error", err)
			if !db.cfg.KeepGoing {
				return report, err
			}
		}
	}
	return report, report.Err()
}

func (db *Database) migrateInTransaction(ctx context.Context, specs []ir.TableSpec) (*Report, error) {
	log := logger.Get()
	if err := db.conn.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	report := &Report{}
	for i, spec := range specs {
		savepoint := fmt.Sprintf("pgreconcile_%d", i)
		p, err := db.migrateTable(ctx, spec, savepoint)
		report.Results = append(report.Results, Result{Table: spec.Name, Plan: p, Err: err})
		if err == nil {
			continue
		}
		log.Error("Table migration failed", "table", spec.Name, "error", err)
		if !db.cfg.KeepGoing {
			if rbErr := db.conn.Rollback(ctx); rbErr != nil {
				log.Error("Rollback failed", "error", rbErr)
			}
			db.cat.Reset()
			return report, err
		}
	}

	if err := db.conn.Commit(ctx); err != nil {
		db.cat.Reset()
		return report, fmt.Errorf("failed to commit: %w", err)
	}
	return report, report.Err()
}

// migrateTable plans and applies one table inside a savepoint, rolling
// back to it on failure.
func (db *Database) migrateTable(ctx context.Context, spec ir.TableSpec, savepoint string) (*plan.Plan, error) {
	p, err := db.rec.Plan(ctx, spec)
	if err != nil {
		return nil, err
	}
	if !p.Transaction {
		return p, fmt.Errorf("table %s: plan contains statements that cannot run inside a transaction", spec.Name)
	}
	if !p.HasChanges() {
		return p, nil
	}

	if err := db.conn.Savepoint(ctx, savepoint); err != nil {
		return p, fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := db.rec.Apply(ctx, p); err != nil {
		if rbErr := db.conn.RollbackTo(ctx, savepoint); rbErr != nil {
			return p, errors.Join(err, fmt.Errorf("failed to roll back to savepoint: %w", rbErr))
		}
		db.cat.Reset()
		return p, err
	}
	if err := db.conn.Release(ctx, savepoint); err != nil {
		return p, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return p, nil
}
