package reconcile

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/connector"
	"github.com/pgschema/pgreconcile/internal/dialect/postgres"
	"github.com/pgschema/pgreconcile/internal/ir"
)

// fakeCatalog is an in-memory catalog. Triggers keep their full argument
// list, including the shadow column and search configuration.
type fakeCatalog struct {
	tables      map[string]*ir.LiveTable
	constraints map[string]map[string]string
	triggers    map[string]map[string][]string
	tablespaces map[string]string
	functions   map[string]string
	languages   map[string]bool

	invalidated []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tables:      map[string]*ir.LiveTable{},
		constraints: map[string]map[string]string{},
		triggers:    map[string]map[string][]string{},
		tablespaces: map[string]string{"pg_default": ""},
		functions:   map[string]string{},
		languages:   map[string]bool{"plpgsql": true},
	}
}

func (f *fakeCatalog) addConstraint(table, name, def string) {
	if f.constraints[table] == nil {
		f.constraints[table] = map[string]string{}
	}
	f.constraints[table][name] = def
}

func (f *fakeCatalog) addTrigger(table, name string, args ...string) {
	if f.triggers[table] == nil {
		f.triggers[table] = map[string][]string{}
	}
	f.triggers[table][name] = args
}

func (f *fakeCatalog) Schema() string { return "public" }

func (f *fakeCatalog) Table(_ context.Context, table string) (*ir.LiveTable, error) {
	t, ok := f.tables[table]
	if !ok {
		return nil, nil
	}
	cp := *t
	if cp.Indexes == nil {
		cp.Indexes = map[string]ir.LiveIndex{}
	}
	if cp.Columns == nil {
		cp.Columns = []ir.LiveColumn{}
	}
	return &cp, nil
}

func (f *fakeCatalog) TableExists(_ context.Context, table string) (bool, error) {
	_, ok := f.tables[table]
	return ok, nil
}

func (f *fakeCatalog) Columns(_ context.Context, table string) ([]ir.LiveColumn, error) {
	if t, ok := f.tables[table]; ok {
		return t.Columns, nil
	}
	return []ir.LiveColumn{}, nil
}

func (f *fakeCatalog) ConstraintDefinition(_ context.Context, table, name string) (string, error) {
	def := f.constraints[table][name]
	if !strings.HasPrefix(def, "CHECK") {
		return "", nil
	}
	return def, nil
}

func (f *fakeCatalog) ConstraintExists(_ context.Context, table, name string) (bool, error) {
	_, ok := f.constraints[table][name]
	return ok, nil
}

func (f *fakeCatalog) CheckConstraints(_ context.Context, table string) ([]string, error) {
	var names []string
	for name, def := range f.constraints[table] {
		if strings.HasPrefix(def, "CHECK") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeCatalog) TriggerExists(_ context.Context, table, name string) (bool, error) {
	_, ok := f.triggers[table][name]
	return ok, nil
}

func (f *fakeCatalog) TriggerArguments(_ context.Context, table, name string) ([]string, bool, error) {
	args, ok := f.triggers[table][name]
	if !ok {
		return nil, false, nil
	}
	if len(args) <= 2 {
		return []string{}, true, nil
	}
	return args[2:], true, nil
}

func (f *fakeCatalog) TriggerLanguage(_ context.Context, table, name string) (string, error) {
	args := f.triggers[table][name]
	if len(args) < 2 {
		return "", nil
	}
	return args[1], nil
}

func (f *fakeCatalog) Tablespace(_ context.Context, name string) (string, bool, error) {
	loc, ok := f.tablespaces[name]
	return loc, ok, nil
}

func (f *fakeCatalog) FunctionSource(_ context.Context, name string) (string, bool, error) {
	src, ok := f.functions[name]
	return src, ok, nil
}

func (f *fakeCatalog) LanguageExists(_ context.Context, name string) (bool, error) {
	return f.languages[name], nil
}

func (f *fakeCatalog) Invalidate(table string) {
	f.invalidated = append(f.invalidated, table)
}

// recorder is an Executor that records statements and fails on demand.
type recorder struct {
	statements []string
	failOn     string
}

func (r *recorder) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	if r.failOn != "" && strings.Contains(sql, r.failOn) {
		return 0, &connector.StatementError{SQL: sql, Message: "check constraint violated", Code: "23514", Err: errors.New("check constraint violated")}
	}
	r.statements = append(r.statements, sql)
	return 0, nil
}

func testConfig() config.Config {
	return config.Default()
}

func newTestReconciler(cat *fakeCatalog, exec Executor) *Reconciler {
	cfg := testConfig()
	return New(cat, exec, postgres.New(cfg), cfg)
}
