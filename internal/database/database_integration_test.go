package database_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/database"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/reconcile"
	"github.com/pgschema/pgreconcile/testutil"
)

func simpleTable(name string) ir.TableSpec {
	return ir.TableSpec{Name: name, Fields: []ir.FieldSpec{
		{Name: "Title", Kind: ir.KindVarchar},
		{Name: "Status", Kind: ir.KindEnum, Values: []string{"Draft", "Published"}, Default: "Draft"},
	}}
}

// dupTable declares a unique index that cannot be built over the rows
// seeded by seedDuplicates.
func dupTable() ir.TableSpec {
	return ir.TableSpec{
		Name:    "Dup",
		Fields:  []ir.FieldSpec{{Name: "Code", Kind: ir.KindVarchar}},
		Indexes: []ir.IndexSpec{{Name: "Code", Kind: ir.IndexUnique, Columns: []string{"Code"}}},
	}
}

func seedDuplicates(ctx context.Context, t *testing.T, ci *testutil.ContainerInfo) {
	ci.MustExec(ctx, t,
		`CREATE TABLE "Dup" ("ID" bigserial NOT NULL, "Code" character varying(255), CONSTRAINT "Dup_pkey" PRIMARY KEY ("ID"))`,
		`INSERT INTO "Dup" ("Code") VALUES ('a'), ('a')`,
	)
}

func TestSchemaAsDatabaseIntegration(t *testing.T) {
	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	cfg := config.Default()
	cfg.SchemaAsDatabase = true
	cfg.SchemaPrefix = "app_"
	db, err := database.New(ctx, container.Connect(ctx, t), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := db.CreateDatabase(ctx, "one"); err != nil {
		t.Fatalf("CreateDatabase() error = %v", err)
	}
	exists, err := db.DatabaseExists(ctx, "one")
	if err != nil || !exists {
		t.Fatalf("DatabaseExists(one) = %v, %v; want true", exists, err)
	}

	if err := db.SelectDatabase(ctx, "two", false); err == nil {
		t.Error("SelectDatabase(two, create=false) expected error for missing schema")
	}
	if err := db.SelectDatabase(ctx, "two", true); err != nil {
		t.Fatalf("SelectDatabase(two) error = %v", err)
	}
	if db.Schema() != "app_two" {
		t.Errorf("Schema() = %q; want app_two", db.Schema())
	}

	list, err := db.DatabaseList(ctx)
	if err != nil {
		t.Fatalf("DatabaseList() error = %v", err)
	}
	if !slices.Equal(list, []string{"one", "two"}) {
		t.Errorf("DatabaseList() = %v; want [one two]", list)
	}

	if _, err := db.Migrate(ctx, []ir.TableSpec{simpleTable("Page")}); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	inTwo, err := db.Catalog().TableExists(ctx, "Page")
	if err != nil || !inTwo {
		t.Errorf("TableExists(Page) in app_two = %v, %v; want true", inTwo, err)
	}
	if err := db.SelectDatabase(ctx, "one", false); err != nil {
		t.Fatalf("SelectDatabase(one) error = %v", err)
	}
	inOne, err := db.Catalog().TableExists(ctx, "Page")
	if err != nil || inOne {
		t.Errorf("TableExists(Page) in app_one = %v, %v; want false", inOne, err)
	}

	if err := db.DropDatabase(ctx, "two"); err != nil {
		t.Fatalf("DropDatabase() error = %v", err)
	}
	if exists, _ := db.DatabaseExists(ctx, "two"); exists {
		t.Error("DatabaseExists(two) = true after drop")
	}
}

func TestMigrateIntegration(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		transaction bool
		keepGoing   bool
		wantErr     bool
		wantTables  map[string]bool
	}{
		{
			name:       "stops at first failure",
			wantErr:    true,
			wantTables: map[string]bool{"First": true, "Last": false},
		},
		{
			name:       "keeps going",
			keepGoing:  true,
			wantErr:    true,
			wantTables: map[string]bool{"First": true, "Last": true},
		},
		{
			name:        "transaction rolls back the batch",
			transaction: true,
			wantErr:     true,
			wantTables:  map[string]bool{"First": false, "Last": false},
		},
		{
			name:        "transaction keeps going past a savepoint",
			transaction: true,
			keepGoing:   true,
			wantErr:     true,
			wantTables:  map[string]bool{"First": true, "Last": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container := testutil.SetupPostgresContainer(ctx, t)
			defer container.Terminate(ctx, t)
			seedDuplicates(ctx, t, container)

			cfg := config.Default()
			cfg.Transaction = tt.transaction
			cfg.KeepGoing = tt.keepGoing
			db, err := database.New(ctx, container.Connect(ctx, t), cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			report, err := db.Migrate(ctx, []ir.TableSpec{simpleTable("First"), dupTable(), simpleTable("Last")})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Migrate() error = %v; wantErr %v", err, tt.wantErr)
			}
			var te *reconcile.TableError
			if !errors.As(err, &te) || te.Table != "Dup" {
				t.Errorf("Migrate() error = %v; want TableError for Dup", err)
			}
			if failed := report.Failed(); len(failed) != 1 || failed[0].Table != "Dup" {
				t.Errorf("Failed() = %+v; want only Dup", failed)
			}

			for table, want := range tt.wantTables {
				got, err := db.Catalog().TableExists(ctx, table)
				if err != nil {
					t.Fatalf("TableExists(%s): %v", table, err)
				}
				if got != want {
					t.Errorf("TableExists(%s) = %v; want %v", table, got, want)
				}
			}
		})
	}
}

func TestMigrateRefusesNonTransactionalPlan(t *testing.T) {
	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	cfg := config.Default()
	cfg.Transaction = true
	db, err := database.New(ctx, container.Connect(ctx, t), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	spec := simpleTable("Archive")
	spec.Options.Tablespace = &ir.Tablespace{Name: "cold", Location: "/var/lib/postgresql/cold"}
	_, err = db.Migrate(ctx, []ir.TableSpec{spec})
	if err == nil || !strings.Contains(err.Error(), "cannot run inside a transaction") {
		t.Errorf("Migrate() error = %v; want transaction refusal", err)
	}
	if exists, _ := db.Catalog().TableExists(ctx, "Archive"); exists {
		t.Error("Archive was created despite the refusal")
	}
}

func TestFingerprintIntegration(t *testing.T) {
	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	db, err := database.New(ctx, container.Connect(ctx, t), config.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	specs := []ir.TableSpec{simpleTable("Page")}
	if _, err := db.Migrate(ctx, specs); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	p, err := db.PlanAll(ctx, specs)
	if err != nil {
		t.Fatalf("PlanAll() error = %v", err)
	}
	if p.SourceFingerprint == nil {
		t.Fatal("PlanAll() did not stamp a fingerprint")
	}
	if err := db.CheckFingerprint(ctx, p, specs); err != nil {
		t.Errorf("CheckFingerprint() on unchanged tables error = %v", err)
	}

	container.MustExec(ctx, t, `ALTER TABLE "Page" ADD COLUMN "Extra" integer`)
	err = db.CheckFingerprint(ctx, p, specs)
	if err == nil || !strings.Contains(err.Error(), "fingerprint mismatch") {
		t.Errorf("CheckFingerprint() after a concurrent change error = %v; want mismatch", err)
	}
}
