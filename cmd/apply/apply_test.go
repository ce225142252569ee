package apply

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pgschema/pgreconcile/internal/connector"
	"github.com/pgschema/pgreconcile/internal/database"
	"github.com/pgschema/pgreconcile/internal/plan"
	"github.com/pgschema/pgreconcile/internal/reconcile"
)

func TestApplyCommand(t *testing.T) {
	if ApplyCmd.Use != "apply" {
		t.Errorf("Expected Use to be 'apply', got '%s'", ApplyCmd.Use)
	}
	if ApplyCmd.Short == "" || ApplyCmd.Long == "" {
		t.Error("Expected Short and Long descriptions to be set")
	}

	flags := ApplyCmd.Flags()
	defaults := map[string]string{
		"host":             "localhost",
		"port":             "5432",
		"schema":           "public",
		"auto-approve":     "false",
		"no-color":         "false",
		"dry-run":          "false",
		"lock-timeout":     "",
		"transaction":      "false",
		"keep-going":       "false",
		"application-name": "pgreconcile",
	}
	for name, want := range defaults {
		f := flags.Lookup(name)
		if f == nil {
			t.Errorf("Expected --%s flag to be defined", name)
			continue
		}
		if f.DefValue != want {
			t.Errorf("--%s default = %q; want %q", name, f.DefValue, want)
		}
	}

	// Output format flags belong to plan only.
	if flags.Lookup("output-json") != nil {
		t.Error("Expected --output-json flag NOT to be defined for apply command")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "yes\n", want: true},
		{input: "Y\n", want: true},
		{input: "  yes  \n", want: true},
		{input: "no\n", want: false},
		{input: "\n", want: false},
		{input: "yes", want: true},
		{input: "", want: false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := confirm(strings.NewReader(tt.input), &out)
			if err != nil {
				t.Fatalf("confirm(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("confirm(%q) = %v; want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "(yes/no)") {
				t.Errorf("confirm() prompt = %q", out.String())
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	changed := plan.New("public")
	changed.Add(plan.Step{SQL: `ALTER TABLE "A" ADD COLUMN "X" text`, Type: plan.ObjectTypeColumn, Operation: plan.OperationCreate, Table: "A"})
	failedPlan := plan.New("public")
	step := plan.Step{SQL: `CREATE UNIQUE INDEX "Dup_Code" ON "Dup" ("Code")`, Type: plan.ObjectTypeIndex, Operation: plan.OperationCreate, Table: "Dup", Name: "Dup_Code"}
	failedPlan.Add(step)

	cause := &connector.StatementError{SQL: step.SQL, Message: "could not create unique index", Err: errors.New("duplicate key")}
	report := &database.Report{Results: []database.Result{
		{Table: "A", Plan: changed},
		{Table: "Dup", Plan: failedPlan, Err: &reconcile.TableError{Table: "Dup", Step: step, Err: cause}},
		{Table: "Same", Plan: plan.New("public")},
	}}

	var out bytes.Buffer
	printReport(&out, report)
	got := out.String()

	for _, want := range []string{"✓ A (1 statements)", "✗ Dup: " + cause.Error(), "1 statements applied, 1 tables failed."} {
		if !strings.Contains(got, want) {
			t.Errorf("printReport() output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Same") {
		t.Errorf("printReport() listed a table without changes:\n%s", got)
	}
}
