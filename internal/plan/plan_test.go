package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func samplePlan() *Plan {
	p := New("public")
	p.Add(Step{SQL: `ALTER TABLE "Page" DROP CONSTRAINT "Page_Status_check"`, Type: ObjectTypeConstraint, Operation: OperationDrop, Table: "Page", Name: "Page_Status_check"})
	p.Add(Step{SQL: `UPDATE "Page" SET "Status" = 'Y' WHERE "Status" NOT IN ('Y', 'Z')`, Type: ObjectTypeData, Operation: OperationUpdate, Table: "Page", Name: "Status"})
	p.Add(Step{SQL: `ALTER TABLE "Page" ADD CONSTRAINT "Page_Status_check" CHECK ("Status" IN ('Y', 'Z'))`, Type: ObjectTypeConstraint, Operation: OperationCreate, Table: "Page", Name: "Page_Status_check"})
	p.Add(Step{SQL: `CREATE INDEX "ix_abc" ON "Page" ("Title")`, Type: ObjectTypeIndex, Operation: OperationCreate, Table: "Page", Name: "ix_abc"})
	return p
}

func TestNewPlan(t *testing.T) {
	p := New("public")
	if p.HasChanges() {
		t.Error("new plan should have no changes")
	}
	if !p.Transaction {
		t.Error("new plan should allow a transaction")
	}
	if p.CreatedAt.IsZero() {
		t.Error("Plan should have a creation timestamp")
	}
	if p.ToSQL() != "" {
		t.Errorf("ToSQL() = %q; want empty", p.ToSQL())
	}
}

func TestStepAddress(t *testing.T) {
	tests := []struct {
		step Step
		want string
	}{
		{Step{Table: "Page", Name: "Status"}, "Page.Status"},
		{Step{Table: "Page", Name: "Page"}, "Page"},
		{Step{Table: "Page"}, "Page"},
		{Step{Name: "plpgsql"}, "plpgsql"},
	}
	for _, tt := range tests {
		if got := tt.step.Address(); got != tt.want {
			t.Errorf("Address() = %q; want %q", got, tt.want)
		}
	}
}

func TestToSQL(t *testing.T) {
	got := samplePlan().ToSQL()
	want := `ALTER TABLE "Page" DROP CONSTRAINT "Page_Status_check";

UPDATE "Page" SET "Status" = 'Y' WHERE "Status" NOT IN ('Y', 'Z');

ALTER TABLE "Page" ADD CONSTRAINT "Page_Status_check" CHECK ("Status" IN ('Y', 'Z'));

CREATE INDEX "ix_abc" ON "Page" ("Title");
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToSQL() mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanSummary(t *testing.T) {
	planJSON := samplePlan().convertToStructuredJSON()
	want := PlanSummary{
		Add:     2,
		Change:  1,
		Destroy: 1,
		Total:   4,
		ByType: map[string]TypeSummary{
			"constraints": {Add: 1, Destroy: 1},
			"data":        {Change: 1},
			"indexes":     {Add: 1},
		},
	}
	if diff := cmp.Diff(want, planJSON.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestToJSON(t *testing.T) {
	p := samplePlan()
	p.Warn("Page", "cannot decode constraint %q", "Page_Kind_check")

	out, err := p.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var decoded PlanJSON
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.Schema != "public" || len(decoded.Steps) != 4 || len(decoded.Warnings) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Steps[1].Type != ObjectTypeData || decoded.Steps[1].Operation != OperationUpdate {
		t.Errorf("step 2 = %+v; want data update", decoded.Steps[1])
	}
}

func TestHumanColored(t *testing.T) {
	p := samplePlan()
	p.Warn("Page", "location differs")
	out := p.HumanColored(false)

	for _, want := range []string{
		"Warnings:\n  ! Page: location differs",
		"Plan: 2 to add, 1 to modify, 1 to drop.",
		"Constraints:\n  - Page.Page_Status_check\n  + Page.Page_Status_check",
		"Data:\n  ~ Page.Status",
		"Transaction: true",
		`CREATE INDEX "ix_abc" ON "Page" ("Title");`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HumanColored() missing %q in:\n%s", want, out)
		}
	}

	if got := New("public").HumanColored(false); got != "No changes detected.\n" {
		t.Errorf("empty plan output = %q", got)
	}
}

func TestVacuumDisablesTransaction(t *testing.T) {
	p := New("public")
	p.Add(Step{SQL: `REINDEX TABLE "Page"`, Type: ObjectTypeMaintain, Operation: OperationUpdate, Table: "Page"})
	if !p.Transaction {
		t.Fatal("REINDEX should keep the plan transactional")
	}
	p.Add(Step{SQL: `VACUUM FULL ANALYZE "Page"`, Type: ObjectTypeMaintain, Operation: OperationUpdate, Table: "Page"})
	if p.Transaction {
		t.Error("VACUUM should disable the transaction")
	}

	ts := New("public")
	ts.Add(Step{SQL: `CREATE TABLESPACE "fast" LOCATION '/mnt/fast'`, Type: ObjectTypeTablespace, Operation: OperationCreate, Name: "fast"})
	if ts.Transaction {
		t.Error("CREATE TABLESPACE should disable the transaction")
	}

	merged := New("public")
	merged.Merge(p)
	if merged.Transaction || len(merged.Steps) != 2 {
		t.Errorf("Merge() = %d steps, transaction %t", len(merged.Steps), merged.Transaction)
	}
}

func TestValidate(t *testing.T) {
	if err := samplePlan().Validate(); err != nil {
		t.Errorf("Validate() = %v; want nil", err)
	}
	p := New("public")
	p.Add(Step{SQL: `ALTER TABLE "Page" ADD COLUMN`, Type: ObjectTypeColumn, Operation: OperationCreate, Table: "Page", Name: "X"})
	if err := p.Validate(); err == nil {
		t.Error("Validate() = nil; want syntax error")
	}
}
