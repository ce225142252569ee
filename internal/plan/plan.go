package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/pgschema/pgreconcile/internal/color"
	"github.com/pgschema/pgreconcile/internal/fingerprint"
	"github.com/pgschema/pgreconcile/internal/version"
)

// Plan is the ordered list of statements that converges the live schema
// to the declared one, plus anything worth telling the operator.
type Plan struct {
	// The schema the statements run in
	Schema string `json:"schema"`

	// Plan metadata
	CreatedAt time.Time `json:"created_at"`

	// Transaction indicates whether the steps may be wrapped in one
	// transaction. VACUUM and CREATE TABLESPACE cannot run inside a
	// transaction block.
	Transaction bool `json:"transaction"`

	// SourceFingerprint is the state of the planned tables the steps were
	// computed from.
	SourceFingerprint *fingerprint.SchemaFingerprint `json:"source_fingerprint,omitempty"`

	Steps    []Step    `json:"steps"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Step is one statement and the object it affects.
type Step struct {
	SQL       string     `json:"sql"`
	Type      ObjectType `json:"type"`
	Operation Operation  `json:"operation"`
	Table     string     `json:"table,omitempty"`
	Name      string     `json:"name,omitempty"`
}

// Address returns "table.name", or the table alone for table steps.
func (s Step) Address() string {
	switch {
	case s.Table == "":
		return s.Name
	case s.Name == "" || s.Name == s.Table:
		return s.Table
	default:
		return s.Table + "." + s.Name
	}
}

// Warning is a non-fatal finding, e.g. an undecodable CHECK constraint.
type Warning struct {
	Table   string `json:"table,omitempty"`
	Message string `json:"message"`
}

// ObjectType represents the database object types in dependency order
type ObjectType string

const (
	ObjectTypeTablespace ObjectType = "tablespaces"
	ObjectTypeTable      ObjectType = "tables"
	ObjectTypeColumn     ObjectType = "columns"
	ObjectTypeConstraint ObjectType = "constraints"
	ObjectTypeData       ObjectType = "data"
	ObjectTypeIndex      ObjectType = "indexes"
	ObjectTypeTrigger    ObjectType = "triggers"
	ObjectTypeFunction   ObjectType = "functions"
	ObjectTypeLanguage   ObjectType = "languages"
	ObjectTypePartition  ObjectType = "partitions"
	ObjectTypeMaintain   ObjectType = "maintenance"
)

// Operation is what a step does to its object.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationAlter  Operation = "alter"
	OperationDrop   Operation = "drop"
	OperationUpdate Operation = "update"
)

// getObjectOrder returns the display order for object types
func getObjectOrder() []ObjectType {
	return []ObjectType{
		ObjectTypeLanguage,
		ObjectTypeTablespace,
		ObjectTypeTable,
		ObjectTypeColumn,
		ObjectTypeConstraint,
		ObjectTypeData,
		ObjectTypeIndex,
		ObjectTypeTrigger,
		ObjectTypeFunction,
		ObjectTypePartition,
		ObjectTypeMaintain,
	}
}

// PlanJSON represents the structured JSON output format
type PlanJSON struct {
	Version            string                         `json:"version"`
	PgreconcileVersion string                         `json:"pgreconcile_version"`
	CreatedAt          time.Time                      `json:"created_at"`
	Schema             string                         `json:"schema"`
	Transaction        bool                           `json:"transaction"`
	SourceFingerprint  *fingerprint.SchemaFingerprint `json:"source_fingerprint,omitempty"`
	Summary            PlanSummary                    `json:"summary"`
	Steps              []Step                         `json:"steps"`
	Warnings           []Warning                      `json:"warnings,omitempty"`
}

// PlanSummary provides counts of changes by type
type PlanSummary struct {
	Add     int                    `json:"add"`
	Change  int                    `json:"change"`
	Destroy int                    `json:"destroy"`
	Total   int                    `json:"total"`
	ByType  map[string]TypeSummary `json:"by_type"`
}

// TypeSummary provides counts for a specific object type
type TypeSummary struct {
	Add     int `json:"add"`
	Change  int `json:"change"`
	Destroy int `json:"destroy"`
}

// ========== PUBLIC METHODS ==========

// New creates an empty plan for schema
func New(schema string) *Plan {
	return &Plan{
		Schema:      schema,
		CreatedAt:   time.Now(),
		Transaction: true,
		Steps:       []Step{},
	}
}

// Add appends a step.
func (p *Plan) Add(step Step) {
	p.Steps = append(p.Steps, step)
	if !transactional(step.SQL) {
		p.Transaction = false
	}
}

func transactional(sql string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	for _, prefix := range []string{"VACUUM", "CREATE TABLESPACE", "DROP TABLESPACE", "CREATE DATABASE", "DROP DATABASE"} {
		if strings.HasPrefix(upper, prefix) {
			return false
		}
	}
	return true
}

// Warn records a warning about table.
func (p *Plan) Warn(table, format string, args ...any) {
	p.Warnings = append(p.Warnings, Warning{Table: table, Message: fmt.Sprintf(format, args...)})
}

// Merge appends the steps and warnings of other.
func (p *Plan) Merge(other *Plan) {
	if other == nil {
		return
	}
	for _, s := range other.Steps {
		p.Add(s)
	}
	p.Warnings = append(p.Warnings, other.Warnings...)
	p.Transaction = p.Transaction && other.Transaction
}

// HasChanges reports whether the plan contains any statement
func (p *Plan) HasChanges() bool {
	return len(p.Steps) > 0
}

// Statements returns the SQL of every step in order.
func (p *Plan) Statements() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.SQL
	}
	return out
}

// Validate parses every statement and reports the first that PostgreSQL
// would reject as a syntax error.
func (p *Plan) Validate() error {
	for i, s := range p.Steps {
		if _, err := pg_query.Parse(s.SQL); err != nil {
			return fmt.Errorf("step %d (%s) is not valid SQL: %w\n  %s", i+1, s.Address(), err, s.SQL)
		}
	}
	return nil
}

// HumanColored returns a human-readable summary of the plan with color support
func (p *Plan) HumanColored(enableColor bool) string {
	c := color.New(enableColor)
	var summary strings.Builder

	planJSON := p.convertToStructuredJSON()

	p.writeWarnings(&summary, c)

	if planJSON.Summary.Total == 0 {
		summary.WriteString("No changes detected.\n")
		return summary.String()
	}

	// Write header with overall summary (colored like Terraform)
	summary.WriteString(c.FormatPlanHeader(planJSON.Summary.Add, planJSON.Summary.Change, planJSON.Summary.Destroy) + "\n\n")

	summary.WriteString(c.Bold("Summary by type:") + "\n")
	for _, objType := range getObjectOrder() {
		objTypeStr := string(objType)
		if ts, exists := planJSON.Summary.ByType[objTypeStr]; exists {
			summary.WriteString(c.FormatSummaryLine(objTypeStr, ts.Add, ts.Change, ts.Destroy) + "\n")
		}
	}
	summary.WriteString("\n")

	for _, objType := range getObjectOrder() {
		objTypeStr := string(objType)
		if _, exists := planJSON.Summary.ByType[objTypeStr]; exists {
			displayName := strings.ToUpper(objTypeStr[:1]) + objTypeStr[1:]
			p.writeDetailedChanges(&summary, displayName, objType, c)
		}
	}

	fmt.Fprintf(&summary, "Transaction: %t\n\n", planJSON.Transaction)

	summary.WriteString(c.Bold("DDL to be executed:") + "\n")
	summary.WriteString(strings.Repeat("-", 50) + "\n\n")
	summary.WriteString(p.ToSQL())

	return summary.String()
}

// ToJSON returns the plan as structured JSON
func (p *Plan) ToJSON() (string, error) {
	planJSON := p.convertToStructuredJSON()

	data, err := json.MarshalIndent(planJSON, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	return string(data), nil
}

// ToSQL returns only the SQL statements without any additional formatting
func (p *Plan) ToSQL() string {
	if !p.HasChanges() {
		return ""
	}
	var b strings.Builder
	for i, s := range p.Steps {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSuffix(strings.TrimSpace(s.SQL), ";"))
		b.WriteString(";\n")
	}
	return b.String()
}

// ========== PRIVATE METHODS ==========

func (p *Plan) writeWarnings(summary *strings.Builder, c *color.Color) {
	if len(p.Warnings) == 0 {
		return
	}
	summary.WriteString(c.Warn("Warnings:") + "\n")
	for _, w := range p.Warnings {
		if w.Table != "" {
			fmt.Fprintf(summary, "  ! %s: %s\n", w.Table, w.Message)
		} else {
			fmt.Fprintf(summary, "  ! %s\n", w.Message)
		}
	}
	summary.WriteString("\n")
}

// writeDetailedChanges writes one line per affected object of objType
func (p *Plan) writeDetailedChanges(summary *strings.Builder, displayName string, objType ObjectType, c *color.Color) {
	fmt.Fprintf(summary, "%s:\n", c.Bold(displayName))

	seen := map[string]bool{}
	var lines []Step
	for _, s := range p.Steps {
		key := s.Address() + "\x00" + string(s.Operation)
		if s.Type != objType || seen[key] {
			continue
		}
		seen[key] = true
		lines = append(lines, s)
	}

	// Sort changes by address for consistent output
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Address() < lines[j].Address()
	})

	for _, s := range lines {
		summary.WriteString(c.FormatPlanLine(s.Address(), symbolAction(s.Operation)) + "\n")
	}

	summary.WriteString("\n")
}

func symbolAction(op Operation) string {
	switch op {
	case OperationCreate:
		return "add"
	case OperationDrop:
		return "destroy"
	default:
		return "change"
	}
}

// convertToStructuredJSON converts the plan to a structured JSON format
func (p *Plan) convertToStructuredJSON() *PlanJSON {
	planJSON := &PlanJSON{
		Version:            version.PlanFormat(),
		PgreconcileVersion: version.App(),
		CreatedAt:          p.CreatedAt.Truncate(time.Second),
		Schema:             p.Schema,
		Transaction:        p.Transaction,
		SourceFingerprint:  p.SourceFingerprint,
		Summary: PlanSummary{
			ByType: make(map[string]TypeSummary),
		},
		Steps:    p.Steps,
		Warnings: p.Warnings,
	}
	if planJSON.Steps == nil {
		planJSON.Steps = []Step{}
	}
	p.calculateSummary(planJSON)
	return planJSON
}

// calculateSummary counts steps per type and operation
func (p *Plan) calculateSummary(planJSON *PlanJSON) {
	typeStats := make(map[string]TypeSummary)

	for _, s := range p.Steps {
		stats := typeStats[string(s.Type)]

		switch s.Operation {
		case OperationCreate:
			stats.Add++
			planJSON.Summary.Add++
		case OperationDrop:
			stats.Destroy++
			planJSON.Summary.Destroy++
		default:
			stats.Change++
			planJSON.Summary.Change++
		}

		typeStats[string(s.Type)] = stats
	}

	planJSON.Summary.ByType = typeStats
	planJSON.Summary.Total = planJSON.Summary.Add + planJSON.Summary.Change + planJSON.Summary.Destroy
}
