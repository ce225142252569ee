package plan

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgreconcile/cmd/util"
	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/logger"
	"github.com/pgschema/pgreconcile/internal/plan"
)

var (
	planConn     util.ConnectionFlags
	planSettings util.SettingsFlags
	planFiles    []string
	outputHuman  string
	outputJSON   string
	outputSQL    string
	planNoColor  bool
)

var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate reconciliation plan for declared tables",
	Long:  "Generate the statements that would bring the tables declared in --file to their declared shape. The live schema (specified by --schema, defaults to 'public') is only read.",
	RunE:  runPlan,
	// Silence usage on errors from RunE; flag errors still print it.
	SilenceUsage: true,
	PreRunE:      util.PreRunEWithEnvVars(&planConn),
}

func init() {
	util.AddConnectionFlags(PlanCmd, &planConn)
	util.AddSettingsFlags(PlanCmd, &planSettings)

	PlanCmd.Flags().StringSliceVar(&planFiles, "file", nil, "Path to a YAML table declaration file; repeatable (required)")

	PlanCmd.Flags().StringVar(&outputHuman, "output-human", "", "Output human-readable format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputJSON, "output-json", "", "Output JSON format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputSQL, "output-sql", "", "Output SQL format to stdout or file path")
	PlanCmd.Flags().BoolVar(&planNoColor, "no-color", false, "Disable colored output")

	PlanCmd.MarkFlagRequired("file")
}

// PlanConfig holds everything needed to build a plan.
type PlanConfig struct {
	Conn     *util.ConnectionFlags
	Settings *util.SettingsFlags
	Config   config.Config
	Files    []string
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := planSettings.Config(cmd)
	if err != nil {
		return err
	}

	outputs, err := determineOutputs()
	if err != nil {
		return err
	}

	migrationPlan, err := GeneratePlan(cmd.Context(), &PlanConfig{
		Conn:     &planConn,
		Settings: &planSettings,
		Config:   cfg,
		Files:    planFiles,
	})
	if err != nil {
		return err
	}

	for _, output := range outputs {
		if err := processOutput(migrationPlan, output); err != nil {
			return err
		}
	}
	return nil
}

// LoadTables reads every declaration file into one validated document.
func LoadTables(files []string) ([]ir.TableSpec, error) {
	doc := &ir.Document{}
	for _, file := range files {
		part, err := ir.LoadFile(file)
		if err != nil {
			return nil, err
		}
		doc.Tables = append(doc.Tables, part.Tables...)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("no tables declared in %v", files)
	}
	return doc.Tables, nil
}

// GeneratePlan loads the declarations, reads the live schema and returns
// the merged plan for all tables. Nothing is executed.
func GeneratePlan(ctx context.Context, pc *PlanConfig) (*plan.Plan, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tables, err := LoadTables(pc.Files)
	if err != nil {
		return nil, err
	}

	db, err := util.OpenDatabase(ctx, pc.Conn, pc.Settings, pc.Config, false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	p, err := db.PlanAll(ctx, tables)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("generated plan does not parse: %w", err)
	}
	logger.Get().Debug("Plan generated", "tables", len(tables), "steps", len(p.Steps), "transaction", p.Transaction)
	return p, nil
}

// outputSpec represents a single output specification
type outputSpec struct {
	format string // "human", "json", or "sql"
	target string // "stdout" or file path
}

// determineOutputs parses the output flags and returns the list of outputs to generate
func determineOutputs() ([]outputSpec, error) {
	var outputs []outputSpec
	stdoutCount := 0

	for _, o := range []outputSpec{
		{format: "human", target: outputHuman},
		{format: "json", target: outputJSON},
		{format: "sql", target: outputSQL},
	} {
		if o.target == "" {
			continue
		}
		if o.target == "stdout" {
			stdoutCount++
		}
		outputs = append(outputs, o)
	}

	if stdoutCount > 1 {
		return nil, fmt.Errorf("only one output format can use stdout")
	}

	// Default behavior: if no outputs specified, output human to stdout
	if len(outputs) == 0 {
		outputs = append(outputs, outputSpec{format: "human", target: "stdout"})
	}

	return outputs, nil
}

// renderOutput renders the plan in the given format.
func renderOutput(migrationPlan *plan.Plan, output outputSpec) (string, error) {
	switch output.format {
	case "human":
		// Color only when writing to stdout, unless explicitly disabled
		useColor := output.target == "stdout" && !planNoColor
		return migrationPlan.HumanColored(useColor), nil
	case "json":
		content, err := migrationPlan.ToJSON()
		if err != nil {
			return "", fmt.Errorf("failed to generate JSON output: %w", err)
		}
		return content + "\n", nil
	case "sql":
		return migrationPlan.ToSQL(), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", output.format)
	}
}

// processOutput writes the plan in the specified format to the target destination
func processOutput(migrationPlan *plan.Plan, output outputSpec) error {
	content, err := renderOutput(migrationPlan, output)
	if err != nil {
		return err
	}

	if output.target == "stdout" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(output.target, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s output to %s: %w", output.format, output.target, err)
	}
	return nil
}

// ResetFlags resets all global flag variables to their default values for testing
func ResetFlags() {
	planConn = util.ConnectionFlags{Host: "localhost", Port: 5432, SSLMode: "prefer", ApplicationName: "pgreconcile"}
	def := config.Default()
	planSettings = util.SettingsFlags{
		Schema:          def.Schema,
		SearchLanguage:  def.SearchLanguage,
		FulltextMethod:  def.FulltextMethod,
		IdentifierLimit: def.IdentifierLimit,
		Dialect:         def.Dialect,
	}
	planFiles = nil
	outputHuman = ""
	outputJSON = ""
	outputSQL = ""
	planNoColor = false
}
