package apply

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	planCmd "github.com/pgschema/pgreconcile/cmd/plan"
	"github.com/pgschema/pgreconcile/cmd/util"
	"github.com/pgschema/pgreconcile/internal/database"
	"github.com/pgschema/pgreconcile/internal/reconcile"
)

var (
	applyConn        util.ConnectionFlags
	applySettings    util.SettingsFlags
	applyFiles       []string
	applyAutoApprove bool
	applyNoColor     bool
	applyDryRun      bool
	applyLockTimeout string
	applyTransaction bool
	applyKeepGoing   bool
)

var ApplyCmd = &cobra.Command{
	Use:          "apply",
	Short:        "Apply reconciliation plan to bring declared tables into shape",
	Long:         "Reconcile the tables declared in --file against a target schema (specified by --schema, defaults to 'public'). The plan is shown first and applied after approval, one table at a time.",
	RunE:         runApply,
	SilenceUsage: true,
	PreRunE:      util.PreRunEWithEnvVars(&applyConn),
}

func init() {
	util.AddConnectionFlags(ApplyCmd, &applyConn)
	util.AddSettingsFlags(ApplyCmd, &applySettings)

	ApplyCmd.Flags().StringSliceVar(&applyFiles, "file", nil, "Path to a YAML table declaration file; repeatable (required)")

	// Apply behavior flags
	ApplyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Apply changes without prompting for approval")
	ApplyCmd.Flags().BoolVar(&applyNoColor, "no-color", false, "Disable colored output")
	ApplyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Show plan without applying changes")
	ApplyCmd.Flags().StringVar(&applyLockTimeout, "lock-timeout", "", "Maximum time to wait for database locks (e.g., 30s, 5m, 1h)")
	ApplyCmd.Flags().BoolVar(&applyTransaction, "transaction", false, "Run the whole batch in one transaction with a savepoint per table")
	ApplyCmd.Flags().BoolVar(&applyKeepGoing, "keep-going", false, "Continue with the remaining tables after a table fails")

	ApplyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cfg, err := applySettings.Config(cmd)
	if err != nil {
		return err
	}
	cfg.Transaction = applyTransaction
	cfg.KeepGoing = applyKeepGoing

	tables, err := planCmd.LoadTables(applyFiles)
	if err != nil {
		return err
	}

	db, err := util.OpenDatabase(ctx, &applyConn, &applySettings, cfg, !applyDryRun)
	if err != nil {
		return err
	}
	defer db.Close()

	migrationPlan, err := db.PlanAll(ctx, tables)
	if err != nil {
		return err
	}
	if !migrationPlan.HasChanges() {
		fmt.Fprint(out, migrationPlan.HumanColored(false))
		fmt.Fprintln(out, "No changes to apply. Tables are already up to date.")
		return nil
	}

	fmt.Fprint(out, migrationPlan.HumanColored(!applyNoColor))
	if applyDryRun {
		return nil
	}
	if cfg.Transaction && !migrationPlan.Transaction {
		return fmt.Errorf("plan contains statements that cannot run inside a transaction; rerun without --transaction")
	}

	if !applyAutoApprove {
		ok, err := confirm(cmd.InOrStdin(), out)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Apply cancelled.")
			return nil
		}
	}

	if err := db.CheckFingerprint(ctx, migrationPlan, tables); err != nil {
		return err
	}

	if applyLockTimeout != "" {
		if err := db.SetLockTimeout(ctx, applyLockTimeout); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "\nApplying changes...")
	report, err := db.Migrate(ctx, tables)
	printReport(out, report)
	if err != nil {
		return fmt.Errorf("failed to apply changes: %w", err)
	}
	fmt.Fprintln(out, "Changes applied successfully!")
	return nil
}

// confirm asks for approval and accepts "yes" or "y".
func confirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "\nDo you want to apply these changes? (yes/no): ")
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes" || response == "y", nil
}

// printReport lists the outcome of every table that had work to do.
func printReport(out io.Writer, report *database.Report) {
	if report == nil {
		return
	}
	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(out, "  ✗ %s: %s\n", res.Table, failureReason(res.Err))
		case res.Plan != nil && res.Plan.HasChanges():
			fmt.Fprintf(out, "  ✓ %s (%d statements)\n", res.Table, len(res.Plan.Steps))
		}
	}
	fmt.Fprintf(out, "%d statements applied, %d tables failed.\n", report.Steps(), len(report.Failed()))
}

// failureReason prefers the failing statement's message over the wrapped
// chain, which repeats the table name.
func failureReason(err error) string {
	var te *reconcile.TableError
	if errors.As(err, &te) && te.Err != nil {
		return te.Err.Error()
	}
	return err.Error()
}
