package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgreconcile/cmd/apply"
	"github.com/pgschema/pgreconcile/cmd/plan"
	"github.com/pgschema/pgreconcile/internal/logger"
	"github.com/pgschema/pgreconcile/internal/version"
)

var Debug bool

var RootCmd = &cobra.Command{
	Use:   "pgreconcile",
	Short: "Declarative PostgreSQL table reconciliation",
	Long: fmt.Sprintf(`pgreconcile brings PostgreSQL tables into the shape declared in YAML.

Version: %s@%s %s %s

Commands:
  plan     Show the statements that would reconcile the declared tables
  apply    Reconcile the declared tables
  inspect  Describe live tables as declarations

Use "pgreconcile [command] --help" for more information about a command.`,
		version.App(), version.GetGitCommit(), version.Platform(), version.GetBuildDate()),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.AddCommand(plan.PlanCmd)
	RootCmd.AddCommand(apply.ApplyCmd)
	RootCmd.AddCommand(InspectCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	logger.Setup(os.Stderr, Debug)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
