package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgreconcile/internal/version"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version number of pgreconcile",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionLine())
	},
}

func versionLine() string {
	return fmt.Sprintf("pgreconcile v%s@%s %s %s", version.App(), version.GetGitCommit(), version.Platform(), version.GetBuildDate())
}
