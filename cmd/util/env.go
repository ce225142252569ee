package util

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// GetEnvWithDefault returns the value of an environment variable or a default value if not set
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntWithDefault returns the value of an environment variable as int or a default value if not set
func GetEnvIntWithDefault(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// PreRunEWithEnvVars returns a PreRunE that fills connection flags the user
// did not set from the libpq environment (PGHOST, PGPORT, PGDATABASE,
// PGUSER, PGPASSWORD, PGAPPNAME) and then checks that a database and a user
// are known.
func PreRunEWithEnvVars(flags *ConnectionFlags) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		changed := cmd.Flags().Changed
		if v := GetEnvWithDefault("PGDATABASE", ""); v != "" && !changed("db") {
			flags.DB = v
		}
		if v := GetEnvWithDefault("PGUSER", ""); v != "" && !changed("user") {
			flags.User = v
		}
		if v := GetEnvWithDefault("PGHOST", ""); v != "" && !changed("host") {
			flags.Host = v
		}
		if v := GetEnvIntWithDefault("PGPORT", 0); v != 0 && !changed("port") {
			flags.Port = v
		}
		if v := GetEnvWithDefault("PGPASSWORD", ""); v != "" && !changed("password") {
			flags.Password = v
		}
		if v := GetEnvWithDefault("PGAPPNAME", ""); v != "" && !changed("application-name") {
			flags.ApplicationName = v
		}

		if flags.DB == "" {
			return fmt.Errorf("database name is required (use --db flag or PGDATABASE environment variable)")
		}
		if flags.User == "" {
			return fmt.Errorf("database user is required (use --user flag or PGUSER environment variable)")
		}
		return nil
	}
}
