package util

import (
	"github.com/spf13/cobra"

	"github.com/pgschema/pgreconcile/internal/connector"
)

// ConnectionFlags holds the database connection flags shared by every
// command that talks to a server.
type ConnectionFlags struct {
	Host            string
	Port            int
	DB              string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string
}

// AddConnectionFlags registers the connection flags on cmd.
func AddConnectionFlags(cmd *cobra.Command, flags *ConnectionFlags) {
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Database server host (env: PGHOST)")
	cmd.Flags().IntVar(&flags.Port, "port", 5432, "Database server port (env: PGPORT)")
	cmd.Flags().StringVar(&flags.DB, "db", "", "Database name (required) (env: PGDATABASE)")
	cmd.Flags().StringVar(&flags.User, "user", "", "Database user name (required) (env: PGUSER)")
	cmd.Flags().StringVar(&flags.Password, "password", "", "Database password (optional, can also use PGPASSWORD env var or .env file)")
	cmd.Flags().StringVar(&flags.SSLMode, "sslmode", "prefer", "SSL mode (disable, prefer, require, verify-full)")
	cmd.Flags().StringVar(&flags.ApplicationName, "application-name", "pgreconcile", "Application name for database connection (visible in pg_stat_activity) (env: PGAPPNAME)")
}

// Config converts the flags into a connector configuration.
func (f *ConnectionFlags) Config() connector.Config {
	return connector.Config{
		Host:            f.Host,
		Port:            f.Port,
		Database:        f.DB,
		User:            f.User,
		Password:        f.Password,
		SSLMode:         f.SSLMode,
		ApplicationName: f.ApplicationName,
	}
}
