package util

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/dialect"
)

// SettingsFlags holds the reconciler settings that can be given on the
// command line. Values left unset fall back to the PGRECONCILE_*
// environment and then to the defaults.
type SettingsFlags struct {
	Schema           string
	LogicalDB        string
	SchemaAsDatabase bool
	SchemaPrefix     string
	SearchLanguage   string
	FulltextMethod   string
	IdentifierLimit  int
	Dialect          string
}

// AddSettingsFlags registers the settings flags on cmd.
func AddSettingsFlags(cmd *cobra.Command, flags *SettingsFlags) {
	def := config.Default()
	cmd.Flags().StringVar(&flags.Schema, "schema", def.Schema, "Schema name")
	cmd.Flags().StringVar(&flags.LogicalDB, "logical-db", "", "Logical database to select; mapped to a schema with --schema-as-database")
	cmd.Flags().BoolVar(&flags.SchemaAsDatabase, "schema-as-database", false, "Map logical databases onto schemas of the connected database (env: "+config.EnvSchemaAsDatabase+")")
	cmd.Flags().StringVar(&flags.SchemaPrefix, "schema-prefix", "", "Prefix of schemas that hold logical databases (env: "+config.EnvSchemaPrefix+")")
	cmd.Flags().StringVar(&flags.SearchLanguage, "search-language", def.SearchLanguage, "Text search configuration used by full-text triggers (env: "+config.EnvSearchLanguage+")")
	cmd.Flags().StringVar(&flags.FulltextMethod, "fts-method", def.FulltextMethod, "Full-text index access method: gin or gist (env: "+config.EnvFulltextMethod+")")
	cmd.Flags().IntVar(&flags.IdentifierLimit, "identifier-limit", def.IdentifierLimit, "Maximum length in bytes of generated identifiers (env: "+config.EnvIdentifierLimit+")")
	cmd.Flags().StringVar(&flags.Dialect, "dialect", def.Dialect, fmt.Sprintf("SQL dialect (%s) (env: %s)", strings.Join(dialect.Names(), ", "), config.EnvDialect))
}

// Config resolves the settings: defaults, then the environment, then the
// flags the user set explicitly.
func (f *SettingsFlags) Config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("schema") {
		cfg.Schema = f.Schema
	}
	if changed("schema-as-database") {
		cfg.SchemaAsDatabase = f.SchemaAsDatabase
	}
	if changed("schema-prefix") {
		cfg.SchemaPrefix = f.SchemaPrefix
	}
	if changed("search-language") {
		cfg.SearchLanguage = f.SearchLanguage
	}
	if changed("fts-method") {
		cfg.FulltextMethod = strings.ToLower(f.FulltextMethod)
	}
	if changed("identifier-limit") {
		cfg.IdentifierLimit = f.IdentifierLimit
	}
	if changed("dialect") {
		cfg.Dialect = f.Dialect
	}
	return cfg, cfg.Validate()
}
