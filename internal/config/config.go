// Package config holds the settings a reconciliation run consumes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pgschema/pgreconcile/internal/identifier"
)

// Full-text index access methods.
const (
	MethodGIN  = "gin"
	MethodGiST = "gist"
)

// Environment variables read by ApplyEnv.
const (
	EnvSearchLanguage   = "PGRECONCILE_SEARCH_LANGUAGE"
	EnvFulltextMethod   = "PGRECONCILE_FTS_METHOD"
	EnvIdentifierLimit  = "PGRECONCILE_IDENTIFIER_LIMIT"
	EnvSchemaAsDatabase = "PGRECONCILE_SCHEMA_AS_DATABASE"
	EnvSchemaPrefix     = "PGRECONCILE_SCHEMA_PREFIX"
	EnvDialect          = "PGRECONCILE_DIALECT"
)

// Config is the configuration surface of the reconciler and the database
// facade.
type Config struct {
	// SearchLanguage is the text search configuration used by full-text
	// triggers, without the pg_catalog prefix.
	SearchLanguage string
	// FulltextMethod is the access method of full-text indexes.
	FulltextMethod string
	// IdentifierLimit bounds every synthesized identifier, in bytes.
	IdentifierLimit int

	// SchemaAsDatabase maps logical databases onto schemas of one
	// physical database.
	SchemaAsDatabase bool
	// SchemaPrefix is prepended to logical database names in schema mode.
	SchemaPrefix string
	// Schema is the active schema; catalog reads are scoped to it.
	Schema string

	// Transaction wraps a batch in one transaction with a savepoint per
	// table.
	Transaction bool
	// KeepGoing continues with the remaining tables after a table fails.
	KeepGoing bool

	// ShadowTableSuffixes name the versioned/live copies of a table that
	// receive the same enum data repair as the base table.
	ShadowTableSuffixes []string

	// Dialect selects the codec and synthesizer implementation.
	Dialect string
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		SearchLanguage:      "english",
		FulltextMethod:      MethodGIN,
		IdentifierLimit:     identifier.DefaultLimit,
		Schema:              "public",
		ShadowTableSuffixes: []string{"_Live", "_Versions", "_versions"},
		Dialect:             "postgres",
	}
}

// ApplyEnv overrides fields from PGRECONCILE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvSearchLanguage); v != "" {
		c.SearchLanguage = v
	}
	if v := os.Getenv(EnvFulltextMethod); v != "" {
		c.FulltextMethod = strings.ToLower(v)
	}
	if v := os.Getenv(EnvIdentifierLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvIdentifierLimit, v, err)
		}
		c.IdentifierLimit = n
	}
	if v := os.Getenv(EnvSchemaAsDatabase); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSchemaAsDatabase, v, err)
		}
		c.SchemaAsDatabase = b
	}
	if v := os.Getenv(EnvSchemaPrefix); v != "" {
		c.SchemaPrefix = v
	}
	if v := os.Getenv(EnvDialect); v != "" {
		c.Dialect = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.FulltextMethod {
	case MethodGIN, MethodGiST:
	default:
		return fmt.Errorf("unsupported full-text method %q (want %s or %s)", c.FulltextMethod, MethodGIN, MethodGiST)
	}
	if c.SearchLanguage == "" {
		return fmt.Errorf("search language must not be empty")
	}
	if strings.ContainsAny(c.SearchLanguage, `'"; `) {
		return fmt.Errorf("invalid search language %q", c.SearchLanguage)
	}
	// Hashed names need at least the prefix and the 32 hex digits.
	if c.IdentifierLimit < 35 || c.IdentifierLimit > identifier.DefaultLimit {
		return fmt.Errorf("identifier limit %d out of range [35, %d]", c.IdentifierLimit, identifier.DefaultLimit)
	}
	if c.Schema == "" {
		return fmt.Errorf("schema must not be empty")
	}
	return nil
}

// Namer returns the identifier namer for the configured limit.
func (c Config) Namer() identifier.Namer {
	return identifier.New(c.IdentifierLimit)
}

// SchemaFor maps a logical database name to its schema in schema mode.
func (c Config) SchemaFor(database string) string {
	return c.SchemaPrefix + database
}
