// Package postgres is the PostgreSQL dialect: enums become varchar columns
// with a CHECK constraint, booleans become smallint and fulltext indexes
// become a tsvector shadow column kept current by a trigger.
package postgres

import (
	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/identifier"
)

func init() {
	dialect.Register(func(cfg config.Config) dialect.Dialect { return New(cfg) }, "postgres", "postgresql", "pg")
}

// Dialect implements dialect.Dialect for PostgreSQL.
type Dialect struct {
	names    identifier.Namer
	language string
	method   string
}

// New returns a PostgreSQL dialect for the given configuration.
func New(cfg config.Config) *Dialect {
	method := cfg.FulltextMethod
	if method == "" {
		method = config.MethodGIN
	}
	language := cfg.SearchLanguage
	if language == "" {
		language = "english"
	}
	return &Dialect{
		names:    cfg.Namer(),
		language: language,
		method:   method,
	}
}

// Name returns "postgres".
func (d *Dialect) Name() string { return "postgres" }

var _ dialect.Dialect = (*Dialect)(nil)
