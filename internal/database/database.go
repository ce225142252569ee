// Package database is the entry point a run works through: it owns the
// connection, maps logical databases onto databases or schemas and
// migrates batches of declared tables.
package database

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pgschema/pgreconcile/internal/catalog"
	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/connector"
	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/logger"
	"github.com/pgschema/pgreconcile/internal/reconcile"

	// Registers the postgres dialect.
	_ "github.com/pgschema/pgreconcile/internal/dialect/postgres"
)

// Database binds a connection to a catalog and a reconciler.
type Database struct {
	conn *connector.Connector
	cat  *catalog.Introspector
	rec  *reconcile.Reconciler
	cfg  config.Config
}

// Open connects and returns a Database scoped to cfg.Schema.
func Open(ctx context.Context, connCfg connector.Config, cfg config.Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := connector.Connect(ctx, connCfg)
	if err != nil {
		return nil, err
	}
	db, err := New(ctx, conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// New wraps an open connection. The connection's search_path is set to
// cfg.Schema so that unqualified DDL lands where the catalog looks.
func New(ctx context.Context, conn *connector.Connector, cfg config.Config) (*Database, error) {
	d, err := dialect.New(cfg)
	if err != nil {
		return nil, err
	}
	cat := catalog.New(conn, cfg.Schema)
	db := &Database{
		conn: conn,
		cat:  cat,
		rec:  reconcile.New(cat, conn, d, cfg),
		cfg:  cfg,
	}
	if err := db.useSchema(ctx, cfg.Schema); err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *Database) Close() error {
	return db.conn.Close()
}

func (db *Database) Connector() *connector.Connector { return db.conn }

func (db *Database) Catalog() *catalog.Introspector { return db.cat }

func (db *Database) Reconciler() *reconcile.Reconciler { return db.rec }

// Schema returns the schema catalog reads and DDL are scoped to.
func (db *Database) Schema() string { return db.cat.Schema() }

// SetLockTimeout bounds how long DDL waits for table locks, e.g. "30s".
func (db *Database) SetLockTimeout(ctx context.Context, timeout string) error {
	if _, err := db.conn.Exec(ctx, "SET lock_timeout = "+db.conn.QuoteString(timeout)); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return nil
}

// CreateDatabase creates a logical database: a schema in schema mode, a
// PostgreSQL database otherwise.
func (db *Database) CreateDatabase(ctx context.Context, name string) error {
	sql := "CREATE DATABASE " + identifier.Quote(name)
	if db.cfg.SchemaAsDatabase {
		sql = "CREATE SCHEMA " + identifier.Quote(db.cfg.SchemaFor(name))
	}
	_, err := db.conn.Exec(ctx, sql)
	return err
}

// DropDatabase drops a logical database and everything in it.
func (db *Database) DropDatabase(ctx context.Context, name string) error {
	if db.cfg.SchemaAsDatabase {
		schema := db.cfg.SchemaFor(name)
		if _, err := db.conn.Exec(ctx, "DROP SCHEMA "+identifier.Quote(schema)+" CASCADE"); err != nil {
			return err
		}
		if schema == db.cat.Schema() {
			db.cat.Reset()
		}
		return nil
	}
	if name == db.conn.SelectedDatabase() {
		return fmt.Errorf("cannot drop database %q while connected to it", name)
	}
	_, err := db.conn.Exec(ctx, "DROP DATABASE "+identifier.Quote(name))
	return err
}

// DatabaseExists reports whether a logical database exists.
func (db *Database) DatabaseExists(ctx context.Context, name string) (bool, error) {
	if db.cfg.SchemaAsDatabase {
		return db.cat.SchemaExists(ctx, db.cfg.SchemaFor(name))
	}
	rs, err := db.conn.PreparedQuery(ctx, "SELECT datname FROM pg_database WHERE datname = ?", name)
	if err != nil {
		return false, err
	}
	return rs.NumRecords() > 0, nil
}

// DatabaseList lists logical databases. In schema mode only schemas that
// carry the configured prefix are listed, with the prefix removed.
func (db *Database) DatabaseList(ctx context.Context) ([]string, error) {
	if !db.cfg.SchemaAsDatabase {
		rs, err := db.conn.Query(ctx, "SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname")
		if err != nil {
			return nil, err
		}
		return rs.Strings("datname"), nil
	}
	schemas, err := db.cat.Schemas(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, s := range schemas {
		if name, ok := databaseFor(db.cfg.SchemaPrefix, s); ok && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// SelectDatabase makes name the active logical database. In schema mode
// the schema is created when create is set and it does not exist. Without
// schema mode only the connected database can be selected.
func (db *Database) SelectDatabase(ctx context.Context, name string, create bool) error {
	if !db.cfg.SchemaAsDatabase {
		return db.conn.SelectDatabase(name)
	}
	schema := db.cfg.SchemaFor(name)
	exists, err := db.cat.SchemaExists(ctx, schema)
	if err != nil {
		return err
	}
	if !exists {
		if !create {
			return fmt.Errorf("database %q (schema %q) does not exist", name, schema)
		}
		if err := db.CreateDatabase(ctx, name); err != nil {
			return err
		}
	}
	return db.useSchema(ctx, schema)
}

func (db *Database) useSchema(ctx context.Context, schema string) error {
	if _, err := db.conn.Exec(ctx, "SET search_path TO "+identifier.Quote(schema)); err != nil {
		return fmt.Errorf("failed to select schema %s: %w", schema, err)
	}
	if schema != db.cat.Schema() {
		db.cat.SetSchema(schema)
	}
	logger.Get().Debug("Selected schema", "schema", schema)
	return nil
}

// databaseFor maps a schema back onto its logical database name.
func databaseFor(prefix, schema string) (string, bool) {
	if prefix == "" {
		return schema, true
	}
	if !strings.HasPrefix(schema, prefix) || schema == prefix {
		return "", false
	}
	return strings.TrimPrefix(schema, prefix), true
}
