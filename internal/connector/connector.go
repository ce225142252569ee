// Package connector owns the single live connection used by a
// reconciliation run.
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/pgschema/pgreconcile/internal/logger"
)

// MasterDatabase is used when no database name is configured.
const MasterDatabase = "postgres"

// Config holds database connection parameters
type Config struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string
}

// DSN renders the configuration as a keyword/value connection string.
func (c Config) DSN() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	database := c.Database
	if database == "" {
		database = MasterDatabase
	}

	var parts []string
	parts = append(parts, dsnParam("host", host))
	parts = append(parts, fmt.Sprintf("port=%d", port))
	parts = append(parts, dsnParam("dbname", database))
	if c.User != "" {
		parts = append(parts, dsnParam("user", c.User))
	}
	if c.Password != "" {
		parts = append(parts, dsnParam("password", c.Password))
	}
	if c.SSLMode != "" {
		parts = append(parts, dsnParam("sslmode", c.SSLMode))
	}
	if c.ApplicationName != "" {
		parts = append(parts, dsnParam("application_name", c.ApplicationName))
	}
	return strings.Join(parts, " ")
}

func dsnParam(key, value string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return key + "='" + r.Replace(value) + "'"
}

// Connector executes statements over one pinned connection. It is not safe
// for concurrent use; statements are issued strictly in order.
type Connector struct {
	db       *sql.DB
	ownsDB   bool
	conn     *sql.Conn
	database string

	lastError    string
	affectedRows int64
}

// Connect opens the database and pins one connection for the run.
func Connect(ctx context.Context, cfg Config) (*Connector, error) {
	log := logger.Get()
	log.Debug("Attempting database connection",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"user", cfg.User,
		"sslmode", cfg.SSLMode,
		"application_name", cfg.ApplicationName,
	)

	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, &ConnectionError{Host: cfg.Host, Database: cfg.Database, Err: err}
	}
	c, err := FromDB(ctx, db)
	if err != nil {
		db.Close()
		log.Debug("Database connection failed", "error", err)
		return nil, &ConnectionError{Host: cfg.Host, Database: cfg.Database, Err: err}
	}
	c.ownsDB = true

	log.Debug("Database connection established successfully")
	return c, nil
}

// FromDB pins a connection from an existing pool. The pool stays open
// when the Connector is closed.
func FromDB(ctx context.Context, db *sql.DB) (*Connector, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	c := &Connector{db: db, conn: conn}
	if err := conn.QueryRowContext(ctx, "SELECT current_database()").Scan(&c.database); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read current database: %w", err)
	}
	return c, nil
}

// Close releases the connection, and the pool when Connect opened it.
func (c *Connector) Close() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.ownsDB && c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Query runs sql without parameter translation.
func (c *Connector) Query(ctx context.Context, sql string) (*ResultSet, error) {
	return c.run(ctx, sql, nil)
}

// PreparedQuery translates ? placeholders and runs sql with params.
func (c *Connector) PreparedQuery(ctx context.Context, sql string, params ...any) (*ResultSet, error) {
	if len(params) == 0 {
		return c.run(ctx, sql, nil)
	}
	translated, values, err := Translate(sql, params)
	if err != nil {
		c.lastError = err.Error()
		return nil, newStatementError(sql, params, err)
	}
	return c.run(ctx, translated, values)
}

// Exec runs a statement that returns no rows. Placeholders are only
// translated when params are given.
func (c *Connector) Exec(ctx context.Context, sql string, params ...any) (int64, error) {
	c.affectedRows = 0
	values := []any(nil)
	if len(params) > 0 {
		translated, flat, err := Translate(sql, params)
		if err != nil {
			c.lastError = err.Error()
			return 0, newStatementError(sql, params, err)
		}
		sql, values = translated, flat
	}

	isDebug := logger.IsDebug()
	if isDebug {
		logger.Get().Debug("Executing SQL", "sql", sql, "params", values)
	}
	result, err := c.conn.ExecContext(ctx, sql, values...)
	if err != nil {
		if isDebug {
			logger.Get().Debug("SQL execution failed", "sql", sql, "error", err)
		}
		c.lastError = err.Error()
		return 0, newStatementError(sql, values, err)
	}
	c.lastError = ""
	if n, err := result.RowsAffected(); err == nil {
		c.affectedRows = n
	}
	if isDebug {
		logger.Get().Debug("SQL execution succeeded", "sql", sql, "rows", c.affectedRows)
	}
	return c.affectedRows, nil
}

func (c *Connector) run(ctx context.Context, sql string, values []any) (*ResultSet, error) {
	c.affectedRows = 0
	if logger.IsDebug() {
		logger.Get().Debug("Running query", "sql", sql, "params", values)
	}
	rows, err := c.conn.QueryContext(ctx, sql, values...)
	if err != nil {
		c.lastError = err.Error()
		return nil, newStatementError(sql, values, err)
	}
	rs, err := readResultSet(rows)
	if err != nil {
		c.lastError = err.Error()
		return nil, newStatementError(sql, values, err)
	}
	c.lastError = ""
	c.affectedRows = int64(rs.NumRecords())
	return rs, nil
}

// LastError returns the text of the most recent failure, or "" after a
// successful statement.
func (c *Connector) LastError() string {
	return c.lastError
}

// AffectedRows returns the row count of the most recent statement.
func (c *Connector) AffectedRows() int64 {
	return c.affectedRows
}

// QuoteIdentifier double-quotes an identifier.
func (c *Connector) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// QuoteString renders value as a string literal.
func (c *Connector) QuoteString(value string) string {
	return pq.QuoteLiteral(value)
}

// SelectedDatabase returns the database this connection is bound to.
func (c *Connector) SelectedDatabase() string {
	return c.database
}

// SelectDatabase succeeds only for the current database: a PostgreSQL
// connection cannot switch databases.
func (c *Connector) SelectDatabase(name string) error {
	if name != c.database {
		return fmt.Errorf("cannot change database from %q to %q on an open connection; open a new connection", c.database, name)
	}
	return nil
}

// Version returns the server version string, e.g. "17.2".
func (c *Connector) Version(ctx context.Context) (string, error) {
	rs, err := c.Query(ctx, "SHOW server_version")
	if err != nil {
		return "", err
	}
	v := asString(rs.Value())
	if i := strings.IndexByte(v, ' '); i > 0 {
		v = v[:i]
	}
	return v, nil
}

// Begin starts a transaction on the pinned connection.
func (c *Connector) Begin(ctx context.Context) error {
	_, err := c.Exec(ctx, "BEGIN")
	return err
}

// Commit commits the open transaction.
func (c *Connector) Commit(ctx context.Context) error {
	_, err := c.Exec(ctx, "COMMIT")
	return err
}

// Rollback aborts the open transaction.
func (c *Connector) Rollback(ctx context.Context) error {
	_, err := c.Exec(ctx, "ROLLBACK")
	return err
}

// Savepoint creates a named savepoint inside the open transaction.
func (c *Connector) Savepoint(ctx context.Context, name string) error {
	_, err := c.Exec(ctx, "SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}

// RollbackTo rolls back to a savepoint, keeping the transaction open.
func (c *Connector) RollbackTo(ctx context.Context, name string) error {
	_, err := c.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}

// Release discards a savepoint.
func (c *Connector) Release(ctx context.Context, name string) error {
	_, err := c.Exec(ctx, "RELEASE SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}
