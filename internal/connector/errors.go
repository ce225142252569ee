package connector

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConnectionError reports a failure to open or keep the connection. It is
// never recoverable within a run.
type ConnectionError struct {
	Host     string
	Database string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database %q on %s: %v", e.Database, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatementError carries the failing statement and the server's own
// message for diagnostics.
type StatementError struct {
	SQL     string
	Params  []any
	Message string
	// Code is the SQLSTATE, when the server returned one.
	Code string
	Err  error
}

func (e *StatementError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("statement failed: %s (SQLSTATE %s)\n  %s", e.Message, e.Code, e.SQL)
	}
	return fmt.Sprintf("statement failed: %s\n  %s", e.Message, e.SQL)
}

func (e *StatementError) Unwrap() error { return e.Err }

func newStatementError(sql string, params []any, err error) *StatementError {
	se := &StatementError{SQL: sql, Params: params, Message: err.Error(), Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Message = pgErr.Message
		se.Code = pgErr.Code
		if pgErr.Detail != "" {
			se.Message += ": " + pgErr.Detail
		}
	}
	return se
}

// IsStatementError reports whether err wraps a StatementError.
func IsStatementError(err error) bool {
	var se *StatementError
	return errors.As(err, &se)
}
