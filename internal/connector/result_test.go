package connector

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestResultSet(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"attname", "attnotnull"},
		Records: []Record{
			{"attname": "ID", "attnotnull": true},
			{"attname": []byte("Title"), "attnotnull": "f"},
		},
	}

	if got := rs.NumRecords(); got != 2 {
		t.Errorf("NumRecords() = %d; want 2", got)
	}
	if got := rs.Value(); got != "ID" {
		t.Errorf("Value() = %v; want ID", got)
	}
	if diff := cmp.Diff([]string{"ID", "Title"}, rs.Strings("attname")); diff != "" {
		t.Errorf("Strings() mismatch (-want +got):\n%s", diff)
	}
	if !rs.First().Bool("attnotnull") {
		t.Error("First().Bool() = false; want true")
	}
	if rs.Records[1].Bool("attnotnull") {
		t.Error("Records[1].Bool() = true; want false")
	}
}

func TestEmptyResultSet(t *testing.T) {
	var rs *ResultSet
	if rs.NumRecords() != 0 || rs.First() != nil || rs.Value() != nil {
		t.Error("nil ResultSet should behave as empty")
	}
	empty := &ResultSet{Columns: []string{"x"}}
	if empty.Column("x") != nil {
		t.Error("Column() on empty result should be nil")
	}
}

func TestRecordInt(t *testing.T) {
	rec := Record{"a": int64(7), "b": "12", "c": nil}
	if got := rec.Int("a"); got != 7 {
		t.Errorf("Int(a) = %d; want 7", got)
	}
	if got := rec.Int("b"); got != 12 {
		t.Errorf("Int(b) = %d; want 12", got)
	}
	if got := rec.Int("c"); got != 0 {
		t.Errorf("Int(c) = %d; want 0", got)
	}
	if !rec.IsNull("c") || !rec.IsNull("missing") || rec.IsNull("a") {
		t.Error("IsNull() returned wrong result")
	}
}

func TestStatementErrorFromPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", Message: `check constraint "Page_Status_check" is violated`}
	err := newStatementError(`ALTER TABLE "Page" ADD CONSTRAINT ...`, nil, fmt.Errorf("exec: %w", pgErr))

	if err.Code != "23514" {
		t.Errorf("Code = %q; want 23514", err.Code)
	}
	if err.Message != pgErr.Message {
		t.Errorf("Message = %q; want %q", err.Message, pgErr.Message)
	}
	if !strings.Contains(err.Error(), `ALTER TABLE "Page"`) {
		t.Errorf("Error() = %q; want it to include the statement", err.Error())
	}
	if !errors.Is(err, pgErr) {
		t.Error("StatementError should unwrap to the driver error")
	}
	if !IsStatementError(fmt.Errorf("table Page: %w", err)) {
		t.Error("IsStatementError() = false for wrapped StatementError")
	}
}

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "defaults",
			cfg:  Config{},
			want: "host='localhost' port=5432 dbname='postgres'",
		},
		{
			name: "full",
			cfg: Config{
				Host: "db", Port: 6543, Database: "cms", User: "admin",
				Password: `p'w\d`, SSLMode: "disable", ApplicationName: "pgreconcile",
			},
			want: `host='db' port=6543 dbname='cms' user='admin' password='p\'w\\d' sslmode='disable' application_name='pgreconcile'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Errorf("DSN() = %q; want %q", got, tt.want)
			}
		})
	}
}
