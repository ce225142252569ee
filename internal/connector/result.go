package connector

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Record is one row keyed by column name.
type Record map[string]any

// String returns the column as text. Missing and NULL values are "".
func (r Record) String(column string) string {
	return asString(r[column])
}

// Int returns the column as an integer, or 0 when it is not numeric.
func (r Record) Int(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	}
	n, _ := strconv.ParseInt(asString(r[column]), 10, 64)
	return n
}

// Bool returns the column as a boolean. Accepts native booleans and the
// text forms t/true/1.
func (r Record) Bool(column string) bool {
	switch v := r[column].(type) {
	case bool:
		return v
	case nil:
		return false
	}
	switch asString(r[column]) {
	case "t", "true", "1", "TRUE", "T":
		return true
	}
	return false
}

// IsNull reports whether the column is absent or NULL.
func (r Record) IsNull(column string) bool {
	v, ok := r[column]
	return !ok || v == nil
}

// ResultSet is a fully read query result. Rows are materialised so the
// single connection is free for the next statement.
type ResultSet struct {
	Columns []string
	Records []Record
}

// NumRecords returns the number of rows.
func (rs *ResultSet) NumRecords() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// First returns the first row, or nil when there is none.
func (rs *ResultSet) First() Record {
	if rs.NumRecords() == 0 {
		return nil
	}
	return rs.Records[0]
}

// Value returns the first column of the first row, or nil.
func (rs *ResultSet) Value() any {
	first := rs.First()
	if first == nil || len(rs.Columns) == 0 {
		return nil
	}
	return first[rs.Columns[0]]
}

// Column returns every value of the named column. An empty name selects
// the first column.
func (rs *ResultSet) Column(name string) []any {
	if rs.NumRecords() == 0 {
		return nil
	}
	if name == "" && len(rs.Columns) > 0 {
		name = rs.Columns[0]
	}
	values := make([]any, 0, len(rs.Records))
	for _, rec := range rs.Records {
		values = append(values, rec[name])
	}
	return values
}

// Strings returns the named column as text values.
func (rs *ResultSet) Strings(name string) []string {
	col := rs.Column(name)
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = asString(v)
	}
	return out
}

func readResultSet(rows *sql.Rows) (*ResultSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	rs := &ResultSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make(Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				// Copy: the driver may reuse the buffer.
				rec[col] = append([]byte(nil), b...)
				continue
			}
			rec[col] = values[i]
		}
		rs.Records = append(rs.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
