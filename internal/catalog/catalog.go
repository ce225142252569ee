// Package catalog reads the live schema from the PostgreSQL system catalogs.
//
// Every query is scoped to one schema and written with ? placeholders that
// the connector translates. An empty result means "does not exist"; only
// connector failures are returned as errors.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgschema/pgreconcile/internal/connector"
	"github.com/pgschema/pgreconcile/internal/ir"
)

// Querier runs a read-only statement with ? placeholders.
type Querier interface {
	PreparedQuery(ctx context.Context, sql string, params ...any) (*connector.ResultSet, error)
}

// Introspector answers questions about the live schema. Column, index and
// constraint reads go through a per-run Cache that callers invalidate after
// each mutating statement. Not safe for concurrent use.
type Introspector struct {
	q      Querier
	schema string
	cache  *Cache
}

// New returns an Introspector for schema with an empty cache.
func New(q Querier, schema string) *Introspector {
	return &Introspector{q: q, schema: schema, cache: NewCache()}
}

// Schema returns the schema queries are scoped to.
func (i *Introspector) Schema() string {
	return i.schema
}

// SetSchema rescopes the Introspector and drops everything cached.
func (i *Introspector) SetSchema(schema string) {
	i.schema = schema
	i.cache.Reset()
}

// Invalidate drops cached facts about table.
func (i *Introspector) Invalidate(table string) {
	i.cache.Invalidate(table)
}

// Reset drops the whole cache.
func (i *Introspector) Reset() {
	i.cache.Reset()
}

// TableExists reports whether table is a base table in the schema.
func (i *Introspector) TableExists(ctx context.Context, table string) (bool, error) {
	if v, ok := i.cache.exists(table); ok {
		return v, nil
	}
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT 1 AS found
		FROM pg_catalog.pg_tables
		WHERE schemaname = ? AND tablename = ?`, i.schema, table)
	if err != nil {
		return false, err
	}
	found := rs.NumRecords() > 0
	i.cache.setExists(table, found)
	return found, nil
}

// Tables lists the tables of the schema, skipping pg_ and sql_ names.
func (i *Introspector) Tables(ctx context.Context) ([]string, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT tablename
		FROM pg_catalog.pg_tables
		WHERE schemaname = ?
		  AND tablename NOT LIKE 'pg\_%'
		  AND tablename NOT LIKE 'sql\_%'
		ORDER BY tablename`, i.schema)
	if err != nil {
		return nil, err
	}
	return rs.Strings("tablename"), nil
}

// Columns returns the columns of table in ordinal order. A missing table
// has no columns.
func (i *Introspector) Columns(ctx context.Context, table string) ([]ir.LiveColumn, error) {
	if cols, ok := i.cache.columns(table); ok {
		return cols, nil
	}
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT a.attname AS column_name,
		       pg_catalog.format_type(a.atttypid, a.atttypmod) AS data_type,
		       a.attnotnull AS not_null,
		       pg_catalog.pg_get_expr(d.adbin, d.adrelid) AS column_default
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = ? AND c.relname = ? AND c.relkind IN ('r', 'p')
		  AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`, i.schema, table)
	if err != nil {
		return nil, err
	}
	cols := make([]ir.LiveColumn, 0, rs.NumRecords())
	for _, rec := range rs.Records {
		col := ir.LiveColumn{
			Name:    rec.String("column_name"),
			NotNull: rec.Bool("not_null"),
			Default: rec.String("column_default"),
		}
		applyType(&col, rec.String("data_type"))
		cols = append(cols, col)
	}
	i.cache.setColumns(table, cols)
	return cols, nil
}

// applyType fills the type fields of col from a format_type spelling such
// as "numeric(9,2)", "character varying(255)[]" or
// "timestamp(3) without time zone".
func applyType(col *ir.LiveColumn, typ string) {
	col.Type = typ
	base := typ
	for strings.HasSuffix(base, "[]") {
		col.Array = true
		base = strings.TrimSuffix(base, "[]")
	}
	var mods []int
	if open := strings.IndexByte(base, '('); open >= 0 {
		if end := strings.IndexByte(base[open:], ')'); end > 0 {
			for _, part := range strings.Split(base[open+1:open+end], ",") {
				if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
					mods = append(mods, n)
				}
			}
			base = strings.TrimSpace(base[:open] + base[open+end+1:])
			base = strings.Join(strings.Fields(base), " ")
		}
	}
	col.BaseType = base
	switch base {
	case "character varying", "character", "bit", "bit varying":
		if len(mods) > 0 {
			col.Length = mods[0]
		}
	case "numeric":
		if len(mods) > 0 {
			col.Precision = mods[0]
		}
		if len(mods) > 1 {
			col.Scale = mods[1]
		}
	default:
		if len(mods) > 0 {
			col.Precision = mods[0]
		}
	}
}

// Indexes returns the indexes of table keyed by name.
func (i *Introspector) Indexes(ctx context.Context, table string) (map[string]ir.LiveIndex, error) {
	if idx, ok := i.cache.indexes(table); ok {
		return idx, nil
	}
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT ic.relname AS index_name,
		       am.amname AS method,
		       x.indisunique AS is_unique,
		       x.indisprimary AS is_primary,
		       x.indisclustered AS is_clustered,
		       pg_catalog.pg_get_indexdef(x.indexrelid) AS definition,
		       pg_catalog.pg_get_expr(x.indpred, x.indrelid) AS predicate,
		       COALESCE(array_to_string(ic.reloptions, ','), '') AS options
		FROM pg_catalog.pg_index x
		JOIN pg_catalog.pg_class c ON c.oid = x.indrelid
		JOIN pg_catalog.pg_class ic ON ic.oid = x.indexrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_am am ON am.oid = ic.relam
		WHERE n.nspname = ? AND c.relname = ?
		ORDER BY ic.relname`, i.schema, table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ir.LiveIndex, rs.NumRecords())
	for _, rec := range rs.Records {
		idx := ir.LiveIndex{
			Name:       rec.String("index_name"),
			Method:     rec.String("method"),
			Unique:     rec.Bool("is_unique"),
			Primary:    rec.Bool("is_primary"),
			Clustered:  rec.Bool("is_clustered"),
			Definition: rec.String("definition"),
			Where:      rec.String("predicate"),
			FillFactor: fillFactor(rec.String("options")),
		}
		cols, err := indexColumns(idx.Definition)
		if err != nil {
			// Keep the index; a column mismatch later just rebuilds it.
			cols = nil
		}
		idx.Columns = cols
		out[idx.Name] = idx
	}
	i.cache.setIndexes(table, out)
	return out, nil
}

func fillFactor(options string) int {
	for _, opt := range strings.Split(options, ",") {
		k, v, ok := strings.Cut(opt, "=")
		if ok && strings.TrimSpace(k) == "fillfactor" {
			n, _ := strconv.Atoi(strings.TrimSpace(v))
			return n
		}
	}
	return 0
}

// Table reads columns, indexes and tablespace of table. It returns nil
// when the table does not exist.
func (i *Introspector) Table(ctx context.Context, table string) (*ir.LiveTable, error) {
	exists, err := i.TableExists(ctx, table)
	if err != nil || !exists {
		return nil, err
	}
	cols, err := i.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	idx, err := i.Indexes(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read indexes of %s: %w", table, err)
	}
	ts, err := i.TableTablespace(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read tablespace of %s: %w", table, err)
	}
	return &ir.LiveTable{Name: table, Tablespace: ts, Columns: cols, Indexes: idx}, nil
}

// ConstraintDefinition returns the text of CHECK constraint name on
// table, or "" when there is none.
func (i *Introspector) ConstraintDefinition(ctx context.Context, table, name string) (string, error) {
	if def, ok := i.cache.constraint(table, name); ok {
		return def, nil
	}
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT pg_catalog.pg_get_constraintdef(r.oid, true) AS definition
		FROM pg_catalog.pg_constraint r
		JOIN pg_catalog.pg_class c ON c.oid = r.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE r.contype = 'c' AND n.nspname = ? AND c.relname = ? AND r.conname = ?`,
		i.schema, table, name)
	if err != nil {
		return "", err
	}
	def := ""
	if first := rs.First(); first != nil {
		def = first.String("definition")
	}
	i.cache.setConstraint(table, name, def)
	return def, nil
}

// ConstraintExists reports whether a constraint of any kind named name
// exists on table.
func (i *Introspector) ConstraintExists(ctx context.Context, table, name string) (bool, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT 1 AS found
		FROM pg_catalog.pg_constraint r
		JOIN pg_catalog.pg_class c ON c.oid = r.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = ? AND c.relname = ? AND r.conname = ?`,
		i.schema, table, name)
	if err != nil {
		return false, err
	}
	return rs.NumRecords() > 0, nil
}

// CheckConstraints returns the names of the CHECK constraints on table.
func (i *Introspector) CheckConstraints(ctx context.Context, table string) ([]string, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT r.conname
		FROM pg_catalog.pg_constraint r
		JOIN pg_catalog.pg_class c ON c.oid = r.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE r.contype = 'c' AND n.nspname = ? AND c.relname = ?
		ORDER BY r.conname`, i.schema, table)
	if err != nil {
		return nil, err
	}
	return rs.Strings("conname"), nil
}

const triggerQuery = `
		SELECT t.tgargs
		FROM pg_catalog.pg_trigger t
		JOIN pg_catalog.pg_class c ON c.oid = t.tgrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE NOT t.tgisinternal AND n.nspname = ? AND c.relname = ? AND t.tgname = ?`

// TriggerExists reports whether trigger name is defined on table.
func (i *Introspector) TriggerExists(ctx context.Context, table, name string) (bool, error) {
	rs, err := i.q.PreparedQuery(ctx, triggerQuery, i.schema, table, name)
	if err != nil {
		return false, err
	}
	return rs.NumRecords() > 0, nil
}

// TriggerArguments returns the arguments of a tsvector_update_trigger
// trigger without the leading shadow column and search configuration.
func (i *Introspector) TriggerArguments(ctx context.Context, table, name string) ([]string, bool, error) {
	rs, err := i.q.PreparedQuery(ctx, triggerQuery, i.schema, table, name)
	if err != nil {
		return nil, false, err
	}
	first := rs.First()
	if first == nil {
		return nil, false, nil
	}
	args := DecodeTriggerArgs(first["tgargs"])
	if len(args) <= 2 {
		return []string{}, true, nil
	}
	return args[2:], true, nil
}

// TriggerLanguage returns the second argument of a tsvector_update_trigger
// trigger, the search configuration, or "" when it is absent.
func (i *Introspector) TriggerLanguage(ctx context.Context, table, name string) (string, error) {
	rs, err := i.q.PreparedQuery(ctx, triggerQuery, i.schema, table, name)
	if err != nil {
		return "", err
	}
	first := rs.First()
	if first == nil {
		return "", nil
	}
	args := DecodeTriggerArgs(first["tgargs"])
	if len(args) < 2 {
		return "", nil
	}
	return args[1], nil
}

// TableTablespace returns the tablespace table lives in, or "" for the
// database default.
func (i *Introspector) TableTablespace(ctx context.Context, table string) (string, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT COALESCE(ts.spcname, '') AS spcname
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_catalog.pg_tablespace ts ON ts.oid = c.reltablespace
		WHERE n.nspname = ? AND c.relname = ?`, i.schema, table)
	if err != nil {
		return "", err
	}
	if first := rs.First(); first != nil {
		return first.String("spcname"), nil
	}
	return "", nil
}

// Tablespace returns the location of tablespace name and whether it
// exists. Built-in tablespaces report an empty location.
func (i *Introspector) Tablespace(ctx context.Context, name string) (string, bool, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT pg_catalog.pg_tablespace_location(oid) AS location
		FROM pg_catalog.pg_tablespace
		WHERE spcname = ?`, name)
	if err != nil {
		return "", false, err
	}
	first := rs.First()
	if first == nil {
		return "", false, nil
	}
	return first.String("location"), true, nil
}

// FunctionSource returns the body of function name in the schema.
func (i *Introspector) FunctionSource(ctx context.Context, name string) (string, bool, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT p.prosrc
		FROM pg_catalog.pg_proc p
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = ? AND p.proname = ?`, i.schema, name)
	if err != nil {
		return "", false, err
	}
	first := rs.First()
	if first == nil {
		return "", false, nil
	}
	return first.String("prosrc"), true, nil
}

// LanguageExists reports whether procedural language name is installed.
func (i *Introspector) LanguageExists(ctx context.Context, name string) (bool, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT 1 AS found FROM pg_catalog.pg_language WHERE lanname = ?`, name)
	if err != nil {
		return false, err
	}
	return rs.NumRecords() > 0, nil
}

// SchemaExists reports whether schema name exists.
func (i *Introspector) SchemaExists(ctx context.Context, name string) (bool, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT 1 AS found FROM pg_catalog.pg_namespace WHERE nspname = ?`, name)
	if err != nil {
		return false, err
	}
	return rs.NumRecords() > 0, nil
}

// Schemas lists user schemas.
func (i *Introspector) Schemas(ctx context.Context) ([]string, error) {
	rs, err := i.q.PreparedQuery(ctx, `
		SELECT nspname
		FROM pg_catalog.pg_namespace
		WHERE nspname NOT LIKE 'pg\_%'
		  AND nspname <> 'information_schema'
		ORDER BY nspname`)
	if err != nil {
		return nil, err
	}
	return rs.Strings("nspname"), nil
}
