package catalog

import "github.com/pgschema/pgreconcile/internal/ir"

// Cache memoises catalog reads for one reconciliation run. Entries are
// kept per table so a mutation only invalidates the table it touched.
type Cache struct {
	tables map[string]*tableEntry
}

type tableEntry struct {
	exists      *bool
	columns     []ir.LiveColumn
	haveColumns bool
	indexes     map[string]ir.LiveIndex
	constraints map[string]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{tables: map[string]*tableEntry{}}
}

// Invalidate forgets everything about table.
func (c *Cache) Invalidate(table string) {
	delete(c.tables, table)
}

// Reset forgets everything.
func (c *Cache) Reset() {
	c.tables = map[string]*tableEntry{}
}

// Len returns the number of tables with cached facts.
func (c *Cache) Len() int {
	return len(c.tables)
}

func (c *Cache) entry(table string) *tableEntry {
	e, ok := c.tables[table]
	if !ok {
		e = &tableEntry{}
		c.tables[table] = e
	}
	return e
}

func (c *Cache) exists(table string) (bool, bool) {
	e, ok := c.tables[table]
	if !ok || e.exists == nil {
		return false, false
	}
	return *e.exists, true
}

func (c *Cache) setExists(table string, v bool) {
	c.entry(table).exists = &v
}

func (c *Cache) columns(table string) ([]ir.LiveColumn, bool) {
	e, ok := c.tables[table]
	if !ok || !e.haveColumns {
		return nil, false
	}
	return e.columns, true
}

func (c *Cache) setColumns(table string, cols []ir.LiveColumn) {
	e := c.entry(table)
	e.columns = cols
	e.haveColumns = true
}

func (c *Cache) indexes(table string) (map[string]ir.LiveIndex, bool) {
	e, ok := c.tables[table]
	if !ok || e.indexes == nil {
		return nil, false
	}
	return e.indexes, true
}

func (c *Cache) setIndexes(table string, idx map[string]ir.LiveIndex) {
	c.entry(table).indexes = idx
}

func (c *Cache) constraint(table, name string) (string, bool) {
	e, ok := c.tables[table]
	if !ok || e.constraints == nil {
		return "", false
	}
	def, ok := e.constraints[name]
	return def, ok
}

func (c *Cache) setConstraint(table, name, def string) {
	e := c.entry(table)
	if e.constraints == nil {
		e.constraints = map[string]string{}
	}
	e.constraints[name] = def
}
