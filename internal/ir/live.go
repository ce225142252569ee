package ir

// LiveColumn is a column as the catalog reports it.
type LiveColumn struct {
	Name string
	// Type is the format_type spelling, e.g. "character varying(255)".
	Type string
	// BaseType is Type without modifiers or array brackets.
	BaseType  string
	Precision int
	Scale     int
	// Length is the character length of varchar columns, 0 when unbounded.
	Length  int
	NotNull bool
	// Default is the raw default expression, e.g. 'Draft'::character varying.
	Default string
	Array   bool
}

// HasSequenceDefault reports whether the column is fed by a sequence.
func (c LiveColumn) HasSequenceDefault() bool {
	return len(c.Default) >= 8 && c.Default[:8] == "nextval("
}

// LiveIndex is an index as the catalog reports it.
type LiveIndex struct {
	Name   string
	Method string
	Unique bool
	// Primary marks the primary key index.
	Primary bool
	// Columns holds plain column names or expression text per key.
	Columns    []string
	Where      string
	FillFactor int
	Clustered  bool
	Definition string
}

// LiveTable is everything the reconciler reads about one table.
type LiveTable struct {
	Name       string
	Tablespace string
	Columns    []LiveColumn
	Indexes    map[string]LiveIndex
}

// Column returns the live column by name.
func (t *LiveTable) Column(name string) (LiveColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return LiveColumn{}, false
}

// ClusteredIndex returns the name of the clustered index, or "".
func (t *LiveTable) ClusteredIndex() string {
	for name, idx := range t.Indexes {
		if idx.Clustered {
			return name
		}
	}
	return ""
}
