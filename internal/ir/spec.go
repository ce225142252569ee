// Package ir holds the declared table model and the live catalog facts it
// is reconciled against.
package ir

// FieldKind is the portable type of a declared column.
type FieldKind string

const (
	KindBool     FieldKind = "bool"
	KindInt      FieldKind = "int"
	KindBigInt   FieldKind = "bigint"
	KindDecimal  FieldKind = "decimal"
	KindEnum     FieldKind = "enum"
	KindVarchar  FieldKind = "varchar"
	KindText     FieldKind = "text"
	KindDate     FieldKind = "date"
	KindTime     FieldKind = "time"
	KindDatetime FieldKind = "datetime"
	KindFloat    FieldKind = "float"
	// KindRaw passes Precision through as the physical type. Produced when
	// describing columns that have no portable equivalent.
	KindRaw FieldKind = "raw"
)

// IndexKind is the kind of a declared index.
type IndexKind string

const (
	IndexPlain    IndexKind = "index"
	IndexBtree    IndexKind = "btree"
	IndexUnique   IndexKind = "unique"
	IndexHash     IndexKind = "hash"
	IndexFulltext IndexKind = "fulltext"
)

// DefaultPrimaryKey is the auto-increment key column of every table.
const DefaultPrimaryKey = "ID"

// TableSpec is a declared table. It is supplied fresh for every run and
// never modified while being reconciled.
type TableSpec struct {
	Name       string       `yaml:"name" json:"name"`
	PrimaryKey string       `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	Fields     []FieldSpec  `yaml:"fields" json:"fields"`
	Indexes    []IndexSpec  `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	Options    TableOptions `yaml:"options,omitempty" json:"options,omitempty"`
}

// FieldSpec is a declared column.
type FieldSpec struct {
	Name string    `yaml:"name" json:"name"`
	Kind FieldKind `yaml:"type" json:"type"`
	// Precision is "p" or "p,s" for decimal and the length for varchar.
	Precision string   `yaml:"precision,omitempty" json:"precision,omitempty"`
	Values    []string `yaml:"values,omitempty" json:"values,omitempty"`
	// Default is the declared default in portable form. For enums the
	// empty string means no default.
	Default       string `yaml:"default,omitempty" json:"default,omitempty"`
	Array         bool   `yaml:"array,omitempty" json:"array,omitempty"`
	NotNull       bool   `yaml:"not_null,omitempty" json:"not_null,omitempty"`
	AutoIncrement bool   `yaml:"auto_increment,omitempty" json:"auto_increment,omitempty"`
}

// IndexSpec is a declared index.
type IndexSpec struct {
	Name string    `yaml:"name" json:"name"`
	Kind IndexKind `yaml:"type,omitempty" json:"type,omitempty"`
	// Columns are the key columns, or the source columns of a fulltext
	// index. Entries containing parentheses are kept as expressions.
	Columns    []string `yaml:"columns" json:"columns"`
	FillFactor int      `yaml:"fillfactor,omitempty" json:"fillfactor,omitempty"`
	Where      string   `yaml:"where,omitempty" json:"where,omitempty"`
}

// TableOptions carries engine-specific placement and layout.
type TableOptions struct {
	Tablespace *Tablespace  `yaml:"tablespace,omitempty" json:"tablespace,omitempty"`
	Partitions []Partition  `yaml:"partitions,omitempty" json:"partitions,omitempty"`
	Cluster    string       `yaml:"cluster,omitempty" json:"cluster,omitempty"`
	// Extra is appended verbatim to CREATE TABLE.
	Extra string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Tablespace places a table on a named tablespace, created at Location
// when it does not exist yet.
type Tablespace struct {
	Name     string `yaml:"name" json:"name"`
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
}

// Partition is an inheritance child receiving the rows for which
// Condition holds. Condition is written against NEW, e.g. NEW."ID" < 1000.
type Partition struct {
	Name      string `yaml:"name" json:"name"`
	Condition string `yaml:"condition" json:"condition"`
	// Tablespace overrides the parent's tablespace for this child.
	Tablespace string `yaml:"tablespace,omitempty" json:"tablespace,omitempty"`
}

// Key returns the primary key column, defaulting to ID.
func (t *TableSpec) Key() string {
	if t.PrimaryKey == "" {
		return DefaultPrimaryKey
	}
	return t.PrimaryKey
}

// EffectiveFields returns the declared fields with the primary key first.
// An undeclared key becomes an auto-increment bigint.
func (t *TableSpec) EffectiveFields() []FieldSpec {
	key := t.Key()
	out := make([]FieldSpec, 0, len(t.Fields)+1)
	if f, ok := t.Field(key); ok {
		out = append(out, f)
	} else {
		out = append(out, FieldSpec{Name: key, Kind: KindBigInt, AutoIncrement: true, NotNull: true})
	}
	for _, f := range t.Fields {
		if f.Name != key {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the declared field by name.
func (t *TableSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Index returns the declared index by logical name.
func (t *TableSpec) Index(name string) (IndexSpec, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSpec{}, false
}

// FulltextIndexes returns the declared fulltext indexes in order.
func (t *TableSpec) FulltextIndexes() []IndexSpec {
	var out []IndexSpec
	for _, idx := range t.Indexes {
		if idx.Kind == IndexFulltext {
			out = append(out, idx)
		}
	}
	return out
}

// EffectiveKind returns the index kind, treating an empty kind as plain.
func (i IndexSpec) EffectiveKind() IndexKind {
	if i.Kind == "" {
		return IndexPlain
	}
	return i.Kind
}

// RepairValue is the value rows outside the allowed set are coerced to:
// the declared default when it is allowed, otherwise the first value.
func (f FieldSpec) RepairValue() string {
	for _, v := range f.Values {
		if v == f.Default {
			return v
		}
	}
	if len(f.Values) > 0 {
		return f.Values[0]
	}
	return ""
}
