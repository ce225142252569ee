package ir

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Validate checks the invariants of a declared table.
func (t *TableSpec) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	var errs []error
	fields := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if fields[f.Name] {
			errs = append(errs, fmt.Errorf("table %q: field %q declared more than once", t.Name, f.Name))
			continue
		}
		fields[f.Name] = true
		if err := f.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("table %q: %w", t.Name, err))
		}
	}

	indexes := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if indexes[idx.Name] {
			errs = append(errs, fmt.Errorf("table %q: index %q declared more than once", t.Name, idx.Name))
			continue
		}
		indexes[idx.Name] = true
		if err := idx.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("table %q: %w", t.Name, err))
			continue
		}
		if idx.Kind == IndexFulltext {
			for _, col := range idx.Columns {
				if !fields[col] && col != t.Key() {
					errs = append(errs, fmt.Errorf("table %q: fulltext index %q references unknown field %q", t.Name, idx.Name, col))
				}
			}
		}
	}

	if c := t.Options.Cluster; c != "" && !indexes[c] {
		errs = append(errs, fmt.Errorf("table %q: cluster index %q is not declared", t.Name, c))
	}
	if ts := t.Options.Tablespace; ts != nil && ts.Name == "" {
		errs = append(errs, fmt.Errorf("table %q: tablespace name is required", t.Name))
	}
	for _, p := range t.Options.Partitions {
		if p.Name == "" || strings.TrimSpace(p.Condition) == "" {
			errs = append(errs, fmt.Errorf("table %q: partitions need a name and a condition", t.Name))
		}
	}
	return errors.Join(errs...)
}

var validKinds = []FieldKind{
	KindBool, KindInt, KindBigInt, KindDecimal, KindEnum, KindVarchar,
	KindText, KindDate, KindTime, KindDatetime, KindFloat, KindRaw,
}

// Validate checks the invariants of a declared field.
func (f FieldSpec) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("field name is required")
	}
	if !slices.Contains(validKinds, f.Kind) {
		return fmt.Errorf("field %q: unknown type %q", f.Name, f.Kind)
	}
	switch f.Kind {
	case KindEnum:
		if len(f.Values) == 0 {
			return fmt.Errorf("field %q: enum needs at least one value", f.Name)
		}
		if f.Default != "" && !slices.Contains(f.Values, f.Default) {
			return fmt.Errorf("field %q: default %q is not one of %v", f.Name, f.Default, f.Values)
		}
		if f.Array {
			return fmt.Errorf("field %q: enum columns cannot be arrays", f.Name)
		}
	case KindVarchar:
		if f.Precision != "" {
			if n, err := strconv.Atoi(f.Precision); err != nil || n <= 0 {
				return fmt.Errorf("field %q: invalid varchar length %q", f.Name, f.Precision)
			}
		}
	case KindRaw:
		if f.Precision == "" {
			return fmt.Errorf("field %q: raw type needs the physical type in precision", f.Name)
		}
	}
	if f.AutoIncrement && f.Kind != KindInt && f.Kind != KindBigInt {
		return fmt.Errorf("field %q: auto_increment requires int or bigint", f.Name)
	}
	return nil
}

// Validate checks the invariants of a declared index.
func (i IndexSpec) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("index name is required")
	}
	switch i.EffectiveKind() {
	case IndexPlain, IndexBtree, IndexUnique, IndexHash, IndexFulltext:
	default:
		return fmt.Errorf("index %q: unknown type %q", i.Name, i.Kind)
	}
	if len(i.Columns) == 0 {
		return fmt.Errorf("index %q: at least one column is required", i.Name)
	}
	if i.FillFactor < 0 || i.FillFactor > 100 {
		return fmt.Errorf("index %q: fillfactor %d out of range", i.Name, i.FillFactor)
	}
	return nil
}
