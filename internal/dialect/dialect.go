// Package dialect defines the engine-specific half of reconciliation: how
// portable fields map to physical columns and how indexes and full-text
// units are spelled. Implementations register themselves by name.
package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/ir"
)

// Physical is the engine form of a declared field.
type Physical struct {
	// Type is the canonical spelling the catalog reports back, used for
	// comparison and ALTER ... TYPE.
	Type string
	// CreateType is used in CREATE TABLE and ADD COLUMN. It differs from
	// Type only for sequence-backed columns.
	CreateType string
	// Default is the DEFAULT expression, or "" for none.
	Default string
	NotNull bool
	// Check lists the allowed values of an emulated enum.
	Check []string
}

// Codec maps between portable fields and physical columns.
type Codec interface {
	ToPhysical(f ir.FieldSpec) Physical
	// ToPortable recovers a field from a live column and the definition of
	// its bound CHECK constraint. degraded is set when the constraint text
	// could not be decoded.
	ToPortable(col ir.LiveColumn, constraintDef string) (f ir.FieldSpec, degraded bool)
	// EnumValues decodes the allowed values of a CHECK definition.
	EnumValues(constraintDef string) ([]string, error)
	// CheckClause renders the CHECK expression for an enum column.
	CheckClause(column string, values []string) string
	// NormalizeDefault reduces a default expression to a comparable value.
	NormalizeDefault(expr string) string
	// NormalizeType reduces a type name to its canonical spelling.
	NormalizeType(typ string) string
}

// FulltextUnit is the shadow column, trigger and index of a fulltext
// index. The three are always created and dropped together.
type FulltextUnit struct {
	ShadowColumn string
	TriggerName  string
	IndexName    string
	// Columns are the source columns fed to the trigger, in order.
	Columns []string
	// Language is the search configuration, e.g. pg_catalog.english.
	Language string

	ShadowColumnDDL string
	AddColumnDDL    string
	DropColumnDDL   string
	TriggerDDL      string
	DropTriggerDDL  string
	IndexDDL        string
	DropIndexDDL    string
	BackfillDDL     string
}

// Synthesizer spells index and trigger DDL.
type Synthesizer interface {
	IndexName(table, name string) string
	PlanIndex(table string, idx ir.IndexSpec) string
	DropIndex(name string) string
	PlanFulltext(table string, idx ir.IndexSpec) FulltextUnit
	// IndexMethod returns the access method an index is expected to have.
	IndexMethod(idx ir.IndexSpec) string
}

// Dialect is a Codec and Synthesizer for one engine.
type Dialect interface {
	Name() string
	Codec
	Synthesizer
}

// Factory builds a dialect for a configuration.
type Factory func(cfg config.Config) Dialect

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a dialect available under name and its aliases.
func Register(factory Factory, name string, aliases ...string) {
	mu.Lock()
	defer mu.Unlock()
	for _, n := range append([]string{name}, aliases...) {
		n = strings.ToLower(n)
		if _, dup := factories[n]; dup {
			panic("dialect: Register called twice for " + n)
		}
		factories[n] = factory
	}
}

// New returns the dialect named by cfg.Dialect.
func New(cfg config.Config) (Dialect, error) {
	mu.RLock()
	factory, ok := factories[strings.ToLower(cfg.Dialect)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (available: %s)", cfg.Dialect, strings.Join(Names(), ", "))
	}
	return factory(cfg), nil
}

// Names lists the registered dialect names and aliases.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
