// Package identifier derives the physical names of synthesized objects.
//
// Every name produced here is a pure function of its logical inputs, so a
// second reconciliation pass recomputes exactly the names the first pass
// created.
package identifier

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// DefaultLimit is PostgreSQL's NAMEDATALEN-1.
const DefaultLimit = 63

const (
	indexPrefix   = "ix"
	triggerPrefix = "ts"
	shadowPrefix  = "ts_"
	hashPrefixLen = 7
)

// Namer builds bounded identifiers for a given length limit.
type Namer struct {
	Limit int
}

// New returns a Namer for the given limit, falling back to DefaultLimit.
func New(limit int) Namer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Namer{Limit: limit}
}

// Index returns the physical name of the index declared as name on table.
func (n Namer) Index(table, name string) string {
	return n.hashed(indexPrefix, table, name)
}

// Trigger returns the physical name of the full-text maintenance trigger.
// It shares the index hash so the two can be mapped onto each other.
func (n Namer) Trigger(table, name string) string {
	return n.hashed(triggerPrefix, table, name)
}

// ShadowColumn returns the tsvector column backing a fulltext index. The
// name stays readable and is only hashed when it would not fit.
func (n Namer) ShadowColumn(name string) string {
	return Bound(shadowPrefix+name, n.Limit)
}

// Constraint returns the name of the CHECK constraint bound to a column.
func (n Namer) Constraint(table, column string) string {
	return Bound(table+"_"+column+"_check", n.Limit)
}

// PrimaryKey returns the primary key constraint name of table.
func (n Namer) PrimaryKey(table string) string {
	return Bound(table+"_pkey", n.Limit)
}

// PartitionFunction returns the insert-routing function name of a parent table.
func (n Namer) PartitionFunction(table string) string {
	return Bound(table+"_insert_trigger", n.Limit)
}

// PartitionTrigger returns the insert-routing trigger name of a parent table.
func (n Namer) PartitionTrigger(table string) string {
	return Bound(strings.ToLower("trigger_"+table+"_insert"), n.Limit)
}

// LegacyIndexNames lists physical names older tooling used for the same
// logical index. They are dropped when found so a rename does not leave a
// duplicate index behind.
func (n Namer) LegacyIndexNames(table, name string) []string {
	return []string{
		Bound(strings.ToLower("ix_"+table+"_"+name), n.Limit),
		Bound(name, n.Limit),
	}
}

func (n Namer) hashed(prefix, table, name string) string {
	return Bound(prefix+"_"+Hash(table+"_"+name), n.Limit)
}

// Hash returns the lowercase hex md5 of s.
func Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Bound returns name unchanged when it fits in limit bytes. Longer names
// become the first seven hex digits of their md5, an underscore, and as
// much of the tail of name as fits. The tail is cut on a rune boundary.
func Bound(name string, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(name) <= limit {
		return name
	}
	sum := Hash(name)
	if limit <= hashPrefixLen+1 {
		return sum[:min(limit, len(sum))]
	}
	keep := limit - hashPrefixLen - 1
	tail := name[len(name)-keep:]
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	return sum[:hashPrefixLen] + "_" + tail
}
