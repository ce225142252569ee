package postgres

import (
	"regexp"
	"strconv"
	"strings"
)

// canonicalTypes maps internal and alias type names onto the spelling
// format_type reports.
var canonicalTypes = map[string]string{
	"int2":        "smallint",
	"int4":        "integer",
	"int":         "integer",
	"int8":        "bigint",
	"float4":      "real",
	"float8":      "double precision",
	"float":       "double precision",
	"bool":        "boolean",
	"varchar":     "character varying",
	"bpchar":      "character",
	"char":        "character",
	"decimal":     "numeric",
	"timestamp":   "timestamp without time zone",
	"timestamptz": "timestamp with time zone",
	"time":        "time without time zone",
	"timetz":      "time with time zone",
	"serial":      "integer",
	"serial4":     "integer",
	"bigserial":   "bigint",
	"serial8":     "bigint",
}

var typeModifier = regexp.MustCompile(`^([a-z_ 0-9]+?)\s*(\(([0-9, ]+)\))?((\[\])*)$`)

// NormalizeType lowercases typ and replaces alias names with the
// canonical spelling, keeping modifiers and array brackets.
func (d *Dialect) NormalizeType(typ string) string {
	typ = strings.ToLower(strings.TrimSpace(typ))
	m := typeModifier.FindStringSubmatch(typ)
	if m == nil {
		return typ
	}
	base := strings.TrimSpace(m[1])
	if c, ok := canonicalTypes[base]; ok {
		base = c
	}
	mods := strings.ReplaceAll(m[3], " ", "")
	if base == "numeric" && mods != "" && !strings.Contains(mods, ",") {
		mods += ",0"
	}
	out := base
	if mods != "" {
		out += "(" + mods + ")"
	}
	return out + m[4]
}

// splitType returns the base name, numeric modifiers and array flag of a
// format_type string.
func splitType(typ string) (base string, mods []int, array bool) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if strings.HasSuffix(typ, "[]") {
		array = true
		typ = strings.TrimSuffix(typ, "[]")
	}
	open := strings.IndexByte(typ, '(')
	if open < 0 {
		return typ, nil, array
	}
	base = strings.TrimSpace(typ[:open])
	inner := strings.TrimSuffix(typ[open+1:], ")")
	for _, part := range strings.Split(inner, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		mods = append(mods, n)
	}
	// "time(3) without time zone" keeps its suffix on the base.
	if close := strings.IndexByte(typ, ')'); close >= 0 && close+1 < len(typ) {
		base += typ[close+1:]
	}
	return base, mods, array
}
