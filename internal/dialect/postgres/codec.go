package postgres

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pgschema/pgreconcile/internal/dialect"
	"github.com/pgschema/pgreconcile/internal/identifier"
	"github.com/pgschema/pgreconcile/internal/ir"
	"github.com/pgschema/pgreconcile/internal/logger"
)

const (
	enumLength    = 255
	varcharLength = 255
)

// ToPhysical maps a declared field onto its column type, default and
// CHECK values.
func (d *Dialect) ToPhysical(f ir.FieldSpec) dialect.Physical {
	p := dialect.Physical{NotNull: f.NotNull}

	switch f.Kind {
	case ir.KindBool:
		p.Type = "smallint"
		p.Default = "0"
		if truthy(f.Default) {
			p.Default = "1"
		}
	case ir.KindInt, ir.KindBigInt:
		p.Type = "integer"
		if f.Kind == ir.KindBigInt {
			p.Type = "bigint"
		}
		if f.AutoIncrement {
			p.CreateType = "serial"
			if f.Kind == ir.KindBigInt {
				p.CreateType = "bigserial"
			}
			p.NotNull = true
			return p
		}
		p.Default = "0"
		if n, err := strconv.ParseInt(strings.TrimSpace(f.Default), 10, 64); err == nil {
			p.Default = strconv.FormatInt(n, 10)
		}
	case ir.KindDecimal:
		p.Type = "numeric(" + decimalPrecision(f.Precision) + ")"
		if isNumeric(f.Default) {
			p.Default = strings.TrimSpace(f.Default)
		}
	case ir.KindEnum:
		p.Type = fmt.Sprintf("character varying(%d)", enumLength)
		if f.Default != "" {
			p.Default = identifier.Literal(f.Default)
		}
		p.Check = append([]string(nil), f.Values...)
	case ir.KindVarchar:
		n := varcharLength
		if v, err := strconv.Atoi(f.Precision); err == nil && v > 0 {
			n = v
		}
		p.Type = fmt.Sprintf("character varying(%d)", n)
		if f.Default != "" {
			p.Default = identifier.Literal(f.Default)
		}
	case ir.KindText:
		p.Type = "text"
		if f.Default != "" {
			p.Default = identifier.Literal(f.Default)
		}
	case ir.KindDate:
		p.Type = "date"
	case ir.KindTime:
		p.Type = "time without time zone"
	case ir.KindDatetime:
		p.Type = "timestamp without time zone"
	case ir.KindFloat:
		p.Type = "double precision"
		if isNumeric(f.Default) {
			p.Default = strings.TrimSpace(f.Default)
		}
	case ir.KindRaw:
		p.Type = d.NormalizeType(f.Precision)
		if f.Default != "" {
			p.Default = f.Default
		}
	default:
		p.Type = "text"
	}

	if f.Array {
		p.Type += "[]"
		p.Default = ""
	}
	return p
}

// decimalPrecision returns "p,s" with a non-numeric precision replaced by 1.
func decimalPrecision(precision string) string {
	parts := strings.SplitN(precision, ",", 2)
	p, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || p <= 0 {
		return "1,0"
	}
	s := 0
	if len(parts) == 2 {
		if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && v >= 0 && v <= p {
			s = v
		}
	}
	return fmt.Sprintf("%d,%d", p, s)
}

// ToPortable recovers the declared form of a live column.
func (d *Dialect) ToPortable(col ir.LiveColumn, constraintDef string) (ir.FieldSpec, bool) {
	f := ir.FieldSpec{Name: col.Name, NotNull: col.NotNull, Array: col.Array}
	def := d.NormalizeDefault(col.Default)
	base, mods, _ := splitType(col.Type)

	switch base {
	case "smallint":
		f.Kind = ir.KindBool
		f.Default = def
	case "integer", "bigint":
		f.Kind = ir.KindInt
		if base == "bigint" {
			f.Kind = ir.KindBigInt
		}
		if col.HasSequenceDefault() {
			f.AutoIncrement = true
			f.NotNull = true
		} else {
			f.Default = def
		}
	case "numeric":
		f.Kind = ir.KindDecimal
		switch len(mods) {
		case 2:
			f.Precision = fmt.Sprintf("%d,%d", mods[0], mods[1])
		case 1:
			f.Precision = strconv.Itoa(mods[0])
		}
		f.Default = def
	case "character varying":
		if constraintDef != "" {
			values, err := d.EnumValues(constraintDef)
			if err != nil || len(values) == 0 {
				logger.Get().Warn("Could not decode enum constraint; treating column as varchar",
					"column", col.Name, "constraint", constraintDef, "error", err)
				f.Kind = ir.KindVarchar
				if len(mods) > 0 {
					f.Precision = strconv.Itoa(mods[0])
				}
				f.Default = def
				return f, true
			}
			f.Kind = ir.KindEnum
			f.Values = values
			f.Default = def
			return f, false
		}
		f.Kind = ir.KindVarchar
		if len(mods) > 0 {
			f.Precision = strconv.Itoa(mods[0])
		}
		f.Default = def
	case "text":
		f.Kind = ir.KindText
		f.Default = def
	case "date":
		f.Kind = ir.KindDate
	case "time without time zone":
		f.Kind = ir.KindTime
	case "timestamp without time zone":
		f.Kind = ir.KindDatetime
	case "double precision":
		f.Kind = ir.KindFloat
		f.Default = def
	default:
		f.Kind = ir.KindRaw
		f.Precision = strings.TrimSuffix(col.Type, "[]")
		f.Default = col.Default
	}
	if f.Array {
		f.Default = ""
	}
	return f, false
}

var trailingCast = regexp.MustCompile(`(?i)::\s*"?[a-z_][a-z0-9_ ]*"?(\([0-9, ]+\))?(\[\])*\s*$`)

// NormalizeDefault strips casts, wrapping parentheses and literal quotes
// so that 'Draft'::character varying and 'Draft' compare equal.
func (d *Dialect) NormalizeDefault(expr string) string {
	s := strings.TrimSpace(expr)
	for {
		prev := s
		s = strings.TrimSpace(trailingCast.ReplaceAllString(s, ""))
		if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && balanced(s[1:len(s)-1]) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
		if s == prev {
			break
		}
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	if strings.EqualFold(s, "NULL") {
		return ""
	}
	return s
}

// balanced reports whether parentheses in s outside literals pair up.
func balanced(s string) bool {
	depth := 0
	inLiteral := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			inLiteral = !inLiteral
		case inLiteral:
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
