// Package attr implements the attribute record exchanged between the controller and the
// execution agent: a case-insensitive mapping from attribute name to typed value.
package attr

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	KindUndefined Kind = iota
	KindBool
	KindInt
	KindReal
	KindString
	KindExpr // unparsed expression text
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindExpr:
		return "expr"
	default:
		return "unknown"
	}
}

// Value is a typed attribute value. The zero value is undefined.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Real returns a floating point value.
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// String returns a string literal value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Expr returns an expression value holding unparsed text.
func Expr(text string) Value { return Value{kind: KindExpr, s: text} }

// Kind returns the value's type.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is the undefined value.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// AsString returns the string held by a string literal.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsInt returns v as an integer. Reals are truncated and booleans map to 0/1. Reals
// that are NaN, infinite or outside the int64 range do not convert.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindReal:
		// -2^63 is exact in float64; 2^63 is the first value past MaxInt64.
		if math.IsNaN(v.f) || v.f < math.MinInt64 || v.f >= -math.MinInt64 {
			return 0, false
		}
		return int64(v.f), true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsReal returns v as a float.
func (v Value) AsReal() (float64, bool) {
	switch v.kind {
	case KindReal:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsBool returns v as a boolean. Numbers are true when non-zero.
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindInt:
		return v.i != 0, true
	case KindReal:
		return v.f != 0, true
	default:
		return false, false
	}
}

// Text renders v as expression text. ParseValue(v.Text()) yields an equal value.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return formatReal(v.f)
	case KindString:
		return quote(v.s)
	case KindExpr:
		return v.s
	default:
		return "UNDEFINED"
	}
}

// Equal reports whether two values have the same kind and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindReal:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString, KindExpr:
		return v.s == o.s
	default:
		return true
	}
}

// ParseValue parses literal text. Text that is not a boolean, number, quoted string or
// UNDEFINED is kept as an expression.
func ParseValue(text string) Value {
	t := strings.TrimSpace(text)
	if t == "" {
		return Undefined()
	}
	switch strings.ToLower(t) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "undefined":
		return Undefined()
	}
	if s, ok := unquote(t); ok {
		return String(s)
	}
	if looksNumeric(t) {
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return Int(i)
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return Real(f)
		}
	}
	return Expr(t)
}

func looksNumeric(t string) bool {
	c := t[0]
	if c == '-' || c == '+' {
		if len(t) == 1 {
			return false
		}
		c = t[1]
	}
	return (c >= '0' && c <= '9') || c == '.'
}

func formatReal(f float64) string {
	if math.IsNaN(f) {
		return "real(\"NaN\")"
	}
	if math.IsInf(f, 1) {
		return "real(\"INF\")"
	}
	if math.IsInf(f, -1) {
		return "real(\"-INF\")"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

func unquote(t string) (string, bool) {
	if len(t) < 2 || t[0] != '"' || t[len(t)-1] != '"' {
		return "", false
	}
	body := t[1 : len(t)-1]
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '\\':
			if i+1 >= len(body) {
				return "", false
			}
			i++
			b.WriteByte(body[i])
		case '"':
			// an unescaped quote means this is an expression like "a" + "b"
			return "", false
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), true
}
