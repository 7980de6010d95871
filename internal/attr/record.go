package attr

import (
	"sort"
	"strings"
)

// Record maps attribute names to values. Names compare case-insensitively and keep the
// spelling they were first assigned with. The zero value is an empty record.
//
// A Record is not safe for concurrent use.
type Record struct {
	names map[string]string // folded name -> spelling
	vals  map[string]Value  // folded name -> value
}

// New returns an empty record.
func New() *Record {
	return &Record{
		names: make(map[string]string),
		vals:  make(map[string]Value),
	}
}

func fold(name string) string { return strings.ToLower(name) }

// Len returns the number of attributes.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.vals)
}

// Lookup returns the value of name.
func (r *Record) Lookup(name string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.vals[fold(name)]
	return v, ok
}

// Has reports whether name is present.
func (r *Record) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// LookupString returns name when it holds a string literal.
func (r *Record) LookupString(name string) (string, bool) {
	v, ok := r.Lookup(name)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// LookupInt returns name when it holds a number.
func (r *Record) LookupInt(name string) (int64, bool) {
	v, ok := r.Lookup(name)
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// LookupBool returns name when it holds a boolean or number.
func (r *Record) LookupBool(name string) (bool, bool) {
	v, ok := r.Lookup(name)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// Set assigns v to name.
func (r *Record) Set(name string, v Value) {
	if r.vals == nil {
		r.names = make(map[string]string)
		r.vals = make(map[string]Value)
	}
	key := fold(name)
	if _, ok := r.names[key]; !ok {
		r.names[key] = name
	}
	r.vals[key] = v
}

// SetString assigns a string literal.
func (r *Record) SetString(name, s string) { r.Set(name, String(s)) }

// SetInt assigns an integer.
func (r *Record) SetInt(name string, i int64) { r.Set(name, Int(i)) }

// SetBool assigns a boolean.
func (r *Record) SetBool(name string, b bool) { r.Set(name, Bool(b)) }

// SetExpr parses text and assigns the result.
func (r *Record) SetExpr(name, text string) { r.Set(name, ParseValue(text)) }

// Remove deletes name and returns its previous value.
func (r *Record) Remove(name string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	key := fold(name)
	v, ok := r.vals[key]
	if ok {
		delete(r.vals, key)
		delete(r.names, key)
	}
	return v, ok
}

// Names returns attribute names in case-insensitive order.
func (r *Record) Names() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.vals))
	for k := range r.vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = r.names[k]
	}
	return names
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := New()
	if r == nil {
		return c
	}
	for k, v := range r.vals {
		c.names[k] = r.names[k]
		c.vals[k] = v
	}
	return c
}

// Update copies every attribute of other into r, overwriting existing values.
func (r *Record) Update(other *Record) {
	if other == nil {
		return
	}
	for k, v := range other.vals {
		r.Set(other.names[k], v)
	}
}

// String renders the record as sorted "Name = expr" lines.
func (r *Record) String() string {
	var b strings.Builder
	for _, name := range r.Names() {
		v, _ := r.Lookup(name)
		b.WriteString(name)
		b.WriteString(" = ")
		b.WriteString(v.Text())
		b.WriteByte('\n')
	}
	return b.String()
}
