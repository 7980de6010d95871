package attr

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// exprKey marks an expression value in JSON and YAML documents: {"expr": "A && B"}.
const exprKey = "expr"

// MarshalJSON encodes the record as a JSON object. Expressions are encoded as
// {"expr": text} and undefined values as null.
func (r *Record) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, r.Len())
	for _, name := range r.Names() {
		v, _ := r.Lookup(name)
		obj[name] = jsonValue(v)
	}
	return json.Marshal(obj)
}

func jsonValue(v Value) any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindReal:
		text := v.Text()
		if strings.HasPrefix(text, "real(") {
			return map[string]string{exprKey: text}
		}
		return json.Number(text)
	case KindString:
		return v.s
	case KindExpr:
		return map[string]string{exprKey: v.s}
	default:
		return nil
	}
}

// UnmarshalJSON decodes a JSON object produced by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return err
	}
	*r = *New()
	for name, raw := range obj {
		v, err := fromJSON(raw)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		r.Set(name, v)
	}
	return nil
}

func fromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Undefined(), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil && !strings.ContainsAny(x.String(), ".eE") {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, err
		}
		return Real(f), nil
	case map[string]any:
		text, ok := x[exprKey].(string)
		if !ok || len(x) != 1 {
			return Value{}, fmt.Errorf("object values must be {%q: text}", exprKey)
		}
		return Expr(text), nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON value %T", raw)
	}
}

// UnmarshalYAML decodes a YAML mapping. Scalars keep their YAML type; a nested mapping
// with a single "expr" key is an expression.
func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: attribute record must be a mapping", node.Line)
	}
	*r = *New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		v, err := fromYAML(val)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", key.Value, err)
		}
		r.Set(key.Value, v)
	}
	return nil
}

func fromYAML(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			return Undefined(), nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return Value{}, err
			}
			return Bool(b), nil
		case "!!int":
			var i int64
			if err := node.Decode(&i); err != nil {
				return Value{}, err
			}
			return Int(i), nil
		case "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return Value{}, err
			}
			return Real(f), nil
		default:
			return String(node.Value), nil
		}
	case yaml.MappingNode:
		if len(node.Content) == 2 && node.Content[0].Value == exprKey {
			return Expr(node.Content[1].Value), nil
		}
		return Value{}, fmt.Errorf("line %d: mapping values must be {%s: text}", node.Line, exprKey)
	default:
		return Value{}, fmt.Errorf("line %d: unsupported YAML value", node.Line)
	}
}

// LoadFile reads a record from a YAML or JSON file.
func LoadFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec := New()
	if err := yaml.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rec, nil
}

// ParseText parses "Name = expr" lines as produced by Record.String. Blank lines and
// lines starting with '#' are skipped.
func ParseText(text string) (*Record, error) {
	rec := New()
	sc := bufio.NewScanner(strings.NewReader(text))
	line := 0
	for sc.Scan() {
		line++
		l := strings.TrimSpace(sc.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		name, expr, ok := strings.Cut(l, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("line %d: expected Name = expr", line)
		}
		rec.SetExpr(name, expr)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}
