package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// WhenMultiple is the policy applied when an expression yields more than
// one value where a single value is expected.
type WhenMultiple string

const (
	// WhenMultipleError keeps the first value and reports a cardinality warning.
	WhenMultipleError WhenMultiple = "error"

	// WhenMultipleArray binds the whole list of values to the column.
	WhenMultipleArray WhenMultiple = "array"

	// WhenMultipleUnnest produces one row per value.
	WhenMultipleUnnest WhenMultiple = "unnest"
)

// ValidWhenMultiple reports whether p is a known policy. Empty is valid and
// means WhenMultipleError.
func ValidWhenMultiple(p WhenMultiple) bool {
	switch p {
	case "", WhenMultipleError, WhenMultipleArray, WhenMultipleUnnest:
		return true
	}
	return false
}

// ViewDefinition is the persisted, declarative description of a flat view
// over one resource type.
type ViewDefinition struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	// Resource is the resourceType a document must carry to be processed.
	Resource string `json:"resource,omitempty"`

	// From is the legacy spelling of Resource.
	From string `json:"from,omitempty"`

	// Dialect selects the expression language ("fhirpath" or "jsonpath").
	Dialect string `json:"dialect,omitempty"`

	Constants Constants     `json:"constants,omitempty"`
	Where     []WhereClause `json:"where,omitempty"`
	Select    []ViewNode    `json:"select,omitempty"`
}

// ResourceType returns Resource, falling back to the legacy From key.
func (d ViewDefinition) ResourceType() string {
	if d.Resource != "" {
		return d.Resource
	}
	return d.From
}

// Clone returns a deep copy of the definition.
func (d ViewDefinition) Clone() ViewDefinition {
	out := d
	out.Constants = d.Constants.Clone()
	out.Where = slices.Clone(d.Where)
	out.Select = cloneNodes(d.Select)
	return out
}

// ViewNode is one position in the selection tree. A node is either a leaf
// (Path or Expr) or a composite (Select, optionally with a relationship).
type ViewNode struct {
	Name  string `json:"name,omitempty"`
	Alias string `json:"alias,omitempty"`

	Path string `json:"path,omitempty"`
	Expr string `json:"expr,omitempty"`

	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`

	// Collection is shorthand for WhenMultiple = array.
	Collection bool `json:"collection,omitempty"`

	WhenMultiple WhenMultiple `json:"whenMultiple,omitempty"`

	From          string `json:"from,omitempty"`
	ForEach       string `json:"forEach,omitempty"`
	ForEachOrNull string `json:"forEachOrNull,omitempty"`

	Where  []WhereClause `json:"where,omitempty"`
	Vars   []VarBinding  `json:"vars,omitempty"`
	Select []ViewNode    `json:"select,omitempty"`
}

// Expression returns the leaf expression, preferring Path over Expr.
func (n ViewNode) Expression() string {
	if n.Path != "" {
		return n.Path
	}
	return n.Expr
}

// ExplicitName returns Name, falling back to Alias.
func (n ViewNode) ExplicitName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Alias
}

// Policy returns the effective multiple-value policy.
func (n ViewNode) Policy() WhenMultiple {
	if n.WhenMultiple != "" {
		return n.WhenMultiple
	}
	if n.Collection {
		return WhenMultipleArray
	}
	return WhenMultipleError
}

// IsComposite reports whether the node has children.
func (n ViewNode) IsComposite() bool {
	return n.Select != nil
}

func cloneNodes(nodes []ViewNode) []ViewNode {
	if nodes == nil {
		return nil
	}
	out := make([]ViewNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Where = slices.Clone(n.Where)
		out[i].Vars = slices.Clone(n.Vars)
		out[i].Select = cloneNodes(n.Select)
	}
	return out
}

// VarBinding is one sequential named binding evaluated against the current
// document; later bindings and descendant nodes may reference it.
type VarBinding struct {
	Name         string       `json:"name"`
	Path         string       `json:"path"`
	WhenMultiple WhenMultiple `json:"whenMultiple,omitempty"`
}

// WhereClause is a predicate expression. It decodes from either a bare
// string or an object with a "path" key.
type WhereClause struct {
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *WhereClause) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &w.Path)
	}
	type plain WhereClause
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("where clause: %w", err)
	}
	*w = WhereClause(p)
	return nil
}

// Constant is a literal bound by name into the root scope.
type Constant struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Constants is an ordered list of constants. It decodes from either an
// object ({"name": literal}) or a list of {name, value} / {name, valueX}
// entries.
type Constants []Constant

// Clone returns a deep copy.
func (c Constants) Clone() Constants {
	if c == nil {
		return nil
	}
	out := make(Constants, len(c))
	for i, k := range c {
		out[i] = Constant{Name: k.Name, Value: CloneValue(k.Value)}
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Constants) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}

	var raw any
	if err := DecodeJSON(data, &raw); err != nil {
		return fmt.Errorf("constants: %w", err)
	}

	switch v := raw.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		out := make(Constants, 0, len(keys))
		for _, k := range keys {
			out = append(out, Constant{Name: k, Value: v[k]})
		}
		*c = out
		return nil
	case []any:
		out := make(Constants, 0, len(v))
		for i, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				return fmt.Errorf("constants[%d]: expected object, got %T", i, elem)
			}
			k, err := constantFromObject(obj)
			if err != nil {
				return fmt.Errorf("constants[%d]: %w", i, err)
			}
			out = append(out, k)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("constants: expected object or list, got %T", raw)
	}
}

// constantFromObject accepts {name, value} and the typed {name, valueX} form.
func constantFromObject(obj map[string]any) (Constant, error) {
	name, _ := obj["name"].(string)
	if name == "" {
		return Constant{}, fmt.Errorf("constant name is required")
	}
	if v, ok := obj["value"]; ok {
		return Constant{Name: name, Value: v}, nil
	}
	for k, v := range obj {
		if strings.HasPrefix(k, "value") && len(k) > len("value") {
			return Constant{Name: name, Value: v}, nil
		}
	}
	return Constant{}, fmt.Errorf("constant %q has no value", name)
}

// DecodeJSON unmarshals data into v keeping numbers as json.Number.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return val
	}
}
