// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package hierarchy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind identifies which member of the Value union is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is an opaque configuration value. The zero Value is null.
// Nested maps are ordered Configs; they are replaced, never deep-merged.
// Numbers decoded from JSON or YAML keep their literal text, so integers
// beyond float64 precision are written back unchanged.
type Value struct {
	kind Kind
	str  string
	num  float64
	lit  string
	b    bool
	m    *Config
	list []Value
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Map wraps a nested configuration. The Config is cloned.
func Map(c Config) Value {
	clone := c.Clone()
	return Value{kind: KindMap, m: &clone}
}

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// NumberText returns the exact text of a number.
func (v Value) NumberText() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	if v.lit != "" {
		return v.lit, true
	}
	return strconv.FormatFloat(v.num, 'g', -1, 64), true
}

// numberLiteral keeps s verbatim next to its float64 approximation.
func numberLiteral(s string) (Value, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("number %s: %w", s, err)
	}
	return Value{kind: KindNumber, num: f, lit: s}, nil
}

func finiteNumber(f float64) (Value, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Value{}, fmt.Errorf("number %v is not finite", f)
	}
	return Number(f), nil
}

func numbersEqual(a, b Value) bool {
	if a.lit == "" || b.lit == "" {
		return a.num == b.num
	}
	if a.lit == b.lit {
		return true
	}
	x, _, errX := big.ParseFloat(a.lit, 10, 256, big.ToNearestEven)
	y, _, errY := big.ParseFloat(b.lit, 10, 256, big.ToNearestEven)
	if errX != nil || errY != nil {
		return false
	}
	return x.Cmp(y) == 0
}

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsMap() (Config, bool) {
	if v.kind != KindMap || v.m == nil {
		return Config{}, v.kind == KindMap
	}
	return v.m.Clone(), true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, true
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		return Map(v.mapOrEmpty())
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return List(items...)
	}
	return v
}

func (v Value) mapOrEmpty() Config {
	if v.m == nil {
		return Config{}
	}
	return *v.m
}

// Equal compares values structurally. Map key order is ignored.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return numbersEqual(v, o)
	case KindBool:
		return v.b == o.b
	case KindMap:
		a, b := v.mapOrEmpty(), o.mapOrEmpty()
		return a.Equal(b)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts to plain Go values: string, float64, bool, nil,
// map[string]any or []any. Numbers that carry literal text come back as
// json.Number.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.lit != "" {
			return json.Number(v.lit)
		}
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		m := v.mapOrEmpty()
		return m.ToMap()
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

// ValueOf converts a plain Go value into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return finiteNumber(t)
	case float32:
		return finiteNumber(float64(t))
	case int:
		return numberLiteral(strconv.Itoa(t))
	case int32:
		return numberLiteral(strconv.FormatInt(int64(t), 10))
	case int64:
		return numberLiteral(strconv.FormatInt(t, 10))
	case uint:
		return numberLiteral(strconv.FormatUint(uint64(t), 10))
	case uint64:
		return numberLiteral(strconv.FormatUint(t, 10))
	case json.Number:
		return numberLiteral(t.String())
	case Config:
		return Map(t), nil
	case map[string]any:
		c, err := ConfigFromMap(t)
		if err != nil {
			return Value{}, err
		}
		return Map(c), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			val, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = val
		}
		return List(items...), nil
	}
	return Value{}, fmt.Errorf("unsupported configuration value type %T", x)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if v.lit != "" {
			return []byte(v.lit), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindMap:
		m := v.mapOrEmpty()
		return m.MarshalJSON()
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("cannot marshal value of kind %s", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeJSONValue(dec)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			c, err := decodeJSONObject(dec)
			if err != nil {
				return Value{}, err
			}
			return Value{kind: KindMap, m: &c}, nil
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(items...), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	default:
		return ValueOf(t)
	}
}

// decodeJSONObject reads the members of an object whose opening brace has
// already been consumed, keeping key order.
func decodeJSONObject(dec *json.Decoder) (Config, error) {
	var c Config
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Config{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Config{}, fmt.Errorf("expected object key, got %v", keyTok)
		}
		val, err := decodeJSONValue(dec)
		if err != nil {
			return Config{}, err
		}
		c.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := decodeYAMLValue(node)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func decodeYAMLValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeYAMLValue(node.Alias)
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return decodeYAMLValue(node.Content[0])
	case yaml.MappingNode:
		c, err := decodeYAMLMapping(node)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindMap, m: &c}, nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := decodeYAMLValue(child)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return List(items...), nil
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return Null(), nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return Value{}, err
			}
			return Bool(b), nil
		case "!!int":
			n, ok := new(big.Int).SetString(node.Value, 0)
			if !ok {
				return Value{}, fmt.Errorf("line %d: invalid integer %q", node.Line, node.Value)
			}
			return numberLiteral(n.String())
		case "!!float":
			if n, ok := new(big.Int).SetString(node.Value, 10); ok {
				return numberLiteral(n.String())
			}
			var f float64
			if err := node.Decode(&f); err != nil {
				return Value{}, err
			}
			val, err := finiteNumber(f)
			if err != nil {
				return Value{}, fmt.Errorf("line %d: %w", node.Line, err)
			}
			return val, nil
		default:
			return String(node.Value), nil
		}
	}
	return Value{}, fmt.Errorf("line %d: unsupported yaml node", node.Line)
}

func decodeYAMLMapping(node *yaml.Node) (Config, error) {
	var c Config
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return Config{}, fmt.Errorf("line %d: configuration keys must be scalars", keyNode.Line)
		}
		val, err := decodeYAMLValue(valNode)
		if err != nil {
			return Config{}, err
		}
		c.Set(keyNode.Value, val)
	}
	return c, nil
}
