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
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is an insertion-ordered map of configuration keys to values.
// The zero value is an empty, usable Config. Copies share storage; use
// Clone before mutating a Config you do not own.
type Config struct {
	keys []string
	vals map[string]Value
}

// NewConfig builds a Config from alternating key/value pairs.
// It panics on a non-string key or an unsupported value type, so it is
// meant for literals in code and tests.
func NewConfig(kv ...any) Config {
	if len(kv)%2 != 0 {
		panic("hierarchy.NewConfig: odd number of arguments")
	}
	var c Config
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("hierarchy.NewConfig: key %v is not a string", kv[i]))
		}
		val, err := ValueOf(kv[i+1])
		if err != nil {
			panic(fmt.Sprintf("hierarchy.NewConfig: %v", err))
		}
		c.Set(key, val)
	}
	return c
}

// ConfigFromMap converts a plain map. Go maps are unordered so keys are
// sorted to keep the result deterministic.
func ConfigFromMap(m map[string]any) (Config, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var c Config
	for _, k := range keys {
		val, err := ValueOf(m[k])
		if err != nil {
			return Config{}, fmt.Errorf("key %q: %w", k, err)
		}
		c.Set(k, val)
	}
	return c, nil
}

// ParseConfigJSON decodes a JSON object. Empty input and "null" yield an
// empty Config.
func ParseConfigJSON(data []byte) (Config, error) {
	var c Config
	if err := c.UnmarshalJSON(data); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Len() int {
	return len(c.keys)
}

func (c Config) IsEmpty() bool {
	return len(c.keys) == 0
}

func (c Config) Get(key string) (Value, bool) {
	v, ok := c.vals[key]
	return v, ok
}

// Has reports whether key is present, even with a null value.
func (c Config) Has(key string) bool {
	_, ok := c.vals[key]
	return ok
}

// Keys returns the keys in insertion order.
func (c Config) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Set stores a value. An existing key keeps its position.
func (c *Config) Set(key string, v Value) {
	if c.vals == nil {
		c.vals = make(map[string]Value)
	}
	if _, exists := c.vals[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.vals[key] = v
}

// Delete removes key. The key slice is rebuilt so shallow copies keep
// their order.
func (c *Config) Delete(key string) {
	if _, exists := c.vals[key]; !exists {
		return
	}
	delete(c.vals, key)
	keys := make([]string, 0, len(c.keys)-1)
	for _, k := range c.keys {
		if k != key {
			keys = append(keys, k)
		}
	}
	c.keys = keys
}

// Range calls fn for each entry in order until fn returns false.
func (c Config) Range(fn func(key string, v Value) bool) {
	for _, k := range c.keys {
		if !fn(k, c.vals[k]) {
			return
		}
	}
}

// Merge shallow-merges src into c. Keys in src replace keys of the same
// name in c; nested maps are replaced whole.
func (c *Config) Merge(src Config) {
	for _, k := range src.keys {
		c.Set(k, src.vals[k].Clone())
	}
}

func (c Config) Clone() Config {
	if len(c.keys) == 0 {
		return Config{}
	}
	out := Config{
		keys: make([]string, len(c.keys)),
		vals: make(map[string]Value, len(c.vals)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.vals {
		out.vals[k] = v.Clone()
	}
	return out
}

// Equal compares key sets and values, ignoring order.
func (c Config) Equal(o Config) bool {
	if len(c.keys) != len(o.keys) {
		return false
	}
	for k, v := range c.vals {
		ov, ok := o.vals[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ToMap converts to a plain map, losing key order.
func (c Config) ToMap() map[string]any {
	out := make(map[string]any, len(c.keys))
	for k, v := range c.vals {
		out[k] = v.Interface()
	}
	return out
}

func (c Config) String() string {
	b, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid config: %v>", err)
	}
	return string(b)
}

func (c Config) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := c.vals[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Config) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Config{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("configuration must be a JSON object, got %v", tok)
	}
	parsed, err := decodeJSONObject(dec)
	if err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after configuration object")
	}
	*c = parsed
	return nil
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		*c = Config{}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: configuration must be a mapping", node.Line)
	}
	parsed, err := decodeYAMLMapping(node)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
