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
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_ZeroValueUsable(t *testing.T) {
	var c Config
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", String("x"))
	assert.Equal(t, 1, c.Len())
}

func TestConfig_SetKeepsPosition(t *testing.T) {
	c := NewConfig("a", 1, "b", 2, "c", 3)
	c.Set("a", Number(10))
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())

	c.Delete("b")
	assert.Equal(t, []string{"a", "c"}, c.Keys())
	c.Delete("nope")
	assert.Equal(t, 2, c.Len())
}

func TestConfig_DeleteLeavesCopyOrder(t *testing.T) {
	c := NewConfig("a", 1, "b", 2, "c", 3)
	shallow := c
	c.Delete("a")
	assert.Equal(t, []string{"b", "c"}, c.Keys())
	assert.Equal(t, []string{"a", "b", "c"}, shallow.Keys())
}

func TestConfig_MergeReplacesAndAppends(t *testing.T) {
	c := NewConfig("a", 1, "b", 2)
	c.Merge(NewConfig("b", 20, "z", 26))

	assert.Equal(t, []string{"a", "b", "z"}, c.Keys())
	v, _ := c.Get("b")
	n, _ := v.AsNumber()
	assert.Equal(t, float64(20), n)
}

func TestConfig_JSONKeepsOrder(t *testing.T) {
	in := `{"zeta":1,"alpha":{"y":true,"x":null},"mid":["a",2.5]}`
	c, err := ParseConfigJSON([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, c.Keys())

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, in, string(out))
}

func TestConfig_JSONEmptyAndNull(t *testing.T) {
	for _, in := range []string{"", "null", "  ", "{}"} {
		c, err := ParseConfigJSON([]byte(in))
		require.NoError(t, err, in)
		assert.True(t, c.IsEmpty(), in)
	}
}

func TestConfig_JSONRejectsNonObject(t *testing.T) {
	for _, in := range []string{`[1,2]`, `"str"`, `42`, `{"a":1} {"b":2}`} {
		_, err := ParseConfigJSON([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestConfig_YAMLKeepsOrder(t *testing.T) {
	in := `
timezone: Europe/Paris
language: fr
default_temperature: 0.7
debug: false
tools:
  - calendar
  - email
limits:
  tokens: 2000
`
	var c Config
	require.NoError(t, yaml.Unmarshal([]byte(in), &c))
	assert.Equal(t, []string{"timezone", "language", "default_temperature", "debug", "tools", "limits"}, c.Keys())

	temp, _ := c.Get("default_temperature")
	n, ok := temp.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 0.7, n)

	dbg, _ := c.Get("debug")
	b, ok := dbg.AsBool()
	require.True(t, ok)
	assert.False(t, b)

	tools, _ := c.Get("tools")
	list, ok := tools.AsList()
	require.True(t, ok)
	assert.Len(t, list, 2)

	limits, _ := c.Get("limits")
	assert.Equal(t, KindMap, limits.Kind())
}

func TestConfig_EqualIgnoresOrder(t *testing.T) {
	a := NewConfig("x", 1, "y", "two")
	b := NewConfig("y", "two", "x", 1)
	assert.True(t, a.Equal(b))

	b.Set("x", Number(2))
	assert.False(t, a.Equal(b))
}

func TestConfig_CloneIsDeep(t *testing.T) {
	a := NewConfig("m", map[string]any{"k": "v"})
	b := a.Clone()
	b.Set("new", Bool(true))
	assert.False(t, a.Has("new"))
}

func TestConfigFromMap_SortsKeys(t *testing.T) {
	c, err := ConfigFromMap(map[string]any{"b": 1, "a": "x", "c": []any{true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())

	_, err = ConfigFromMap(map[string]any{"bad": struct{}{}})
	assert.Error(t, err)
}

func TestValue_InterfaceRoundTrip(t *testing.T) {
	c := NewConfig("s", "x", "n", 3, "b", true, "nil", nil, "l", []any{"a"}, "m", map[string]any{"k": 1.5})
	m := c.ToMap()
	assert.Equal(t, "x", m["s"])
	assert.Equal(t, json.Number("3"), m["n"])
	assert.Equal(t, true, m["b"])
	assert.Nil(t, m["nil"])
	assert.Equal(t, []any{"a"}, m["l"])
	assert.Equal(t, map[string]any{"k": 1.5}, m["m"])
}

func TestConfig_LargeIntegersKeepExactText(t *testing.T) {
	in := `{"tenant_id":9007199254740993,"budget":12345678901234567890,"ratio":0.1}`
	c, err := ParseConfigJSON([]byte(in))
	require.NoError(t, err)

	got := Resolve(Chain{node(LevelGlobal, GlobalEntityID, c, Config{})}, LevelGlobal, false)
	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))

	v, _ := got.Get("tenant_id")
	text, ok := v.NumberText()
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", text)

	assert.False(t, NewConfig("tenant_id", json.Number("9007199254740992")).Equal(NewConfig("tenant_id", json.Number("9007199254740993"))))
	assert.True(t, NewConfig("n", json.Number("1.0")).Equal(NewConfig("n", json.Number("1"))))
	assert.True(t, NewConfig("n", 2).Equal(NewConfig("n", 2.0)))
}

func TestConfig_YAMLIntegersKeepExactText(t *testing.T) {
	var c Config
	require.NoError(t, yaml.Unmarshal([]byte("big: 12345678901234567890\nhuge: 1234567890123456789012345\nsmall: 42\n"), &c))
	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"big":12345678901234567890,"huge":1234567890123456789012345,"small":42}`, string(out))
}

func TestConfig_RejectsNonFiniteNumbers(t *testing.T) {
	for _, in := range []string{"limit: .inf\n", "limit: -.inf\n", "limit: .nan\n"} {
		var c Config
		assert.Error(t, yaml.Unmarshal([]byte(in), &c), in)
	}

	_, err := ValueOf(math.Inf(1))
	assert.Error(t, err)
	_, err = ValueOf(math.NaN())
	assert.Error(t, err)
}
