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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(level Level, id string, cfg, overrides Config) ConfigNode {
	return ConfigNode{Level: level, EntityID: id, Configuration: cfg, Overrides: overrides}
}

func fullChain() Chain {
	return Chain{
		node(LevelGlobal, GlobalEntityID, NewConfig("g", "global"), Config{}),
		node(LevelClient, "c1", NewConfig("c", "client"), Config{}),
		node(LevelProject, "p1", NewConfig("p", "project"), Config{}),
		node(LevelAgent, "a1", NewConfig("a", "agent"), Config{}),
	}
}

func TestResolve_EmptyChain(t *testing.T) {
	for _, preserve := range []bool{false, true} {
		got := Resolve(nil, LevelAgent, preserve)
		assert.True(t, got.IsEmpty())
	}
}

func TestResolve_DisjointKeysUnion(t *testing.T) {
	got := Resolve(fullChain(), LevelAgent, false)

	want := NewConfig("g", "global", "c", "client", "p", "project", "a", "agent")
	assert.True(t, want.Equal(got), "got %s", got)
	assert.Equal(t, []string{"g", "c", "p", "a"}, got.Keys())
}

func TestResolve_CloserLevelWins(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, NewConfig("k", "global", "only_global", true), Config{}),
		node(LevelClient, "c1", NewConfig("k", "client"), Config{}),
		node(LevelProject, "p1", NewConfig("k", "project"), Config{}),
	}
	got := Resolve(chain, LevelProject, false)

	v, ok := got.Get("k")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "project", s)
	assert.True(t, got.Has("only_global"))
}

func TestResolve_OverrideBeatsConfigurationAtSameLevel(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, NewConfig("k", "global"), Config{}),
		node(LevelClient, "c1", Config{}, Config{}),
		node(LevelProject, "p1", NewConfig("k", "project-config"), NewConfig("k", "project-override")),
		node(LevelAgent, "a1", NewConfig("other", 1), Config{}),
	}

	for _, preserve := range []bool{false, true} {
		got := Resolve(chain, LevelAgent, preserve)
		v, ok := got.Get("k")
		require.True(t, ok)
		s, _ := v.AsString()
		assert.Equal(t, "project-override", s, "preserve=%v", preserve)
	}
}

func TestResolve_AncestorOverrideBeatsDescendantConfiguration(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, Config{}, NewConfig("k", "forced")),
		node(LevelClient, "c1", NewConfig("k", "client"), Config{}),
	}
	got := Resolve(chain, LevelClient, false)
	v, _ := got.Get("k")
	s, _ := v.AsString()
	assert.Equal(t, "client", s, "descendant configuration merges after ancestor overrides")
}

func TestResolve_PreserveModeSkipsTargetConfiguration(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, NewConfig("k", "global"), Config{}),
		node(LevelClient, "c1", NewConfig("k", "client"), Config{}),
		node(LevelProject, "p1", NewConfig("k", "project", "project_only", "x"), Config{}),
	}

	got := Resolve(chain, LevelProject, true)

	v, ok := got.Get("k")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "client", s, "nearest ancestor wins over the target's own configuration")
	assert.False(t, got.Has("project_only"), "target configuration is dropped in preserve mode")
}

func TestResolve_PreserveModeAppliesLocalOverridesLast(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, Config{}, NewConfig("k", "global-override")),
		node(LevelClient, "c1", NewConfig("k", "client"), NewConfig("k", "client-override")),
		node(LevelProject, "p1", NewConfig("k", "ignored"), NewConfig("k", "local")),
	}

	got := Resolve(chain, LevelProject, true)
	v, _ := got.Get("k")
	s, _ := v.AsString()
	assert.Equal(t, "local", s)
}

func TestResolve_PreserveModeOnlyAffectsTargetLevel(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, NewConfig("g", 1), Config{}),
		node(LevelClient, "c1", NewConfig("c", 2), NewConfig("co", 3)),
		node(LevelProject, "p1", NewConfig("p", 4), Config{}),
	}

	got := Resolve(chain, LevelClient, true)
	assert.True(t, got.Has("g"))
	assert.False(t, got.Has("c"))
	assert.True(t, got.Has("co"))
	assert.True(t, got.Has("p"), "levels other than the target merge normally")
}

func TestResolve_LanguageScenario(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, NewConfig("lang", "en"), Config{}),
		node(LevelClient, "C1", Config{}, NewConfig("lang", "fr")),
		node(LevelProject, "P1", Config{}, Config{}),
		node(LevelAgent, "A1", NewConfig("tone", "formal"), Config{}),
	}

	got := Resolve(chain, LevelAgent, false)
	assert.True(t, NewConfig("lang", "fr", "tone", "formal").Equal(got), "got %s", got)
}

func TestResolve_LanguageScenarioPreserveMode(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, NewConfig("lang", "en"), Config{}),
		node(LevelClient, "C1", Config{}, NewConfig("lang", "fr")),
		node(LevelProject, "P1", Config{}, Config{}),
		node(LevelAgent, "A1", NewConfig("tone", "formal"), NewConfig("lang", "en")),
	}

	got := Resolve(chain, LevelAgent, true)

	lang, ok := got.Get("lang")
	require.True(t, ok)
	s, _ := lang.AsString()
	assert.Equal(t, "en", s, "A1's override is merged last")
	assert.False(t, got.Has("tone"), "A1's configuration is skipped in preserve mode")

	got = Resolve(chain, LevelAgent, false)
	tone, ok := got.Get("tone")
	require.True(t, ok)
	s, _ = tone.AsString()
	assert.Equal(t, "formal", s)
}

func TestResolve_DoesNotMutateChain(t *testing.T) {
	chain := fullChain()
	nested := NewConfig("inner", "v")
	chain[0].Configuration.Set("nested", Map(nested))

	got := Resolve(chain, LevelAgent, false)
	got.Set("g", String("changed"))
	v, _ := got.Get("nested")
	inner, _ := v.AsMap()
	inner.Set("inner", String("changed"))

	orig, _ := chain[0].Configuration.Get("g")
	s, _ := orig.AsString()
	assert.Equal(t, "global", s)

	origNested, _ := chain[0].Configuration.Get("nested")
	m, _ := origNested.AsMap()
	iv, _ := m.Get("inner")
	s, _ = iv.AsString()
	assert.Equal(t, "v", s)
}

func TestResolve_NestedMapsReplacedNotMerged(t *testing.T) {
	chain := Chain{
		node(LevelGlobal, GlobalEntityID, NewConfig("limits", map[string]any{"a": 1, "b": 2}), Config{}),
		node(LevelClient, "c1", NewConfig("limits", map[string]any{"a": 10}), Config{}),
	}
	got := Resolve(chain, LevelClient, false)
	v, _ := got.Get("limits")
	m, ok := v.AsMap()
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, m.Keys())
}
