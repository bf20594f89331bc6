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

package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/memstore"
	"github.com/cardinalhq/hiercfg/internal/propagation"
)

func TestLoadAndApply(t *testing.T) {
	f, err := Load("testdata/acme.yaml")
	require.NoError(t, err)
	require.Len(t, f.Nodes, 3)
	assert.Equal(t, []string{"language", "tone", "default_temperature", "tools"}, f.Nodes[2].Configuration.Keys())

	store := memstore.New()
	defer store.Close()
	engine := propagation.NewEngine(store, propagation.DefaultOptions())
	ctx := context.Background()

	sum, err := f.Apply(ctx, store, engine)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Clients)
	assert.Equal(t, 3, sum.Projects)
	assert.Equal(t, 4, sum.Agents)
	require.Len(t, sum.Results, 3)
	assert.Equal(t, hierarchy.LevelGlobal, sum.Results[0].Level)
	assert.Equal(t, hierarchy.GlobalEntityID, sum.Results[0].EntityID)
	assert.Equal(t, hierarchy.LevelClient, sum.Results[1].Level)
	assert.Equal(t, hierarchy.LevelAgent, sum.Results[2].Level)

	helpdesk, err := store.AgentContextConfig(ctx, "helpdesk")
	require.NoError(t, err)
	lang, _ := helpdesk.Get("language")
	s, _ := lang.AsString()
	assert.Equal(t, "fr", s)
	tone, _ := helpdesk.Get("tone")
	s, _ = tone.AsString()
	assert.Equal(t, "empathetic", s)

	analyst, err := store.AgentContextConfig(ctx, "analyst")
	require.NoError(t, err)
	lang, _ = analyst.Get("language")
	s, _ = lang.AsString()
	assert.Equal(t, "en", s)

	retired, err := store.AgentContextConfig(ctx, "retired")
	require.NoError(t, err)
	assert.True(t, retired.IsEmpty(), "deleted agents are skipped by fan-out")

	node, err := store.Nodes().GetNode(ctx, hierarchy.Ref(hierarchy.LevelClient, "acme"))
	require.NoError(t, err)
	owner, _ := node.Metadata.Get("owner")
	s, _ = owner.AsString()
	assert.Equal(t, "platform-team", s)
}

func TestParse_Validation(t *testing.T) {
	_, err := Parse([]byte(`
clients:
  - id: c1
  - id: c1
projects:
  - id: p1
agents:
  - client_id: c1
nodes:
  - level: squad
    entity_id: s1
  - level: client
  - level: client
    entity_id: c1
  - level: client
    entity_id: c1
  - level: global
    entity_id: other
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "duplicate client:c1")
	assert.Contains(t, msg, "project p1: client_id is required")
	assert.Contains(t, msg, "agent id is required")
	assert.Contains(t, msg, `unknown level "squad"`)
	assert.Contains(t, msg, "entity_id is required for level client")
	assert.Contains(t, msg, "duplicate node client:c1")
	assert.Contains(t, msg, `global entity_id must be "global"`)
}

func TestParse_RejectsNonMappingConfiguration(t *testing.T) {
	_, err := Parse([]byte(`
nodes:
  - level: global
    configuration: [1, 2]
`))
	assert.Error(t, err)
}

func TestParse_FlagsDefaultTrue(t *testing.T) {
	f, err := Parse([]byte(`
nodes:
  - level: client
    entity_id: c1
  - level: project
    entity_id: p1
    propagate_to_children: false
    preserve_local_overrides: false
`))
	require.NoError(t, err)

	req, err := f.Nodes[0].request()
	require.NoError(t, err)
	assert.True(t, req.PropagateToChildren)
	assert.True(t, req.PreserveLocalOverrides)

	req, err = f.Nodes[1].request()
	require.NoError(t, err)
	assert.False(t, req.PropagateToChildren)
	assert.False(t, req.PreserveLocalOverrides)
}
