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

package propagation_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/memstore"
	"github.com/cardinalhq/hiercfg/internal/propagation"
)

func TestEffective_RecomputesAfterInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.propagate(t, client("C1"), hierarchy.NewConfig("lang", "fr"), hierarchy.Config{}, true, true)

	f.clock.Advance(time.Second)
	first, err := f.engine.Effective(ctx, agent("A1"))
	require.NoError(t, err)
	assert.Equal(t, propagation.SourceComputed, first.Source)
	assert.Equal(t, "fr", str(t, first.Config, "lang"))
	assert.Equal(t, f.clock.Now(), first.ComputedAt)

	second, err := f.engine.Effective(ctx, agent("A1"))
	require.NoError(t, err)
	assert.Equal(t, propagation.SourceCache, second.Source)
	assert.True(t, first.Config.Equal(second.Config))

	f.clock.Advance(effcache.DefaultTTL)
	third, err := f.engine.Effective(ctx, agent("A1"))
	require.NoError(t, err)
	assert.Equal(t, propagation.SourceComputed, third.Source, "entries go stale after the TTL")
}

func TestEffective_MissingNodesResolveEmpty(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Effective(context.Background(), project("P2"))
	require.NoError(t, err)
	assert.True(t, res.Config.IsEmpty())
}

func TestEffective_UnknownAgent(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Effective(context.Background(), agent("ghost"))
	assert.True(t, hierarchy.IsNotFound(err))
}

func TestEffective_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Effective(context.Background(), hierarchy.Ref(hierarchy.LevelClient, ""))
	var verr *hierarchy.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestEffective_ServeStale(t *testing.T) {
	for _, serveStale := range []bool{true, false} {
		f := newFixture(t, func(o *propagation.Options) { o.ServeStale = serveStale })
		ctx := context.Background()
		f.propagate(t, client("C1"), hierarchy.NewConfig("lang", "fr"), hierarchy.Config{}, true, true)

		f.store.FailWhen(func(op memstore.Op, _ hierarchy.EntityRef) error {
			if op == memstore.OpGetNodes {
				return errors.New("connection refused")
			}
			return nil
		})

		res, err := f.engine.Effective(ctx, agent("A2"))
		if !serveStale {
			require.Error(t, err)
			assert.Equal(t, hierarchy.StageChain, hierarchy.StageOf(err))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, propagation.SourceStale, res.Source)
		assert.Equal(t, "fr", str(t, res.Config, "lang"))
	}
}

func TestEffective_NoStaleEntryFallsThrough(t *testing.T) {
	f := newFixture(t)
	f.store.FailWhen(func(op memstore.Op, _ hierarchy.EntityRef) error {
		if op == memstore.OpGetNodes {
			return errors.New("connection refused")
		}
		return nil
	})
	_, err := f.engine.Effective(context.Background(), agent("A2"))
	var storeErr *hierarchy.StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestResolveMany(t *testing.T) {
	f := newFixture(t, func(o *propagation.Options) {
		o.Concurrency = 2
		o.PreserveLocalOverrides = false
	})
	f.propagate(t, hierarchy.GlobalRef(), hierarchy.NewConfig("lang", "en"), hierarchy.Config{}, true, true)
	f.propagate(t, client("C2"), hierarchy.NewConfig("lang", "es"), hierarchy.Config{}, true, true)

	refs := []hierarchy.EntityRef{agent("A1"), agent("A4"), project("P3"), client("C1"), hierarchy.GlobalRef()}
	got, err := f.engine.ResolveMany(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, got, len(refs))

	want := []string{"en", "es", "es", "en", "en"}
	for i, r := range got {
		assert.Equal(t, refs[i], r.Ref)
		assert.Equal(t, want[i], str(t, r.Config, "lang"), refs[i].String())
	}

	_, err = f.engine.ResolveMany(context.Background(), []hierarchy.EntityRef{agent("A1"), agent("ghost")})
	assert.True(t, hierarchy.IsNotFound(err))
}

func TestResolveForCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.propagate(t, hierarchy.GlobalRef(), hierarchy.NewConfig("lang", "en", "tone", "neutral"), hierarchy.Config{}, false, true)
	f.propagate(t, client("C1"), hierarchy.NewConfig("lang", "fr"), hierarchy.Config{}, false, true)
	f.propagate(t, project("P1"), hierarchy.NewConfig("tone", "formal"), hierarchy.NewConfig("lang", "it"), false, true)

	cc, err := f.engine.ResolveForCreation(ctx, "C1", "P1")
	require.NoError(t, err)
	require.NotNil(t, cc.Global)
	require.NotNil(t, cc.Client)
	require.NotNil(t, cc.Project)
	assert.Equal(t, "P1", cc.Project.EntityID)
	assert.True(t, hierarchy.NewConfig("lang", "it", "tone", "formal").Equal(cc.Effective), "got %s", cc.Effective)

	cc, err = f.engine.ResolveForCreation(ctx, "C1", "P2")
	require.NoError(t, err)
	assert.Nil(t, cc.Project, "a missing project contributes nothing")
	assert.True(t, hierarchy.NewConfig("lang", "fr", "tone", "neutral").Equal(cc.Effective))

	cc, err = f.engine.ResolveForCreation(ctx, "C9", "")
	require.NoError(t, err)
	assert.Nil(t, cc.Client)
	assert.Equal(t, "en", str(t, cc.Effective, "lang"))

	_, err = f.engine.ResolveForCreation(ctx, "", "P1")
	var verr *hierarchy.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRegisterAgentNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertAgent(ctx, hierarchy.Agent{ID: "A6", ClientID: "C1", ProjectID: "P1"}))
	f.propagate(t, project("P1"), hierarchy.NewConfig("lang", "fr"), hierarchy.Config{}, true, true)

	res, err := f.engine.RegisterAgentNode(ctx, propagation.AgentNodeRequest{
		AgentID:       "A6",
		ProjectID:     "P1",
		Configuration: hierarchy.NewConfig("persona", "support"),
		Metadata:      hierarchy.NewConfig("template_id", "tpl-1", "created_from_template", true),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.AffectedCount)
	assert.Equal(t, []string{"agent:A6"}, res.CacheKeysInvalidated)

	node, err := f.store.Nodes().GetNode(ctx, agent("A6"))
	require.NoError(t, err)
	require.NotNil(t, node.Parent)
	assert.Equal(t, project("P1"), *node.Parent)
	assert.Equal(t, "tpl-1", str(t, node.Metadata, "template_id"))
	assert.Equal(t, "fr", str(t, f.contextConfig(t, "A6"), "lang"))
	assert.Equal(t, "support", str(t, node.Configuration, "persona"))
	assert.False(t, f.contextConfig(t, "A6").Has("persona"), "own configuration is skipped when preserving local overrides")

	_, err = f.engine.RegisterAgentNode(ctx, propagation.AgentNodeRequest{AgentID: "A7"})
	var verr *hierarchy.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRegisterAgentNode_WithoutPreserve(t *testing.T) {
	f := newFixture(t, func(o *propagation.Options) { o.PreserveLocalOverrides = false })
	ctx := context.Background()
	require.NoError(t, f.store.UpsertAgent(ctx, hierarchy.Agent{ID: "A6", ClientID: "C1", ProjectID: "P1"}))

	_, err := f.engine.RegisterAgentNode(ctx, propagation.AgentNodeRequest{
		AgentID:       "A6",
		ProjectID:     "P1",
		Configuration: hierarchy.NewConfig("persona", "support"),
	})
	require.NoError(t, err)
	assert.Equal(t, "support", str(t, f.contextConfig(t, "A6"), "persona"))
}

func TestRequest_JSONDefaults(t *testing.T) {
	var req propagation.Request
	require.NoError(t, json.Unmarshal([]byte(`{
		"level": "arka",
		"entity_id": "global",
		"configuration": {"lang": "en"}
	}`), &req))
	assert.Equal(t, hierarchy.LevelGlobal, req.Level)
	assert.True(t, req.PropagateToChildren)
	assert.True(t, req.PreserveLocalOverrides)
	assert.Equal(t, "en", str(t, req.Configuration, "lang"))
	assert.Nil(t, req.Metadata)

	require.NoError(t, json.Unmarshal([]byte(`{
		"level": "client",
		"entity_id": "C1",
		"propagate_to_children": false,
		"preserve_local_overrides": false,
		"metadata": {"owner": "ops"}
	}`), &req))
	assert.False(t, req.PropagateToChildren)
	assert.False(t, req.PreserveLocalOverrides)
	require.NotNil(t, req.Metadata)
	assert.Equal(t, "ops", str(t, *req.Metadata, "owner"))
}
