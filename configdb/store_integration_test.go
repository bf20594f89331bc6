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

//go:build integration

package configdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/hiercfg/configdb"
	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/propagation"
	"github.com/cardinalhq/hiercfg/testhelpers"
)

func agent(id string) hierarchy.EntityRef { return hierarchy.Ref(hierarchy.LevelAgent, id) }

func loadDomain(t *testing.T, store *configdb.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.UpsertClient(ctx, hierarchy.Client{ID: "C1", Name: "Acme"}))
	require.NoError(t, store.UpsertClient(ctx, hierarchy.Client{ID: "C2"}))
	require.NoError(t, store.UpsertProject(ctx, hierarchy.Project{ID: "P1", ClientID: "C1"}))
	require.NoError(t, store.UpsertProject(ctx, hierarchy.Project{ID: "P2", ClientID: "C2"}))
	require.NoError(t, store.UpsertAgent(ctx, hierarchy.Agent{ID: "A1", ClientID: "C1", ProjectID: "P1"}))
	require.NoError(t, store.UpsertAgent(ctx, hierarchy.Agent{ID: "A2", ClientID: "C1", ProjectID: "P1"}))
	require.NoError(t, store.UpsertAgent(ctx, hierarchy.Agent{ID: "A3", ClientID: "C2", ProjectID: "P2"}))
	require.NoError(t, store.UpsertAgent(ctx, hierarchy.Agent{ID: "A9", ClientID: "C1", ProjectID: "P1", Deleted: true}))
}

func TestStore_DomainForeignKeys(t *testing.T) {
	store := testhelpers.NewTestHierDBStore(t)
	ctx := context.Background()

	err := store.UpsertProject(ctx, hierarchy.Project{ID: "P1", ClientID: "nope"})
	assert.True(t, hierarchy.IsNotFound(err), "got %v", err)

	require.NoError(t, store.UpsertClient(ctx, hierarchy.Client{ID: "C1"}))
	err = store.UpsertAgent(ctx, hierarchy.Agent{ID: "A1", ClientID: "C1", ProjectID: "nope"})
	var nf *hierarchy.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, hierarchy.LevelProject, nf.Ref.Level)

	assert.True(t, hierarchy.IsNotFound(store.SoftDelete(ctx, agent("ghost"))))
}

func TestStore_NodesAndFanOut(t *testing.T) {
	store := testhelpers.NewTestHierDBStore(t)
	loadDomain(t, store)
	ctx := context.Background()
	nodes := store.Nodes()

	parent := hierarchy.Ref(hierarchy.LevelProject, "P1")
	n := hierarchy.ConfigNode{
		Level:         hierarchy.LevelAgent,
		EntityID:      "A1",
		Configuration: hierarchy.NewConfig("tone", "formal"),
		Overrides:     hierarchy.NewConfig("lang", "en"),
		Metadata:      hierarchy.NewConfig("owner", "ops"),
		Parent:        &parent,
	}
	require.NoError(t, nodes.UpsertNode(ctx, n))

	got, err := nodes.GetNode(ctx, agent("A1"))
	require.NoError(t, err)
	assert.True(t, n.Configuration.Equal(got.Configuration))
	assert.True(t, n.Overrides.Equal(got.Overrides))
	assert.True(t, n.Metadata.Equal(got.Metadata))
	require.NotNil(t, got.Parent)
	assert.Equal(t, parent, *got.Parent)

	_, err = nodes.GetNode(ctx, agent("A2"))
	assert.True(t, hierarchy.IsNotFound(err))

	many, err := nodes.GetNodes(ctx, []hierarchy.EntityRef{agent("A1"), agent("A2"), hierarchy.GlobalRef()})
	require.NoError(t, err)
	assert.Len(t, many, 1)

	refs, err := nodes.FanOut(ctx, hierarchy.GlobalRef())
	require.NoError(t, err)
	assert.Len(t, refs, 7, "two clients, two projects, three live agents")

	refs, err = nodes.FanOut(ctx, hierarchy.Ref(hierarchy.LevelClient, "C1"))
	require.NoError(t, err)
	assert.Equal(t, []hierarchy.EntityRef{
		hierarchy.Ref(hierarchy.LevelProject, "P1"), agent("A1"), agent("A2"),
	}, refs)

	refs, err = nodes.FanOut(ctx, agent("A1"))
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestStore_Cache(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := testhelpers.NewTestHierDBStore(t, configdb.WithClock(func() time.Time { return now }))
	ctx := context.Background()
	c := store.Cache()

	_, _, err := c.Get(ctx, "agent:A1")
	assert.ErrorIs(t, err, effcache.ErrMiss)

	require.NoError(t, c.Put(ctx, "agent:A1", hierarchy.NewConfig("lang", "fr"), time.Minute))
	e, fresh, err := c.Get(ctx, "agent:A1")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, int64(0), e.HitCount)
	assert.True(t, e.ExpiresAt.Equal(now.Add(time.Minute)))

	require.NoError(t, c.Put(ctx, "agent:A1", hierarchy.NewConfig("lang", "de"), time.Minute))
	require.NoError(t, c.Expire(ctx, []string{"agent:A1", "agent:unknown"}))
	e, fresh, err = c.Get(ctx, "agent:A1")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, int64(1), e.HitCount)

	require.NoError(t, c.Delete(ctx, []string{"agent:A1"}))
	entries, err := store.CacheEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_PropagateCommitsAndRollsBack(t *testing.T) {
	store := testhelpers.NewTestHierDBStore(t)
	loadDomain(t, store)
	ctx := context.Background()
	engine := propagation.NewEngine(store, propagation.DefaultOptions())

	res, err := engine.Propagate(ctx, propagation.NewRequest(
		hierarchy.Ref(hierarchy.LevelClient, "C1"), hierarchy.Config{}, hierarchy.NewConfig("lang", "fr")))
	require.NoError(t, err)
	assert.Equal(t, 3, res.AffectedCount)

	cfg, err := store.AgentContextConfig(ctx, "A1")
	require.NoError(t, err)
	v, _ := cfg.Get("lang")
	s, _ := v.AsString()
	assert.Equal(t, "fr", s)

	before, err := store.CacheEntries(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.InTx(ctx, func(tx propagation.Tx) error {
		require.NoError(t, tx.Nodes().UpsertNode(ctx, hierarchy.ConfigNode{Level: hierarchy.LevelGlobal, EntityID: hierarchy.GlobalEntityID}))
		require.NoError(t, tx.Cache().Delete(ctx, []string{"agent:A1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Nodes().GetNode(ctx, hierarchy.GlobalRef())
	assert.True(t, hierarchy.IsNotFound(err), "rolled back upsert is not visible")
	after, err := store.CacheEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestStore_UnknownAgentAbortsPropagation(t *testing.T) {
	store := testhelpers.NewTestHierDBStore(t)
	loadDomain(t, store)
	ctx := context.Background()
	engine := propagation.NewEngine(store, propagation.DefaultOptions())

	_, err := engine.Propagate(ctx, propagation.NewRequest(agent("ghost"), hierarchy.NewConfig("x", 1), hierarchy.Config{}))
	var aborted *hierarchy.TransactionAbortedError
	require.True(t, errors.As(err, &aborted), "got %v", err)

	_, err = store.Nodes().GetNode(ctx, agent("ghost"))
	assert.True(t, hierarchy.IsNotFound(err))
}
