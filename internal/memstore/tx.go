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

package memstore

import (
	"context"
	"errors"
	"time"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

var errUnsupportedDelete = errors.New("only clients, projects and agents can be deleted")

// txn serves both hierarchy.Store and hierarchy.Domain. A nil st means
// the committed state is used under the store's locks.
type txn struct {
	s     *Store
	st    *state
	cache effcache.Cache
}

func (t *txn) Nodes() hierarchy.Store { return t }
func (t *txn) Domain() hierarchy.Domain { return t }
func (t *txn) Cache() effcache.Cache { return t.cache }

func (t *txn) read(fn func(*state) error) error {
	if t.st != nil {
		return fn(t.st)
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return fn(t.s.st)
}

func (t *txn) write(fn func(*state) error) error {
	if t.st != nil {
		return fn(t.st)
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	next := t.s.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	t.s.mu.Lock()
	t.s.st = next
	t.s.mu.Unlock()
	return nil
}

func (t *txn) GetNode(ctx context.Context, ref hierarchy.EntityRef) (hierarchy.ConfigNode, error) {
	if err := t.s.check(ctx, OpGetNodes, ref); err != nil {
		return hierarchy.ConfigNode{}, err
	}
	var out hierarchy.ConfigNode
	err := t.read(func(st *state) error {
		n, ok := st.nodes[ref]
		if !ok {
			return &hierarchy.NotFoundError{Ref: ref}
		}
		out = n.Clone()
		return nil
	})
	return out, err
}

func (t *txn) GetNodes(ctx context.Context, refs []hierarchy.EntityRef) ([]hierarchy.ConfigNode, error) {
	for _, ref := range refs {
		if err := t.s.check(ctx, OpGetNodes, ref); err != nil {
			return nil, err
		}
	}
	var out []hierarchy.ConfigNode
	err := t.read(func(st *state) error {
		for _, ref := range refs {
			if n, ok := st.nodes[ref]; ok {
				out = append(out, n.Clone())
			}
		}
		return nil
	})
	return out, err
}

func (t *txn) UpsertNode(ctx context.Context, node hierarchy.ConfigNode) error {
	ref := node.Ref()
	if err := t.s.check(ctx, OpUpsert, ref); err != nil {
		return err
	}
	now := t.s.now()
	return t.write(func(st *state) error {
		n := node.Clone()
		n.CreatedAt = now
		if prev, ok := st.nodes[ref]; ok {
			n.CreatedAt = prev.CreatedAt
		}
		n.UpdatedAt = now
		st.nodes[ref] = n
		return nil
	})
}

func (t *txn) FanOut(ctx context.Context, ref hierarchy.EntityRef) ([]hierarchy.EntityRef, error) {
	if err := t.s.check(ctx, OpFanOut, ref); err != nil {
		return nil, err
	}
	var out []hierarchy.EntityRef
	err := t.read(func(st *state) error {
		switch ref.Level {
		case hierarchy.LevelGlobal:
			for id, c := range st.clients {
				if !c.Deleted {
					out = append(out, hierarchy.Ref(hierarchy.LevelClient, id))
				}
			}
			for id, p := range st.projects {
				if !p.Deleted {
					out = append(out, hierarchy.Ref(hierarchy.LevelProject, id))
				}
			}
			for id, a := range st.agents {
				if !a.Deleted {
					out = append(out, hierarchy.Ref(hierarchy.LevelAgent, id))
				}
			}
		case hierarchy.LevelClient:
			for id, p := range st.projects {
				if !p.Deleted && p.ClientID == ref.EntityID {
					out = append(out, hierarchy.Ref(hierarchy.LevelProject, id))
				}
			}
			for id, a := range st.agents {
				if !a.Deleted && a.ClientID == ref.EntityID {
					out = append(out, hierarchy.Ref(hierarchy.LevelAgent, id))
				}
			}
		case hierarchy.LevelProject:
			for id, a := range st.agents {
				if !a.Deleted && a.ProjectID == ref.EntityID {
					out = append(out, hierarchy.Ref(hierarchy.LevelAgent, id))
				}
			}
		}
		return nil
	})
	hierarchy.SortRefs(out)
	return out, err
}

func (t *txn) Ancestry(ctx context.Context, ref hierarchy.EntityRef) (hierarchy.Ancestry, error) {
	switch ref.Level {
	case hierarchy.LevelGlobal, hierarchy.LevelClient:
		return hierarchy.Ancestry{}, nil
	}
	if err := t.s.check(ctx, OpAncestry, ref); err != nil {
		return hierarchy.Ancestry{}, err
	}
	var anc hierarchy.Ancestry
	err := t.read(func(st *state) error {
		switch ref.Level {
		case hierarchy.LevelProject:
			p, ok := st.projects[ref.EntityID]
			if !ok {
				return &hierarchy.NotFoundError{Ref: ref, What: "project"}
			}
			anc.ClientID = p.ClientID
		case hierarchy.LevelAgent:
			a, ok := st.agents[ref.EntityID]
			if !ok {
				return &hierarchy.NotFoundError{Ref: ref, What: "agent"}
			}
			anc.ClientID = a.ClientID
			anc.ProjectID = a.ProjectID
		}
		return nil
	})
	return anc, err
}

func (t *txn) SetAgentContextConfig(ctx context.Context, agentID string, cfg hierarchy.Config) error {
	ref := hierarchy.Ref(hierarchy.LevelAgent, agentID)
	if err := t.s.check(ctx, OpWriteBack, ref); err != nil {
		return err
	}
	return t.write(func(st *state) error {
		a, ok := st.agents[agentID]
		if !ok {
			return &hierarchy.NotFoundError{Ref: ref, What: "agent"}
		}
		a.contextConfig = cfg.Clone()
		st.agents[agentID] = a
		return nil
	})
}

// stagedCache buffers cache writes made inside a transaction and
// publishes them to the shared cache on commit.
type stagedCache struct {
	base   *effcache.Memory
	now    effcache.Clock
	staged map[string]*effcache.Entry
	order  []string
}

func newStagedCache(base *effcache.Memory, now effcache.Clock) *stagedCache {
	return &stagedCache{base: base, now: now, staged: map[string]*effcache.Entry{}}
}

func (c *stagedCache) lookup(ctx context.Context, key string) (*effcache.Entry, error) {
	if e, ok := c.staged[key]; ok {
		if e == nil {
			return nil, effcache.ErrMiss
		}
		cp := *e
		return &cp, nil
	}
	e, _, err := c.base.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *stagedCache) stage(key string, e *effcache.Entry) {
	if _, ok := c.staged[key]; !ok {
		c.order = append(c.order, key)
	}
	c.staged[key] = e
}

func (c *stagedCache) Get(ctx context.Context, key string) (effcache.Entry, bool, error) {
	e, err := c.lookup(ctx, key)
	if err != nil {
		return effcache.Entry{}, false, err
	}
	e.Value = e.Value.Clone()
	return *e, e.FreshAt(c.now()), nil
}

func (c *stagedCache) Put(ctx context.Context, key string, value hierarchy.Config, ttl time.Duration) error {
	now := c.now()
	e := &effcache.Entry{
		Key:        key,
		Value:      value.Clone(),
		ComputedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	prev, err := c.lookup(ctx, key)
	switch {
	case err == nil:
		e.HitCount = prev.HitCount + 1
	case !errors.Is(err, effcache.ErrMiss):
		return err
	}
	c.stage(key, e)
	return nil
}

func (c *stagedCache) Expire(ctx context.Context, keys []string) error {
	now := c.now()
	for _, key := range keys {
		e, err := c.lookup(ctx, key)
		if errors.Is(err, effcache.ErrMiss) {
			continue
		}
		if err != nil {
			return err
		}
		e.ExpiresAt = now
		c.stage(key, e)
	}
	return nil
}

func (c *stagedCache) Delete(_ context.Context, keys []string) error {
	for _, key := range keys {
		c.stage(key, nil)
	}
	return nil
}

func (c *stagedCache) publish() {
	for _, key := range c.order {
		if e := c.staged[key]; e != nil {
			c.base.Restore(*e)
			continue
		}
		_ = c.base.Delete(context.Background(), []string{key})
	}
}

// failingCache runs the fault hook before each cache operation.
type failingCache struct {
	s    *Store
	next effcache.Cache
}

func refOf(key string) hierarchy.EntityRef {
	ref, _ := hierarchy.ParseCacheKey(key)
	return ref
}

func (c *failingCache) Get(ctx context.Context, key string) (effcache.Entry, bool, error) {
	if err := c.s.check(ctx, OpCacheGet, refOf(key)); err != nil {
		return effcache.Entry{}, false, err
	}
	return c.next.Get(ctx, key)
}

func (c *failingCache) Put(ctx context.Context, key string, value hierarchy.Config, ttl time.Duration) error {
	if err := c.s.check(ctx, OpCachePut, refOf(key)); err != nil {
		return err
	}
	return c.next.Put(ctx, key, value, ttl)
}

func (c *failingCache) Expire(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := c.s.check(ctx, OpCacheExpire, refOf(key)); err != nil {
			return err
		}
	}
	return c.next.Expire(ctx, keys)
}

func (c *failingCache) Delete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := c.s.check(ctx, OpCacheDelete, refOf(key)); err != nil {
			return err
		}
	}
	return c.next.Delete(ctx, keys)
}
