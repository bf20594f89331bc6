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

// Package memstore is an in-process Backend holding nodes, domain
// entities and the effective config cache. Transactions work on a
// private copy of the state that replaces the committed state on commit.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/propagation"
)

// Op names a store operation that a FailFunc can intercept.
type Op string

const (
	OpGetNodes    Op = "get_nodes"
	OpUpsert      Op = "upsert"
	OpFanOut      Op = "fan_out"
	OpAncestry    Op = "ancestry"
	OpWriteBack   Op = "write_back"
	OpCacheGet    Op = "cache_get"
	OpCachePut    Op = "cache_put"
	OpCacheExpire Op = "cache_expire"
	OpCacheDelete Op = "cache_delete"
	OpCommit      Op = "commit"
)

// FailFunc returns a non-nil error to make op on ref fail.
type FailFunc func(op Op, ref hierarchy.EntityRef) error

type agentRow struct {
	hierarchy.Agent
	contextConfig hierarchy.Config
}

type state struct {
	nodes    map[hierarchy.EntityRef]hierarchy.ConfigNode
	clients  map[string]hierarchy.Client
	projects map[string]hierarchy.Project
	agents   map[string]agentRow
}

func newState() *state {
	return &state{
		nodes:    map[hierarchy.EntityRef]hierarchy.ConfigNode{},
		clients:  map[string]hierarchy.Client{},
		projects: map[string]hierarchy.Project{},
		agents:   map[string]agentRow{},
	}
}

func (s *state) clone() *state {
	out := &state{
		nodes:    make(map[hierarchy.EntityRef]hierarchy.ConfigNode, len(s.nodes)),
		clients:  make(map[string]hierarchy.Client, len(s.clients)),
		projects: make(map[string]hierarchy.Project, len(s.projects)),
		agents:   make(map[string]agentRow, len(s.agents)),
	}
	for k, v := range s.nodes {
		out.nodes[k] = v.Clone()
	}
	for k, v := range s.clients {
		out.clients[k] = v
	}
	for k, v := range s.projects {
		out.projects[k] = v
	}
	for k, v := range s.agents {
		v.contextConfig = v.contextConfig.Clone()
		out.agents[k] = v
	}
	return out
}

// Store is safe for concurrent use. Transactions are serialized.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state

	cache *effcache.Memory
	now   effcache.Clock

	failMu sync.RWMutex
	fail   FailFunc
}

var _ propagation.Backend = (*Store)(nil)

type Option func(*Store)

// WithClock sets the clock used for node timestamps and cache expiry.
func WithClock(now effcache.Clock) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithCacheRetention evicts cache entries this long after their last write.
func WithCacheRetention(d time.Duration) Option {
	return func(s *Store) {
		s.cache = effcache.NewMemory(effcache.WithClock(s.clock), effcache.WithRetention(d))
	}
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = effcache.NewMemory(effcache.WithClock(s.clock))
	}
	return s
}

func (s *Store) clock() time.Time {
	return s.now()
}

// Close releases the cache's background resources.
func (s *Store) Close() {
	s.cache.Close()
}

// FailWhen installs fn as the fault hook; nil clears it.
func (s *Store) FailWhen(fn FailFunc) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.fail = fn
}

func (s *Store) check(ctx context.Context, op Op, ref hierarchy.EntityRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.failMu.RLock()
	fn := s.fail
	s.failMu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(op, ref)
}

func (s *Store) autocommit() *txn {
	return &txn{s: s, cache: s.cache}
}

func (s *Store) Nodes() hierarchy.Store { return s.autocommit() }
func (s *Store) Domain() hierarchy.Domain { return s.autocommit() }
func (s *Store) Cache() effcache.Cache { return &failingCache{s: s, next: s.cache} }

// CacheEntries lists every retained cache entry.
func (s *Store) CacheEntries() []effcache.Entry {
	return s.cache.Entries()
}

func (s *Store) InTx(ctx context.Context, fn func(propagation.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	st := s.st.clone()
	s.mu.RUnlock()

	staged := newStagedCache(s.cache, s.now)
	t := &txn{s: s, st: st, cache: &failingCache{s: s, next: staged}}
	if err := fn(t); err != nil {
		return err
	}
	if err := s.check(ctx, OpCommit, hierarchy.EntityRef{}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = st
	staged.publish()
	s.mu.Unlock()
	return nil
}

// UpsertClient, UpsertProject and UpsertAgent load domain entities
// outside of any transaction.
func (s *Store) UpsertClient(_ context.Context, c hierarchy.Client) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.autocommit().write(func(st *state) error {
		st.clients[c.ID] = c
		return nil
	})
}

func (s *Store) UpsertProject(_ context.Context, p hierarchy.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.autocommit().write(func(st *state) error {
		if _, ok := st.clients[p.ClientID]; !ok {
			return &hierarchy.NotFoundError{Ref: hierarchy.Ref(hierarchy.LevelClient, p.ClientID), What: "client"}
		}
		st.projects[p.ID] = p
		return nil
	})
}

func (s *Store) UpsertAgent(_ context.Context, a hierarchy.Agent) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return s.autocommit().write(func(st *state) error {
		if _, ok := st.clients[a.ClientID]; !ok {
			return &hierarchy.NotFoundError{Ref: hierarchy.Ref(hierarchy.LevelClient, a.ClientID), What: "client"}
		}
		if a.ProjectID != "" {
			if _, ok := st.projects[a.ProjectID]; !ok {
				return &hierarchy.NotFoundError{Ref: hierarchy.Ref(hierarchy.LevelProject, a.ProjectID), What: "project"}
			}
		}
		row := st.agents[a.ID]
		row.Agent = a
		st.agents[a.ID] = row
		return nil
	})
}

// SoftDelete flags a client, project or agent as deleted so fan-out
// skips it. The entity's node is left alone.
func (s *Store) SoftDelete(_ context.Context, ref hierarchy.EntityRef) error {
	return s.autocommit().write(func(st *state) error {
		switch ref.Level {
		case hierarchy.LevelClient:
			c, ok := st.clients[ref.EntityID]
			if !ok {
				return &hierarchy.NotFoundError{Ref: ref, What: "client"}
			}
			c.Deleted = true
			st.clients[ref.EntityID] = c
		case hierarchy.LevelProject:
			p, ok := st.projects[ref.EntityID]
			if !ok {
				return &hierarchy.NotFoundError{Ref: ref, What: "project"}
			}
			p.Deleted = true
			st.projects[ref.EntityID] = p
		case hierarchy.LevelAgent:
			a, ok := st.agents[ref.EntityID]
			if !ok {
				return &hierarchy.NotFoundError{Ref: ref, What: "agent"}
			}
			a.Deleted = true
			st.agents[ref.EntityID] = a
		default:
			return &hierarchy.ValidationError{Err: errUnsupportedDelete}
		}
		return nil
	})
}

// AgentContextConfig returns the configuration last written back to the
// agent.
func (s *Store) AgentContextConfig(_ context.Context, agentID string) (hierarchy.Config, error) {
	var out hierarchy.Config
	err := s.autocommit().read(func(st *state) error {
		a, ok := st.agents[agentID]
		if !ok {
			return &hierarchy.NotFoundError{Ref: hierarchy.Ref(hierarchy.LevelAgent, agentID), What: "agent"}
		}
		out = a.contextConfig.Clone()
		return nil
	})
	return out, err
}
