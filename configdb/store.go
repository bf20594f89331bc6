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

// Package configdb is the Postgres home of the configuration hierarchy,
// the entities that own it and the shared effective-config cache.
package configdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/propagation"
)

var (
	_ propagation.Backend    = (*Store)(nil)
	_ hierarchy.DomainWriter = (*Store)(nil)
)

// Store provides all functions to execute db queries and transactions
type Store struct {
	*Queries
	connPool *pgxpool.Pool
	now      effcache.Clock
}

type Option func(*Store)

// WithClock sets the clock used for node and cache timestamps.
func WithClock(now effcache.Clock) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new Store
func NewStore(connPool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		connPool: connPool,
		Queries:  New(connPool),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (store *Store) Pool() *pgxpool.Pool {
	return store.connPool
}

func (store *Store) Close() {
	if store.connPool != nil {
		store.connPool.Close()
	}
}

func (store *Store) execTx(ctx context.Context, fn func(*Store) error) (err error) {
	tx, err := store.connPool.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Never use the caller ctx for cleanup as it may be cancelled.
		rbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
	}()

	txStore := &Store{
		connPool: store.connPool,
		Queries:  New(tx),
		now:      store.now,
	}

	if err = fn(txStore); err != nil {
		return err
	}

	commitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = tx.Commit(commitCtx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	committed = true
	return nil
}

// InTx runs fn in one Postgres transaction. Everything fn writes through
// the Tx is committed together or rolled back together.
func (store *Store) InTx(ctx context.Context, fn func(propagation.Tx) error) error {
	return store.execTx(ctx, func(tx *Store) error {
		return fn(tx)
	})
}

func (store *Store) Nodes() hierarchy.Store {
	return &nodeStore{q: store.Queries, now: store.now}
}

func (store *Store) Domain() hierarchy.Domain {
	return &domainStore{q: store.Queries}
}

func (store *Store) Cache() effcache.Cache {
	return &cacheStore{q: store.Queries, now: store.now}
}

// UpsertClient, UpsertProject and UpsertAgent load domain entities.
func (store *Store) UpsertClient(ctx context.Context, c hierarchy.Client) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return store.Queries.UpsertClient(ctx, UpsertClientParams{ID: c.ID, Name: c.Name, Deleted: c.Deleted})
}

func (store *Store) UpsertProject(ctx context.Context, p hierarchy.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := store.Queries.UpsertProject(ctx, UpsertProjectParams{
		ID:       p.ID,
		ClientID: p.ClientID,
		Name:     p.Name,
		Deleted:  p.Deleted,
	})
	return foreignKeyNotFound(err, hierarchy.Ref(hierarchy.LevelClient, p.ClientID), "client")
}

func (store *Store) UpsertAgent(ctx context.Context, a hierarchy.Agent) error {
	if err := a.Validate(); err != nil {
		return err
	}
	err := store.UpsertAgentInstance(ctx, UpsertAgentInstanceParams{
		ID:        a.ID,
		ClientID:  a.ClientID,
		ProjectID: optional(a.ProjectID),
		Name:      a.Name,
		Deleted:   a.Deleted,
	})
	if err != nil && isForeignKeyViolation(err) {
		ref := hierarchy.Ref(hierarchy.LevelClient, a.ClientID)
		if a.ProjectID != "" && fkConstraint(err) == "agent_instances_project_id_fkey" {
			ref = hierarchy.Ref(hierarchy.LevelProject, a.ProjectID)
		}
		return &hierarchy.NotFoundError{Ref: ref, What: ref.Level.String()}
	}
	return err
}

// SoftDelete flags a client, project or agent as deleted so fan-out
// skips it. The entity's node is left alone.
func (store *Store) SoftDelete(ctx context.Context, ref hierarchy.EntityRef) error {
	var (
		n   int64
		err error
	)
	switch ref.Level {
	case hierarchy.LevelClient:
		n, err = store.SoftDeleteClient(ctx, ref.EntityID)
	case hierarchy.LevelProject:
		n, err = store.SoftDeleteProject(ctx, ref.EntityID)
	case hierarchy.LevelAgent:
		n, err = store.SoftDeleteAgentInstance(ctx, ref.EntityID)
	default:
		return &hierarchy.ValidationError{Err: errors.New("only clients, projects and agents can be deleted")}
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return &hierarchy.NotFoundError{Ref: ref, What: ref.Level.String()}
	}
	return nil
}

// AgentContextConfig returns the configuration last written back to the
// agent.
func (store *Store) AgentContextConfig(ctx context.Context, agentID string) (hierarchy.Config, error) {
	raw, err := store.GetAgentContextConfig(ctx, agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return hierarchy.Config{}, &hierarchy.NotFoundError{Ref: hierarchy.Ref(hierarchy.LevelAgent, agentID), What: "agent"}
	}
	if err != nil {
		return hierarchy.Config{}, err
	}
	return hierarchy.ParseConfigJSON(raw)
}

// CacheEntries lists every cache row, ordered by key.
func (store *Store) CacheEntries(ctx context.Context) ([]effcache.Entry, error) {
	rows, err := store.ListCacheEntries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]effcache.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := cacheEntryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
