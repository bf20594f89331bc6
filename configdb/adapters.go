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

package configdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

func fkConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func foreignKeyNotFound(err error, ref hierarchy.EntityRef, what string) error {
	if err != nil && isForeignKeyViolation(err) {
		return &hierarchy.NotFoundError{Ref: ref, What: what}
	}
	return err
}

func encodeConfig(c hierarchy.Config) ([]byte, error) {
	return c.MarshalJSON()
}

func nodeFromRow(row ContextHierarchy) (hierarchy.ConfigNode, error) {
	level, err := hierarchy.ParseLevel(row.Level)
	if err != nil {
		return hierarchy.ConfigNode{}, err
	}
	n := hierarchy.ConfigNode{
		Level:     level,
		EntityID:  row.EntityID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if n.Configuration, err = hierarchy.ParseConfigJSON(row.Configuration); err != nil {
		return n, fmt.Errorf("%s configuration: %w", n.Ref(), err)
	}
	if n.Overrides, err = hierarchy.ParseConfigJSON(row.Overrides); err != nil {
		return n, fmt.Errorf("%s overrides: %w", n.Ref(), err)
	}
	if n.Metadata, err = hierarchy.ParseConfigJSON(row.Metadata); err != nil {
		return n, fmt.Errorf("%s metadata: %w", n.Ref(), err)
	}
	if row.ParentLevel != nil && row.ParentEntityID != nil {
		pl, err := hierarchy.ParseLevel(*row.ParentLevel)
		if err != nil {
			return n, fmt.Errorf("%s parent: %w", n.Ref(), err)
		}
		parent := hierarchy.Ref(pl, *row.ParentEntityID)
		n.Parent = &parent
	}
	return n, nil
}

// nodeStore serves hierarchy.Store from the context_hierarchy table.
type nodeStore struct {
	q   *Queries
	now effcache.Clock
}

func (s *nodeStore) GetNode(ctx context.Context, ref hierarchy.EntityRef) (hierarchy.ConfigNode, error) {
	row, err := s.q.GetContextNode(ctx, GetContextNodeParams{Level: ref.Level.String(), EntityID: ref.EntityID})
	if errors.Is(err, pgx.ErrNoRows) {
		return hierarchy.ConfigNode{}, &hierarchy.NotFoundError{Ref: ref}
	}
	if err != nil {
		return hierarchy.ConfigNode{}, err
	}
	return nodeFromRow(row)
}

func (s *nodeStore) GetNodes(ctx context.Context, refs []hierarchy.EntityRef) ([]hierarchy.ConfigNode, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	params := GetContextNodesParams{
		Levels:    make([]string, len(refs)),
		EntityIds: make([]string, len(refs)),
	}
	for i, ref := range refs {
		params.Levels[i] = ref.Level.String()
		params.EntityIds[i] = ref.EntityID
	}
	rows, err := s.q.GetContextNodes(ctx, params)
	if err != nil {
		return nil, err
	}
	out := make([]hierarchy.ConfigNode, 0, len(rows))
	for _, row := range rows {
		n, err := nodeFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *nodeStore) UpsertNode(ctx context.Context, node hierarchy.ConfigNode) error {
	params := UpsertContextNodeParams{
		Level:    node.Level.String(),
		EntityID: node.EntityID,
		Now:      s.now(),
	}
	var err error
	if params.Configuration, err = encodeConfig(node.Configuration); err != nil {
		return err
	}
	if params.Overrides, err = encodeConfig(node.Overrides); err != nil {
		return err
	}
	if params.Metadata, err = encodeConfig(node.Metadata); err != nil {
		return err
	}
	if node.Parent != nil {
		level := node.Parent.Level.String()
		params.ParentLevel = &level
		params.ParentEntityID = &node.Parent.EntityID
	}
	return s.q.UpsertContextNode(ctx, params)
}

func (s *nodeStore) FanOut(ctx context.Context, ref hierarchy.EntityRef) ([]hierarchy.EntityRef, error) {
	var rows []FanOutRow
	var err error
	switch ref.Level {
	case hierarchy.LevelGlobal:
		rows, err = s.q.FanOutFromGlobal(ctx)
	case hierarchy.LevelClient:
		rows, err = s.q.FanOutFromClient(ctx, ref.EntityID)
	case hierarchy.LevelProject:
		var ids []string
		ids, err = s.q.FanOutFromProject(ctx, ref.EntityID)
		for _, id := range ids {
			rows = append(rows, FanOutRow{Level: hierarchy.LevelAgent.String(), EntityID: id})
		}
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]hierarchy.EntityRef, 0, len(rows))
	for _, row := range rows {
		level, err := hierarchy.ParseLevel(row.Level)
		if err != nil {
			return nil, err
		}
		out = append(out, hierarchy.Ref(level, row.EntityID))
	}
	hierarchy.SortRefs(out)
	return out, nil
}

// domainStore serves hierarchy.Domain from the entity tables.
type domainStore struct {
	q *Queries
}

func (d *domainStore) Ancestry(ctx context.Context, ref hierarchy.EntityRef) (hierarchy.Ancestry, error) {
	switch ref.Level {
	case hierarchy.LevelProject:
		clientID, err := d.q.GetProjectClientID(ctx, ref.EntityID)
		if errors.Is(err, pgx.ErrNoRows) {
			return hierarchy.Ancestry{}, &hierarchy.NotFoundError{Ref: ref, What: "project"}
		}
		return hierarchy.Ancestry{ClientID: clientID}, err
	case hierarchy.LevelAgent:
		row, err := d.q.GetAgentAncestry(ctx, ref.EntityID)
		if errors.Is(err, pgx.ErrNoRows) {
			return hierarchy.Ancestry{}, &hierarchy.NotFoundError{Ref: ref, What: "agent"}
		}
		return hierarchy.Ancestry{ClientID: row.ClientID, ProjectID: deref(row.ProjectID)}, err
	}
	return hierarchy.Ancestry{}, nil
}

func (d *domainStore) SetAgentContextConfig(ctx context.Context, agentID string, cfg hierarchy.Config) error {
	raw, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	n, err := d.q.SetAgentContextConfig(ctx, SetAgentContextConfigParams{ContextConfig: raw, ID: agentID})
	if err != nil {
		return err
	}
	if n == 0 {
		return &hierarchy.NotFoundError{Ref: hierarchy.Ref(hierarchy.LevelAgent, agentID), What: "agent"}
	}
	return nil
}

// cacheStore serves effcache.Cache from the config_cache table. Times come
// from the process clock so expiry agrees with the in-memory cache.
type cacheStore struct {
	q   *Queries
	now effcache.Clock
}

func cacheEntryFromRow(row ConfigCache) (effcache.Entry, error) {
	value, err := hierarchy.ParseConfigJSON(row.CachedValue)
	if err != nil {
		return effcache.Entry{}, fmt.Errorf("cache entry %s: %w", row.CacheKey, err)
	}
	return effcache.Entry{
		Key:        row.CacheKey,
		Value:      value,
		ComputedAt: row.ComputedAt,
		ExpiresAt:  row.ExpiresAt,
		HitCount:   row.HitCount,
	}, nil
}

func (c *cacheStore) Get(ctx context.Context, key string) (effcache.Entry, bool, error) {
	row, err := c.q.GetCacheEntry(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return effcache.Entry{}, false, effcache.ErrMiss
	}
	if err != nil {
		return effcache.Entry{}, false, err
	}
	e, err := cacheEntryFromRow(row)
	if err != nil {
		return effcache.Entry{}, false, err
	}
	return e, e.FreshAt(c.now()), nil
}

func (c *cacheStore) Put(ctx context.Context, key string, value hierarchy.Config, ttl time.Duration) error {
	raw, err := encodeConfig(value)
	if err != nil {
		return err
	}
	now := c.now()
	return c.q.PutCacheEntry(ctx, PutCacheEntryParams{
		CacheKey:        key,
		CachedValue:     raw,
		ComputedAt:      now,
		ExpiresAt:       now.Add(ttl),
		CacheTtlSeconds: int32(ttl / time.Second),
	})
}

func (c *cacheStore) Expire(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.q.ExpireCacheEntries(ctx, ExpireCacheEntriesParams{Now: c.now(), CacheKeys: keys})
}

func (c *cacheStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.q.DeleteCacheEntries(ctx, keys)
}
