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

package propagation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/logctx"
)

// Source says where an effective configuration came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceComputed Source = "computed"
	SourceStale    Source = "stale"
)

// Resolution is the effective configuration of one entity.
type Resolution struct {
	Ref        hierarchy.EntityRef `json:"ref"`
	Config     hierarchy.Config    `json:"effective_config"`
	Source     Source              `json:"source"`
	ComputedAt time.Time           `json:"computed_at"`
}

// Effective returns ref's effective configuration, serving a fresh cache
// entry when there is one and recomputing and caching it otherwise.
// No transaction is used.
func (e *Engine) Effective(ctx context.Context, ref hierarchy.EntityRef) (Resolution, error) {
	if err := ref.Validate(); err != nil {
		return Resolution{}, &hierarchy.ValidationError{Err: err}
	}
	logger := logctx.FromContext(ctx)
	cache := effcache.Instrument(e.backend.Cache(), "read")
	key := ref.CacheKey()

	entry, fresh, cacheErr := cache.Get(ctx, key)
	switch {
	case cacheErr == nil && fresh:
		recordResolve(ctx, ref.Level, SourceCache)
		return Resolution{Ref: ref, Config: entry.Value, Source: SourceCache, ComputedAt: entry.ComputedAt}, nil
	case cacheErr != nil && !errors.Is(cacheErr, effcache.ErrMiss):
		logger.Warn("effective config cache read failed",
			slog.String("cache_key", key),
			slog.Any("error", cacheErr))
	}

	effective, _, err := e.compute(ctx, e.backend, ref, e.opts.PreserveLocalOverrides)
	if err != nil {
		if e.opts.ServeStale && cacheErr == nil && !hierarchy.IsNotFound(err) {
			logger.Warn("serving stale effective config",
				slog.String("cache_key", key),
				slog.Any("error", err))
			recordResolve(ctx, ref.Level, SourceStale)
			return Resolution{Ref: ref, Config: entry.Value, Source: SourceStale, ComputedAt: entry.ComputedAt}, nil
		}
		return Resolution{}, err
	}

	now := e.opts.Clock()
	if err := cache.Put(ctx, key, effective, e.opts.CacheTTL); err != nil {
		logger.Warn("effective config cache write failed",
			slog.String("cache_key", key),
			slog.Any("error", err))
	}
	recordResolve(ctx, ref.Level, SourceComputed)
	return Resolution{Ref: ref, Config: effective, Source: SourceComputed, ComputedAt: now}, nil
}

// ResolveMany resolves refs concurrently. Results are in the order of
// refs; the first failure cancels the rest.
func (e *Engine) ResolveMany(ctx context.Context, refs []hierarchy.EntityRef) ([]Resolution, error) {
	out := make([]Resolution, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			r, err := e.Effective(gctx, ref)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreationContext is what a new agent under a project inherits, along
// with the nodes it was merged from. Missing nodes are nil.
type CreationContext struct {
	Global    *hierarchy.ConfigNode `json:"global"`
	Client    *hierarchy.ConfigNode `json:"client"`
	Project   *hierarchy.ConfigNode `json:"project"`
	Effective hierarchy.Config      `json:"effective_config"`
}

// ResolveForCreation merges global, client and project configuration
// without preserve mode, for an agent that does not exist yet.
// projectID may be empty.
func (e *Engine) ResolveForCreation(ctx context.Context, clientID, projectID string) (CreationContext, error) {
	if clientID == "" {
		return CreationContext{}, &hierarchy.ValidationError{Err: errors.New("client_id is required")}
	}
	refs := []hierarchy.EntityRef{
		hierarchy.GlobalRef(),
		hierarchy.Ref(hierarchy.LevelClient, clientID),
	}
	if projectID != "" {
		refs = append(refs, hierarchy.Ref(hierarchy.LevelProject, projectID))
	}

	nodes, err := e.backend.Nodes().GetNodes(ctx, refs)
	if err != nil {
		return CreationContext{}, hierarchy.NewStoreError(hierarchy.StageRead, refs[len(refs)-1], err)
	}

	chain := make(hierarchy.Chain, 0, len(nodes))
	var cc CreationContext
	for _, n := range nodes {
		switch n.Ref() {
		case refs[0]:
			cc.Global = &n
		case refs[1]:
			cc.Client = &n
		default:
			if projectID == "" || n.Ref() != refs[2] {
				continue
			}
			cc.Project = &n
		}
		chain = append(chain, n)
	}
	chain.Sort()
	cc.Effective = hierarchy.Resolve(chain, hierarchy.LevelProject, false)
	return cc, nil
}

// RegisterAgentNode records the node of a new agent with a parent link to
// its project and computes its effective configuration. Nothing below the
// agent exists, so nothing else is touched.
//
// The node is resolved with the engine's PreserveLocalOverrides setting,
// which defaults to true. In that mode req.Configuration is stored on the
// node but does not reach the agent's context_config, because the request
// carries no overrides.
func (e *Engine) RegisterAgentNode(ctx context.Context, req AgentNodeRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	parent := hierarchy.Ref(hierarchy.LevelProject, req.ProjectID)
	metadata := req.Metadata.Clone()
	return e.Propagate(ctx, Request{
		Level:                  hierarchy.LevelAgent,
		EntityID:               req.AgentID,
		Configuration:          req.Configuration,
		Metadata:               &metadata,
		Parent:                 &parent,
		PropagateToChildren:    false,
		PreserveLocalOverrides: e.opts.PreserveLocalOverrides,
	})
}
