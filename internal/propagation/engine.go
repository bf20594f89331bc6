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

// Package propagation writes configuration nodes and pushes the result
// down the hierarchy, recomputing every affected entity's effective
// configuration inside a single transaction.
package propagation

import (
	"context"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/logctx"
)

// Options tune an Engine. Zero durations and counts fall back to defaults.
type Options struct {
	CacheTTL     time.Duration
	Invalidation effcache.Policy
	// PreserveLocalOverrides is the mode used by read paths that have no
	// request to take it from.
	PreserveLocalOverrides bool
	// ServeStale returns the last cached value when recomputing fails.
	ServeStale  bool
	Concurrency int
	Clock       effcache.Clock
}

func DefaultOptions() Options {
	return Options{
		CacheTTL:               effcache.DefaultTTL,
		Invalidation:           effcache.PolicyExpire,
		PreserveLocalOverrides: true,
		ServeStale:             true,
		Concurrency:            8,
		Clock:                  time.Now,
	}
}

type Engine struct {
	backend Backend
	opts    Options
}

func NewEngine(backend Backend, opts Options) *Engine {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = effcache.DefaultTTL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{backend: backend, opts: opts}
}

// Propagate upserts the node described by req, fans out to its
// descendants when asked to, recomputes and caches every affected
// entity's effective configuration, then invalidates their cache keys.
// Either all of it commits or none of it does.
func (e *Engine) Propagate(ctx context.Context, req Request) (Result, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	ref := req.Ref()
	res := Result{
		PropagationID: uuid.New(),
		Level:         req.Level,
		EntityID:      req.EntityID,
		StartedAt:     e.opts.Clock(),
	}
	started := time.Now()

	ctx = logctx.With(ctx,
		slog.String("propagation_id", res.PropagationID.String()),
		slog.String("level", req.Level.String()),
		slog.String("entity_id", req.EntityID),
	)
	logger := logctx.FromContext(ctx)

	ctx, span := tracer.Start(ctx, "hiercfg.propagate", trace.WithAttributes(
		attribute.String("level", req.Level.String()),
		attribute.String("entity_id", req.EntityID),
		attribute.Bool("propagate_to_children", req.PropagateToChildren),
		attribute.Bool("preserve_local_overrides", req.PreserveLocalOverrides),
	))
	defer span.End()

	var (
		ran      bool
		stage    hierarchy.Stage
		affected []hierarchy.EntityRef
		keys     []string
	)
	err := e.backend.InTx(ctx, func(tx Tx) error {
		ran = true
		var err error
		affected, keys, stage, err = e.apply(ctx, tx, req)
		return err
	})
	res.Duration = time.Since(started)

	if err != nil {
		switch {
		case !ran:
			stage = hierarchy.StageBegin
			err = hierarchy.NewStoreError(stage, ref, err)
		case stage == "":
			stage = hierarchy.StageCommit
			err = hierarchy.NewStoreError(stage, ref, err)
		}
		aborted := &hierarchy.TransactionAbortedError{Stage: stage, Err: err}

		span.RecordError(aborted)
		span.SetStatus(codes.Error, "propagation aborted")
		recordPropagation(ctx, req.Level, stage, res.Duration.Seconds(), 0)
		logger.Error("context_propagation_failed",
			slog.String("stage", string(stage)),
			slog.Any("error", err))
		return Result{}, aborted
	}

	res.Affected = affected
	res.AffectedCount = len(affected)
	res.CacheKeysInvalidated = keys

	span.SetAttributes(attribute.Int("affected_count", res.AffectedCount))
	recordPropagation(ctx, req.Level, "", res.Duration.Seconds(), res.AffectedCount)
	logger.Info("context_propagated",
		slog.Int("affected_count", res.AffectedCount),
		slog.Int("cache_keys", len(keys)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// apply is the transactional body of Propagate. It returns the
// descendants reached, the cache keys invalidated and, on failure, the
// stage that failed.
func (e *Engine) apply(ctx context.Context, tx Tx, req Request) ([]hierarchy.EntityRef, []string, hierarchy.Stage, error) {
	ref := req.Ref()
	nodes := tx.Nodes()
	cache := effcache.Instrument(tx.Cache(), "propagate")

	node, err := e.buildNode(ctx, nodes, req)
	if err != nil {
		return nil, nil, hierarchy.StageUpsert, hierarchy.NewStoreError(hierarchy.StageUpsert, ref, err)
	}
	if err := nodes.UpsertNode(ctx, node); err != nil {
		return nil, nil, hierarchy.StageUpsert, hierarchy.NewStoreError(hierarchy.StageUpsert, ref, err)
	}

	seen := mapset.NewThreadUnsafeSet(ref)
	var descendants []hierarchy.EntityRef
	if req.PropagateToChildren {
		children, err := nodes.FanOut(ctx, ref)
		if err != nil {
			return nil, nil, hierarchy.StageFanOut, hierarchy.NewStoreError(hierarchy.StageFanOut, ref, err)
		}
		for _, child := range children {
			if seen.Add(child) {
				descendants = append(descendants, child)
			}
		}
	}
	logctx.FromContext(ctx).Debug("fan-out complete", slog.Int("descendants", len(descendants)))

	targets := append([]hierarchy.EntityRef{ref}, descendants...)
	keys := make([]string, 0, len(targets))
	for _, target := range targets {
		effective, stage, err := e.compute(ctx, tx, target, req.PreserveLocalOverrides)
		if err != nil {
			return nil, nil, stage, err
		}
		if target.Level == hierarchy.LevelAgent {
			if err := tx.Domain().SetAgentContextConfig(ctx, target.EntityID, effective); err != nil {
				return nil, nil, hierarchy.StageWriteBack, hierarchy.NewStoreError(hierarchy.StageWriteBack, target, err)
			}
		}
		key := target.CacheKey()
		if err := cache.Put(ctx, key, effective, e.opts.CacheTTL); err != nil {
			return nil, nil, hierarchy.StageCache, hierarchy.NewStoreError(hierarchy.StageCache, target, err)
		}
		keys = append(keys, key)
	}

	if err := effcache.Invalidate(ctx, cache, e.opts.Invalidation, keys); err != nil {
		return nil, nil, hierarchy.StageExpire, hierarchy.NewStoreError(hierarchy.StageExpire, ref, err)
	}
	return descendants, keys, "", nil
}

// buildNode carries over metadata and parent from the stored node unless
// the request replaces them.
func (e *Engine) buildNode(ctx context.Context, nodes hierarchy.NodeReader, req Request) (hierarchy.ConfigNode, error) {
	node := hierarchy.ConfigNode{
		Level:         req.Level,
		EntityID:      req.EntityID,
		Configuration: req.Configuration.Clone(),
		Overrides:     req.Overrides.Clone(),
	}

	existing, err := nodes.GetNode(ctx, req.Ref())
	switch {
	case err == nil:
		node.Metadata = existing.Metadata
		node.Parent = existing.Parent
		node.CreatedAt = existing.CreatedAt
	case !hierarchy.IsNotFound(err):
		return hierarchy.ConfigNode{}, err
	}

	if req.Metadata != nil {
		node.Metadata = req.Metadata.Clone()
	}
	if req.Parent != nil {
		p := *req.Parent
		node.Parent = &p
	}
	return node, nil
}

// compute resolves ref from the nodes visible to tx. A missing node for
// ref itself contributes nothing; a missing project or agent in the
// domain model is a NotFoundError.
func (e *Engine) compute(ctx context.Context, tx Tx, ref hierarchy.EntityRef, preserve bool) (hierarchy.Config, hierarchy.Stage, error) {
	anc, err := tx.Domain().Ancestry(ctx, ref)
	if err != nil {
		return hierarchy.Config{}, hierarchy.StageAncestry, hierarchy.NewStoreError(hierarchy.StageAncestry, ref, err)
	}
	chain, err := hierarchy.GetChain(ctx, tx.Nodes(), ref, anc)
	if err != nil && !hierarchy.IsNotFound(err) {
		return hierarchy.Config{}, hierarchy.StageChain, hierarchy.NewStoreError(hierarchy.StageChain, ref, err)
	}
	return hierarchy.Resolve(chain, ref.Level, preserve), "", nil
}
