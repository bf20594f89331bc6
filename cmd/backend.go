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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/hiercfg/config"
	"github.com/cardinalhq/hiercfg/configdb"
	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/memstore"
	"github.com/cardinalhq/hiercfg/internal/propagation"
	"github.com/cardinalhq/hiercfg/internal/seed"
)

// backend is what the commands need beyond propagation.Backend. Both the
// Postgres store and the in-memory store provide it.
type backend interface {
	propagation.Backend
	hierarchy.DomainWriter
	SoftDelete(ctx context.Context, ref hierarchy.EntityRef) error
	AgentContextConfig(ctx context.Context, agentID string) (hierarchy.Config, error)
	CacheEntries(ctx context.Context) ([]effcache.Entry, error)
	Close()
}

var (
	_ backend = (*configdb.Store)(nil)
	_ backend = memBackend{}
)

type memBackend struct {
	*memstore.Store
}

func (m memBackend) CacheEntries(context.Context) ([]effcache.Entry, error) {
	return m.Store.CacheEntries(), nil
}

type services struct {
	cfg     *config.Config
	backend backend
	engine  *propagation.Engine
}

func (s *services) Close() {
	s.backend.Close()
}

func (o *rootOptions) open(ctx context.Context) (*services, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, err
	}
	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}

	if o.seedFile == "" {
		store, err := configdb.HierDBStore(ctx)
		if err != nil {
			return nil, err
		}
		return &services{cfg: cfg, backend: store, engine: propagation.NewEngine(store, engineOpts)}, nil
	}

	f, err := seed.Load(o.seedFile)
	if err != nil {
		return nil, err
	}
	mem := memBackend{Store: memstore.New(memstore.WithCacheRetention(cfg.Cache.Retention))}
	svc := &services{cfg: cfg, backend: mem, engine: propagation.NewEngine(mem, engineOpts)}
	if _, err := f.Apply(ctx, mem, svc.engine); err != nil {
		svc.Close()
		return nil, fmt.Errorf("seed %s: %w", o.seedFile, err)
	}
	return svc, nil
}

// run sets up telemetry and the backend, then calls fn.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, svc *services) error) error {
	ctx, shutdown, err := setupTelemetry(cmd.Context(), "hiercfg-"+cmd.Name(), nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			slog.Error("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	svc, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	start := time.Now()
	err = fn(ctx, svc)
	recordCommand(ctx, cmd.Name(), time.Since(start), err)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseRef accepts "level:entity_id", and "global" or "arka" alone.
func parseRef(s string) (hierarchy.EntityRef, error) {
	if level, err := hierarchy.ParseLevel(s); err == nil && level == hierarchy.LevelGlobal {
		return hierarchy.GlobalRef(), nil
	}
	return hierarchy.ParseCacheKey(s)
}

// parseConfigFlag reads a JSON object flag. Empty means an empty config.
func parseConfigFlag(name, value string) (hierarchy.Config, error) {
	cfg, err := hierarchy.ParseConfigJSON([]byte(value))
	if err != nil {
		return hierarchy.Config{}, fmt.Errorf("--%s: %w", name, err)
	}
	return cfg, nil
}
