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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/hiercfg/internal/effcache"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, opts.CacheTTL)
	require.Equal(t, effcache.PolicyExpire, opts.Invalidation)
	require.True(t, opts.PreserveLocalOverrides)
	require.True(t, opts.ServeStale)
	require.Equal(t, 8, opts.Concurrency)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HIERCFG_CACHE_TTL", "90s")
	t.Setenv("HIERCFG_CACHE_INVALIDATION", "delete")
	t.Setenv("HIERCFG_PROPAGATION_PRESERVE_LOCAL_OVERRIDES", "false")
	t.Setenv("HIERCFG_RESOLVE_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 90*time.Second, cfg.Cache.TTL)
	require.Equal(t, "delete", cfg.Cache.Invalidation)
	require.False(t, cfg.Propagation.PreserveLocalOverrides)
	require.True(t, cfg.Propagation.ToChildren)
	require.Equal(t, 2, cfg.Resolve.Concurrency)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	require.Equal(t, effcache.PolicyDelete, opts.Invalidation)
	require.False(t, opts.PreserveLocalOverrides)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hiercfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  ttl: 1m
  retention: 1h
resolve:
  serve_stale: false
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, time.Minute, cfg.Cache.TTL)
	require.Equal(t, time.Hour, cfg.Cache.Retention)
	require.False(t, cfg.Resolve.ServeStale)
	require.Equal(t, "expire", cfg.Cache.Invalidation)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HIERCFG_CACHE_INVALIDATION", "shred")

	_, err := Load()
	require.Error(t, err)
}
