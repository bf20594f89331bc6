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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"

	hierdbmigrations "github.com/cardinalhq/hiercfg/configdb/migrations"
	"github.com/cardinalhq/hiercfg/internal/dbopen"
)

// EnvPrefix names the environment variables describing the hierarchy
// database: HIERDB_URL or HIERDB_HOST, HIERDB_DBNAME and friends.
const EnvPrefix = "HIERDB"

// NewConnectionPool creates a pgx pool for url with OpenTelemetry query
// tracing.
func NewConnectionPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "hierdb",
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

// ConnectToHierDB opens a pool from the HIERDB_* environment and checks
// the schema version before handing it out.
func ConnectToHierDB(ctx context.Context, opts ...dbopen.Options) (*pgxpool.Pool, error) {
	connectionString, err := dbopen.GetDatabaseURLFromEnv(EnvPrefix)
	if err != nil {
		return nil, errors.Join(dbopen.ErrDatabaseNotConfigured, fmt.Errorf("failed to get HIERDB connection string: %w", err))
	}
	return Connect(ctx, connectionString, opts...)
}

// Connect opens a pool for url and checks the schema version.
func Connect(ctx context.Context, url string, opts ...dbopen.Options) (*pgxpool.Pool, error) {
	pool, err := NewConnectionPool(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := hierdbmigrations.CheckVersion(ctx, pool, dbopen.CheckOptions(opts...)...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("HIERDB migration version check failed: %w", err)
	}

	return pool, nil
}

// HierDBStore connects using the environment and wraps the pool in a Store.
func HierDBStore(ctx context.Context, opts ...dbopen.Options) (*Store, error) {
	pool, err := ConnectToHierDB(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}
