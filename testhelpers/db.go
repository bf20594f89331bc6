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

// Package testhelpers provisions throwaway databases for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orlangure/gnomock"
	pgpreset "github.com/orlangure/gnomock/preset/postgres"

	"github.com/cardinalhq/hiercfg/configdb"
	hierdbmigrations "github.com/cardinalhq/hiercfg/configdb/migrations"
)

// SetupTestHierDB creates a clean hierdb database with migrations applied.
// It uses the server described by HIERDB_HOST and friends when HIERDB_HOST
// is set, and a disposable Postgres container otherwise.
// Cleanup is registered with t.Cleanup.
func SetupTestHierDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	baseConnStr, connStrFor := serverFromEnv(t)

	basePool, err := pgxpool.New(ctx, baseConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	dbName := fmt.Sprintf("test_hierdb_%d_%d", time.Now().Unix(), rand.Intn(10000))
	if _, err := basePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		basePool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	testPool, err := configdb.NewConnectionPool(ctx, connStrFor(dbName))
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := hierdbmigrations.RunMigrationsUp(ctx, testPool); err != nil {
		testPool.Close()
		basePool.Close()
		t.Fatalf("Failed to run hierdb migrations: %v", err)
	}

	t.Cleanup(func() {
		testPool.Close()
		_, err := basePool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
		if err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}
		basePool.Close()
	})

	return testPool
}

// NewTestHierDBStore creates a store connected to a fresh test database.
func NewTestHierDBStore(t *testing.T, opts ...configdb.Option) *configdb.Store {
	return configdb.NewStore(SetupTestHierDB(t), opts...)
}

func serverFromEnv(t *testing.T) (string, func(dbName string) string) {
	host := os.Getenv("HIERDB_HOST")
	if host == "" {
		return startPostgres(t)
	}

	port := getEnvOrDefault("HIERDB_PORT", "5432")
	user := getEnvOrDefault("HIERDB_USER", os.Getenv("USER"))
	password := os.Getenv("HIERDB_PASSWORD")
	baseDB := getEnvOrDefault("HIERDB_DBNAME", "testing_hierdb")

	connStr := func(db string) string {
		if password != "" {
			return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, db)
		}
		return fmt.Sprintf("postgresql://%s@%s:%s/%s", user, host, port, db)
	}
	return connStr(baseDB), connStr
}

func startPostgres(t *testing.T) (string, func(dbName string) string) {
	t.Helper()

	const user, password, baseDB = "hiercfg", "hiercfg", "hiercfg"
	container, err := gnomock.Start(pgpreset.Preset(
		pgpreset.WithUser(user, password),
		pgpreset.WithDatabase(baseDB),
		pgpreset.WithVersion("16"),
	))
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = gnomock.Stop(container)
	})

	connStr := func(db string) string {
		return fmt.Sprintf("postgresql://%s:%s@%s/%s?sslmode=disable", user, password, container.DefaultAddress(), db)
	}
	return connStr(baseDB), connStr
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
