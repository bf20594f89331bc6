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

package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/hiercfg/migrations"
)

// CheckEnabledEnv turns the startup version check off when set to anything
// other than "true".
const CheckEnabledEnv = "HIERDB_MIGRATION_CHECK_ENABLED"

const dbName = "hierdb"

// GetMigrationFiles returns the embedded migration files for version checking
func GetMigrationFiles() embed.FS {
	return migrationFiles
}

// CheckVersion verifies that hierdb is at the latest embedded migration.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, options ...migrations.CheckOption) error {
	if !checkEnabledFromEnv() {
		slog.Debug("Migration version checking disabled for hierdb")
		return nil
	}

	opts := migrations.DefaultCheckOptions()
	for _, option := range options {
		option(&opts)
	}
	if opts.Mode == migrations.CheckModeSkip {
		slog.Debug("Migration version checking skipped for hierdb")
		return nil
	}
	applyEnvironmentOverrides(&opts)

	expected, err := extractLatestMigrationVersion(migrationFiles)
	if err != nil {
		return fmt.Errorf("failed to extract expected migration version for %s: %w", dbName, err)
	}

	return waitForVersion(ctx, expected, opts, func(ctx context.Context) (uint, bool, error) {
		return currentMigrationVersion(pool)
	})
}

func checkEnabledFromEnv() bool {
	if val := os.Getenv(CheckEnabledEnv); val != "" {
		return strings.EqualFold(val, "true")
	}
	return true
}

func applyEnvironmentOverrides(opts *migrations.CheckOptions) {
	if val := os.Getenv("MIGRATION_CHECK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			opts.Timeout = d
		}
	}
	if val := os.Getenv("MIGRATION_CHECK_RETRY_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			opts.RetryInterval = d
		}
	}
	if val := os.Getenv("MIGRATION_CHECK_ALLOW_DIRTY"); val != "" {
		opts.AllowDirty = strings.EqualFold(val, "true")
	}
}

// extractLatestMigrationVersion returns the highest N of the N_name.up.sql files.
func extractLatestMigrationVersion(files embed.FS) (uint, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		maxVersion = max(maxVersion, uint(version))
	}

	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}
	return maxVersion, nil
}

type versionFunc func(ctx context.Context) (version uint, dirty bool, err error)

func waitForVersion(ctx context.Context, expected uint, opts migrations.CheckOptions, current versionFunc) error {
	version, dirty, err := current(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current migration version for %s: %w", dbName, err)
	}

	if dirty && !opts.AllowDirty {
		if opts.Mode != migrations.CheckModeWarn {
			return fmt.Errorf("database %s migration is in dirty state, please fix before proceeding", dbName)
		}
		slog.Warn("Database migration is in dirty state, but continuing anyway", slog.String("database", dbName))
	}

	if version == expected {
		return nil
	}

	if version > expected {
		if opts.Mode == migrations.CheckModeWarn {
			slog.Warn("Database version is newer than expected, but continuing anyway",
				slog.String("database", dbName),
				slog.Uint64("current_version", uint64(version)),
				slog.Uint64("expected_version", uint64(expected)))
			return nil
		}
		return fmt.Errorf("database %s version %d is newer than expected version %d - you may need to update the application",
			dbName, version, expected)
	}

	if opts.Mode == migrations.CheckModeWarn {
		slog.Warn("Database version is older than expected, but continuing anyway",
			slog.String("database", dbName),
			slog.Uint64("current_version", uint64(version)),
			slog.Uint64("expected_version", uint64(expected)))
		return nil
	}

	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		slog.Info("Waiting for migrations to complete",
			slog.String("database", dbName),
			slog.Uint64("current_version", uint64(version)),
			slog.Uint64("expected_version", uint64(expected)),
			slog.Duration("remaining_timeout", time.Until(deadline)))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for %s migrations", dbName)
		case <-ticker.C:
		}

		version, _, err = current(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current migration version for %s: %w", dbName, err)
		}
		if version == expected {
			slog.Info("Migration version check passed",
				slog.String("database", dbName),
				slog.Uint64("version", uint64(version)))
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for %s migration to complete: current version %d, expected %d",
				dbName, version, expected)
		}
	}
}

func currentMigrationVersion(pool *pgxpool.Pool) (uint, bool, error) {
	m, cleanup, err := newMigrate(pool)
	if err != nil {
		return 0, false, err
	}
	defer cleanup()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, dirty, nil
}
