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
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/hiercfg/configdb"
	hierdbmigrations "github.com/cardinalhq/hiercfg/configdb/migrations"
	"github.com/cardinalhq/hiercfg/internal/dbopen"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  "Apply the embedded schema migrations to the database named by the HIERDB_* environment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, shutdown, err := setupTelemetry(cmd.Context(), "hiercfg-migrate", nil)
			if err != nil {
				return err
			}
			defer func() { _ = shutdown() }()
			return migrate(ctx)
		},
	}
}

func migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pool, err := configdb.ConnectToHierDB(ctx, dbopen.SkipMigrationCheck())
	if err != nil {
		if errors.Is(err, dbopen.ErrDatabaseNotConfigured) {
			slog.Info("HIERDB not configured, skipping migration")
			return nil
		}
		return err
	}
	defer pool.Close()

	slog.Info("Running hierdb migrations")
	if err := hierdbmigrations.RunMigrationsUp(ctx, pool); err != nil {
		return err
	}
	slog.Info("hierdb migrations completed successfully")
	return nil
}
