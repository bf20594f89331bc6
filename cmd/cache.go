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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate cached effective configurations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every cache entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return root.run(cmd, func(ctx context.Context, svc *services) error {
					entries, err := svc.backend.CacheEntries(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), entries)
				})
			},
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one cache entry, fresh or not",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return root.run(cmd, func(ctx context.Context, svc *services) error {
					entry, fresh, err := svc.backend.Cache().Get(ctx, args[0])
					if errors.Is(err, effcache.ErrMiss) {
						ref, perr := parseRef(args[0])
						if perr != nil {
							return &hierarchy.ValidationError{Err: perr}
						}
						return &hierarchy.NotFoundError{Ref: ref, What: "cache entry"}
					}
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), struct {
						effcache.Entry
						Fresh bool `json:"fresh"`
					}{entry, fresh})
				})
			},
		},
		newCacheInvalidateCmd(root),
	)
	return cmd
}

func newCacheInvalidateCmd(root *rootOptions) *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:   "invalidate KEY [KEY...]",
		Short: "Expire or delete cache entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(ctx context.Context, svc *services) error {
				p := svc.cfg.Cache.Invalidation
				if cmd.Flags().Changed("policy") {
					p = policy
				}
				parsed, err := effcache.ParsePolicy(p)
				if err != nil {
					return &hierarchy.ValidationError{Err: err}
				}
				return effcache.Invalidate(ctx, svc.backend.Cache(), parsed, args)
			})
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "expire or delete (default from cache.invalidation)")
	return cmd
}

func newDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete REF",
		Short: "Soft-delete a client, project or agent so propagation skips it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return &hierarchy.ValidationError{Err: err}
			}
			return root.run(cmd, func(ctx context.Context, svc *services) error {
				return svc.backend.SoftDelete(ctx, ref)
			})
		},
	}
}
