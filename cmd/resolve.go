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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

func newResolveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve REF [REF...]",
		Short: "Print the effective configuration of one or more entities",
		Long: `Print the effective configuration of each REF, given as level:entity_id
(for example agent:a-123) or just "global". Fresh cache entries are served
as-is; anything else is recomputed and cached.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := make([]hierarchy.EntityRef, 0, len(args))
			for _, arg := range args {
				ref, err := parseRef(arg)
				if err != nil {
					return &hierarchy.ValidationError{Err: err}
				}
				refs = append(refs, ref)
			}
			return root.run(cmd, func(ctx context.Context, svc *services) error {
				if len(refs) == 1 {
					res, err := svc.engine.Effective(ctx, refs[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), res)
				}
				res, err := svc.engine.ResolveMany(ctx, refs)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newResolveCreationCmd(root *rootOptions) *cobra.Command {
	var clientID, projectID string
	cmd := &cobra.Command{
		Use:   "resolve-creation",
		Short: "Print what a new agent under a client and project would inherit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, svc *services) error {
				cc, err := svc.engine.ResolveForCreation(ctx, clientID, projectID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cc)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&projectID, "project", "", "project id (optional)")
	return cmd
}

func newAgentContextCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agent-context AGENT_ID",
		Short: "Print the configuration last written back to an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(ctx context.Context, svc *services) error {
				cfg, err := svc.backend.AgentContextConfig(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cfg)
			})
		},
	}
}
