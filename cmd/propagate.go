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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/propagation"
)

type propagateFlags struct {
	file          string
	level         string
	entityID      string
	configuration string
	overrides     string
	metadata      string
	parent        string
	children      bool
	preserve      bool
}

func newPropagateCmd(root *rootOptions) *cobra.Command {
	f := &propagateFlags{}
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Write a configuration node and push it to every descendant",
		Long: `Write the configuration and overrides of one node, then recompute and cache the
effective configuration of the node and, unless --children=false, of every live
descendant. Everything happens in one transaction.

The request comes either from flags or, with --file, from a JSON document
("-" reads stdin).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, svc *services) error {
				req, err := f.request(cmd, svc)
				if err != nil {
					return &hierarchy.ValidationError{Err: err}
				}
				res, err := svc.engine.Propagate(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&f.file, "file", "", "JSON request document")
	cmd.Flags().StringVar(&f.level, "level", "", "global, client, project or agent")
	cmd.Flags().StringVar(&f.entityID, "id", "", "entity id (defaults to global for the global level)")
	cmd.Flags().StringVar(&f.configuration, "configuration", "", "configuration as a JSON object")
	cmd.Flags().StringVar(&f.overrides, "overrides", "", "overrides as a JSON object")
	cmd.Flags().StringVar(&f.metadata, "metadata", "", "replace the node metadata with this JSON object")
	cmd.Flags().StringVar(&f.parent, "parent", "", "replace the node parent link, as level:entity_id")
	cmd.Flags().BoolVar(&f.children, "children", true, "propagate to descendants (default from propagation.to_children)")
	cmd.Flags().BoolVar(&f.preserve, "preserve", true, "preserve local overrides (default from propagation.preserve_local_overrides)")
	return cmd
}

func (f *propagateFlags) request(cmd *cobra.Command, svc *services) (propagation.Request, error) {
	var req propagation.Request
	if f.file != "" {
		data, err := readInput(cmd, f.file)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("%s: %w", f.file, err)
		}
	} else {
		if f.level == "" {
			return req, errors.New("--level or --file is required")
		}
		level, err := hierarchy.ParseLevel(f.level)
		if err != nil {
			return req, err
		}
		cfg, err := parseConfigFlag("configuration", f.configuration)
		if err != nil {
			return req, err
		}
		ov, err := parseConfigFlag("overrides", f.overrides)
		if err != nil {
			return req, err
		}
		req = propagation.NewRequest(hierarchy.Ref(level, f.entityID), cfg, ov)
		req.PropagateToChildren = svc.cfg.Propagation.ToChildren
		req.PreserveLocalOverrides = svc.cfg.Propagation.PreserveLocalOverrides
	}

	if cmd.Flags().Changed("metadata") {
		md, err := parseConfigFlag("metadata", f.metadata)
		if err != nil {
			return req, err
		}
		req.Metadata = &md
	}
	if f.parent != "" {
		parent, err := parseRef(f.parent)
		if err != nil {
			return req, fmt.Errorf("--parent: %w", err)
		}
		req.Parent = &parent
	}
	if cmd.Flags().Changed("children") {
		req.PropagateToChildren = f.children
	}
	if cmd.Flags().Changed("preserve") {
		req.PreserveLocalOverrides = f.preserve
	}
	return req, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

type registerAgentFlags struct {
	agentID       string
	projectID     string
	configuration string
	metadata      string
}

func newRegisterAgentCmd(root *rootOptions) *cobra.Command {
	f := &registerAgentFlags{}
	cmd := &cobra.Command{
		Use:   "register-agent",
		Short: "Record the node of a newly created agent under its project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, svc *services) error {
				cfg, err := parseConfigFlag("configuration", f.configuration)
				if err != nil {
					return err
				}
				md, err := parseConfigFlag("metadata", f.metadata)
				if err != nil {
					return err
				}
				res, err := svc.engine.RegisterAgentNode(ctx, propagation.AgentNodeRequest{
					AgentID:       f.agentID,
					ProjectID:     f.projectID,
					Configuration: cfg,
					Metadata:      md,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&f.agentID, "agent", "", "agent id")
	cmd.Flags().StringVar(&f.projectID, "project", "", "project the agent belongs to")
	cmd.Flags().StringVar(&f.configuration, "configuration", "", "agent configuration as a JSON object")
	cmd.Flags().StringVar(&f.metadata, "metadata", "", "node metadata as a JSON object")
	return cmd
}
