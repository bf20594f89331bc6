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
	"os"

	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	seedFile   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "hiercfg",
		Short: "Resolve and propagate hierarchical agent configuration",
		Long: `Maintain configuration declared at the global, client, project and agent levels,
propagate changes to every descendant and serve the merged effective configuration.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml when present)")
	root.PersistentFlags().StringVar(&opts.seedFile, "seed", "", "YAML seed loaded into an in-memory store instead of connecting to HIERDB")

	root.AddCommand(
		newMigrateCmd(),
		newPropagateCmd(opts),
		newRegisterAgentCmd(opts),
		newResolveCmd(opts),
		newResolveCreationCmd(opts),
		newAgentContextCmd(opts),
		newSeedCmd(opts),
		newCacheCmd(opts),
		newDeleteCmd(opts),
	)
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
