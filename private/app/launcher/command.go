// Copyright 2025 The emunet authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package launcher

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	libconfig "github.com/emunet-project/emunet/private/config"
)

// newCommandTemplate returns the root command shared by server binaries:
// the --config flag plus a "sample config" subcommand that prints a
// commented configuration skeleton.
func newCommandTemplate(
	executable string,
	shortName string,
	cfg libconfig.Sampler,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:           executable,
		Short:         shortName,
		Example:       fmt.Sprintf("  %s --config %s", executable, "config.toml"),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(newSampleCmd(cfg))
	cmd.Flags().String(cfgConfigFile, "", "Configuration file (required)")
	cmd.MarkFlagRequired(cfgConfigFile)
	return cmd
}

func newSampleCmd(cfg libconfig.Sampler) *cobra.Command {
	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "Display sample files",
	}
	sampleCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Display sample configuration file",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Sample(os.Stdout, nil, nil)
		},
	})
	return sampleCmd
}
