// Copyright Slinky Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/slinkylang/slinky/pkg/pipeline"
)

// Version is filled in by the release build, left empty for "go install".
var Version string

var rootCmd = &cobra.Command{
	Use:   "slinky",
	Short: "A compiler and evaluator for buffer-to-buffer dataflow pipelines.",
	Long:  "slinky builds a declarative dataflow graph into an optimized statement tree, and can evaluate it directly.",
	Run: func(cmd *cobra.Command, _ []string) {
		if GetFlag(cmd, "version") {
			if Version != "" {
				fmt.Println("slinky " + Version)
			} else {
				fmt.Println("slinky (unknown version)")
			}
		}
	},
}

// Execute runs the root command; it is called once from cmd/slinky/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("version", false, "report the version of this executable")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().Bool("no-checks", false, "omit runtime bounds checks (BuildOptions.NoChecks)")
	rootCmd.PersistentFlags().UintP("opt", "O", 0, "optimisation level (index into pipeline.OptimisationLevels)")
}

// GetFlag returns a bool flag's value, or aborts the process if the flag
// was never declared (a programming error, not user error).
func GetFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	return v
}

// GetUint returns a uint flag's value.
func GetUint(cmd *cobra.Command, name string) uint {
	v, err := cmd.Flags().GetUint(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	return v
}

// configureLogging sets the global logrus level from --verbose.
func configureLogging(cmd *cobra.Command) {
	if GetFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}
}

// buildOptionsFromFlags resolves --opt and --no-checks into a BuildOptions
// by indexing into pipeline.OptimisationLevels.
func buildOptionsFromFlags(cmd *cobra.Command) pipeline.BuildOptions {
	level := GetUint(cmd, "opt")

	opts := pipeline.DefaultOptions
	if int(level) < len(pipeline.OptimisationLevels) {
		opts = pipeline.OptimisationLevels[level]
	}

	if GetFlag(cmd, "no-checks") {
		opts.NoChecks = true
	}

	return opts
}
