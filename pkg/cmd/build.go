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

	"github.com/slinkylang/slinky/pkg/debugfmt"
	"github.com/slinkylang/slinky/pkg/ir"
	"github.com/slinkylang/slinky/pkg/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build <graph.sx>",
	Short: "Build and optimise a pipeline graph, printing the resulting statement tree.",
	Long:  "build parses a debug s-expression graph description, runs every enabled optimisation pass, and prints the resulting statement tree in the same s-expression syntax.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)

		root, _, err := loadAndOptimize(cmd, args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "slinky build:", err)
			os.Exit(1)
		}

		fmt.Println(debugfmt.WriteStmt(root))
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

// loadAndOptimize reads path as a debug graph, builds it, and runs the
// optimisation pipeline selected by --opt/--no-checks.
func loadAndOptimize(cmd *cobra.Command, path string) (ir.Stmt, *pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	opts := buildOptionsFromFlags(cmd)

	p, err := debugfmt.ReadGraph(string(data), opts)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	log.WithField("buffers", len(p.Buffers)).WithField("funcs", len(p.Funcs)).Debug("graph parsed")

	root, err := p.BuildAndOptimize()
	if err != nil {
		return nil, nil, fmt.Errorf("building %s: %w", path, err)
	}

	return root, p, nil
}
