// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/pgobserve/internal/version"
	"github.com/teradata-labs/pgobserve/pkg/mcp/manager"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Start the tool providers and list what they expose",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().Bool("describe", false, "print tool descriptions")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, _ []string) error {
	describe, _ := cmd.Flags().GetBool("describe")

	logger, err := newLogger(config.Logging.Level, debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mgr, err := manager.NewManager(config.managerConfig(version.Get()), logger.Named("mcp"))
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Cleanup() }()

	if err := mgr.Initialize(context.Background()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printConnections(out, mgr.Connections())
	fmt.Fprintln(out)
	printTools(out, mgr.Tools(), describe)
	return nil
}

func printConnections(w io.Writer, conns []manager.ConnectionInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS\tTOOLS\tERROR")
	for _, c := range conns {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Name, c.Status, c.ToolCount, c.Error)
	}
	_ = tw.Flush()
}

func printTools(w io.Writer, tools []shuttle.Tool, describe bool) {
	if len(tools) == 0 {
		fmt.Fprintln(w, "No tools available; the agent will answer without evidence.")
		return
	}
	for _, t := range tools {
		fmt.Fprintf(w, "%s  (%s)\n", t.Name(), t.Backend())
		if describe && t.Description() != "" {
			for _, line := range strings.Split(strings.TrimSpace(t.Description()), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}
