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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/pgobserve/pkg/agent"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the agent one question",
	Long: `Run one agent invocation from the terminal and print the answer followed
by the tool calls it made.

Example:
  pgobserve chat --database orders --db-type postgres "any errors in the last hour?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("database", "", "database name from the catalog (required)")
	chatCmd.Flags().String("db-type", "postgres", "database type label")
	chatCmd.Flags().String("conversation-id", "", "conversation id used for tracing (default: random)")
	chatCmd.Flags().Bool("json", false, "print the result as JSON")
	chatCmd.Flags().Bool("verbose", false, "print progress while the agent works")
	_ = chatCmd.MarkFlagRequired("database")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	database, _ := cmd.Flags().GetString("database")
	dbType, _ := cmd.Flags().GetString("db-type")
	conversationID, _ := cmd.Flags().GetString("conversation-id")
	asJSON, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	logger, err := newLogger(config.Logging.Level, debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := newApp(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}
	if _, err := cat.Get(database); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	req := agent.Request{
		Message:        message,
		DatabaseName:   database,
		DatabaseType:   dbType,
		ConversationID: conversationID,
	}
	if verbose {
		req.Progress = progressPrinter(cmd.ErrOrStderr())
	}

	result, err := a.agent.RunAgent(ctx, req)
	if err != nil {
		return fmt.Errorf("agent error: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*agent.Result
			ConversationID string `json:"conversation_id"`
		}{result, conversationID})
	}
	printResult(out, result)
	return nil
}

func progressPrinter(w io.Writer) types.ProgressCallback {
	return func(ev types.ProgressEvent) {
		switch ev.Stage {
		case types.StageToolExecution:
			fmt.Fprintf(w, "[step %d] calling %s\n", ev.Step, ev.ToolName)
		case types.StageLLMGeneration:
			fmt.Fprintf(w, "[step %d] thinking\n", ev.Step)
		case types.StageFailed:
			fmt.Fprintf(w, "[step %d] failed: %s\n", ev.Step, ev.Message)
		}
	}
}

func printResult(w io.Writer, result *agent.Result) {
	fmt.Fprintln(w, result.Response)
	if len(result.ToolCalls) == 0 {
		return
	}

	fmt.Fprintf(w, "\nTool calls (%d):\n", len(result.ToolCalls))
	for i, tc := range result.ToolCalls {
		args, _ := json.Marshal(tc.Args)
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, tc.Tool, args)
		preview := []rune(strings.ReplaceAll(tc.Result, "\n", " "))
		if len(preview) > 120 {
			preview = append(preview[:120], []rune("...")...)
		}
		fmt.Fprintf(w, "     -> %s\n", string(preview))
	}
}
