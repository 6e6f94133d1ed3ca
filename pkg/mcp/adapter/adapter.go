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

// Package adapter bridges MCP tools to the shuttle.Tool interface.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/mcp/protocol"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
)

// NameSeparator joins the provider name and the provider-local tool name.
const NameSeparator = "__"

// NoResultsText replaces an empty tool result so the model can tell "ran and
// found nothing" apart from a malformed call.
const NoResultsText = "No results returned."

// Caller is the slice of an MCP session a tool needs to run.
type Caller interface {
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error)
}

// ProviderTool wraps one discovered MCP tool as a shuttle.Tool.
type ProviderTool struct {
	provider string
	tool     protocol.Tool
	caller   Caller
	logger   *zap.Logger
}

// NewProviderTool creates an adapter for tool served by provider.
func NewProviderTool(provider string, tool protocol.Tool, caller Caller, logger *zap.Logger) *ProviderTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderTool{
		provider: provider,
		tool:     tool,
		caller:   caller,
		logger:   logger,
	}
}

// AdaptTools wraps every tool of one provider, preserving discovery order.
func AdaptTools(provider string, tools []protocol.Tool, caller Caller, logger *zap.Logger) []shuttle.Tool {
	out := make([]shuttle.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, NewProviderTool(provider, t, caller, logger))
	}
	return out
}

// QualifiedName builds the name the model sees for a provider tool.
func QualifiedName(provider, local string) string {
	return provider + NameSeparator + local
}

// Name implements shuttle.Tool.
func (t *ProviderTool) Name() string {
	return QualifiedName(t.provider, t.tool.Name)
}

// Provider returns the name of the provider serving the tool.
func (t *ProviderTool) Provider() string {
	return t.provider
}

// LocalName returns the name the provider knows the tool by.
func (t *ProviderTool) LocalName() string {
	return t.tool.Name
}

// Description implements shuttle.Tool.
func (t *ProviderTool) Description() string {
	desc := strings.TrimSpace(t.tool.Description)
	if desc == "" {
		desc = fmt.Sprintf("Tool '%s' from %s MCP server", t.tool.Name, t.provider)
	}
	return fmt.Sprintf("[%s] %s", t.provider, desc)
}

// InputSchema implements shuttle.Tool. Providers that advertise no schema get
// an empty object schema.
func (t *ProviderTool) InputSchema() shuttle.JSONSchema {
	if len(t.tool.InputSchema) == 0 {
		return shuttle.EmptyObjectSchema()
	}
	return shuttle.JSONSchema(t.tool.InputSchema)
}

// Backend implements shuttle.Tool.
func (t *ProviderTool) Backend() string {
	return t.provider
}

// Execute calls the tool on its provider. It never returns an error: failures
// come back as an unsuccessful Result whose Output names the tool and cause.
func (t *ProviderTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	start := time.Now()
	result, err := t.caller.CallTool(ctx, t.tool.Name, params)
	elapsed := time.Since(start)

	if err != nil {
		t.logger.Warn("tool call failed",
			zap.String("server", t.provider),
			zap.String("tool", t.tool.Name),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return shuttle.FailureResult(t.tool.Name, shuttle.ErrCodeInvocation, err.Error(), elapsed.Milliseconds()), nil
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		text = NoResultsText
	}
	t.logger.Debug("tool call completed",
		zap.String("server", t.provider),
		zap.String("tool", t.tool.Name),
		zap.Duration("duration", elapsed),
		zap.Int("bytes", len(text)))

	return &shuttle.Result{
		Success:         true,
		Output:          text,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}, nil
}

var _ shuttle.Tool = (*ProviderTool)(nil)
