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

package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/mcp/protocol"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
)

type fakeCaller struct {
	callFunc func(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error)
	gotName  string
	gotArgs  map[string]interface{}
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	f.gotName = name
	f.gotArgs = args
	return f.callFunc(ctx, name, args)
}

func textResult(blocks ...string) *protocol.CallToolResult {
	r := &protocol.CallToolResult{}
	for _, b := range blocks {
		r.Content = append(r.Content, protocol.Content{Type: "text", Text: b})
	}
	return r
}

func TestProviderTool_Descriptor(t *testing.T) {
	tests := []struct {
		name       string
		tool       protocol.Tool
		wantName   string
		wantDesc   string
		wantSchema shuttle.JSONSchema
	}{
		{
			name: "described tool with schema",
			tool: protocol.Tool{
				Name:        "execute_query",
				Description: "Execute a PromQL instant query",
				InputSchema: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
				},
			},
			wantName: "prometheus__execute_query",
			wantDesc: "[prometheus] Execute a PromQL instant query",
			wantSchema: shuttle.JSONSchema{
				"type":       "object",
				"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			},
		},
		{
			name:       "no description and no schema",
			tool:       protocol.Tool{Name: "list_metrics"},
			wantName:   "prometheus__list_metrics",
			wantDesc:   "[prometheus] Tool 'list_metrics' from prometheus MCP server",
			wantSchema: shuttle.EmptyObjectSchema(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := NewProviderTool("prometheus", tt.tool, &fakeCaller{}, nil)
			assert.Equal(t, tt.wantName, pt.Name())
			assert.Equal(t, tt.wantDesc, pt.Description())
			assert.Equal(t, tt.wantSchema, pt.InputSchema())
			assert.Equal(t, "prometheus", pt.Backend())
			assert.Equal(t, "prometheus", pt.Provider())
			assert.Equal(t, tt.tool.Name, pt.LocalName())
		})
	}
}

func TestProviderTool_Execute(t *testing.T) {
	tests := []struct {
		name        string
		callFunc    func(context.Context, string, map[string]interface{}) (*protocol.CallToolResult, error)
		wantOutput  string
		wantSuccess bool
	}{
		{
			name: "text blocks joined in order",
			callFunc: func(context.Context, string, map[string]interface{}) (*protocol.CallToolResult, error) {
				return textResult("first", "second"), nil
			},
			wantOutput:  "first\nsecond",
			wantSuccess: true,
		},
		{
			name: "non-text block stringified",
			callFunc: func(context.Context, string, map[string]interface{}) (*protocol.CallToolResult, error) {
				return &protocol.CallToolResult{Content: []protocol.Content{
					{Type: "text", Text: "logs:"},
					{Type: "resource", Resource: &protocol.EmbeddedResource{URI: "vl://query/1"}},
				}}, nil
			},
			wantOutput:  "logs:\n[resource vl://query/1]",
			wantSuccess: true,
		},
		{
			name: "empty result normalized",
			callFunc: func(context.Context, string, map[string]interface{}) (*protocol.CallToolResult, error) {
				return &protocol.CallToolResult{}, nil
			},
			wantOutput:  NoResultsText,
			wantSuccess: true,
		},
		{
			name: "failure becomes text",
			callFunc: func(context.Context, string, map[string]interface{}) (*protocol.CallToolResult, error) {
				return nil, errors.New("connection lost: EOF")
			},
			wantOutput: "Error calling tool query: connection lost: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &fakeCaller{callFunc: tt.callFunc}
			pt := NewProviderTool("victorialogs", protocol.Tool{Name: "query"}, caller, zap.NewNop())

			args := map[string]interface{}{"query": `{job="orders"} error`}
			res, err := pt.Execute(context.Background(), args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutput, res.Output)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, "query", caller.gotName, "provider sees its local name")
			assert.Equal(t, args, caller.gotArgs)
			if !tt.wantSuccess {
				require.NotNil(t, res.Error)
				assert.Equal(t, shuttle.ErrCodeInvocation, res.Error.Code)
			}
		})
	}
}

func TestAdaptTools_PreservesOrder(t *testing.T) {
	tools := AdaptTools("victorialogs", []protocol.Tool{{Name: "query"}, {Name: "hits"}, {Name: "streams"}}, &fakeCaller{}, nil)
	require.Len(t, tools, 3)
	assert.Equal(t, "victorialogs__query", tools[0].Name())
	assert.Equal(t, "victorialogs__hits", tools[1].Name())
	assert.Equal(t, "victorialogs__streams", tools[2].Name())
}
