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

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateToolArguments(t *testing.T) {
	tool := Tool{
		Name: "execute_query",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
				"time":  map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"query"},
		},
	}

	tests := []struct {
		name    string
		tool    Tool
		args    map[string]interface{}
		wantErr string
	}{
		{
			name: "valid",
			tool: tool,
			args: map[string]interface{}{"query": `pg_up{job="orders"}`},
		},
		{
			name:    "missing required",
			tool:    tool,
			args:    map[string]interface{}{"time": "now"},
			wantErr: "query is required",
		},
		{
			name:    "wrong type",
			tool:    tool,
			args:    map[string]interface{}{"query": 12},
			wantErr: "invalid arguments",
		},
		{
			name:    "nil args against required schema",
			tool:    tool,
			args:    nil,
			wantErr: "query is required",
		},
		{
			name: "no schema accepts anything",
			tool: Tool{Name: "free"},
			args: map[string]interface{}{"anything": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToolArguments(tt.tool, tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		resp    *Response
		wantErr bool
	}{
		{
			name: "result",
			resp: &Response{JSONRPC: "2.0", ID: NumericID(1), Result: json.RawMessage(`{}`)},
		},
		{
			name: "error",
			resp: &Response{JSONRPC: "2.0", ID: NumericID(1), Error: NewError(InternalError, "boom", nil)},
		},
		{
			name:    "wrong version",
			resp:    &Response{JSONRPC: "1.0", ID: NumericID(1), Result: json.RawMessage(`{}`)},
			wantErr: true,
		},
		{
			name:    "missing id",
			resp:    &Response{JSONRPC: "2.0", Result: json.RawMessage(`{}`)},
			wantErr: true,
		},
		{
			name:    "both result and error",
			resp:    &Response{JSONRPC: "2.0", ID: NumericID(1), Result: json.RawMessage(`{}`), Error: NewError(InternalError, "x", nil)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse(tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
