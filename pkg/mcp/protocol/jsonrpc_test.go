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
	"github.com/stretchr/testify/require"
)

func TestRequestID_JSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		wantErr bool
	}{
		{name: "number", input: `42`, wantKey: "42"},
		{name: "string", input: `"abc-1"`, wantKey: "abc-1"},
		{name: "object", input: `{"x":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id RequestID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, id.String())

			out, err := json.Marshal(&id)
			require.NoError(t, err)
			assert.JSONEq(t, tt.input, string(out))
		})
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(NumericID(7), MethodToolsCall, CallToolParams{
		Name:      "execute_query",
		Arguments: map[string]interface{}{"query": "pg_up"},
	})
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"jsonrpc": "2.0",
		"id": 7,
		"method": "tools/call",
		"params": {"name": "execute_query", "arguments": {"query": "pg_up"}}
	}`, string(data))
}

func TestNewNotification_OmitsID(t *testing.T) {
	req, err := NewNotification(NotificationInitialized, nil)
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, string(data))
}

func TestMessage_Classification(t *testing.T) {
	tests := []struct {
		name         string
		frame        string
		response     bool
		notification bool
	}{
		{
			name:     "result",
			frame:    `{"jsonrpc":"2.0","id":1,"result":{}}`,
			response: true,
		},
		{
			name:     "error",
			frame:    `{"jsonrpc":"2.0","id":"x","error":{"code":-32601,"message":"nope"}}`,
			response: true,
		},
		{
			name:         "notification",
			frame:        `{"jsonrpc":"2.0","method":"notifications/message","params":{}}`,
			notification: true,
		},
		{
			name:  "server request",
			frame: `{"jsonrpc":"2.0","id":3,"method":"roots/list"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			require.NoError(t, json.Unmarshal([]byte(tt.frame), &msg))
			assert.Equal(t, tt.response, msg.IsResponse())
			assert.Equal(t, tt.notification, msg.IsNotification())
		})
	}
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "JSON-RPC error -32601: Method not found", NewError(MethodNotFound, "Method not found", nil).Error())
	assert.Equal(t,
		`JSON-RPC error -32602: bad params (data: {"field":"query"})`,
		NewError(InvalidParams, "bad params", map[string]string{"field": "query"}).Error(),
	)
}
