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

package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/pgobserve/pkg/llm"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1714550400,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "logprobs": null,
    "message": {
      "role": "assistant",
      "content": null,
      "refusal": null,
      "tool_calls": [{
        "id": "call_abc",
        "type": "function",
        "function": {"name": "victorialogs__query", "arguments": "{\"query\":\"_time:1h error\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 320, "completion_tokens": 25, "total_tokens": 345}
}`

type capturedRequest struct {
	path string
	auth string
	body map[string]interface{}
}

func completionServer(t *testing.T, status int, reply string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		_ = json.Unmarshal(raw, &captured.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	c, err := NewClient(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, c.Name())
	assert.Equal(t, DefaultModel, c.Model())

	c, err = NewClient(Config{Name: ProviderLiteLLM, APIKey: "sk-1234", Model: "claude-3-haiku"})
	require.NoError(t, err)
	assert.Equal(t, ProviderLiteLLM, c.Name())
	assert.Equal(t, "claude-3-haiku", c.Model())
}

func TestClient_ChatThroughLiteLLM(t *testing.T) {
	srv, captured := completionServer(t, http.StatusOK, toolCallCompletion)

	c, err := NewClient(Config{Name: ProviderLiteLLM, APIKey: "sk-1234", BaseURL: srv.URL, Model: "gpt-4o"})
	require.NoError(t, err)

	tool := &shuttle.MockTool{
		MockName:        "victorialogs__query",
		MockDescription: "[victorialogs] Run a LogsQL query",
		MockSchema: shuttle.JSONSchema{
			"type":       "object",
			"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
		},
	}
	prior := types.ToolCall{ID: "call_0", Name: "prometheus__execute_query", Input: map[string]interface{}{"query": "pg_up"}}

	resp, err := c.Chat(context.Background(), []types.Message{
		types.SystemMessage("rules"),
		types.UserMessage("any errors in the last hour?"),
		types.AssistantMessage("Checking.", prior),
		types.ToolResultMessage(prior, "pg_up 1"),
	}, []shuttle.Tool{tool})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(captured.path, "/chat/completions"))
	assert.Equal(t, "Bearer sk-1234", captured.auth)

	assert.Equal(t, "", resp.Content)
	assert.Equal(t, "tool_calls", resp.StopReason)
	assert.Equal(t, types.Usage{InputTokens: 320, OutputTokens: 25, TotalTokens: 345}, resp.Usage)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, types.ToolCall{
		ID:    "call_abc",
		Name:  "victorialogs__query",
		Input: map[string]interface{}{"query": "_time:1h error"},
	}, resp.ToolCalls[0])

	body := captured.body
	assert.Equal(t, "gpt-4o", body["model"])
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 4)
	assistant := msgs[2].(map[string]interface{})
	calls := assistant["tool_calls"].([]interface{})
	fn := calls[0].(map[string]interface{})["function"].(map[string]interface{})
	assert.Equal(t, "prometheus__execute_query", fn["name"])
	assert.JSONEq(t, `{"query":"pg_up"}`, fn["arguments"].(string))
	toolMsg := msgs[3].(map[string]interface{})
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_0", toolMsg["tool_call_id"])

	tools := body["tools"].([]interface{})
	require.Len(t, tools, 1)
	def := tools[0].(map[string]interface{})["function"].(map[string]interface{})
	assert.Equal(t, "victorialogs__query", def["name"])
}

func TestConvertResponse_MalformedArguments(t *testing.T) {
	var completion openai.ChatCompletion
	require.NoError(t, json.Unmarshal([]byte(`{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1714550400,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_bad",
        "type": "function",
        "function": {"name": "prometheus__execute_query", "arguments": "{\"query\": \"pg_up"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
}`), &completion))

	resp := convertResponse(&completion, llm.BuildToolNameMap([]string{"prometheus__execute_query"}))
	require.Len(t, resp.ToolCalls, 1)
	call := resp.ToolCalls[0]
	assert.Equal(t, "call_bad", call.ID)
	assert.Equal(t, "prometheus__execute_query", call.Name)
	assert.NotEmpty(t, call.InvalidArguments)
	assert.Empty(t, call.Input)
}

func TestClient_ChatWithoutTools(t *testing.T) {
	srv, captured := completionServer(t, http.StatusOK, `{
	  "id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4o",
	  "choices": [{"index": 0, "finish_reason": "stop", "logprobs": null,
	    "message": {"role": "assistant", "content": "No tools are available.", "refusal": null}}],
	  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`)

	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), []types.Message{types.UserMessage("status?")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "No tools are available.", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	_, hasTools := captured.body["tools"]
	assert.False(t, hasTools)
}

func TestClient_ChatAPIError(t *testing.T) {
	srv, _ := completionServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"rate_limit_error","code":"rate_limit_exceeded"}}`)

	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), []types.Message{types.UserMessage("hi")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
