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

package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// llmCall is one recorded model invocation.
type llmCall struct {
	messages []types.Message
	tools    []string
}

// scriptedLLM replays canned responses in order. Once the script runs out it
// answers with a plain "done".
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*types.LLMResponse
	errs      []error
	calls     []llmCall
}

func (s *scriptedLLM) Chat(_ context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := llmCall{messages: append([]types.Message(nil), messages...)}
	for _, t := range tools {
		call.tools = append(call.tools, t.Name())
	}
	s.calls = append(s.calls, call)

	idx := len(s.calls) - 1
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return &types.LLMResponse{Content: "done", StopReason: "end_turn"}, nil
}

func (s *scriptedLLM) Name() string  { return "scripted" }
func (s *scriptedLLM) Model() string { return "scripted-1" }

func (s *scriptedLLM) recorded() []llmCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llmCall(nil), s.calls...)
}

// toolsCalling builds a response requesting the given calls.
func toolsCalling(calls ...types.ToolCall) *types.LLMResponse {
	return &types.LLMResponse{ToolCalls: calls, StopReason: "tool_use"}
}

func answer(text string) *types.LLMResponse {
	return &types.LLMResponse{Content: text, StopReason: "end_turn"}
}

// staticSource is a ToolSource over a fixed tool list.
type staticSource struct {
	tools   []shuttle.Tool
	initErr error
	inits   int
	mu      sync.Mutex
}

func (s *staticSource) Initialize(context.Context) error {
	s.mu.Lock()
	s.inits++
	s.mu.Unlock()
	return s.initErr
}

func (s *staticSource) Tools() []shuttle.Tool { return s.tools }

func echoTool(name, output string) *shuttle.MockTool {
	return &shuttle.MockTool{
		MockName: name,
		MockExecute: func(context.Context, map[string]interface{}) (*shuttle.Result, error) {
			return &shuttle.Result{Success: true, Output: output}, nil
		},
	}
}

func failingTool(name string) *shuttle.MockTool {
	return &shuttle.MockTool{
		MockName: name,
		MockExecute: func(context.Context, map[string]interface{}) (*shuttle.Result, error) {
			return nil, errors.New("connection refused")
		},
	}
}
