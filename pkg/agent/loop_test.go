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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/observability"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

var testIdentity = Identity{Name: "orders", Type: "aurora-postgresql"}

func TestLoop_TerminatesWithoutToolCalls(t *testing.T) {
	llm := &scriptedLLM{responses: []*types.LLMResponse{answer("All healthy.")}}
	tool := echoTool("prometheus__execute_query", "1")
	conv := BuildConversation(testIdentity, nil, "status?")

	steps, err := NewLoop(llm, shuttle.NewRegistry(tool)).Run(context.Background(), conv)
	require.NoError(t, err)

	assert.Equal(t, 1, steps)
	assert.Len(t, llm.recorded(), 1)
	assert.Empty(t, tool.Calls())
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, types.RoleSystem, conv.Messages[0].Role)
	assert.Equal(t, "All healthy.", conv.Messages[2].Content)
}

func TestLoop_PairsResultsInEmissionOrder(t *testing.T) {
	llm := &scriptedLLM{responses: []*types.LLMResponse{
		toolsCalling(
			types.ToolCall{ID: "a", Name: "prometheus__execute_query", Input: map[string]interface{}{"query": "pg_up"}},
			types.ToolCall{ID: "b", Name: "victorialogs__query", Input: map[string]interface{}{"query": "error"}},
		),
		answer("Found it."),
	}}
	registry := shuttle.NewRegistry(
		echoTool("prometheus__execute_query", "pg_up 1"),
		echoTool("victorialogs__query", "ERROR: deadlock detected"),
	)
	conv := BuildConversation(testIdentity, nil, "why slow?")

	steps, err := NewLoop(llm, registry).Run(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, 2, steps)

	// system, user, assistant(2 calls), tool a, tool b, assistant
	require.Len(t, conv.Messages, 6)
	assert.Equal(t, "a", conv.Messages[3].ToolUseID)
	assert.Equal(t, "pg_up 1", conv.Messages[3].Content)
	assert.Equal(t, "b", conv.Messages[4].ToolUseID)
	assert.Equal(t, "ERROR: deadlock detected", conv.Messages[4].Content)

	// the second decision sees both results
	calls := llm.recorded()
	require.Len(t, calls, 2)
	assert.Len(t, calls[1].messages, 5)
}

func TestLoop_ToolFailureIsContained(t *testing.T) {
	llm := &scriptedLLM{responses: []*types.LLMResponse{
		toolsCalling(
			types.ToolCall{ID: "1", Name: "prometheus__execute_query"},
			types.ToolCall{ID: "2", Name: "loki__query"},
		),
		answer("Prometheus is unreachable."),
	}}
	registry := shuttle.NewRegistry(failingTool("prometheus__execute_query"))
	conv := BuildConversation(testIdentity, nil, "status?")

	_, err := NewLoop(llm, registry).Run(context.Background(), conv)
	require.NoError(t, err)

	assert.Equal(t, "Error calling tool prometheus__execute_query: connection refused", conv.Messages[3].Content)
	assert.Equal(t, "Error calling tool loki__query: tool not found", conv.Messages[4].Content)
	assert.Equal(t, "Prometheus is unreachable.", conv.lastMessage().Content)
}

func TestLoop_UndecodableArgumentsAreReported(t *testing.T) {
	llm := &scriptedLLM{responses: []*types.LLMResponse{
		toolsCalling(types.ToolCall{
			ID:               "1",
			Name:             "prometheus__execute_query",
			Input:            map[string]interface{}{},
			InvalidArguments: "unexpected end of JSON input",
		}),
		answer("Retried."),
	}}
	tool := echoTool("prometheus__execute_query", "pg_up 1")
	conv := BuildConversation(testIdentity, nil, "status?")

	_, err := NewLoop(llm, shuttle.NewRegistry(tool)).Run(context.Background(), conv)
	require.NoError(t, err)

	assert.Empty(t, tool.Calls(), "tool must not run with undecodable arguments")
	assert.Equal(t, "Error calling tool prometheus__execute_query: invalid arguments: unexpected end of JSON input",
		conv.Messages[3].Content)
	assert.Equal(t, "1", conv.Messages[3].ToolUseID)
}

func TestLoop_SystemMessageReplacedEachStep(t *testing.T) {
	llm := &scriptedLLM{responses: []*types.LLMResponse{
		toolsCalling(types.ToolCall{ID: "1", Name: "prometheus__execute_query"}),
		toolsCalling(types.ToolCall{ID: "2", Name: "prometheus__execute_query"}),
	}}
	registry := shuttle.NewRegistry(echoTool("prometheus__execute_query", "ok"))
	conv := BuildConversation(testIdentity, []HistoryEntry{{Role: "system", Content: "stale"}}, "q")

	_, err := NewLoop(llm, registry).Run(context.Background(), conv)
	require.NoError(t, err)

	for _, call := range llm.recorded() {
		systems := 0
		for _, m := range call.messages {
			if m.Role == types.RoleSystem {
				systems++
			}
		}
		assert.Equal(t, 1, systems)
		assert.Equal(t, types.RoleSystem, call.messages[0].Role)
		assert.Contains(t, call.messages[0].Content, `job="orders"`)
		assert.Contains(t, call.messages[0].Content, `db_type="aurora-postgresql"`)
	}
}

func TestLoop_GeneratesMissingCallIDs(t *testing.T) {
	llm := &scriptedLLM{responses: []*types.LLMResponse{
		toolsCalling(types.ToolCall{Name: "prometheus__execute_query"}),
	}}
	registry := shuttle.NewRegistry(echoTool("prometheus__execute_query", "ok"))
	conv := BuildConversation(testIdentity, nil, "q")

	_, err := NewLoop(llm, registry).Run(context.Background(), conv)
	require.NoError(t, err)

	call := conv.Messages[2].ToolCalls[0]
	assert.NotEmpty(t, call.ID)
	assert.NotNil(t, call.Input)
	assert.Equal(t, call.ID, conv.Messages[3].ToolUseID)
}

func TestLoop_MaxSteps(t *testing.T) {
	loopForever := make([]*types.LLMResponse, 10)
	for i := range loopForever {
		loopForever[i] = toolsCalling(types.ToolCall{Name: "prometheus__execute_query"})
	}
	llm := &scriptedLLM{responses: loopForever}
	registry := shuttle.NewRegistry(echoTool("prometheus__execute_query", "ok"))
	conv := BuildConversation(testIdentity, nil, "q")

	steps, err := NewLoop(llm, registry, WithStepLimit(3)).Run(context.Background(), conv)
	assert.ErrorIs(t, err, ErrMaxStepsExceeded)
	assert.Equal(t, 3, steps)
	assert.Len(t, llm.recorded(), 3)

	// every call still has its result
	assert.Equal(t, types.RoleTool, conv.lastMessage().Role)
}

func TestLoop_StepLimitDefault(t *testing.T) {
	assert.Equal(t, DefaultMaxSteps, NewLoop(&scriptedLLM{}, nil, WithStepLimit(0)).maxSteps)
	assert.Equal(t, DefaultMaxSteps, NewLoop(&scriptedLLM{}, nil, WithStepLimit(-1)).maxSteps)
}

func TestLoop_ModelFailure(t *testing.T) {
	cause := errors.New("503 service unavailable")
	llm := &scriptedLLM{errs: []error{cause}}
	conv := BuildConversation(testIdentity, nil, "q")

	steps, err := NewLoop(llm, nil).Run(context.Background(), conv)
	require.Error(t, err)
	assert.Equal(t, 1, steps)
	assert.ErrorIs(t, err, ErrModelInvocation)
	assert.ErrorIs(t, err, cause)

	var merr *ModelError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "scripted", merr.Provider)
	assert.Equal(t, 1, merr.Step)
}

func TestLoop_RetriesTransientModelFailure(t *testing.T) {
	llm := &scriptedLLM{
		errs:      []error{errors.New("429 rate limited")},
		responses: []*types.LLMResponse{nil, answer("recovered")},
	}
	conv := BuildConversation(testIdentity, nil, "q")

	retry := RetryConfig{Enabled: true, MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	steps, err := NewLoop(llm, nil, WithRetry(retry), WithLoopLogger(zap.NewNop())).Run(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	assert.Len(t, llm.recorded(), 2)
	assert.Equal(t, "recovered", conv.lastMessage().Content)
}

func TestLoop_RetryExhausted(t *testing.T) {
	cause := errors.New("500")
	llm := &scriptedLLM{errs: []error{cause, cause}}
	conv := BuildConversation(testIdentity, nil, "q")

	retry := RetryConfig{Enabled: true, MaxRetries: 1, InitialDelay: time.Millisecond}
	_, err := NewLoop(llm, nil, WithRetry(retry)).Run(context.Background(), conv)
	assert.ErrorIs(t, err, ErrModelInvocation)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, llm.recorded(), 2)
}

func TestLoop_TracesAndProgress(t *testing.T) {
	llm := &scriptedLLM{responses: []*types.LLMResponse{
		toolsCalling(types.ToolCall{ID: "1", Name: "prometheus__execute_query"}),
		answer("ok"),
	}}
	tool := echoTool("prometheus__execute_query", "1")
	tool.MockBackend = "prometheus"
	tracer := observability.NewMockTracer()

	var stages []types.ExecutionStage
	progress := func(ev types.ProgressEvent) { stages = append(stages, ev.Stage) }

	_, err := NewLoop(llm, shuttle.NewRegistry(tool),
		WithLoopTracer(tracer), WithProgress(progress)).Run(context.Background(), BuildConversation(testIdentity, nil, "q"))
	require.NoError(t, err)

	assert.Len(t, tracer.GetSpansByName(observability.SpanAgentDecide), 2)
	toolSpans := tracer.GetSpansByName(observability.SpanToolExecute)
	require.Len(t, toolSpans, 1)
	assert.Equal(t, "prometheus", toolSpans[0].Attributes[observability.AttrToolProvider])
	assert.Equal(t, true, toolSpans[0].Attributes[observability.AttrToolSuccess])

	assert.Equal(t, []types.ExecutionStage{
		types.StageLLMGeneration,
		types.StageToolExecution,
		types.StageLLMGeneration,
		types.StageCompleted,
	}, stages)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "deciding", StateDeciding.String())
	assert.Equal(t, "executing_tools", StateExecutingTools.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(9).String())
}
