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
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/mcp/adapter"
	"github.com/teradata-labs/pgobserve/pkg/mcp/protocol"
	"github.com/teradata-labs/pgobserve/pkg/observability"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// logsProvider answers every call with the same text.
type logsProvider struct {
	text string
}

func (p *logsProvider) CallTool(context.Context, string, map[string]interface{}) (*protocol.CallToolResult, error) {
	return &protocol.CallToolResult{Content: []protocol.Content{{Type: "text", Text: p.text}}}, nil
}

func noRetry() Config {
	cfg := DefaultConfig()
	cfg.Retry = RetryConfig{}
	return cfg
}

func TestRunAgent_ErrorsInTheLastHour(t *testing.T) {
	logs := strings.Repeat("2024-05-01T10:00:00Z ERROR: canceling statement due to statement timeout\n", 40)
	require.Greater(t, len(logs), 2000)

	queryTool := adapter.NewProviderTool("victorialogs",
		protocol.Tool{Name: "query", Description: "Run a LogsQL query"},
		&logsProvider{text: logs}, zap.NewNop())

	args := map[string]interface{}{"query": `_time:1h error`}
	llm := &scriptedLLM{responses: []*types.LLMResponse{
		toolsCalling(types.ToolCall{ID: "toolu_1", Name: "victorialogs__query", Input: args}),
		answer("There were 40 statement timeouts in the last hour."),
	}}
	source := &staticSource{tools: []shuttle.Tool{queryTool}}
	factory := &observability.MockTracerFactory{Tracer: observability.NewMockTracer()}

	a := NewAgent(llm, source, WithConfig(noRetry()), WithTracerFactory(factory))
	res, err := a.RunAgent(context.Background(), Request{
		Message:        "any errors in the last hour?",
		DatabaseName:   "orders",
		DatabaseType:   "aurora-postgresql",
		ConversationID: "conv-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "There were 40 statement timeouts in the last hour.", res.Response)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "victorialogs__query", res.ToolCalls[0].Tool)
	assert.Equal(t, args, res.ToolCalls[0].Args)
	assert.Equal(t, logs[:500], res.ToolCalls[0].Result)

	// the model saw the full result, not the preview
	calls := llm.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"victorialogs__query"}, calls[0].tools)
	assert.Equal(t, logs, calls[1].messages[len(calls[1].messages)-1].Content)

	assert.Equal(t, []string{"conv-1"}, factory.Sessions())
	assert.Equal(t, map[string]string{"database": "orders", "db_type": "aurora-postgresql"}, factory.Metadata()[0])
	runs := factory.Tracer.GetSpansByName(observability.SpanAgentRun)
	require.Len(t, runs, 1)
	assert.Equal(t, observability.KindTrace, runs[0].Kind)
	assert.Equal(t, res.Response, runs[0].Output)

	// the run span is ended before the session is exported
	assert.Eventually(t, func() bool { return factory.Tracer.FlushCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRunAgent_AllProvidersFailed(t *testing.T) {
	llm := &scriptedLLM{responses: []*types.LLMResponse{
		answer("I cannot reach the metrics or log stores right now."),
	}}
	source := &staticSource{}

	res, err := NewAgent(llm, source, WithConfig(noRetry())).RunAgent(context.Background(), Request{
		Message:      "status?",
		DatabaseName: "orders",
		DatabaseType: "postgres",
	})
	require.NoError(t, err)

	assert.Equal(t, "I cannot reach the metrics or log stores right now.", res.Response)
	assert.Empty(t, res.ToolCalls)
	require.Len(t, llm.recorded(), 1)
	assert.Empty(t, llm.recorded()[0].tools)
	assert.Equal(t, 1, source.inits)
}

func TestRunAgent_InitializeErrorIsNotFatal(t *testing.T) {
	llm := &scriptedLLM{}
	source := &staticSource{initErr: errors.New("docker not installed")}

	res, err := NewAgent(llm, source).RunAgent(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Response)
}

func TestRunAgent_NilToolSource(t *testing.T) {
	res, err := NewAgent(&scriptedLLM{}, nil).RunAgent(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Response)
}

func TestRunAgent_ModelFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	llm := &scriptedLLM{errs: []error{errors.New("invalid api key")}}

	a := NewAgent(llm, &staticSource{}, WithConfig(noRetry()), WithMetrics(observability.NewMetrics(reg)))
	res, err := a.RunAgent(context.Background(), Request{Message: "q"})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrModelInvocation)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, 1.0, counterValue(t, reg, "pgobserve_agent_runs_total", "outcome", "error"))
}

func TestRunAgent_StepLimitReturnsFallback(t *testing.T) {
	responses := make([]*types.LLMResponse, 5)
	for i := range responses {
		responses[i] = toolsCalling(types.ToolCall{Name: "prometheus__execute_query"})
	}
	llm := &scriptedLLM{responses: responses}
	source := &staticSource{tools: []shuttle.Tool{echoTool("prometheus__execute_query", "pg_up 1")}}
	reg := prometheus.NewRegistry()

	cfg := noRetry()
	cfg.MaxSteps = 2
	a := NewAgent(llm, source, WithConfig(cfg), WithMetrics(observability.NewMetrics(reg)))

	res, err := a.RunAgent(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, FallbackResponse, res.Response)
	assert.Len(t, res.ToolCalls, 2)
	assert.Equal(t, 1.0, counterValue(t, reg, "pgobserve_agent_runs_total", "outcome", "max_steps"))
}

func TestRunAgent_HistoryIsForwarded(t *testing.T) {
	llm := &scriptedLLM{}
	_, err := NewAgent(llm, nil).RunAgent(context.Background(), Request{
		Message: "and now?",
		History: []HistoryEntry{
			{Role: "user", Content: "how many connections?"},
			{Role: "assistant", Content: "42"},
		},
	})
	require.NoError(t, err)

	msgs := llm.recorded()[0].messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "how many connections?", msgs[1].Content)
	assert.Equal(t, types.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "and now?", msgs[3].Content)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
