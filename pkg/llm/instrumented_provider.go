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

package llm

import (
	"context"
	"time"

	"github.com/teradata-labs/pgobserve/pkg/observability"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// InstrumentedProvider wraps any LLMProvider with observability instrumentation.
// Every Chat call becomes a generation span on the session tracer found in
// ctx, and feeds the Prometheus call, latency and token metrics.
//
// This wrapper is transparent and can wrap any LLMProvider implementation.
type InstrumentedProvider struct {
	provider types.LLMProvider
	metrics  *observability.Metrics
}

// NewInstrumentedProvider creates a new instrumented LLM provider. metrics
// may be nil.
func NewInstrumentedProvider(provider types.LLMProvider, metrics *observability.Metrics) *InstrumentedProvider {
	return &InstrumentedProvider{
		provider: provider,
		metrics:  metrics,
	}
}

// Name returns the underlying provider name.
func (p *InstrumentedProvider) Name() string {
	return p.provider.Name()
}

// Model returns the underlying model identifier.
func (p *InstrumentedProvider) Model() string {
	return p.provider.Model()
}

// Unwrap returns the wrapped provider.
func (p *InstrumentedProvider) Unwrap() types.LLMProvider {
	return p.provider
}

// Chat sends a conversation to the LLM and captures detailed observability data.
func (p *InstrumentedProvider) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	tracer := observability.TracerFromContext(ctx)
	_, span := tracer.StartSpan(ctx, observability.SpanLLMCompletion,
		observability.WithKind(observability.KindGeneration),
		observability.WithInput(generationInput(messages)),
		observability.WithAttribute(observability.AttrLLMProvider, p.provider.Name()),
		observability.WithAttribute(observability.AttrLLMModel, p.provider.Model()),
		observability.WithAttribute(observability.AttrLLMToolCount, len(tools)))
	span.Model = p.provider.Model()
	defer tracer.EndSpan(span)

	start := time.Now()
	resp, err := p.provider.Chat(ctx, messages, tools)
	duration := time.Since(start)

	labels := map[string]string{
		observability.AttrLLMProvider: p.provider.Name(),
		observability.AttrLLMModel:    p.provider.Model(),
	}

	if err != nil {
		span.RecordError(err)
		p.metrics.RecordLLMCall(p.provider.Name(), p.provider.Model(), false, duration)
		return nil, err
	}

	span.Status = observability.Status{Code: observability.StatusOK}
	span.Usage = observability.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	span.SetAttribute(observability.AttrStopReason, resp.StopReason)
	span.SetOutput(generationOutput(resp))

	p.metrics.RecordLLMCall(p.provider.Name(), p.provider.Model(), true, duration)
	p.metrics.RecordTokens(p.provider.Name(), resp.Usage.InputTokens, resp.Usage.OutputTokens)

	tracer.RecordMetric(observability.MetricLLMLatency, float64(duration.Milliseconds()), labels)
	tracer.RecordMetric(observability.MetricLLMTokensInput, float64(resp.Usage.InputTokens), labels)
	tracer.RecordMetric(observability.MetricLLMTokensOutput, float64(resp.Usage.OutputTokens), labels)

	return resp, nil
}

// generationInput is the message list as Langfuse renders it.
func generationInput(messages []types.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		entry := map[string]interface{}{"role": m.Role, "content": m.Content}
		if len(m.ToolCalls) > 0 {
			entry["tool_calls"] = m.ToolCalls
		}
		if m.ToolUseID != "" {
			entry["tool_call_id"] = m.ToolUseID
		}
		out = append(out, entry)
	}
	return out
}

func generationOutput(resp *types.LLMResponse) map[string]interface{} {
	out := map[string]interface{}{"content": resp.Content}
	if len(resp.ToolCalls) > 0 {
		out["tool_calls"] = resp.ToolCalls
	}
	return out
}
