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
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/observability"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// DefaultMaxSteps caps decision steps per invocation.
const DefaultMaxSteps = 25

// State is a node of the reasoning state machine.
type State int

const (
	StateDeciding State = iota
	StateExecutingTools
	StateDone
)

func (s State) String() string {
	switch s {
	case StateDeciding:
		return "deciding"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Loop alternates model decisions and tool execution over a conversation
// until the model answers without requesting tools.
//
// A Loop is built per invocation and is not safe for concurrent use.
type Loop struct {
	llm      types.LLMProvider
	registry *shuttle.Registry
	tracer   observability.Tracer
	metrics  *observability.Metrics
	logger   *zap.Logger
	maxSteps int
	retry    RetryConfig
	progress types.ProgressCallback
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopTracer sets the tracer for step spans.
func WithLoopTracer(t observability.Tracer) LoopOption {
	return func(l *Loop) { l.tracer = observability.OrNoOp(t) }
}

// WithLoopMetrics sets the Prometheus metrics sink.
func WithLoopMetrics(m *observability.Metrics) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

// WithLoopLogger sets the logger.
func WithLoopLogger(logger *zap.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithStepLimit caps decision steps. n <= 0 means DefaultMaxSteps.
func WithStepLimit(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxSteps = n
		}
	}
}

// WithRetry sets the model retry policy.
func WithRetry(cfg RetryConfig) LoopOption {
	return func(l *Loop) { l.retry = cfg }
}

// WithProgress sets a callback invoked as the loop advances.
func WithProgress(cb types.ProgressCallback) LoopOption {
	return func(l *Loop) { l.progress = cb }
}

// NewLoop creates a loop dispatching tool calls through registry.
func NewLoop(llm types.LLMProvider, registry *shuttle.Registry, opts ...LoopOption) *Loop {
	l := &Loop{
		llm:      llm,
		registry: registry,
		tracer:   observability.NewNoOpTracer(),
		logger:   zap.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry == nil {
		l.registry = shuttle.NewRegistry()
	}
	return l
}

// Run drives the conversation to StateDone and returns the number of decision
// steps taken. Tool failures are fed back to the model as text; only a model
// failure (*ModelError) or the step cap (ErrMaxStepsExceeded) stop it early.
func (l *Loop) Run(ctx context.Context, conv *Conversation) (int, error) {
	state := StateDeciding
	steps := 0

	for {
		switch state {
		case StateDeciding:
			if steps >= l.maxSteps {
				return steps, fmt.Errorf("%w: %d steps", ErrMaxStepsExceeded, steps)
			}
			steps++
			l.metrics.RecordStep(state.String())

			resp, err := l.decide(ctx, conv, steps)
			if err != nil {
				return steps, err
			}
			if len(resp.ToolCalls) > 0 {
				state = StateExecutingTools
			} else {
				state = StateDone
			}

		case StateExecutingTools:
			l.metrics.RecordStep(state.String())
			l.executeTools(ctx, conv, steps)
			state = StateDeciding

		case StateDone:
			l.emit(types.ProgressEvent{Stage: types.StageCompleted, Step: steps, Message: "Response ready"})
			return steps, nil
		}
	}
}

// decide refreshes the system directive, asks the model for the next move
// and appends its reply.
func (l *Loop) decide(ctx context.Context, conv *Conversation, step int) (*types.LLMResponse, error) {
	ctx, span := l.tracer.StartSpan(ctx, observability.SpanAgentDecide,
		observability.WithAttribute(observability.AttrStep, step))
	defer l.tracer.EndSpan(span)

	conv.setSystemMessage(BuildSystemPrompt(conv.Database))
	tools := l.registry.ListTools()
	span.SetAttribute(observability.AttrLLMToolCount, len(tools))

	l.emit(types.ProgressEvent{Stage: types.StageLLMGeneration, Step: step, Message: "Waiting for model"})

	resp, err := chatWithRetry(ctx, l.llm, l.retry, l.logger, conv.Messages, tools)
	if err != nil {
		merr := &ModelError{Provider: l.llm.Name(), Model: l.llm.Model(), Step: step, Err: err}
		span.RecordError(merr)
		l.emit(types.ProgressEvent{Stage: types.StageFailed, Step: step, Message: merr.Error()})
		return nil, merr
	}

	calls := make([]types.ToolCall, len(resp.ToolCalls))
	for i, call := range resp.ToolCalls {
		if call.ID == "" {
			call.ID = "call_" + uuid.NewString()
		}
		if call.Input == nil {
			call.Input = map[string]interface{}{}
		}
		calls[i] = call
	}
	resp.ToolCalls = calls

	conv.Messages = append(conv.Messages, types.AssistantMessage(resp.Content, calls...))
	span.SetAttribute(observability.AttrStopReason, resp.StopReason)
	span.SetOutput(resp.Content)

	l.logger.Debug("decision step complete",
		zap.Int("step", step),
		zap.Int("tool_calls", len(calls)),
		zap.String("stop_reason", resp.StopReason))
	return resp, nil
}

// executeTools runs every call of the latest assistant message in emission
// order and appends exactly one result per call.
func (l *Loop) executeTools(ctx context.Context, conv *Conversation, step int) {
	last := conv.lastMessage()
	if last == nil {
		return
	}
	calls := last.ToolCalls

	ctx, span := l.tracer.StartSpan(ctx, observability.SpanAgentTools,
		observability.WithAttribute(observability.AttrStep, step))
	defer l.tracer.EndSpan(span)

	for _, call := range calls {
		l.emit(types.ProgressEvent{
			Stage:    types.StageToolExecution,
			Step:     step,
			Message:  "Calling " + call.Name,
			ToolName: call.Name,
		})
		content := l.executeTool(ctx, call)
		conv.Messages = append(conv.Messages, types.ToolResultMessage(call, content))
	}
}

func (l *Loop) executeTool(ctx context.Context, call types.ToolCall) string {
	ctx, span := l.tracer.StartSpan(ctx, observability.SpanToolExecute,
		observability.WithAttribute(observability.AttrToolName, call.Name),
		observability.WithInput(call.Input))
	defer l.tracer.EndSpan(span)

	if tool, ok := l.registry.Get(call.Name); ok {
		span.SetAttribute(observability.AttrToolProvider, tool.Backend())
	}

	start := time.Now()
	var res *shuttle.Result
	if call.InvalidArguments != "" {
		res = shuttle.FailureResult(call.Name, shuttle.ErrCodeArguments, "invalid arguments: "+call.InvalidArguments, 0)
	} else {
		res = l.registry.Execute(ctx, call.Name, call.Input)
	}
	elapsed := time.Since(start)

	l.metrics.RecordToolCall(call.Name, res.Success, elapsed)
	span.SetAttribute(observability.AttrToolSuccess, res.Success)
	span.SetOutput(res.Output)
	if !res.Success && res.Error != nil {
		span.SetAttribute(observability.AttrErrorMessage, res.Error.Message)
		l.logger.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.String("code", res.Error.Code),
			zap.String("error", res.Error.Message))
	}

	l.logger.Debug("tool call complete",
		zap.String("tool", call.Name),
		zap.Bool("success", res.Success),
		zap.Duration("duration", elapsed))
	return res.Output
}

func (l *Loop) emit(ev types.ProgressEvent) {
	if l.progress == nil {
		return
	}
	ev.Timestamp = time.Now()
	l.progress(ev)
}
