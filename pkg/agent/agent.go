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

// Package agent implements the PostgreSQL observability agent: a bounded
// ReAct loop that alternates model decisions with calls to the Prometheus and
// VictoriaLogs tool providers, scoped to one database per invocation.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/observability"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// traceFlushTimeout bounds the export of one session's spans.
const traceFlushTimeout = 10 * time.Second

// ToolSource supplies the tools bound to each invocation. The MCP manager
// implements it; Initialize must be idempotent and safe for concurrent use.
type ToolSource interface {
	Initialize(ctx context.Context) error
	Tools() []shuttle.Tool
}

// Request is one user turn.
type Request struct {
	Message        string
	DatabaseName   string
	DatabaseType   string
	ConversationID string
	History        []HistoryEntry

	// Progress, if set, receives loop events synchronously.
	Progress types.ProgressCallback
}

// Config holds agent tuning.
type Config struct {
	// MaxSteps caps decision steps (<= 0 means DefaultMaxSteps).
	MaxSteps int

	// PreviewLength bounds tool results in the transcript, in runes
	// (<= 0 means DefaultPreviewLength).
	PreviewLength int

	Retry RetryConfig
}

// DefaultConfig returns the default agent configuration.
func DefaultConfig() Config {
	return Config{
		MaxSteps:      DefaultMaxSteps,
		PreviewLength: DefaultPreviewLength,
		Retry:         DefaultRetryConfig(),
	}
}

// Agent answers questions about one database per invocation. It holds no
// per-conversation state and is safe for concurrent use.
type Agent struct {
	llm     types.LLMProvider
	tools   ToolSource
	config  Config
	tracers observability.TracerFactory
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Option is a functional option for configuring an Agent.
type Option func(*Agent)

// WithConfig replaces the agent configuration.
func WithConfig(cfg Config) Option {
	return func(a *Agent) { a.config = cfg }
}

// WithTracerFactory sets the per-session tracer source.
func WithTracerFactory(f observability.TracerFactory) Option {
	return func(a *Agent) { a.tracers = f }
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAgent creates an agent. tools may be nil, in which case the model is
// invoked without any bound tools.
func NewAgent(llm types.LLMProvider, tools ToolSource, opts ...Option) *Agent {
	a := &Agent{
		llm:    llm,
		tools:  tools,
		config: DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunAgent answers one question. Provider start failures only shrink the
// tool set; the returned error is non-nil only when the model call fails.
func (a *Agent) RunAgent(ctx context.Context, req Request) (*Result, error) {
	id := Identity{Name: req.DatabaseName, Type: req.DatabaseType}
	logger := a.logger.With(
		zap.String("conversation_id", req.ConversationID),
		zap.String("database", id.Name))

	registry := shuttle.NewRegistry(a.boundTools(ctx, logger)...)

	tracer := a.sessionTracer(req.ConversationID, id)
	defer a.flushTraces(tracer, logger)
	ctx = observability.ContextWithTracer(ctx, tracer)
	ctx, span := tracer.StartSpan(ctx, observability.SpanAgentRun,
		observability.WithKind(observability.KindTrace),
		observability.WithInput(req.Message),
		observability.WithAttribute(observability.AttrSessionID, req.ConversationID),
		observability.WithAttribute(observability.AttrDatabase, id.Name),
		observability.WithAttribute(observability.AttrDBType, id.Type),
		observability.WithAttribute(observability.AttrLLMToolCount, registry.Count()))
	defer tracer.EndSpan(span)

	conv := BuildConversation(id, req.History, req.Message)
	loop := NewLoop(a.llm, registry,
		WithLoopTracer(tracer),
		WithLoopMetrics(a.metrics),
		WithLoopLogger(logger),
		WithStepLimit(a.config.MaxSteps),
		WithRetry(a.config.Retry),
		WithProgress(req.Progress))

	logger.Info("agent invocation started", zap.Int("tools", registry.Count()))

	steps, err := loop.Run(ctx, conv)
	outcome := "success"
	switch {
	case errors.Is(err, ErrMaxStepsExceeded):
		outcome = "max_steps"
		logger.Warn("step limit reached, returning partial transcript", zap.Int("steps", steps))
	case err != nil:
		span.RecordError(err)
		a.metrics.RecordAgentRun("error")
		logger.Error("agent invocation failed", zap.Int("steps", steps), zap.Error(err))
		return nil, err
	}

	result := Project(conv, a.config.PreviewLength)
	span.SetOutput(result.Response)
	a.metrics.RecordAgentRun(outcome)

	logger.Info("agent invocation finished",
		zap.Int("steps", steps),
		zap.Int("tool_calls", len(result.ToolCalls)),
		zap.String("outcome", outcome))
	return result, nil
}

// boundTools starts the providers on first use and returns what they offer.
func (a *Agent) boundTools(ctx context.Context, logger *zap.Logger) []shuttle.Tool {
	if a.tools == nil {
		return nil
	}
	if err := a.tools.Initialize(ctx); err != nil {
		logger.Warn("tool providers unavailable, continuing without tools", zap.Error(err))
	}
	return a.tools.Tools()
}

// flushTraces exports the session's spans in the background so that a slow
// tracing backend never delays the answer.
func (a *Agent) flushTraces(tracer observability.Tracer, logger *zap.Logger) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
		defer cancel()
		if err := tracer.Flush(ctx); err != nil {
			logger.Warn("trace export failed", zap.Error(err))
		}
	}()
}

func (a *Agent) sessionTracer(sessionID string, id Identity) observability.Tracer {
	if a.tracers == nil || strings.TrimSpace(sessionID) == "" {
		return observability.NewNoOpTracer()
	}
	return observability.OrNoOp(a.tracers.ForSession(sessionID, map[string]string{
		"database": id.Name,
		"db_type":  id.Type,
	}))
}
