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

package observability

import "context"

// Tracer records the spans of one agent session.
//
// Thread-safe: All methods can be called concurrently.
type Tracer interface {
	// StartSpan creates a new span and returns a context containing it.
	// The span is linked to its parent via context propagation.
	//
	// Example:
	//   ctx, span := tracer.StartSpan(ctx, SpanLLMCompletion, WithKind(KindGeneration))
	//   defer tracer.EndSpan(span)
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span)

	// EndSpan completes a span, calculates duration, and hands it to the exporter.
	EndSpan(span *Span)

	// RecordMetric records a point-in-time value with labels.
	RecordMetric(name string, value float64, labels map[string]string)

	// Flush forces export of buffered spans.
	Flush(ctx context.Context) error
}

// TracerFactory hands out a Tracer per session. ForSession returns nil when
// tracing is unavailable (for example, missing credentials); callers then
// fall back to NoOpTracer.
type TracerFactory interface {
	ForSession(sessionID string, metadata map[string]string) Tracer
}

// OrNoOp returns t, or a NoOpTracer when t is nil.
func OrNoOp(t Tracer) Tracer {
	if t == nil {
		return NewNoOpTracer()
	}
	return t
}

// SpanFromContext retrieves the current span from context, if any.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey).(*Span); ok {
		return span
	}
	return nil
}

// ContextWithSpan returns a new context with the span attached.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

// ContextWithTracer attaches the session tracer so that components built
// once per process (such as the instrumented LLM provider) can find it.
func ContextWithTracer(ctx context.Context, t Tracer) context.Context {
	return context.WithValue(ctx, tracerContextKey, t)
}

// TracerFromContext returns the session tracer, or a NoOpTracer.
func TracerFromContext(ctx context.Context) Tracer {
	if t, ok := ctx.Value(tracerContextKey).(Tracer); ok && t != nil {
		return t
	}
	return NewNoOpTracer()
}

type contextKey string

const (
	spanContextKey   contextKey = "pgobserve.span"
	tracerContextKey contextKey = "pgobserve.tracer"
)
