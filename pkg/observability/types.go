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

// Package observability provides tracing and metrics for pgobserve.
//
// Each agent invocation gets a session Tracer from a TracerFactory. Decision
// steps, model calls and tool calls are recorded as spans, which an exporter
// (Langfuse) ships in batches. Prometheus counters are kept separately in
// Metrics and served on /metrics.
//
// Example usage:
//
//	tracer := factory.ForSession(conversationID, map[string]string{"database": "orders"})
//	ctx, span := tracer.StartSpan(ctx, SpanAgentRun, WithKind(KindTrace))
//	defer tracer.EndSpan(span)
//	span.SetOutput(response)
package observability

import (
	"time"
)

// StatusCode represents the final status of a span.
type StatusCode int

const (
	// StatusUnset indicates status was not explicitly set.
	StatusUnset StatusCode = iota
	// StatusOK indicates successful completion.
	StatusOK
	// StatusError indicates an error occurred.
	StatusError
)

func (s StatusCode) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// SpanKind says how an exporter should file a span.
type SpanKind string

const (
	// KindSpan is a generic unit of work.
	KindSpan SpanKind = "span"
	// KindGeneration is one model call; it carries model and token usage.
	KindGeneration SpanKind = "generation"
	// KindTrace is the root of one agent invocation.
	KindTrace SpanKind = "trace"
)

// Status represents the final status of a span with optional message.
type Status struct {
	Code    StatusCode
	Message string
}

// Event represents a point-in-time occurrence within a span.
type Event struct {
	Timestamp  time.Time
	Name       string
	Attributes map[string]interface{}
}

// Usage is the token accounting of a generation span.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Span represents a unit of work with timing and metadata.
// Spans form a tree structure via ParentID references.
type Span struct {
	TraceID  string
	SpanID   string
	ParentID string // empty for root

	Name       string
	Kind       SpanKind
	Attributes map[string]interface{}

	// Input and Output are shown verbatim by trace viewers.
	Input  interface{}
	Output interface{}

	// Model and Usage are only meaningful for KindGeneration.
	Model string
	Usage Usage

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration // set by EndSpan

	Events []Event
	Status Status
}

// SetAttribute sets a key-value attribute on the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]interface{})
	}
	s.Attributes[key] = value
}

// SetInput records what the span was given.
func (s *Span) SetInput(v interface{}) { s.Input = v }

// SetOutput records what the span produced.
func (s *Span) SetOutput(v interface{}) { s.Output = v }

// AddEvent adds a timestamped event to the span.
func (s *Span) AddEvent(name string, attrs map[string]interface{}) {
	s.Events = append(s.Events, Event{
		Timestamp:  time.Now(),
		Name:       name,
		Attributes: attrs,
	})
}

// RecordError records an error on the span.
// Sets status to StatusError and adds error attributes.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.Status = Status{
		Code:    StatusError,
		Message: err.Error(),
	}
	s.SetAttribute(AttrErrorMessage, err.Error())
}

// SpanOption is a functional option for configuring spans.
type SpanOption func(*Span)

// WithAttribute returns a SpanOption that sets an attribute.
func WithAttribute(key string, value interface{}) SpanOption {
	return func(s *Span) {
		s.SetAttribute(key, value)
	}
}

// WithKind sets the span kind. Spans default to KindSpan.
func WithKind(kind SpanKind) SpanOption {
	return func(s *Span) {
		s.Kind = kind
	}
}

// WithInput sets the span input.
func WithInput(v interface{}) SpanOption {
	return func(s *Span) {
		s.Input = v
	}
}

// WithParentSpanID returns a SpanOption that explicitly sets the parent span ID.
func WithParentSpanID(parentID string) SpanOption {
	return func(s *Span) {
		s.ParentID = parentID
	}
}
