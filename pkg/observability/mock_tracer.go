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

import (
	"context"
	"sync"
	"time"
)

// MockTracer captures ended spans and metrics for inspection in tests.
// Thread-safe: All methods can be called concurrently.
type MockTracer struct {
	mu      sync.RWMutex
	spans   []*Span
	metrics []RecordedMetric
	flushes int
}

// RecordedMetric is one RecordMetric call seen by MockTracer.
type RecordedMetric struct {
	Name   string
	Value  float64
	Labels map[string]string
}

// NewMockTracer creates a new mock tracer for testing.
func NewMockTracer() *MockTracer {
	return &MockTracer{}
}

// StartSpan creates a new span linked to any parent in ctx.
func (m *MockTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	span := newSpan(ctx, name, opts)
	return ContextWithSpan(ctx, span), span
}

// EndSpan completes a span and stores it.
func (m *MockTracer) EndSpan(span *Span) {
	if span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, span)
}

// RecordMetric stores the metric.
func (m *MockTracer) RecordMetric(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, RecordedMetric{Name: name, Value: value, Labels: labels})
}

// Flush records the call.
func (m *MockTracer) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// FlushCount returns how many times Flush was called.
func (m *MockTracer) FlushCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// GetSpans returns all ended spans in end order.
func (m *MockTracer) GetSpans() []*Span {
	m.mu.RLock()
	defer m.mu.RUnlock()

	spans := make([]*Span, len(m.spans))
	copy(spans, m.spans)
	return spans
}

// GetSpansByName returns the ended spans with the given name.
func (m *MockTracer) GetSpansByName(name string) []*Span {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Span
	for _, span := range m.spans {
		if span.Name == name {
			result = append(result, span)
		}
	}
	return result
}

// GetMetrics returns all recorded metrics.
func (m *MockTracer) GetMetrics() []RecordedMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedMetric(nil), m.metrics...)
}

// MockTracerFactory hands out one shared MockTracer and remembers the
// sessions it was asked for.
type MockTracerFactory struct {
	Tracer *MockTracer

	mu       sync.Mutex
	sessions []string
	metadata []map[string]string
}

// ForSession returns the shared tracer.
func (f *MockTracerFactory) ForSession(sessionID string, metadata map[string]string) Tracer {
	f.mu.Lock()
	f.sessions = append(f.sessions, sessionID)
	f.metadata = append(f.metadata, metadata)
	f.mu.Unlock()
	if f.Tracer == nil {
		return nil
	}
	return f.Tracer
}

// Sessions returns the session ids requested so far.
func (f *MockTracerFactory) Sessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sessions...)
}

// Metadata returns the metadata passed with each session.
func (f *MockTracerFactory) Metadata() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.metadata...)
}

var (
	_ Tracer        = (*MockTracer)(nil)
	_ TracerFactory = (*MockTracerFactory)(nil)
)
