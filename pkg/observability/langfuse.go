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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLangfuseHost is Langfuse Cloud.
const DefaultLangfuseHost = "https://cloud.langfuse.com"

// ServiceTag is attached to every trace.
const ServiceTag = "postgres-observability"

const ingestionPath = "/api/public/ingestion"

// LangfuseConfig configures the Langfuse exporter.
type LangfuseConfig struct {
	PublicKey string
	SecretKey string

	// Host is the Langfuse base URL. Default: DefaultLangfuseHost
	Host string

	// BatchSize is the number of events to buffer before flushing.
	// Default: 100
	BatchSize int

	// FlushInterval is how often to flush buffered events.
	// Default: 10s
	FlushInterval time.Duration

	// MaxRetries bounds delivery attempts per batch.
	// Default: 3
	MaxRetries int

	// HTTPClient for custom transport. Default: 30s timeout client.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Enabled reports whether both keys are present.
func (c LangfuseConfig) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// LangfuseExporter batches spans into the Langfuse ingestion API. It is a
// TracerFactory: each session gets a Tracer that tags its traces with the
// session id and database.
type LangfuseExporter struct {
	config   LangfuseConfig
	endpoint string
	client   *http.Client
	logger   *zap.Logger
	buffer   *eventBuffer

	flushing atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewLangfuseExporter creates an exporter and starts its background flusher.
// Missing keys are an error; check LangfuseConfig.Enabled first.
func NewLangfuseExporter(config LangfuseConfig) (*LangfuseExporter, error) {
	if !config.Enabled() {
		return nil, errors.New("langfuse public and secret keys required")
	}
	if config.Host == "" {
		config.Host = DefaultLangfuseHost
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 10 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	e := &LangfuseExporter{
		config:   config,
		endpoint: strings.TrimRight(config.Host, "/") + ingestionPath,
		client:   config.HTTPClient,
		logger:   config.Logger,
		buffer:   newEventBuffer(config.BatchSize),
		stopCh:   make(chan struct{}),
	}

	e.wg.Add(1)
	go e.backgroundFlush()

	return e, nil
}

// ForSession implements TracerFactory. A nil exporter yields nil.
func (e *LangfuseExporter) ForSession(sessionID string, metadata map[string]string) Tracer {
	if e == nil {
		return nil
	}
	tags := []string{ServiceTag}
	if db := metadata["database"]; db != "" {
		tags = append(tags, db)
	}
	return &langfuseTracer{
		exporter:  e,
		sessionID: sessionID,
		metadata:  metadata,
		tags:      tags,
	}
}

// Flush exports everything buffered so far.
func (e *LangfuseExporter) Flush(ctx context.Context) error {
	return e.flushNow(ctx)
}

// Close stops the background flusher and flushes remaining events.
func (e *LangfuseExporter) Close(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	return e.flushNow(ctx)
}

func (e *LangfuseExporter) enqueue(events ...ingestionEvent) {
	e.buffer.add(events...)
	if e.buffer.shouldFlush() && e.flushing.CompareAndSwap(false, true) {
		go func() {
			defer e.flushing.Store(false)
			if err := e.flushNow(context.Background()); err != nil {
				e.logger.Warn("langfuse export failed", zap.Error(err))
			}
		}()
	}
}

func (e *LangfuseExporter) backgroundFlush() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.flushNow(context.Background()); err != nil {
				e.logger.Warn("langfuse export failed", zap.Error(err))
			}
		case <-e.stopCh:
			return
		}
	}
}

// flushNow sends one batch. 4xx responses are not retried.
func (e *LangfuseExporter) flushNow(ctx context.Context) error {
	events := e.buffer.drain()
	if len(events) == 0 {
		return nil
	}

	body, err := json.Marshal(ingestionBatch{Batch: events})
	if err != nil {
		return fmt.Errorf("marshal ingestion batch: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, e.post(ctx, body)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(e.config.MaxRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.logger.Debug("retrying langfuse export", zap.Error(err), zap.Duration("backoff", next))
		}),
	)
	if err != nil {
		return fmt.Errorf("langfuse export of %d events failed: %w", len(events), err)
	}
	return nil
}

func (e *LangfuseExporter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(e.config.PublicKey, e.config.SecretKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send to langfuse: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated,
		resp.StatusCode == http.StatusAccepted, resp.StatusCode == http.StatusMultiStatus:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("langfuse returned non-retryable status %d", resp.StatusCode))
	default:
		return fmt.Errorf("langfuse returned status %d", resp.StatusCode)
	}
}

// langfuseTracer is the per-session view of the exporter.
type langfuseTracer struct {
	exporter  *LangfuseExporter
	sessionID string
	metadata  map[string]string
	tags      []string

	mu      sync.Mutex
	traceID string // last root trace, for metrics
}

func (t *langfuseTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	span := newSpan(ctx, name, opts)
	span.SetAttribute(AttrSessionID, t.sessionID)
	if span.Kind == KindTrace && span.ParentID == "" {
		// The root span doubles as the trace, so children point at it.
		span.SpanID = span.TraceID
		t.mu.Lock()
		t.traceID = span.TraceID
		t.mu.Unlock()
	}
	return ContextWithSpan(ctx, span), span
}

func (t *langfuseTracer) EndSpan(span *Span) {
	if span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	redactCredentials(span)
	t.exporter.enqueue(t.convert(span))
}

// RecordMetric files the value as an event on the latest trace. Metrics
// recorded before any trace started are dropped.
func (t *langfuseTracer) RecordMetric(name string, value float64, labels map[string]string) {
	t.mu.Lock()
	traceID := t.traceID
	t.mu.Unlock()
	if traceID == "" {
		return
	}
	t.exporter.enqueue(newIngestionEvent("event-create", observationBody{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		Name:      name,
		StartTime: time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:  map[string]interface{}{"value": value, "labels": labels},
	}))
}

func (t *langfuseTracer) Flush(ctx context.Context) error {
	return t.exporter.Flush(ctx)
}

func (t *langfuseTracer) convert(span *Span) ingestionEvent {
	if span.Kind == KindTrace && span.SpanID == span.TraceID {
		meta := make(map[string]interface{}, len(t.metadata)+len(span.Attributes))
		for k, v := range span.Attributes {
			meta[k] = v
		}
		for k, v := range t.metadata {
			meta[k] = v
		}
		return newIngestionEvent("trace-create", traceBody{
			ID:        span.TraceID,
			Name:      span.Name,
			SessionID: t.sessionID,
			Tags:      t.tags,
			Metadata:  meta,
			Input:     span.Input,
			Output:    span.Output,
			Timestamp: span.StartTime.UTC().Format(time.RFC3339Nano),
		})
	}

	body := observationBody{
		ID:        span.SpanID,
		TraceID:   span.TraceID,
		Name:      span.Name,
		StartTime: span.StartTime.UTC().Format(time.RFC3339Nano),
		EndTime:   span.EndTime.UTC().Format(time.RFC3339Nano),
		Input:     span.Input,
		Output:    span.Output,
		Metadata:  span.Attributes,
		Level:     "DEFAULT",
	}
	if span.ParentID != span.TraceID {
		body.ParentObservationID = span.ParentID
	}
	if span.Status.Code == StatusError {
		body.Level = "ERROR"
		body.StatusMessage = span.Status.Message
	}

	if span.Kind == KindGeneration {
		body.Model = span.Model
		body.Usage = &usageBody{
			Input:  span.Usage.InputTokens,
			Output: span.Usage.OutputTokens,
			Total:  span.Usage.InputTokens + span.Usage.OutputTokens,
			Unit:   "TOKENS",
		}
		return newIngestionEvent("generation-create", body)
	}
	return newIngestionEvent("span-create", body)
}

// redactCredentials removes attributes whose key looks like a secret.
func redactCredentials(span *Span) {
	for key := range span.Attributes {
		k := strings.ToLower(key)
		if strings.Contains(k, "password") || strings.Contains(k, "secret") ||
			strings.Contains(k, "api_key") || strings.Contains(k, "authorization") {
			delete(span.Attributes, key)
		}
	}
}

// eventBuffer is a thread-safe buffer for ingestion events.
type eventBuffer struct {
	mu       sync.Mutex
	events   []ingestionEvent
	capacity int
}

func newEventBuffer(capacity int) *eventBuffer {
	return &eventBuffer{
		events:   make([]ingestionEvent, 0, capacity),
		capacity: capacity,
	}
}

func (b *eventBuffer) add(events ...ingestionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
}

func (b *eventBuffer) shouldFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events) >= b.capacity
}

func (b *eventBuffer) drain() []ingestionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.events
	b.events = make([]ingestionEvent, 0, b.capacity)
	return events
}

// Langfuse ingestion payload format.
type ingestionBatch struct {
	Batch []ingestionEvent `json:"batch"`
}

type ingestionEvent struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Body      interface{} `json:"body"`
}

func newIngestionEvent(kind string, body interface{}) ingestionEvent {
	return ingestionEvent{
		ID:        uuid.New().String(),
		Type:      kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Body:      body,
	}
}

type traceBody struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	SessionID string                 `json:"sessionId,omitempty"`
	Tags      []string               `json:"tags,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Input     interface{}            `json:"input,omitempty"`
	Output    interface{}            `json:"output,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

type observationBody struct {
	ID                  string                 `json:"id"`
	TraceID             string                 `json:"traceId"`
	ParentObservationID string                 `json:"parentObservationId,omitempty"`
	Name                string                 `json:"name"`
	StartTime           string                 `json:"startTime"`
	EndTime             string                 `json:"endTime,omitempty"`
	Input               interface{}            `json:"input,omitempty"`
	Output              interface{}            `json:"output,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	Level               string                 `json:"level,omitempty"`
	StatusMessage       string                 `json:"statusMessage,omitempty"`
	Model               string                 `json:"model,omitempty"`
	Usage               *usageBody             `json:"usage,omitempty"`
}

type usageBody struct {
	Input  int    `json:"input"`
	Output int    `json:"output"`
	Total  int    `json:"total"`
	Unit   string `json:"unit"`
}

var (
	_ TracerFactory = (*LangfuseExporter)(nil)
	_ Tracer        = (*langfuseTracer)(nil)
)
