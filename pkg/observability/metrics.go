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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pgobserve"

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing, so components take it as an optional dependency.
type Metrics struct {
	agentRuns     *prometheus.CounterVec
	agentSteps    *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	llmCalls      *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	llmTokens     *prometheus.CounterVec
	providerUp    *prometheus.GaugeVec
	providerTools *prometheus.GaugeVec
	providerStart *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them. A nil registry
// yields nil.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		agentRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "agent_runs_total",
				Help:      "Agent invocations by outcome",
			},
			[]string{"outcome"},
		),
		agentSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "agent_steps_total",
				Help:      "Reasoning loop steps by state",
			},
			[]string{"state"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tool_calls_total",
				Help:      "Tool dispatches by tool and status",
			},
			[]string{"tool", "status"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool round trip latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		llmCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "llm_calls_total",
				Help:      "Model invocations by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),
		llmDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "llm_call_duration_seconds",
				Help:      "Model invocation latency",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"provider"},
		),
		llmTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "llm_tokens_total",
				Help:      "Tokens reported by the model provider",
			},
			[]string{"provider", "direction"},
		),
		providerUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "mcp_provider_up",
				Help:      "1 when the tool provider is connected",
			},
			[]string{"provider"},
		),
		providerTools: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "mcp_provider_tools",
				Help:      "Tools exposed by the provider",
			},
			[]string{"provider"},
		),
		providerStart: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "mcp_provider_starts_total",
				Help:      "Provider start attempts by status",
			},
			[]string{"provider", "status"},
		),
	}

	registry.MustRegister(
		m.agentRuns,
		m.agentSteps,
		m.toolCalls,
		m.toolDuration,
		m.llmCalls,
		m.llmDuration,
		m.llmTokens,
		m.providerUp,
		m.providerTools,
		m.providerStart,
	)

	return m
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// RecordAgentRun counts one invocation. outcome is "success", "max_steps" or
// "error".
func (m *Metrics) RecordAgentRun(outcome string) {
	if m != nil {
		m.agentRuns.WithLabelValues(outcome).Inc()
	}
}

// RecordStep counts one loop state entry.
func (m *Metrics) RecordStep(state string) {
	if m != nil {
		m.agentSteps.WithLabelValues(state).Inc()
	}
}

// RecordToolCall counts one dispatch and its latency.
func (m *Metrics) RecordToolCall(tool string, ok bool, d time.Duration) {
	if m != nil {
		m.toolCalls.WithLabelValues(tool, statusLabel(ok)).Inc()
		m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// RecordLLMCall counts one model invocation and its latency.
func (m *Metrics) RecordLLMCall(provider, model string, ok bool, d time.Duration) {
	if m != nil {
		m.llmCalls.WithLabelValues(provider, model, statusLabel(ok)).Inc()
		m.llmDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// RecordTokens adds provider-reported token usage.
func (m *Metrics) RecordTokens(provider string, input, output int) {
	if m != nil {
		m.llmTokens.WithLabelValues(provider, "input").Add(float64(input))
		m.llmTokens.WithLabelValues(provider, "output").Add(float64(output))
	}
}

// RecordProviderStart records the outcome of one provider start.
func (m *Metrics) RecordProviderStart(provider string, ok bool) {
	if m != nil {
		m.providerStart.WithLabelValues(provider, statusLabel(ok)).Inc()
		up := 0.0
		if ok {
			up = 1
		}
		m.providerUp.WithLabelValues(provider).Set(up)
	}
}

// SetProviderTools records how many tools a provider exposes.
func (m *Metrics) SetProviderTools(provider string, n int) {
	if m != nil {
		m.providerTools.WithLabelValues(provider).Set(float64(n))
	}
}

// ResetProviders marks every provider down after cleanup.
func (m *Metrics) ResetProviders() {
	if m != nil {
		m.providerUp.Reset()
		m.providerTools.Reset()
	}
}
