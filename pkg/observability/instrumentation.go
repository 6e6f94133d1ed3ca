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

// Standard span names.
const (
	SpanAgentRun    = "agent.run"
	SpanAgentDecide = "agent.decide"
	SpanAgentTools  = "agent.execute_tools"

	SpanLLMCompletion = "llm.completion"

	SpanToolExecute = "tool.execute"
)

// Standard attribute names.
const (
	AttrSessionID = "session.id"
	AttrStep      = "agent.step"
	AttrDatabase  = "db.name"
	AttrDBType    = "db.type"

	AttrLLMProvider  = "llm.provider"
	AttrLLMModel     = "llm.model"
	AttrLLMToolCount = "llm.tool_count"
	AttrStopReason   = "llm.stop_reason"

	AttrToolName     = "tool.name"
	AttrToolProvider = "tool.provider"
	AttrToolSuccess  = "tool.success"

	AttrErrorMessage = "error.message"
)

// Metric names reported through Tracer.RecordMetric.
const (
	MetricLLMTokensInput  = "llm.tokens.input"  // #nosec G101 -- not a credential, just metric name
	MetricLLMTokensOutput = "llm.tokens.output" // #nosec G101 -- not a credential, just metric name
	MetricLLMLatency      = "llm.latency_ms"
)
