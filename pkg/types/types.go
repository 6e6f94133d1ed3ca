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

// Package types holds the conversation and model types shared by the agent
// and the LLM providers, kept apart to avoid import cycles.
package types

import (
	"context"
	"time"

	"github.com/teradata-labs/pgobserve/pkg/shuttle"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	// ID correlates the call with its result. Providers that do not return
	// one get a generated id.
	ID string

	// Name is the qualified tool name
	Name string

	// Input contains the decoded tool arguments
	Input map[string]interface{}

	// InvalidArguments is set when the model's arguments could not be
	// decoded. The call is then answered with an error instead of running.
	InvalidArguments string
}

// Message represents a single message in the conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser, RoleAssistant, RoleTool
	Role string

	// Content is the message text
	Content string

	// ToolCalls contains tool invocations (if role is assistant)
	ToolCalls []ToolCall

	// ToolUseID is the ID of the call this result answers (if role is tool)
	ToolUseID string

	// ToolName is the qualified name of the tool that produced the result
	// (if role is tool)
	ToolName string
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message.
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage builds the result message for one call.
func ToolResultMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolUseID: call.ID, ToolName: call.Name}
}

// Usage tracks LLM token usage.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// LLMResponse represents a response from the LLM.
type LLMResponse struct {
	// Content is the text part of the response
	Content string

	// ToolCalls contains requested tool executions
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped
	StopReason string

	// Usage tracks token usage
	Usage Usage
}

// LLMProvider defines the interface for LLM providers.
// This allows pluggable LLM backends (Anthropic, Bedrock, OpenAI, LiteLLM).
type LLMProvider interface {
	// Chat sends a conversation to the LLM and returns the response.
	// With no tools the model must answer in text.
	Chat(ctx context.Context, messages []Message, tools []shuttle.Tool) (*LLMResponse, error)

	// Name returns the provider name
	Name() string

	// Model returns the model identifier
	Model() string
}

// ExecutionStage represents the current stage of agent execution.
type ExecutionStage string

const (
	StageLLMGeneration ExecutionStage = "llm_generation"
	StageToolExecution ExecutionStage = "tool_execution"
	StageCompleted     ExecutionStage = "completed"
	StageFailed        ExecutionStage = "failed"
)

// ProgressEvent represents a progress update during agent execution.
type ProgressEvent struct {
	// Stage is the current execution stage
	Stage ExecutionStage

	// Step is the 1-based decision step
	Step int

	// Message is a human-readable description of current activity
	Message string

	// ToolName is the tool being executed (if applicable)
	ToolName string

	// Timestamp when this event occurred
	Timestamp time.Time
}

// ProgressCallback is called synchronously as the agent advances. It must
// not block.
type ProgressCallback func(event ProgressEvent)
