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

// Package openai implements types.LLMProvider on the OpenAI Chat Completions
// API. The same client talks to a LiteLLM proxy, which speaks that API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/llm"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// Default configuration values.
const (
	DefaultModel     = "gpt-4o"
	DefaultMaxTokens = 4096
	DefaultTimeout   = 120 * time.Second

	ProviderOpenAI  = "openai"
	ProviderLiteLLM = "litellm"
)

// Config holds configuration for the client.
type Config struct {
	// Name is reported by Name(); defaults to "openai".
	Name        string
	APIKey      string
	Model       string // Default: gpt-4o
	BaseURL     string // LiteLLM proxy URL, or empty for api.openai.com
	MaxTokens   int    // Default: 4096
	Temperature float64
	Timeout     time.Duration
	RateLimiter llm.RateLimiterConfig
	Logger      *zap.Logger
}

// Client implements the LLMProvider interface for OpenAI-compatible APIs.
type Client struct {
	client      openai.Client
	name        string
	model       string
	maxTokens   int64
	temperature float64
	limiter     *llm.RateLimiter
	logger      *zap.Logger
}

// NewClient creates a new client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Name == "" {
		cfg.Name = ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		// retries are owned by the agent loop
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:      openai.NewClient(opts...),
		name:        cfg.Name,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		limiter:     llm.NewRateLimiter(cfg.RateLimiter),
		logger:      cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    convertMessages(messages),
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	}

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	nameMap := llm.BuildToolNameMap(names)
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion failed: %w", c.name, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", c.name)
	}

	c.logger.Debug("chat completion",
		zap.String("provider", c.name),
		zap.String("finish_reason", completion.Choices[0].FinishReason),
		zap.Int64("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int64("completion_tokens", completion.Usage.CompletionTokens))

	return convertResponse(completion, nameMap), nil
}

func convertMessages(messages []types.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))

		case types.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Input)
				if err != nil || tc.Input == nil {
					args = []byte("{}")
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      llm.SanitizeToolName(tc.Name),
						Arguments: string(args),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})

		case types.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolUseID))

		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func convertTools(tools []shuttle.Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        llm.SanitizeToolName(tool.Name()),
				Description: openai.String(tool.Description()),
				Parameters:  openai.FunctionParameters(tool.InputSchema()),
			},
		})
	}
	return out
}

func convertResponse(completion *openai.ChatCompletion, nameMap map[string]string) *types.LLMResponse {
	choice := completion.Choices[0]
	resp := &types.LLMResponse{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: types.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		call := types.ToolCall{
			ID:   tc.ID,
			Name: llm.ReverseToolName(nameMap, tc.Function.Name),
		}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Input); err != nil {
				call.InvalidArguments = err.Error()
			}
		}
		if call.Input == nil {
			call.Input = map[string]interface{}{}
		}
		resp.ToolCalls = append(resp.ToolCalls, call)
	}
	return resp
}
