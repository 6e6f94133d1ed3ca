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

// Package anthropic implements types.LLMProvider on the Anthropic Messages
// API, either directly or through AWS Bedrock.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/llm"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

const (
	// DefaultModel is the default Claude model.
	DefaultModel = "claude-3-5-sonnet-20240620"
	// DefaultBedrockModelID is the Bedrock id of DefaultModel.
	DefaultBedrockModelID = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	// DefaultBedrockRegion is used when no region is configured.
	DefaultBedrockRegion = "us-east-1"
	// DefaultMaxTokens is the default maximum tokens per request.
	DefaultMaxTokens = 4096
	// DefaultTimeout bounds one HTTP request.
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the direct Anthropic client.
type Config struct {
	APIKey      string
	Model       string // Default: claude-3-5-sonnet-20240620
	BaseURL     string // Default: the SDK's endpoint
	MaxTokens   int    // Default: 4096
	Temperature float64
	Timeout     time.Duration
	RateLimiter llm.RateLimiterConfig
	Logger      *zap.Logger
}

// BedrockConfig holds configuration for Claude on AWS Bedrock. Credentials
// come from the static keys when set, else the named profile, else the
// default AWS chain.
type BedrockConfig struct {
	Config

	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Client implements the LLMProvider interface for Claude.
type Client struct {
	client      anthropic.Client
	name        string
	model       string
	maxTokens   int64
	temperature float64
	limiter     *llm.RateLimiter
	logger      *zap.Logger
}

// NewClient creates a client for the Anthropic API.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	cfg = withDefaults(cfg, DefaultModel)

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		// retries are owned by the agent loop
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return newClient("anthropic", anthropic.NewClient(opts...), cfg), nil
}

// NewBedrockClient creates a client for Claude on AWS Bedrock.
func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultBedrockRegion
	}
	cfg.Config = withDefaults(cfg.Config, DefaultBedrockModelID)

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	case cfg.Profile != "":
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newBedrockClient(awsCfg, cfg), nil
}

func newBedrockClient(awsCfg aws.Config, cfg BedrockConfig) *Client {
	opts := []option.RequestOption{
		bedrock.WithConfig(awsCfg),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return newClient("bedrock", anthropic.NewClient(opts...), cfg.Config)
}

func withDefaults(cfg Config, model string) Config {
	if cfg.Model == "" {
		cfg.Model = model
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
	return cfg
}

func newClient(name string, client anthropic.Client, cfg Config) *Client {
	return &Client{
		client:      client,
		name:        name,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		limiter:     llm.NewRateLimiter(cfg.RateLimiter),
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Claude and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	system, sdkMessages := convertMessages(messages)
	if len(sdkMessages) == 0 {
		return nil, fmt.Errorf("no valid messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    sdkMessages,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
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

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s messages API call failed: %w", c.name, err)
	}

	c.logger.Debug("claude response",
		zap.String("provider", c.name),
		zap.String("stop_reason", string(message.StopReason)),
		zap.Int64("input_tokens", message.Usage.InputTokens),
		zap.Int64("output_tokens", message.Usage.OutputTokens))

	return convertResponse(message, nameMap), nil
}

// convertMessages splits out the system text and maps the rest onto the
// Messages API. Consecutive tool results share one user turn.
func convertMessages(messages []types.Message) (string, []anthropic.MessageParam) {
	var systemPrompts []string
	var out []anthropic.MessageParam
	lastWasToolResult := false

	for _, msg := range messages {
		isToolResult := false

		switch msg.Role {
		case types.RoleSystem:
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}

		case types.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input interface{} = map[string]interface{}{}
				if tc.Input != nil {
					input = tc.Input
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, llm.SanitizeToolName(tc.Name)))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}

		case types.RoleTool:
			isToolResult = true
			block := anthropic.NewToolResultBlock(msg.ToolUseID, msg.Content, false)
			if lastWasToolResult {
				last := &out[len(out)-1]
				last.Content = append(last.Content, block)
			} else {
				out = append(out, anthropic.NewUserMessage(block))
			}

		default:
			if msg.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}

		lastWasToolResult = isToolResult
	}

	return strings.Join(systemPrompts, "\n\n"), out
}

func convertTools(tools []shuttle.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		schema := tool.InputSchema()
		param := anthropic.ToolParam{
			Name:        llm.SanitizeToolName(tool.Name()),
			Description: anthropic.String(tool.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties(),
				Required:   schema.Required(),
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}

func convertResponse(message *anthropic.Message, nameMap map[string]string) *types.LLMResponse {
	resp := &types.LLMResponse{
		StopReason: string(message.StopReason),
		Usage: types.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			call := types.ToolCall{
				ID:   block.ID,
				Name: llm.ReverseToolName(nameMap, block.Name),
			}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &call.Input); err != nil {
					call.InvalidArguments = err.Error()
				}
			}
			if call.Input == nil {
				call.Input = map[string]interface{}{}
			}
			resp.ToolCalls = append(resp.ToolCalls, call)
		}
	}
	return resp
}
