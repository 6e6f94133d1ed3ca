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

// Package factory builds the configured LLM provider.
package factory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/llm"
	"github.com/teradata-labs/pgobserve/pkg/llm/anthropic"
	"github.com/teradata-labs/pgobserve/pkg/llm/openai"
	"github.com/teradata-labs/pgobserve/pkg/observability"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = openai.ProviderOpenAI
	ProviderLiteLLM   = openai.ProviderLiteLLM
)

// Defaults for the LiteLLM proxy.
const (
	DefaultProvider      = ProviderLiteLLM
	DefaultLiteLLMURL    = "http://localhost:4000"
	DefaultLiteLLMModel  = "gpt-4o"
	DefaultLiteLLMAPIKey = "sk-1234"
	DefaultMaxTokens     = 4096
)

// FactoryConfig holds configuration for creating LLM providers.
type FactoryConfig struct {
	// Provider is one of anthropic, bedrock, openai, litellm. Empty means
	// litellm; any other value falls back to openai.
	Provider string

	// Model overrides the provider default (ignored by litellm, which uses
	// LiteLLMModel).
	Model string

	AnthropicAPIKey string

	BedrockRegion          string
	BedrockProfile         string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string

	OpenAIAPIKey string

	LiteLLMURL    string
	LiteLLMModel  string
	LiteLLMAPIKey string

	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	RequestsPerSecond float64

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// ProviderFactory creates LLM providers based on configuration.
type ProviderFactory struct {
	config FactoryConfig
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.Provider == "" {
		config.Provider = DefaultProvider
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.LiteLLMURL == "" {
		config.LiteLLMURL = DefaultLiteLLMURL
	}
	if config.LiteLLMModel == "" {
		config.LiteLLMModel = DefaultLiteLLMModel
	}
	if config.LiteLLMAPIKey == "" {
		config.LiteLLMAPIKey = DefaultLiteLLMAPIKey
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &ProviderFactory{config: config}
}

// CreateProvider builds the configured provider wrapped with tracing and
// metrics.
func (f *ProviderFactory) CreateProvider(ctx context.Context) (types.LLMProvider, error) {
	provider, err := f.createRaw(ctx)
	if err != nil {
		return nil, err
	}
	f.config.Logger.Info("llm provider configured",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()))
	return llm.NewInstrumentedProvider(provider, f.config.Metrics), nil
}

func (f *ProviderFactory) createRaw(ctx context.Context) (types.LLMProvider, error) {
	cfg := f.config
	limiter := llm.RateLimiterConfig{RequestsPerSecond: cfg.RequestsPerSecond}

	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured (set llm.anthropic_api_key or ANTHROPIC_API_KEY)")
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			RateLimiter: limiter,
			Logger:      cfg.Logger,
		})

	case ProviderBedrock:
		return anthropic.NewBedrockClient(ctx, anthropic.BedrockConfig{
			Config: anthropic.Config{
				Model:       cfg.Model,
				MaxTokens:   cfg.MaxTokens,
				Temperature: cfg.Temperature,
				Timeout:     cfg.Timeout,
				RateLimiter: limiter,
				Logger:      cfg.Logger,
			},
			Region:          cfg.BedrockRegion,
			Profile:         cfg.BedrockProfile,
			AccessKeyID:     cfg.BedrockAccessKeyID,
			SecretAccessKey: cfg.BedrockSecretAccessKey,
			SessionToken:    cfg.BedrockSessionToken,
		})

	case ProviderLiteLLM:
		return openai.NewClient(openai.Config{
			Name:        ProviderLiteLLM,
			APIKey:      cfg.LiteLLMAPIKey,
			Model:       cfg.LiteLLMModel,
			BaseURL:     cfg.LiteLLMURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			RateLimiter: limiter,
			Logger:      cfg.Logger,
		})

	default:
		if cfg.Provider != ProviderOpenAI {
			cfg.Logger.Warn("unknown llm provider, falling back to openai", zap.String("provider", cfg.Provider))
		}
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key not configured (set llm.openai_api_key or OPENAI_API_KEY)")
		}
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			RateLimiter: limiter,
			Logger:      cfg.Logger,
		})
	}
}

// IsProviderAvailable checks if a provider is available (credentials/config present).
func (f *ProviderFactory) IsProviderAvailable(ctx context.Context) bool {
	_, err := f.createRaw(ctx)
	return err == nil
}
