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

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/internal/version"
	"github.com/teradata-labs/pgobserve/pkg/agent"
	"github.com/teradata-labs/pgobserve/pkg/catalog"
	"github.com/teradata-labs/pgobserve/pkg/llm/factory"
	"github.com/teradata-labs/pgobserve/pkg/mcp/manager"
	"github.com/teradata-labs/pgobserve/pkg/observability"
	"github.com/teradata-labs/pgobserve/pkg/types"
)

// app wires the long-lived components shared by every agent invocation.
type app struct {
	config   *Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	manager  *manager.Manager
	llm      types.LLMProvider
	langfuse *observability.LangfuseExporter
	agent    *agent.Agent
}

// newApp builds the manager, LLM provider, tracing exporter and agent.
// Nothing is started; providers launch on the first Initialize.
func newApp(ctx context.Context, cfg *Config, logger *zap.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	mgr, err := manager.NewManager(cfg.managerConfig(version.Get()), logger.Named("mcp"),
		manager.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}

	llm, err := factory.NewProviderFactory(factory.FactoryConfig{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		AnthropicAPIKey:   cfg.LLM.AnthropicAPIKey,
		BedrockRegion:     cfg.LLM.BedrockRegion,
		BedrockProfile:    cfg.LLM.BedrockProfile,
		OpenAIAPIKey:      cfg.LLM.OpenAIAPIKey,
		LiteLLMURL:        cfg.LLM.LiteLLMURL,
		LiteLLMModel:      cfg.LLM.LiteLLMModel,
		LiteLLMAPIKey:     cfg.LLM.LiteLLMAPIKey,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout(),
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Metrics:           metrics,
		Logger:            logger.Named("llm"),
	}).CreateProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	a := &app{
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		manager:  mgr,
		llm:      llm,
	}

	agentCfg := agent.DefaultConfig()
	agentCfg.MaxSteps = cfg.Agent.MaxSteps
	agentCfg.PreviewLength = cfg.Agent.PreviewLength
	agentCfg.Retry.MaxRetries = cfg.Agent.LLMRetries
	agentCfg.Retry.Enabled = cfg.Agent.LLMRetries > 0

	opts := []agent.Option{
		agent.WithConfig(agentCfg),
		agent.WithMetrics(metrics),
		agent.WithLogger(logger.Named("agent")),
	}

	lf := observability.LangfuseConfig{
		PublicKey: cfg.Langfuse.PublicKey,
		SecretKey: cfg.Langfuse.SecretKey,
		Host:      cfg.Langfuse.Host,
		Logger:    logger.Named("langfuse"),
	}
	if lf.Enabled() {
		exporter, err := observability.NewLangfuseExporter(lf)
		if err != nil {
			return nil, err
		}
		a.langfuse = exporter
		opts = append(opts, agent.WithTracerFactory(exporter))
		logger.Info("Langfuse tracing enabled", zap.String("host", cfg.Langfuse.Host))
	} else {
		logger.Info("Langfuse tracing disabled (keys not configured)")
	}

	a.agent = agent.NewAgent(llm, mgr, opts...)
	return a, nil
}

// loadCatalog reads the configured database catalog.
func (a *app) loadCatalog() (*catalog.Catalog, error) {
	return catalog.New(a.config.Databases.File, a.logger.Named("catalog"))
}

// jobDetector resolves jobs against the configured Prometheus.
func (a *app) jobDetector() (*catalog.JobDetector, error) {
	return catalog.NewJobDetector(catalog.JobDetectorConfig{
		PrometheusURL: a.config.Backends.PrometheusURL,
		Logger:        a.logger.Named("jobs"),
	})
}

// Close stops providers and flushes traces.
func (a *app) Close() error {
	var errs []error
	if err := a.manager.Cleanup(); err != nil {
		errs = append(errs, fmt.Errorf("mcp cleanup: %w", err))
	}
	if a.langfuse != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.langfuse.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("langfuse flush: %w", err))
		}
	}
	return errors.Join(errs...)
}
