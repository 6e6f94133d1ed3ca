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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teradata-labs/pgobserve/pkg/mcp/manager"
	"github.com/teradata-labs/pgobserve/pkg/server"
)

// DefaultConfigFileName is the name of the config file
const DefaultConfigFileName = "pgobserve"

// Config holds all configuration for pgobserve.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backends  BackendsConfig  `mapstructure:"backends"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Langfuse  LangfuseConfig  `mapstructure:"langfuse"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Preflight sends one ping to the LLM before serving.
	Preflight bool `mapstructure:"preflight"`

	CORS server.CORSConfig `mapstructure:"cors"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendsConfig holds the observability back-end endpoints.
type BackendsConfig struct {
	PrometheusURL   string `mapstructure:"prometheus_url"`
	VictoriaLogsURL string `mapstructure:"victoria_logs_url"`
}

// MCPConfig holds tool provider configuration.
type MCPConfig struct {
	// Timeout bounds each provider's launch and handshake unless the
	// provider sets its own.
	Timeout string `mapstructure:"timeout"`

	// Servers replaces or adds launch configs by provider name. An entry
	// replaces the built-in launch config of the same name as a whole.
	Servers map[string]manager.ServerConfig `mapstructure:"servers"`
}

// LLMConfig holds model provider configuration.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`

	LiteLLMURL    string `mapstructure:"litellm_url"`
	LiteLLMModel  string `mapstructure:"litellm_model"`
	LiteLLMAPIKey string `mapstructure:"litellm_api_key"`

	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`

	BedrockRegion  string `mapstructure:"bedrock_region"`
	BedrockProfile string `mapstructure:"bedrock_profile"`
}

// Timeout returns the per-request model timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AgentConfig holds reasoning loop tuning.
type AgentConfig struct {
	MaxSteps      int `mapstructure:"max_steps"`
	PreviewLength int `mapstructure:"preview_length"`
	LLMRetries    int `mapstructure:"llm_retries"`
}

// LangfuseConfig holds tracing credentials. Tracing is off unless both keys
// are set.
type LangfuseConfig struct {
	PublicKey string `mapstructure:"public_key"`
	SecretKey string `mapstructure:"secret_key"`
	Host      string `mapstructure:"host"`
}

// DatabasesConfig locates the database catalog.
type DatabasesConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// legacyEnv maps config keys to the unprefixed variables that earlier
// deployments of the service set. PGOBSERVE_* variables are bound as well.
var legacyEnv = map[string]string{
	"backends.prometheus_url":    "PROMETHEUS_URL",
	"backends.victoria_logs_url": "VICTORIA_LOGS_URL",
	"llm.provider":               "LLM_PROVIDER",
	"llm.model":                  "LLM_MODEL",
	"llm.litellm_url":            "LITELLM_URL",
	"llm.litellm_model":          "LITELLM_MODEL",
	"llm.litellm_api_key":        "LITELLM_API_KEY",
	"llm.openai_api_key":         "OPENAI_API_KEY",
	"llm.anthropic_api_key":      "ANTHROPIC_API_KEY",
	"llm.bedrock_region":         "AWS_REGION",
	"llm.bedrock_profile":        "AWS_PROFILE",
	"langfuse.public_key":        "LANGFUSE_PUBLIC_KEY",
	"langfuse.secret_key":        "LANGFUSE_SECRET_KEY",
	"langfuse.host":              "LANGFUSE_HOST",
}

// LoadConfig loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables
// 3. Config file
// 4. Defaults (lowest priority)
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".pgobserve"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(DefaultConfigFileName) // pgobserve.yaml
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	viper.SetEnvPrefix("PGOBSERVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "PGOBSERVE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := viper.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	cors := server.DefaultCORSConfig()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.preflight", false)
	viper.SetDefault("server.cors.enabled", cors.Enabled)
	viper.SetDefault("server.cors.allowed_origins", cors.AllowedOrigins)
	viper.SetDefault("server.cors.allowed_methods", cors.AllowedMethods)
	viper.SetDefault("server.cors.allowed_headers", cors.AllowedHeaders)
	viper.SetDefault("server.cors.exposed_headers", cors.ExposedHeaders)
	viper.SetDefault("server.cors.allow_credentials", cors.AllowCredentials)
	viper.SetDefault("server.cors.max_age", cors.MaxAge)

	viper.SetDefault("backends.prometheus_url", "http://localhost:9090")
	viper.SetDefault("backends.victoria_logs_url", "http://localhost:9428")

	viper.SetDefault("mcp.timeout", "60s")

	viper.SetDefault("llm.provider", "litellm")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.timeout_seconds", 120)
	viper.SetDefault("llm.requests_per_second", 0.0)
	viper.SetDefault("llm.litellm_url", "http://localhost:4000")
	viper.SetDefault("llm.litellm_model", "gpt-4o")
	viper.SetDefault("llm.litellm_api_key", "sk-1234")
	viper.SetDefault("llm.openai_api_key", "")
	viper.SetDefault("llm.anthropic_api_key", "")
	viper.SetDefault("llm.bedrock_region", "us-east-1")
	viper.SetDefault("llm.bedrock_profile", "")

	viper.SetDefault("agent.max_steps", 25)
	viper.SetDefault("agent.preview_length", 500)
	viper.SetDefault("agent.llm_retries", 2)

	viper.SetDefault("langfuse.public_key", "")
	viper.SetDefault("langfuse.secret_key", "")
	viper.SetDefault("langfuse.host", "https://cloud.langfuse.com")

	viper.SetDefault("databases.file", "databases.yaml")
	viper.SetDefault("databases.watch", true)

	viper.SetDefault("logging.level", "info")
}

// managerConfig builds the provider launch configs: the built-in Prometheus and
// VictoriaLogs providers, overridden by mcp.servers.
func (c *Config) managerConfig(clientVersion string) manager.Config {
	mc := manager.DefaultConfig(c.Backends.PrometheusURL, c.Backends.VictoriaLogsURL)
	mc.ClientInfo.Version = clientVersion
	for name, server := range c.MCP.Servers {
		mc.Servers[name] = server
	}
	for name, server := range mc.Servers {
		if server.Timeout == "" {
			server.Timeout = c.MCP.Timeout
			mc.Servers[name] = server
		}
	}
	return mc
}
