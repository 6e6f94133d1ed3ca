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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/pgobserve/pkg/mcp/manager"
)

// loadIsolated loads config from an empty working directory with a clean
// viper instance.
func loadIsolated(t *testing.T, cfgFile string) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig(cfgFile)
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadIsolated(t, "")

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.True(t, cfg.Server.CORS.Enabled)
	assert.Equal(t, []string{"*"}, cfg.Server.CORS.AllowedOrigins)
	assert.Equal(t, "http://localhost:9090", cfg.Backends.PrometheusURL)
	assert.Equal(t, "http://localhost:9428", cfg.Backends.VictoriaLogsURL)
	assert.Equal(t, "litellm", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:4000", cfg.LLM.LiteLLMURL)
	assert.Equal(t, "gpt-4o", cfg.LLM.LiteLLMModel)
	assert.Equal(t, "sk-1234", cfg.LLM.LiteLLMAPIKey)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 25, cfg.Agent.MaxSteps)
	assert.Equal(t, 500, cfg.Agent.PreviewLength)
	assert.Equal(t, "https://cloud.langfuse.com", cfg.Langfuse.Host)
	assert.Equal(t, "databases.yaml", cfg.Databases.File)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_LegacyEnvironment(t *testing.T) {
	t.Setenv("PROMETHEUS_URL", "http://prom:9090")
	t.Setenv("VICTORIA_LOGS_URL", "http://vl:9428")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-lf")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-lf")

	cfg := loadIsolated(t, "")

	assert.Equal(t, "http://prom:9090", cfg.Backends.PrometheusURL)
	assert.Equal(t, "http://vl:9428", cfg.Backends.VictoriaLogsURL)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant-test", cfg.LLM.AnthropicAPIKey)
	assert.Equal(t, "pk-lf", cfg.Langfuse.PublicKey)
	assert.Equal(t, "sk-lf", cfg.Langfuse.SecretKey)
}

func TestLoadConfig_PrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("PGOBSERVE_LLM_PROVIDER", "bedrock")
	t.Setenv("PGOBSERVE_AGENT_MAX_STEPS", "7")

	cfg := loadIsolated(t, "")
	assert.Equal(t, "bedrock", cfg.LLM.Provider)
	assert.Equal(t, 7, cfg.Agent.MaxSteps)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgobserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
llm:
  provider: openai
  model: gpt-4o-mini
mcp:
  timeout: 90s
  servers:
    prometheus:
      enabled: false
    loki:
      enabled: true
      command: loki-mcp
      args: ["--stdio"]
      timeout: 10s
`), 0o644))

	cfg := loadIsolated(t, path)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)

	mc := cfg.managerConfig("1.2.3")
	assert.Equal(t, "1.2.3", mc.ClientInfo.Version)
	assert.False(t, mc.Servers[manager.PrometheusServer].Enabled)
	assert.Equal(t, "90s", mc.Servers[manager.VictoriaLogsServer].Timeout)
	assert.Equal(t, "loki-mcp", mc.Servers["loki"].Command)
	assert.Equal(t, "10s", mc.Servers["loki"].Timeout)
	require.NoError(t, mc.Validate())
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgobserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))

	viper.Reset()
	t.Cleanup(viper.Reset)
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestManagerConfig_BackendURLs(t *testing.T) {
	cfg := loadIsolated(t, "")
	cfg.Backends.PrometheusURL = "http://prom.internal:9090"

	mc := cfg.managerConfig("dev")
	assert.Equal(t, "http://prom.internal:9090", mc.Servers[manager.PrometheusServer].Env["PROMETHEUS_URL"])
	assert.Equal(t, "60s", mc.Servers[manager.PrometheusServer].Timeout)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))

	logger, err = newLogger("error", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1), "--debug forces debug level")

	_, err = newLogger("loud", false)
	assert.ErrorContains(t, err, "invalid log level")
}
