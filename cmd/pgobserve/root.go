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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teradata-labs/pgobserve/internal/version"
)

var (
	cfgFile string
	debug   bool
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pgobserve",
	Short: "PostgreSQL observability agent",
	Long: `pgobserve answers questions about a PostgreSQL database from its Prometheus
metrics and VictoriaLogs logs. Evidence is gathered through MCP tool providers
and reasoned over by an LLM; the database itself is never contacted.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.pgobserve/pgobserve.yaml or ./pgobserve.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "development logging at debug level")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.PersistentFlags().String("llm-provider", "litellm", "LLM provider (litellm, openai, anthropic, bedrock)")
	rootCmd.PersistentFlags().String("llm-model", "", "Model override for openai, anthropic and bedrock")
	rootCmd.PersistentFlags().String("prometheus-url", "http://localhost:9090", "Prometheus base URL")
	rootCmd.PersistentFlags().String("victoria-logs-url", "http://localhost:9428", "VictoriaLogs base URL")
	rootCmd.PersistentFlags().String("databases", "databases.yaml", "Database catalog file")
	rootCmd.PersistentFlags().Int("max-steps", 25, "Maximum reasoning steps per question")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))
	_ = viper.BindPFlag("backends.prometheus_url", rootCmd.PersistentFlags().Lookup("prometheus-url"))
	_ = viper.BindPFlag("backends.victoria_logs_url", rootCmd.PersistentFlags().Lookup("victoria-logs-url"))
	_ = viper.BindPFlag("databases.file", rootCmd.PersistentFlags().Lookup("databases"))
	_ = viper.BindPFlag("agent.max_steps", rootCmd.PersistentFlags().Lookup("max-steps"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. Production JSON logging by default,
// console development logging with --debug.
func newLogger(level string, debug bool) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if debug {
		zapConfig = zap.NewDevelopmentConfig()
		level = "debug"
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)

	// Stack traces only for ERROR level
	return zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
}
