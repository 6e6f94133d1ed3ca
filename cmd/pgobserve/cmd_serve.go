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
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the chat API used by the web UI:

  POST /chat                  ask the agent a question
  GET  /databases             list the database catalog
  GET  /databases/{name}/job  resolve the Prometheus job of a database
  GET  /health                liveness and tool provider status
  GET  /metrics               Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "0.0.0.0", "listen host")
	serveCmd.Flags().Int("port", 8000, "listen port")
	serveCmd.Flags().Bool("preflight", false, "check the LLM provider before serving")
	serveCmd.Flags().Bool("eager", true, "start tool providers before serving instead of on the first question")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.preflight", serveCmd.Flags().Lookup("preflight"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(config.Logging.Level, debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting pgobserve", zap.String("version", rootCmd.Version))
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("Config file loaded", zap.String("path", used))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	if config.Server.Preflight {
		if err := server.ValidateProvider(ctx, a.llm); err != nil {
			return err
		}
		logger.Info("LLM provider preflight passed")
	}

	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}
	if config.Databases.Watch {
		if err := cat.Watch(ctx, 0); err != nil {
			logger.Warn("catalog hot reload unavailable", zap.Error(err))
		}
	}
	defer func() { _ = cat.Close() }()

	jobs, err := a.jobDetector()
	if err != nil {
		return err
	}

	if eager, _ := cmd.Flags().GetBool("eager"); eager {
		_ = a.manager.Initialize(ctx)
	}

	srv := server.New(server.Config{
		Addr: config.Server.Addr(),
		CORS: config.Server.CORS,
	}, a.agent, cat, jobs,
		server.WithGatherer(a.registry),
		server.WithHealthChecker(a.manager),
		server.WithLogger(logger.Named("http")),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
