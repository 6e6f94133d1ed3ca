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

// Package server exposes the agent and the database catalog over a small
// JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teradata-labs/pgobserve/pkg/agent"
	"github.com/teradata-labs/pgobserve/pkg/catalog"
)

// DefaultAddr matches the port the chat UI expects.
const DefaultAddr = "0.0.0.0:8000"

// Runner runs one agent invocation. Implemented by *agent.Agent.
type Runner interface {
	RunAgent(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// JobResolver resolves the Prometheus job of a catalog entry. Implemented by
// *catalog.JobDetector.
type JobResolver interface {
	Resolve(ctx context.Context, db catalog.Database) catalog.JobInfo
}

// HealthChecker reports per-provider liveness. Implemented by
// *manager.Manager.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]bool
}

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address. Default: DefaultAddr
	Addr string

	CORS CORSConfig
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves the gatherer's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHealthChecker adds provider status to /health.
func WithHealthChecker(h HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server is the HTTP front end of the agent.
type Server struct {
	runner   Runner
	catalog  *catalog.Catalog
	jobs     JobResolver
	gatherer prometheus.Gatherer
	health   HealthChecker
	cors     CORSConfig
	logger   *zap.Logger

	httpServer *http.Server
}

// New creates a server. jobs may be nil, in which case only catalog-pinned
// jobs resolve.
func New(config Config, runner Runner, cat *catalog.Catalog, jobs JobResolver, opts ...Option) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	s := &Server{
		runner:  runner,
		catalog: cat,
		jobs:    jobs,
		cors:    config.CORS,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Agent runs take minutes; no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler, wrapped with CORS when enabled.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /databases", s.handleListDatabases)
	mux.HandleFunc("GET /databases/{name}/job", s.handleDatabaseJob)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	if s.cors.Enabled {
		handler = s.corsMiddleware(mux)
	}
	return handler
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
