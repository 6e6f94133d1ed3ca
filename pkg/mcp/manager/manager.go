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

// Package manager owns the tool-provider connections of the process: it
// starts them concurrently on first use, tolerates partial failure, merges
// their tools and tears everything down on cleanup.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/teradata-labs/pgobserve/pkg/mcp/adapter"
	"github.com/teradata-labs/pgobserve/pkg/mcp/client"
	"github.com/teradata-labs/pgobserve/pkg/mcp/protocol"
	"github.com/teradata-labs/pgobserve/pkg/mcp/transport"
	"github.com/teradata-labs/pgobserve/pkg/observability"
	"github.com/teradata-labs/pgobserve/pkg/shuttle"
)

// ErrServerNotFound is returned for a provider name the manager does not know.
var ErrServerNotFound = errors.New("server not found")

// Status is the lifecycle state of one provider connection.
type Status int

const (
	StatusStarting Status = iota
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is a live, handshaken connection to one provider.
type Session interface {
	ListTools(ctx context.Context) ([]protocol.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Connector launches a provider and completes the handshake. On error it must
// release anything it started.
type Connector func(ctx context.Context, name string, config ServerConfig, info ClientInfo, logger *zap.Logger) (Session, error)

// StdioConnector launches the provider as a subprocess speaking MCP over
// stdio.
func StdioConnector(ctx context.Context, name string, config ServerConfig, info ClientInfo, logger *zap.Logger) (Session, error) {
	trans, err := transport.NewStdioTransport(transport.StdioConfig{
		Name:    name,
		Command: config.Command,
		Args:    config.Args,
		Env:     config.Env,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	c := client.NewClient(client.Config{
		Transport:  trans,
		Logger:     logger,
		ServerName: name,
		ClientInfo: protocol.Implementation{Name: info.Name, Version: info.Version},
	})
	if _, err := c.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return c, nil
}

// Connection is the state of one provider.
type Connection struct {
	Name        string
	Status      Status
	Tools       []shuttle.Tool
	Err         error
	ConnectedAt time.Time

	session Session
}

// ConnectionInfo is a read-only snapshot of a Connection.
type ConnectionInfo struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	ToolCount   int       `json:"tool_count"`
	Error       string    `json:"error,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithConnector replaces the stdio connector, typically with a fake in tests.
func WithConnector(c Connector) Option {
	return func(m *Manager) {
		if c != nil {
			m.connector = c
		}
	}
}

// WithMetrics records provider status into Prometheus collectors.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager owns the provider connections. It is created once per process and
// shared by every agent invocation.
type Manager struct {
	config    Config
	logger    *zap.Logger
	connector Connector
	metrics   *observability.Metrics

	group singleflight.Group

	// lifecycle serializes startup and cleanup. It is never held by readers,
	// so a slow provider start does not block Tools or HealthCheck.
	lifecycle sync.Mutex

	// mu guards the published state below and is held only briefly.
	mu          sync.RWMutex
	initialized bool
	conns       map[string]*Connection
}

// NewManager creates a new MCP manager. Nothing is started until Initialize.
func NewManager(config Config, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		config:    config,
		logger:    logger,
		connector: StdioConnector,
		conns:     make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Initialize starts every enabled provider and discovers their tools. It is
// idempotent: once initialized, later calls return immediately, and
// concurrent callers share one startup. Provider failures are recorded per
// connection and never returned.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.IsInitialized() {
		return nil
	}
	_, err, _ := m.group.Do("initialize", func() (interface{}, error) {
		// Startup is shared, so one caller's cancellation must not abort it.
		return nil, m.initialize(context.WithoutCancel(ctx))
	})
	return err
}

// IsInitialized reports whether Initialize has completed since the last
// Cleanup.
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

func (m *Manager) initialize(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.IsInitialized() {
		return nil
	}

	names := m.enabledServers()
	m.logger.Info("starting MCP providers", zap.Strings("servers", names))

	started := make([]*Connection, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			started[i] = m.startServer(ctx, name, m.config.Servers[name])
			return nil
		})
	}
	_ = g.Wait()

	var discovery errgroup.Group
	for _, conn := range started {
		if conn.Status != StatusConnected {
			continue
		}
		discovery.Go(func() error {
			m.discover(ctx, conn)
			return nil
		})
	}
	_ = discovery.Wait()

	conns := make(map[string]*Connection, len(started))
	connected, tools := 0, 0
	for _, conn := range started {
		conns[conn.Name] = conn
		if conn.Status == StatusConnected {
			connected++
			tools += len(conn.Tools)
		}
	}

	m.mu.Lock()
	m.conns = conns
	m.initialized = true
	m.mu.Unlock()

	m.logger.Info("MCP providers initialized",
		zap.Int("configured", len(names)),
		zap.Int("connected", connected),
		zap.Int("tools", tools))
	return nil
}

// startServer never fails: errors become StatusFailed on the connection.
func (m *Manager) startServer(ctx context.Context, name string, config ServerConfig) *Connection {
	conn := &Connection{Name: name, Status: StatusStarting}
	logger := m.logger.With(zap.String("server", name))

	startCtx, cancel := context.WithTimeout(ctx, config.StartTimeout())
	defer cancel()

	start := time.Now()
	session, err := m.connector(startCtx, name, config, m.config.ClientInfo, logger)
	if err != nil {
		conn.Status = StatusFailed
		conn.Err = err
		m.metrics.RecordProviderStart(name, false)
		logger.Error("failed to start MCP provider",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return conn
	}

	conn.session = session
	conn.Status = StatusConnected
	conn.ConnectedAt = time.Now()
	m.metrics.RecordProviderStart(name, true)
	logger.Info("MCP provider connected", zap.Duration("duration", time.Since(start)))
	return conn
}

// discover lists tools of a connected provider. A listing failure leaves the
// provider connected with no tools.
func (m *Manager) discover(ctx context.Context, conn *Connection) {
	logger := m.logger.With(zap.String("server", conn.Name))

	config := m.config.Servers[conn.Name]
	listCtx, cancel := context.WithTimeout(ctx, config.StartTimeout())
	defer cancel()

	tools, err := conn.session.ListTools(listCtx)
	if err != nil {
		logger.Warn("tool discovery failed", zap.Error(err))
		m.metrics.SetProviderTools(conn.Name, 0)
		return
	}

	filter := config.ToolFilter
	kept := make([]protocol.Tool, 0, len(tools))
	for _, t := range tools {
		if filter.ShouldRegisterTool(t.Name) {
			kept = append(kept, t)
		}
	}

	conn.Tools = adapter.AdaptTools(conn.Name, kept, conn.session, logger)
	m.metrics.SetProviderTools(conn.Name, len(conn.Tools))
	logger.Info("discovered tools",
		zap.Int("count", len(conn.Tools)),
		zap.Int("filtered", len(tools)-len(kept)))
}

// Tools returns the adapters of all connected providers, ordered by provider
// name and then discovery order. Failed providers contribute nothing.
func (m *Manager) Tools() []shuttle.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []shuttle.Tool
	for _, name := range m.sortedNames() {
		conn := m.conns[name]
		if conn.Status == StatusConnected {
			out = append(out, conn.Tools...)
		}
	}
	return out
}

// Connections reports the status of every started provider, sorted by name.
func (m *Manager) Connections() []ConnectionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ConnectionInfo, 0, len(m.conns))
	for _, name := range m.sortedNames() {
		conn := m.conns[name]
		info := ConnectionInfo{
			Name:        conn.Name,
			Status:      conn.Status.String(),
			ToolCount:   len(conn.Tools),
			ConnectedAt: conn.ConnectedAt,
		}
		if conn.Err != nil {
			info.Error = conn.Err.Error()
		}
		out = append(out, info)
	}
	return out
}

// Connection returns the snapshot of one provider.
func (m *Manager) Connection(name string) (ConnectionInfo, error) {
	for _, info := range m.Connections() {
		if info.Name == name {
			return info, nil
		}
	}
	return ConnectionInfo{}, fmt.Errorf("%w: %s", ErrServerNotFound, name)
}

// HealthCheck pings every connected provider.
func (m *Manager) HealthCheck(ctx context.Context) map[string]bool {
	m.mu.RLock()
	sessions := make(map[string]Session, len(m.conns))
	for name, conn := range m.conns {
		if conn.Status == StatusConnected {
			sessions[name] = conn.session
		}
	}
	m.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]bool, len(sessions))
		g       errgroup.Group
	)
	for name, session := range sessions {
		g.Go(func() error {
			err := session.Ping(ctx)
			if err != nil {
				m.logger.Warn("MCP provider unhealthy", zap.String("server", name), zap.Error(err))
			}
			mu.Lock()
			results[name] = err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Cleanup closes every connection and resets the manager so that a later
// Initialize starts from scratch. It waits for an in-flight Initialize and
// is safe to call before Initialize. Readers see the reset state before the
// providers are closed.
func (m *Manager) Cleanup() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	conns := m.conns
	names := m.sortedNames()
	m.conns = make(map[string]*Connection)
	m.initialized = false
	m.mu.Unlock()

	var errs []error
	for _, name := range names {
		conn := conns[name]
		if conn.session == nil {
			continue
		}
		if err := conn.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			m.logger.Warn("error closing MCP provider", zap.String("server", name), zap.Error(err))
		}
	}

	if len(conns) > 0 {
		m.logger.Info("MCP providers stopped", zap.Int("count", len(conns)))
	}
	m.metrics.ResetProviders()

	return errors.Join(errs...)
}

func (m *Manager) enabledServers() []string {
	names := make([]string, 0, len(m.config.Servers))
	for name, cfg := range m.config.Servers {
		if cfg.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// sortedNames must be called with mu held.
func (m *Manager) sortedNames() []string {
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
