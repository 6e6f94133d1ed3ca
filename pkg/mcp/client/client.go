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

// Package client is the agent's end of one tool-provider connection: it
// performs the MCP handshake, lists capabilities and proxies tool calls over
// a transport.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teradata-labs/pgobserve/pkg/mcp/protocol"
	"github.com/teradata-labs/pgobserve/pkg/mcp/transport"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds a single round trip when the caller's context
// has no deadline of its own.
const DefaultRequestTimeout = 30 * time.Second

var (
	// ErrClientClosed is returned for calls made after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrNotInitialized is returned for tool calls made before the handshake.
	ErrNotInitialized = errors.New("client not initialized")
)

// supportedVersions are protocol revisions whose tools surface is compatible
// with what the client sends.
var supportedVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

// Config configures a Client.
type Config struct {
	Transport      transport.Transport
	Logger         *zap.Logger
	ServerName     string                  // provider name, used in logs and errors
	ClientInfo     protocol.Implementation // sent during initialize
	RequestTimeout time.Duration           // default DefaultRequestTimeout
}

// Client is a connection to one tool provider.
type Client struct {
	transport      transport.Transport
	logger         *zap.Logger
	serverName     string
	clientInfo     protocol.Implementation
	requestTimeout time.Duration

	nextID    int64
	pending   map[string]chan *protocol.Response
	pendingMu sync.Mutex

	mu          sync.RWMutex
	initialized bool
	closed      bool

	toolsMu sync.RWMutex
	tools   []protocol.Tool
	byName  map[string]protocol.Tool

	// dead is closed when the receive loop stops; deadErr says why.
	dead    chan struct{}
	deadErr error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient wraps a transport and starts reading from it.
func NewClient(config Config) *Client {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.ClientInfo.Name == "" {
		config.ClientInfo = protocol.Implementation{Name: "pgobserve", Version: "dev"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport:      config.Transport,
		logger:         config.Logger.With(zap.String("server", config.ServerName)),
		serverName:     config.ServerName,
		clientInfo:     config.ClientInfo,
		requestTimeout: config.RequestTimeout,
		pending:        make(map[string]chan *protocol.Response),
		byName:         make(map[string]protocol.Tool),
		dead:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
	}

	c.wg.Add(1)
	go c.receiveLoop()
	return c
}

// ServerName returns the provider name this client was created for.
func (c *Client) ServerName() string {
	return c.serverName
}

// Initialize performs the capability handshake: the initialize request
// followed by the initialized notification. Tool calls are refused until it
// has succeeded.
func (c *Client) Initialize(ctx context.Context) (*protocol.InitializeResult, error) {
	c.mu.RLock()
	done := c.initialized
	c.mu.RUnlock()
	if done {
		return nil, fmt.Errorf("%s: already initialized", c.serverName)
	}

	resp, err := c.call(ctx, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    protocol.ClientCapabilities{},
		ClientInfo:      c.clientInfo,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize %s: %w", c.serverName, err)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse initialize result: %w", err)
	}
	if !supportedVersions[result.ProtocolVersion] {
		return nil, fmt.Errorf("%s: unsupported protocol version %q", c.serverName, result.ProtocolVersion)
	}

	note, err := protocol.NewNotification(protocol.NotificationInitialized, nil)
	if err != nil {
		return nil, err
	}
	if err := c.send(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to send initialized notification: %w", err)
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()

	c.logger.Info("tool provider handshake complete",
		zap.String("provider_name", result.ServerInfo.Name),
		zap.String("provider_version", result.ServerInfo.Version),
		zap.String("protocol", result.ProtocolVersion),
		zap.Bool("tools", result.Capabilities.Tools != nil),
	)
	return &result, nil
}

// IsInitialized reports whether the handshake has completed.
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Ping checks that the provider still answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MethodPing, struct{}{})
	return err
}

// Close stops the receive loop and closes the transport. Safe to call more
// than once and on a client whose handshake never finished.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	err := c.transport.Close()
	c.wg.Wait()

	if err != nil {
		c.logger.Warn("failed to close transport", zap.Error(err))
		return fmt.Errorf("close %s: %w", c.serverName, err)
	}
	c.logger.Debug("client closed")
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// call sends a request and waits for the matching response.
func (c *Client) call(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	id := protocol.NumericID(atomic.AddInt64(&c.nextID, 1))
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	key := id.String()
	ch := make(chan *protocol.Response, 1)
	c.pendingMu.Lock()
	c.pending[key] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, key)
		c.pendingMu.Unlock()
	}()

	if err := c.send(ctx, req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s %s: %w", c.serverName, method, ctx.Err())
	case <-c.dead:
		return nil, fmt.Errorf("%s %s: %w", c.serverName, method, c.deadErr)
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	}
}

func (c *Client) send(ctx context.Context, req *protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", req.Method, err)
	}
	c.logger.Debug("sending", zap.String("method", req.Method), zap.Stringer("id", req.ID))
	if err := c.transport.Send(ctx, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", req.Method, err)
	}
	return nil
}

// receiveLoop dispatches frames until the transport fails or Close is
// called. A broken channel fails every outstanding and future request.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	var cause error
	defer func() {
		if cause == nil {
			cause = ErrClientClosed
		}
		c.deadErr = cause
		close(c.dead)
	}()

	for {
		data, err := c.transport.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("tool provider channel closed", zap.Error(err))
			cause = fmt.Errorf("connection lost: %w", err)
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed frame", zap.Error(err), zap.ByteString("data", data))
			continue
		}

		switch {
		case msg.IsResponse():
			c.deliver(msg.Response())
		case msg.IsNotification():
			c.logger.Debug("provider notification", zap.String("method", msg.Method))
		case msg.ID != nil:
			c.answerServerRequest(&msg)
		default:
			c.logger.Warn("dropping unrecognized frame", zap.ByteString("data", data))
		}
	}
}

// deliver hands a response to its waiting request. A response with a broken
// envelope still completes the request, as an error.
func (c *Client) deliver(resp *protocol.Response) {
	if resp.ID == nil {
		return
	}
	if err := protocol.ValidateResponse(resp); err != nil {
		c.logger.Warn("malformed response", zap.String("id", resp.ID.String()), zap.Error(err))
		resp = &protocol.Response{
			JSONRPC: protocol.JSONRPCVersion,
			ID:      resp.ID,
			Error:   protocol.NewError(protocol.InvalidRequest, "malformed response: "+err.Error(), nil),
		}
	}
	key := resp.ID.String()
	c.pendingMu.Lock()
	ch, ok := c.pending[key]
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Debug("response for unknown request", zap.String("id", key))
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// answerServerRequest replies to provider-initiated requests. Only ping is
// supported; the agent offers no client capabilities.
func (c *Client) answerServerRequest(msg *protocol.Message) {
	resp := protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: msg.ID}
	if msg.Method == protocol.MethodPing {
		resp.Result = json.RawMessage(`{}`)
	} else {
		resp.Error = protocol.NewError(protocol.MethodNotFound, "method not found: "+msg.Method, nil)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := c.transport.Send(ctx, data); err != nil {
		c.logger.Debug("failed to answer provider request", zap.String("method", msg.Method), zap.Error(err))
	}
}
