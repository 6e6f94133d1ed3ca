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

// Package transport carries MCP frames between the agent and a tool provider.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send and Receive once the transport is closed or
// the provider process has exited.
var ErrClosed = errors.New("transport closed")

// Transport is a bidirectional, message-framed channel to one provider.
type Transport interface {
	// Send writes one complete JSON-RPC frame.
	Send(ctx context.Context, message []byte) error

	// Receive blocks until the next frame arrives, the context ends, or the
	// channel is gone.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the channel and anything behind it. Idempotent.
	Close() error
}
