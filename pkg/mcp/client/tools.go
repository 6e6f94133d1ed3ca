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

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/teradata-labs/pgobserve/pkg/mcp/protocol"
)

// maxToolPages guards against a provider that keeps returning cursors.
const maxToolPages = 100

// ListTools fetches every page of tools/list and refreshes the cache.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	if !c.IsInitialized() {
		return nil, ErrNotInitialized
	}

	var (
		all    []protocol.Tool
		cursor string
	)
	for page := 0; page < maxToolPages; page++ {
		resp, err := c.call(ctx, protocol.MethodToolsList, protocol.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("tools/list on %s: %w", c.serverName, err)
		}
		var result protocol.ListToolsResult
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, fmt.Errorf("failed to parse tools/list result: %w", err)
		}
		all = append(all, result.Tools...)
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	byName := make(map[string]protocol.Tool, len(all))
	for _, t := range all {
		byName[t.Name] = t
	}
	c.toolsMu.Lock()
	c.tools = all
	c.byName = byName
	c.toolsMu.Unlock()

	return all, nil
}

// CallTool invokes a tool by its provider-local name. Arguments are checked
// against the advertised schema first. A result flagged isError is returned
// as an error carrying the provider's text.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error) {
	if !c.IsInitialized() {
		return nil, ErrNotInitialized
	}

	tool, err := c.lookupTool(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := protocol.ValidateToolArguments(tool, arguments); err != nil {
		return nil, err
	}
	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	resp, err := c.call(ctx, protocol.MethodToolsCall, protocol.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}

	var result protocol.CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools/call result: %w", err)
	}
	if result.IsError {
		if text := result.Text(); text != "" {
			return nil, errors.New(text)
		}
		return nil, errors.New("tool reported an error")
	}
	return &result, nil
}

func (c *Client) lookupTool(ctx context.Context, name string) (protocol.Tool, error) {
	c.toolsMu.RLock()
	tool, ok := c.byName[name]
	c.toolsMu.RUnlock()
	if ok {
		return tool, nil
	}

	if _, err := c.ListTools(ctx); err != nil {
		return protocol.Tool{}, err
	}

	c.toolsMu.RLock()
	tool, ok = c.byName[name]
	c.toolsMu.RUnlock()
	if !ok {
		return protocol.Tool{}, fmt.Errorf("tool %s not found on %s", name, c.serverName)
	}
	return tool, nil
}
