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

package shuttle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Registry maps tool names to tools and dispatches calls by name. Tools are
// listed in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any tool with the same name in place.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ListTools returns the tools in registration order.
func (r *Registry) ListTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute dispatches a call by name. It never returns an error: an unknown
// name or a failing tool yields an unsuccessful Result whose Output explains
// what went wrong, so the model can read it and adapt.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) *Result {
	tool, ok := r.Get(name)
	if !ok {
		return FailureResult(name, ErrCodeNotFound, "tool not found", 0)
	}

	start := time.Now()
	result, err := tool.Execute(ctx, params)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return FailureResult(name, ErrCodeInvocation, err.Error(), elapsed)
	}
	if result == nil {
		return &Result{Success: true, ExecutionTimeMs: elapsed}
	}
	if result.ExecutionTimeMs == 0 {
		result.ExecutionTimeMs = elapsed
	}
	return result
}

// FailureResult builds the textual failure shown to the model.
func FailureResult(toolName, code, cause string, elapsedMs int64) *Result {
	return &Result{
		Success:         false,
		Output:          fmt.Sprintf("Error calling tool %s: %s", toolName, cause),
		Error:           &Error{Code: code, Message: cause},
		ExecutionTimeMs: elapsedMs,
	}
}
