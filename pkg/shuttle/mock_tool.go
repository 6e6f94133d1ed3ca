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
	"sync"
)

// MockTool is a Tool whose behaviour is controlled by the test. Safe for
// concurrent use.
type MockTool struct {
	MockName        string
	MockDescription string
	MockSchema      JSONSchema
	MockBackend     string
	MockExecute     func(ctx context.Context, params map[string]interface{}) (*Result, error)

	mu    sync.Mutex
	calls []map[string]interface{}
}

// Name returns the mock tool name.
func (m *MockTool) Name() string {
	if m.MockName == "" {
		return "mock__tool"
	}
	return m.MockName
}

// Description returns the mock tool description.
func (m *MockTool) Description() string {
	if m.MockDescription == "" {
		return "Mock tool for testing"
	}
	return m.MockDescription
}

// InputSchema returns the mock schema or an empty object schema.
func (m *MockTool) InputSchema() JSONSchema {
	if m.MockSchema == nil {
		return EmptyObjectSchema()
	}
	return m.MockSchema
}

// Execute records the call and runs MockExecute when set.
func (m *MockTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, params)
	m.mu.Unlock()

	if m.MockExecute != nil {
		return m.MockExecute(ctx, params)
	}
	return &Result{Success: true, Output: "mock result"}, nil
}

// Backend returns the mock backend.
func (m *MockTool) Backend() string {
	return m.MockBackend
}

// Calls returns the params of every Execute call so far.
func (m *MockTool) Calls() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]interface{}(nil), m.calls...)
}

var _ Tool = (*MockTool)(nil)
