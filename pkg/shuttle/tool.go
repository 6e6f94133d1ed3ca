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

// Package shuttle defines the uniform tool surface the reasoning loop binds
// to the model and dispatches through.
//
// Tools "shuttle" queries between the model and the observability back-ends.
package shuttle

import (
	"context"
	"encoding/json"
)

// Tool is one callable capability.
type Tool interface {
	// Name is the identifier the model uses to request the tool.
	Name() string

	// Description is shown to the model.
	Description() string

	// InputSchema is the JSON Schema of the arguments object.
	InputSchema() JSONSchema

	// Execute runs the tool. Implementations backed by a remote provider
	// report failures in the Result rather than as an error.
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)

	// Backend names the provider the tool belongs to.
	Backend() string
}

// Result is the outcome of a tool execution, already flattened to text for
// the model.
type Result struct {
	Success         bool
	Output          string
	Error           *Error
	ExecutionTimeMs int64
}

// Error describes a failed execution.
type Error struct {
	Code    string
	Message string
}

// Error codes set by this module.
const (
	ErrCodeNotFound   = "TOOL_NOT_FOUND"
	ErrCodeInvocation = "INVOCATION_FAILED"
	ErrCodeArguments  = "INVALID_ARGUMENTS"
)

// JSONSchema is a JSON Schema document kept in its decoded form. Provider
// schemas are passed through untouched, so no typed model is imposed.
type JSONSchema map[string]interface{}

// EmptyObjectSchema accepts an object with no declared properties.
func EmptyObjectSchema() JSONSchema {
	return JSONSchema{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Properties returns the "properties" member, or an empty map.
func (s JSONSchema) Properties() map[string]interface{} {
	if props, ok := s["properties"].(map[string]interface{}); ok {
		return props
	}
	return map[string]interface{}{}
}

// Required returns the "required" member as strings.
func (s JSONSchema) Required() []string {
	var out []string
	switch req := s["required"].(type) {
	case []string:
		out = append(out, req...)
	case []interface{}:
		for _, r := range req {
			if name, ok := r.(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// ToJSON marshals the schema.
func (s JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}
