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

package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallToolResult_Text(t *testing.T) {
	tests := []struct {
		name   string
		result *CallToolResult
		want   string
	}{
		{name: "nil", result: nil, want: ""},
		{name: "empty", result: &CallToolResult{}, want: ""},
		{
			name: "text blocks joined in order",
			result: &CallToolResult{Content: []Content{
				{Type: "text", Text: "first"},
				{Type: "text", Text: "second"},
			}},
			want: "first\nsecond",
		},
		{
			name: "non-text blocks stringified",
			result: &CallToolResult{Content: []Content{
				{Type: "text", Text: "rows:"},
				{Type: "image", MimeType: "image/png", Data: "AAAA"},
				{Type: "resource", Resource: &EmbeddedResource{URI: "vl://logs/1"}},
			}},
			want: "rows:\n[image image/png, 4 bytes base64]\n[resource vl://logs/1]",
		},
		{
			name: "embedded resource text",
			result: &CallToolResult{Content: []Content{
				{Type: "resource", Resource: &EmbeddedResource{URI: "x", Text: "ERROR: deadlock detected"}},
			}},
			want: "ERROR: deadlock detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Text())
		})
	}
}

func TestContent_String_UnknownType(t *testing.T) {
	c := Content{Type: "chart", Text: "x"}
	assert.JSONEq(t, `{"type":"chart","text":"x"}`, c.String())

	// formatting with %v goes through String and must terminate
	assert.JSONEq(t, `{"type":"chart"}`, fmt.Sprintf("%v", Content{Type: "chart"}))
}
