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

// Package llm holds what the model providers share: tool name sanitizing,
// client-side rate limiting and the instrumentation wrapper.
package llm

import "strings"

// maxToolNameLen is the longest function name OpenAI and Anthropic accept.
const maxToolNameLen = 64

// SanitizeToolName maps a qualified tool name onto ^[a-zA-Z0-9_-]{1,64}$.
//
// Provider-qualified names ("prometheus__execute_query") already match. MCP
// servers may still expose local names with dots or colons, which both APIs
// reject.
func SanitizeToolName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '-':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > maxToolNameLen {
		s = s[:maxToolNameLen]
	}
	return s
}

// BuildToolNameMap maps sanitized names back to the originals.
func BuildToolNameMap(names []string) map[string]string {
	m := make(map[string]string, len(names))
	for _, name := range names {
		m[SanitizeToolName(name)] = name
	}
	return m
}

// ReverseToolName maps a sanitized tool name back to its original.
// Returns the sanitized name unchanged when it is not in the map.
func ReverseToolName(nameMap map[string]string, sanitizedName string) string {
	if original, exists := nameMap[sanitizedName]; exists {
		return original
	}
	return sanitizedName
}
