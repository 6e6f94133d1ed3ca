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

// Package prompts holds the system directive of the observability agent and
// the variable substitution used to scope it to one database.
package prompts

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var placeholder = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Interpolate performs safe variable substitution in a prompt template.
//
// Uses {{.variable_name}} syntax. Values are escaped so that a database name
// cannot break out of the quoted label filters or inject prompt markers.
// Placeholders without a value are kept as-is.
//
// Example:
//
//	Interpolate("job=\"{{.database}}\"", map[string]string{"database": "orders"})
//	// Returns: job="orders"
func Interpolate(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}

	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			return match
		}
		return escapeString(value)
	})
}

// escapeString flattens a value onto a single line and strips characters
// that would end a quoted label or a code span in the prompt.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n', r == '\r', r == '\t':
			b.WriteRune(' ')
		case r == '"', r == '`', r == '\\':
			// dropped
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	s = sanitizePromptInjection(b.String())
	return strings.Join(strings.Fields(s), " ")
}

// sanitizePromptInjection blanks out common role and instruction markers.
func sanitizePromptInjection(s string) string {
	injectionPatterns := []string{
		"###",
		"---",
		"System:",
		"Assistant:",
		"Human:",
		"[INST]",
		"[/INST]",
		"<|im_start|>",
		"<|im_end|>",
	}

	for _, pattern := range injectionPatterns {
		s = strings.ReplaceAll(s, pattern, strings.Repeat(" ", len(pattern)))
	}
	return s
}
