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

package agent

import (
	"github.com/teradata-labs/pgobserve/pkg/types"
)

const (
	// DefaultPreviewLength bounds each tool result in the transcript, in runes.
	DefaultPreviewLength = 500

	// FallbackResponse is returned when the model produced no text at all.
	FallbackResponse = "I was unable to generate a response. Please try again."
)

// HistoryEntry is one prior turn supplied by the caller.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the state of one invocation. Messages only grow, except
// for the leading system message which each decision step replaces.
type Conversation struct {
	Messages []types.Message
	Database Identity
}

// ToolCallRecord pairs one tool call with a preview of its result.
type ToolCallRecord struct {
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args"`
	Result string                 `json:"result"`
}

// Result is the caller-facing projection of a finished conversation.
type Result struct {
	Response  string           `json:"response"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
}

// BuildConversation maps prior turns onto model messages and appends the
// new question as the final user message. Roles other than assistant are
// treated as user.
func BuildConversation(id Identity, history []HistoryEntry, message string) *Conversation {
	msgs := make([]types.Message, 0, len(history)+1)
	for _, h := range history {
		if h.Role == types.RoleAssistant {
			msgs = append(msgs, types.AssistantMessage(h.Content))
			continue
		}
		msgs = append(msgs, types.UserMessage(h.Content))
	}
	msgs = append(msgs, types.UserMessage(message))

	return &Conversation{Messages: msgs, Database: id}
}

// setSystemMessage replaces the leading system message, or inserts one.
func (c *Conversation) setSystemMessage(content string) {
	sys := types.SystemMessage(content)
	if len(c.Messages) > 0 && c.Messages[0].Role == types.RoleSystem {
		c.Messages[0] = sys
		return
	}
	c.Messages = append([]types.Message{sys}, c.Messages...)
}

// lastMessage returns the most recent message, or nil.
func (c *Conversation) lastMessage() *types.Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Project derives the response and tool transcript from a conversation.
// previewLen <= 0 uses DefaultPreviewLength.
func Project(conv *Conversation, previewLen int) *Result {
	if previewLen <= 0 {
		previewLen = DefaultPreviewLength
	}

	return &Result{
		Response:  finalResponse(conv.Messages),
		ToolCalls: pairToolCalls(conv.Messages, previewLen),
	}
}

func finalResponse(msgs []types.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == types.RoleAssistant && len(m.ToolCalls) == 0 && m.Content != "" {
			return m.Content
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == types.RoleAssistant && m.Content != "" {
			return m.Content
		}
	}
	return FallbackResponse
}

// pairToolCalls walks the conversation in order. A result carrying a known
// call id fills that call; any other result fills the oldest open call.
func pairToolCalls(msgs []types.Message, previewLen int) []ToolCallRecord {
	records := make([]ToolCallRecord, 0)
	filled := make([]bool, 0)
	byID := make(map[string]int)

	for _, m := range msgs {
		switch m.Role {
		case types.RoleAssistant:
			for _, call := range m.ToolCalls {
				if call.ID != "" {
					byID[call.ID] = len(records)
				}
				records = append(records, ToolCallRecord{Tool: call.Name, Args: call.Input})
				filled = append(filled, false)
			}

		case types.RoleTool:
			idx := -1
			if i, ok := byID[m.ToolUseID]; ok && m.ToolUseID != "" && !filled[i] {
				idx = i
			} else {
				for i := range records {
					if !filled[i] {
						idx = i
						break
					}
				}
			}
			if idx < 0 {
				continue
			}
			records[idx].Result = truncateRunes(m.Content, previewLen)
			filled[idx] = true
		}
	}

	for i := range records {
		if records[i].Args == nil {
			records[i].Args = map[string]interface{}{}
		}
	}
	return records
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
