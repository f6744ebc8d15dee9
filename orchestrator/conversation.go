package orchestrator

import (
	"fmt"
	"strings"

	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/llm"
)

// RawPart is one typed fragment of a structured inbound message. Only
// text-typed parts contribute to the normalized text.
type RawPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// RawMessage is the heterogeneous inbound message shape: flat text, a part
// list, or both. AgentTag records which agent authored an assistant turn.
type RawMessage struct {
	Role     string    `json:"role"`
	Text     string    `json:"text,omitempty"`
	Parts    []RawPart `json:"parts,omitempty"`
	AgentTag string    `json:"agent,omitempty"`
}

// ConversationMessage is the canonical normalized form. Immutable for the
// duration of one request; the orchestrator never persists it.
type ConversationMessage struct {
	Role     llm.Role             `json:"role"`
	Text     string               `json:"text"`
	AgentTag capability.AgentName `json:"agent,omitempty"`
}

// NormalizeConversation converts raw inbound messages into the canonical
// ordered sequence. Flat text wins when present; otherwise text-typed parts
// are joined with newlines. A message with neither normalizes to empty text,
// which is valid (a pure tool-call turn has no text). Applying the function
// to already-normalized input returns the same sequence.
func NormalizeConversation(raw []RawMessage) ([]ConversationMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("conversation is empty")
	}
	out := make([]ConversationMessage, 0, len(raw))
	for i, m := range raw {
		role := llm.Role(strings.ToLower(strings.TrimSpace(m.Role)))
		if role != llm.RoleUser && role != llm.RoleAssistant {
			return nil, fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
		text := m.Text
		if text == "" && len(m.Parts) > 0 {
			var parts []string
			for _, p := range m.Parts {
				if p.Type == "text" {
					parts = append(parts, p.Text)
				}
			}
			text = strings.Join(parts, "\n")
		}
		out = append(out, ConversationMessage{
			Role:     role,
			Text:     text,
			AgentTag: capability.AgentName(m.AgentTag),
		})
	}
	return out, nil
}

// historyMessages converts the normalized conversation into model messages.
// Agent tags are an orchestrator concern and are not shown to the model.
func historyMessages(conv []ConversationMessage) []llm.Message {
	out := make([]llm.Message, 0, len(conv))
	for _, m := range conv {
		out = append(out, llm.Message{Role: m.Role, Content: m.Text})
	}
	return out
}

// lastUserText returns the text of the most recent user message, or "".
func lastUserText(conv []ConversationMessage) string {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == llm.RoleUser {
			return conv[i].Text
		}
	}
	return ""
}
