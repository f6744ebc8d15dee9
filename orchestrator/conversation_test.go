package orchestrator

import (
	"reflect"
	"testing"

	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/llm"
)

func TestNormalizeConversation_FlatTextAndParts(t *testing.T) {
	raw := []RawMessage{
		{Role: "user", Text: "hello"},
		{Role: "assistant", AgentTag: "customer_mgmt", Parts: []RawPart{
			{Type: "text", Text: "first"},
			{Type: "image", Text: "ignored"},
			{Type: "text", Text: "second"},
		}},
		{Role: "user"},
	}

	conv, err := NormalizeConversation(raw)
	if err != nil {
		t.Fatalf("NormalizeConversation failed: %v", err)
	}
	if len(conv) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv))
	}
	if conv[0].Text != "hello" || conv[0].Role != llm.RoleUser {
		t.Fatalf("unexpected first message: %#v", conv[0])
	}
	if conv[1].Text != "first\nsecond" {
		t.Fatalf("expected joined text parts, got %q", conv[1].Text)
	}
	if conv[1].AgentTag != capability.AgentCustomerMgmt {
		t.Fatalf("expected agent tag preserved, got %q", conv[1].AgentTag)
	}
	if conv[2].Text != "" {
		t.Fatalf("expected empty text for contentless message, got %q", conv[2].Text)
	}
}

func TestNormalizeConversation_FlatTextWinsOverParts(t *testing.T) {
	conv, err := NormalizeConversation([]RawMessage{
		{Role: "user", Text: "flat", Parts: []RawPart{{Type: "text", Text: "part"}}},
	})
	if err != nil {
		t.Fatalf("NormalizeConversation failed: %v", err)
	}
	if conv[0].Text != "flat" {
		t.Fatalf("expected flat text to win, got %q", conv[0].Text)
	}
}

func TestNormalizeConversation_Idempotent(t *testing.T) {
	raw := []RawMessage{
		{Role: "user", Parts: []RawPart{{Type: "text", Text: "a"}, {Type: "text", Text: "b"}}},
		{Role: "assistant", Text: "reply", AgentTag: "product_mgmt"},
	}
	first, err := NormalizeConversation(raw)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	// Re-feed the normalized output through the normalizer.
	again := make([]RawMessage, 0, len(first))
	for _, m := range first {
		again = append(again, RawMessage{Role: string(m.Role), Text: m.Text, AgentTag: string(m.AgentTag)})
	}
	second, err := NormalizeConversation(again)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization is not idempotent:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

func TestNormalizeConversation_RejectsEmptyAndBadRole(t *testing.T) {
	if _, err := NormalizeConversation(nil); err == nil {
		t.Fatal("expected error for empty conversation")
	}
	if _, err := NormalizeConversation([]RawMessage{{Role: "system", Text: "x"}}); err == nil {
		t.Fatal("expected error for unsupported role")
	}
}

func TestSelectInitialAgent(t *testing.T) {
	cases := []struct {
		name string
		conv []ConversationMessage
		want capability.AgentName
	}{
		{
			name: "fresh conversation falls back to default",
			conv: []ConversationMessage{{Role: llm.RoleUser, Text: "hi"}},
			want: capability.AgentCustomerMgmt,
		},
		{
			name: "nearest tagged assistant wins",
			conv: []ConversationMessage{
				{Role: llm.RoleUser, Text: "hi"},
				{Role: llm.RoleAssistant, Text: "a", AgentTag: capability.AgentCustomerMgmt},
				{Role: llm.RoleUser, Text: "more"},
				{Role: llm.RoleAssistant, Text: "b", AgentTag: capability.AgentProductMgmt},
				{Role: llm.RoleUser, Text: "again"},
			},
			want: capability.AgentProductMgmt,
		},
		{
			name: "untagged assistant messages are skipped",
			conv: []ConversationMessage{
				{Role: llm.RoleAssistant, Text: "a", AgentTag: capability.AgentProductMgmt},
				{Role: llm.RoleAssistant, Text: "b"},
				{Role: llm.RoleUser, Text: "hi"},
			},
			want: capability.AgentProductMgmt,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectInitialAgent(tc.conv, capability.AgentCustomerMgmt)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
