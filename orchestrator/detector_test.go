package orchestrator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/arbiterhq/switchboard/capability"
)

func TestDetectHandoff(t *testing.T) {
	handoffEv := resultEvent(capability.AgentCustomerMgmt, capability.Envelope{
		ToolCallID: "call_1",
		Name:       capability.CapabilityTransfer,
		Kind:       capability.KindHandoff,
		Handoff: &capability.HandoffPayload{
			TargetAgent: capability.AgentProductMgmt,
			FromAgent:   capability.AgentCustomerMgmt,
		},
	})
	payload, ok := DetectHandoff(handoffEv)
	if !ok {
		t.Fatal("expected handoff result to be detected")
	}
	if payload.TargetAgent != capability.AgentProductMgmt {
		t.Fatalf("unexpected target agent: %s", payload.TargetAgent)
	}

	notHandoffs := []Event{
		textDeltaEvent(capability.AgentCustomerMgmt, "hello"),
		stepFinishedEvent(capability.AgentCustomerMgmt, 1),
		streamFinishedEvent(capability.AgentCustomerMgmt, nil),
		resultEvent(capability.AgentCustomerMgmt, capability.Envelope{
			Name: "list_widgets",
			Kind: capability.KindData,
			Data: json.RawMessage(`[]`),
		}),
		resultEvent(capability.AgentCustomerMgmt, capability.Envelope{
			Name:  "create_widget",
			Kind:  capability.KindError,
			Error: "boom",
		}),
		// Kind tag decides, not field shape: a data result must not be
		// reclassified even if a payload pointer is somehow attached.
		resultEvent(capability.AgentCustomerMgmt, capability.Envelope{
			Name:    capability.CapabilityTransfer,
			Kind:    capability.KindData,
			Handoff: &capability.HandoffPayload{TargetAgent: capability.AgentProductMgmt},
		}),
	}
	for i, ev := range notHandoffs {
		if _, ok := DetectHandoff(ev); ok {
			t.Fatalf("event %d wrongly classified as handoff: %#v", i, ev)
		}
	}
}

func TestComposePrompt(t *testing.T) {
	profile := AgentProfile{
		Name:       capability.AgentProductMgmt,
		BasePrompt: "You manage the product catalog.",
	}

	plain := ComposePrompt(profile, "Workspace X holds 3 products.", nil)
	if !strings.Contains(plain, "You manage the product catalog.") || !strings.Contains(plain, "Workspace X holds 3 products.") {
		t.Fatalf("prompt missing base or context: %q", plain)
	}
	if strings.Contains(plain, "HANDOFF CONTEXT") {
		t.Fatalf("prompt has handoff block without a payload: %q", plain)
	}

	withHandoff := ComposePrompt(profile, "", &capability.HandoffPayload{
		TargetAgent:    capability.AgentProductMgmt,
		FromAgent:      capability.AgentCustomerMgmt,
		Reason:         "product question",
		Summary:        "user asked about SKUs",
		PendingRequest: "list all SKUs under $10",
	})
	for _, want := range []string{
		"HANDOFF CONTEXT",
		"customer_mgmt",
		"product question",
		"user asked about SKUs",
		"list all SKUs under $10",
		"Do not mention the transfer",
	} {
		if !strings.Contains(withHandoff, want) {
			t.Fatalf("handoff prompt missing %q:\n%s", want, withHandoff)
		}
	}
}
