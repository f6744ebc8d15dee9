package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CapabilityTransfer is the name of the conversation-transfer capability.
const CapabilityTransfer = "transfer_conversation"

// HandoffPayload carries structured context across an agent boundary. It is
// produced exactly once per handoff by the transfer capability's own
// execution and consumed by the next iteration's prompt composition.
type HandoffPayload struct {
	TargetAgent    AgentName `json:"target_agent"`
	FromAgent      AgentName `json:"from_agent"`
	Reason         string    `json:"reason"`
	Summary        string    `json:"summary"`
	PendingRequest string    `json:"pending_request"`
}

type transferArgs struct {
	TargetAgent    string `json:"target_agent"`
	Reason         string `json:"reason"`
	Summary        string `json:"summary"`
	PendingRequest string `json:"pending_request"`
}

// HandoffSpec builds the transfer capability for the current iteration.
// from is the agent the transfer is attributed to; targets are the agent
// names valid as a destination (the other configured agents).
func HandoffSpec(from AgentName, targets []AgentName) Spec {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, string(t))
	}

	schema := fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"target_agent": {"type": "string", "enum": ["%s"], "description": "Assistant to transfer the conversation to"},
			"reason": {"type": "string", "description": "Why the transfer is needed"},
			"summary": {"type": "string", "description": "Short summary of the conversation so far"},
			"pending_request": {"type": "string", "description": "The user's outstanding request the next assistant must address"}
		},
		"required": ["target_agent", "reason", "summary", "pending_request"]
	}`, strings.Join(names, `", "`))

	return Spec{
		Schema: llmToolSchema(CapabilityTransfer,
			"Transfer the conversation to another specialist assistant. Use only when the request is outside your own capabilities.",
			schema),
		ReadOnly: true, // the transfer itself never satisfies user intent
		Timeout:  5 * time.Second,
		Run: func(_ context.Context, raw json.RawMessage) (Result, error) {
			var args transferArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return Result{}, fmt.Errorf("parse transfer arguments: %w", err)
			}
			target := AgentName(strings.TrimSpace(args.TargetAgent))
			if target == "" {
				return Result{}, fmt.Errorf("target_agent is required")
			}
			// The targets list never contains the current agent, so a
			// self-transfer fails the membership check below.
			valid := false
			for _, t := range targets {
				if t == target {
					valid = true
					break
				}
			}
			if !valid {
				return Result{}, fmt.Errorf("unknown target assistant: %s", target)
			}
			return Result{
				Kind: KindHandoff,
				Handoff: &HandoffPayload{
					TargetAgent:    target,
					FromAgent:      from,
					Reason:         args.Reason,
					Summary:        args.Summary,
					PendingRequest: args.PendingRequest,
				},
			}, nil
		},
	}
}
