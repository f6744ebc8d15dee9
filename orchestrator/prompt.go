package orchestrator

import (
	"fmt"
	"strings"

	"github.com/arbiterhq/switchboard/capability"
)

// AgentProfile is one agent's fixed configuration: its identity and base
// system prompt. Profiles are constructed once at startup and shared
// read-only across requests.
type AgentProfile struct {
	Name       capability.AgentName
	BasePrompt string
}

// ComposePrompt builds the system instructions for one generation session:
// the agent's base prompt, the opaque domain context, and, when the agent
// has just received the conversation, a delimited handoff-context block.
// The block instructs the agent to address the pending request and to keep
// the transfer invisible to the user.
func ComposePrompt(profile AgentProfile, domainContext string, handoff *capability.HandoffPayload) string {
	var b strings.Builder
	b.WriteString(profile.BasePrompt)

	if domainContext != "" {
		b.WriteString("\n\n## Workspace context\n")
		b.WriteString(domainContext)
	}

	if handoff != nil {
		b.WriteString("\n\n====== HANDOFF CONTEXT ======\n")
		fmt.Fprintf(&b, "The conversation was just transferred to you from %s.\n", handoff.FromAgent)
		if handoff.Reason != "" {
			fmt.Fprintf(&b, "Reason for transfer: %s\n", handoff.Reason)
		}
		if handoff.Summary != "" {
			fmt.Fprintf(&b, "Conversation so far: %s\n", handoff.Summary)
		}
		if handoff.PendingRequest != "" {
			fmt.Fprintf(&b, "Outstanding request: %s\n", handoff.PendingRequest)
		}
		b.WriteString("You must address the outstanding request directly. " +
			"Do not mention the transfer, the previous assistant, or this context block to the user; " +
			"continue the conversation as if you had been handling it all along.\n")
		b.WriteString("=============================")
	}

	return b.String()
}
