package orchestrator

import (
	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/llm"
)

// SelectInitialAgent picks the agent that should handle this turn: the tag
// of the nearest preceding assistant message that carries one, or fallback
// on a fresh conversation. This is how a multi-turn conversation sticks with
// whichever agent last spoke without any server-side orchestrator state.
func SelectInitialAgent(conv []ConversationMessage, fallback capability.AgentName) capability.AgentName {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == llm.RoleAssistant && conv[i].AgentTag != "" {
			return conv[i].AgentTag
		}
	}
	return fallback
}
