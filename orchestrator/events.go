// Package orchestrator implements the handoff streaming loop: it routes one
// user conversation across the configured agents, runs one cancellable
// generation session per iteration, detects mid-stream transfer requests,
// and composes the sessions into a single outbound event stream.
package orchestrator

import (
	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/llm"
)

// EventType discriminates the outbound event union.
type EventType string

const (
	EventTextDelta            EventType = "text_delta"
	EventCapabilityInvocation EventType = "capability_invocation"
	EventCapabilityResult     EventType = "capability_result"
	EventStepFinished         EventType = "step_finished"
	EventStreamFinished       EventType = "stream_finished"
	EventError                EventType = "error"
)

// Event is one unit of session output. Exactly one payload field is set,
// selected by Type. Error events are terminal: nothing follows them.
type Event struct {
	Type  EventType            `json:"type"`
	Agent capability.AgentName `json:"agent"`

	Text   string               `json:"text,omitempty"`   // text_delta
	Call   *llm.ToolCall        `json:"call,omitempty"`   // capability_invocation
	Result *capability.Envelope `json:"result,omitempty"` // capability_result
	Step   int                  `json:"step,omitempty"`   // step_finished
	Usage  *llm.ChatUsage       `json:"usage,omitempty"`  // stream_finished
	Err    string               `json:"error,omitempty"`  // error
}

func textDeltaEvent(agent capability.AgentName, text string) Event {
	return Event{Type: EventTextDelta, Agent: agent, Text: text}
}

func invocationEvent(agent capability.AgentName, call llm.ToolCall) Event {
	c := call
	return Event{Type: EventCapabilityInvocation, Agent: agent, Call: &c}
}

func resultEvent(agent capability.AgentName, env capability.Envelope) Event {
	e := env
	return Event{Type: EventCapabilityResult, Agent: agent, Result: &e}
}

func stepFinishedEvent(agent capability.AgentName, step int) Event {
	return Event{Type: EventStepFinished, Agent: agent, Step: step}
}

func streamFinishedEvent(agent capability.AgentName, usage *llm.ChatUsage) Event {
	return Event{Type: EventStreamFinished, Agent: agent, Usage: usage}
}

func errorEvent(agent capability.AgentName, msg string) Event {
	return Event{Type: EventError, Agent: agent, Err: msg}
}
