package orchestrator

import "github.com/arbiterhq/switchboard/capability"

// DetectHandoff classifies one output event. It returns the handoff payload
// and true when the event is the transfer capability's result; such events
// must be suppressed from the outbound stream. Classification matches on
// the result's explicit kind tag, never on field presence. The detector has
// no side effects: cancelling the session on detection is the loop
// controller's job.
func DetectHandoff(ev Event) (*capability.HandoffPayload, bool) {
	if ev.Type != EventCapabilityResult || ev.Result == nil {
		return nil, false
	}
	if ev.Result.Kind != capability.KindHandoff || ev.Result.Handoff == nil {
		return nil, false
	}
	return ev.Result.Handoff, true
}
