package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/store"
)

// recordGap runs once after the loop completes, only for configured agents.
// A gap is a turn in which the terminating agent invoked nothing outside
// the read-only allow-list, signalling unmet user intent. Invocations from
// aborted sessions count. Best effort throughout: every failure is logged
// and swallowed, since the response has already been fully sent.
func (l *Loop) recordGap(ctx context.Context, tenant store.TenantContext, finalAgent capability.AgentName, conv []ConversationMessage, invoked []string, log *zap.Logger) {
	if l.sink == nil {
		return
	}
	enabled := false
	for _, a := range l.opts.GapDetectionAgents {
		if a == finalAgent {
			enabled = true
			break
		}
	}
	if !enabled {
		return
	}

	readOnly := make(map[string]bool, len(l.opts.ReadOnlyCapabilities))
	for _, name := range l.opts.ReadOnlyCapabilities {
		readOnly[name] = true
	}
	for _, name := range invoked {
		if !readOnly[name] {
			return
		}
	}

	trigger := lastUserText(conv)
	if len(trigger) < l.opts.GapMinMessageLen {
		return
	}
	if len(trigger) > l.opts.GapDescriptionLimit {
		trigger = trigger[:l.opts.GapDescriptionLimit]
	}

	// The request context may already be winding down; the record still
	// deserves a bounded chance to land.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := l.sink.RecordGap(sinkCtx, tenant.TenantID, tenant.UserID, string(finalAgent), trigger, invoked); err != nil {
		log.Warn("gap telemetry failed",
			zap.String("agent", string(finalAgent)),
			zap.Error(err),
		)
		return
	}
	l.metrics.RecordGapDetected(string(finalAgent))
	log.Info("gap recorded",
		zap.String("agent", string(finalAgent)),
		zap.Int("capabilities_invoked", len(invoked)),
	)
}
