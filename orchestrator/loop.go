package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/internal/metrics"
	"github.com/arbiterhq/switchboard/llm"
	"github.com/arbiterhq/switchboard/store"
)

// DomainContextProvider supplies the opaque workspace summary injected into
// every prompt.
type DomainContextProvider interface {
	DomainContext(ctx context.Context, tenant store.TenantContext) (string, error)
}

// TelemetrySink persists gap records. Failures are swallowed by the loop.
// *store.Store satisfies this.
type TelemetrySink interface {
	RecordGap(ctx context.Context, tenantID, userID, agent, description string, capabilities []string) error
}

// Options configures the handoff loop.
type Options struct {
	// MaxHandoffs bounds conversation transfers per request. The loop runs
	// at most MaxHandoffs+1 generation sessions.
	MaxHandoffs int
	// MaxStepsPerSession bounds reasoning/tool steps within one session.
	MaxStepsPerSession int
	// DefaultAgent handles fresh conversations with no prior agent tag.
	DefaultAgent capability.AgentName

	// ReadOnlyCapabilities are excluded from gap detection.
	ReadOnlyCapabilities []string
	// GapDetectionAgents are the agents gap telemetry runs for.
	GapDetectionAgents []capability.AgentName
	// GapMinMessageLen is the minimum triggering-message length for a gap
	// record.
	GapMinMessageLen int
	// GapDescriptionLimit truncates the recorded message copy.
	GapDescriptionLimit int

	Model       string
	MaxTokens   int
	Temperature float32

	// EventBuffer is the outbound channel capacity.
	EventBuffer int
}

func (o *Options) applyDefaults() {
	if o.MaxHandoffs < 0 {
		o.MaxHandoffs = 0
	}
	if o.MaxStepsPerSession <= 0 {
		o.MaxStepsPerSession = 8
	}
	if o.DefaultAgent == "" {
		o.DefaultAgent = capability.AgentCustomerMgmt
	}
	if o.GapMinMessageLen <= 0 {
		o.GapMinMessageLen = 20
	}
	if o.GapDescriptionLimit <= 0 {
		o.GapDescriptionLimit = 500
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 32
	}
}

// LoopState is the per-request handoff state machine. Mutated only by the
// loop controller, once per iteration. HandoffCount increases by exactly 1
// per detected transfer and is never decremented.
type LoopState struct {
	HandoffCount   int
	CurrentAgent   capability.AgentName
	PreviousAgent  capability.AgentName
	PendingHandoff *capability.HandoffPayload
}

// Loop runs bounded handoff conversations. It is stateless across requests;
// all per-request state lives in LoopState inside Run.
type Loop struct {
	provider llm.Provider
	catalog  *capability.Catalog
	profiles map[capability.AgentName]AgentProfile
	context  DomainContextProvider
	sink     TelemetrySink
	st       *store.Store
	metrics  *metrics.Collector
	opts     Options
	logger   *zap.Logger
}

// NewLoop wires the loop's collaborators. contextProvider, sink, and
// collector may be nil; the corresponding behavior degrades gracefully.
func NewLoop(
	provider llm.Provider,
	catalog *capability.Catalog,
	profiles []AgentProfile,
	st *store.Store,
	contextProvider DomainContextProvider,
	sink TelemetrySink,
	collector *metrics.Collector,
	opts Options,
	logger *zap.Logger,
) (*Loop, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("capability catalog is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()

	byName := make(map[capability.AgentName]AgentProfile, len(profiles))
	for _, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("agent profile without a name")
		}
		if !catalog.Has(p.Name) {
			return nil, fmt.Errorf("agent %s has a profile but no capability builder", p.Name)
		}
		byName[p.Name] = p
	}
	for _, agent := range catalog.Agents() {
		if _, ok := byName[agent]; !ok {
			return nil, fmt.Errorf("agent %s has a capability builder but no profile", agent)
		}
	}
	if _, ok := byName[opts.DefaultAgent]; !ok {
		return nil, fmt.Errorf("default agent %s is not configured", opts.DefaultAgent)
	}

	return &Loop{
		provider: provider,
		catalog:  catalog,
		profiles: byName,
		context:  contextProvider,
		sink:     sink,
		st:       st,
		metrics:  collector,
		opts:     opts,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}, nil
}

// Run is the single entry point: it normalizes the conversation, selects
// the starting agent, and returns the outbound event stream. Input errors
// are returned before any output; once the channel is handed out, failures
// surface as a terminal error event. The channel closes when the loop ends;
// gap telemetry runs after that, off the response path.
func (l *Loop) Run(ctx context.Context, raw []RawMessage, tenant store.TenantContext) (<-chan Event, error) {
	conv, err := NormalizeConversation(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize conversation: %w", err)
	}

	initial := SelectInitialAgent(conv, l.opts.DefaultAgent)
	if _, ok := l.profiles[initial]; !ok {
		return nil, fmt.Errorf("conversation references unknown agent %s", initial)
	}

	composer := newStreamComposer(l.opts.EventBuffer)
	go l.runLoop(ctx, conv, tenant, initial, composer)
	return composer.Events(), nil
}

func (l *Loop) runLoop(ctx context.Context, conv []ConversationMessage, tenant store.TenantContext, initial capability.AgentName, composer *streamComposer) {
	start := time.Now()
	traceID := fmt.Sprintf("loop-%d", start.UnixNano())

	var span trace.Span
	ctx, span = otel.Tracer("switchboard/orchestrator").Start(ctx, "handoff_loop",
		trace.WithAttributes(
			attribute.String("tenant_id", tenant.TenantID),
			attribute.String("initial_agent", string(initial)),
		))
	log := l.logger.With(
		zap.String("trace_id", traceID),
		zap.String("tenant_id", tenant.TenantID),
	)

	domainContext := ""
	if l.context != nil {
		dc, err := l.context.DomainContext(ctx, tenant)
		if err != nil {
			log.Warn("domain context unavailable", zap.Error(err))
		} else {
			domainContext = dc
		}
	}

	history := historyMessages(conv)
	state := LoopState{CurrentAgent: initial}
	var invoked []string

	defer func() {
		composer.Close()
		span.SetAttributes(
			attribute.Int("handoff_count", state.HandoffCount),
			attribute.String("final_agent", string(state.CurrentAgent)),
		)
		span.End()
		l.metrics.RecordLoopDuration(time.Since(start))
		l.recordGap(ctx, tenant, state.CurrentAgent, conv, invoked, log)
	}()

	for {
		handoffAllowed := state.HandoffCount < l.opts.MaxHandoffs

		set, err := l.catalog.Build(capability.Binding{
			Store:  l.st,
			Tenant: tenant,
			Logger: log,
		}, state.CurrentAgent, handoffAllowed, state.PreviousAgent)
		if err != nil {
			composer.Forward(ctx, errorEvent(state.CurrentAgent, fmt.Sprintf("build capability set: %v", err)))
			return
		}

		prompt := ComposePrompt(l.profiles[state.CurrentAgent], domainContext, state.PendingHandoff)
		state.PendingHandoff = nil

		log.Info("generation session starting",
			zap.String("agent", string(state.CurrentAgent)),
			zap.Int("handoff_count", state.HandoffCount),
			zap.Bool("handoff_allowed", handoffAllowed),
		)
		l.metrics.RecordSession(string(state.CurrentAgent))

		sess := newSession(ctx, sessionConfig{
			Provider:    l.provider,
			Model:       l.opts.Model,
			MaxTokens:   l.opts.MaxTokens,
			Temperature: l.opts.Temperature,
			MaxSteps:    l.opts.MaxStepsPerSession,
			Agent:       state.CurrentAgent,
			TraceID:     traceID,
			TenantID:    tenant.TenantID,
			UserID:      tenant.UserID,
			Logger:      log,
		}, prompt, history, set)

		payload, failed := l.consumeSession(ctx, sess, composer, &invoked)
		if failed {
			return
		}
		if payload == nil {
			// Session completed without a transfer; the response is done.
			return
		}

		log.Info("handoff detected",
			zap.String("from", string(state.CurrentAgent)),
			zap.String("to", string(payload.TargetAgent)),
			zap.String("reason", payload.Reason),
		)
		l.metrics.RecordHandoff(string(state.CurrentAgent), string(payload.TargetAgent))

		if _, ok := l.profiles[payload.TargetAgent]; !ok {
			composer.Forward(ctx, errorEvent(state.CurrentAgent,
				fmt.Sprintf("handoff targets unknown agent %s", payload.TargetAgent)))
			return
		}

		state.PreviousAgent = state.CurrentAgent
		state.CurrentAgent = payload.TargetAgent
		state.PendingHandoff = payload
		state.HandoffCount++
	}
}

// consumeSession drains one session's events through detection and
// forwarding. On handoff detection it cancels the session, waits for its
// resources to be released, and stops consuming; the handoff-carrying event
// and anything after it are never forwarded. It returns the detected
// payload, or failed=true when the session or the downstream ended the
// request.
func (l *Loop) consumeSession(ctx context.Context, sess *session, composer *streamComposer, invoked *[]string) (*capability.HandoffPayload, bool) {
	for ev := range sess.Events() {
		if ev.Type == EventCapabilityInvocation && ev.Call != nil {
			*invoked = append(*invoked, ev.Call.Name)
		}
		if ev.Type == EventCapabilityResult && ev.Result != nil {
			l.metrics.RecordCapability(ev.Result.Name, string(ev.Result.Kind), ev.Result.Duration)
		}
		if ev.Type == EventStreamFinished && ev.Usage != nil {
			l.metrics.RecordLLMRequest(l.provider.Name(), l.opts.Model, "ok", 0, ev.Usage.PromptTokens, ev.Usage.CompletionTokens)
		}

		if payload, isHandoff := DetectHandoff(ev); isHandoff {
			// Cancel before anything downstream of this event can move:
			// the next prompt must not be built, and nothing from this
			// session may reach the client, until the session is gone.
			sess.Cancel()
			<-sess.Done()
			return payload, false
		}

		if !composer.Forward(ctx, ev) {
			sess.Cancel()
			<-sess.Done()
			return nil, true
		}
		l.metrics.RecordEventForwarded(string(ev.Type))

		if ev.Type == EventError {
			<-sess.Done()
			return nil, true
		}
	}
	<-sess.Done()
	return nil, false
}
