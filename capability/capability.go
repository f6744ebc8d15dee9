// Package capability defines the callable operations exposed to a generation
// session: domain tools bound to a tenant-scoped store, plus the
// conversation-transfer capability. Every result carries an explicit kind
// tag so downstream classification never guesses from field presence.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arbiterhq/switchboard/llm"
)

// AgentName identifies one of the two configured agent roles.
type AgentName string

const (
	AgentCustomerMgmt AgentName = "customer_mgmt"
	AgentProductMgmt  AgentName = "product_mgmt"
)

// ResultKind tags every capability result with its classification.
type ResultKind string

const (
	KindData    ResultKind = "data"
	KindError   ResultKind = "error"
	KindHandoff ResultKind = "handoff"
)

// Result is the structured outcome of one capability run.
type Result struct {
	Kind    ResultKind      `json:"kind"`
	Data    json.RawMessage `json:"data,omitempty"`
	Handoff *HandoffPayload `json:"handoff,omitempty"`
}

// DataResult wraps v as a KindData result.
func DataResult(v any) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("marshal result: %w", err)
	}
	return Result{Kind: KindData, Data: data}, nil
}

// Func is the capability execution signature.
type Func func(ctx context.Context, args json.RawMessage) (Result, error)

// RateLimitConfig bounds invocation frequency for one capability.
type RateLimitConfig struct {
	MaxCalls int
	Window   time.Duration
}

// Spec describes one callable capability.
type Spec struct {
	Schema    llm.ToolSchema
	Run       Func
	Timeout   time.Duration // default 15s
	ReadOnly  bool          // excluded from gap detection
	RateLimit *RateLimitConfig
}

// Envelope is the executed form of a Result, tied back to the originating
// tool call. Error envelopes are forwarded to the model like any other
// result; they are recoverable within the conversation.
type Envelope struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Kind       ResultKind      `json:"kind"`
	Data       json.RawMessage `json:"data,omitempty"`
	Handoff    *HandoffPayload `json:"handoff,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// ToMessage converts the envelope into a tool-role message for the model.
func (e Envelope) ToMessage() llm.Message {
	msg := llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: e.ToolCallID,
		Name:       e.Name,
	}
	switch {
	case e.Error != "":
		msg.Content = "Error: " + e.Error
	case e.Handoff != nil:
		msg.Content = fmt.Sprintf("Conversation transferred to %s.", e.Handoff.TargetAgent)
	default:
		msg.Content = string(e.Data)
	}
	return msg
}

// Set is an ordered collection of capabilities. It is rebuilt fresh for
// every loop iteration and never mutated after construction.
type Set struct {
	order    []string
	specs    map[string]Spec
	limiters map[string]*rate.Limiter
	logger   *zap.Logger
}

// NewSet creates an empty capability set.
func NewSet(logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set{
		specs:    make(map[string]Spec),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

// Add appends a capability, preserving insertion order.
func (s *Set) Add(spec Spec) error {
	name := strings.TrimSpace(spec.Schema.Name)
	if name == "" {
		return fmt.Errorf("capability name is required")
	}
	if _, exists := s.specs[name]; exists {
		return fmt.Errorf("capability %s already registered", name)
	}
	if spec.Timeout == 0 {
		spec.Timeout = 15 * time.Second
	}
	s.order = append(s.order, name)
	s.specs[name] = spec
	if rl := spec.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		s.limiters[name] = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	}
	return nil
}

// Has reports whether the set contains name.
func (s *Set) Has(name string) bool {
	_, ok := s.specs[name]
	return ok
}

// Names returns capability names in insertion order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Schemas returns tool schemas in insertion order, for the chat request.
func (s *Set) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.specs[name].Schema)
	}
	return out
}

// Execute runs one tool call against the set. Failures of any kind are
// reported inside the envelope, never as a Go error: the model sees them
// as ordinary error results.
func (s *Set) Execute(ctx context.Context, call llm.ToolCall) Envelope {
	start := time.Now()
	env := Envelope{
		ToolCallID: call.ID,
		Name:       call.Name,
		Kind:       KindError,
	}

	spec, ok := s.specs[call.Name]
	if !ok {
		env.Error = fmt.Sprintf("unknown capability: %s", call.Name)
		env.Duration = time.Since(start)
		s.logger.Warn("unknown capability invoked", zap.String("name", call.Name))
		return env
	}

	if limiter, ok := s.limiters[call.Name]; ok && !limiter.Allow() {
		env.Error = fmt.Sprintf("rate limit exceeded for %s", call.Name)
		env.Duration = time.Since(start)
		s.logger.Warn("capability rate limited", zap.String("name", call.Name))
		return env
	}

	if len(call.Arguments) > 0 && !json.Valid(call.Arguments) {
		env.Error = "invalid arguments: not valid JSON"
		env.Duration = time.Since(start)
		return env
	}

	execCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	// Buffered so the worker can exit even when the timeout fires first.
	done := make(chan struct {
		res Result
		err error
	}, 1)

	go func() {
		res, err := spec.Run(execCtx, call.Arguments)
		select {
		case done <- struct {
			res Result
			err error
		}{res, err}:
		case <-execCtx.Done():
		}
	}()

	select {
	case d := <-done:
		env.Duration = time.Since(start)
		if d.err != nil {
			env.Error = d.err.Error()
			s.logger.Warn("capability failed",
				zap.String("name", call.Name),
				zap.Error(d.err),
				zap.Duration("duration", env.Duration),
			)
			return env
		}
		env.Kind = d.res.Kind
		env.Data = d.res.Data
		env.Handoff = d.res.Handoff
		s.logger.Debug("capability executed",
			zap.String("name", call.Name),
			zap.String("kind", string(env.Kind)),
			zap.Duration("duration", env.Duration),
		)
		return env

	case <-execCtx.Done():
		env.Duration = time.Since(start)
		env.Error = fmt.Sprintf("execution timeout after %s", spec.Timeout)
		s.logger.Warn("capability timeout",
			zap.String("name", call.Name),
			zap.Duration("timeout", spec.Timeout),
		)
		return env
	}
}
