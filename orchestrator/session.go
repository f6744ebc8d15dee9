package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/llm"
)

// sessionConfig carries the per-iteration parameters of one generation run.
type sessionConfig struct {
	Provider    llm.Provider
	Model       string
	MaxTokens   int
	Temperature float32
	MaxSteps    int
	Agent       capability.AgentName
	TraceID     string
	TenantID    string
	UserID      string
	Logger      *zap.Logger
}

// session is a single cancellable generation run: one agent, one prompt,
// one capability set. It produces a finite, non-restartable event sequence
// and stops promptly when Cancel is called.
type session struct {
	cfg    sessionConfig
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}
}

// newSession starts the run immediately. The returned session's event
// channel is closed when the run finishes or is cancelled; Done closes
// after all resources are released.
func newSession(parent context.Context, cfg sessionConfig, prompt string, history []llm.Message, set *capability.Set) *session {
	ctx, cancel := context.WithCancel(parent)
	// Unbuffered: the session cannot run ahead of the consumer, so a
	// cancellation issued on event N is guaranteed to land before the
	// session starts any work that would follow event N.
	s := &session{
		cfg:    cfg,
		cancel: cancel,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go s.run(ctx, prompt, history, set)
	return s
}

// Events returns the session's output sequence.
func (s *session) Events() <-chan Event { return s.events }

// Cancel stops the session. Safe to call more than once.
func (s *session) Cancel() { s.cancel() }

// Done closes once the session goroutine has exited and released its
// resources; callers must wait on it after Cancel before starting the
// next session.
func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) run(ctx context.Context, prompt string, history []llm.Message, set *capability.Set) {
	defer s.cancel()
	defer close(s.done)
	defer close(s.events)

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt})
	messages = append(messages, history...)

	for step := 1; step <= s.cfg.MaxSteps; step++ {
		req := &llm.ChatRequest{
			TraceID:     s.cfg.TraceID,
			TenantID:    s.cfg.TenantID,
			UserID:      s.cfg.UserID,
			Model:       s.cfg.Model,
			Messages:    messages,
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
			Tools:       set.Schemas(),
		}

		stream, err := s.cfg.Provider.Stream(ctx, req)
		if err != nil {
			s.emit(ctx, errorEvent(s.cfg.Agent, fmt.Sprintf("start generation: %v", err)))
			return
		}

		var (
			content   strings.Builder
			assembler toolCallAssembler
			usage     *llm.ChatUsage
		)

		for {
			chunk, ok := <-stream
			if !ok {
				break
			}
			if chunk.Err != nil {
				s.emit(ctx, errorEvent(s.cfg.Agent, chunk.Err.Message))
				return
			}
			if chunk.Delta.Content != "" {
				content.WriteString(chunk.Delta.Content)
				if !s.emit(ctx, textDeltaEvent(s.cfg.Agent, chunk.Delta.Content)) {
					return
				}
			}
			for _, tc := range chunk.Delta.ToolCalls {
				assembler.add(chunk.Index, tc)
			}
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}

		calls := assembler.calls()
		if len(calls) == 0 {
			if !s.emit(ctx, stepFinishedEvent(s.cfg.Agent, step)) {
				return
			}
			s.emit(ctx, streamFinishedEvent(s.cfg.Agent, usage))
			return
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   content.String(),
			ToolCalls: calls,
		})

		for _, call := range calls {
			if !s.emit(ctx, invocationEvent(s.cfg.Agent, call)) {
				return
			}
			env := set.Execute(ctx, call)
			if !s.emit(ctx, resultEvent(s.cfg.Agent, env)) {
				return
			}
			messages = append(messages, env.ToMessage())
		}

		if !s.emit(ctx, stepFinishedEvent(s.cfg.Agent, step)) {
			return
		}
	}

	s.cfg.Logger.Warn("session step ceiling reached",
		zap.String("agent", string(s.cfg.Agent)),
		zap.Int("max_steps", s.cfg.MaxSteps),
	)
	s.emit(ctx, errorEvent(s.cfg.Agent, fmt.Sprintf("generation exceeded %d steps", s.cfg.MaxSteps)))
}

// emit sends ev unless the session has been cancelled; it reports whether
// the event was delivered.
func (s *session) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// toolCallAssembler accumulates streamed tool-call fragments. Providers
// deliver the call id and name once and the arguments in pieces, keyed by
// choice index.
type toolCallAssembler struct {
	partial map[int]*llm.ToolCall
	order   []int
}

func (a *toolCallAssembler) add(index int, frag llm.ToolCall) {
	if a.partial == nil {
		a.partial = make(map[int]*llm.ToolCall)
	}
	p, ok := a.partial[index]
	if !ok {
		p = &llm.ToolCall{}
		a.partial[index] = p
		a.order = append(a.order, index)
	}
	if frag.ID != "" {
		p.ID = frag.ID
	}
	if frag.Name != "" {
		p.Name = frag.Name
	}
	if len(frag.Arguments) > 0 {
		p.Arguments = append(p.Arguments, frag.Arguments...)
	}
}

func (a *toolCallAssembler) calls() []llm.ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	sort.Ints(a.order)
	out := make([]llm.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		call := *a.partial[idx]
		if call.Name == "" {
			continue
		}
		if len(call.Arguments) == 0 {
			call.Arguments = json.RawMessage("{}")
		}
		out = append(out, call)
	}
	return out
}
