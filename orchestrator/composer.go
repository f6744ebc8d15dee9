package orchestrator

import "context"

// streamComposer merges the events of successive generation sessions into
// one outbound sequence. It is a straight pass-through: no reordering, no
// buffering beyond channel capacity, no deduplication. The caller is
// responsible for not forwarding the handoff-carrying event.
type streamComposer struct {
	out chan Event
}

func newStreamComposer(buffer int) *streamComposer {
	if buffer <= 0 {
		buffer = 32
	}
	return &streamComposer{out: make(chan Event, buffer)}
}

// Events is the outbound stream consumed by the transport layer.
func (c *streamComposer) Events() <-chan Event { return c.out }

// Forward delivers ev downstream in arrival order. It reports false when
// the caller's context ended before delivery.
func (c *streamComposer) Forward(ctx context.Context, ev Event) bool {
	select {
	case c.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the outbound stream. Nothing may be forwarded afterwards.
func (c *streamComposer) Close() { close(c.out) }
