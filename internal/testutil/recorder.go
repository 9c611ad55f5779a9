package testutil

import (
	"sync"

	"github.com/hupe1980/agentpanel/core"
)

// Recorder collects emitted events. Its Emit method is a core.Emitter.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

// Emit records ev.
func (r *Recorder) Emit(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t core.EventType) []core.Event {
	var out []core.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Messages returns the payloads of final (non-partial) message events.
func (r *Recorder) Messages() []core.Message {
	var out []core.Message
	for _, ev := range r.OfType(core.EventMessage) {
		if !ev.Partial && ev.Message != nil {
			out = append(out, *ev.Message)
		}
	}
	return out
}
