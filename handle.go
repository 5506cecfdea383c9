package socketio

import "sync"

// Event is delivered to a namespace Socket's bindings for every inbound
// event/binary_event packet, per spec.md §4.E. Name-specific and catch-all
// handlers are both called with the same Event.
type Event struct {
	Namespace string
	Name      string
	Messages  MessageList
	NeedAck   bool

	ack func(MessageList)
}

// Ack sends an ack/binary_ack packet carrying msgs back to the server with
// the same id the triggering event carried. It is a no-op if the event did
// not request an ack (NeedAck is false) or Ack was already called once.
func (e *Event) Ack(msgs ...Message) {
	if e.ack == nil {
		return
	}
	e.ack(MessageList(msgs))
	e.ack = nil
}

// EventHandler is a namespace Socket's binding for one event name, or its
// catch-all binding.
type EventHandler func(*Event)

// eventHandlers is a single-slot-per-event registry: binding a new handler
// to a name replaces, rather than accumulates, matching spec.md's Design
// Notes ("Listener slots... replacing not accumulating") and generalizing
// the teacher's map[string]Callable (engine/handle.go) from a fixed set of
// Engine.IO event names to arbitrary Socket.IO event names plus a single
// always-consulted catch-all slot.
type eventHandlers struct {
	mu       sync.RWMutex
	named    map[string]EventHandler
	catchAll EventHandler
}

func newEventHandlers() *eventHandlers {
	return &eventHandlers{named: make(map[string]EventHandler)}
}

// On replaces the handler bound to name. Passing nil clears the binding.
func (h *eventHandlers) On(name string, fn EventHandler) {
	h.mu.Lock()
	if fn == nil {
		delete(h.named, name)
	} else {
		h.named[name] = fn
	}
	h.mu.Unlock()
}

// OnAny replaces the catch-all handler. Passing nil clears it.
func (h *eventHandlers) OnAny(fn EventHandler) {
	h.mu.Lock()
	h.catchAll = fn
	h.mu.Unlock()
}

// dispatch fires the name-specific handler (if any) followed by the
// catch-all (if any), per spec.md §4.E. Both handlers, if present, see the
// same Event value.
func (h *eventHandlers) dispatch(evt *Event) {
	h.mu.RLock()
	named := h.named[evt.Name]
	catchAll := h.catchAll
	h.mu.RUnlock()
	if named != nil {
		named(evt)
	}
	if catchAll != nil {
		catchAll(evt)
	}
}
