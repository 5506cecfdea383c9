package socketio

import (
	"errors"
	"sync"
	"time"
)

// ErrAckTimeout is delivered to an ack callback when its per-emit timeout
// elapses before the server replies, per spec.md §4.E "Ack timeout".
var ErrAckTimeout = errors.New("socketio: ack timeout")

// AckCallback receives the message list carried by a server ack, or a
// non-nil err (ErrAckTimeout) if the ack never arrived in time. Exactly one
// of {msgs, err} is meaningful: err is nil on a genuine ack.
type AckCallback func(msgs MessageList, err error)

// pendingAck is a single row of a Socket's pending-ack table: the callback
// to invoke and the timer that will fire it with ErrAckTimeout if armed.
// Grounded on socket.go's ackmap (sync.Map keyed by uint64), generalized
// from reflect-based invocation (callback.go's *callback.Call) to a plain
// typed func, and with an explicit timer since the teacher's ack path never
// supported per-emit timeouts.
type pendingAck struct {
	fn    AckCallback
	timer *time.Timer
}

// ackTable is the per-namespace pending-acks map described in spec.md §4.E.
// Removal is atomic with respect to concurrent ack-receipt and timeout
// firing: whichever of the two calls take() first wins, the other is a
// no-op, satisfying the "only removal race is with the ack itself" clause.
type ackTable struct {
	mu      sync.Mutex
	entries map[uint64]*pendingAck
}

func newAckTable() *ackTable {
	return &ackTable{entries: make(map[uint64]*pendingAck)}
}

// store records fn (and its optional timer) under id. Any previous entry
// under id is silently replaced (ack ids are allocated by a single
// monotonic counter, so collisions should not occur in practice).
func (t *ackTable) store(id uint64, fn AckCallback, timer *time.Timer) {
	t.mu.Lock()
	t.entries[id] = &pendingAck{fn: fn, timer: timer}
	t.mu.Unlock()
}

// take removes and returns the entry for id, or ok=false if it was already
// removed (by a prior ack, timeout, or cancellation). Callers must invoke
// the returned callback outside of any lock, per spec.md §5's "never hold
// a lock while invoking a user callback".
func (t *ackTable) take(id uint64) (*pendingAck, bool) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	return e, ok
}

// drain removes and returns every entry, for use when the namespace socket
// closes and all pending acks must be abandoned without firing.
func (t *ackTable) drain() []*pendingAck {
	t.mu.Lock()
	out := make([]*pendingAck, 0, len(t.entries))
	for id, e := range t.entries {
		out = append(out, e)
		delete(t.entries, id)
	}
	t.mu.Unlock()
	return out
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
