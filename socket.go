package socketio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wireio/socketio/engine"
)

// connectTimeout bounds how long a namespace Socket waits for the server's
// connect ack before giving up, per spec.md §4.E.
const connectTimeout = 20 * time.Second

// closeGrace bounds how long Close waits for the server's disconnect ack (or
// simply for the wire write to land) before tearing the namespace down
// unconditionally, per spec.md §4.E.
const closeGrace = 3 * time.Second

// Socket multiplexes one Socket.IO namespace over a Client's shared engine
// connection, per spec.md §3/§4.E. It is created by Client.Socket on first
// lookup and destroyed once both the engine has torn it down and the
// application has no more use for it. Generalizes the teacher's Socket
// (socket.go), which wrapped one engine.Socket 1:1 with no namespace
// multiplexing or ack machinery of its own.
type Socket struct {
	nsp    string
	client *Client

	// engineRef is the namespace socket's back-reference to the shared
	// engine, held weakly per spec.md §3: valid only while the socket
	// remains registered with its Client, and cleared by teardown before
	// any externally held *Socket can observe the removal. It is an
	// atomic.Pointer rather than a plain field because Emit et al. may run
	// concurrently with teardown from an application goroutine.
	engineRef atomic.Pointer[engine.Engine]

	mu           sync.Mutex
	connected    bool
	auth         Message
	sid          string
	queue        []*Packet
	connectedAt  time.Time
	connectTimer *time.Timer
	closeTimer   *time.Timer

	handlers *eventHandlers
	acks     *ackTable
	onError  func(error)

	closeOnce sync.Once

	sent     atomic.Uint64
	received atomic.Uint64
}

func newSocket(client *Client, nsp string) *Socket {
	return &Socket{
		nsp:      nsp,
		client:   client,
		handlers: newEventHandlers(),
		acks:     newAckTable(),
	}
}

// Namespace returns the namespace this socket is bound to, already
// normalized ("" became "/", a leading "/" was added if absent).
func (s *Socket) Namespace() string { return s.nsp }

// Connected reports whether the namespace has completed its connect
// handshake with the server and is not mid-teardown.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SID returns the namespace-level session id the server assigned in its
// connect ack, or "" before the first successful handshake.
func (s *Socket) SID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// ConnectedAt returns the time of the most recent successful namespace
// handshake, or the zero time if never connected.
func (s *Socket) ConnectedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedAt
}

// PacketsSent and PacketsReceived report namespace-level traffic counters.
func (s *Socket) PacketsSent() uint64     { return s.sent.Load() }
func (s *Socket) PacketsReceived() uint64 { return s.received.Load() }

// SetAuth sets the payload sent with this namespace's connect packet. It
// must be called before the first successful handshake to have any effect
// on that handshake; a reconnect re-sends whatever auth is set at the time.
func (s *Socket) SetAuth(auth Message) *Socket {
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
	return s
}

// On binds fn as the handler for event name, replacing any previous
// binding. Passing nil clears it.
func (s *Socket) On(name string, fn EventHandler) { s.handlers.On(name, fn) }

// OnAny binds fn as the catch-all handler, replacing any previous one.
// Passing nil clears it.
func (s *Socket) OnAny(fn EventHandler) { s.handlers.OnAny(fn) }

// OnError sets the callback invoked when the server rejects this
// namespace's connect attempt with a connect_error packet.
func (s *Socket) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Emit sends a fire-and-forget event: no ack is requested.
func (s *Socket) Emit(name string, args ...Message) error {
	return s.sendOrQueue(s.buildEventPacket(name, MessageList(args), nil))
}

// EmitWithAck sends name with args and requests a server ack, invoking cb
// with the ack's message list once it arrives. If timeout is positive and
// the ack has not arrived within it, cb is invoked once with ErrAckTimeout
// instead. A nil cb degrades to Emit.
func (s *Socket) EmitWithAck(name string, args []Message, timeout time.Duration, cb AckCallback) error {
	if cb == nil {
		return s.Emit(name, args...)
	}
	id := s.client.nextAckID()
	s.armAck(id, cb, timeout)
	pkt := s.buildEventPacket(name, MessageList(args), newAckID(id))
	if err := s.sendOrQueue(pkt); err != nil {
		s.withdrawAck(id)
		return err
	}
	return nil
}

// EmitAsync sends name with args and returns an AckAwaiter the caller can
// block on (via Wait) for the server's ack, per spec.md §4.F's coroutine
// emit shape realized as a single-shot future.
func (s *Socket) EmitAsync(name string, args []Message, timeout time.Duration) *AckAwaiter {
	aw := newAckAwaiter()
	id := s.client.nextAckID()
	s.armAck(id, aw.deliver, timeout)
	aw.cancel = func() { s.withdrawAck(id) }
	pkt := s.buildEventPacket(name, MessageList(args), newAckID(id))
	if err := s.sendOrQueue(pkt); err != nil {
		s.withdrawAck(id)
		aw.failImmediately(err)
	}
	return aw
}

func (s *Socket) buildEventPacket(name string, args MessageList, ackID *uint64) *Packet {
	pkt := Packet{Type: PacketTypeEvent, Namespace: s.nsp, ID: ackID}
	pkt = pkt.WithPayload(args.ToArrayMessage(name))
	return &pkt
}

func (s *Socket) armAck(id uint64, cb AckCallback, timeout time.Duration) {
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			if e, ok := s.acks.take(id); ok {
				stopTimer(e.timer)
				e.fn(nil, ErrAckTimeout)
			}
		})
	}
	s.acks.store(id, cb, timer)
}

func (s *Socket) withdrawAck(id uint64) {
	if e, ok := s.acks.take(id); ok {
		stopTimer(e.timer)
	}
}

// Close requests a graceful namespace shutdown: if connected, it sends a
// disconnect packet, arms a closeGrace timer and returns without waiting;
// teardown then runs when the server's disconnect arrives (via
// handleInboundDisconnect) or when the grace timer fires. If not yet
// connected, it tears down immediately.
func (s *Socket) Close() error {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		s.teardown()
		return nil
	}
	_ = s.sendNow(&Packet{Type: PacketTypeDisconnect, Namespace: s.nsp})
	s.mu.Lock()
	if s.closeTimer == nil {
		s.closeTimer = time.AfterFunc(closeGrace, s.teardown)
	}
	s.mu.Unlock()
	return nil
}

// sendOrQueue sends pkt immediately if the namespace has completed its
// handshake, or enqueues it for flush-in-order once it does, per spec.md
// §4.E/§5's outbound-queue ordering guarantee.
func (s *Socket) sendOrQueue(pkt *Packet) error {
	s.mu.Lock()
	if !s.connected {
		s.queue = append(s.queue, pkt)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.sendNow(pkt)
}

// sendNow encodes and writes pkt immediately, bypassing the outbound queue.
// Safe to call reentrantly from within an inbound-event handler (see
// engine.Engine.Send's doc comment on reentrancy).
func (s *Socket) sendNow(pkt *Packet) error {
	eng := s.engineRef.Load()
	if eng == nil {
		return ErrSocketClosed
	}
	text, attachments, err := encodePacket(pkt)
	if err != nil {
		return fmt.Errorf("socketio: encode packet: %w", err)
	}
	frames := make([]engine.Frame, 0, 1+len(attachments))
	frames = append(frames, engine.Frame{Data: text})
	for _, a := range attachments {
		frames = append(frames, engine.Frame{Binary: true, Data: a})
	}
	if err := eng.Send(frames...); err != nil {
		return fmt.Errorf("socketio: send: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// onEngineOpen fires once per successful engine handshake (the first one
// and every post-reconnect one alike): the namespace session from any prior
// handshake is invalid, so it resets connected and re-sends the connect
// packet, per spec.md §4.E's Connect rule.
func (s *Socket) onEngineOpen(eng *engine.Engine) {
	s.engineRef.Store(eng)
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.connectToEngine()
}

func (s *Socket) connectToEngine() {
	pkt := &Packet{Type: PacketTypeConnect, Namespace: s.nsp}
	s.mu.Lock()
	if !s.auth.IsNull() {
		*pkt = pkt.WithPayload(s.auth)
	}
	if s.connectTimer != nil {
		s.connectTimer.Stop()
	}
	s.connectTimer = time.AfterFunc(connectTimeout, s.onConnectTimeout)
	s.mu.Unlock()
	_ = s.sendNow(pkt)
}

func (s *Socket) onConnectTimeout() {
	s.mu.Lock()
	already := s.connected
	s.mu.Unlock()
	if already {
		return
	}
	s.teardown()
}

// markTransportLost fires whenever the underlying engine leaves the
// connected state (reconnecting, disconnected mid-backoff, closing): future
// emits must queue again until the next onEngineOpen, but nothing is
// destroyed yet — the outbound queue, pending acks, and engine handle all
// survive a transient transport loss, per spec.md §4.E distinguishing a
// transient transport gap from a terminal namespace Disconnected.
func (s *Socket) markTransportLost() {
	s.mu.Lock()
	s.connected = false
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	s.mu.Unlock()
}

// handleInboundConnect completes the namespace handshake: it cancels the
// connect timer, records the server-issued sid (if present), fires the
// socket-open listener, and flushes the outbound queue in FIFO order before
// any packet submitted after this point, per spec.md §4.E/§5.
func (s *Socket) handleInboundConnect(pkt *Packet) {
	s.mu.Lock()
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	s.connected = true
	s.connectedAt = time.Now()
	if sidMsg, ok := pkt.Payload.ObjectGet("sid"); ok {
		if str, isStr := sidMsg.String(); isStr {
			s.sid = str
		}
	}
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	if s.client != nil {
		s.client.fireSocketOpen(s.nsp)
	}
	for _, queued := range pending {
		_ = s.sendNow(queued)
	}
}

// handleInboundDisconnect handles a server-initiated disconnect packet: the
// server has already decided to end the namespace, so teardown runs
// immediately with no grace wait.
func (s *Socket) handleInboundDisconnect() {
	s.teardown()
}

// handleInboundConnectError surfaces a rejected handshake to OnError and
// cancels the connect timer; it does not itself tear the socket down, since
// the application may want to inspect the error before deciding whether to
// retry (e.g. the next engine reconnect will retry the handshake
// automatically via onEngineOpen).
func (s *Socket) handleInboundConnectError(pkt *Packet) {
	s.mu.Lock()
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	onErr := s.onError
	s.mu.Unlock()

	if onErr == nil {
		return
	}
	msg := "connect_error"
	if m, ok := pkt.Payload.ObjectGet("message"); ok {
		if str, isStr := m.String(); isStr {
			msg = str
		}
	}
	onErr(fmt.Errorf("socketio: %s: %s", s.nsp, msg))
}

// handleInboundEvent dispatches an inbound event/binary_event packet to the
// namespace's handlers, wiring up Event.Ack when the packet carries an id.
func (s *Socket) handleInboundEvent(pkt *Packet) {
	arr, ok := pkt.Payload.Array()
	if !ok || len(arr) == 0 {
		return
	}
	name, ok := arr[0].String()
	if !ok {
		return
	}
	s.received.Add(1)

	evt := &Event{Namespace: s.nsp, Name: name, Messages: MessageList(arr[1:]), NeedAck: pkt.ID != nil}
	if pkt.ID != nil {
		id := *pkt.ID
		evt.ack = func(msgs MessageList) {
			ackPkt := &Packet{Type: PacketTypeAck, Namespace: s.nsp, ID: newAckID(id)}
			*ackPkt = ackPkt.WithPayload(msgs.ToArrayMessage(""))
			_ = s.sendNow(ackPkt)
		}
	}
	s.handlers.dispatch(evt)
}

// handleInboundAck delivers a server ack/binary_ack to its waiting
// callback, if the id is still pending (it may already have been removed
// by a timeout or a cancellation racing the ack itself).
func (s *Socket) handleInboundAck(pkt *Packet) {
	if pkt.ID == nil {
		return
	}
	entry, ok := s.acks.take(*pkt.ID)
	if !ok {
		return
	}
	stopTimer(entry.timer)
	var msgs MessageList
	if arr, ok := pkt.Payload.Array(); ok {
		msgs = MessageList(arr)
	}
	entry.fn(msgs, nil)
}

// teardown is the sole terminal-close path: user Close (after its grace
// timer, or immediately if never connected), a server disconnect packet,
// and the engine's own terminal close cascading down all funnel through
// here exactly once. It clears the outbound queue, invalidates the
// back-reference, abandons every pending ack, fires the socket-close
// listener, and asks the Client to deregister this socket, per spec.md
// §4.E's Disconnected rule.
func (s *Socket) teardown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.connected = false
		s.queue = nil
		if s.connectTimer != nil {
			s.connectTimer.Stop()
			s.connectTimer = nil
		}
		if s.closeTimer != nil {
			s.closeTimer.Stop()
			s.closeTimer = nil
		}
		s.mu.Unlock()

		s.engineRef.Store(nil)
		for _, e := range s.acks.drain() {
			stopTimer(e.timer)
		}
		if s.client != nil {
			s.client.fireSocketClose(s.nsp)
			s.client.removeSocket(s.nsp, s)
		}
	})
}
