package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// ConnState is the Engine's lifecycle state, per spec.md §3/§4.D.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosing
)

// String returns the name of the state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	}
	return "invalid"
}

// Hooks are the callbacks an owning facade wires in before Connect. Every
// hook is invoked on the Engine's executor goroutine — never concurrently,
// never while holding a lock (spec.md §5) — except the OnState and OnOpen
// calls of the first handshake, which run on the goroutine that called
// Connect, before Connect returns. A hook is free to call back
// into exported Engine methods (Send, State, ...) without deadlocking, but
// must not block for long or it stalls the executor. Nil hooks are no-ops.
// One slot per concern, matching spec.md's "Listener slots... replacing
// not accumulating" (Design Notes), set once at construction rather than
// exposed as thread-safe setters: the facade (G) owns the thread-safe
// setters visible to applications and forwards through these.
type Hooks struct {
	OnOpen         func()
	OnState        func(ConnState)
	OnReconnecting func()
	OnReconnect    func(attempt int, delay time.Duration)
	OnClose        func(reason DisconnectReason)
	OnPacket       func(p *Packet)
	OnPing         func(latencyMs int64)
}

// Options configures a call to Connect.
type Options struct {
	URL       string
	Path      string // default DefaultPath
	TLS       bool   // force wss:// even if URL says ws://
	Header    http.Header
	Query     map[string]string
	Dialer    Dialer
	Reconnect ReconnectConfig
	Hooks     Hooks
}

// Engine is the connection lifecycle state machine described in spec.md
// §4.D: it owns the transport, drives the handshake, answers the server's
// heartbeat, and reconnects with exponential backoff on failure. Grounded
// on the teacher's engine/client.go Dial (the ping-ticker-plus-read-loop
// goroutine pair) and this client's own Design Notes call for a single
// serialized "executor" (spec.md §5): every mutation of engine-owned state
// below happens inside a task drained by one goroutine (run), so none of
// these fields needs its own mutex — only the handful of accessors called
// from arbitrary application goroutines (SessionID, State, ...) use an
// atomic or a narrow mutex.
type Engine struct {
	opts Options

	// conn is guarded by connMu rather than funneled through the executor:
	// Send must stay callable from inside a Hooks callback (which already
	// runs on the executor goroutine) without deadlocking against itself,
	// so writes are serialized by a plain mutex instead of a round trip
	// through tasks. connMu also serializes the PONG write in onFrame
	// against a concurrent application Send.
	connMu sync.Mutex
	conn   Conn

	// Touched only inside executor tasks; safe without synchronization.
	pingInterval   time.Duration
	pingTimeout    time.Duration
	lastPingAt     time.Time
	pingTimer      *time.Timer
	reconnectTimer *time.Timer

	state            atomic.Int32
	attemptsMade     atomic.Int32
	generation       atomic.Int32
	lastLatencyMs    atomic.Int64
	abort            atomic.Bool
	pendingReasonSet atomic.Bool
	pendingReasonVal atomic.Int32

	sidMu sync.RWMutex
	sid   string

	tasks    chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Connect dials the server and completes the Engine.IO handshake
// synchronously (mirroring the teacher's Dial), then starts the executor
// goroutine that will drive heartbeats, sends, and any future
// reconnection. attemptsMade starts at 0 and is reset to 0 again on every
// successful handshake, including the first (spec.md §4.D).
func Connect(opts Options) (*Engine, error) {
	if opts.Dialer == nil {
		opts.Dialer = &WebsocketDialer{}
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.Reconnect.Delay <= 0 {
		opts.Reconnect.Delay = 5 * time.Second
	}
	if opts.Reconnect.DelayMax <= 0 {
		opts.Reconnect.DelayMax = 25 * time.Second
	}

	e := &Engine{
		opts:    opts,
		tasks:   make(chan func(), 64),
		stopped: make(chan struct{}),
	}
	e.state.Store(int32(StateConnecting))

	conn, param, err := e.dialOnce("")
	if err != nil {
		e.state.Store(int32(StateDisconnected))
		return nil, err
	}

	e.wg.Add(1)
	go e.run()

	e.onOpen(conn, param)
	return e, nil
}

// dialOnce performs one blocking dial-and-handshake attempt; it is safe to
// call from any goroutine (it touches no Engine-owned mutable state). sid,
// if non-empty, is carried on the URL per spec.md §6's optional reconnect
// parameter.
func (e *Engine) dialOnce(sid string) (Conn, Parameters, error) {
	rawurl, err := BuildURL(e.opts.URL, e.opts.Path, sid, e.opts.Query, time.Now().Unix(), e.opts.TLS)
	if err != nil {
		return nil, Parameters{}, fmt.Errorf("engine: build url: %w", err)
	}
	conn, err := e.opts.Dialer.Dial(rawurl, e.opts.Header)
	if err != nil {
		return nil, Parameters{}, fmt.Errorf("engine: dial: %w", err)
	}
	p, err := conn.ReadPacket()
	if err != nil {
		conn.Close()
		return nil, Parameters{}, fmt.Errorf("engine: handshake: read open packet: %w", err)
	}
	if p.ftype != FrameTypeOpen {
		conn.Close()
		return nil, Parameters{}, ErrHandshakeFailed
	}
	var param Parameters
	if err = json.Unmarshal(p.data, &param); err != nil {
		conn.Close()
		return nil, Parameters{}, fmt.Errorf("engine: handshake: decode open packet: %w", err)
	}
	if param.SID == "" {
		conn.Close()
		return nil, Parameters{}, ErrNoSID
	}
	if param.PingInterval <= 0 {
		param.PingInterval = defaultPingInterval
	}
	if param.PingTimeout <= 0 {
		param.PingTimeout = defaultPingTimeout
	}
	return conn, param, nil
}

// run is the executor: the single goroutine every engine-owned field is
// mutated from.
func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopped:
			return
		case fn := <-e.tasks:
			fn()
		}
	}
}

// post enqueues fn to run on the executor, returning false if the engine
// has already been closed. Close goes through post rather than executing
// inline (spec.md §5); Send does not, and serializes its writes with connMu
// instead (see Send).
func (e *Engine) post(fn func()) bool {
	select {
	case <-e.stopped:
		return false
	default:
	}
	select {
	case e.tasks <- fn:
		return true
	case <-e.stopped:
		return false
	}
}

// onOpen runs inline on Connect's calling goroutine for the synchronous
// first handshake — the executor goroutine is already running then, but no
// task can reach it before startReadLoop below begins posting frames — and
// on the executor, via post, for every subsequent reconnect handshake. It installs the new
// connection, arms the ping-timeout timer, resets attemptsMade, and starts
// that connection's read loop.
func (e *Engine) onOpen(conn Conn, param Parameters) {
	e.connMu.Lock()
	e.conn = conn
	e.connMu.Unlock()
	e.sidMu.Lock()
	e.sid = param.SID
	e.sidMu.Unlock()
	e.pingInterval = time.Duration(param.PingInterval) * time.Millisecond
	e.pingTimeout = time.Duration(param.PingTimeout) * time.Millisecond
	e.lastPingAt = time.Time{}
	e.attemptsMade.Store(0)
	gen := e.generation.Add(1)
	e.armPingTimer()
	e.setState(StateConnected)
	e.startReadLoop(conn, gen)
	if e.opts.Hooks.OnOpen != nil {
		e.opts.Hooks.OnOpen()
	}
}

// armPingTimer (re)arms the ping-timeout timer to fire pingInterval+
// pingTimeout ms from now, per spec.md §4.D's Handshake/Heartbeat rules.
func (e *Engine) armPingTimer() {
	if e.pingTimer != nil {
		e.pingTimer.Stop()
	}
	e.pingTimer = time.AfterFunc(e.pingInterval+e.pingTimeout, func() {
		e.post(e.onPingTimeout)
	})
}

// startReadLoop spawns the blocking read goroutine for conn, tagged with
// the generation it belongs to so a stale conn's eventual read error
// (after teardown already replaced or discarded it) is ignored rather than
// acted on twice.
func (e *Engine) startReadLoop(conn Conn, gen int32) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			p, err := conn.ReadPacket()
			if err != nil {
				if !e.post(func() { e.onReadError(gen, err) }) {
					return
				}
				return
			}
			if !e.post(func() { e.onFrame(gen, p) }) {
				return
			}
		}
	}()
}

func (e *Engine) onReadError(gen int32, err error) {
	if gen != e.generation.Load() {
		return
	}
	log.Println("engine.io read:", err)
	e.teardown(false, ReasonTransportError)
}

// onFrame dispatches one decoded Engine.IO frame, per spec.md §4.D/§6.
func (e *Engine) onFrame(gen int32, p *Packet) {
	if gen != e.generation.Load() {
		return
	}
	switch p.ftype {
	case FrameTypePing:
		now := time.Now()
		if !e.lastPingAt.IsZero() {
			latency := now.Sub(e.lastPingAt).Milliseconds()
			e.lastLatencyMs.Store(latency)
			if e.opts.Hooks.OnPing != nil {
				e.opts.Hooks.OnPing(latency)
			}
		}
		e.lastPingAt = now
		e.armPingTimer()
		if err := e.writePacket(&Packet{ftype: FrameTypePong, msgType: MessageTypeString}); err != nil {
			log.Println("engine.io pong:", err)
		}
	case FrameTypeClose:
		e.SetPendingReason(ReasonServerDisconnect)
		e.teardown(false, ReasonServerDisconnect)
	case FrameTypeMessage:
		if e.opts.Hooks.OnPacket != nil {
			e.opts.Hooks.OnPacket(p)
		}
	case FrameTypeOpen, FrameTypePong, FrameTypeUpgrade, FrameTypeNoop:
		// No participation needed: the handshake OPEN is consumed by
		// dialOnce, this client never sends PING itself (the server
		// does, per EIO v4), and there is no polling transport to
		// upgrade from (spec.md §1 Non-goals).
	}
}

func (e *Engine) onPingTimeout() {
	e.connMu.Lock()
	hasConn := e.conn != nil
	e.connMu.Unlock()
	if !hasConn {
		return
	}
	e.SetPendingReason(ReasonPingTimeout)
	e.teardown(false, ReasonPingTimeout)
}

// writePacket serializes one frame write against Send and against the
// teardown/onOpen swap of conn. Returns ErrClosed if there is no live
// transport.
func (e *Engine) writePacket(p *Packet) error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.conn == nil {
		return ErrClosed
	}
	return e.conn.WritePacket(p)
}

// SetPendingReason records a one-shot forced-close reason that the next
// teardown will consume, per spec.md §4.D's "Reason plumbing invariant".
// Exported so a higher layer (the namespace multiplexer, forcing a close
// after a protocol violation) can use the same mechanism.
func (e *Engine) SetPendingReason(r DisconnectReason) {
	e.pendingReasonVal.Store(int32(r))
	e.pendingReasonSet.Store(true)
}

func (e *Engine) takePendingReason(fallback DisconnectReason) DisconnectReason {
	if e.pendingReasonSet.CompareAndSwap(true, false) {
		return DisconnectReason(e.pendingReasonVal.Load())
	}
	return fallback
}

// teardown is the sole close handler: every path that ends a connection
// (read error, ping timeout, server CLOSE frame, user Close) funnels
// through here. It tears down the current transport, then either settles
// into StateDisconnected and fires the close listener, or schedules a
// reconnect attempt, per the state diagram in spec.md §4.D. A no-op if the
// engine has already settled into StateDisconnected, so a Close arriving
// after an internal terminal transition (reconnect exhaustion, a
// reconnect-disabled server disconnect) never re-fires the close listener
// with a second, misleading reason.
func (e *Engine) teardown(userInitiated bool, fallback DisconnectReason) {
	if ConnState(e.state.Load()) == StateDisconnected {
		return
	}
	e.connMu.Lock()
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	e.connMu.Unlock()
	if e.pingTimer != nil {
		e.pingTimer.Stop()
		e.pingTimer = nil
	}
	e.generation.Add(1)

	reason := e.takePendingReason(fallback)
	if userInitiated {
		reason = ReasonClientDisconnect
	}

	if userInitiated || e.abort.Load() || !e.opts.Reconnect.Enabled {
		e.setState(StateDisconnected)
		e.fireClose(reason)
		return
	}

	attempts := e.attemptsMade.Load()
	if e.opts.Reconnect.Attempts != Unlimited && int(attempts) >= e.opts.Reconnect.Attempts {
		e.setState(StateDisconnected)
		e.fireClose(ReasonMaxReconnectAttempts)
		return
	}

	wasConnected := ConnState(e.state.Load()) == StateConnected
	e.setState(StateReconnecting)
	if wasConnected && e.opts.Hooks.OnReconnecting != nil {
		e.opts.Hooks.OnReconnecting()
	}
	delay := backoffDelay(int(attempts), e.opts.Reconnect.Delay, e.opts.Reconnect.DelayMax)
	e.scheduleReconnect(delay)
}

func (e *Engine) scheduleReconnect(delay time.Duration) {
	e.reconnectTimer = time.AfterFunc(delay, func() {
		e.post(func() { e.beginReconnectAttempt(delay) })
	})
}

// beginReconnectAttempt fires when the backoff timer expires. Per spec.md
// §4.D: "When the timer fires and the state is still disconnected[/
// reconnecting], transition to connecting, increment attempts_made, emit
// the reconnect-listener callback... and re-execute connect."
func (e *Engine) beginReconnectAttempt(delay time.Duration) {
	if e.abort.Load() || ConnState(e.state.Load()) != StateReconnecting {
		return
	}
	e.setState(StateConnecting)
	attempt := int(e.attemptsMade.Add(1))
	if e.opts.Hooks.OnReconnect != nil {
		e.opts.Hooks.OnReconnect(attempt, delay)
	}

	e.sidMu.RLock()
	sid := e.sid
	e.sidMu.RUnlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		conn, param, err := e.dialOnce(sid)
		posted := e.post(func() { e.onReconnectDialResult(conn, param, err) })
		if !posted && conn != nil {
			conn.Close()
		}
	}()
}

func (e *Engine) onReconnectDialResult(conn Conn, param Parameters, err error) {
	if e.abort.Load() {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		e.teardown(false, ReasonTransportError)
		return
	}
	e.onOpen(conn, param)
}

func (e *Engine) setState(s ConnState) {
	e.state.Store(int32(s))
	if e.opts.Hooks.OnState != nil {
		e.opts.Hooks.OnState(s)
	}
}

func (e *Engine) fireClose(reason DisconnectReason) {
	if e.opts.Hooks.OnClose != nil {
		e.opts.Hooks.OnClose(reason)
	}
}

// Send writes frames to the wire as one uninterrupted run, preserving
// submission order across a packet's header and its attachments and across
// concurrent callers: connMu, not the executor, is what serializes this, so
// Send stays safe to call reentrantly from inside a Hooks callback (OnPacket
// in particular, which is how a namespace socket replying to an inbound
// event from its own handler would otherwise deadlock against the very
// executor goroutine running that handler). Returns ErrClosed if the engine
// is not currently connected or has been closed.
func (e *Engine) Send(frames ...Frame) error {
	if len(frames) == 0 {
		return nil
	}
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.conn == nil {
		return ErrClosed
	}
	for _, f := range frames {
		mt := MessageTypeString
		if f.Binary {
			mt = MessageTypeBinary
		}
		if err := e.conn.WritePacket(&Packet{msgType: mt, ftype: FrameTypeMessage, data: f.Data}); err != nil {
			return err
		}
	}
	return nil
}

// Close requests a user-initiated shutdown: it cancels the reconnect and
// ping timers, closes the transport, prevents any further reconnection,
// and fires the close listener with ReasonClientDisconnect. It does not
// wait for background goroutines to exit; use CloseSync for that. A no-op
// (beyond unblocking CloseSync) if the engine already reached
// StateDisconnected on its own, so it never re-fires the close listener
// with ReasonClientDisconnect in place of the reason that actually ended
// the connection.
func (e *Engine) Close() error {
	if ConnState(e.state.Load()) == StateDisconnected {
		e.abort.Store(true)
		e.stopOnce.Do(func() { close(e.stopped) })
		return nil
	}
	e.abort.Store(true)
	done := make(chan struct{})
	posted := e.post(func() {
		if e.reconnectTimer != nil {
			e.reconnectTimer.Stop()
		}
		e.setState(StateClosing)
		e.teardown(true, ReasonClientDisconnect)
		close(done)
	})
	if posted {
		<-done
	}
	e.stopOnce.Do(func() { close(e.stopped) })
	return nil
}

// CloseSync closes the engine and blocks until its executor and all
// background goroutines (read loops, in-flight reconnect dials) have
// exited, per spec.md §5's sync_close.
func (e *Engine) CloseSync() error {
	err := e.Close()
	e.wg.Wait()
	return err
}

// State reports the current connection state. Safe from any goroutine.
func (e *Engine) State() ConnState { return ConnState(e.state.Load()) }

// AttemptsMade reports the number of reconnect attempts since the last
// successful handshake. Safe from any goroutine.
func (e *Engine) AttemptsMade() int { return int(e.attemptsMade.Load()) }

// SessionID returns the server-assigned session id from the most recent
// handshake. Safe from any goroutine.
func (e *Engine) SessionID() string {
	e.sidMu.RLock()
	defer e.sidMu.RUnlock()
	return e.sid
}

// LastPingLatency returns the round-trip time between the two most recent
// server PING frames, per spec.md §3's last_ping_latency. Safe from any
// goroutine.
func (e *Engine) LastPingLatency() time.Duration {
	return time.Duration(e.lastLatencyMs.Load()) * time.Millisecond
}
