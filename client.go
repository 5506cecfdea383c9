package socketio

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wireio/socketio/engine"
)

// ConnectOptions configures a Client.Connect call, generalizing the
// teacher's Dial(rawurl, requestHeader, tr Transport) signature into a
// struct so the growing option set (query params, TLS, path override) does
// not keep changing Connect's signature, per spec.md §4.G.
type ConnectOptions struct {
	Path    string // default "/socket.io/"
	Query   map[string]string
	Headers http.Header
	TLS     bool
}

// Client is the public facade: it owns exactly one engine connection and
// multiplexes any number of namespace Sockets over it, per spec.md §3/§4.G.
// Generalizes the teacher's Client (client.go), which wrapped exactly one
// engio.Socket with no namespace concept and no reconnection of its own.
type Client struct {
	mu      sync.RWMutex
	sockets map[string]*Socket

	engMu  sync.Mutex
	engine *engine.Engine

	decoder *decoder

	ackID atomic.Uint64

	reconnect engine.ReconnectConfig
	proxy     *engine.ProxyConfig
	tlsConfig *tls.Config

	listenersMu sync.Mutex
	onOpenFn    func()
	onFailFn    func(kind engine.ErrorKind, err error)
	onReconnectingFn func()
	onReconnectFn    func(attempt int, delay time.Duration)
	onCloseFn        func(reason engine.DisconnectReason)
	onStateFn        func(engine.ConnState)
	onSocketOpenFn   func(nsp string)
	onSocketCloseFn  func(nsp string)
}

// NewClient constructs a Client with no active connection. Call Connect to
// dial a server.
func NewClient() *Client {
	return &Client{
		sockets:   make(map[string]*Socket),
		decoder:   newDecoder(),
		reconnect: engine.DefaultReconnectConfig(),
	}
}

// OnOpen sets the listener fired each time the underlying engine completes
// a handshake (the first one and every post-reconnect one alike).
func (c *Client) OnOpen(fn func()) {
	c.listenersMu.Lock()
	c.onOpenFn = fn
	c.listenersMu.Unlock()
}

// OnFail sets the listener fired when Connect's initial dial fails.
func (c *Client) OnFail(fn func(kind engine.ErrorKind, err error)) {
	c.listenersMu.Lock()
	c.onFailFn = fn
	c.listenersMu.Unlock()
}

// OnReconnecting sets the listener fired when the engine begins backing off
// after losing a connection that had been established at least once.
func (c *Client) OnReconnecting(fn func()) {
	c.listenersMu.Lock()
	c.onReconnectingFn = fn
	c.listenersMu.Unlock()
}

// OnReconnect sets the listener fired immediately before each reconnect
// dial attempt, with the 1-based attempt number and the backoff delay that
// preceded it.
func (c *Client) OnReconnect(fn func(attempt int, delay time.Duration)) {
	c.listenersMu.Lock()
	c.onReconnectFn = fn
	c.listenersMu.Unlock()
}

// OnClose sets the listener fired when the engine reaches a terminal
// disconnect (no further reconnection will be attempted).
func (c *Client) OnClose(fn func(reason engine.DisconnectReason)) {
	c.listenersMu.Lock()
	c.onCloseFn = fn
	c.listenersMu.Unlock()
}

// OnState sets the listener fired on every engine state transition.
func (c *Client) OnState(fn func(engine.ConnState)) {
	c.listenersMu.Lock()
	c.onStateFn = fn
	c.listenersMu.Unlock()
}

// OnSocketOpen sets the listener fired whenever a namespace completes its
// connect handshake.
func (c *Client) OnSocketOpen(fn func(nsp string)) {
	c.listenersMu.Lock()
	c.onSocketOpenFn = fn
	c.listenersMu.Unlock()
}

// OnSocketClose sets the listener fired whenever a namespace is torn down.
func (c *Client) OnSocketClose(fn func(nsp string)) {
	c.listenersMu.Lock()
	c.onSocketCloseFn = fn
	c.listenersMu.Unlock()
}

// SetReconnectConfig overrides the default reconnection policy. The policy is
// copied into the engine when Connect runs, so it applies to engines started
// by later Connect calls; an engine that is already running keeps its own.
func (c *Client) SetReconnectConfig(cfg engine.ReconnectConfig) {
	c.engMu.Lock()
	c.reconnect = cfg
	c.engMu.Unlock()
}

// SetProxy configures an HTTP proxy for the websocket dial.
func (c *Client) SetProxy(cfg engine.ProxyConfig) {
	c.engMu.Lock()
	c.proxy = &cfg
	c.engMu.Unlock()
}

// SetTLSConfig overrides the TLS configuration used for wss:// dials.
func (c *Client) SetTLSConfig(cfg *tls.Config) {
	c.engMu.Lock()
	c.tlsConfig = cfg
	c.engMu.Unlock()
}

// Connect dials url and begins the Engine.IO handshake. A second Connect
// call while already connecting, connected, or reconnecting is a no-op,
// per spec.md §4.G's idempotent-connect rule; a Connect call after a prior
// engine has fully closed first joins that engine's executor (waiting for
// CloseSync to finish) before dialing again.
func (c *Client) Connect(url string, opts ConnectOptions) error {
	c.engMu.Lock()
	if prev := c.engine; prev != nil {
		switch prev.State() {
		case engine.StateConnecting, engine.StateConnected, engine.StateReconnecting:
			c.engMu.Unlock()
			return nil
		}
		c.engMu.Unlock()
		prev.CloseSync()
		c.engMu.Lock()
	}

	// engine.Connect fires OnOpen for the first handshake before it returns,
	// while engMu is still held and c.engine is not yet set; that first open
	// is skipped by the hook and cascaded below once the engine is installed.
	var installed atomic.Bool
	eng, err := engine.Connect(engine.Options{
		URL:    url,
		Path:   opts.Path,
		TLS:    opts.TLS,
		Header: opts.Headers,
		Query:  opts.Query,
		Dialer: &engine.WebsocketDialer{TLSClientConfig: c.tlsConfig, Proxy: c.proxy},
		Reconnect: c.reconnect,
		Hooks: engine.Hooks{
			OnOpen: func() {
				if installed.Load() {
					c.handleEngineOpen()
				}
			},
			OnState:        c.handleEngineState,
			OnReconnecting: c.fireReconnecting,
			OnReconnect:    c.fireReconnect,
			OnClose:        c.handleEngineClose,
			OnPacket:       c.handleEnginePacket,
		},
	})
	if err != nil {
		c.engMu.Unlock()
		c.fireFail(classifyDialError(err), err)
		return fmt.Errorf("socketio: connect to %s: %w", url, err)
	}
	c.engine = eng
	installed.Store(true)
	c.engMu.Unlock()
	c.handleEngineOpen()
	return nil
}

// Close requests a shutdown of the underlying engine, cascading down to
// every namespace Socket once the engine's OnClose hook fires. It does not
// block; use CloseSync to wait for full teardown.
func (c *Client) Close() error {
	c.engMu.Lock()
	eng := c.engine
	c.engMu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.Close()
}

// CloseSync closes the underlying engine and blocks until its executor and
// every background goroutine has exited.
func (c *Client) CloseSync() error {
	c.engMu.Lock()
	eng := c.engine
	c.engMu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.CloseSync()
}

// State reports the underlying engine's connection state, or
// engine.StateDisconnected if Connect has never been called.
func (c *Client) State() engine.ConnState {
	c.engMu.Lock()
	eng := c.engine
	c.engMu.Unlock()
	if eng == nil {
		return engine.StateDisconnected
	}
	return eng.State()
}

// Socket returns the Socket bound to nsp, normalizing "" to "/" and adding
// a leading "/" if absent, creating it on first lookup per spec.md §3/§4.E.
// If the engine is already connected when a new Socket is created, the
// namespace handshake begins immediately; otherwise it begins the next time
// the engine's OnOpen hook fires.
func (c *Client) Socket(nsp string) *Socket {
	nsp = normalizeNamespace(nsp)

	c.mu.Lock()
	if s, ok := c.sockets[nsp]; ok {
		c.mu.Unlock()
		return s
	}
	s := newSocket(c, nsp)
	c.sockets[nsp] = s
	c.mu.Unlock()

	c.engMu.Lock()
	eng := c.engine
	c.engMu.Unlock()
	if eng != nil && eng.State() == engine.StateConnected {
		s.onEngineOpen(eng)
	} else if eng != nil {
		s.engineRef.Store(eng)
	}
	return s
}

func normalizeNamespace(nsp string) string {
	if nsp == "" {
		return "/"
	}
	if nsp[0] != '/' {
		return "/" + nsp
	}
	return nsp
}

func (c *Client) removeSocket(nsp string, s *Socket) {
	c.mu.Lock()
	if cur, ok := c.sockets[nsp]; ok && cur == s {
		delete(c.sockets, nsp)
	}
	c.mu.Unlock()
}

func (c *Client) nextAckID() uint64 { return c.ackID.Add(1) }

func (c *Client) handleEngineOpen() {
	c.engMu.Lock()
	eng := c.engine
	c.engMu.Unlock()

	c.mu.RLock()
	sockets := make([]*Socket, 0, len(c.sockets))
	for _, s := range c.sockets {
		sockets = append(sockets, s)
	}
	c.mu.RUnlock()

	for _, s := range sockets {
		s.onEngineOpen(eng)
	}
	c.listenersMu.Lock()
	fn := c.onOpenFn
	c.listenersMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) handleEngineState(state engine.ConnState) {
	if state != engine.StateConnected {
		c.mu.RLock()
		for _, s := range c.sockets {
			s.markTransportLost()
		}
		c.mu.RUnlock()
	}
	c.listenersMu.Lock()
	fn := c.onStateFn
	c.listenersMu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func (c *Client) handleEngineClose(reason engine.DisconnectReason) {
	c.mu.RLock()
	sockets := make([]*Socket, 0, len(c.sockets))
	for _, s := range c.sockets {
		sockets = append(sockets, s)
	}
	c.mu.RUnlock()
	for _, s := range sockets {
		s.teardown()
	}
	c.listenersMu.Lock()
	fn := c.onCloseFn
	c.listenersMu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

func (c *Client) handleEnginePacket(p *engine.Packet) {
	var pkt *Packet
	var err error
	if p.IsBinary() {
		pkt, err = c.decoder.FeedBinary(p.Data())
	} else {
		pkt, err = c.decoder.FeedText(p.Data())
	}
	if err != nil || pkt == nil {
		return
	}
	c.dispatchPacket(pkt)
}

func (c *Client) dispatchPacket(pkt *Packet) {
	nsp := pkt.Namespace
	if nsp == "" {
		nsp = "/"
	}
	c.mu.RLock()
	s, ok := c.sockets[nsp]
	c.mu.RUnlock()
	if !ok {
		return
	}
	switch pkt.Type {
	case PacketTypeConnect:
		s.handleInboundConnect(pkt)
	case PacketTypeDisconnect:
		s.handleInboundDisconnect()
	case PacketTypeEvent, PacketTypeBinaryEvent:
		s.handleInboundEvent(pkt)
	case PacketTypeAck, PacketTypeBinaryAck:
		s.handleInboundAck(pkt)
	case PacketTypeConnectError:
		s.handleInboundConnectError(pkt)
	}
}

func (c *Client) fireSocketOpen(nsp string) {
	c.listenersMu.Lock()
	fn := c.onSocketOpenFn
	c.listenersMu.Unlock()
	if fn != nil {
		fn(nsp)
	}
}

func (c *Client) fireSocketClose(nsp string) {
	c.listenersMu.Lock()
	fn := c.onSocketCloseFn
	c.listenersMu.Unlock()
	if fn != nil {
		fn(nsp)
	}
}

func (c *Client) fireReconnecting() {
	c.listenersMu.Lock()
	fn := c.onReconnectingFn
	c.listenersMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) fireReconnect(attempt int, delay time.Duration) {
	c.listenersMu.Lock()
	fn := c.onReconnectFn
	c.listenersMu.Unlock()
	if fn != nil {
		fn(attempt, delay)
	}
}

func (c *Client) fireFail(kind engine.ErrorKind, err error) {
	c.listenersMu.Lock()
	fn := c.onFailFn
	c.listenersMu.Unlock()
	if fn != nil {
		fn(kind, err)
	}
}

// classifyDialError maps an initial-dial error to an engine.ErrorKind for
// the fail listener, per spec.md §7's error taxonomy. Grounded on no single
// teacher file (the teacher never classified dial errors); derived from
// gorilla/websocket's documented error surface (x509 verification errors,
// net.Error.Timeout, and its own ErrBadHandshake for non-101 responses).
func classifyDialError(err error) engine.ErrorKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return engine.ErrorTimeout
	}
	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return engine.ErrorSSL
	}
	if errors.Is(err, websocket.ErrBadHandshake) {
		return engine.ErrorTransportOpenFailed
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return engine.ErrorNetworkFailure
	}
	return engine.ErrorUnknown
}
