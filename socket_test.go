package socketio

import (
	"testing"
	"time"
)

func TestSocketEmitQueuesWhileDisconnected(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")

	if err := s.Emit("greet", NewString("hi")); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	s.mu.Lock()
	n := len(s.queue)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 queued packet, got %d", n)
	}
}

func TestSocketNamespaceNormalization(t *testing.T) {
	c := NewClient()
	if got := c.Socket("").Namespace(); got != "/" {
		t.Errorf("Socket(\"\").Namespace() = %q, want /", got)
	}
	if got := c.Socket("chat").Namespace(); got != "/chat" {
		t.Errorf("Socket(\"chat\").Namespace() = %q, want /chat", got)
	}
	if got := c.Socket("/chat").Namespace(); got != "/chat" {
		t.Errorf("Socket(\"/chat\").Namespace() = %q, want /chat", got)
	}
}

func TestSocketLookupIsStable(t *testing.T) {
	c := NewClient()
	a := c.Socket("/chat")
	b := c.Socket("/chat")
	if a != b {
		t.Fatal("expected repeated Socket() lookups to return the same instance")
	}
}

func TestSocketHandleInboundConnectFlushesQueueAndFiresOpen(t *testing.T) {
	c := NewClient()
	var opened string
	c.OnSocketOpen(func(nsp string) { opened = nsp })

	s := c.Socket("/chat")
	_ = s.Emit("queued", NewInt(1))

	connectPkt := &Packet{Type: PacketTypeConnect, Namespace: "/chat"}
	*connectPkt = connectPkt.WithPayload(NewObject().Set("sid", NewString("abc")).Build())
	s.handleInboundConnect(connectPkt)

	if !s.Connected() {
		t.Fatal("expected socket to be connected after inbound connect")
	}
	if s.SID() != "abc" {
		t.Errorf("SID() = %q, want abc", s.SID())
	}
	if opened != "/chat" {
		t.Errorf("expected socket-open listener to fire with /chat, got %q", opened)
	}
	s.mu.Lock()
	n := len(s.queue)
	s.mu.Unlock()
	if n != 0 {
		t.Errorf("expected queue drained, got %d remaining", n)
	}
}

func TestSocketHandleInboundEventDispatchesAndTracksAck(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")

	var got string
	var needAck bool
	s.On("greet", func(evt *Event) {
		got, _ = evt.Messages[0].String()
		needAck = evt.NeedAck
		evt.Ack(NewString("ok"))
	})

	id := uint64(7)
	pkt := &Packet{Type: PacketTypeEvent, Namespace: "/chat", ID: &id}
	*pkt = pkt.WithPayload(MessageList{NewString("hi")}.ToArrayMessage("greet"))
	s.handleInboundEvent(pkt)

	if got != "hi" {
		t.Errorf("handler saw %q, want hi", got)
	}
	if !needAck {
		t.Error("expected NeedAck true when packet carries an id")
	}
	if s.PacketsReceived() != 1 {
		t.Errorf("PacketsReceived() = %d, want 1", s.PacketsReceived())
	}
}

func TestSocketEmitWithAckTimesOut(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")

	done := make(chan error, 1)
	err := s.EmitWithAck("ping", nil, 10*time.Millisecond, func(msgs MessageList, err error) {
		done <- err
	})
	if err != nil {
		t.Fatalf("EmitWithAck: %v", err)
	}

	select {
	case err := <-done:
		if err != ErrAckTimeout {
			t.Fatalf("expected ErrAckTimeout, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ack timeout callback")
	}
}

func TestSocketHandleInboundAckDeliversToWaitingCallback(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")

	id := uint64(42)
	delivered := false
	s.armAck(id, func(msgs MessageList, err error) {
		delivered = true
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if msgs.Len() != 1 {
			t.Errorf("expected 1 ack message, got %d", msgs.Len())
		}
	}, 0)

	ackPkt := &Packet{Type: PacketTypeAck, Namespace: "/chat", ID: &id}
	*ackPkt = ackPkt.WithPayload(NewArray(NewString("pong")))
	s.handleInboundAck(ackPkt)
	if !delivered {
		t.Error("expected the ack callback to be invoked")
	}
}

func TestSocketCloseWhenNotConnectedTearsDownImmediately(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	c.mu.RLock()
	_, stillRegistered := c.sockets["/chat"]
	c.mu.RUnlock()
	if stillRegistered {
		t.Error("expected socket removed from client registry after Close")
	}
}

func TestSocketCloseWhenConnectedArmsGraceTimer(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")
	connectPkt := &Packet{Type: PacketTypeConnect, Namespace: "/chat"}
	s.handleInboundConnect(connectPkt)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s.mu.Lock()
	armed := s.closeTimer != nil
	s.mu.Unlock()
	if !armed {
		t.Error("expected grace timer armed after Close on a connected socket")
	}
	s.teardown() // avoid leaking the 3s timer past the test
}

func TestSocketOnConnectTimeoutTearsDownIfStillDisconnected(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")
	s.connectToEngine() // arms the connect timer

	s.onConnectTimeout()

	c.mu.RLock()
	_, stillRegistered := c.sockets["/chat"]
	c.mu.RUnlock()
	if stillRegistered {
		t.Error("expected socket removed after connect timeout")
	}
}

func TestSocketOnConnectTimeoutNoopIfAlreadyConnected(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")
	s.connectToEngine()
	s.handleInboundConnect(&Packet{Type: PacketTypeConnect, Namespace: "/chat"})

	s.onConnectTimeout()

	if !s.Connected() {
		t.Error("expected a connected socket to stay connected across a stale timeout firing")
	}
}

func TestSocketMarkTransportLostQueuesFutureEmits(t *testing.T) {
	c := NewClient()
	s := c.Socket("/chat")
	s.handleInboundConnect(&Packet{Type: PacketTypeConnect, Namespace: "/chat"})

	s.markTransportLost()
	if s.Connected() {
		t.Error("expected Connected() false after markTransportLost")
	}

	_ = s.Emit("x", NewInt(1))
	s.mu.Lock()
	n := len(s.queue)
	s.mu.Unlock()
	if n != 1 {
		t.Errorf("expected the emit to queue during a transient transport loss, got %d queued", n)
	}
}
