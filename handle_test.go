package socketio

import "testing"

func TestEventHandlersDispatchNamedAndCatchAll(t *testing.T) {
	h := newEventHandlers()
	var order []string
	h.On("chat", func(e *Event) { order = append(order, "named") })
	h.OnAny(func(e *Event) { order = append(order, "catchall") })

	h.dispatch(&Event{Name: "chat"})

	if len(order) != 2 || order[0] != "named" || order[1] != "catchall" {
		t.Fatalf("expected named then catchall, got %v", order)
	}
}

func TestEventHandlersReplaceNotAccumulate(t *testing.T) {
	h := newEventHandlers()
	calls := 0
	h.On("chat", func(e *Event) { calls++ })
	h.On("chat", func(e *Event) { calls += 10 })

	h.dispatch(&Event{Name: "chat"})

	if calls != 10 {
		t.Fatalf("expected single replacing binding to fire once, got calls=%d", calls)
	}
}

func TestEventHandlersClearWithNil(t *testing.T) {
	h := newEventHandlers()
	h.On("chat", func(e *Event) { t.Fatal("should not fire") })
	h.On("chat", nil)
	h.dispatch(&Event{Name: "chat"})
}

func TestEventAckNoOpWithoutNeedAck(t *testing.T) {
	e := &Event{Name: "chat"}
	e.Ack(NewString("pong")) // must not panic even with no ack func
}

func TestEventAckInvokesOnce(t *testing.T) {
	var got MessageList
	calls := 0
	e := &Event{Name: "chat", NeedAck: true, ack: func(msgs MessageList) {
		calls++
		got = msgs
	}}
	e.Ack(NewString("pong"))
	e.Ack(NewString("again")) // second call is a no-op

	if calls != 1 {
		t.Fatalf("expected ack invoked exactly once, got %d", calls)
	}
	if got.Len() != 1 {
		t.Fatalf("unexpected ack payload %v", got)
	}
}
