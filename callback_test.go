package socketio

import (
	"testing"
	"time"
)

func TestAckTableTakeOnce(t *testing.T) {
	table := newAckTable()
	var got MessageList
	table.store(1, func(msgs MessageList, err error) { got = msgs }, nil)

	e, ok := table.take(1)
	if !ok {
		t.Fatal("expected entry")
	}
	e.fn(MessageList{NewString("pong")}, nil)
	if got.Len() != 1 {
		t.Fatalf("callback not invoked with expected args")
	}

	if _, ok := table.take(1); ok {
		t.Fatal("expected second take to report entry already removed")
	}
}

func TestAckTableRemovalRaceFirstWins(t *testing.T) {
	table := newAckTable()
	timer := time.NewTimer(time.Hour)
	table.store(2, func(MessageList, error) {}, timer)

	// Simulate the ack arriving first...
	e1, ok1 := table.take(2)
	// ...and a timeout firing concurrently; it must see the entry gone.
	_, ok2 := table.take(2)

	if !ok1 {
		t.Fatal("first take should have found the entry")
	}
	if ok2 {
		t.Fatal("second take should report no entry (already removed)")
	}
	stopTimer(e1.timer)
}

func TestAckTableDrain(t *testing.T) {
	table := newAckTable()
	table.store(1, func(MessageList, error) {}, nil)
	table.store(2, func(MessageList, error) {}, nil)
	entries := table.drain()
	if len(entries) != 2 {
		t.Fatalf("expected 2 drained entries, got %d", len(entries))
	}
	if _, ok := table.take(1); ok {
		t.Fatal("expected table empty after drain")
	}
}

func TestAckTableUnknownIDIgnored(t *testing.T) {
	table := newAckTable()
	if _, ok := table.take(999); ok {
		t.Fatal("expected no entry for unknown id")
	}
}
