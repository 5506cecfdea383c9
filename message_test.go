package socketio

import (
	"testing"
)

func TestMessageRoundTripNoBinary(t *testing.T) {
	obj := NewObject().Set("a", NewInt(1)).Set("b", NewString("x")).Build()
	cases := []Message{
		NewNull(),
		NewBool(true),
		NewInt(-42),
		NewFloat(3.14159265358979),
		NewString("hello \"world\"\n"),
		NewArray(NewInt(1), NewInt(2), NewString("three")),
		obj,
	}
	for _, m := range cases {
		text, attachments, err := encodeMessageJSON(m)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if len(attachments) != 0 {
			t.Fatalf("unexpected attachments for %#v", m)
		}
		got, err := decodeMessage(text)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = resolveAttachments(got, nil)
		if !got.Equal(m) {
			t.Errorf("round trip mismatch: got %#v want %#v", got, m)
		}
	}
}

func TestMessageRoundTripWithBinary(t *testing.T) {
	bin := NewBinary([]byte{0x01, 0x02, 0x03})
	m := NewArray(NewString("upload"), NewObject().Set("file", bin).Build())
	text, attachments, err := encodeMessageJSON(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(attachments))
	}
	decoded, err := decodeMessage(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := resolveAttachments(decoded, attachments)
	if !got.Equal(m) {
		t.Errorf("round trip with binary mismatch: got %#v want %#v", got, m)
	}
}

func TestMessagePlaceholderOutOfRangeDecodesNull(t *testing.T) {
	text := []byte(`{"_placeholder":true,"num":5}`)
	decoded, err := decodeMessage(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := resolveAttachments(decoded, nil)
	if !got.IsNull() {
		t.Errorf("expected null for out-of-range placeholder, got %#v", got)
	}
}

func TestMessageListToArrayMessage(t *testing.T) {
	var list MessageList
	list.Push(NewString("hello"))
	list.Push(NewInt(42))
	arr := list.ToArrayMessage("chat")
	elems, ok := arr.Array()
	if !ok || len(elems) != 3 {
		t.Fatalf("expected 3-element array, got %#v", arr)
	}
	name, _ := elems[0].String()
	if name != "chat" {
		t.Errorf("expected event name first, got %q", name)
	}
}

func TestMessageListToArrayMessageNoEventName(t *testing.T) {
	var list MessageList
	list.Push(NewInt(1))
	arr := list.ToArrayMessage("")
	elems, _ := arr.Array()
	if len(elems) != 1 {
		t.Fatalf("expected 1-element array, got %#v", arr)
	}
}
