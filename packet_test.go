package socketio

import (
	"bytes"
	"testing"
)

func TestEncodePacketHeaderOnly(t *testing.T) {
	p := &Packet{Type: PacketTypeConnect, Namespace: "/"}
	text, attachments, err := encodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(attachments) != 0 {
		t.Fatalf("unexpected attachments")
	}
	if string(text) != "0" {
		t.Errorf("got %q, want %q", text, "0")
	}
}

func TestEncodePacketTextEvent(t *testing.T) {
	var args MessageList
	args.Push(NewString("hello"))
	args.Push(NewInt(42))
	p := &Packet{Type: PacketTypeEvent, Namespace: "/"}
	*p = p.WithPayload(args.ToArrayMessage("chat"))
	text, attachments, err := encodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(attachments) != 0 {
		t.Fatalf("unexpected attachments")
	}
	want := `2["chat","hello",42]`
	if string(text) != want {
		t.Errorf("got %q, want %q", text, want)
	}
}

func TestEncodePacketBinaryAttachment(t *testing.T) {
	bin := NewBinary([]byte{0x01, 0x02, 0x03})
	payload := NewArray(NewString("upload"), NewObject().Set("file", bin).Build())
	p := &Packet{Type: PacketTypeEvent, Namespace: "/"}
	*p = p.WithPayload(payload)
	text, attachments, err := encodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(attachments) != 1 || !bytes.Equal(attachments[0], []byte{1, 2, 3}) {
		t.Fatalf("unexpected attachments: %v", attachments)
	}
	want := `51-["upload",{"file":{"_placeholder":true,"num":0}}]`
	if string(text) != want {
		t.Errorf("got %q, want %q", text, want)
	}
}

func TestDecodeTextFrameEventNoAttachments(t *testing.T) {
	d := newDecoder()
	p, err := d.FeedText([]byte(`2["echo","hello",42]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p == nil {
		t.Fatal("expected immediate packet, got nil (still awaiting attachments?)")
	}
	if p.Type != PacketTypeEvent || p.Namespace != "/" {
		t.Errorf("got type=%v nsp=%q", p.Type, p.Namespace)
	}
	elems, ok := p.Payload.Array()
	if !ok || len(elems) != 3 {
		t.Fatalf("unexpected payload %#v", p.Payload)
	}
}

func TestDecodeBinaryReassembly(t *testing.T) {
	d := newDecoder()
	p, err := d.FeedText([]byte(`51-["upload",{"file":{"_placeholder":true,"num":0}}]`))
	if err != nil {
		t.Fatalf("decode text: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil while awaiting attachment, got %#v", p)
	}
	p, err = d.FeedBinary([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("decode binary: %v", err)
	}
	if p == nil {
		t.Fatal("expected completed packet after last attachment")
	}
	elems, _ := p.Payload.Array()
	fileObj := elems[1]
	fileVal, ok := fileObj.ObjectGet("file")
	if !ok {
		t.Fatalf("missing file key in %#v", fileObj)
	}
	bin, ok := fileVal.Binary()
	if !ok || !bytes.Equal(bin, []byte{1, 2, 3}) {
		t.Errorf("got %#v, want binary [1 2 3]", fileVal)
	}
}

func TestDecodeOutOfSequenceBinaryDiscardsPartial(t *testing.T) {
	d := newDecoder()
	if _, err := d.FeedText([]byte(`51-["a",{"_placeholder":true,"num":0}]`)); err != nil {
		t.Fatalf("decode text: %v", err)
	}
	// A fresh text frame arrives before the attachment: reassembly resets.
	p, err := d.FeedText([]byte(`2["b"]`))
	if err != nil {
		t.Fatalf("decode second text: %v", err)
	}
	if p == nil {
		t.Fatal("expected immediate packet for non-binary frame")
	}
	// The stale attachment that never arrived must not complete anything.
	if _, err := d.FeedBinary([]byte{9}); err == nil {
		t.Fatal("expected error feeding binary with no partial packet")
	}
}

func TestEncodeHeaderOrdering(t *testing.T) {
	id := newAckID(17)
	p := &Packet{Type: PacketTypeEvent, Namespace: "/admin", ID: id}
	var list MessageList
	list.Push(NewString("ping"))
	*p = p.WithPayload(list.ToArrayMessage(""))
	text, _, err := encodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `2/admin,17["ping"]`
	if string(text) != want {
		t.Errorf("got %q, want %q", text, want)
	}
}

func TestDecodeMalformedDropsSafely(t *testing.T) {
	d := newDecoder()
	if _, err := d.FeedText([]byte(`9garbage`)); err == nil {
		t.Fatal("expected error for out-of-range type digit")
	}
	// decoder must still work after a malformed frame
	p, err := d.FeedText([]byte(`2["ok"]`))
	if err != nil || p == nil {
		t.Fatalf("decoder did not recover: p=%v err=%v", p, err)
	}
}
