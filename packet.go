package socketio

import "fmt"

// PacketType is the Socket.IO-level packet type: the digit following the
// Engine.IO "message" frame digit on the wire. Named to match the teacher's
// PacketType enum (packet.go, parser_default.go), generalized from an
// interface{}-typed Data field to the typed Packet below.
type PacketType byte

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeConnectError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck
)

// String returns the wire name of the packet type.
func (t PacketType) String() string {
	switch t {
	case PacketTypeConnect:
		return "connect"
	case PacketTypeDisconnect:
		return "disconnect"
	case PacketTypeEvent:
		return "event"
	case PacketTypeAck:
		return "ack"
	case PacketTypeConnectError:
		return "connect_error"
	case PacketTypeBinaryEvent:
		return "binary_event"
	case PacketTypeBinaryAck:
		return "binary_ack"
	}
	return "invalid"
}

func (t PacketType) valid() bool { return t <= PacketTypeBinaryAck }

func (t PacketType) isBinary() bool {
	return t == PacketTypeBinaryEvent || t == PacketTypeBinaryAck
}

// Packet is a decoded Socket.IO-level unit. It assumes the enclosing
// Engine.IO "message" frame digit has already been stripped by the engine
// package; Namespace defaults to "/" and ID is present exactly when the
// packet expects or carries an acknowledgement, per spec.md §3.
type Packet struct {
	Type        PacketType
	Namespace   string
	ID          *uint64
	Payload     Message
	Attachments [][]byte

	// hasPayload distinguishes "no payload at all" (header-only packet,
	// e.g. a bare connect/disconnect) from an explicit null Payload.
	hasPayload bool
}

// WithPayload returns a copy of p carrying the given payload Message.
func (p Packet) WithPayload(m Message) Packet {
	p.Payload = m
	p.hasPayload = true
	return p
}

// ErrUnknownPacket is returned by decode paths unable to recognize a
// textual header; callers must drop the packet rather than propagate this
// as fatal, per spec.md §4.B/§7.
var ErrUnknownPacket = fmt.Errorf("socketio: unknown packet")

func newAckID(id uint64) *uint64 {
	v := new(uint64)
	*v = id
	return v
}
