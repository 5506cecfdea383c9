package engine

// FrameType is the Engine.IO transport-framing frame digit (spec.md §3,
// §6). Named FrameType here (the teacher calls it PacketType) to keep it
// unambiguous next to the root package's Socket.IO-level PacketType, since
// this client layers Socket.IO packets inside Engine.IO "message" frames.
type FrameType byte

const (
	FrameTypeOpen FrameType = iota
	FrameTypeClose
	FrameTypePing
	FrameTypePong
	FrameTypeMessage
	FrameTypeUpgrade
	FrameTypeNoop
)

// String returns the wire name of the frame type.
func (f FrameType) String() string {
	switch f {
	case FrameTypeOpen:
		return "open"
	case FrameTypeClose:
		return "close"
	case FrameTypePing:
		return "ping"
	case FrameTypePong:
		return "pong"
	case FrameTypeMessage:
		return "message"
	case FrameTypeUpgrade:
		return "upgrade"
	case FrameTypeNoop:
		return "noop"
	}
	return "invalid"
}

func (f FrameType) valid() bool { return f <= FrameTypeNoop }

// Parameters describes the Engine.IO connection attributes sent by the
// server in the OPEN frame upon handshake (spec.md §4.D).
type Parameters struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
}

// MessageType indicates the transport-level framing of an Engine.IO
// message: text or binary.
type MessageType byte

const (
	MessageTypeString MessageType = iota
	MessageTypeBinary
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeString:
		return "string"
	case MessageTypeBinary:
		return "binary"
	}
	return "invalid"
}

const (
	queryTransport = "transport"
	querySession   = "sid"
	queryEIO       = "EIO"
	queryTimestamp = "t"

	// Version is the Engine.IO protocol version this client speaks.
	// spec.md mandates EIO v4 (the teacher's engine package targets v3;
	// this is a protocol-version value change, not a structural one).
	Version = "4"

	defaultPingInterval = 25000
	defaultPingTimeout  = 60000
)

// Packet is the internal transport-level unit exchanged between the
// websocket connection and the Engine. Unlike the root package's Packet
// (which carries a typed Message payload), this one is a thin byte
// envelope: the Engine hands raw bytes up to/down from the Socket.IO codec
// without interpreting them.
type Packet struct {
	msgType MessageType
	ftype   FrameType
	data    []byte
}

// IsBinary reports whether the frame arrived as a binary WebSocket frame.
func (p *Packet) IsBinary() bool { return p.msgType == MessageTypeBinary }

// FrameType returns the Engine.IO frame digit.
func (p *Packet) FrameType() FrameType { return p.ftype }

// Data returns the frame body: for a text frame, the bytes after the frame
// digit; for a binary frame, the attachment bytes verbatim.
func (p *Packet) Data() []byte { return p.data }

// Frame is one outbound WebSocket frame as seen from outside the engine
// package: either the Socket.IO textual header (Binary=false) or a binary
// attachment (Binary=true). Send takes a slice of these so a multi-frame
// packet (header plus attachments) reaches the wire as a contiguous run,
// preserving submission order across concurrent callers (spec.md §5).
type Frame struct {
	Binary bool
	Data   []byte
}
