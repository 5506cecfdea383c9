package socketio

import (
	"bytes"
	"fmt"
	"strconv"
)

// encodePacket serialises p to its textual header plus any binary
// attachments, in the wire order spec.md §4.B/§6 mandates:
// <frame digit is added by the engine package><type><|attachments|-><nsp,><id><json>
// The type is promoted event->binary_event / ack->binary_ack whenever the
// payload contains at least one binary leaf, mirroring the teacher's
// defaultEncoder.preprocess (parser_default.go).
func encodePacket(p *Packet) (text []byte, attachments [][]byte, err error) {
	body, bins, err := encodeMessageJSON(p.Payload)
	if err != nil {
		return nil, nil, err
	}
	typ := p.Type
	if len(bins) > 0 {
		switch typ {
		case PacketTypeEvent:
			typ = PacketTypeBinaryEvent
		case PacketTypeAck:
			typ = PacketTypeBinaryAck
		}
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(typ) + '0')
	if typ.isBinary() {
		buf.WriteString(strconv.Itoa(len(bins)))
		buf.WriteByte('-')
	}
	if p.Namespace != "" && p.Namespace != "/" {
		buf.WriteString(p.Namespace)
		buf.WriteByte(',')
	}
	if p.ID != nil {
		buf.WriteString(strconv.FormatUint(*p.ID, 10))
	}
	if p.hasPayload {
		buf.Write(body)
	}
	return buf.Bytes(), bins, nil
}

// decoder is the stateful two-level framer described in spec.md §4.B. A text
// frame resets scratch state and either completes immediately (no
// attachments) or parks the partial packet awaiting exactly Attachments
// binary frames; each subsequent binary frame is appended until the last
// one arrives, at which point the parked JSON is parsed using the
// attachments and the packet is emitted. Any frame received out of this
// sequence discards the partial and is parsed as a new text frame.
//
// Grounded on the teacher's defaultDecoder (parser_default.go), generalized
// from a buffered output channel to a synchronous FeedText/FeedBinary pair (the
// engine package already serializes frame delivery on its executor, so a
// channel hop here would just be unneeded buffering).
type decoder struct {
	partial      *Packet
	partialJSON  []byte
	wantBinaries int
}

func newDecoder() *decoder { return &decoder{} }

// FeedText resets reassembly state and parses a new text frame. It returns
// a completed Packet when the header declares zero attachments, or nil
// while attachments are pending. Malformed input is reported via err and
// never panics; callers must drop the frame and continue, per spec.md §7.
func (d *decoder) FeedText(s []byte) (*Packet, error) {
	d.partial = nil
	d.partialJSON = nil
	d.wantBinaries = 0

	p, jsonBody, attachmentCount, err := decodeHeader(s)
	if err != nil {
		return nil, err
	}
	if attachmentCount == 0 {
		if len(jsonBody) > 0 {
			msg, err := decodeMessage(jsonBody)
			if err != nil {
				return nil, err
			}
			p.Payload = msg
			p.hasPayload = true
		}
		return p, nil
	}
	d.partial = p
	d.partialJSON = jsonBody
	d.wantBinaries = attachmentCount
	return nil, nil
}

// FeedBinary appends a binary attachment frame to the packet parked by the
// most recent FeedText call. It returns the completed Packet once the last
// expected attachment has arrived. A binary frame arriving with no partial
// packet in flight is a protocol violation reported via err; the caller
// drops it and the reassembly state is already clear.
func (d *decoder) FeedBinary(b []byte) (*Packet, error) {
	if d.partial == nil {
		return nil, ErrUnknownPacket
	}
	d.partial.Attachments = append(d.partial.Attachments, b)
	d.wantBinaries--
	if d.wantBinaries > 0 {
		return nil, nil
	}
	p := d.partial
	jsonBody := d.partialJSON
	d.partial = nil
	d.partialJSON = nil
	if len(jsonBody) > 0 {
		decoded, err := decodeMessage(jsonBody)
		if err != nil {
			return nil, err
		}
		p.Payload = resolveAttachments(decoded, p.Attachments)
		p.hasPayload = true
	}
	return p, nil
}

// decodeHeader parses the textual header (frame digit already stripped by
// the engine package) and returns the packet shell, the raw JSON body (if
// any), and the declared attachment count.
func decodeHeader(s []byte) (p *Packet, jsonBody []byte, attachments int, err error) {
	if len(s) < 1 {
		return nil, nil, 0, ErrUnknownPacket
	}
	typ := PacketType(s[0] - '0')
	if !typ.valid() {
		return nil, nil, 0, ErrUnknownPacket
	}
	p = &Packet{Type: typ, Namespace: "/"}
	i := 1

	if typ.isBinary() {
		j := i
		for ; j < len(s); j++ {
			if s[j] == '-' {
				break
			}
			if s[j] < '0' || s[j] > '9' {
				return nil, nil, 0, ErrUnknownPacket
			}
			attachments = attachments*10 + int(s[j]-'0')
		}
		if j >= len(s) {
			return nil, nil, 0, ErrUnknownPacket
		}
		i = j + 1
	}

	if i < len(s) && s[i] == '/' {
		j := i + 1
		for ; j < len(s); j++ {
			if s[j] == ',' {
				break
			}
		}
		p.Namespace = string(s[i:j])
		i = j
		if i < len(s) && s[i] == ',' {
			i++
		}
	}

	if i < len(s) && s[i] >= '0' && s[i] <= '9' {
		j := i
		var id uint64
		for ; j < len(s); j++ {
			if s[j] < '0' || s[j] > '9' {
				break
			}
			id = id*10 + uint64(s[j]-'0')
		}
		p.ID = newAckID(id)
		i = j
	}

	if i < len(s) {
		if s[i] != '"' && s[i] != '[' && s[i] != '{' {
			return nil, nil, 0, fmt.Errorf("socketio: malformed payload start %q", s[i])
		}
		jsonBody = s[i:]
	}
	return p, jsonBody, attachments, nil
}
