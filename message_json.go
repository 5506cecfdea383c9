package socketio

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"
)

// encodeMessageJSON serializes m to JSON text, returning any binary leaves
// collected along the way as a separate attachment list.
func encodeMessageJSON(m Message) ([]byte, [][]byte, error) {
	var buf bytes.Buffer
	var attachments [][]byte
	if err := marshalMessage(&buf, m, &attachments); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), attachments, nil
}

// marshalMessage serializes m to JSON, side-effect-collecting every binary
// leaf into *attachments and substituting a placeholder object in its place.
// Grounded on parser_default.go's defaultEncoder.preprocess, generalized
// from a single top-level []interface{} scan to a recursive tree walk since
// Message (unlike the teacher's interface{} payload) can nest binaries
// arbitrarily deep inside arrays and objects.
func marshalMessage(buf *bytes.Buffer, m Message, attachments *[][]byte) error {
	switch m.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if m.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(m.i, 10))
	case KindFloat:
		buf.WriteString(strconv.FormatFloat(m.f, 'g', 15, 64))
	case KindString:
		writeJSONString(buf, m.s)
	case KindBinary:
		num := len(*attachments)
		*attachments = append(*attachments, m.bin)
		fmt.Fprintf(buf, `{"_placeholder":true,"num":%d}`, num)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range m.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalMessage(buf, e, attachments); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		keys := m.objKey
		if len(keys) != len(m.obj) {
			keys = m.ObjectKeys()
			sort.Strings(keys)
		}
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, k)
			buf.WriteByte(':')
			if err := marshalMessage(buf, m.obj[k], attachments); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("socketio: unknown message kind %d", m.kind)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else if r == utf8.RuneError {
				buf.WriteRune(r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// placeholderNum extracts the "num" field from a decoded placeholder object,
// returning ok=false if m isn't of placeholder shape.
func placeholderNum(m Message) (int, bool) {
	if m.kind != KindObject {
		return 0, false
	}
	flag, ok := m.ObjectGet("_placeholder")
	if !ok {
		return 0, false
	}
	if b, isBool := flag.Bool(); !isBool || !b {
		return 0, false
	}
	numMsg, ok := m.ObjectGet("num")
	if !ok {
		return 0, false
	}
	n, isInt := numMsg.Int()
	if !isInt {
		if f, isFloat := numMsg.Float(); isFloat {
			return int(f), true
		}
		return 0, false
	}
	return int(n), true
}

// resolveAttachments walks a decoded Message tree, replacing every
// placeholder object with the corresponding attachment. A placeholder whose
// num is out of range resolves to a null Message rather than panicking, per
// spec.md §8's boundary case.
func resolveAttachments(m Message, attachments [][]byte) Message {
	if n, ok := placeholderNum(m); ok {
		if n < 0 || n >= len(attachments) {
			return NewNull()
		}
		return NewBinary(attachments[n])
	}
	switch m.kind {
	case KindArray:
		out := make([]Message, len(m.arr))
		for i, e := range m.arr {
			out[i] = resolveAttachments(e, attachments)
		}
		return NewArray(out...)
	case KindObject:
		b := NewObject()
		for _, k := range m.ObjectKeys() {
			v, _ := m.ObjectGet(k)
			b.Set(k, resolveAttachments(v, attachments))
		}
		return b.Build()
	default:
		return m
	}
}
