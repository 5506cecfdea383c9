package socketio

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Message.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBinary
	KindArray
	KindObject
)

// String returns the name of the kind, mirroring the PacketType/MessageType
// String() convention used throughout the engine package.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "invalid"
}

// Message is a dynamically-typed JSON-like tree with a binary variant. It is
// the exclusive bridge between user-facing event arguments and the packet
// codec: every argument emitted or received by a Socket is a Message.
//
// A Message is immutable once constructed; the zero value is KindNull.
type Message struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	bin    []byte
	arr    []Message
	obj    map[string]Message
	objKey []string // preserves insertion order for encoding
}

// NewNull returns the null Message.
func NewNull() Message { return Message{kind: KindNull} }

// NewBool wraps a bool.
func NewBool(v bool) Message { return Message{kind: KindBool, b: v} }

// NewInt wraps a signed 64-bit integer.
func NewInt(v int64) Message { return Message{kind: KindInt, i: v} }

// NewFloat wraps a double.
func NewFloat(v float64) Message { return Message{kind: KindFloat, f: v} }

// NewString wraps a UTF-8 string.
func NewString(v string) Message { return Message{kind: KindString, s: v} }

// NewBinary wraps an immutable byte sequence. The slice is copied so the
// Message remains safe to retain after the caller mutates its buffer.
func NewBinary(v []byte) Message {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Message{kind: KindBinary, bin: cp}
}

// NewArray wraps an ordered sequence of Message.
func NewArray(v ...Message) Message {
	arr := make([]Message, len(v))
	copy(arr, v)
	return Message{kind: KindArray, arr: arr}
}

// NewObject starts an object Message: keys are added with Set and the
// Message is produced by Build (insertion order is preserved for encoding,
// though spec.md does not require it for equality).
func NewObject() *ObjectBuilder {
	return &ObjectBuilder{m: map[string]Message{}}
}

// ObjectBuilder constructs an object Message key by key.
type ObjectBuilder struct {
	m    map[string]Message
	keys []string
}

// Set assigns key to v, appending key to the insertion order on first use.
func (b *ObjectBuilder) Set(key string, v Message) *ObjectBuilder {
	if _, ok := b.m[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.m[key] = v
	return b
}

// Build finalizes the object Message.
func (b *ObjectBuilder) Build() Message {
	keys := make([]string, len(b.keys))
	copy(keys, b.keys)
	obj := make(map[string]Message, len(b.m))
	for k, v := range b.m {
		obj[k] = v
	}
	return Message{kind: KindObject, obj: obj, objKey: keys}
}

// Kind reports the variant held.
func (m Message) Kind() Kind { return m.kind }

func (m Message) IsNull() bool { return m.kind == KindNull }

// Bool returns the wrapped bool and whether m held one.
func (m Message) Bool() (bool, bool) { return m.b, m.kind == KindBool }

// Int returns the wrapped integer and whether m held one.
func (m Message) Int() (int64, bool) { return m.i, m.kind == KindInt }

// Float returns the wrapped double and whether m held one.
func (m Message) Float() (float64, bool) { return m.f, m.kind == KindFloat }

// String returns the wrapped string and whether m held one.
func (m Message) String() (string, bool) { return m.s, m.kind == KindString }

// Binary returns the wrapped bytes and whether m held any.
func (m Message) Binary() ([]byte, bool) {
	if m.kind != KindBinary {
		return nil, false
	}
	cp := make([]byte, len(m.bin))
	copy(cp, m.bin)
	return cp, true
}

// Array returns the wrapped elements and whether m held an array.
func (m Message) Array() ([]Message, bool) {
	if m.kind != KindArray {
		return nil, false
	}
	cp := make([]Message, len(m.arr))
	copy(cp, m.arr)
	return cp, true
}

// ObjectGet looks up key in an object Message.
func (m Message) ObjectGet(key string) (Message, bool) {
	if m.kind != KindObject {
		return Message{}, false
	}
	v, ok := m.obj[key]
	return v, ok
}

// ObjectKeys returns the keys of an object Message in insertion order.
func (m Message) ObjectKeys() []string {
	if m.kind != KindObject {
		return nil
	}
	keys := make([]string, len(m.objKey))
	copy(keys, m.objKey)
	return keys
}

// Equal performs a deep, structure- and value-preserving comparison. Float
// comparisons tolerate a 1e-12 relative difference, matching spec.md §8's
// round-trip invariant.
func (m Message) Equal(other Message) bool {
	if m.kind != other.kind {
		return false
	}
	switch m.kind {
	case KindNull:
		return true
	case KindBool:
		return m.b == other.b
	case KindInt:
		return m.i == other.i
	case KindFloat:
		return floatEqual(m.f, other.f)
	case KindString:
		return m.s == other.s
	case KindBinary:
		return string(m.bin) == string(other.bin)
	case KindArray:
		if len(m.arr) != len(other.arr) {
			return false
		}
		for i := range m.arr {
			if !m.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(m.obj) != len(other.obj) {
			return false
		}
		for k, v := range m.obj {
			ov, ok := other.obj[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

func floatEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	denom := a
	if denom < 0 {
		denom = -denom
	}
	if denom == 0 {
		return diff < 1e-12
	}
	return diff/denom <= 1e-12
}

// GoString renders a debug form; handy in test failure messages.
func (m Message) GoString() string {
	switch m.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(m.b)
	case KindInt:
		return strconv.FormatInt(m.i, 10)
	case KindFloat:
		return strconv.FormatFloat(m.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(m.s)
	case KindBinary:
		return fmt.Sprintf("binary(%d)", len(m.bin))
	case KindArray:
		return fmt.Sprintf("array(%d)", len(m.arr))
	case KindObject:
		keys := m.ObjectKeys()
		sort.Strings(keys)
		return fmt.Sprintf("object%v", keys)
	}
	return "?"
}

// MessageList is an ordered sequence of Message, used as the argument vector
// of an event.
type MessageList []Message

// Push appends m to the list.
func (l *MessageList) Push(m Message) { *l = append(*l, m) }

// Len reports the number of elements.
func (l MessageList) Len() int { return len(l) }

// ToArrayMessage yields an array Message whose first element is event (if
// non-empty) followed by the list elements. This is the exclusive bridge
// between user-facing event emission and the wire representation: every
// outbound event packet is built by calling this on its argument list.
func (l MessageList) ToArrayMessage(event string) Message {
	elems := make([]Message, 0, len(l)+1)
	if event != "" {
		elems = append(elems, NewString(event))
	}
	elems = append(elems, l...)
	return NewArray(elems...)
}
