package socketio

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeMessage parses JSON bytes into a Message tree. Decoding itself is
// delegated to encoding/json (spec.md §1 names "the JSON parser used for
// payload bodies" as an external collaborator); this function only maps the
// decoder's generic Go values onto our tagged Message variant, preserving
// the int/float distinction via json.Number rather than collapsing every
// number to float64 the way a plain json.Unmarshal(&interface{}) would.
func decodeMessage(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Message{}, err
	}
	return fromGoValue(v)
}

func fromGoValue(v interface{}) (Message, error) {
	switch t := v.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return NewInt(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Message{}, err
		}
		return NewFloat(f), nil
	case string:
		return NewString(t), nil
	case []interface{}:
		elems := make([]Message, len(t))
		for i, e := range t {
			m, err := fromGoValue(e)
			if err != nil {
				return Message{}, err
			}
			elems[i] = m
		}
		return NewArray(elems...), nil
	case map[string]interface{}:
		b := NewObject()
		for k, e := range t {
			m, err := fromGoValue(e)
			if err != nil {
				return Message{}, err
			}
			b.Set(k, m)
		}
		return b.Build(), nil
	default:
		return Message{}, fmt.Errorf("socketio: unsupported json value %T", v)
	}
}
