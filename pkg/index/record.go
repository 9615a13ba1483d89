package index

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value tags.
const (
	TagInt32  byte = 0
	TagDouble byte = 1
	TagString byte = 2
)

// Value is a closed tagged union: an integer, a double, or a byte string.
// It is deliberately not an interface{}/reflection scheme, so that GetSize
// and the wire layout stay fully determined by Tag.
type Value struct {
	Tag    byte
	Int    int32
	Double float64
	Str    []byte
}

// NewIntValue builds an integer-tagged Value.
func NewIntValue(v int32) Value { return Value{Tag: TagInt32, Int: v} }

// NewDoubleValue builds a double-tagged Value.
func NewDoubleValue(v float64) Value { return Value{Tag: TagDouble, Double: v} }

// NewStringValue builds a string-tagged Value. s is treated as an opaque
// byte string: no encoding is declared and no trailing NUL is written.
func NewStringValue(s string) Value { return Value{Tag: TagString, Str: []byte(s)} }

// GetSize returns the on-wire byte length of v.
func (v Value) GetSize() int {
	switch v.Tag {
	case TagInt32:
		return 1 + 4
	case TagDouble:
		return 1 + 8
	case TagString:
		return 1 + 8 + len(v.Str)
	default:
		return 1
	}
}

func (v Value) serialize(buf []byte) int {
	buf[0] = v.Tag
	switch v.Tag {
	case TagInt32:
		binary.LittleEndian.PutUint32(buf[1:], uint32(v.Int))
		return 1 + 4
	case TagDouble:
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v.Double))
		return 1 + 8
	case TagString:
		binary.LittleEndian.PutUint64(buf[1:9], uint64(len(v.Str)))
		copy(buf[9:], v.Str)
		return 1 + 8 + len(v.Str)
	default:
		return 1
	}
}

func deserializeValue(buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, fmt.Errorf("deserialize value: empty buffer")
	}
	tag := buf[0]
	switch tag {
	case TagInt32:
		if len(buf) < 5 {
			return Value{}, 0, fmt.Errorf("deserialize value: truncated int32")
		}
		return Value{Tag: TagInt32, Int: int32(binary.LittleEndian.Uint32(buf[1:5]))}, 5, nil
	case TagDouble:
		if len(buf) < 9 {
			return Value{}, 0, fmt.Errorf("deserialize value: truncated double")
		}
		bits := binary.LittleEndian.Uint64(buf[1:9])
		return Value{Tag: TagDouble, Double: math.Float64frombits(bits)}, 9, nil
	case TagString:
		if len(buf) < 9 {
			return Value{}, 0, fmt.Errorf("deserialize value: truncated string length")
		}
		n := binary.LittleEndian.Uint64(buf[1:9])
		end := 9 + int(n)
		if len(buf) < end {
			return Value{}, 0, fmt.Errorf("deserialize value: truncated string body")
		}
		s := make([]byte, n)
		copy(s, buf[9:end])
		return Value{Tag: TagString, Str: s}, end, nil
	default:
		return Value{}, 0, fmt.Errorf("deserialize value: unknown tag %d", tag)
	}
}

// Record is an ordered list of Values: value_count (8 bytes) followed by
// each value's tag byte and payload.
type Record struct {
	Values []Value
}

// NewRecord builds a Record from the given values, in order.
func NewRecord(values ...Value) Record {
	return Record{Values: values}
}

// GetSize returns the on-wire byte length of r, including its value_count
// header.
func (r Record) GetSize() int {
	size := 8
	for _, v := range r.Values {
		size += v.GetSize()
	}
	return size
}

// Serialize encodes r into buf, which must be at least GetSize() bytes.
// Returns the number of bytes written.
func (r Record) Serialize(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(r.Values)))
	off := 8
	for _, v := range r.Values {
		off += v.serialize(buf[off:])
	}
	return off
}

// DeserializeRecord decodes a Record from the front of buf, returning the
// record and the number of bytes consumed.
func DeserializeRecord(buf []byte) (Record, int, error) {
	if len(buf) < 8 {
		return Record{}, 0, fmt.Errorf("deserialize record: truncated value_count")
	}
	count := binary.LittleEndian.Uint64(buf[0:8])
	off := 8
	values := make([]Value, 0, count)
	for i := uint64(0); i < count; i++ {
		v, n, err := deserializeValue(buf[off:])
		if err != nil {
			return Record{}, 0, fmt.Errorf("deserialize record: value %d: %w", i, err)
		}
		values = append(values, v)
		off += n
	}
	return Record{Values: values}, off, nil
}

// Equal reports whether r and other carry the same tagged values in the
// same order.
func (r Record) Equal(other Record) bool {
	if len(r.Values) != len(other.Values) {
		return false
	}
	for i, v := range r.Values {
		o := other.Values[i]
		if v.Tag != o.Tag {
			return false
		}
		switch v.Tag {
		case TagInt32:
			if v.Int != o.Int {
				return false
			}
		case TagDouble:
			if v.Double != o.Double {
				return false
			}
		case TagString:
			if string(v.Str) != string(o.Str) {
				return false
			}
		}
	}
	return true
}
