package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrCorruptRecord = errors.New("model: corrupt stored record")

// Field numbers of the value message. Exactly one is present per encoded value.
const (
	fieldString protowire.Number = 1
	fieldInt    protowire.Number = 2
	fieldFloat  protowire.Number = 3
	fieldBool   protowire.Number = 4
	fieldBytes  protowire.Number = 5
)

// Field numbers of the edge record.
const (
	fieldEdgeFrom     protowire.Number = 1
	fieldEdgeTo       protowire.Number = 2
	fieldEdgeDirected protowire.Number = 3
)

// MarshalValue encodes v in protobuf wire format. Absent values have no
// encoding; they are never written to the store.
func MarshalValue(v Value) ([]byte, error) {
	var b []byte
	switch v.kind {
	case KindString:
		b = protowire.AppendTag(b, fieldString, protowire.BytesType)
		b = protowire.AppendString(b, v.str)
	case KindInt:
		b = protowire.AppendTag(b, fieldInt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.num))
	case KindFloat:
		b = protowire.AppendTag(b, fieldFloat, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.flt))
	case KindBool:
		b = protowire.AppendTag(b, fieldBool, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.num))
	case KindBytes:
		b = protowire.AppendTag(b, fieldBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, v.raw)
	default:
		return nil, fmt.Errorf("%w: cannot encode %s value", ErrUnsupportedValue, v.kind)
	}
	return b, nil
}

// UnmarshalValue decodes the output of MarshalValue.
func UnmarshalValue(b []byte) (Value, error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return Value{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
	}
	b = b[n:]

	switch {
	case num == fieldString && typ == protowire.BytesType:
		s, n := protowire.ConsumeString(b)
		if n < 0 {
			return Value{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		return String(s), nil
	case num == fieldInt && typ == protowire.VarintType:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return Value{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		return Int(protowire.DecodeZigZag(x)), nil
	case num == fieldFloat && typ == protowire.Fixed64Type:
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return Value{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		return Float(math.Float64frombits(x)), nil
	case num == fieldBool && typ == protowire.VarintType:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return Value{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		return Bool(x != 0), nil
	case num == fieldBytes && typ == protowire.BytesType:
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return Value{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		return Value{kind: KindBytes, raw: bytes.Clone(raw)}, nil
	default:
		return Value{}, fmt.Errorf("%w: unexpected value field %d", ErrCorruptRecord, num)
	}
}

// EdgeRecord is the stored form of an edge.
type EdgeRecord struct {
	From     string
	To       string
	Directed bool
}

func MarshalEdge(e EdgeRecord) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldEdgeFrom, protowire.BytesType)
	b = protowire.AppendString(b, e.From)
	b = protowire.AppendTag(b, fieldEdgeTo, protowire.BytesType)
	b = protowire.AppendString(b, e.To)
	if e.Directed {
		b = protowire.AppendTag(b, fieldEdgeDirected, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func UnmarshalEdge(b []byte) (EdgeRecord, error) {
	var e EdgeRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return EdgeRecord{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldEdgeFrom && typ == protowire.BytesType:
			e.From, n = protowire.ConsumeString(b)
		case num == fieldEdgeTo && typ == protowire.BytesType:
			e.To, n = protowire.ConsumeString(b)
		case num == fieldEdgeDirected && typ == protowire.VarintType:
			var x uint64
			x, n = protowire.ConsumeVarint(b)
			e.Directed = x != 0
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return EdgeRecord{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return e, nil
}
