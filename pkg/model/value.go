package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnsupportedValue is returned by ValueOf for Go values outside the closed
// attribute domain.
var ErrUnsupportedValue = errors.New("model: unsupported attribute value type")

// ValueKind tags the dynamic type held by a Value.
type ValueKind uint8

const (
	KindAbsent ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return "ValueKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an attribute value persisted by the store. The zero Value is
// absent, which means "remove this key" wherever a Value is applied.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	raw  []byte
}

// Absent returns the zero Value.
func Absent() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Int(i int64) Value { return Value{kind: KindInt, num: i} }

func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Bytes copies b so later mutations by the caller do not leak into queued events.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: bytes.Clone(b)}
}

// ValueOf converts a Go value into a Value. nil converts to Absent.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Absent(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: uint64 %d overflows int64", ErrUnsupportedValue, t)
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []byte:
		return Bytes(t), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
	}
}

// MustValueOf is ValueOf for literals known to be in the domain.
func MustValueOf(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Interface returns the value as a plain Go value (nil when absent).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.num == 1
	case KindBytes:
		return bytes.Clone(v.raw)
	default:
		return nil
	}
}

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

func (v Value) AsFloat() (float64, bool) { return v.flt, v.kind == KindFloat }

func (v Value) AsBool() (bool, bool) { return v.num == 1, v.kind == KindBool }

func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return bytes.Clone(v.raw), true
}

// Equal compares kind and payload. NaN floats compare by bit pattern.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt, KindBool:
		return v.num == o.num
	case KindFloat:
		return math.Float64bits(v.flt) == math.Float64bits(o.flt)
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num == 1)
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(v.raw))
	default:
		return "<absent>"
	}
}
