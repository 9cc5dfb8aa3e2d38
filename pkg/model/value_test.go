package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValueOf(t *testing.T) {
	cases := []struct {
		in   any
		want Value
	}{
		{nil, Absent()},
		{"x", String("x")},
		{int(-3), Int(-3)},
		{int32(7), Int(7)},
		{uint8(255), Int(255)},
		{uint64(math.MaxInt64), Int(math.MaxInt64)},
		{float32(0.5), Float(0.5)},
		{2.25, Float(2.25)},
		{true, Bool(true)},
		{[]byte("raw"), Bytes([]byte("raw"))},
		{String("already"), String("already")},
	}
	for _, tc := range cases {
		got, err := ValueOf(tc.in)
		require.NoError(t, err, "%T", tc.in)
		assert.True(t, tc.want.Equal(got), "%T: got %s want %s", tc.in, got, tc.want)
	}
}

func TestValueOfRejectsOutsideDomain(t *testing.T) {
	for _, in := range []any{struct{}{}, map[string]int{}, uint64(math.MaxUint64), []string{"a"}} {
		_, err := ValueOf(in)
		assert.True(t, errors.Is(err, ErrUnsupportedValue), "%T", in)
	}
	assert.Panics(t, func() { MustValueOf(complex(1, 2)) })
}

func TestBytesAreCopied(t *testing.T) {
	src := []byte("abc")
	v := Bytes(src)
	src[0] = 'z'

	got, ok := v.AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, _ := v.AsBytes()
	assert.Equal(t, []byte("abc"), again)
}

func TestAccessorsCheckKind(t *testing.T) {
	_, ok := Int(1).AsString()
	assert.False(t, ok)
	_, ok = String("1").AsInt()
	assert.False(t, ok)

	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	assert.True(t, Absent().IsAbsent())
	assert.Nil(t, Absent().Interface())
	assert.Equal(t, int64(4), Int(4).Interface())
	assert.False(t, Int(1).Equal(Bool(true)))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, `"a"`, String("a").String())
	assert.Equal(t, "-2", Int(-2).String())
	assert.Equal(t, "1.5", Float(1.5).String())
	assert.Equal(t, "false", Bool(false).String())
	assert.Equal(t, "bytes[3]", Bytes([]byte("abc")).String())
	assert.Equal(t, "<absent>", Absent().String())
}

func genValue(t *rapid.T) Value {
	switch rapid.IntRange(0, 4).Draw(t, "kind") {
	case 0:
		return String(rapid.String().Draw(t, "str"))
	case 1:
		return Int(rapid.Int64().Draw(t, "int"))
	case 2:
		return Float(rapid.Float64().Draw(t, "float"))
	case 3:
		return Bool(rapid.Bool().Draw(t, "bool"))
	default:
		return Bytes(rapid.SliceOf(rapid.Byte()).Draw(t, "bytes"))
	}
}

func TestValueCodecProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := genValue(t)

		raw, err := MarshalValue(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", v, err)
		}
		got, err := UnmarshalValue(raw)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", v, err)
		}
		if !got.Equal(v) {
			t.Fatalf("decoded %s, want %s", got, v)
		}
	})
}
