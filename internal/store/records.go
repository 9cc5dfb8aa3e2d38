package store

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

// Fields appended to model.MarshalEdge output. They sit far above the
// record's own field numbers so the model codec can grow without clashing.
const (
	fieldEdgeIncarnation protowire.Number = 16
	fieldFromIncarnation protowire.Number = 17
	fieldToIncarnation   protowire.Number = 18
)

// edgeValue is the stored form of an edge. An edge belongs to one
// incarnation of each endpoint; once either endpoint is deleted the edge is
// dead, even before its keys are reclaimed.
type edgeValue struct {
	model.EdgeRecord
	inc     uint64
	fromInc uint64
	toInc   uint64
}

func marshalEdgeValue(v edgeValue) []byte {
	b := model.MarshalEdge(v.EdgeRecord)
	for _, f := range []struct {
		num protowire.Number
		val uint64
	}{
		{fieldEdgeIncarnation, v.inc},
		{fieldFromIncarnation, v.fromInc},
		{fieldToIncarnation, v.toInc},
	} {
		b = protowire.AppendTag(b, f.num, protowire.VarintType)
		b = protowire.AppendVarint(b, f.val)
	}
	return b
}

func unmarshalEdgeValue(raw []byte) (edgeValue, error) {
	rec, err := model.UnmarshalEdge(raw)
	if err != nil {
		return edgeValue{}, err
	}
	v := edgeValue{EdgeRecord: rec}

	for b := raw; len(b) > 0; {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return edgeValue{}, fmt.Errorf("%w: %v", model.ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
		} else {
			var x uint64
			x, n = protowire.ConsumeVarint(b)
			switch num {
			case fieldEdgeIncarnation:
				v.inc = x
			case fieldFromIncarnation:
				v.fromInc = x
			case fieldToIncarnation:
				v.toInc = x
			}
		}
		if n < 0 {
			return edgeValue{}, fmt.Errorf("%w: %v", model.ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if v.inc == 0 {
		return edgeValue{}, fmt.Errorf("%w: edge without incarnation", model.ErrCorruptRecord)
	}
	return v, nil
}
