package store

import (
	"encoding/binary"
	"fmt"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

// Labels of the stored graph. Node and edge ids are unique per label.
const (
	NodeLabel   = "Default"
	EdgeType    = "Default"
	GraphLabel  = "Graph"
	NodeIDKey   = "nodeId"
	EdgeIDKey   = "edgeId"
	StepAttrKey = "step"
)

// Key prefixes. Every variable-length component is written length-prefixed,
// so a prefix built from complete components never matches a longer id.
//
// Node, edge, adjacency and element attribute keys carry the graph epoch
// right after their prefix. Clearing the graph moves to a new epoch; the
// ranges of the old one are dropped as a whole. Graph attributes, the
// singleton and meta keys are not epoch-scoped.
const (
	prefixMeta      byte = 'm'
	prefixNode      byte = 'n'
	prefixEdge      byte = 'e'
	prefixAdjacency byte = 'a'
	prefixAttr      byte = 'p'
	prefixSingleton byte = 'g'
)

const (
	metaConstraint = "constraint"
	metaEpoch      = "epoch"
	metaSequence   = "seq"
	metaDrop       = "drop"
)

func appendComponent(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func readComponent(b []byte) (string, []byte, error) {
	n, w := binary.Uvarint(b)
	if w <= 0 || uint64(len(b)-w) < n {
		return "", nil, fmt.Errorf("%w: bad key component", model.ErrCorruptRecord)
	}
	end := w + int(n)
	return string(b[w:end]), b[end:], nil
}

func encodeUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: want 8 bytes, got %d", model.ErrCorruptRecord, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func metaKey(name string) []byte {
	return appendComponent([]byte{prefixMeta}, name)
}

func epochKey() []byte { return metaKey(metaEpoch) }

func sequenceKey() []byte { return metaKey(metaSequence) }

func dropKeyPrefix() []byte { return metaKey(metaDrop) }

// dropKey marks an epoch whose keys still wait to be dropped.
func dropKey(epoch uint64) []byte {
	return binary.BigEndian.AppendUint64(dropKeyPrefix(), epoch)
}

func constraintKey(label, property string) []byte {
	b := metaKey(metaConstraint)
	b = appendComponent(b, label)
	return appendComponent(b, property)
}

func singletonKey(label string) []byte {
	return appendComponent([]byte{prefixSingleton}, label)
}

func epochPrefix(prefix byte, epoch uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{prefix}, epoch)
}

func nodeKey(epoch uint64, id string) []byte {
	return appendComponent(epochPrefix(prefixNode, epoch), id)
}

func edgeKey(epoch uint64, id string) []byte {
	return appendComponent(epochPrefix(prefixEdge, epoch), id)
}

func adjacencyPrefix(epoch uint64, nodeID string) []byte {
	return appendComponent(epochPrefix(prefixAdjacency, epoch), nodeID)
}

func adjacencyKey(epoch uint64, nodeID, edgeID string) []byte {
	return appendComponent(adjacencyPrefix(epoch, nodeID), edgeID)
}

func attrEpochPrefix(kind byte, epoch uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{prefixAttr, kind}, epoch)
}

// elementAttrPrefix covers the attributes of one incarnation of a node or
// edge. A re-created element gets a new incarnation and starts empty.
func elementAttrPrefix(kind byte, epoch uint64, id string, inc uint64) []byte {
	b := appendComponent(attrEpochPrefix(kind, epoch), id)
	return binary.BigEndian.AppendUint64(b, inc)
}

// parseElementAttrKey splits a key below attrEpochPrefix into element id
// and incarnation.
func parseElementAttrKey(rest []byte) (id string, inc uint64, err error) {
	id, rest, err = readComponent(rest)
	if err != nil {
		return "", 0, err
	}
	if len(rest) < 8 {
		return "", 0, fmt.Errorf("%w: short attribute key", model.ErrCorruptRecord)
	}
	return id, binary.BigEndian.Uint64(rest[:8]), nil
}

func graphAttrPrefix() []byte {
	return appendComponent([]byte{prefixAttr, prefixSingleton}, GraphLabel)
}

func attrKey(prefix []byte, key string) []byte {
	k := make([]byte, 0, len(prefix)+len(key))
	k = append(k, prefix...)
	return append(k, key...)
}

// epochPrefixes lists every key range owned by one epoch.
func epochPrefixes(epoch uint64) [][]byte {
	return [][]byte{
		epochPrefix(prefixNode, epoch),
		epochPrefix(prefixEdge, epoch),
		epochPrefix(prefixAdjacency, epoch),
		attrEpochPrefix(prefixNode, epoch),
		attrEpochPrefix(prefixEdge, epoch),
	}
}
