package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

var ErrReadOnly = errors.New("store: write in read-only transaction")

// removedNode is a node deleted by a transaction. Its attributes and the
// keys of its dead edges are reclaimed after commit.
type removedNode struct {
	epoch uint64
	id    string
	inc   uint64
}

// Txn is one badger transaction over the graph. Reads inside a read-write
// Txn observe the Txn's own uncommitted writes.
//
// Every write is bounded by the size of the element it touches: deleting a
// node or clearing the graph never walks the rest of the graph inside the
// transaction, so a flush stays below badger's transaction limit however
// large the graph is.
type Txn struct {
	store  *Store
	txn    *badger.Txn
	update bool
	done   bool

	epoch       uint64
	epochLoaded bool
	seq         uint64
	seqLoaded   bool
	seqDirty    bool

	dropped []uint64
	removed []removedNode
}

// Commit commits the transaction and then reclaims the keys it made
// unreachable.
func (t *Txn) Commit() error {
	if t.done {
		return errors.New("store: transaction already finished")
	}
	if t.seqDirty {
		if err := t.set(sequenceKey(), encodeUint64(t.seq)); err != nil {
			t.Discard()
			return err
		}
	}
	t.done = true
	if err := t.txn.Commit(); err != nil {
		return err
	}
	if len(t.dropped) > 0 || len(t.removed) > 0 {
		t.store.reclaim(t.dropped, t.removed)
	}
	return nil
}

// Discard rolls back uncommitted writes. Safe after Commit.
func (t *Txn) Discard() {
	t.done = true
	t.txn.Discard()
}

func (t *Txn) has(key []byte) (bool, error) {
	atomic.AddUint64(&t.store.readCounter, 1)
	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *Txn) get(key []byte) ([]byte, bool, error) {
	atomic.AddUint64(&t.store.readCounter, 1)
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := item.ValueCopy(nil)
	return v, err == nil, err
}

func (t *Txn) set(key, value []byte) error {
	if !t.update {
		return ErrReadOnly
	}
	atomic.AddUint64(&t.store.writeCounter, 1)
	return t.txn.Set(key, value)
}

func (t *Txn) delete(key []byte) error {
	if !t.update {
		return ErrReadOnly
	}
	atomic.AddUint64(&t.store.writeCounter, 1)
	return t.txn.Delete(key)
}

// keysWithPrefix returns copies of every key under prefix.
func (t *Txn) keysWithPrefix(prefix []byte) [][]byte {
	atomic.AddUint64(&t.store.readCounter, 1)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func (t *Txn) anyWithPrefix(prefix []byte) bool {
	atomic.AddUint64(&t.store.readCounter, 1)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	it.Seek(prefix)
	return it.ValidForPrefix(prefix)
}

func (t *Txn) deletePrefix(prefix []byte) error {
	for _, k := range t.keysWithPrefix(prefix) {
		if err := t.delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *Txn) getUint64(key []byte) (uint64, error) {
	raw, found, err := t.get(key)
	if err != nil || !found {
		return 0, err
	}
	return decodeUint64(raw)
}

func (t *Txn) currentEpoch() (uint64, error) {
	if !t.epochLoaded {
		epoch, err := t.getUint64(epochKey())
		if err != nil {
			return 0, fmt.Errorf("read epoch: %w", err)
		}
		t.epoch, t.epochLoaded = epoch, true
	}
	return t.epoch, nil
}

// nextIncarnation hands out store-wide unique, non-zero incarnations. The
// counter is written once, on Commit.
func (t *Txn) nextIncarnation() (uint64, error) {
	if !t.update {
		return 0, ErrReadOnly
	}
	if !t.seqLoaded {
		seq, err := t.getUint64(sequenceKey())
		if err != nil {
			return 0, fmt.Errorf("read sequence: %w", err)
		}
		t.seq, t.seqLoaded = seq, true
	}
	t.seq++
	t.seqDirty = true
	return t.seq, nil
}

// nodeIncarnation returns 0 for a node that is not stored.
func (t *Txn) nodeIncarnation(id string) (uint64, error) {
	epoch, err := t.currentEpoch()
	if err != nil {
		return 0, err
	}
	raw, found, err := t.get(nodeKey(epoch, id))
	if err != nil || !found {
		return 0, err
	}
	return decodeUint64(raw)
}

// edge loads the stored record of an edge. A stored edge is live only while
// both endpoints are still the incarnations it was created against.
func (t *Txn) edge(id string) (v edgeValue, stored, live bool, err error) {
	epoch, err := t.currentEpoch()
	if err != nil {
		return edgeValue{}, false, false, err
	}
	raw, found, err := t.get(edgeKey(epoch, id))
	if err != nil || !found {
		return edgeValue{}, false, false, err
	}
	if v, err = unmarshalEdgeValue(raw); err != nil {
		return edgeValue{}, true, false, fmt.Errorf("edge %q: %w", id, err)
	}
	live, err = t.endpointsLive(v, nil)
	return v, true, live, err
}

// endpointsLive checks v against the current node incarnations. cache may
// be nil.
func (t *Txn) endpointsLive(v edgeValue, cache map[string]uint64) (bool, error) {
	for _, ep := range [2]struct {
		id  string
		inc uint64
	}{{v.From, v.fromInc}, {v.To, v.toInc}} {
		inc, ok := cache[ep.id]
		if !ok {
			var err error
			if inc, err = t.nodeIncarnation(ep.id); err != nil {
				return false, err
			}
			if cache != nil {
				cache[ep.id] = inc
			}
		}
		if inc != ep.inc {
			return false, nil
		}
	}
	return true, nil
}

// Exists reports whether the element is stored.
func (t *Txn) Exists(el model.Element) (bool, error) {
	switch el.Kind {
	case model.ElementNode:
		inc, err := t.nodeIncarnation(el.ID)
		return inc != 0, err
	case model.ElementEdge:
		_, _, live, err := t.edge(el.ID)
		return live, err
	default:
		return t.has(singletonKey(GraphLabel))
	}
}

// Count returns the number of stored nodes or edges.
func (t *Txn) Count(kind model.ElementKind) (int64, error) {
	epoch, err := t.currentEpoch()
	if err != nil {
		return 0, err
	}
	switch kind {
	case model.ElementNode:
		return int64(len(t.keysWithPrefix(epochPrefix(prefixNode, epoch)))), nil
	case model.ElementEdge:
		return t.countLiveEdges(epoch)
	default:
		return 0, fmt.Errorf("store: cannot count %s elements", kind)
	}
}

func (t *Txn) countLiveEdges(epoch uint64) (int64, error) {
	prefix := epochPrefix(prefixEdge, epoch)

	atomic.AddUint64(&t.store.readCounter, 1)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	incs := make(map[string]uint64)
	var n int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		raw, err := it.Item().ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		v, err := unmarshalEdgeValue(raw)
		if err != nil {
			return 0, err
		}
		live, err := t.endpointsLive(v, incs)
		if err != nil {
			return 0, err
		}
		if live {
			n++
		}
	}
	return n, nil
}

// UpsertNode creates the node unless it exists.
func (t *Txn) UpsertNode(id string) (created bool, err error) {
	inc, err := t.nodeIncarnation(id)
	if err != nil || inc != 0 {
		return false, err
	}
	if inc, err = t.nextIncarnation(); err != nil {
		return false, err
	}
	return true, t.set(nodeKey(t.epoch, id), encodeUint64(inc))
}

// DeleteNode removes the node. Its attributes and every incident edge stop
// existing with it; their keys are reclaimed after commit.
func (t *Txn) DeleteNode(id string) (existed bool, err error) {
	inc, err := t.nodeIncarnation(id)
	if err != nil || inc == 0 {
		return false, err
	}
	if err := t.delete(nodeKey(t.epoch, id)); err != nil {
		return true, err
	}
	t.removed = append(t.removed, removedNode{epoch: t.epoch, id: id, inc: inc})
	return true, nil
}

// Edge returns the stored record of an edge.
func (t *Txn) Edge(id string) (model.EdgeRecord, bool, error) {
	v, _, live, err := t.edge(id)
	if err != nil || !live {
		return model.EdgeRecord{}, false, err
	}
	return v.EdgeRecord, true, nil
}

// UpsertEdge creates the edge unless an edge with that id exists. Both
// endpoints must already be stored.
func (t *Txn) UpsertEdge(id string, rec model.EdgeRecord) (created bool, err error) {
	old, stored, live, err := t.edge(id)
	if err != nil || live {
		return false, err
	}

	var incs [2]uint64
	for i, endpoint := range [2]string{rec.From, rec.To} {
		if incs[i], err = t.nodeIncarnation(endpoint); err != nil {
			return false, err
		}
		if incs[i] == 0 {
			return false, &model.ElementNotFoundError{
				EdgeID: id, From: rec.From, To: rec.To, Directed: rec.Directed, Missing: endpoint,
			}
		}
	}

	if stored {
		if err := t.purgeEdge(id, old); err != nil {
			return false, err
		}
	}

	inc, err := t.nextIncarnation()
	if err != nil {
		return false, err
	}
	v := edgeValue{EdgeRecord: rec, inc: inc, fromInc: incs[0], toInc: incs[1]}
	if err := t.set(edgeKey(t.epoch, id), marshalEdgeValue(v)); err != nil {
		return false, err
	}
	if err := t.set(adjacencyKey(t.epoch, rec.From, id), nil); err != nil {
		return false, err
	}
	if rec.To != rec.From {
		if err := t.set(adjacencyKey(t.epoch, rec.To, id), nil); err != nil {
			return false, err
		}
	}
	return true, nil
}

// purgeEdge deletes the adjacency entries and attributes of a stored edge,
// leaving the edge key to the caller.
func (t *Txn) purgeEdge(id string, v edgeValue) error {
	if err := t.delete(adjacencyKey(t.epoch, v.From, id)); err != nil {
		return err
	}
	if v.To != v.From {
		if err := t.delete(adjacencyKey(t.epoch, v.To, id)); err != nil {
			return err
		}
	}
	return t.deletePrefix(elementAttrPrefix(prefixEdge, t.epoch, id, v.inc))
}

// DeleteEdge removes the edge, its attributes and its adjacency entries.
// Dead edges are purged too but reported as not existing.
func (t *Txn) DeleteEdge(id string) (existed bool, err error) {
	v, stored, live, err := t.edge(id)
	if err != nil || !stored {
		return false, err
	}
	if err := t.purgeEdge(id, v); err != nil {
		return live, err
	}
	return live, t.delete(edgeKey(t.epoch, id))
}

// attrPrefix locates the attribute range of el. ok is false when el does
// not exist.
func (t *Txn) attrPrefix(el model.Element) (prefix []byte, ok bool, err error) {
	switch el.Kind {
	case model.ElementNode:
		inc, err := t.nodeIncarnation(el.ID)
		if err != nil || inc == 0 {
			return nil, false, err
		}
		return elementAttrPrefix(prefixNode, t.epoch, el.ID, inc), true, nil
	case model.ElementEdge:
		v, _, live, err := t.edge(el.ID)
		if err != nil || !live {
			return nil, false, err
		}
		return elementAttrPrefix(prefixEdge, t.epoch, el.ID, v.inc), true, nil
	default:
		found, err := t.has(singletonKey(GraphLabel))
		if err != nil || !found {
			return nil, false, err
		}
		return graphAttrPrefix(), true, nil
	}
}

// SetAttr sets key on an existing element. A missing element is left
// untouched and reported through applied.
func (t *Txn) SetAttr(el model.Element, key string, v model.Value) (applied bool, err error) {
	if v.IsAbsent() {
		return t.RemoveAttr(el, key)
	}
	prefix, ok, err := t.attrPrefix(el)
	if err != nil || !ok {
		return false, err
	}
	raw, err := model.MarshalValue(v)
	if err != nil {
		return false, err
	}
	return true, t.set(attrKey(prefix, key), raw)
}

// RemoveAttr deletes key from an element. Removing a missing key is not an error.
func (t *Txn) RemoveAttr(el model.Element, key string) (removed bool, err error) {
	prefix, ok, err := t.attrPrefix(el)
	if err != nil || !ok {
		return false, err
	}
	k := attrKey(prefix, key)
	found, err := t.has(k)
	if err != nil || !found {
		return false, err
	}
	return true, t.delete(k)
}

func (t *Txn) Attr(el model.Element, key string) (model.Value, bool, error) {
	prefix, ok, err := t.attrPrefix(el)
	if err != nil || !ok {
		return model.Value{}, false, err
	}
	raw, found, err := t.get(attrKey(prefix, key))
	if err != nil || !found {
		return model.Value{}, false, err
	}
	v, err := model.UnmarshalValue(raw)
	return v, err == nil, err
}

// Attrs returns every attribute of an element.
func (t *Txn) Attrs(el model.Element) (map[string]model.Value, error) {
	attrs := make(map[string]model.Value)
	prefix, ok, err := t.attrPrefix(el)
	if err != nil || !ok {
		return attrs, err
	}

	atomic.AddUint64(&t.store.readCounter, 1)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := string(bytes.TrimPrefix(item.Key(), prefix))
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		v, err := model.UnmarshalValue(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		attrs[key] = v
	}
	return attrs, nil
}

// ClearAll deletes every node and edge with their attributes and adjacency
// by moving the store to a fresh epoch: two writes, whatever the size of
// the graph. The old epoch's keys are dropped after commit. Graph
// attributes and schema metadata are kept. cleared is false when there was
// nothing to clear.
func (t *Txn) ClearAll() (cleared bool, err error) {
	epoch, err := t.currentEpoch()
	if err != nil {
		return false, err
	}
	for _, p := range epochPrefixes(epoch) {
		if cleared = t.anyWithPrefix(p); cleared {
			break
		}
	}
	if !cleared {
		return false, nil
	}

	if err := t.set(epochKey(), encodeUint64(epoch+1)); err != nil {
		return false, err
	}
	if err := t.set(dropKey(epoch), nil); err != nil {
		return false, err
	}
	t.epoch = epoch + 1
	t.dropped = append(t.dropped, epoch)
	return true, nil
}
