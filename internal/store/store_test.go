package store

import (
	"errors"
	"strconv"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func count(t *testing.T, st *Store, kind model.ElementKind) int64 {
	t.Helper()
	var n int64
	require.NoError(t, st.View(func(tx *Txn) error {
		var err error
		n, err = tx.Count(kind)
		return err
	}))
	return n
}

func exists(t *testing.T, st *Store, el model.Element) bool {
	t.Helper()
	var found bool
	require.NoError(t, st.View(func(tx *Txn) error {
		var err error
		found, err = tx.Exists(el)
		return err
	}))
	return found
}

func TestUpsertNodeIsIdempotent(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		created, err := tx.UpsertNode("a")
		require.NoError(t, err)
		assert.True(t, created)

		created, err = tx.UpsertNode("a")
		require.NoError(t, err)
		assert.False(t, created)
		return nil
	}))

	assert.EqualValues(t, 1, count(t, st, model.ElementNode))
}

func TestUpsertEdgeRequiresEndpoints(t *testing.T) {
	st := openMem(t)

	err := st.Update(func(tx *Txn) error {
		_, err := tx.UpsertNode("a")
		require.NoError(t, err)
		_, err = tx.UpsertEdge("ab", model.EdgeRecord{From: "a", To: "b"})
		return err
	})

	var nf *model.ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "b", nf.Missing)
	assert.ErrorIs(t, err, model.ErrElementNotFound)
	// The failed transaction left nothing behind.
	assert.Zero(t, count(t, st, model.ElementNode))
}

func TestEdgeRoundTrip(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		for _, id := range []string{"a", "b"} {
			if _, err := tx.UpsertNode(id); err != nil {
				return err
			}
		}
		created, err := tx.UpsertEdge("ab", model.EdgeRecord{From: "a", To: "b", Directed: true})
		assert.True(t, created)
		return err
	}))

	require.NoError(t, st.View(func(tx *Txn) error {
		rec, found, err := tx.Edge("ab")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, model.EdgeRecord{From: "a", To: "b", Directed: true}, rec)

		_, found, err = tx.Edge("missing")
		assert.False(t, found)
		return err
	}))
}

func TestUpsertEdgeKeepsFirstRecord(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		for _, id := range []string{"a", "b", "c"} {
			if _, err := tx.UpsertNode(id); err != nil {
				return err
			}
		}
		if _, err := tx.UpsertEdge("e", model.EdgeRecord{From: "a", To: "b"}); err != nil {
			return err
		}
		created, err := tx.UpsertEdge("e", model.EdgeRecord{From: "b", To: "c"})
		assert.False(t, created)
		return err
	}))

	require.NoError(t, st.View(func(tx *Txn) error {
		rec, _, err := tx.Edge("e")
		assert.Equal(t, "a", rec.From)
		return err
	}))
}

func TestDeleteNodeCascadesToEdges(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		for _, id := range []string{"a", "b", "c"} {
			if _, err := tx.UpsertNode(id); err != nil {
				return err
			}
		}
		for id, rec := range map[string]model.EdgeRecord{
			"ab": {From: "a", To: "b"},
			"ca": {From: "c", To: "a", Directed: true},
			"aa": {From: "a", To: "a"},
			"bc": {From: "b", To: "c"},
		} {
			if _, err := tx.UpsertEdge(id, rec); err != nil {
				return err
			}
		}
		_, err := tx.SetAttr(model.Edge("ab"), "w", model.Int(3))
		return err
	}))

	require.NoError(t, st.Update(func(tx *Txn) error {
		existed, err := tx.DeleteNode("a")
		assert.True(t, existed)
		return err
	}))

	assert.EqualValues(t, 2, count(t, st, model.ElementNode))
	assert.EqualValues(t, 1, count(t, st, model.ElementEdge))
	assert.True(t, exists(t, st, model.Edge("bc")))
	assert.False(t, exists(t, st, model.Edge("ab")))

	require.NoError(t, st.View(func(tx *Txn) error {
		attrs, err := tx.Attrs(model.Edge("ab"))
		assert.Empty(t, attrs)
		return err
	}))

	// Re-creating the edge id starts from a clean slate.
	require.NoError(t, st.Update(func(tx *Txn) error {
		if _, err := tx.UpsertNode("a"); err != nil {
			return err
		}
		created, err := tx.UpsertEdge("ab", model.EdgeRecord{From: "a", To: "b"})
		assert.True(t, created)
		return err
	}))
}

func TestDeleteMissingElementsIsNoop(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		existed, err := tx.DeleteNode("ghost")
		assert.False(t, existed)
		if err != nil {
			return err
		}
		existed, err = tx.DeleteEdge("ghost")
		assert.False(t, existed)
		return err
	}))
}

func TestAttributes(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		if _, err := tx.UpsertNode("a"); err != nil {
			return err
		}
		applied, err := tx.SetAttr(model.Node("a"), "label", model.String("A"))
		assert.True(t, applied)
		if err != nil {
			return err
		}
		_, err = tx.SetAttr(model.Node("a"), "size", model.Float(2.5))
		if err != nil {
			return err
		}
		// Attributes on missing elements are ignored.
		applied, err = tx.SetAttr(model.Node("ghost"), "label", model.String("G"))
		assert.False(t, applied)
		return err
	}))

	require.NoError(t, st.View(func(tx *Txn) error {
		attrs, err := tx.Attrs(model.Node("a"))
		require.NoError(t, err)
		assert.Equal(t, map[string]model.Value{
			"label": model.String("A"),
			"size":  model.Float(2.5),
		}, attrs)

		_, found, err := tx.Attr(model.Node("ghost"), "label")
		assert.False(t, found)
		return err
	}))

	require.NoError(t, st.Update(func(tx *Txn) error {
		// An absent value removes the key.
		removed, err := tx.SetAttr(model.Node("a"), "label", model.Absent())
		assert.True(t, removed)
		return err
	}))

	require.NoError(t, st.View(func(tx *Txn) error {
		_, found, err := tx.Attr(model.Node("a"), "label")
		assert.False(t, found)
		return err
	}))
}

func TestAttributeKeysDoNotLeakAcrossIDs(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		for _, id := range []string{"a", "ab"} {
			if _, err := tx.UpsertNode(id); err != nil {
				return err
			}
		}
		if _, err := tx.SetAttr(model.Node("ab"), "x", model.Int(1)); err != nil {
			return err
		}
		_, err := tx.SetAttr(model.Node("a"), "bx", model.Int(2))
		return err
	}))

	require.NoError(t, st.View(func(tx *Txn) error {
		attrs, err := tx.Attrs(model.Node("a"))
		assert.Equal(t, map[string]model.Value{"bx": model.Int(2)}, attrs)
		return err
	}))
}

func TestClearAllKeepsGraphAttributes(t *testing.T) {
	st := openMem(t)

	created, err := st.EnsureSingleton(GraphLabel, map[string]model.Value{StepAttrKey: model.Float(0)})
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, st.Update(func(tx *Txn) error {
		for _, id := range []string{"a", "b"} {
			if _, err := tx.UpsertNode(id); err != nil {
				return err
			}
		}
		if _, err := tx.UpsertEdge("ab", model.EdgeRecord{From: "a", To: "b"}); err != nil {
			return err
		}
		if _, err := tx.SetAttr(model.Node("a"), "k", model.Bool(true)); err != nil {
			return err
		}
		_, err := tx.SetAttr(model.Graph(), "title", model.String("g"))
		return err
	}))

	require.NoError(t, st.Update(func(tx *Txn) error {
		cleared, err := tx.ClearAll()
		assert.True(t, cleared)
		if err != nil {
			return err
		}
		cleared, err = tx.ClearAll()
		assert.False(t, cleared, "nothing left to clear")
		return err
	}))

	assert.Zero(t, count(t, st, model.ElementNode))
	assert.Zero(t, count(t, st, model.ElementEdge))
	assert.True(t, exists(t, st, model.Graph()))

	require.NoError(t, st.View(func(tx *Txn) error {
		attrs, err := tx.Attrs(model.Graph())
		assert.Equal(t, map[string]model.Value{
			StepAttrKey: model.Float(0),
			"title":     model.String("g"),
		}, attrs)
		if err != nil {
			return err
		}
		nodeAttrs, err := tx.Attrs(model.Node("a"))
		assert.Empty(t, nodeAttrs)
		return err
	}))
}

func TestEnsureSingletonLeavesExistingAlone(t *testing.T) {
	st := openMem(t)

	_, err := st.EnsureSingleton(GraphLabel, map[string]model.Value{StepAttrKey: model.Float(0)})
	require.NoError(t, err)
	require.NoError(t, st.Update(func(tx *Txn) error {
		_, err := tx.SetAttr(model.Graph(), StepAttrKey, model.Float(7))
		return err
	}))

	created, err := st.EnsureSingleton(GraphLabel, map[string]model.Value{StepAttrKey: model.Float(0)})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, st.View(func(tx *Txn) error {
		v, _, err := tx.Attr(model.Graph(), StepAttrKey)
		assert.Equal(t, model.Float(7), v)
		return err
	}))
}

func TestDeclareUniqueOnlyOnce(t *testing.T) {
	st := openMem(t)

	created, err := st.DeclareUnique(NodeLabel, NodeIDKey)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = st.DeclareUnique(NodeLabel, NodeIDKey)
	require.NoError(t, err)
	assert.False(t, created)

	ok, err := st.HasConstraint(NodeLabel, NodeIDKey)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.HasConstraint(EdgeType, EdgeIDKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadOnlyTxnRejectsWrites(t *testing.T) {
	st := openMem(t)

	err := st.View(func(tx *Txn) error {
		_, err := tx.UpsertNode("a")
		return err
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestDiscardRollsBack(t *testing.T) {
	st := openMem(t)

	tx, err := st.Begin(true)
	require.NoError(t, err)
	_, err = tx.UpsertNode("a")
	require.NoError(t, err)
	tx.Discard()

	assert.False(t, exists(t, st, model.Node("a")))
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, st.Update(func(tx *Txn) error {
		_, err := tx.UpsertNode("a")
		return err
	}))
	require.NoError(t, st.Close())
	require.NoError(t, st.Close(), "second close is a no-op")

	st, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer st.Close()
	assert.True(t, exists(t, st, model.Node("a")))
}

func TestSecondOpenReportsLock(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(Config{Path: dir})
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(Config{Path: dir})
	require.Error(t, err)

	var connErr *model.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, connErr.Locked)
	assert.Equal(t, dir, connErr.Path)
	assert.ErrorIs(t, err, model.ErrConnection)
	assert.ErrorIs(t, err, model.ErrStoreLocked)
}

func TestOpenWithoutPathFails(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, model.ErrConnection)
}

func TestClosedStoreRejectsTransactions(t *testing.T) {
	st, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = st.Begin(false)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.ErrorIs(t, st.Clean(), ErrClosed)
}

func TestIsLockError(t *testing.T) {
	assert.True(t, isLockError(errors.New("Cannot acquire directory lock on \"/x\"")))
	assert.False(t, isLockError(errors.New("manifest corrupted")))
}

// openSmall opens a store whose transactions hold only a few thousand
// writes.
func openSmall(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{InMemory: true, MemTableSize: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func rawKeys(t *testing.T, st *Store, prefix []byte) int {
	t.Helper()
	var n int
	require.NoError(t, st.View(func(tx *Txn) error {
		n = len(tx.keysWithPrefix(prefix))
		return nil
	}))
	return n
}

func TestClearAllBeyondTransactionLimit(t *testing.T) {
	st := openSmall(t)

	for batch := 0; batch < 20; batch++ {
		require.NoError(t, st.Update(func(tx *Txn) error {
			for i := 0; i < 500; i++ {
				id := strconv.Itoa(batch*500 + i)
				if _, err := tx.UpsertNode(id); err != nil {
					return err
				}
				if _, err := tx.SetAttr(model.Node(id), "i", model.Int(int64(i))); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	require.EqualValues(t, 10000, count(t, st, model.ElementNode))

	require.NoError(t, st.Update(func(tx *Txn) error {
		cleared, err := tx.ClearAll()
		assert.True(t, cleared)
		return err
	}))

	assert.Zero(t, count(t, st, model.ElementNode))
	assert.Zero(t, rawKeys(t, st, []byte{prefixNode}), "old epoch dropped")
	assert.Zero(t, rawKeys(t, st, []byte{prefixAttr, prefixNode}))
	assert.Zero(t, rawKeys(t, st, dropKeyPrefix()))

	require.NoError(t, st.Update(func(tx *Txn) error {
		created, err := tx.UpsertNode("7")
		assert.True(t, created)
		return err
	}))
	require.NoError(t, st.View(func(tx *Txn) error {
		attrs, err := tx.Attrs(model.Node("7"))
		assert.Empty(t, attrs)
		return err
	}))
}

func TestDeleteHubNodeBeyondTransactionLimit(t *testing.T) {
	st := openSmall(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		_, err := tx.UpsertNode("hub")
		return err
	}))
	for batch := 0; batch < 10; batch++ {
		require.NoError(t, st.Update(func(tx *Txn) error {
			for i := 0; i < 300; i++ {
				id := strconv.Itoa(batch*300 + i)
				if _, err := tx.UpsertNode(id); err != nil {
					return err
				}
				if _, err := tx.UpsertEdge("hub_"+id, model.EdgeRecord{From: "hub", To: id}); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	require.EqualValues(t, 3000, count(t, st, model.ElementEdge))

	require.NoError(t, st.Update(func(tx *Txn) error {
		existed, err := tx.DeleteNode("hub")
		assert.True(t, existed)
		if err != nil {
			return err
		}
		// The edges are gone inside the same transaction.
		n, err := tx.Count(model.ElementEdge)
		assert.Zero(t, n)
		return err
	}))

	assert.Zero(t, count(t, st, model.ElementEdge))
	assert.EqualValues(t, 3000, count(t, st, model.ElementNode))
	assert.Zero(t, rawKeys(t, st, []byte{prefixEdge}), "dead edges reclaimed after commit")
	assert.Zero(t, rawKeys(t, st, []byte{prefixAdjacency}))

	swept, err := st.Sweep()
	require.NoError(t, err)
	assert.Zero(t, swept, "nothing left behind")
}

func TestRecreatedNodeStartsEmpty(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		for _, id := range []string{"a", "b"} {
			if _, err := tx.UpsertNode(id); err != nil {
				return err
			}
		}
		if _, err := tx.UpsertEdge("ab", model.EdgeRecord{From: "a", To: "b"}); err != nil {
			return err
		}
		_, err := tx.SetAttr(model.Node("a"), "k", model.Int(1))
		return err
	}))

	require.NoError(t, st.Update(func(tx *Txn) error {
		if _, err := tx.DeleteNode("a"); err != nil {
			return err
		}
		created, err := tx.UpsertNode("a")
		assert.True(t, created)
		return err
	}))

	assert.False(t, exists(t, st, model.Edge("ab")), "edge died with the old node")
	assert.Zero(t, count(t, st, model.ElementEdge))
	require.NoError(t, st.View(func(tx *Txn) error {
		attrs, err := tx.Attrs(model.Node("a"))
		assert.Empty(t, attrs)
		return err
	}))

	require.NoError(t, st.Update(func(tx *Txn) error {
		created, err := tx.UpsertEdge("ab", model.EdgeRecord{From: "b", To: "a"})
		assert.True(t, created)
		return err
	}))
	require.NoError(t, st.View(func(tx *Txn) error {
		rec, found, err := tx.Edge("ab")
		assert.True(t, found)
		assert.Equal(t, "b", rec.From)
		return err
	}))

	swept, err := st.Sweep()
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestSweepRemovesUnreachableKeys(t *testing.T) {
	st := openMem(t)

	require.NoError(t, st.Update(func(tx *Txn) error {
		for _, id := range []string{"a", "b"} {
			if _, err := tx.UpsertNode(id); err != nil {
				return err
			}
		}
		if _, err := tx.UpsertEdge("ab", model.EdgeRecord{From: "a", To: "b"}); err != nil {
			return err
		}
		_, err := tx.SetAttr(model.Edge("ab"), "w", model.Int(1))
		return err
	}))

	// Delete the node key behind the store's back, as if the process had
	// died before the commit's reclaim ran.
	require.NoError(t, st.DB().Update(func(txn *badger.Txn) error {
		return txn.Delete(nodeKey(0, "a"))
	}))

	swept, err := st.Sweep()
	require.NoError(t, err)
	// edge key, its attribute and both adjacency entries
	assert.Equal(t, 4, swept)
	assert.Zero(t, rawKeys(t, st, []byte{prefixEdge}))
	assert.Zero(t, rawKeys(t, st, []byte{prefixAdjacency}))
	assert.EqualValues(t, 1, count(t, st, model.ElementNode))
}

func TestOpenDropsLeftoverEpochs(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, st.Update(func(tx *Txn) error {
		_, err := tx.UpsertNode("a")
		return err
	}))
	// A clear whose drop never ran.
	require.NoError(t, st.DB().Update(func(txn *badger.Txn) error {
		if err := txn.Set(epochKey(), encodeUint64(1)); err != nil {
			return err
		}
		return txn.Set(dropKey(0), nil)
	}))
	require.NoError(t, st.Close())

	st, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer st.Close()

	assert.Zero(t, count(t, st, model.ElementNode))
	assert.Zero(t, rawKeys(t, st, epochPrefix(prefixNode, 0)))
	assert.Zero(t, rawKeys(t, st, dropKeyPrefix()))
}

func TestStatsCountReadsAndWrites(t *testing.T) {
	st := openMem(t)
	require.NoError(t, st.Update(func(tx *Txn) error {
		_, err := tx.UpsertNode("a")
		return err
	}))
	stats := st.Stats()
	assert.NotZero(t, stats.Reads)
	assert.NotZero(t, stats.Writes)
}
