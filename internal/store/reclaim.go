package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// reclaim removes keys a committed transaction made unreachable: the
// ranges of abandoned epochs and the attributes and dead edges of deleted
// nodes. It runs after the commit in write batches that badger splits as
// needed, so its size is not bound by the transaction limit. Failures only
// leave unreachable keys behind; they are logged, and Open and Clean pick
// the leftovers up again.
func (s *Store) reclaim(dropped []uint64, removed []removedNode) {
	droppedSet := make(map[uint64]bool, len(dropped))
	for _, epoch := range dropped {
		droppedSet[epoch] = true
	}

	for _, n := range removed {
		if droppedSet[n.epoch] {
			continue
		}
		if err := s.sweepNode(n); err != nil {
			s.log.WithError(err).WithField("node", n.id).Warn("reclaiming deleted node failed")
		}
	}

	for _, epoch := range dropped {
		if err := s.dropEpoch(epoch); err != nil {
			s.log.WithError(err).WithField("epoch", epoch).Warn("dropping cleared epoch failed")
		}
	}
}

// readTxn wraps a badger read transaction pinned to epoch.
func (s *Store) readTxn(txn *badger.Txn, epoch uint64) *Txn {
	return &Txn{store: s, txn: txn, epoch: epoch, epochLoaded: true}
}

// batchDelete collects keys and deletes them through a badger WriteBatch.
type batchDelete struct {
	wb *badger.WriteBatch
	n  int
}

func (s *Store) newBatchDelete() *batchDelete {
	return &batchDelete{wb: s.badgerDB.NewWriteBatch()}
}

func (b *batchDelete) delete(key []byte) error {
	b.n++
	return b.wb.Delete(key)
}

func (b *batchDelete) flush() error {
	return b.wb.Flush()
}

// sweepNode deletes the attributes of a deleted node and every edge that
// died with it, along with their adjacency entries and attributes.
func (s *Store) sweepNode(n removedNode) error {
	batch := s.newBatchDelete()
	defer batch.wb.Cancel()

	err := s.badgerDB.View(func(txn *badger.Txn) error {
		tx := s.readTxn(txn, n.epoch)
		for _, k := range tx.keysWithPrefix(elementAttrPrefix(prefixNode, n.epoch, n.id, n.inc)) {
			if err := batch.delete(k); err != nil {
				return err
			}
		}

		prefix := adjacencyPrefix(n.epoch, n.id)
		for _, k := range tx.keysWithPrefix(prefix) {
			edgeID, _, err := readComponent(k[len(prefix):])
			if err != nil {
				return err
			}
			if err := s.sweepAdjacency(tx, batch, k, n.id, edgeID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return batch.flush()
}

// sweepAdjacency handles one adjacency entry of nodeID. Entries of live
// incident edges stay. A dead incident edge goes with all of its keys. Any
// other entry is stale and only the entry itself is deleted.
func (s *Store) sweepAdjacency(tx *Txn, batch *batchDelete, key []byte, nodeID, edgeID string) error {
	v, stored, live, err := tx.edge(edgeID)
	if err != nil {
		return err
	}
	incident := stored && (v.From == nodeID || v.To == nodeID)
	if live && incident {
		return nil
	}
	if err := batch.delete(key); err != nil {
		return err
	}
	if !incident {
		return nil
	}
	return s.sweepEdge(tx, batch, edgeID, v)
}

// sweepEdge deletes a dead edge with its attributes and adjacency entries.
func (s *Store) sweepEdge(tx *Txn, batch *batchDelete, edgeID string, v edgeValue) error {
	for _, nodeID := range []string{v.From, v.To} {
		if err := batch.delete(adjacencyKey(tx.epoch, nodeID, edgeID)); err != nil {
			return err
		}
	}
	for _, k := range tx.keysWithPrefix(elementAttrPrefix(prefixEdge, tx.epoch, edgeID, v.inc)) {
		if err := batch.delete(k); err != nil {
			return err
		}
	}
	return batch.delete(edgeKey(tx.epoch, edgeID))
}

// dropEpoch removes every key range of a cleared epoch and then its marker.
func (s *Store) dropEpoch(epoch uint64) error {
	if err := s.badgerDB.DropPrefix(epochPrefixes(epoch)...); err != nil {
		return fmt.Errorf("drop epoch %d: %w", epoch, err)
	}
	return s.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Delete(dropKey(epoch))
	})
}

// dropPendingEpochs finishes drops that an earlier process did not get to.
func (s *Store) dropPendingEpochs() error {
	var epochs []uint64
	err := s.badgerDB.View(func(txn *badger.Txn) error {
		prefix := dropKeyPrefix()
		for _, k := range s.readTxn(txn, 0).keysWithPrefix(prefix) {
			epoch, err := decodeUint64(k[len(prefix):])
			if err != nil {
				return err
			}
			epochs = append(epochs, epoch)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, epoch := range epochs {
		if err := s.dropEpoch(epoch); err != nil {
			return err
		}
	}
	if len(epochs) > 0 {
		s.log.WithField("epochs", epochs).Info("dropped leftover cleared epochs")
	}
	return nil
}

// Sweep scans the current epoch for unreachable keys: dead edges,
// attributes of deleted elements and stale adjacency entries. Commits
// reclaim their own garbage; Sweep catches what an interrupted reclaim left.
// It returns the number of deleted keys.
func (s *Store) Sweep() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	batch := s.newBatchDelete()
	defer batch.wb.Cancel()

	err := s.badgerDB.View(func(txn *badger.Txn) error {
		tx := &Txn{store: s, txn: txn}
		epoch, err := tx.currentEpoch()
		if err != nil {
			return err
		}

		// Dead edges. Their adjacency entries and attributes are handled
		// by the scans below.
		edgePrefix := epochPrefix(prefixEdge, epoch)
		for _, k := range tx.keysWithPrefix(edgePrefix) {
			id, _, err := readComponent(k[len(edgePrefix):])
			if err != nil {
				return err
			}
			_, _, live, err := tx.edge(id)
			if err != nil {
				return err
			}
			if !live {
				if err := batch.delete(k); err != nil {
					return err
				}
			}
		}

		if err := s.sweepAttrs(tx, batch, prefixNode, func(id string) (uint64, error) {
			return tx.nodeIncarnation(id)
		}); err != nil {
			return err
		}
		if err := s.sweepAttrs(tx, batch, prefixEdge, func(id string) (uint64, error) {
			v, _, live, err := tx.edge(id)
			if err != nil || !live {
				return 0, err
			}
			return v.inc, nil
		}); err != nil {
			return err
		}

		adjPrefix := epochPrefix(prefixAdjacency, epoch)
		for _, k := range tx.keysWithPrefix(adjPrefix) {
			nodeID, rest, err := readComponent(k[len(adjPrefix):])
			if err != nil {
				return err
			}
			edgeID, _, err := readComponent(rest)
			if err != nil {
				return err
			}
			v, _, live, err := tx.edge(edgeID)
			if err != nil {
				return err
			}
			if live && (v.From == nodeID || v.To == nodeID) {
				continue
			}
			if err := batch.delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := batch.flush(); err != nil {
		return 0, err
	}

	if batch.n > 0 {
		s.log.WithFields(logrus.Fields{"keys": batch.n}).Info("swept unreachable keys")
	}
	return batch.n, nil
}

// sweepAttrs deletes element attributes whose incarnation no longer
// matches the element. current returns 0 for a missing element.
func (s *Store) sweepAttrs(tx *Txn, batch *batchDelete, kind byte, current func(id string) (uint64, error)) error {
	prefix := attrEpochPrefix(kind, tx.epoch)
	incs := make(map[string]uint64)
	for _, k := range tx.keysWithPrefix(prefix) {
		id, inc, err := parseElementAttrKey(k[len(prefix):])
		if err != nil {
			return err
		}
		want, ok := incs[id]
		if !ok {
			if want, err = current(id); err != nil {
				return err
			}
			incs[id] = want
		}
		if inc == want {
			continue
		}
		if err := batch.delete(k); err != nil {
			return err
		}
	}
	return nil
}
