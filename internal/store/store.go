// Package store persists a property graph in badger. All mutations go
// through Txn, which maps nodes, edges, adjacency and attributes onto
// length-prefixed keys so one badger transaction covers a whole flush.
package store

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

var ErrClosed = errors.New("store: closed")

type Store struct {
	config       Config
	log          *logrus.Logger
	badgerDB     *badger.DB
	closed       atomic.Bool
	readCounter  uint64
	writeCounter uint64
}

// Stats are lifetime counters of one Store handle.
type Stats struct {
	Reads  uint64
	Writes uint64
}

// Open opens (or creates) the store. Failures are *model.ConnectionError.
func Open(config Config) (*Store, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log := config.Logger

	if err := config.checkConfig(); err != nil {
		return nil, &model.ConnectionError{Path: config.Path, Err: fmt.Errorf("error checking store config: %w", err)}
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.Path)
		opts.ValueLogFileSize = 1024 * 1024 * 100 // 100MB value log files
	}
	if config.MemTableSize > 0 {
		// badger refuses a value threshold above its batch size, 15% of a memtable.
		opts = opts.WithMemTableSize(config.MemTableSize).
			WithValueThreshold(min(opts.ValueThreshold, config.MemTableSize*15/100/2))
	}
	opts = opts.WithSyncWrites(config.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: log.WithField("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &model.ConnectionError{Path: config.Path, Locked: isLockError(err), Err: err}
	}

	if !config.InMemory {
		if err := logDiskUsage(log, config.Path); err != nil {
			log.WithError(err).Warn("disk usage unavailable")
		}
	}

	s := &Store{
		config:   config,
		log:      log,
		badgerDB: db,
	}
	if err := s.dropPendingEpochs(); err != nil {
		log.WithError(err).Warn("dropping leftover cleared epochs failed")
	}
	return s, nil
}

// isLockError walks the cause chain of a badger open error looking for
// directory lock contention.
func isLockError(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.Is(e, syscall.EWOULDBLOCK) || errors.Is(e, syscall.EAGAIN) {
			return true
		}
		if strings.Contains(e.Error(), "Cannot acquire directory lock") {
			return true
		}
	}
	return false
}

// Begin starts a transaction. The caller must Commit or Discard it.
func (s *Store) Begin(update bool) (*Txn, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return &Txn{
		store:  s,
		txn:    s.badgerDB.NewTransaction(update),
		update: update,
	}, nil
}

// Update runs fn in a read-write transaction and commits when fn succeeds.
func (s *Store) Update(fn func(*Txn) error) error {
	tx, err := s.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Discard()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(*Txn) error) error {
	tx, err := s.Begin(false)
	if err != nil {
		return err
	}
	defer tx.Discard()
	return fn(tx)
}

// DeclareUnique records a uniqueness constraint for property on label. Ids
// are the key of every element record, so the constraint is structural; the
// record exists so a store can be inspected for the schema it was built with.
func (s *Store) DeclareUnique(label, property string) (created bool, err error) {
	err = s.Update(func(tx *Txn) error {
		key := constraintKey(label, property)
		found, err := tx.has(key)
		if err != nil || found {
			return err
		}
		created = true
		return tx.set(key, nil)
	})
	return created, err
}

func (s *Store) HasConstraint(label, property string) (bool, error) {
	var found bool
	err := s.View(func(tx *Txn) error {
		var err error
		found, err = tx.has(constraintKey(label, property))
		return err
	})
	return found, err
}

// EnsureSingleton creates the graph-level singleton for label on first use
// and seeds it with initial attributes. Existing singletons are left alone.
func (s *Store) EnsureSingleton(label string, initial map[string]model.Value) (created bool, err error) {
	err = s.Update(func(tx *Txn) error {
		key := singletonKey(label)
		found, err := tx.has(key)
		if err != nil || found {
			return err
		}
		if err := tx.set(key, nil); err != nil {
			return err
		}
		for k, v := range initial {
			if _, err := tx.SetAttr(model.Graph(), k, v); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	return created, err
}

func (s *Store) Stats() Stats {
	return Stats{
		Reads:  atomic.LoadUint64(&s.readCounter),
		Writes: atomic.LoadUint64(&s.writeCounter),
	}
}

// DB exposes the underlying badger handle for backup and restore.
func (s *Store) DB() *badger.DB {
	return s.badgerDB
}

func (s *Store) InMemory() bool {
	return s.config.InMemory
}

// Clean sweeps unreachable graph keys, flattens the LSM tree and reclaims
// value log space.
func (s *Store) Clean() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.dropPendingEpochs(); err != nil {
		return fmt.Errorf("error dropping cleared epochs: %w", err)
	}
	if _, err := s.Sweep(); err != nil {
		return fmt.Errorf("error sweeping db: %w", err)
	}
	if s.config.InMemory {
		return nil
	}

	err := s.badgerDB.Sync()
	if err != nil {
		return fmt.Errorf("error syncing db: %w", err)
	}

	err = s.badgerDB.Flatten(runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("error flattening db: %w", err)
	}
	s.log.Info("store flattened")

	err = s.badgerDB.RunValueLogGC(0.1)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("error cleaning db: %w", err)
	}

	return nil
}

// Close releases the store. Calling it twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !s.config.InMemory {
		if err := s.badgerDB.Sync(); err != nil {
			s.log.WithError(err).Warn("sync before close failed")
		}
	}
	return s.badgerDB.Close()
}

// badgerLogger routes badger's internal logging through logrus.
type badgerLogger struct {
	log *logrus.Entry
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Tracef(strings.TrimSpace(format), args...)
}
