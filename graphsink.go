/*
Package graphsink mirrors a stream of graph mutations into a persistent,
transactional graph store.

Notifications are queued and applied in batches: one badger transaction per
flush. A flush runs when the queue passes its threshold, before any read,
and once more on Close. Owners must Close the container, typically with
defer, so the last batch reaches the store.
*/
package graphsink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-graph/internal/consistency"
	"github.com/i5heu/ouroboros-graph/internal/flush"
	"github.com/i5heu/ouroboros-graph/internal/queue"
	"github.com/i5heu/ouroboros-graph/internal/store"
	"github.com/i5heu/ouroboros-graph/pkg/model"
	"github.com/i5heu/ouroboros-graph/pkg/stream"
)

var (
	ErrNotConnected = errors.New("graphsink: container not connected")
	ErrClosed       = errors.New("graphsink: container closed")
	ErrInvalidStep  = errors.New("graphsink: step is not a number")
)

// Re-exported error classes. Match with errors.Is.
var (
	ErrConnection      = model.ErrConnection
	ErrStoreLocked     = model.ErrStoreLocked
	ErrElementNotFound = model.ErrElementNotFound
	ErrTransaction     = model.ErrTransaction
)

// Container is a stream.Sink that persists what it receives and forwards
// every accepted notification to its own observers. It serves one writer;
// callbacks, reads and Close must not run concurrently.
type Container struct {
	stream.Source

	id     string
	log    *logrus.Logger
	config Config
	policy *consistency.Policy

	store   *store.Store
	flusher *flush.Flusher
	path    string

	warnings  []Warning
	closed    bool
	closeOnce sync.Once
}

var _ stream.Sink = (*Container)(nil)

// New constructs an unconnected container. It performs no I/O.
func New(conf Config) (*Container, error) {
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}
	if conf.FlushThreshold <= 0 {
		conf.FlushThreshold = DefaultFlushThreshold
	}
	switch conf.ConsistencyMode {
	case Lenient, Strict, AutoCreate:
	default:
		return nil, fmt.Errorf("graphsink: invalid consistency mode %s", conf.ConsistencyMode)
	}

	c := &Container{
		id:     uuid.NewString(),
		log:    conf.Logger,
		config: conf,
	}
	c.policy = consistency.New(conf.ConsistencyMode, conf.Logger, c.recordWarning)
	for _, o := range conf.Observers {
		c.AddSink(o)
	}
	return c, nil
}

// Open is New followed by Connect(ctx, conf.Path).
func Open(ctx context.Context, conf Config) (*Container, error) {
	c, err := New(conf)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx, conf.Path); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect opens the store at path. An existing connection is shut down
// first, including its final flush, and stays shut down if opening the new
// store fails. Failures to open are *model.ConnectionError.
func (c *Container) Connect(ctx context.Context, path string) error {
	if c.closed {
		return ErrClosed
	}

	if c.store != nil {
		if err := c.shutdown(ctx); err != nil {
			c.log.WithError(err).Error("previous connection shut down with errors")
		}
	}

	st, err := store.Open(store.Config{
		Path:          path,
		InMemory:      c.config.InMemory,
		SyncWrites:    c.config.SyncWrites,
		MinimumFreeGB: c.config.MinimumFreeGB,
		Logger:        c.log,
	})
	if err != nil {
		return err
	}

	if err := initStore(st); err != nil {
		_ = st.Close()
		return &model.ConnectionError{Path: path, Err: err}
	}

	c.store = st
	c.path = path
	c.flusher = flush.New(st, queue.New(c.config.FlushThreshold), c.policy, c.log)

	c.log.WithFields(logrus.Fields{
		"container": c.id,
		"path":      path,
		"inMemory":  c.config.InMemory,
		"mode":      c.config.ConsistencyMode.String(),
		"threshold": c.config.FlushThreshold,
	}).Info("graph store connected")

	return nil
}

// initStore declares the id constraints and creates the graph singleton
// with step 0 when they are not there yet.
func initStore(st *store.Store) error {
	if _, err := st.DeclareUnique(store.NodeLabel, store.NodeIDKey); err != nil {
		return fmt.Errorf("declare node constraint: %w", err)
	}
	if _, err := st.DeclareUnique(store.EdgeType, store.EdgeIDKey); err != nil {
		return fmt.Errorf("declare edge constraint: %w", err)
	}
	if _, err := st.EnsureSingleton(store.GraphLabel, map[string]model.Value{
		store.StepAttrKey: model.Float(0),
	}); err != nil {
		return fmt.Errorf("create graph singleton: %w", err)
	}
	return nil
}

// shutdown flushes what is queued and releases the store. The store is
// released even when the flush fails.
func (c *Container) shutdown(ctx context.Context) error {
	var errs []error
	if _, err := c.flusher.Flush(context.WithoutCancel(ctx), flush.TriggerShutdown); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	stats := c.flusher.Stats()
	storeStats := c.store.Stats()
	c.log.WithFields(logrus.Fields{
		"container":   c.id,
		"path":        c.path,
		"flushes":     stats.Flushes,
		"stored":      stats.EventsStored,
		"lost":        stats.EventsLost,
		"flushFails":  stats.Failures,
		"storeReads":  storeStats.Reads,
		"storeWrites": storeStats.Writes,
	}).Info("graph store shut down")

	c.store = nil
	c.flusher = nil
	return errors.Join(errs...)
}

// Close runs the final flush and releases the store. Only the first call
// has an effect; later calls return nil.
func (c *Container) Close(ctx context.Context) error {
	var closeErr error
	c.closeOnce.Do(func() {
		if c.store != nil {
			closeErr = c.shutdown(ctx)
		}
		c.closed = true
	})
	return closeErr
}

// Flush applies everything queued now.
func (c *Container) Flush(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	_, err := c.flusher.Flush(ctx, flush.TriggerExplicit)
	return err
}

func (c *Container) ready() error {
	if c.closed {
		return ErrClosed
	}
	if c.store == nil {
		return ErrNotConnected
	}
	return nil
}

func (c *Container) recordWarning(w Warning) {
	c.warnings = append(c.warnings, w)
}

// Warnings returns the edges dropped in Lenient mode so far.
func (c *Container) Warnings() []Warning {
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// ID identifies the container in logs.
func (c *Container) ID() string { return c.id }

func (c *Container) Mode() ConsistencyMode { return c.config.ConsistencyMode }

// Pending is the number of queued, unflushed events.
func (c *Container) Pending() int {
	if c.flusher == nil {
		return 0
	}
	return c.flusher.Pending()
}

// Stats reports flush counters of the current connection.
func (c *Container) Stats() flush.Stats {
	if c.flusher == nil {
		return flush.Stats{}
	}
	return c.flusher.Stats()
}

// Store exposes the connected store for maintenance tasks such as backup.
// It is nil while disconnected.
func (c *Container) Store() *store.Store { return c.store }
