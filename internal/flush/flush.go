// Package flush moves queued graph events into the store, one transaction
// per batch.
package flush

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-graph/internal/consistency"
	"github.com/i5heu/ouroboros-graph/internal/metrics"
	"github.com/i5heu/ouroboros-graph/internal/queue"
	"github.com/i5heu/ouroboros-graph/internal/store"
	"github.com/i5heu/ouroboros-graph/internal/translate"
	"github.com/i5heu/ouroboros-graph/pkg/model"
)

// Trigger names why a flush ran.
type Trigger string

const (
	TriggerThreshold Trigger = "threshold"
	TriggerRead      Trigger = "read"
	TriggerShutdown  Trigger = "shutdown"
	TriggerExplicit  Trigger = "explicit"
)

// Result summarizes one committed flush.
type Result struct {
	Events    int
	Changed   int
	Unchanged int
	Skipped   int
	Duration  time.Duration
}

// Stats are lifetime counters of a Flusher.
type Stats struct {
	Flushes      uint64
	Failures     uint64
	EventsStored uint64
	EventsLost   uint64
}

// Flusher owns the queue and applies it to the store. It assumes a single
// writer and does no locking.
type Flusher struct {
	store   *store.Store
	queue   *queue.EventQueue
	policy  *consistency.Policy
	log     *logrus.Logger
	pending *pendingNodes
	stats   Stats
}

func New(st *store.Store, q *queue.EventQueue, policy *consistency.Policy, log *logrus.Logger) *Flusher {
	if log == nil {
		log = logrus.New()
	}
	f := &Flusher{
		store:  st,
		queue:  q,
		policy: policy,
		log:    log,
	}
	if policy.Mode() == consistency.Strict {
		f.pending = newPendingNodes()
	}
	return f
}

// Enqueue queues ev and flushes when the queue passes its threshold.
// accepted is false when ev was rejected before queueing; in that case err
// explains why. A failed automatic flush returns accepted=true with the
// *model.TransactionError.
func (f *Flusher) Enqueue(ctx context.Context, ev model.Event) (accepted bool, err error) {
	if edge, ok := ev.(model.AddEdge); ok && f.pending != nil {
		if err := f.policy.Validate(f.nodeExists, edge); err != nil {
			metrics.EventsRejected.WithLabelValues("missing_endpoint").Inc()
			return false, err
		}
	}

	overflow := f.queue.Append(ev)
	if f.pending != nil {
		f.pending.observe(ev)
	}
	metrics.EventsEnqueued.WithLabelValues(ev.Kind().String()).Inc()
	metrics.QueueLength.Set(float64(f.queue.Len()))

	if overflow {
		if _, err := f.Flush(ctx, TriggerThreshold); err != nil {
			return true, err
		}
	}
	return true, nil
}

// nodeExists answers from queued events first, then from the committed store.
func (f *Flusher) nodeExists(id string) (bool, error) {
	if exists, known := f.pending.lookup(id); known {
		return exists, nil
	}
	var exists bool
	err := f.store.View(func(tx *store.Txn) error {
		var err error
		exists, err = tx.Exists(model.Node(id))
		return err
	})
	return exists, err
}

// Pending is the number of queued events.
func (f *Flusher) Pending() int { return f.queue.Len() }

// Flush drains the queue and applies every event in one transaction. On
// failure the drained events are dropped, not requeued, and a
// *model.TransactionError is returned. An empty queue is a no-op.
//
// ctx is only consulted before the queue is drained; a flush that has
// started always runs to commit or rollback.
func (f *Flusher) Flush(ctx context.Context, trigger Trigger) (Result, error) {
	if f.queue.Len() == 0 {
		return Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	events := f.queue.Drain()
	if f.pending != nil {
		f.pending.reset()
	}
	metrics.QueueLength.Set(0)

	res, err := f.apply(events)
	res.Events = len(events)
	res.Duration = time.Since(start)
	if err != nil {
		f.policy.DropWarnings()
		return res, f.fail(events, trigger, err)
	}
	f.policy.PublishWarnings()

	f.stats.Flushes++
	f.stats.EventsStored += uint64(len(events))
	metrics.Flushes.WithLabelValues(string(trigger)).Inc()
	metrics.FlushDuration.Observe(res.Duration.Seconds())
	metrics.FlushBatchSize.Observe(float64(len(events)))
	if res.Skipped > 0 {
		metrics.EdgesSkipped.Add(float64(res.Skipped))
	}

	f.log.WithFields(logrus.Fields{
		"trigger":   trigger,
		"events":    res.Events,
		"changed":   res.Changed,
		"unchanged": res.Unchanged,
		"skipped":   res.Skipped,
		"duration":  res.Duration,
	}).Debug("flush committed")

	return res, nil
}

func (f *Flusher) apply(events []model.Event) (Result, error) {
	var res Result

	tx, err := f.store.Begin(true)
	if err != nil {
		return res, err
	}
	defer tx.Discard()

	for i, ev := range events {
		op, err := translate.Translate(ev)
		if err != nil {
			return res, err
		}
		outcome, err := op.Apply(tx, f.policy)
		if err != nil {
			f.log.WithFields(logrus.Fields{
				"position": i,
				"event":    ev.Kind().String(),
			}).WithError(err).Error("flush operation failed")
			return res, err
		}
		switch outcome {
		case translate.Changed:
			res.Changed++
		case translate.Unchanged:
			res.Unchanged++
		case translate.Skipped:
			res.Skipped++
		}
	}

	return res, tx.Commit()
}

func (f *Flusher) fail(events []model.Event, trigger Trigger, err error) error {
	f.stats.Failures++
	f.stats.EventsLost += uint64(len(events))
	metrics.FlushFailures.Inc()
	metrics.EventsLost.Add(float64(len(events)))

	f.log.WithFields(logrus.Fields{
		"trigger": trigger,
		"events":  len(events),
	}).WithError(err).Error("flush transaction abandoned, events lost")

	return &model.TransactionError{Events: len(events), Err: err}
}

func (f *Flusher) Stats() Stats { return f.stats }
