// Package queue buffers graph events between their arrival and the flush
// that persists them.
package queue

import "github.com/i5heu/ouroboros-graph/pkg/model"

// DefaultThreshold is the number of buffered events after which an append
// asks for a flush.
const DefaultThreshold = 1000

// EventQueue is a FIFO of pending events. It is drained as a whole, never
// per event. Not safe for concurrent use.
type EventQueue struct {
	events    []model.Event
	threshold int
}

// New returns a queue. A threshold below 1 selects DefaultThreshold.
func New(threshold int) *EventQueue {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &EventQueue{
		events:    make([]model.Event, 0, threshold+1),
		threshold: threshold,
	}
}

// Append adds ev at the tail and reports whether the queue now holds more
// events than the threshold.
func (q *EventQueue) Append(ev model.Event) (overflow bool) {
	q.events = append(q.events, ev)
	return len(q.events) > q.threshold
}

// Drain removes and returns every buffered event in arrival order.
func (q *EventQueue) Drain() []model.Event {
	if len(q.events) == 0 {
		return nil
	}
	drained := q.events
	q.events = make([]model.Event, 0, q.threshold+1)
	return drained
}

func (q *EventQueue) Len() int { return len(q.events) }

func (q *EventQueue) Threshold() int { return q.threshold }
