// Package stream defines the callback interface through which graph
// mutations are pushed, and Source, the fan-out to attached observers.
package stream

import (
	"errors"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

// ElementSink receives structural mutations.
type ElementSink interface {
	NodeAdded(sourceID string, timeID uint64, nodeID string) error
	NodeRemoved(sourceID string, timeID uint64, nodeID string) error
	EdgeAdded(sourceID string, timeID uint64, edgeID, fromNodeID, toNodeID string, directed bool) error
	EdgeRemoved(sourceID string, timeID uint64, edgeID string) error
	GraphCleared(sourceID string, timeID uint64) error
	StepBegins(sourceID string, timeID uint64, step float64) error
}

// AttributeSink receives attribute mutations. Values outside the closed
// model.Value domain cannot be expressed here; callers convert with model.ValueOf.
type AttributeSink interface {
	GraphAttributeAdded(sourceID string, timeID uint64, key string, value model.Value) error
	GraphAttributeChanged(sourceID string, timeID uint64, key string, oldValue, newValue model.Value) error
	GraphAttributeRemoved(sourceID string, timeID uint64, key string) error

	NodeAttributeAdded(sourceID string, timeID uint64, nodeID, key string, value model.Value) error
	NodeAttributeChanged(sourceID string, timeID uint64, nodeID, key string, oldValue, newValue model.Value) error
	NodeAttributeRemoved(sourceID string, timeID uint64, nodeID, key string) error

	EdgeAttributeAdded(sourceID string, timeID uint64, edgeID, key string, value model.Value) error
	EdgeAttributeChanged(sourceID string, timeID uint64, edgeID, key string, oldValue, newValue model.Value) error
	EdgeAttributeRemoved(sourceID string, timeID uint64, edgeID, key string) error
}

// Sink receives every kind of mutation.
type Sink interface {
	ElementSink
	AttributeSink
}

// Source forwards notifications to its attached sinks in attachment order.
// Every sink is called even when an earlier one fails; the errors are joined.
type Source struct {
	sinks []Sink
}

func (s *Source) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// RemoveSink detaches the first attachment of sink.
func (s *Source) RemoveSink(sink Sink) {
	for i, existing := range s.sinks {
		if existing == sink {
			s.sinks = append(s.sinks[:i], s.sinks[i+1:]...)
			return
		}
	}
}

func (s *Source) ClearSinks() { s.sinks = nil }

func (s *Source) Sinks() int { return len(s.sinks) }

func (s *Source) each(fn func(Sink) error) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := fn(sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Source) SendNodeAdded(sourceID string, timeID uint64, nodeID string) error {
	return s.each(func(k Sink) error { return k.NodeAdded(sourceID, timeID, nodeID) })
}

func (s *Source) SendNodeRemoved(sourceID string, timeID uint64, nodeID string) error {
	return s.each(func(k Sink) error { return k.NodeRemoved(sourceID, timeID, nodeID) })
}

func (s *Source) SendEdgeAdded(sourceID string, timeID uint64, edgeID, fromNodeID, toNodeID string, directed bool) error {
	return s.each(func(k Sink) error { return k.EdgeAdded(sourceID, timeID, edgeID, fromNodeID, toNodeID, directed) })
}

func (s *Source) SendEdgeRemoved(sourceID string, timeID uint64, edgeID string) error {
	return s.each(func(k Sink) error { return k.EdgeRemoved(sourceID, timeID, edgeID) })
}

func (s *Source) SendGraphCleared(sourceID string, timeID uint64) error {
	return s.each(func(k Sink) error { return k.GraphCleared(sourceID, timeID) })
}

func (s *Source) SendStepBegins(sourceID string, timeID uint64, step float64) error {
	return s.each(func(k Sink) error { return k.StepBegins(sourceID, timeID, step) })
}

func (s *Source) SendGraphAttributeAdded(sourceID string, timeID uint64, key string, value model.Value) error {
	return s.each(func(k Sink) error { return k.GraphAttributeAdded(sourceID, timeID, key, value) })
}

func (s *Source) SendGraphAttributeChanged(sourceID string, timeID uint64, key string, oldValue, newValue model.Value) error {
	return s.each(func(k Sink) error { return k.GraphAttributeChanged(sourceID, timeID, key, oldValue, newValue) })
}

func (s *Source) SendGraphAttributeRemoved(sourceID string, timeID uint64, key string) error {
	return s.each(func(k Sink) error { return k.GraphAttributeRemoved(sourceID, timeID, key) })
}

func (s *Source) SendNodeAttributeAdded(sourceID string, timeID uint64, nodeID, key string, value model.Value) error {
	return s.each(func(k Sink) error { return k.NodeAttributeAdded(sourceID, timeID, nodeID, key, value) })
}

func (s *Source) SendNodeAttributeChanged(sourceID string, timeID uint64, nodeID, key string, oldValue, newValue model.Value) error {
	return s.each(func(k Sink) error {
		return k.NodeAttributeChanged(sourceID, timeID, nodeID, key, oldValue, newValue)
	})
}

func (s *Source) SendNodeAttributeRemoved(sourceID string, timeID uint64, nodeID, key string) error {
	return s.each(func(k Sink) error { return k.NodeAttributeRemoved(sourceID, timeID, nodeID, key) })
}

func (s *Source) SendEdgeAttributeAdded(sourceID string, timeID uint64, edgeID, key string, value model.Value) error {
	return s.each(func(k Sink) error { return k.EdgeAttributeAdded(sourceID, timeID, edgeID, key, value) })
}

func (s *Source) SendEdgeAttributeChanged(sourceID string, timeID uint64, edgeID, key string, oldValue, newValue model.Value) error {
	return s.each(func(k Sink) error {
		return k.EdgeAttributeChanged(sourceID, timeID, edgeID, key, oldValue, newValue)
	})
}

func (s *Source) SendEdgeAttributeRemoved(sourceID string, timeID uint64, edgeID, key string) error {
	return s.each(func(k Sink) error { return k.EdgeAttributeRemoved(sourceID, timeID, edgeID, key) })
}
