package graphsink

import (
	"context"
	"errors"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

// dispatch queues ev and, once it is accepted, forwards the notification to
// the observers. A rejected event is neither stored nor forwarded. An event
// whose automatic flush failed was accepted, so it is still forwarded and
// the flush error is returned alongside any observer error.
func (c *Container) dispatch(ev model.Event, forward func() error) error {
	if err := c.ready(); err != nil {
		return err
	}
	accepted, err := c.flusher.Enqueue(context.Background(), ev)
	if !accepted {
		return err
	}
	return errors.Join(err, forward())
}

func (c *Container) NodeAdded(sourceID string, timeID uint64, nodeID string) error {
	return c.dispatch(model.AddNode{NodeID: nodeID}, func() error {
		return c.SendNodeAdded(sourceID, timeID, nodeID)
	})
}

func (c *Container) NodeRemoved(sourceID string, timeID uint64, nodeID string) error {
	return c.dispatch(model.RemoveNode{NodeID: nodeID}, func() error {
		return c.SendNodeRemoved(sourceID, timeID, nodeID)
	})
}

// EdgeAdded in Strict mode fails with *model.ElementNotFoundError when an
// endpoint is neither stored nor queued.
func (c *Container) EdgeAdded(sourceID string, timeID uint64, edgeID, fromNodeID, toNodeID string, directed bool) error {
	ev := model.AddEdge{EdgeID: edgeID, From: fromNodeID, To: toNodeID, Directed: directed}
	return c.dispatch(ev, func() error {
		return c.SendEdgeAdded(sourceID, timeID, edgeID, fromNodeID, toNodeID, directed)
	})
}

func (c *Container) EdgeRemoved(sourceID string, timeID uint64, edgeID string) error {
	return c.dispatch(model.RemoveEdge{EdgeID: edgeID}, func() error {
		return c.SendEdgeRemoved(sourceID, timeID, edgeID)
	})
}

// GraphCleared removes all nodes and edges. Graph attributes survive.
func (c *Container) GraphCleared(sourceID string, timeID uint64) error {
	return c.dispatch(model.ClearGraph{}, func() error {
		return c.SendGraphCleared(sourceID, timeID)
	})
}

// StepBegins records step as the graph's "step" attribute.
func (c *Container) StepBegins(sourceID string, timeID uint64, step float64) error {
	return c.dispatch(model.StepBegin{Step: step}, func() error {
		return c.SendStepBegins(sourceID, timeID, step)
	})
}

func (c *Container) GraphAttributeAdded(sourceID string, timeID uint64, key string, value model.Value) error {
	return c.dispatch(model.ChangeGraphAttribute{Key: key, Value: value}, func() error {
		return c.SendGraphAttributeAdded(sourceID, timeID, key, value)
	})
}

func (c *Container) GraphAttributeChanged(sourceID string, timeID uint64, key string, oldValue, newValue model.Value) error {
	return c.dispatch(model.ChangeGraphAttribute{Key: key, Value: newValue}, func() error {
		return c.SendGraphAttributeChanged(sourceID, timeID, key, oldValue, newValue)
	})
}

func (c *Container) GraphAttributeRemoved(sourceID string, timeID uint64, key string) error {
	return c.dispatch(model.ChangeGraphAttribute{Key: key, Value: model.Absent()}, func() error {
		return c.SendGraphAttributeRemoved(sourceID, timeID, key)
	})
}

func (c *Container) NodeAttributeAdded(sourceID string, timeID uint64, nodeID, key string, value model.Value) error {
	return c.dispatch(model.ChangeNodeAttribute{NodeID: nodeID, Key: key, Value: value}, func() error {
		return c.SendNodeAttributeAdded(sourceID, timeID, nodeID, key, value)
	})
}

func (c *Container) NodeAttributeChanged(sourceID string, timeID uint64, nodeID, key string, oldValue, newValue model.Value) error {
	return c.dispatch(model.ChangeNodeAttribute{NodeID: nodeID, Key: key, Value: newValue}, func() error {
		return c.SendNodeAttributeChanged(sourceID, timeID, nodeID, key, oldValue, newValue)
	})
}

func (c *Container) NodeAttributeRemoved(sourceID string, timeID uint64, nodeID, key string) error {
	return c.dispatch(model.ChangeNodeAttribute{NodeID: nodeID, Key: key, Value: model.Absent()}, func() error {
		return c.SendNodeAttributeRemoved(sourceID, timeID, nodeID, key)
	})
}

func (c *Container) EdgeAttributeAdded(sourceID string, timeID uint64, edgeID, key string, value model.Value) error {
	return c.dispatch(model.ChangeEdgeAttribute{EdgeID: edgeID, Key: key, Value: value}, func() error {
		return c.SendEdgeAttributeAdded(sourceID, timeID, edgeID, key, value)
	})
}

func (c *Container) EdgeAttributeChanged(sourceID string, timeID uint64, edgeID, key string, oldValue, newValue model.Value) error {
	return c.dispatch(model.ChangeEdgeAttribute{EdgeID: edgeID, Key: key, Value: newValue}, func() error {
		return c.SendEdgeAttributeChanged(sourceID, timeID, edgeID, key, oldValue, newValue)
	})
}

func (c *Container) EdgeAttributeRemoved(sourceID string, timeID uint64, edgeID, key string) error {
	return c.dispatch(model.ChangeEdgeAttribute{EdgeID: edgeID, Key: key, Value: model.Absent()}, func() error {
		return c.SendEdgeAttributeRemoved(sourceID, timeID, edgeID, key)
	})
}
