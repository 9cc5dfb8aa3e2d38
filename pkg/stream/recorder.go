package stream

import "github.com/i5heu/ouroboros-graph/pkg/model"

// Recorder is a Sink that keeps every notification as a model.Event, in
// arrival order. Useful as an observer in tests and for replaying a stream
// into another sink.
type Recorder struct {
	Events []model.Event
}

func (r *Recorder) add(ev model.Event) error {
	r.Events = append(r.Events, ev)
	return nil
}

func (r *Recorder) NodeAdded(_ string, _ uint64, nodeID string) error {
	return r.add(model.AddNode{NodeID: nodeID})
}

func (r *Recorder) NodeRemoved(_ string, _ uint64, nodeID string) error {
	return r.add(model.RemoveNode{NodeID: nodeID})
}

func (r *Recorder) EdgeAdded(_ string, _ uint64, edgeID, fromNodeID, toNodeID string, directed bool) error {
	return r.add(model.AddEdge{EdgeID: edgeID, From: fromNodeID, To: toNodeID, Directed: directed})
}

func (r *Recorder) EdgeRemoved(_ string, _ uint64, edgeID string) error {
	return r.add(model.RemoveEdge{EdgeID: edgeID})
}

func (r *Recorder) GraphCleared(string, uint64) error {
	return r.add(model.ClearGraph{})
}

func (r *Recorder) StepBegins(_ string, _ uint64, step float64) error {
	return r.add(model.StepBegin{Step: step})
}

func (r *Recorder) GraphAttributeAdded(_ string, _ uint64, key string, value model.Value) error {
	return r.add(model.ChangeGraphAttribute{Key: key, Value: value})
}

func (r *Recorder) GraphAttributeChanged(_ string, _ uint64, key string, _, newValue model.Value) error {
	return r.add(model.ChangeGraphAttribute{Key: key, Value: newValue})
}

func (r *Recorder) GraphAttributeRemoved(_ string, _ uint64, key string) error {
	return r.add(model.ChangeGraphAttribute{Key: key})
}

func (r *Recorder) NodeAttributeAdded(_ string, _ uint64, nodeID, key string, value model.Value) error {
	return r.add(model.ChangeNodeAttribute{NodeID: nodeID, Key: key, Value: value})
}

func (r *Recorder) NodeAttributeChanged(_ string, _ uint64, nodeID, key string, _, newValue model.Value) error {
	return r.add(model.ChangeNodeAttribute{NodeID: nodeID, Key: key, Value: newValue})
}

func (r *Recorder) NodeAttributeRemoved(_ string, _ uint64, nodeID, key string) error {
	return r.add(model.ChangeNodeAttribute{NodeID: nodeID, Key: key})
}

func (r *Recorder) EdgeAttributeAdded(_ string, _ uint64, edgeID, key string, value model.Value) error {
	return r.add(model.ChangeEdgeAttribute{EdgeID: edgeID, Key: key, Value: value})
}

func (r *Recorder) EdgeAttributeChanged(_ string, _ uint64, edgeID, key string, _, newValue model.Value) error {
	return r.add(model.ChangeEdgeAttribute{EdgeID: edgeID, Key: key, Value: newValue})
}

func (r *Recorder) EdgeAttributeRemoved(_ string, _ uint64, edgeID, key string) error {
	return r.add(model.ChangeEdgeAttribute{EdgeID: edgeID, Key: key})
}

// Replay pushes events into sink as if they had just arrived.
func Replay(sink Sink, sourceID string, events []model.Event) error {
	for i, ev := range events {
		timeID := uint64(i)
		var err error
		switch e := ev.(type) {
		case model.AddNode:
			err = sink.NodeAdded(sourceID, timeID, e.NodeID)
		case model.RemoveNode:
			err = sink.NodeRemoved(sourceID, timeID, e.NodeID)
		case model.ChangeNodeAttribute:
			if e.Value.IsAbsent() {
				err = sink.NodeAttributeRemoved(sourceID, timeID, e.NodeID, e.Key)
			} else {
				err = sink.NodeAttributeAdded(sourceID, timeID, e.NodeID, e.Key, e.Value)
			}
		case model.AddEdge:
			err = sink.EdgeAdded(sourceID, timeID, e.EdgeID, e.From, e.To, e.Directed)
		case model.RemoveEdge:
			err = sink.EdgeRemoved(sourceID, timeID, e.EdgeID)
		case model.ChangeEdgeAttribute:
			if e.Value.IsAbsent() {
				err = sink.EdgeAttributeRemoved(sourceID, timeID, e.EdgeID, e.Key)
			} else {
				err = sink.EdgeAttributeAdded(sourceID, timeID, e.EdgeID, e.Key, e.Value)
			}
		case model.ChangeGraphAttribute:
			if e.Value.IsAbsent() {
				err = sink.GraphAttributeRemoved(sourceID, timeID, e.Key)
			} else {
				err = sink.GraphAttributeAdded(sourceID, timeID, e.Key, e.Value)
			}
		case model.ClearGraph:
			err = sink.GraphCleared(sourceID, timeID)
		case model.StepBegin:
			err = sink.StepBegins(sourceID, timeID, e.Step)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
