package model

import "strconv"

// EventKind discriminates the variants of Event.
type EventKind uint8

const (
	EventAddNode EventKind = iota + 1
	EventRemoveNode
	EventChangeNodeAttribute
	EventAddEdge
	EventRemoveEdge
	EventChangeEdgeAttribute
	EventChangeGraphAttribute
	EventClearGraph
	EventStepBegin
)

var eventKindNames = map[EventKind]string{
	EventAddNode:              "add_node",
	EventRemoveNode:           "remove_node",
	EventChangeNodeAttribute:  "change_node_attribute",
	EventAddEdge:              "add_edge",
	EventRemoveEdge:           "remove_edge",
	EventChangeEdgeAttribute:  "change_edge_attribute",
	EventChangeGraphAttribute: "change_graph_attribute",
	EventClearGraph:           "clear_graph",
	EventStepBegin:            "step_begin",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "EventKind(" + strconv.Itoa(int(k)) + ")"
}

// Event is one mutation notification waiting to be persisted. Events are
// values; none of the variants is modified after construction.
type Event interface {
	Kind() EventKind
}

type AddNode struct {
	NodeID string
}

type RemoveNode struct {
	NodeID string
}

// ChangeNodeAttribute sets Key to Value, or removes Key when Value is absent.
type ChangeNodeAttribute struct {
	NodeID string
	Key    string
	Value  Value
}

// AddEdge references its endpoints by id. They are resolved against the
// store when the event is flushed, not when it is queued.
type AddEdge struct {
	EdgeID   string
	From     string
	To       string
	Directed bool
}

type RemoveEdge struct {
	EdgeID string
}

type ChangeEdgeAttribute struct {
	EdgeID string
	Key    string
	Value  Value
}

type ChangeGraphAttribute struct {
	Key   string
	Value Value
}

type ClearGraph struct{}

// StepBegin advances the logical clock of the graph.
type StepBegin struct {
	Step float64
}

func (AddNode) Kind() EventKind              { return EventAddNode }
func (RemoveNode) Kind() EventKind           { return EventRemoveNode }
func (ChangeNodeAttribute) Kind() EventKind  { return EventChangeNodeAttribute }
func (AddEdge) Kind() EventKind              { return EventAddEdge }
func (RemoveEdge) Kind() EventKind           { return EventRemoveEdge }
func (ChangeEdgeAttribute) Kind() EventKind  { return EventChangeEdgeAttribute }
func (ChangeGraphAttribute) Kind() EventKind { return EventChangeGraphAttribute }
func (ClearGraph) Kind() EventKind           { return EventClearGraph }
func (StepBegin) Kind() EventKind            { return EventStepBegin }
