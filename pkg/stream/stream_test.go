package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

type failing struct{ Recorder }

func (f *failing) EdgeRemoved(string, uint64, string) error { return assert.AnError }

func TestSourceFansOutInOrder(t *testing.T) {
	var s Source
	first, second := &Recorder{}, &Recorder{}
	s.AddSink(first)
	s.AddSink(second)
	assert.Equal(t, 2, s.Sinks())

	require.NoError(t, s.SendNodeAdded("src", 0, "a"))
	require.NoError(t, s.SendNodeAttributeChanged("src", 1, "a", "k", model.Int(1), model.Int(2)))
	require.NoError(t, s.SendStepBegins("src", 2, 1))

	want := []model.Event{
		model.AddNode{NodeID: "a"},
		model.ChangeNodeAttribute{NodeID: "a", Key: "k", Value: model.Int(2)},
		model.StepBegin{Step: 1},
	}
	assert.Equal(t, want, first.Events)
	assert.Equal(t, want, second.Events)
}

func TestSourceCallsEverySinkOnError(t *testing.T) {
	var s Source
	bad, good := &failing{}, &Recorder{}
	s.AddSink(bad)
	s.AddSink(good)

	err := s.SendEdgeRemoved("src", 0, "e")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []model.Event{model.RemoveEdge{EdgeID: "e"}}, good.Events)
}

func TestRemoveAndClearSinks(t *testing.T) {
	var s Source
	a, b := &Recorder{}, &Recorder{}
	s.AddSink(a)
	s.AddSink(b)

	s.RemoveSink(a)
	require.NoError(t, s.SendGraphCleared("src", 0))
	assert.Empty(t, a.Events)
	assert.Len(t, b.Events, 1)

	s.ClearSinks()
	assert.Zero(t, s.Sinks())
	require.NoError(t, s.SendGraphCleared("src", 1))
	assert.Len(t, b.Events, 1)
}

func TestReplayMapsAbsentToRemoval(t *testing.T) {
	events := []model.Event{
		model.AddNode{NodeID: "a"},
		model.AddEdge{EdgeID: "aa", From: "a", To: "a", Directed: true},
		model.ChangeEdgeAttribute{EdgeID: "aa", Key: "w", Value: model.Float(1)},
		model.ChangeEdgeAttribute{EdgeID: "aa", Key: "w"},
		model.ChangeGraphAttribute{Key: "g", Value: model.Bool(true)},
		model.ChangeGraphAttribute{Key: "g"},
		model.RemoveEdge{EdgeID: "aa"},
		model.RemoveNode{NodeID: "a"},
		model.ClearGraph{},
		model.StepBegin{Step: 3},
	}

	rec := &Recorder{}
	require.NoError(t, Replay(rec, "src", events))
	assert.Equal(t, events, rec.Events)
}

func TestReplayStopsOnError(t *testing.T) {
	f := &failing{}
	err := Replay(f, "src", []model.Event{
		model.AddNode{NodeID: "a"},
		model.RemoveEdge{EdgeID: "e"},
		model.AddNode{NodeID: "b"},
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, f.Events, 1)
}
