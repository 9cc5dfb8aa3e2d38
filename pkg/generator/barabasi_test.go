package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/i5heu/ouroboros-graph/pkg/model"
	"github.com/i5heu/ouroboros-graph/pkg/stream"
)

func TestBeginEmitsSeedGraph(t *testing.T) {
	g := NewBarabasiAlbert(WithSeed(1))
	rec := &stream.Recorder{}
	g.AddSink(rec)

	require.NoError(t, g.Begin())
	assert.Equal(t, []model.Event{
		model.AddNode{NodeID: "0"},
		model.AddNode{NodeID: "1"},
		model.AddEdge{EdgeID: "0_1", From: "0", To: "1"},
	}, rec.Events)
	assert.Equal(t, 2, g.Nodes())
}

func TestNextEventsRequiresBegin(t *testing.T) {
	g := NewBarabasiAlbert()
	assert.ErrorIs(t, g.NextEvents(), ErrNotStarted)

	require.NoError(t, g.Begin())
	require.NoError(t, g.NextEvents())
	require.NoError(t, g.End())
	assert.ErrorIs(t, g.NextEvents(), ErrNotStarted)
}

func TestSeedIsDeterministic(t *testing.T) {
	run := func() []model.Event {
		g := NewBarabasiAlbert(WithSeed(42), WithMaxLinks(3))
		rec := &stream.Recorder{}
		g.AddSink(rec)
		require.NoError(t, g.Begin())
		for i := 0; i < 50; i++ {
			require.NoError(t, g.NextEvents())
		}
		return rec.Events
	}
	assert.Equal(t, run(), run())
}

func TestStepsAndDegreeAttribute(t *testing.T) {
	g := NewBarabasiAlbert(WithSeed(7), WithSteps(), WithDegreeAttribute("degree"))
	rec := &stream.Recorder{}
	g.AddSink(rec)

	require.NoError(t, g.Begin())
	require.NoError(t, g.NextEvents())

	assert.Contains(t, rec.Events, model.StepBegin{Step: 1})
	assert.Contains(t, rec.Events, model.AddNode{NodeID: "2"})
	assert.Contains(t, rec.Events, model.ChangeNodeAttribute{NodeID: "2", Key: "degree", Value: model.Int(1)})
}

func TestGeneratedStreamIsWellFormed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		links := rapid.IntRange(1, 4).Draw(t, "links")
		steps := rapid.IntRange(0, 40).Draw(t, "steps")
		opts := []Option{WithSeed(rapid.Uint64().Draw(t, "seed")), WithMaxLinks(links)}
		exact := rapid.Bool().Draw(t, "exact")
		if exact {
			opts = append(opts, WithExactLinks())
		}

		g := NewBarabasiAlbert(opts...)
		rec := &stream.Recorder{}
		g.AddSink(rec)
		if err := g.Begin(); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < steps; i++ {
			if err := g.NextEvents(); err != nil {
				t.Fatal(err)
			}
		}

		nodes := make(map[string]bool)
		edges := make(map[string]bool)
		perNode := make(map[string]int)
		for _, ev := range rec.Events {
			switch e := ev.(type) {
			case model.AddNode:
				if nodes[e.NodeID] {
					t.Fatalf("node %q added twice", e.NodeID)
				}
				nodes[e.NodeID] = true
			case model.AddEdge:
				if !nodes[e.From] || !nodes[e.To] {
					t.Fatalf("edge %q references unknown node", e.EdgeID)
				}
				if e.From == e.To {
					t.Fatalf("self loop %q", e.EdgeID)
				}
				if edges[e.EdgeID] {
					t.Fatalf("edge %q added twice", e.EdgeID)
				}
				edges[e.EdgeID] = true
				perNode[e.To]++
			}
		}

		if len(nodes) != steps+2 {
			t.Fatalf("%d nodes after %d steps", len(nodes), steps)
		}
		for id, n := range perNode {
			if id == "1" {
				continue
			}
			if n > links {
				t.Fatalf("node %s got %d links, max %d", id, n, links)
			}
		}
	})
}

func TestExactLinksReachEveryEarlierNode(t *testing.T) {
	g := NewBarabasiAlbert(WithSeed(3), WithMaxLinks(5), WithExactLinks())
	rec := &stream.Recorder{}
	g.AddSink(rec)
	require.NoError(t, g.Begin())
	for i := 0; i < 10; i++ {
		require.NoError(t, g.NextEvents())
	}

	perNode := make(map[string]int)
	for _, ev := range rec.Events {
		if e, ok := ev.(model.AddEdge); ok {
			perNode[e.To]++
		}
	}
	// Node k can only link to the k nodes before it.
	for k := 2; k < 12; k++ {
		assert.Equal(t, min(5, k), perNode[nodeID(k)], "node %d", k)
	}
}

func TestHubsAttractMoreLinks(t *testing.T) {
	g := NewBarabasiAlbert(WithSeed(5), WithMaxLinks(2))
	require.NoError(t, g.Begin())
	for i := 0; i < 100000; i++ {
		require.NoError(t, g.NextEvents())
	}

	assert.Equal(t, 100002, g.Nodes())
	maxDeg, sum := 0, 0
	for _, d := range g.degrees {
		maxDeg = max(maxDeg, d)
		sum += d
	}
	assert.Len(t, g.endpoints, sum)
	// Uniform attachment keeps the top degree near log n; preferential
	// attachment grows it with the square root of n.
	assert.Greater(t, maxDeg, 100)
}
