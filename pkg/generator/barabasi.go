// Package generator produces synthetic graph streams.
package generator

import (
	"errors"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/i5heu/ouroboros-graph/pkg/model"
	"github.com/i5heu/ouroboros-graph/pkg/stream"
)

var ErrNotStarted = errors.New("generator: Begin not called")

// BarabasiAlbert grows a scale-free graph by preferential attachment. Each
// step adds one node and links it to up to MaxLinks existing nodes, picked
// with probability proportional to their degree.
type BarabasiAlbert struct {
	stream.Source

	sourceID   string
	rng        *rand.Rand
	maxLinks   int
	exact      bool
	steps      bool
	degreeAttr string

	degrees   []int
	endpoints []int // every edge end, so a uniform draw is degree-weighted
	timeID    uint64
	started   bool
}

type Option func(*BarabasiAlbert)

// WithMaxLinks sets the upper bound of new edges per step. Default 1.
func WithMaxLinks(n int) Option {
	return func(g *BarabasiAlbert) {
		if n > 0 {
			g.maxLinks = n
		}
	}
}

// WithExactLinks makes every step add exactly MaxLinks edges, as long as
// enough nodes exist.
func WithExactLinks() Option {
	return func(g *BarabasiAlbert) { g.exact = true }
}

func WithSeed(seed uint64) Option {
	return func(g *BarabasiAlbert) { g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithSteps emits StepBegins before every step, numbered from 1.
func WithSteps() Option {
	return func(g *BarabasiAlbert) { g.steps = true }
}

// WithDegreeAttribute keeps an integer attribute named key on every node
// up to date with its degree.
func WithDegreeAttribute(key string) Option {
	return func(g *BarabasiAlbert) { g.degreeAttr = key }
}

func NewBarabasiAlbert(opts ...Option) *BarabasiAlbert {
	g := &BarabasiAlbert{
		sourceID: uuid.NewString(),
		maxLinks: 1,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// SourceID is the id passed to sinks with every notification.
func (g *BarabasiAlbert) SourceID() string { return g.sourceID }

// Nodes is the number of nodes generated so far.
func (g *BarabasiAlbert) Nodes() int { return len(g.degrees) }

func (g *BarabasiAlbert) nextTime() uint64 {
	t := g.timeID
	g.timeID++
	return t
}

func nodeID(i int) string { return strconv.Itoa(i) }

func edgeID(from, to int) string { return nodeID(from) + "_" + nodeID(to) }

// Begin emits the seed graph: nodes "0" and "1" joined by edge "0_1".
func (g *BarabasiAlbert) Begin() error {
	g.degrees = g.degrees[:0]
	g.endpoints = g.endpoints[:0]
	g.started = true

	if err := g.addNode(); err != nil {
		return err
	}
	if err := g.addNode(); err != nil {
		return err
	}
	return g.addEdge(0, 1)
}

// NextEvents runs one growth step.
func (g *BarabasiAlbert) NextEvents() error {
	if !g.started {
		return ErrNotStarted
	}

	newNode := len(g.degrees)
	if g.steps {
		if err := g.SendStepBegins(g.sourceID, g.nextTime(), float64(newNode-1)); err != nil {
			return err
		}
	}

	links := g.maxLinks
	if !g.exact && links > 1 {
		links = 1 + g.rng.IntN(links)
	}
	links = min(links, newNode)

	targets := g.pickTargets(links)
	if err := g.addNode(); err != nil {
		return err
	}
	for _, target := range targets {
		if err := g.addEdge(target, newNode); err != nil {
			return err
		}
	}
	return nil
}

// End stops generation. Later NextEvents calls fail until Begin runs again.
func (g *BarabasiAlbert) End() error {
	g.started = false
	return nil
}

// pickTargets draws n distinct existing nodes, weighted by degree. Draws
// from the endpoint list are constant time; repeated picks are rejected, and
// after too many rejections the rest is drawn by scanning the degrees.
func (g *BarabasiAlbert) pickTargets(n int) []int {
	chosen := make(map[int]bool, n)
	targets := make([]int, 0, n)
	if len(g.endpoints) == 0 {
		return targets
	}

	for tries := 0; len(targets) < n && tries < 8*n; tries++ {
		i := g.endpoints[g.rng.IntN(len(g.endpoints))]
		if chosen[i] {
			continue
		}
		chosen[i] = true
		targets = append(targets, i)
	}
	if len(targets) == n {
		return targets
	}

	sum := len(g.endpoints)
	for _, i := range targets {
		sum -= g.degrees[i]
	}
	for len(targets) < n && sum > 0 {
		r := g.rng.IntN(sum)
		for i, d := range g.degrees {
			if chosen[i] {
				continue
			}
			if r < d {
				chosen[i] = true
				targets = append(targets, i)
				sum -= d
				break
			}
			r -= d
		}
	}
	return targets
}

func (g *BarabasiAlbert) addNode() error {
	id := len(g.degrees)
	g.degrees = append(g.degrees, 0)
	return g.SendNodeAdded(g.sourceID, g.nextTime(), nodeID(id))
}

func (g *BarabasiAlbert) addEdge(from, to int) error {
	if err := g.SendEdgeAdded(g.sourceID, g.nextTime(), edgeID(from, to), nodeID(from), nodeID(to), false); err != nil {
		return err
	}
	g.degrees[from]++
	g.degrees[to]++
	g.endpoints = append(g.endpoints, from, to)

	if g.degreeAttr == "" {
		return nil
	}
	return errors.Join(g.sendDegree(from), g.sendDegree(to))
}

func (g *BarabasiAlbert) sendDegree(node int) error {
	v := model.Int(int64(g.degrees[node]))
	if g.degrees[node] == 1 {
		return g.SendNodeAttributeAdded(g.sourceID, g.nextTime(), nodeID(node), g.degreeAttr, v)
	}
	old := model.Int(int64(g.degrees[node] - 1))
	return g.SendNodeAttributeChanged(g.sourceID, g.nextTime(), nodeID(node), g.degreeAttr, old, v)
}
