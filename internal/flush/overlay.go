package flush

import "github.com/i5heu/ouroboros-graph/pkg/model"

// pendingNodes tracks the net node existence implied by events that are
// queued but not yet flushed. Combined with the committed store it answers
// "will this node exist when the edge is applied" without forcing a flush.
type pendingNodes struct {
	nodes   map[string]bool
	cleared bool
}

func newPendingNodes() *pendingNodes {
	return &pendingNodes{nodes: make(map[string]bool)}
}

func (p *pendingNodes) observe(ev model.Event) {
	switch e := ev.(type) {
	case model.AddNode:
		p.nodes[e.NodeID] = true
	case model.RemoveNode:
		p.nodes[e.NodeID] = false
	case model.ClearGraph:
		p.nodes = make(map[string]bool)
		p.cleared = true
	}
}

// lookup returns known=false when the queue says nothing about id and the
// store must be asked.
func (p *pendingNodes) lookup(id string) (exists, known bool) {
	if v, ok := p.nodes[id]; ok {
		return v, true
	}
	if p.cleared {
		return false, true
	}
	return false, false
}

func (p *pendingNodes) reset() {
	if len(p.nodes) > 0 {
		p.nodes = make(map[string]bool)
	}
	p.cleared = false
}
