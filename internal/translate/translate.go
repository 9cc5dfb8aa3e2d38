// Package translate turns queued graph events into store operations.
package translate

import (
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-graph/internal/consistency"
	"github.com/i5heu/ouroboros-graph/internal/store"
	"github.com/i5heu/ouroboros-graph/pkg/model"
)

var ErrUnknownEvent = errors.New("translate: unknown event")

type OpKind uint8

const (
	OpUpsertNode OpKind = iota + 1
	// OpDeleteNode cascades to the node's edges.
	OpDeleteNode
	OpSetAttr
	OpRemoveAttr
	OpUpsertEdge
	OpDeleteEdge
	// OpClearAll deletes every node and edge. Graph attributes survive.
	OpClearAll
)

func (k OpKind) String() string {
	switch k {
	case OpUpsertNode:
		return "upsert-node"
	case OpDeleteNode:
		return "delete-node"
	case OpSetAttr:
		return "set-attr"
	case OpRemoveAttr:
		return "remove-attr"
	case OpUpsertEdge:
		return "upsert-edge"
	case OpDeleteEdge:
		return "delete-edge"
	case OpClearAll:
		return "clear-all"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Op is one primitive store operation.
type Op struct {
	Kind   OpKind
	Target model.Element
	Key    string
	Value  model.Value
	// Edge carries the endpoints for OpUpsertEdge.
	Edge model.AddEdge
}

// Translate maps ev to exactly one operation. Attribute events with an
// absent value become removals.
func Translate(ev model.Event) (Op, error) {
	switch e := ev.(type) {
	case model.AddNode:
		return Op{Kind: OpUpsertNode, Target: model.Node(e.NodeID)}, nil
	case model.RemoveNode:
		return Op{Kind: OpDeleteNode, Target: model.Node(e.NodeID)}, nil
	case model.ChangeNodeAttribute:
		return attrOp(model.Node(e.NodeID), e.Key, e.Value), nil
	case model.AddEdge:
		return Op{Kind: OpUpsertEdge, Target: model.Edge(e.EdgeID), Edge: e}, nil
	case model.RemoveEdge:
		return Op{Kind: OpDeleteEdge, Target: model.Edge(e.EdgeID)}, nil
	case model.ChangeEdgeAttribute:
		return attrOp(model.Edge(e.EdgeID), e.Key, e.Value), nil
	case model.ChangeGraphAttribute:
		return attrOp(model.Graph(), e.Key, e.Value), nil
	case model.ClearGraph:
		return Op{Kind: OpClearAll}, nil
	case model.StepBegin:
		return Op{Kind: OpSetAttr, Target: model.Graph(), Key: store.StepAttrKey, Value: model.Float(e.Step)}, nil
	default:
		return Op{}, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func attrOp(target model.Element, key string, v model.Value) Op {
	if v.IsAbsent() {
		return Op{Kind: OpRemoveAttr, Target: target, Key: key}
	}
	return Op{Kind: OpSetAttr, Target: target, Key: key, Value: v}
}

// String names the operation and what it targets, e.g.
// `set-attr node "a" key "w"` or `clear-all`.
func (op Op) String() string {
	switch {
	case op.Kind == OpClearAll:
		return op.Kind.String()
	case op.Target.Kind == model.ElementGraph:
		return fmt.Sprintf("%s graph key %q", op.Kind, op.Key)
	case op.Kind == OpSetAttr || op.Kind == OpRemoveAttr:
		return fmt.Sprintf("%s %s %q key %q", op.Kind, op.Target.Kind, op.Target.ID, op.Key)
	default:
		return fmt.Sprintf("%s %s %q", op.Kind, op.Target.Kind, op.Target.ID)
	}
}

// Tx is the store surface operations are applied to. *store.Txn implements it.
type Tx interface {
	consistency.NodeStore
	DeleteNode(id string) (bool, error)
	UpsertEdge(id string, rec model.EdgeRecord) (bool, error)
	DeleteEdge(id string) (bool, error)
	SetAttr(el model.Element, key string, v model.Value) (bool, error)
	RemoveAttr(el model.Element, key string) (bool, error)
	ClearAll() (cleared bool, err error)
}

// Resolver settles missing edge endpoints before an edge upsert.
type Resolver interface {
	Resolve(tx consistency.NodeStore, edge model.AddEdge) (consistency.Decision, error)
}

// Outcome reports what applying an Op did to the store.
type Outcome uint8

const (
	Changed Outcome = iota
	// Unchanged means the op was valid but had nothing to do, e.g. an upsert
	// of an existing element.
	Unchanged
	// Skipped means the consistency policy dropped an edge.
	Skipped
)

// Apply performs op inside tx.
func (op Op) Apply(tx Tx, resolver Resolver) (Outcome, error) {
	var (
		changed bool
		err     error
	)

	switch op.Kind {
	case OpUpsertNode:
		changed, err = tx.UpsertNode(op.Target.ID)
	case OpDeleteNode:
		changed, err = tx.DeleteNode(op.Target.ID)
	case OpSetAttr:
		changed, err = tx.SetAttr(op.Target, op.Key, op.Value)
	case OpRemoveAttr:
		changed, err = tx.RemoveAttr(op.Target, op.Key)
	case OpUpsertEdge:
		// An existing edge id wins; its endpoints are not re-resolved.
		found, eerr := tx.Exists(op.Target)
		if eerr != nil {
			return Unchanged, eerr
		}
		if found {
			return Unchanged, nil
		}
		decision, rerr := resolver.Resolve(tx, op.Edge)
		if rerr != nil {
			return Unchanged, rerr
		}
		if decision == consistency.Skip {
			return Skipped, nil
		}
		changed, err = tx.UpsertEdge(op.Edge.EdgeID, model.EdgeRecord{
			From:     op.Edge.From,
			To:       op.Edge.To,
			Directed: op.Edge.Directed,
		})
	case OpDeleteEdge:
		changed, err = tx.DeleteEdge(op.Target.ID)
	case OpClearAll:
		changed, err = tx.ClearAll()
	default:
		return Unchanged, fmt.Errorf("translate: cannot apply %s", op.Kind)
	}

	if err != nil {
		return Unchanged, fmt.Errorf("%s: %w", op, err)
	}
	if !changed {
		return Unchanged, nil
	}
	return Changed, nil
}
