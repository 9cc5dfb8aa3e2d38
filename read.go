package graphsink

import (
	"context"
	"fmt"

	"github.com/i5heu/ouroboros-graph/internal/flush"
	"github.com/i5heu/ouroboros-graph/internal/store"
	"github.com/i5heu/ouroboros-graph/pkg/model"
)

// Every read flushes the queue first, so it observes all notifications
// received so far. If that flush fails its error is returned and the read
// is not attempted.

func (c *Container) view(ctx context.Context, fn func(*store.Txn) error) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, err := c.flusher.Flush(ctx, flush.TriggerRead); err != nil {
		return err
	}
	return c.store.View(fn)
}

func (c *Container) NodeCount(ctx context.Context) (int64, error) {
	var n int64
	err := c.view(ctx, func(tx *store.Txn) error {
		var err error
		n, err = tx.Count(model.ElementNode)
		return err
	})
	return n, err
}

func (c *Container) EdgeCount(ctx context.Context) (int64, error) {
	var n int64
	err := c.view(ctx, func(tx *store.Txn) error {
		var err error
		n, err = tx.Count(model.ElementEdge)
		return err
	})
	return n, err
}

func (c *Container) exists(ctx context.Context, el model.Element) (bool, error) {
	var found bool
	err := c.view(ctx, func(tx *store.Txn) error {
		var err error
		found, err = tx.Exists(el)
		return err
	})
	return found, err
}

func (c *Container) HasNode(ctx context.Context, nodeID string) (bool, error) {
	return c.exists(ctx, model.Node(nodeID))
}

func (c *Container) HasEdge(ctx context.Context, edgeID string) (bool, error) {
	return c.exists(ctx, model.Edge(edgeID))
}

// Edge returns the endpoints and direction of a stored edge.
func (c *Container) Edge(ctx context.Context, edgeID string) (model.EdgeRecord, bool, error) {
	var (
		rec   model.EdgeRecord
		found bool
	)
	err := c.view(ctx, func(tx *store.Txn) error {
		var err error
		rec, found, err = tx.Edge(edgeID)
		return err
	})
	return rec, found, err
}

func (c *Container) attr(ctx context.Context, el model.Element, key string) (model.Value, bool, error) {
	var (
		v     model.Value
		found bool
	)
	err := c.view(ctx, func(tx *store.Txn) error {
		var err error
		v, found, err = tx.Attr(el, key)
		return err
	})
	return v, found, err
}

func (c *Container) attrs(ctx context.Context, el model.Element) (map[string]model.Value, error) {
	var attrs map[string]model.Value
	err := c.view(ctx, func(tx *store.Txn) error {
		var err error
		attrs, err = tx.Attrs(el)
		return err
	})
	return attrs, err
}

func (c *Container) NodeAttribute(ctx context.Context, nodeID, key string) (model.Value, bool, error) {
	return c.attr(ctx, model.Node(nodeID), key)
}

func (c *Container) NodeAttributes(ctx context.Context, nodeID string) (map[string]model.Value, error) {
	return c.attrs(ctx, model.Node(nodeID))
}

func (c *Container) EdgeAttribute(ctx context.Context, edgeID, key string) (model.Value, bool, error) {
	return c.attr(ctx, model.Edge(edgeID), key)
}

func (c *Container) EdgeAttributes(ctx context.Context, edgeID string) (map[string]model.Value, error) {
	return c.attrs(ctx, model.Edge(edgeID))
}

func (c *Container) GraphAttribute(ctx context.Context, key string) (model.Value, bool, error) {
	return c.attr(ctx, model.Graph(), key)
}

func (c *Container) GraphAttributes(ctx context.Context) (map[string]model.Value, error) {
	return c.attrs(ctx, model.Graph())
}

// Step returns the last step recorded through StepBegins, 0 for a fresh
// store. An integer "step" set as a graph attribute is converted; any other
// kind of value fails with ErrInvalidStep.
func (c *Container) Step(ctx context.Context) (float64, error) {
	v, found, err := c.GraphAttribute(ctx, store.StepAttrKey)
	if err != nil || !found {
		return 0, err
	}
	if step, ok := v.AsFloat(); ok {
		return step, nil
	}
	if step, ok := v.AsInt(); ok {
		return float64(step), nil
	}
	return 0, fmt.Errorf("%w: graph attribute %q holds a %s value", ErrInvalidStep, store.StepAttrKey, v.Kind())
}
