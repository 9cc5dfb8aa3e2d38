// Package consistency decides what happens when an edge references nodes
// that are not in the store.
package consistency

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-graph/pkg/model"
)

// Mode is fixed for the lifetime of a container. The zero Mode is Lenient.
type Mode uint8

const (
	// Lenient skips the edge and records a warning.
	Lenient Mode = iota
	// Strict rejects the edge with *model.ElementNotFoundError.
	Strict
	// AutoCreate creates missing endpoints in the same transaction as the edge.
	AutoCreate
)

func (m Mode) String() string {
	switch m {
	case Lenient:
		return "lenient"
	case Strict:
		return "strict"
	case AutoCreate:
		return "autocreate"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode accepts the names produced by Mode.String, case-insensitively.
// The empty string selects Lenient.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	case "autocreate", "auto-create", "auto_create":
		return AutoCreate, nil
	default:
		return Lenient, fmt.Errorf("unknown consistency mode %q", s)
	}
}

// Warning describes an edge dropped under Lenient.
type Warning struct {
	EdgeID   string
	From     string
	To       string
	Directed bool
	Missing  []string
}

func (w Warning) String() string {
	return fmt.Sprintf("node(s) %q missing, failed to create edge %q from it", w.Missing, w.EdgeID)
}

// Decision is the outcome of resolving an edge's endpoints.
type Decision uint8

const (
	Apply Decision = iota
	Skip
)

// NodeStore is the part of a store transaction the policy works against.
type NodeStore interface {
	Exists(el model.Element) (bool, error)
	UpsertNode(id string) (created bool, err error)
}

// ExistsFunc reports whether a node id is known.
type ExistsFunc func(nodeID string) (bool, error)

type Policy struct {
	mode      Mode
	log       *logrus.Logger
	onWarning func(Warning)
	// staged holds warnings of the batch being applied. They are only
	// published once that batch is committed.
	staged []Warning
}

// New returns a policy. onWarning may be nil.
func New(mode Mode, log *logrus.Logger, onWarning func(Warning)) *Policy {
	if log == nil {
		log = logrus.New()
	}
	return &Policy{mode: mode, log: log, onWarning: onWarning}
}

func (p *Policy) Mode() Mode { return p.mode }

// Missing returns the endpoints of edge for which exists reports false, in
// from/to order and without duplicates.
func Missing(exists ExistsFunc, edge model.AddEdge) ([]string, error) {
	var missing []string
	for _, id := range []string{edge.From, edge.To} {
		if len(missing) == 1 && missing[0] == id {
			continue
		}
		ok, err := exists(id)
		if err != nil {
			return nil, fmt.Errorf("check node %q: %w", id, err)
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Validate is the synchronous Strict check run before an edge is queued.
// Other modes accept every edge here.
func (p *Policy) Validate(exists ExistsFunc, edge model.AddEdge) error {
	if p.mode != Strict {
		return nil
	}
	missing, err := Missing(exists, edge)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return notFound(edge, missing[0])
	}
	return nil
}

// Resolve runs at flush time against the open transaction, so it sees the
// effects of every earlier operation of the same batch. Lenient skips are
// staged, see PublishWarnings.
func (p *Policy) Resolve(tx NodeStore, edge model.AddEdge) (Decision, error) {
	missing, err := Missing(func(id string) (bool, error) {
		return tx.Exists(model.Node(id))
	}, edge)
	if err != nil {
		return Skip, err
	}
	if len(missing) == 0 {
		return Apply, nil
	}

	switch p.mode {
	case Strict:
		return Skip, notFound(edge, missing[0])
	case AutoCreate:
		for _, id := range missing {
			if _, err := tx.UpsertNode(id); err != nil {
				return Skip, fmt.Errorf("auto-create node %q: %w", id, err)
			}
		}
		p.log.WithFields(logrus.Fields{
			"edge":    edge.EdgeID,
			"created": missing,
		}).Debug("created missing edge endpoints")
		return Apply, nil
	default:
		p.staged = append(p.staged, Warning{
			EdgeID:   edge.EdgeID,
			From:     edge.From,
			To:       edge.To,
			Directed: edge.Directed,
			Missing:  missing,
		})
		return Skip, nil
	}
}

// PublishWarnings logs the warnings staged by Resolve and hands them to the
// warning callback. Call it after the batch they belong to has committed.
func (p *Policy) PublishWarnings() {
	for _, w := range p.staged {
		p.log.WithFields(logrus.Fields{
			"edge":    w.EdgeID,
			"from":    w.From,
			"to":      w.To,
			"missing": w.Missing,
		}).Warn(w.String())
		if p.onWarning != nil {
			p.onWarning(w)
		}
	}
	p.staged = p.staged[:0]
}

// DropWarnings forgets the staged warnings of a batch that was not
// committed and returns how many there were.
func (p *Policy) DropWarnings() int {
	n := len(p.staged)
	p.staged = p.staged[:0]
	return n
}

func notFound(edge model.AddEdge, missing string) *model.ElementNotFoundError {
	return &model.ElementNotFoundError{
		EdgeID:   edge.EdgeID,
		From:     edge.From,
		To:       edge.To,
		Directed: edge.Directed,
		Missing:  missing,
	}
}
