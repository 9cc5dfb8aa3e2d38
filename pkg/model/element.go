package model

// ElementKind selects which family of stored elements an operation targets.
type ElementKind uint8

const (
	ElementNode ElementKind = iota + 1
	ElementEdge
	// ElementGraph is the singleton holding graph-level attributes.
	ElementGraph
)

func (k ElementKind) String() string {
	switch k {
	case ElementNode:
		return "node"
	case ElementEdge:
		return "edge"
	case ElementGraph:
		return "graph"
	default:
		return "unknown"
	}
}

// Element addresses one stored element. ID is ignored for ElementGraph.
type Element struct {
	Kind ElementKind
	ID   string
}

func Node(id string) Element { return Element{Kind: ElementNode, ID: id} }

func Edge(id string) Element { return Element{Kind: ElementEdge, ID: id} }

func Graph() Element { return Element{Kind: ElementGraph} }
