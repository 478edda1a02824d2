package model

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrUnknownNode is returned by lookups of IDs that are not in the graph.
	ErrUnknownNode = errors.New("unknown node")
)

// Mode selects how a graph was built and which interactions it supports.
type Mode int

const (
	// ModeTree is an abstract syntax tree: unlabeled parent->child edges,
	// collapsible subtrees, global hierarchical layout.
	ModeTree Mode = iota
	// ModeAutomaton is a pushdown automaton: one node per state, one labeled
	// edge per transition.
	ModeAutomaton
)

func (m Mode) String() string {
	switch m {
	case ModeTree:
		return "tree"
	case ModeAutomaton:
		return "automaton"
	default:
		return "unknown"
	}
}

// Kind distinguishes tree nodes from automaton states.
type Kind int

const (
	KindTree Kind = iota
	KindState
)

func (k Kind) String() string {
	if k == KindState {
		return "state"
	}
	return "tree"
}

// Node is a vertex of a visualization graph.
type Node struct {
	ID     string // Unique within one graph
	Label  string // Display label
	Kind   Kind
	Symbol string // Optional grammar symbol annotation (tree nodes only)
}

// HasSymbol reports whether the node carries a symbol annotation.
func (n Node) HasSymbol() bool { return n.Symbol != "" }

// DisplayLabel returns the symbol when present, otherwise the label.
func (n Node) DisplayLabel() string {
	if n.Symbol != "" {
		return n.Symbol
	}
	return n.Label
}

// Edge is a directed connection. Tree edges have no label.
type Edge struct {
	From  string
	To    string
	Label string
}

// Visible reports whether a node is currently rendered. A nil Visible
// treats every node as visible.
type Visible func(id string) bool

// Graph is a directed graph of nodes and edges with stable insertion order.
//
// The zero value is not usable - use New to create a Graph.
// Graph is not safe for concurrent use without external synchronization.
type Graph struct {
	mode     Mode
	nodes    map[string]*Node
	order    []string
	edges    []Edge
	outgoing map[string][]int // nodeID -> edge indices
	incoming map[string][]int
}

// New creates an empty graph in the given mode.
func New(mode Mode) *Graph {
	return &Graph{
		mode:     mode,
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
	}
}

// Mode returns the mode the graph was created with.
func (g *Graph) Mode() Mode { return g.mode }

// AddNode adds a node. Returns ErrInvalidNodeID for an empty ID or
// ErrDuplicateNodeID if the ID is taken.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	node := n
	g.nodes[n.ID] = &node
	g.order = append(g.order, n.ID)
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Parallel edges
// are kept.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], idx)
	g.incoming[e.To] = append(g.incoming[e.To], idx)
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Has reports whether the graph contains id.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.order))
	for i, id := range g.order {
		out[i] = *g.nodes[id]
	}
	return out
}

// NodeIDs returns all node IDs in insertion order.
func (g *Graph) NodeIDs() []string { return slices.Clone(g.order) }

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// OutEdges returns the outgoing edges of id in insertion order, restricted
// to edges whose target is visible.
func (g *Graph) OutEdges(id string, visible Visible) []Edge {
	var out []Edge
	for _, i := range g.outgoing[id] {
		e := g.edges[i]
		if visible == nil || visible(e.To) {
			out = append(out, e)
		}
	}
	return out
}

// OutDegree counts the outgoing edges of id whose target is visible.
// Parallel edges count once each.
func (g *Graph) OutDegree(id string, visible Visible) int {
	return len(g.OutEdges(id, visible))
}

// Children returns the distinct direct successors of id in edge order.
func (g *Graph) Children(id string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, i := range g.outgoing[id] {
		to := g.edges[i].To
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	return out
}

// Parents returns the distinct direct predecessors of id in edge order.
func (g *Graph) Parents(id string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, i := range g.incoming[id] {
		from := g.edges[i].From
		if !seen[from] {
			seen[from] = true
			out = append(out, from)
		}
	}
	return out
}

// Successors returns every node reachable from id (excluding id itself) in
// breadth-first order. Returns nil for unknown IDs.
func (g *Graph) Successors(id string) []string {
	if !g.Has(id) {
		return nil
	}
	var out []string
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range g.Children(cur) {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// Roots returns the nodes without incoming edges, in insertion order.
func (g *Graph) Roots() []string {
	var out []string
	for _, id := range g.order {
		if len(g.incoming[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// IsLeaf reports whether id has no outgoing edges.
func (g *Graph) IsLeaf(id string) bool { return len(g.outgoing[id]) == 0 }
