package graph

import (
	"slices"
	"strings"

	"github.com/matzehuels/pdaviz/pkg/core/layout"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Export formats.
const (
	FormatPNG  = "png"
	FormatSVG  = "svg"
	FormatHTML = "html"
	FormatJSON = "json"
)

// Formats lists every supported export format.
var Formats = []string{FormatPNG, FormatSVG, FormatHTML, FormatJSON}

// ValidFormat reports whether f is a supported export format.
func ValidFormat(f string) bool { return slices.Contains(Formats, strings.ToLower(f)) }

// Graph modes.
const (
	ModeTree      = "tree"
	ModeAutomaton = "automaton"
)

// =============================================================================
// Frame - Rendered Sub-graph
// =============================================================================

// Frame is a snapshot of one mounted sub-graph.
type Frame struct {
	Role     string          `json:"role" bson:"role"`
	Label    string          `json:"label" bson:"label"`
	Instance string          `json:"instance,omitempty" bson:"instance,omitempty"`
	Mode     string          `json:"mode" bson:"mode"`
	Width    float64         `json:"width" bson:"width"`
	Height   float64         `json:"height" bson:"height"`
	Nodes    []Node          `json:"nodes" bson:"nodes"`
	Edges    []Edge          `json:"edges" bson:"edges"`
	Viewport layout.Viewport `json:"viewport" bson:"viewport"`
	Camera   layout.Point    `json:"camera" bson:"camera"`
	Active   string          `json:"active,omitempty" bson:"active,omitempty"`
	Animate  bool            `json:"animate,omitempty" bson:"animate,omitempty"`
	Labels   []string        `json:"labels,omitempty" bson:"labels,omitempty"` // sibling sub-graphs of the role
}

// Node is a positioned node.
type Node struct {
	ID     string  `json:"id" bson:"id"`
	Label  string  `json:"label" bson:"label"` // Decorated display label
	Symbol string  `json:"symbol,omitempty" bson:"symbol,omitempty"`
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Color  string  `json:"color" bson:"color"`
	Hidden bool    `json:"hidden,omitempty" bson:"hidden,omitempty"`
	Merged bool    `json:"merged,omitempty" bson:"merged,omitempty"`
}

// Edge is a directed, optionally labeled edge.
type Edge struct {
	From  string `json:"from" bson:"from"`
	To    string `json:"to" bson:"to"`
	Label string `json:"label,omitempty" bson:"label,omitempty"`
}

// VisibleNodes returns the nodes that are not hidden.
func (f *Frame) VisibleNodes() []Node {
	out := make([]Node, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		if !n.Hidden {
			out = append(out, n)
		}
	}
	return out
}

// VisibleEdges returns the edges whose endpoints are both visible.
func (f *Frame) VisibleEdges() []Edge {
	hidden := make(map[string]bool)
	for _, n := range f.Nodes {
		if n.Hidden {
			hidden[n.ID] = true
		}
	}
	out := make([]Edge, 0, len(f.Edges))
	for _, e := range f.Edges {
		if !hidden[e.From] && !hidden[e.To] {
			out = append(out, e)
		}
	}
	return out
}

// Node returns the node with the given ID.
func (f *Frame) Node(id string) (Node, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Filename returns the export file name "{label}.{format}".
func (f *Frame) Filename(format string) string {
	return f.Label + "." + strings.ToLower(format)
}
