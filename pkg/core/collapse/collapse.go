// Package collapse tracks which subtrees of a tree graph are folded.
//
// The controller owns two pieces of view state per node: the merged flag
// (this node's subtree is folded into it) and the hidden flag (an ancestor is
// folded). The model graph itself is never modified. Each toggle returns a
// [Change]; callers are expected to re-run the full layout afterwards.
package collapse

import (
	"errors"
	"maps"
	"slices"

	"github.com/matzehuels/pdaviz/pkg/core/model"
)

var (
	// ErrNotCollapsible is returned when toggling a node of an automaton graph.
	ErrNotCollapsible = errors.New("only tree graphs can be collapsed")

	// ErrHidden is returned when toggling a node that is currently hidden.
	ErrHidden = errors.New("node is hidden")
)

// Decoration is appended to the label of a merged node.
const Decoration = "\n\n+"

// Change describes the effect of one toggle.
type Change struct {
	Node     string
	Merged   bool     // the node's flag after the toggle
	Hidden   []string // nodes hidden by a collapse
	Revealed []string // nodes revealed by an expand
}

// Controller holds the collapse state of one tree graph.
// It is not safe for concurrent use; the host serializes access.
type Controller struct {
	g      *model.Graph
	merged map[string]bool
	hidden map[string]bool
}

// New returns a controller with every node expanded and visible.
func New(g *model.Graph) *Controller {
	return &Controller{
		g:      g,
		merged: make(map[string]bool),
		hidden: make(map[string]bool),
	}
}

// Merged reports the merged flag of id.
func (c *Controller) Merged(id string) bool { return c.merged[id] }

// Hidden reports whether id is hidden by a folded ancestor.
func (c *Controller) Hidden(id string) bool { return c.hidden[id] }

// Visible is a model.Visible predicate over the current state.
func (c *Controller) Visible(id string) bool { return !c.hidden[id] }

// Label returns the rendered label of id: the node's display label, plus
// the "+" decoration while it is merged.
func (c *Controller) Label(id string) string {
	n, ok := c.g.Node(id)
	if !ok {
		return ""
	}
	if c.merged[id] {
		return n.DisplayLabel() + Decoration
	}
	return n.DisplayLabel()
}

// MergedNodes returns the IDs of all merged nodes in graph order.
func (c *Controller) MergedNodes() []string {
	var out []string
	for _, id := range c.g.NodeIDs() {
		if c.merged[id] {
			out = append(out, id)
		}
	}
	return out
}

// HiddenNodes returns the IDs of all hidden nodes in graph order.
func (c *Controller) HiddenNodes() []string {
	var out []string
	for _, id := range c.g.NodeIDs() {
		if c.hidden[id] {
			out = append(out, id)
		}
	}
	return out
}

// Toggle folds or unfolds the subtree below id.
//
// Folding sets the node's flag, hides every transitive successor and resets
// their own flags. Unfolding clears the flag and reveals successors, without
// descending below a successor that is itself folded. Toggling a leaf only
// flips its flag.
func (c *Controller) Toggle(id string) (Change, error) {
	if c.g.Mode() != model.ModeTree {
		return Change{}, ErrNotCollapsible
	}
	if !c.g.Has(id) {
		return Change{}, model.ErrUnknownNode
	}
	if c.hidden[id] {
		return Change{}, ErrHidden
	}

	if !c.merged[id] {
		c.merged[id] = true
		succ := c.g.Successors(id)
		for _, s := range succ {
			c.hidden[s] = true
			delete(c.merged, s)
		}
		return Change{Node: id, Merged: true, Hidden: succ}, nil
	}

	delete(c.merged, id)
	var revealed []string
	c.reveal(id, &revealed)
	return Change{Node: id, Merged: false, Revealed: revealed}, nil
}

func (c *Controller) reveal(id string, out *[]string) {
	for _, child := range c.g.Children(id) {
		if c.hidden[child] {
			delete(c.hidden, child)
			*out = append(*out, child)
		}
		if !c.merged[child] {
			c.reveal(child, out)
		}
	}
}

// State is an opaque copy of a controller's flags.
type State struct {
	merged map[string]bool
	hidden map[string]bool
}

// Save captures the current flags for a later [Controller.Restore].
func (c *Controller) Save() State {
	return State{merged: maps.Clone(c.merged), hidden: maps.Clone(c.hidden)}
}

// Restore resets the flags to a state taken with [Controller.Save].
func (c *Controller) Restore(s State) {
	c.merged = maps.Clone(s.merged)
	c.hidden = maps.Clone(s.hidden)
}

// Apply folds the given nodes in order, skipping any that are already
// hidden by an earlier fold.
func (c *Controller) Apply(ids []string) error {
	for _, id := range ids {
		if c.hidden[id] || c.merged[id] {
			continue
		}
		if _, err := c.Toggle(id); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether two controllers over the same graph are in the same
// state.
func (c *Controller) Equal(o *Controller) bool {
	return slices.Equal(c.MergedNodes(), o.MergedNodes()) && slices.Equal(c.HiddenNodes(), o.HiddenNodes())
}
