// Package replay colors graph nodes from a recorded match step.
//
// A step of the matcher trace is a [State]: the pair of nodes currently
// being compared, the pairs matched so far, and the pairs matched in earlier
// attempts. Both visualized roles read the same State; each role selects its
// side of every [Pair] through [SelectField].
//
// Coloring always starts from a clean slate, so the result depends only on
// the State and never on the previous step:
//
//	default -> previously matched -> matched -> active
//
// Later passes override earlier ones.
package replay

import (
	"fmt"
	"strings"

	"github.com/matzehuels/pdaviz/pkg/core/model"
)

// Role names which side of the match a graph visualizes.
type Role int

const (
	RolePattern Role = iota
	RoleCode
)

// Roles lists every role in display order.
var Roles = []Role{RolePattern, RoleCode}

func (r Role) String() string {
	switch r {
	case RolePattern:
		return "pattern"
	case RoleCode:
		return "code"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole parses "pattern" or "code".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pattern":
		return RolePattern, nil
	case "code":
		return RoleCode, nil
	}
	return 0, fmt.Errorf("unknown role %q (want pattern or code)", s)
}

// Pair is a (pattern node, code node) reference.
type Pair struct {
	PatternNode string `json:"pattern_node"`
	CodeNode    string `json:"code_node"`
}

// SelectField returns the side of p that belongs to role.
func SelectField(role Role, p Pair) string {
	if role == RoleCode {
		return p.CodeNode
	}
	return p.PatternNode
}

// State is the replay state of one step.
type State struct {
	Current           Pair   `json:"current"`
	Matched           []Pair `json:"matched"`
	PreviouslyMatched []Pair `json:"previously_matched"`
}

// DefaultState is the state before any match has started. The code side
// points at "-1", which is never a node ID.
func DefaultState() State {
	return State{Current: Pair{PatternNode: "", CodeNode: "-1"}}
}

// Node colors.
const (
	ColorDefault           = "#BBB"
	ColorPreviouslyMatched = "#ff0000"
	ColorMatched           = "#008"
	ColorActive            = "#080"
)

// Highlight is the coloring of one graph for one step.
type Highlight struct {
	Colors map[string]string
	// Active is the ID of the active node, or "" when the graph does not
	// contain it.
	Active string
}

// Apply computes the coloring of g for role. IDs in s that g does not
// contain are skipped.
func Apply(g *model.Graph, role Role, s State) Highlight {
	h := Highlight{Colors: make(map[string]string, g.NodeCount())}
	for _, id := range g.NodeIDs() {
		h.Colors[id] = ColorDefault
	}

	paint := func(id, color string) bool {
		if _, ok := h.Colors[id]; !ok {
			return false
		}
		h.Colors[id] = color
		return true
	}

	for _, p := range s.PreviouslyMatched {
		paint(SelectField(role, p), ColorPreviouslyMatched)
	}
	for _, p := range s.Matched {
		paint(SelectField(role, p), ColorMatched)
	}
	if id := SelectField(role, s.Current); paint(id, ColorActive) {
		h.Active = id
	}
	return h
}
