// Package build turns decoded matcher payloads into model graphs.
//
// Tree payloads become one node per syntax-tree node with unlabeled
// parent->child edges. Automaton payloads become one node per state and one
// labeled edge per transition:
//
//	{pop}, {input}, [{movements}] -> {push}
//
// Any inconsistency in the payload (a transition into an undeclared state, a
// repeated tree node ID, a cycle) is an input-contract error; nothing is
// silently dropped.
package build

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/pdaviz/pkg/core/condition"
	"github.com/matzehuels/pdaviz/pkg/core/model"
	"github.com/matzehuels/pdaviz/pkg/errors"
)

// Built is a named, constructed sub-graph.
type Built struct {
	Label string
	Kind  Kind
	Graph *model.Graph
}

// Build constructs the graph for a decoded payload.
func Build(p *Payload) (*model.Graph, error) {
	switch p.Kind {
	case KindTree:
		if p.Tree == nil {
			return nil, errors.New(errors.ErrCodeInvalidPayload, "tree payload %q has no content", p.Label)
		}
		return FromTree(p.Tree)
	case KindAutomaton:
		if p.Automaton == nil {
			return nil, errors.New(errors.ErrCodeInvalidPayload, "automaton payload %q has no content", p.Label)
		}
		return FromAutomaton(p.Automaton)
	default:
		return nil, errors.New(errors.ErrCodeUnknownKind, "unrecognized payload type %q", p.Kind)
	}
}

// All builds every payload, ordered by label. The first failure aborts the
// whole set.
func All(payloads []*Payload) ([]Built, error) {
	sorted := make([]*Payload, len(payloads))
	copy(sorted, payloads)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })

	out := make([]Built, 0, len(sorted))
	for _, p := range sorted {
		g, err := Build(p)
		if err != nil {
			return nil, fmt.Errorf("build %q: %w", p.Label, err)
		}
		out = append(out, Built{Label: p.Label, Kind: p.Kind, Graph: g})
	}
	return out, nil
}

// =============================================================================
// Tree mode
// =============================================================================

// FromTree walks a syntax tree depth-first. A node whose ID is already on the
// current path is a cycle; an ID seen elsewhere is a duplicate. Both fail.
func FromTree(root *TreeNode) (*model.Graph, error) {
	g := model.New(model.ModeTree)
	onPath := make(map[string]bool)
	if _, err := addTree(g, root, onPath); err != nil {
		return nil, err
	}
	return g, nil
}

func addTree(g *model.Graph, n *TreeNode, onPath map[string]bool) (string, error) {
	if n == nil {
		return "", errors.New(errors.ErrCodeInvalidPayload, "tree contains a null node")
	}
	id := string(n.ID)
	if onPath[id] {
		return "", errors.New(errors.ErrCodeCycle, "tree node %q is its own ancestor", id)
	}

	node := model.Node{
		ID:    id,
		Label: condition.TrimInternal(n.Name),
		Kind:  model.KindTree,
	}
	if n.Symbol != nil {
		node.Symbol = *n.Symbol
	}
	if err := g.AddNode(node); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPayload, err, "tree node %q", id)
	}

	onPath[id] = true
	defer delete(onPath, id)

	for _, child := range n.Children {
		childID, err := addTree(g, child, onPath)
		if err != nil {
			return "", err
		}
		if err := g.AddEdge(model.Edge{From: id, To: childID}); err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidPayload, err, "edge %s -> %s", id, childID)
		}
	}
	return id, nil
}

// =============================================================================
// Automaton mode
// =============================================================================

// FromAutomaton adds one node per declared state, then one edge per transition.
// Buckets are visited in ascending numeric state order.
func FromAutomaton(a *Automaton) (*model.Graph, error) {
	g := model.New(model.ModeAutomaton)
	for _, s := range a.States {
		id := strconv.Itoa(s)
		if err := g.AddNode(model.Node{ID: id, Label: id, Kind: model.KindState}); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "state %d", s)
		}
	}

	keys, err := bucketKeys(a.Transitions)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		for i, t := range a.Transitions[k.raw] {
			e := model.Edge{
				From:  strconv.Itoa(t.From),
				To:    strconv.Itoa(t.To),
				Label: EdgeLabel(t),
			}
			if err := g.AddEdge(e); err != nil {
				return nil, errors.Wrap(errors.ErrCodeUnknownNode, err,
					"transition %d of state %s (%d -> %d)", i, k.raw, t.From, t.To)
			}
		}
	}
	return g, nil
}

type bucketKey struct {
	raw   string
	state int
}

func bucketKeys(m map[string][]Transition) ([]bucketKey, error) {
	keys := make([]bucketKey, 0, len(m))
	for raw := range m {
		s, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "transition bucket %q is not a state", raw)
		}
		keys = append(keys, bucketKey{raw: raw, state: s})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].state < keys[j].state })
	return keys, nil
}

// EdgeLabel formats a transition as "{pop}, {input}, [{movements}] -> {push}".
func EdgeLabel(t Transition) string {
	return fmt.Sprintf("%s, %s, [%s] -> %s",
		stackLabel(t.Pop),
		condition.Format(t.Input.Condition),
		AbbreviateMovements(t.Movements),
		stackLabel(t.Push),
	)
}

func stackLabel(w StackWord) string {
	if w == "" {
		return condition.Epsilon
	}
	return "'" + string(w) + "'"
}

var movementAbbrev = strings.NewReplacer(
	"LEFT_CHILD", "LC",
	"RIGHT_SIBLING", "RS",
	"PARENT", "P",
)

// AbbreviateMovements shortens every movement token and joins them with ",".
func AbbreviateMovements(tokens []string) string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = movementAbbrev.Replace(tok)
	}
	return strings.Join(out, ",")
}
