package model

import (
	"errors"
	"slices"
	"testing"
)

func buildTree(t *testing.T) *Graph {
	t.Helper()
	g := New(ModeTree)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := g.AddNode(Node{ID: id, Label: id}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for _, e := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"d", "e"}} {
		if err := g.AddEdge(Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatalf("AddEdge(%v): %v", e, err)
		}
	}
	return g
}

func TestAddNodeErrors(t *testing.T) {
	g := New(ModeTree)
	if err := g.AddNode(Node{}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("empty ID: got %v, want ErrInvalidNodeID", err)
	}
	if err := g.AddNode(Node{ID: "x"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddNode(Node{ID: "x"}); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("duplicate: got %v, want ErrDuplicateNodeID", err)
	}
}

func TestAddEdgeErrors(t *testing.T) {
	g := New(ModeTree)
	_ = g.AddNode(Node{ID: "x"})
	if err := g.AddEdge(Edge{From: "missing", To: "x"}); !errors.Is(err, ErrUnknownSourceNode) {
		t.Errorf("got %v, want ErrUnknownSourceNode", err)
	}
	if err := g.AddEdge(Edge{From: "x", To: "missing"}); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("got %v, want ErrUnknownTargetNode", err)
	}
	if g.EdgeCount() != 0 {
		t.Errorf("EdgeCount = %d, want 0", g.EdgeCount())
	}
}

func TestSuccessors(t *testing.T) {
	g := buildTree(t)

	tests := []struct {
		id   string
		want []string
	}{
		{"a", []string{"b", "c", "d", "e"}},
		{"b", []string{"d", "e"}},
		{"e", nil},
		{"missing", nil},
	}
	for _, tt := range tests {
		if got := g.Successors(tt.id); !slices.Equal(got, tt.want) {
			t.Errorf("Successors(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestSuccessorsTerminatesOnCycle(t *testing.T) {
	g := New(ModeAutomaton)
	_ = g.AddNode(Node{ID: "0"})
	_ = g.AddNode(Node{ID: "1"})
	_ = g.AddEdge(Edge{From: "0", To: "1"})
	_ = g.AddEdge(Edge{From: "1", To: "0"})

	if got := g.Successors("0"); !slices.Equal(got, []string{"1"}) {
		t.Errorf("Successors(0) = %v, want [1]", got)
	}
}

func TestOutDegreeVisibility(t *testing.T) {
	g := buildTree(t)
	if got := g.OutDegree("a", nil); got != 2 {
		t.Errorf("OutDegree(a) = %d, want 2", got)
	}
	hideC := func(id string) bool { return id != "c" }
	if got := g.OutDegree("a", hideC); got != 1 {
		t.Errorf("OutDegree(a) with c hidden = %d, want 1", got)
	}
}

func TestRootsAndLeaves(t *testing.T) {
	g := buildTree(t)
	if got := g.Roots(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("Roots() = %v, want [a]", got)
	}
	if !g.IsLeaf("e") || g.IsLeaf("a") {
		t.Error("IsLeaf mismatch")
	}
	if got := g.Parents("d"); !slices.Equal(got, []string{"b"}) {
		t.Errorf("Parents(d) = %v, want [b]", got)
	}
}

func TestInsertionOrder(t *testing.T) {
	g := New(ModeAutomaton)
	for _, id := range []string{"3", "1", "2"} {
		_ = g.AddNode(Node{ID: id})
	}
	if got := g.NodeIDs(); !slices.Equal(got, []string{"3", "1", "2"}) {
		t.Errorf("NodeIDs() = %v", got)
	}
}

func TestDisplayLabel(t *testing.T) {
	n := Node{ID: "1", Label: "Name"}
	if n.DisplayLabel() != "Name" || n.HasSymbol() {
		t.Errorf("DisplayLabel() = %q", n.DisplayLabel())
	}
	n.Symbol = "x"
	if n.DisplayLabel() != "x" || !n.HasSymbol() {
		t.Errorf("DisplayLabel() = %q, want symbol", n.DisplayLabel())
	}
}
