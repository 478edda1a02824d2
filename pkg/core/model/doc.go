// Package model provides the node/edge graph that every visualization
// instance renders.
//
// # Overview
//
// A [Graph] is built once per fetched sub-graph, either from an abstract
// syntax tree ([ModeTree]) or from a pushdown automaton ([ModeAutomaton]).
// It is immutable after construction as far as the source payload is
// concerned: collapse flags, visibility, positions and colors are view state
// and live in the packages that own them (collapse, layout, replay), keyed by
// node ID.
//
// # Basic Usage
//
//	g := model.New(model.ModeTree)
//	g.AddNode(model.Node{ID: "1", Label: "Module"})
//	g.AddNode(model.Node{ID: "2", Label: "Expr"})
//	g.AddEdge(model.Edge{From: "1", To: "2"})
//
// Nodes keep insertion order, so iteration over [Graph.Nodes] and
// [Graph.Edges] is deterministic. Parallel edges between the same pair of
// nodes are kept as separate edges.
//
// # Traversal
//
// [Graph.Successors] returns the full transitive successor set of a node in
// breadth-first order; [Graph.OutDegree] counts outgoing edges, including
// parallel ones. Both accept an optional visibility predicate so callers can
// restrict them to what is currently rendered.
package model
