// Package layout positions the nodes of a model graph.
//
// # Passes
//
// Every layout starts with a grid pass that puts each visible node on its own
// cell of a square-ish grid, so no two nodes ever coincide. What happens next
// depends on the graph mode:
//
//   - Tree graphs get a global top-to-bottom hierarchical pass over every
//     visible node.
//   - Automaton graphs keep the grid, and every node with more than
//     [DefaultFanOutThreshold] visible outgoing edges gets a left-to-right
//     hierarchical sub-layout of its out-neighbours, confined to the bounding
//     box of the node and those neighbours. Dense regions are untangled
//     without moving the rest of the graph.
//
// # Placers
//
// The hierarchical pass is delegated to a [Placer]. [Layered] is a
// dependency-free Sugiyama-style placer (longest-path layering, barycentric
// ordering); [Graphviz] runs the dot engine and reads positions back from its
// output.
//
// # Viewport
//
// [Fit] computes the zoom and pan that fit a layout's bounds into a canvas;
// hosts use it to reset the viewport after every layout.
package layout
