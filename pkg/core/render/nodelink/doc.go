// Package nodelink renders positioned frames as node-link diagrams.
//
// # Overview
//
// Layout is computed upstream by [layout.Run]; this package only draws. A
// [graph.Frame] carries every node's center, fill color and decorated label,
// so rendering is a pure function of the frame.
//
// # Usage
//
// Convert a frame to DOT with pinned positions, then render it:
//
//	dot := nodelink.ToDOT(frame, nodelink.Options{EdgeLabels: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot)
//
// For an interactive page with zoom and pan, use [RenderHTML]:
//
//	html, err := nodelink.RenderHTML(frame, nodelink.Options{})
//
// [Render] dispatches on the export format name.
//
// # DOT Format
//
// [ToDOT] pins every node with pos="x,y!" and renders with the neato engine
// so Graphviz keeps the positions instead of laying the graph out again.
//
// [layout.Run]: github.com/matzehuels/pdaviz/pkg/core/layout.Run
// [graph.Frame]: github.com/matzehuels/pdaviz/pkg/graph.Frame
package nodelink
