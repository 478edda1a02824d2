// Package graph provides the serialization format for rendered
// visualization frames.
//
// A [Frame] is a self-contained snapshot of one mounted sub-graph: every
// node with its position, color, visibility and decorated label, every edge
// with its label, plus the viewport and camera the host computed. It is the
// boundary type between the view host and everything that draws or ships a
// graph: image renderers, the HTML exporter, the local server and its
// websocket stream.
//
// # Constants
//
// This package is the single source of truth for export formats:
//
//	graph.FormatPNG   // "png"
//	graph.FormatSVG   // "svg"
//	graph.FormatHTML  // "html"
//	graph.FormatJSON  // "json"
//
// # Serialization
//
//	{
//	  "role": "pattern",
//	  "label": "main",
//	  "mode": "automaton",
//	  "nodes": [{"id": "0", "label": "0", "x": 45, "y": 25, "color": "#080"}],
//	  "edges": [{"from": "0", "to": "1", "label": "ε, X, [P] -> ε"}]
//	}
//
// Use [MarshalFrame], [WriteFrameFile] and [ReadFrameFile] to move frames in
// and out of JSON.
package graph
