package nodelink

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/matzehuels/pdaviz/pkg/graph"
)

// RenderHTML renders a frame as a standalone interactive HTML page. Nodes
// keep their layout positions; the page only adds zoom and pan.
func RenderHTML(f *graph.Frame, o Options) ([]byte, error) {
	o = o.withDefaults()

	width, height := f.Width, f.Height
	if width <= 0 {
		width = 900
	}
	if height <= 0 {
		height = 600
	}

	chart := charts.NewGraph()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: f.Label,
			Width:     fmt.Sprintf("%.0fpx", width),
			Height:    fmt.Sprintf("%.0fpx", height),
		}),
		charts.WithTitleOpts(opts.Title{Title: f.Label, Subtitle: f.Role}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	nodes := make([]opts.GraphNode, 0, len(f.Nodes))
	names := make(map[string]string, len(f.Nodes))
	for _, n := range f.VisibleNodes() {
		// ECharts links by name, and labels repeat across nodes.
		name := fmt.Sprintf("%s (%s)", n.Label, n.ID)
		names[n.ID] = name
		nodes = append(nodes, opts.GraphNode{
			Name:       name,
			X:          float32(n.X),
			Y:          float32(n.Y),
			Fixed:      opts.Bool(true),
			Symbol:     "roundRect",
			SymbolSize: []float64{o.NodeWidth, o.NodeHeight},
			ItemStyle:  &opts.ItemStyle{Color: n.Color},
		})
	}

	links := make([]opts.GraphLink, 0, len(f.Edges))
	for _, e := range f.VisibleEdges() {
		link := opts.GraphLink{Source: names[e.From], Target: names[e.To]}
		if o.EdgeLabels && e.Label != "" {
			link.Label = &opts.EdgeLabel{Show: opts.Bool(true), Formatter: e.Label}
		}
		links = append(links, link)
	}

	chart.AddSeries(f.Label, nodes, links,
		charts.WithGraphChartOpts(opts.GraphChart{
			Layout:         "none",
			Roam:           opts.Bool(true),
			Draggable:      opts.Bool(false),
			EdgeSymbol:     []string{"none", "arrow"},
			EdgeSymbolSize: 8,
		}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "inside"}),
	)

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
