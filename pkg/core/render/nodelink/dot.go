package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/pdaviz/pkg/graph"
)

// Options configures node-link diagram rendering.
type Options struct {
	// NodeWidth and NodeHeight are the node box size in layout units.
	// Zero values fall back to 80x40.
	NodeWidth  float64
	NodeHeight float64

	// EdgeLabels includes transition labels on edges. Tree frames have none,
	// so the flag only matters for automata.
	EdgeLabels bool
}

func (o Options) withDefaults() Options {
	if o.NodeWidth <= 0 {
		o.NodeWidth = 80
	}
	if o.NodeHeight <= 0 {
		o.NodeHeight = 40
	}
	return o
}

// ToDOT converts a frame to Graphviz DOT source with every node pinned at its
// layout position. Hidden nodes and edges touching them are omitted.
//
// Positions are emitted in points (inputscale=72) with y flipped, since
// Graphviz grows y upwards. Render the result with the neato engine, which
// [RenderSVG] and [RenderPNG] select.
func ToDOT(f *graph.Frame, opts Options) string {
	opts = opts.withDefaults()

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  splines=true;\n")
	fmt.Fprintf(&buf, "  node [shape=box, style=\"rounded,filled\", fixedsize=true, width=%.3f, height=%.3f, fontsize=12];\n",
		opts.NodeWidth/72, opts.NodeHeight/72)
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	for _, n := range f.VisibleNodes() {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(n), ", "))
	}

	buf.WriteString("\n")
	for _, e := range f.VisibleEdges() {
		if opts.EdgeLabels && e.Label != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.From, e.To, e.Label)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtAttrs(n graph.Node) []string {
	attrs := []string{
		fmt.Sprintf("label=%q", n.Label),
		fmt.Sprintf("pos=\"%.2f,%.2f!\"", n.X, flipY(n.Y)),
	}
	if n.Color != "" {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", n.Color))
	}
	if n.Merged {
		attrs = append(attrs, "penwidth=2")
	}
	return attrs
}

// flipY negates y without producing negative zero.
func flipY(y float64) float64 {
	if y == 0 {
		return 0
	}
	return -y
}

// RenderSVG renders DOT source to SVG using the neato engine.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	out, err := render(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return fitSVGRoot(out), nil
}

// RenderPNG renders DOT source to PNG using the neato engine.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG)
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

var viewBoxRe = regexp.MustCompile(`viewBox="(-?[0-9.]+)\s+(-?[0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)

// fitSVGRoot replaces the root <svg> element so the drawing is sized in
// whole pixels with its origin at 0,0. Graphviz sizes the root in points.
// Everything after the root tag is kept byte for byte.
func fitSVGRoot(svg []byte) []byte {
	start := bytes.Index(svg, []byte("<svg"))
	if start < 0 {
		return svg
	}
	n := bytes.IndexByte(svg[start:], '>')
	if n < 0 {
		return svg
	}
	end := start + n + 1

	m := viewBoxRe.FindSubmatch(svg[start:end])
	if m == nil {
		return svg
	}
	w, errW := strconv.ParseFloat(string(m[3]), 64)
	h, errH := strconv.ParseFloat(string(m[4]), 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d" viewBox="0 0 %s %s">`,
		int(math.Ceil(w)), int(math.Ceil(h)), m[3], m[4])

	out := make([]byte, 0, len(svg)-(end-start)+len(root))
	out = append(out, svg[:start]...)
	out = append(out, root...)
	return append(out, svg[end:]...)
}
