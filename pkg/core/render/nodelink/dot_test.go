package nodelink

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/graph"
)

func testFrame() *graph.Frame {
	return &graph.Frame{
		Role:  "code",
		Label: "main",
		Mode:  graph.ModeAutomaton,
		Nodes: []graph.Node{
			{ID: "0", Label: "0", X: 0, Y: 0, Color: "#080"},
			{ID: "1", Label: "1", X: 120, Y: 40, Color: "#BBB"},
			{ID: "2", Label: "2", X: 240, Y: 80, Color: "#BBB", Hidden: true},
		},
		Edges: []graph.Edge{
			{From: "0", To: "1", Label: "ε, ε, [LC] -> ε"},
			{From: "1", To: "2", Label: "x"},
		},
	}
}

func TestToDOT_Basic(t *testing.T) {
	dot := ToDOT(testFrame(), Options{})

	if !strings.Contains(dot, "digraph G") {
		t.Error("ToDOT() output missing digraph declaration")
	}
	if !strings.Contains(dot, `"0" -> "1";`) {
		t.Error("ToDOT() output missing edge")
	}
	if strings.Contains(dot, "label=\"ε") {
		t.Error("ToDOT() emitted an edge label without EdgeLabels")
	}
}

func TestToDOT_HiddenNodesOmitted(t *testing.T) {
	dot := ToDOT(testFrame(), Options{})

	if strings.Contains(dot, `"2" [`) {
		t.Error("ToDOT() emitted a hidden node")
	}
	if strings.Contains(dot, `"1" -> "2"`) {
		t.Error("ToDOT() emitted an edge to a hidden node")
	}
}

func TestToDOT_EdgeLabels(t *testing.T) {
	dot := ToDOT(testFrame(), Options{EdgeLabels: true})

	if !strings.Contains(dot, `"0" -> "1" [label="ε, ε, [LC] -> ε"];`) {
		t.Errorf("ToDOT() missing edge label:\n%s", dot)
	}
}

func TestToDOT_NodeSize(t *testing.T) {
	dot := ToDOT(testFrame(), Options{NodeWidth: 144, NodeHeight: 72})

	if !strings.Contains(dot, "width=2.000, height=1.000") {
		t.Errorf("ToDOT() node size not converted to inches:\n%s", dot)
	}
}

func TestFmtAttrs(t *testing.T) {
	tests := []struct {
		name string
		node graph.Node
		want []string
	}{
		{"plain", graph.Node{ID: "a", Label: "a", X: 10, Y: 20}, []string{`label="a"`, `pos="10.00,-20.00!"`}},
		{"colored", graph.Node{ID: "a", Label: "a", Color: "#ff0000"}, []string{`fillcolor="#ff0000"`}},
		{"merged", graph.Node{ID: "a", Label: "a\n\n+", Merged: true}, []string{`label="a\n\n+"`, "penwidth=2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			joined := strings.Join(fmtAttrs(tt.node), ", ")
			for _, w := range tt.want {
				if !strings.Contains(joined, w) {
					t.Errorf("fmtAttrs() = %s, missing %s", joined, w)
				}
			}
		})
	}
}

func TestFmtAttrs_NoColor(t *testing.T) {
	attrs := fmtAttrs(graph.Node{ID: "a", Label: "a"})
	if len(attrs) != 2 {
		t.Errorf("fmtAttrs() uncolored node should have 2 attrs, got %d: %v", len(attrs), attrs)
	}
}

func TestFitSVGRoot(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // expected output; empty means unchanged
	}{
		{
			name: "points to pixels",
			in:   `<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`,
			want: `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="100" height="50" viewBox="0 0 100.00 50.00"><g/></svg>`,
		},
		{
			name: "fractional size rounds up",
			in:   `<?xml version="1.0"?>` + "\n" + `<svg viewBox="4.00 4.00 80.50 40.10"><g/></svg>`,
			want: `<?xml version="1.0"?>` + "\n" + `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="81" height="41" viewBox="0 0 80.50 40.10"><g/></svg>`,
		},
		{
			name: "only the root tag is rewritten",
			in:   `<svg viewBox="0 0 10 10"><svg viewBox="0 0 3 3"/></svg>`,
			want: `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="10" height="10" viewBox="0 0 10 10"><svg viewBox="0 0 3 3"/></svg>`,
		},
		{name: "no viewBox", in: `<svg><g/></svg>`},
		{name: "empty drawing", in: `<svg viewBox="0 0 0 0"></svg>`},
		{name: "not svg", in: `digraph {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.want
			if want == "" {
				want = tt.in
			}
			if got := string(fitSVGRoot([]byte(tt.in))); got != want {
				t.Errorf("fitSVGRoot() =\n%s\nwant\n%s", got, want)
			}
		})
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(testFrame(), Options{}))
	if err != nil {
		t.Fatalf("RenderSVG() error: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("RenderSVG() output is not SVG")
	}
}

func TestRenderPNG(t *testing.T) {
	png, err := RenderPNG(context.Background(), ToDOT(testFrame(), Options{}))
	if err != nil {
		t.Fatalf("RenderPNG() error: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("RenderPNG() output is missing the PNG signature")
	}
}

func TestRenderSVG_InvalidDOT(t *testing.T) {
	if _, err := RenderSVG(context.Background(), "digraph {"); err == nil {
		t.Error("RenderSVG() expected error for malformed DOT")
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(testFrame(), Options{EdgeLabels: true})
	if err != nil {
		t.Fatalf("RenderHTML() error: %v", err)
	}
	s := string(html)
	if !strings.Contains(s, "<title>main</title>") {
		t.Error("RenderHTML() missing page title")
	}
	if !strings.Contains(s, "0 (0)") || !strings.Contains(s, "1 (1)") {
		t.Error("RenderHTML() missing visible nodes")
	}
	if strings.Contains(s, "2 (2)") {
		t.Error("RenderHTML() rendered a hidden node")
	}
}

func TestRender_Formats(t *testing.T) {
	ctx := context.Background()
	for _, format := range []string{graph.FormatJSON, graph.FormatHTML, graph.FormatSVG} {
		t.Run(format, func(t *testing.T) {
			out, err := Render(ctx, testFrame(), format, Options{})
			if err != nil {
				t.Fatalf("Render(%s) error: %v", format, err)
			}
			if len(out) == 0 {
				t.Errorf("Render(%s) returned no bytes", format)
			}
		})
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(context.Background(), testFrame(), "gif", Options{})
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Render() error = %v, want INVALID_FORMAT", err)
	}
}
