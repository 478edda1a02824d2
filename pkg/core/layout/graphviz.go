package layout

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/pdaviz/pkg/core/model"
)

// Graphviz is a Placer backed by the Graphviz dot engine.
//
// Nodes are emitted under synthetic names (n0, n1, ...) so that positions
// can be read back from the laid-out DOT text without quoting concerns.
type Graphviz struct {
	RankSep float64 // inches; zero means 0.5
	NodeSep float64 // inches; zero means 0.3
}

// Place implements Placer.
func (p Graphviz) Place(ctx context.Context, g *model.Graph, ids []string, dir Direction, box Box) (map[string]Point, error) {
	if len(ids) == 0 {
		return map[string]Point{}, nil
	}
	dot := p.toDOT(g, ids, dir)

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	pos, err := parsePositions(buf.Bytes(), ids)
	if err != nil {
		return nil, err
	}
	if !box.IsZero() {
		fitInto(pos, box)
	}
	return pos, nil
}

func (p Graphviz) toDOT(g *model.Graph, ids []string, dir Direction) string {
	rankSep, nodeSep := p.RankSep, p.NodeSep
	if rankSep <= 0 {
		rankSep = 0.5
	}
	if nodeSep <= 0 {
		nodeSep = 0.3
	}

	index := posMap(ids)
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", dir)
	fmt.Fprintf(&buf, "  ranksep=%.2f;\n", rankSep)
	fmt.Fprintf(&buf, "  nodesep=%.2f;\n", nodeSep)
	buf.WriteString("  node [shape=box, fixedsize=true, width=1.1, height=0.55, label=\"\"];\n")
	for i := range ids {
		fmt.Fprintf(&buf, "  n%d;\n", i)
	}
	for _, id := range ids {
		for _, e := range g.OutEdges(id, nil) {
			if j, ok := index[e.To]; ok {
				fmt.Fprintf(&buf, "  n%d -> n%d;\n", index[id], j)
			}
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

var posRe = regexp.MustCompile(`\bn(\d+)\s*\[[^\]]*?\bpos="(-?[0-9.]+),(-?[0-9.]+)"`)

// parsePositions extracts node centers from laid-out DOT text. Graphviz's y
// axis points up, so y is negated.
func parsePositions(out []byte, ids []string) (map[string]Point, error) {
	pos := make(map[string]Point, len(ids))
	for _, m := range posRe.FindAllSubmatch(out, -1) {
		i, err := strconv.Atoi(string(m[1]))
		if err != nil || i >= len(ids) {
			continue
		}
		x, errX := strconv.ParseFloat(string(m[2]), 64)
		y, errY := strconv.ParseFloat(string(m[3]), 64)
		if errX != nil || errY != nil {
			continue
		}
		pos[ids[i]] = Point{X: x, Y: -y}
	}
	if len(pos) != len(ids) {
		return nil, fmt.Errorf("graphviz placed %d of %d nodes", len(pos), len(ids))
	}
	return pos, nil
}
