package layout

import (
	"context"
	"math"
	"slices"

	"github.com/matzehuels/pdaviz/pkg/core/model"
)

// Layered is a dependency-free hierarchical placer.
//
// It runs the classic layered phases on the subgraph induced by the placed
// nodes: back edges found by depth-first search are ignored, layers are
// assigned by longest path (Kahn's algorithm), nodes within a layer are
// ordered by alternating barycenter sweeps keeping the ordering with the
// fewest crossings, and coordinates are centered per layer.
type Layered struct {
	NodeSep float64 // distance between neighbours in a layer; zero means 100
	RankSep float64 // distance between layers; zero means 100
	Sweeps  int     // barycenter sweeps; zero means 8
}

// Place implements Placer.
func (l Layered) Place(ctx context.Context, g *model.Graph, ids []string, dir Direction, box Box) (map[string]Point, error) {
	if l.NodeSep <= 0 {
		l.NodeSep = 100
	}
	if l.RankSep <= 0 {
		l.RankSep = 100
	}
	if l.Sweeps <= 0 {
		l.Sweeps = 8
	}

	children := inducedChildren(g, ids)
	breakCycles(ids, children)
	layers := assignLayers(ids, children)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orderLayers(layers, children, l.Sweeps)

	pos := make(map[string]Point, len(ids))
	for r, layer := range layers {
		mid := float64(len(layer)-1) / 2
		for i, id := range layer {
			cross := (float64(i) - mid) * l.NodeSep
			along := float64(r) * l.RankSep
			if dir == LeftToRight {
				pos[id] = Point{X: along, Y: cross}
			} else {
				pos[id] = Point{X: cross, Y: along}
			}
		}
	}

	if !box.IsZero() {
		fitInto(pos, box)
	}
	return pos, nil
}

// inducedChildren returns the distinct children of every id that are
// themselves in ids, self-loops dropped.
func inducedChildren(g *model.Graph, ids []string) map[string][]string {
	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}
	children := make(map[string][]string, len(ids))
	for _, id := range ids {
		for _, c := range g.Children(id) {
			if c != id && in[c] {
				children[id] = append(children[id], c)
			}
		}
	}
	return children
}

// breakCycles removes back edges found by a depth-first search started from
// the sources, then from any node not yet visited.
func breakCycles(ids []string, children map[string][]string) {
	const (
		white = iota
		gray
		black
	)

	indeg := inDegrees(ids, children)
	color := make(map[string]int, len(ids))
	var back [][2]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, c := range children[id] {
			switch color[c] {
			case white:
				dfs(c)
			case gray:
				back = append(back, [2]string{id, c})
			}
		}
		color[id] = black
	}

	for _, id := range ids {
		if indeg[id] == 0 && color[id] == white {
			dfs(id)
		}
	}
	for _, id := range ids {
		if color[id] == white {
			dfs(id)
		}
	}

	for _, e := range back {
		children[e[0]] = slices.DeleteFunc(children[e[0]], func(c string) bool { return c == e[1] })
	}
}

func inDegrees(ids []string, children map[string][]string) map[string]int {
	indeg := make(map[string]int, len(ids))
	for _, id := range ids {
		for _, c := range children[id] {
			indeg[c]++
		}
	}
	return indeg
}

// assignLayers puts every node one layer below its deepest parent.
// Within a layer, nodes keep the order in which Kahn's algorithm settles them.
func assignLayers(ids []string, children map[string][]string) [][]string {
	indeg := inDegrees(ids, children)
	rows := make(map[string]int, len(ids))
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}

	var settled []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		settled = append(settled, cur)
		for _, c := range children[cur] {
			if r := rows[cur] + 1; r > rows[c] {
				rows[c] = r
			}
			indeg[c]--
			if indeg[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	var layers [][]string
	for _, id := range settled {
		r := rows[id]
		for len(layers) <= r {
			layers = append(layers, nil)
		}
		layers[r] = append(layers[r], id)
	}
	return layers
}

// orderLayers reorders each layer in place by barycenter sweeps, keeping the
// best ordering seen.
func orderLayers(layers [][]string, children map[string][]string, sweeps int) {
	if len(layers) < 2 {
		return
	}
	parents := make(map[string][]string)
	for p, cs := range children {
		for _, c := range cs {
			parents[c] = append(parents[c], p)
		}
	}

	best := cloneLayers(layers)
	bestCrossings := totalCrossings(layers, children)

	for s := 0; s < sweeps && bestCrossings > 0; s++ {
		if s%2 == 0 {
			for r := 1; r < len(layers); r++ {
				sortByBarycenter(layers[r], parents, posMap(layers[r-1]))
			}
		} else {
			for r := len(layers) - 2; r >= 0; r-- {
				sortByBarycenter(layers[r], children, posMap(layers[r+1]))
			}
		}
		if c := totalCrossings(layers, children); c < bestCrossings {
			bestCrossings = c
			best = cloneLayers(layers)
		}
	}

	for r := range layers {
		copy(layers[r], best[r])
	}
}

func sortByBarycenter(layer []string, adj map[string][]string, adjPos map[string]int) {
	bary := make(map[string]float64, len(layer))
	for i, id := range layer {
		sum, n := 0.0, 0
		for _, a := range adj[id] {
			if p, ok := adjPos[a]; ok {
				sum += float64(p)
				n++
			}
		}
		if n == 0 {
			bary[id] = float64(i)
		} else {
			bary[id] = sum / float64(n)
		}
	}
	slices.SortStableFunc(layer, func(a, b string) int {
		switch {
		case bary[a] < bary[b]:
			return -1
		case bary[a] > bary[b]:
			return 1
		}
		return 0
	})
}

func totalCrossings(layers [][]string, children map[string][]string) int {
	total := 0
	for r := 0; r+1 < len(layers); r++ {
		total += layerCrossings(layers[r], layers[r+1], children)
	}
	return total
}

// layerCrossings counts crossings between two adjacent layers by counting
// inversions of target positions with a Fenwick tree.
func layerCrossings(upper, lower []string, children map[string][]string) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}
	lowerPos := posMap(lower)

	type edge struct{ upper, lower int }
	var edges []edge
	for i, id := range upper {
		for _, c := range children[id] {
			if p, ok := lowerPos[c]; ok {
				edges = append(edges, edge{i, p})
			}
		}
	}
	if len(edges) < 2 {
		return 0
	}
	slices.SortFunc(edges, func(a, b edge) int {
		if a.upper != b.upper {
			return a.upper - b.upper
		}
		return a.lower - b.lower
	})

	fenwick := make([]int, len(lower)+1)
	crossings, total := 0, 0
	for _, e := range edges {
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		crossings += total - lessOrEqual
		total++
		for idx := e.lower + 1; idx < len(fenwick); idx += idx & (-idx) {
			fenwick[idx]++
		}
	}
	return crossings
}

func posMap(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func cloneLayers(layers [][]string) [][]string {
	out := make([][]string, len(layers))
	for i, l := range layers {
		out[i] = slices.Clone(l)
	}
	return out
}

// fitInto maps pos linearly onto box, axis by axis. A degenerate axis is
// centered.
func fitInto(pos map[string]Point, box Box) {
	if len(pos) == 0 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pos {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	c := box.Center()
	for id, p := range pos {
		q := Point{X: c.X, Y: c.Y}
		if maxX > minX {
			q.X = box.X1 + (p.X-minX)/(maxX-minX)*box.W()
		}
		if maxY > minY {
			q.Y = box.Y1 + (p.Y-minY)/(maxY-minY)*box.H()
		}
		pos[id] = q
	}
}
