package layout

import (
	"context"
	"fmt"
	"math"

	"github.com/matzehuels/pdaviz/pkg/core/model"
)

// DefaultFanOutThreshold is the out-degree above which an automaton state
// gets a bounded sub-layout.
const DefaultFanOutThreshold = 3

// Point is a node center in layout coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// W returns the box width.
func (b Box) W() float64 { return b.X2 - b.X1 }

// H returns the box height.
func (b Box) H() float64 { return b.Y2 - b.Y1 }

// IsZero reports whether b is the zero box, meaning "unconstrained".
func (b Box) IsZero() bool { return b == Box{} }

// Center returns the midpoint of b.
func (b Box) Center() Point { return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2} }

// Contains reports whether p lies in b, edges included.
func (b Box) Contains(p Point) bool {
	return p.X >= b.X1 && p.X <= b.X2 && p.Y >= b.Y1 && p.Y <= b.Y2
}

// BoundsOf returns the bounding box of the given points, grown by half a node
// in each direction. Returns the zero box when pts is empty.
func BoundsOf(pts []Point, node Size) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	for _, p := range pts {
		b.X1 = math.Min(b.X1, p.X)
		b.Y1 = math.Min(b.Y1, p.Y)
		b.X2 = math.Max(b.X2, p.X)
		b.Y2 = math.Max(b.Y2, p.Y)
	}
	b.X1 -= node.Width / 2
	b.X2 += node.Width / 2
	b.Y1 -= node.Height / 2
	b.Y2 += node.Height / 2
	return b
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Direction is the rank direction of a hierarchical pass.
type Direction int

const (
	TopToBottom Direction = iota
	LeftToRight
)

func (d Direction) String() string {
	if d == LeftToRight {
		return "LR"
	}
	return "TB"
}

// Placer computes a hierarchical placement of the nodes ids of g. Only edges
// between nodes in ids are considered. When box is non-zero the result must
// lie inside it.
type Placer interface {
	Place(ctx context.Context, g *model.Graph, ids []string, dir Direction, box Box) (map[string]Point, error)
}

// Options configures a layout run.
type Options struct {
	// Node is the nominal node size used for spacing. Zero means 80x40.
	Node Size
	// Padding around the grid. Zero means 5.
	Padding float64
	// Spacing between grid cells.
	Spacing float64
	// FanOutThreshold overrides DefaultFanOutThreshold when positive.
	FanOutThreshold int
	// Placer runs the hierarchical passes. Nil means Layered{}.
	Placer Placer
	// Animate asks the host to animate the transition to the new positions.
	Animate bool
}

func (o Options) withDefaults() Options {
	if o.Node.Width <= 0 || o.Node.Height <= 0 {
		o.Node = Size{Width: 80, Height: 40}
	}
	if o.Padding <= 0 {
		o.Padding = 5
	}
	if o.Spacing <= 0 {
		o.Spacing = o.Node.Width / 2
	}
	if o.FanOutThreshold <= 0 {
		o.FanOutThreshold = DefaultFanOutThreshold
	}
	if o.Placer == nil {
		o.Placer = Layered{NodeSep: o.Node.Width * 1.25, RankSep: o.Node.Height * 2.5}
	}
	return o
}

// Result is a computed layout.
type Result struct {
	Positions map[string]Point `json:"positions"`
	Bounds    Box              `json:"bounds"`
	// SubLayouts lists, in node order, the nodes whose out-neighbourhood got a
	// bounded sub-layout.
	SubLayouts []string `json:"sub_layouts,omitempty"`
	Animate    bool     `json:"animate"`
}

// Run lays out the visible nodes of g.
func Run(ctx context.Context, g *model.Graph, visible model.Visible, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	ids := visibleIDs(g, visible)
	res := &Result{
		Positions: Grid(ids, opts.Node, opts.Padding, opts.Spacing),
		Animate:   opts.Animate,
	}

	switch g.Mode() {
	case model.ModeTree:
		if len(ids) > 0 {
			pos, err := opts.Placer.Place(ctx, g, ids, TopToBottom, Box{})
			if err != nil {
				return nil, fmt.Errorf("hierarchical layout: %w", err)
			}
			for id, p := range pos {
				res.Positions[id] = p
			}
		}
	case model.ModeAutomaton:
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if g.OutDegree(id, visible) <= opts.FanOutThreshold {
				continue
			}
			if err := subLayout(ctx, g, id, visible, res.Positions, opts); err != nil {
				return nil, fmt.Errorf("sub-layout of %s: %w", id, err)
			}
			res.SubLayouts = append(res.SubLayouts, id)
		}
	}

	res.Bounds = BoundsOf(pointsOf(res.Positions, ids), opts.Node)
	return res, nil
}

// subLayout re-places the out-neighbours of id inside the bounding box of id
// and those neighbours.
func subLayout(ctx context.Context, g *model.Graph, id string, visible model.Visible, pos map[string]Point, opts Options) error {
	var targets []string
	seen := map[string]bool{id: true}
	for _, e := range g.OutEdges(id, visible) {
		if !seen[e.To] {
			seen[e.To] = true
			targets = append(targets, e.To)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	box := BoundsOf(pointsOf(pos, append([]string{id}, targets...)), opts.Node)
	placed, err := opts.Placer.Place(ctx, g, targets, LeftToRight, box)
	if err != nil {
		return err
	}
	for tid, p := range placed {
		pos[tid] = p
	}
	return nil
}

func visibleIDs(g *model.Graph, visible model.Visible) []string {
	var ids []string
	for _, id := range g.NodeIDs() {
		if visible == nil || visible(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func pointsOf(pos map[string]Point, ids []string) []Point {
	pts := make([]Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := pos[id]; ok {
			pts = append(pts, p)
		}
	}
	return pts
}

// Viewport is a zoom and pan that maps layout coordinates onto a canvas:
// canvas = layout*Zoom + Pan.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	Pan  Point   `json:"pan"`
}

// Fit returns the viewport that centers bounds in canvas with padding on
// every side. Zoom is capped at 1 so small graphs are not blown up.
func Fit(bounds Box, canvas Size, padding float64) Viewport {
	if bounds.W() <= 0 || bounds.H() <= 0 || canvas.Width <= 0 || canvas.Height <= 0 {
		return Viewport{Zoom: 1}
	}
	availW := math.Max(canvas.Width-2*padding, 1)
	availH := math.Max(canvas.Height-2*padding, 1)
	zoom := math.Min(1, math.Min(availW/bounds.W(), availH/bounds.H()))
	c := bounds.Center()
	return Viewport{
		Zoom: zoom,
		Pan: Point{
			X: canvas.Width/2 - c.X*zoom,
			Y: canvas.Height/2 - c.Y*zoom,
		},
	}
}
