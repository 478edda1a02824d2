package viz

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/pdaviz/pkg/core/build"
	"github.com/matzehuels/pdaviz/pkg/core/collapse"
	"github.com/matzehuels/pdaviz/pkg/core/layout"
	"github.com/matzehuels/pdaviz/pkg/core/model"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/graph"
	"github.com/matzehuels/pdaviz/pkg/observability"
)

// Instance is one mounted sub-graph: its model, collapse state, positions,
// colors and camera. Instances are owned by a [Host] and must only be read
// through it.
type Instance struct {
	ID    string
	Label string
	Role  replay.Role

	graph     *model.Graph
	collapse  *collapse.Controller
	positions map[string]layout.Point
	result    *layout.Result
	highlight replay.Highlight
	camera    *replay.Camera
	viewport  layout.Viewport
}

func newInstance(role replay.Role, b build.Built) *Instance {
	return &Instance{
		ID:        uuid.NewString(),
		Label:     b.Label,
		Role:      role,
		graph:     b.Graph,
		collapse:  collapse.New(b.Graph),
		positions: make(map[string]layout.Point, b.Graph.NodeCount()),
	}
}

// Graph returns the instance model.
func (in *Instance) Graph() *model.Graph { return in.graph }

// relayout runs the layout over the visible nodes. Hidden nodes keep their
// last position so an unfold animates them out of their former place.
func (in *Instance) relayout(ctx context.Context, opts layout.Options, animate bool) error {
	opts.Animate = animate
	start := time.Now()
	res, err := layout.Run(ctx, in.graph, in.collapse.Visible, opts)
	var subLayouts int
	if res != nil {
		subLayouts = len(res.SubLayouts)
	}
	observability.Pipeline().OnLayoutComplete(ctx, in.graph.Mode().String(), in.graph.NodeCount(), subLayouts, time.Since(start), err)
	if err != nil {
		return err
	}
	for id, p := range res.Positions {
		in.positions[id] = p
	}
	in.result = res
	if in.camera == nil {
		in.camera = replay.NewCamera(res.Bounds.Center())
	}
	return nil
}

func (in *Instance) fit(canvas layout.Size, padding float64) {
	if in.result == nil {
		return
	}
	in.viewport = layout.Fit(in.result.Bounds, canvas, padding)
	in.camera.Jump(in.result.Bounds.Center())
}

func (in *Instance) applyReplay(s replay.State) {
	in.highlight = replay.Apply(in.graph, in.Role, s)
}

// follow eases the camera to the active node. It reports whether a follow
// was started.
func (in *Instance) follow(now time.Time) bool {
	if in.highlight.Active == "" || in.camera == nil {
		return false
	}
	p, ok := in.positions[in.highlight.Active]
	if !ok || in.collapse.Hidden(in.highlight.Active) {
		return false
	}
	in.camera.Follow(p, now)
	return true
}

func (in *Instance) color(id string) string {
	if c, ok := in.highlight.Colors[id]; ok {
		return c
	}
	return replay.ColorDefault
}

func (in *Instance) frame(now time.Time, canvas layout.Size) *graph.Frame {
	f := &graph.Frame{
		Role:     in.Role.String(),
		Label:    in.Label,
		Instance: in.ID,
		Mode:     graph.ModeTree,
		Width:    canvas.Width,
		Height:   canvas.Height,
		Viewport: in.viewport,
		Active:   in.highlight.Active,
	}
	if in.graph.Mode() == model.ModeAutomaton {
		f.Mode = graph.ModeAutomaton
	}
	if in.camera != nil {
		f.Camera = in.camera.At(now)
	}
	if in.result != nil {
		f.Animate = in.result.Animate
	}

	for _, n := range in.graph.Nodes() {
		p := in.positions[n.ID]
		f.Nodes = append(f.Nodes, graph.Node{
			ID:     n.ID,
			Label:  in.collapse.Label(n.ID),
			Symbol: n.Symbol,
			X:      p.X,
			Y:      p.Y,
			Color:  in.color(n.ID),
			Hidden: in.collapse.Hidden(n.ID),
			Merged: in.collapse.Merged(n.ID),
		})
	}
	for _, e := range in.graph.Edges() {
		f.Edges = append(f.Edges, graph.Edge{From: e.From, To: e.To, Label: e.Label})
	}
	return f
}
