package viz

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pdaviz/pkg/cache"
	"github.com/matzehuels/pdaviz/pkg/core/build"
	"github.com/matzehuels/pdaviz/pkg/core/collapse"
	"github.com/matzehuels/pdaviz/pkg/core/layout"
	"github.com/matzehuels/pdaviz/pkg/core/render/nodelink"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/graph"
	"github.com/matzehuels/pdaviz/pkg/observability"
)

// DefaultControlBarHeight is the height reserved for the per-view controls.
const DefaultControlBarHeight = 50

// DefaultFitPadding is the margin kept around a fitted graph.
const DefaultFitPadding = 30

// Options configures a [Host].
type Options struct {
	Layout layout.Options
	Render nodelink.Options

	ControlBarHeight float64 // default DefaultControlBarHeight
	FitPadding       float64 // default DefaultFitPadding

	// Follow enables the camera follow per role.
	Follow map[replay.Role]bool

	Resize   *ResizeService // default DefaultResizeService()
	Cache    cache.Cache    // artifact cache; nil disables caching
	CacheTTL time.Duration  // default cache.ArtifactTTL
	Keyer    cache.Keyer    // default cache.NewDefaultKeyer()
	Logger   *log.Logger    // default log.Default()
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ControlBarHeight <= 0 {
		o.ControlBarHeight = DefaultControlBarHeight
	}
	if o.FitPadding <= 0 {
		o.FitPadding = DefaultFitPadding
	}
	if o.Resize == nil {
		o.Resize = DefaultResizeService()
	}
	if o.Cache == nil {
		o.Cache = cache.Disabled()
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = cache.ArtifactTTL
	}
	if o.Keyer == nil {
		o.Keyer = cache.NewDefaultKeyer()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// EventKind names what changed in a role.
type EventKind string

const (
	EventMounted   EventKind = "mounted"
	EventUnmounted EventKind = "unmounted"
	EventSwitched  EventKind = "switched"
	EventLayout    EventKind = "layout"
	EventReplay    EventKind = "replay"
	EventViewport  EventKind = "viewport"
)

// Event is delivered to subscribers after a change is committed.
type Event struct {
	Role  replay.Role
	Kind  EventKind
	Label string
}

type view struct {
	instances   []*Instance
	visible     int
	canvas      layout.Size
	unsubscribe func()
}

func (v *view) current() *Instance {
	if v.visible < 0 || v.visible >= len(v.instances) {
		return nil
	}
	return v.instances[v.visible]
}

// Host owns the mounted instances of every role.
type Host struct {
	opts Options

	mu     sync.Mutex
	views  map[replay.Role]*view
	state  replay.State
	follow map[replay.Role]bool

	subMu  sync.Mutex
	subs   map[uint64]func(Event)
	nextID uint64
}

// NewHost creates an empty host.
func NewHost(opts Options) *Host {
	opts = opts.withDefaults()
	follow := make(map[replay.Role]bool, len(replay.Roles))
	for r, on := range opts.Follow {
		follow[r] = on
	}
	return &Host{
		opts:   opts,
		views:  make(map[replay.Role]*view),
		state:  replay.DefaultState(),
		follow: follow,
		subs:   make(map[uint64]func(Event)),
	}
}

// =============================================================================
// Subscriptions
// =============================================================================

// Subscribe registers fn for every committed change and returns a function
// that removes it. fn runs outside the host lock and may call back into the
// host.
func (h *Host) Subscribe(fn func(Event)) (cancel func()) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	return func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		delete(h.subs, id)
	}
}

func (h *Host) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	h.subMu.Lock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.subMu.Unlock()

	for _, e := range events {
		for _, fn := range fns {
			fn(e)
		}
	}
}

// =============================================================================
// Mounting
// =============================================================================

// Mount replaces the instance set of role with one instance per built
// sub-graph. Layouts are computed before the previous set is disposed, so a
// failed layout leaves the mounted model untouched.
//
// The previously visible label stays visible when the new set still has it.
func (h *Host) Mount(ctx context.Context, role replay.Role, built []build.Built) error {
	instances := make([]*Instance, 0, len(built))
	for _, b := range built {
		in := newInstance(role, b)
		if err := in.relayout(ctx, h.opts.Layout, false); err != nil {
			return fmt.Errorf("layout %q: %w", b.Label, err)
		}
		instances = append(instances, in)
	}

	h.mu.Lock()
	prevLabel := ""
	if old, ok := h.views[role]; ok {
		if cur := old.current(); cur != nil {
			prevLabel = cur.Label
		}
		old.unsubscribe()
	}

	v := &view{
		instances: instances,
		canvas:    CanvasSize(h.opts.Resize.Size(), h.opts.ControlBarHeight),
	}
	if len(instances) == 0 {
		v.visible = -1
	}
	for i, in := range instances {
		if in.Label == prevLabel {
			v.visible = i
		}
		in.applyReplay(h.state)
		in.fit(v.canvas, h.opts.FitPadding)
	}
	v.unsubscribe = h.opts.Resize.Subscribe(func(container layout.Size) {
		h.resize(role, container)
	})
	h.views[role] = v

	label := ""
	if cur := v.current(); cur != nil {
		label = cur.Label
	}
	h.mu.Unlock()

	h.opts.Logger.Debug("mounted", "role", role, "instances", len(instances), "visible", label)
	h.emit(Event{Role: role, Kind: EventMounted, Label: label})
	return nil
}

// Unmount disposes the instances of role and drops its resize subscription.
// Unmounting a role that is not mounted is a no-op.
func (h *Host) Unmount(role replay.Role) {
	h.mu.Lock()
	v, ok := h.views[role]
	if ok {
		v.unsubscribe()
		delete(h.views, role)
	}
	h.mu.Unlock()

	if ok {
		h.opts.Logger.Debug("unmounted", "role", role)
		h.emit(Event{Role: role, Kind: EventUnmounted})
	}
}

// Mounted reports whether role has an instance set.
func (h *Host) Mounted(role replay.Role) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.views[role]
	return ok
}

func (h *Host) viewLocked(role replay.Role) (*view, error) {
	v, ok := h.views[role]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotMounted, "%s view is not mounted", role)
	}
	return v, nil
}

func (h *Host) currentLocked(role replay.Role) (*view, *Instance, error) {
	v, err := h.viewLocked(role)
	if err != nil {
		return nil, nil, err
	}
	in := v.current()
	if in == nil {
		return nil, nil, errors.New(errors.ErrCodeNotFound, "%s view has no sub-graphs", role)
	}
	return v, in, nil
}

// =============================================================================
// Sub-graph selection
// =============================================================================

// Labels returns the sub-graph labels of role in display order.
func (h *Host) Labels(role replay.Role) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.views[role]
	if !ok {
		return nil
	}
	out := make([]string, len(v.instances))
	for i, in := range v.instances {
		out[i] = in.Label
	}
	return out
}

// SwitchVisible makes the sub-graph named label the visible one.
func (h *Host) SwitchVisible(role replay.Role, label string) error {
	h.mu.Lock()
	v, err := h.viewLocked(role)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	idx := slices.IndexFunc(v.instances, func(in *Instance) bool { return in.Label == label })
	if idx < 0 {
		h.mu.Unlock()
		return errors.New(errors.ErrCodeNotFound, "%s view has no sub-graph %q", role, label)
	}
	v.visible = idx
	h.mu.Unlock()

	h.emit(Event{Role: role, Kind: EventSwitched, Label: label})
	return nil
}

// =============================================================================
// Viewport
// =============================================================================

// ResetViewport re-fits the visible sub-graph to the canvas.
func (h *Host) ResetViewport(role replay.Role) error {
	h.mu.Lock()
	v, in, err := h.currentLocked(role)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	in.fit(v.canvas, h.opts.FitPadding)
	h.mu.Unlock()

	h.emit(Event{Role: role, Kind: EventViewport, Label: in.Label})
	return nil
}

// Resizer returns the resize service the host's views subscribe to.
func (h *Host) Resizer() *ResizeService { return h.opts.Resize }

func (h *Host) resize(role replay.Role, container layout.Size) {
	h.mu.Lock()
	v, ok := h.views[role]
	if !ok {
		h.mu.Unlock()
		return
	}
	v.canvas = CanvasSize(container, h.opts.ControlBarHeight)
	for _, in := range v.instances {
		in.fit(v.canvas, h.opts.FitPadding)
	}
	h.mu.Unlock()

	h.emit(Event{Role: role, Kind: EventViewport})
}

// =============================================================================
// Interaction
// =============================================================================

// Click folds or unfolds the subtree below nodeID in the visible sub-graph
// of role and re-runs the layout with animation.
func (h *Host) Click(ctx context.Context, role replay.Role, nodeID string) (collapse.Change, error) {
	h.mu.Lock()
	_, in, err := h.currentLocked(role)
	if err != nil {
		h.mu.Unlock()
		return collapse.Change{}, err
	}
	saved := in.collapse.Save()
	change, err := in.collapse.Toggle(nodeID)
	if err != nil {
		h.mu.Unlock()
		return collapse.Change{}, err
	}
	if err := in.relayout(ctx, h.opts.Layout, true); err != nil {
		in.collapse.Restore(saved)
		h.mu.Unlock()
		return collapse.Change{}, fmt.Errorf("re-layout after toggling %s: %w", nodeID, err)
	}
	label := in.Label
	h.mu.Unlock()

	h.opts.Logger.Debug("toggled", "role", role, "node", nodeID, "merged", change.Merged,
		"hidden", len(change.Hidden), "revealed", len(change.Revealed))
	h.emit(Event{Role: role, Kind: EventLayout, Label: label})
	return change, nil
}

// SetFollow enables or disables the camera follow for role.
func (h *Host) SetFollow(role replay.Role, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.follow[role] = on
}

// ApplyReplay recolors every mounted instance of every role from s. Roles
// with follow enabled ease their visible camera to the active node. The
// state is remembered and applied to instances mounted later.
func (h *Host) ApplyReplay(s replay.State) {
	h.mu.Lock()
	h.state = s
	now := h.opts.Now()
	var events []Event
	for _, role := range replay.Roles {
		v, ok := h.views[role]
		if !ok {
			continue
		}
		for _, in := range v.instances {
			in.applyReplay(s)
		}
		if cur := v.current(); cur != nil && h.follow[role] {
			cur.follow(now)
		}
		events = append(events, Event{Role: role, Kind: EventReplay})
	}
	h.mu.Unlock()

	h.emit(events...)
}

// ReplayState returns the last applied replay state.
func (h *Host) ReplayState() replay.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// =============================================================================
// Snapshots and export
// =============================================================================

// Snapshot returns the frame of the visible sub-graph of role.
func (h *Host) Snapshot(role replay.Role) (*graph.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, in, err := h.currentLocked(role)
	if err != nil {
		return nil, err
	}
	f := in.frame(h.opts.Now(), v.canvas)
	f.Labels = make([]string, len(v.instances))
	for i, other := range v.instances {
		f.Labels[i] = other.Label
	}
	return f, nil
}

// Frames returns a frame for every sub-graph of role, visible or not.
func (h *Host) Frames(role replay.Role) ([]*graph.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.viewLocked(role)
	if err != nil {
		return nil, err
	}
	now := h.opts.Now()
	out := make([]*graph.Frame, len(v.instances))
	for i, in := range v.instances {
		out[i] = in.frame(now, v.canvas)
	}
	return out, nil
}

// ExportImage renders the visible sub-graph of role as PNG and returns the
// bytes with the file name "{label}.png".
func (h *Host) ExportImage(ctx context.Context, role replay.Role) ([]byte, string, error) {
	return h.Export(ctx, role, graph.FormatPNG)
}

// Export renders the visible sub-graph of role in format.
func (h *Host) Export(ctx context.Context, role replay.Role, format string) ([]byte, string, error) {
	f, err := h.Snapshot(role)
	if err != nil {
		return nil, "", err
	}
	data, err := h.Render(ctx, f, format)
	if err != nil {
		return nil, "", err
	}
	return data, f.Filename(format), nil
}

// Render renders a frame through the artifact cache. Image formats are
// keyed by the hash of their DOT source; JSON and HTML are not cached.
func (h *Host) Render(ctx context.Context, f *graph.Frame, format string) ([]byte, error) {
	start := time.Now()
	var (
		data []byte
		err  error
	)
	switch format {
	case graph.FormatPNG, graph.FormatSVG:
		dot := nodelink.ToDOT(f, h.opts.Render)
		key := h.opts.Keyer.ArtifactKey(cache.Fingerprint(dot), cache.ArtifactKeyOpts{
			Format:     format,
			EdgeLabels: h.opts.Render.EdgeLabels,
		})
		data, _, err = cache.GetOrCompute(ctx, h.opts.Cache, key, h.opts.CacheTTL, func() ([]byte, error) {
			if format == graph.FormatPNG {
				return nodelink.RenderPNG(ctx, dot)
			}
			return nodelink.RenderSVG(ctx, dot)
		})
	default:
		data, err = nodelink.Render(ctx, f, format, h.opts.Render)
	}
	observability.Pipeline().OnRenderComplete(ctx, format, len(data), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("render %s %s: %w", f.Label, format, err)
	}
	return data, nil
}
