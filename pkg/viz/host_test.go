package viz

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pdaviz/pkg/cache"
	"github.com/matzehuels/pdaviz/pkg/core/build"
	"github.com/matzehuels/pdaviz/pkg/core/collapse"
	"github.com/matzehuels/pdaviz/pkg/core/layout"
	"github.com/matzehuels/pdaviz/pkg/core/model"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/graph"
)

// tree: 1 -> {2, 3}, 2 -> 4
func testTree(t *testing.T) build.Built {
	t.Helper()
	g, err := build.FromTree(&build.TreeNode{
		Name: "Module", ID: "1",
		Children: []*build.TreeNode{
			{Name: "Expr", ID: "2", Children: []*build.TreeNode{{Name: "Name", ID: "4"}}},
			{Name: "Pass", ID: "3"},
		},
	})
	if err != nil {
		t.Fatalf("build.FromTree: %v", err)
	}
	return build.Built{Label: "main", Kind: build.KindTree, Graph: g}
}

func testAutomaton(t *testing.T, label string) build.Built {
	t.Helper()
	g, err := build.FromAutomaton(&build.Automaton{
		States: []int{0, 1, 2},
		Transitions: map[string][]build.Transition{
			"0": {{From: 0, To: 1}, {From: 0, To: 2}},
		},
	})
	if err != nil {
		t.Fatalf("build.FromAutomaton: %v", err)
	}
	return build.Built{Label: label, Kind: build.KindAutomaton, Graph: g}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestHost(t *testing.T) (*Host, *ResizeService, *fakeClock) {
	t.Helper()
	rs := NewResizeService(layout.Size{Width: 1020, Height: 675})
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	h := NewHost(Options{
		Resize: rs,
		Logger: log.New(&bytes.Buffer{}),
		Now:    clock.Now,
	})
	return h, rs, clock
}

func TestMountAndSnapshot(t *testing.T) {
	h, rs, _ := newTestHost(t)
	ctx := context.Background()

	if err := h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)}); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if !h.Mounted(replay.RoleCode) {
		t.Fatal("RoleCode should be mounted")
	}
	if rs.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", rs.Subscribers())
	}

	f, err := h.Snapshot(replay.RoleCode)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if f.Role != "code" || f.Label != "main" || f.Mode != graph.ModeTree {
		t.Errorf("frame header = %s/%s/%s", f.Role, f.Label, f.Mode)
	}
	if len(f.Nodes) != 4 || len(f.Edges) != 3 {
		t.Errorf("frame has %d nodes, %d edges; want 4, 3", len(f.Nodes), len(f.Edges))
	}
	// canvas = container - (20, 50+25)
	if f.Width != 1000 || f.Height != 600 {
		t.Errorf("canvas = %vx%v, want 1000x600", f.Width, f.Height)
	}
	for _, n := range f.Nodes {
		if n.Color != replay.ColorDefault {
			t.Errorf("node %s color = %s, want default", n.ID, n.Color)
		}
	}
	if f.Instance == "" {
		t.Error("frame should carry the instance ID")
	}
}

func TestMountReplacesPreviousSet(t *testing.T) {
	h, rs, _ := newTestHost(t)
	ctx := context.Background()

	_ = h.Mount(ctx, replay.RolePattern, []build.Built{testAutomaton(t, "a"), testAutomaton(t, "b")})
	first, _ := h.Snapshot(replay.RolePattern)
	_ = h.SwitchVisible(replay.RolePattern, "b")

	_ = h.Mount(ctx, replay.RolePattern, []build.Built{testAutomaton(t, "b"), testAutomaton(t, "c")})
	if rs.Subscribers() != 1 {
		t.Errorf("re-mount should keep exactly one resize subscription, got %d", rs.Subscribers())
	}
	if got := h.Labels(replay.RolePattern); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Labels() = %v, want [b c]", got)
	}
	f, _ := h.Snapshot(replay.RolePattern)
	if f.Label != "b" {
		t.Errorf("visible label after re-mount = %s, want b (kept)", f.Label)
	}
	if f.Instance == first.Instance {
		t.Error("re-mount should create new instances")
	}
}

func TestUnmount(t *testing.T) {
	h, rs, _ := newTestHost(t)
	_ = h.Mount(context.Background(), replay.RoleCode, []build.Built{testTree(t)})

	h.Unmount(replay.RoleCode)
	if h.Mounted(replay.RoleCode) {
		t.Error("RoleCode should be unmounted")
	}
	if rs.Subscribers() != 0 {
		t.Errorf("Unmount should unsubscribe, %d left", rs.Subscribers())
	}
	if _, err := h.Snapshot(replay.RoleCode); !errors.Is(err, errors.ErrCodeNotMounted) {
		t.Errorf("Snapshot after Unmount error = %v, want NOT_MOUNTED", err)
	}
	h.Unmount(replay.RoleCode) // no-op
}

func TestMountEmptySet(t *testing.T) {
	h, _, _ := newTestHost(t)
	if err := h.Mount(context.Background(), replay.RoleCode, nil); err != nil {
		t.Fatalf("Mount(nil): %v", err)
	}
	if _, err := h.Snapshot(replay.RoleCode); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Snapshot of empty view error = %v, want NOT_FOUND", err)
	}
}

func TestSwitchVisibleUnknown(t *testing.T) {
	h, _, _ := newTestHost(t)
	_ = h.Mount(context.Background(), replay.RolePattern, []build.Built{testAutomaton(t, "a")})
	if err := h.SwitchVisible(replay.RolePattern, "zzz"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("SwitchVisible(zzz) error = %v, want NOT_FOUND", err)
	}
	if err := h.SwitchVisible(replay.RoleCode, "a"); !errors.Is(err, errors.ErrCodeNotMounted) {
		t.Errorf("SwitchVisible on unmounted role error = %v, want NOT_MOUNTED", err)
	}
}

func TestClickCollapseRoundTrip(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()
	_ = h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)})
	before, _ := h.Snapshot(replay.RoleCode)

	change, err := h.Click(ctx, replay.RoleCode, "2")
	if err != nil {
		t.Fatalf("Click: %v", err)
	}
	if !change.Merged || len(change.Hidden) != 1 || change.Hidden[0] != "4" {
		t.Errorf("collapse change = %+v", change)
	}

	f, _ := h.Snapshot(replay.RoleCode)
	n2, _ := f.Node("2")
	n4, _ := f.Node("4")
	if !n2.Merged || n2.Label != "Expr"+collapse.Decoration {
		t.Errorf("node 2 = %+v, want merged and decorated", n2)
	}
	if !n4.Hidden {
		t.Error("node 4 should be hidden")
	}
	if !f.Animate {
		t.Error("layout after a click should be animated")
	}
	if len(f.VisibleNodes()) != 3 {
		t.Errorf("visible nodes = %d, want 3", len(f.VisibleNodes()))
	}

	if _, err := h.Click(ctx, replay.RoleCode, "2"); err != nil {
		t.Fatalf("second Click: %v", err)
	}
	after, _ := h.Snapshot(replay.RoleCode)
	for _, n := range after.Nodes {
		b, _ := before.Node(n.ID)
		if n.Hidden != b.Hidden || n.Merged != b.Merged || n.Label != b.Label {
			t.Errorf("node %s after round trip = %+v, want %+v", n.ID, n, b)
		}
	}
}

type failingPlacer struct{ err error }

func (p failingPlacer) Place(context.Context, *model.Graph, []string, layout.Direction, layout.Box) (map[string]layout.Point, error) {
	return nil, p.err
}

func TestClickRelayoutFailureKeepsState(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()
	if err := h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)}); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	before, _ := h.Snapshot(replay.RoleCode)

	boom := stderrors.New("placer failed")
	h.opts.Layout.Placer = failingPlacer{err: boom}

	change, err := h.Click(ctx, replay.RoleCode, "2")
	if !stderrors.Is(err, boom) {
		t.Fatalf("Click error = %v, want %v", err, boom)
	}
	if change.Node != "" {
		t.Errorf("change = %+v, want zero value on failure", change)
	}

	after, _ := h.Snapshot(replay.RoleCode)
	for _, n := range after.Nodes {
		b, _ := before.Node(n.ID)
		if n.Hidden != b.Hidden || n.Merged != b.Merged || n.Label != b.Label {
			t.Errorf("node %s = %+v after failed click, want %+v", n.ID, n, b)
		}
	}

	h.opts.Layout.Placer = nil
	change, err = h.Click(ctx, replay.RoleCode, "2")
	if err != nil {
		t.Fatalf("Click after recovery: %v", err)
	}
	if !change.Merged {
		t.Errorf("change = %+v, want a fold", change)
	}
}

func TestClickErrors(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()
	_ = h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)})
	_ = h.Mount(ctx, replay.RolePattern, []build.Built{testAutomaton(t, "a")})

	if _, err := h.Click(ctx, replay.RoleCode, "99"); err != model.ErrUnknownNode {
		t.Errorf("Click(unknown) error = %v, want ErrUnknownNode", err)
	}
	if _, err := h.Click(ctx, replay.RolePattern, "0"); err != collapse.ErrNotCollapsible {
		t.Errorf("Click(automaton) error = %v, want ErrNotCollapsible", err)
	}
}

func TestApplyReplayColorsBothRoles(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()
	_ = h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)})
	_ = h.Mount(ctx, replay.RolePattern, []build.Built{testAutomaton(t, "a")})

	h.ApplyReplay(replay.State{
		Current:           replay.Pair{PatternNode: "0", CodeNode: "2"},
		Matched:           []replay.Pair{{PatternNode: "1", CodeNode: "3"}},
		PreviouslyMatched: []replay.Pair{{PatternNode: "2", CodeNode: "4"}, {PatternNode: "x", CodeNode: "missing"}},
	})

	code, _ := h.Snapshot(replay.RoleCode)
	want := map[string]string{
		"1": replay.ColorDefault,
		"2": replay.ColorActive,
		"3": replay.ColorMatched,
		"4": replay.ColorPreviouslyMatched,
	}
	for id, c := range want {
		if n, _ := code.Node(id); n.Color != c {
			t.Errorf("code node %s color = %s, want %s", id, n.Color, c)
		}
	}
	if code.Active != "2" {
		t.Errorf("code active = %q, want 2", code.Active)
	}

	pattern, _ := h.Snapshot(replay.RolePattern)
	if n, _ := pattern.Node("0"); n.Color != replay.ColorActive {
		t.Errorf("pattern node 0 color = %s, want active", n.Color)
	}
}

func TestApplyReplayBeforeMount(t *testing.T) {
	h, _, _ := newTestHost(t)
	h.ApplyReplay(replay.State{Current: replay.Pair{CodeNode: "3"}})
	_ = h.Mount(context.Background(), replay.RoleCode, []build.Built{testTree(t)})

	f, _ := h.Snapshot(replay.RoleCode)
	if n, _ := f.Node("3"); n.Color != replay.ColorActive {
		t.Errorf("state applied before mount should color new instances, got %s", n.Color)
	}
}

func TestApplyReplayFollow(t *testing.T) {
	h, _, clock := newTestHost(t)
	ctx := context.Background()
	_ = h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)})
	h.SetFollow(replay.RoleCode, true)

	h.mu.Lock()
	target := h.views[replay.RoleCode].current().positions["4"]
	h.mu.Unlock()

	h.ApplyReplay(replay.State{Current: replay.Pair{CodeNode: "4"}})

	mid, _ := h.Snapshot(replay.RoleCode)
	if mid.Camera == target {
		t.Error("camera should still be moving at the start of the follow")
	}

	clock.now = clock.now.Add(replay.FollowDuration)
	done, _ := h.Snapshot(replay.RoleCode)
	if done.Camera != target {
		t.Errorf("camera after follow = %+v, want %+v", done.Camera, target)
	}
}

func TestApplyReplayNoFollow(t *testing.T) {
	h, _, _ := newTestHost(t)
	_ = h.Mount(context.Background(), replay.RoleCode, []build.Built{testTree(t)})
	before, _ := h.Snapshot(replay.RoleCode)

	h.ApplyReplay(replay.State{Current: replay.Pair{CodeNode: "4"}})
	after, _ := h.Snapshot(replay.RoleCode)
	if after.Camera != before.Camera {
		t.Error("camera should not move with follow disabled")
	}
}

func TestResizeRefits(t *testing.T) {
	h, rs, _ := newTestHost(t)
	_ = h.Mount(context.Background(), replay.RoleCode, []build.Built{testTree(t)})

	rs.Resize(layout.Size{Width: 420, Height: 375})
	f, _ := h.Snapshot(replay.RoleCode)
	if f.Width != 400 || f.Height != 300 {
		t.Errorf("canvas after resize = %vx%v, want 400x300", f.Width, f.Height)
	}
}

func TestResetViewport(t *testing.T) {
	h, _, _ := newTestHost(t)
	_ = h.Mount(context.Background(), replay.RoleCode, []build.Built{testTree(t)})
	before, _ := h.Snapshot(replay.RoleCode)

	if err := h.ResetViewport(replay.RoleCode); err != nil {
		t.Fatalf("ResetViewport: %v", err)
	}
	after, _ := h.Snapshot(replay.RoleCode)
	if after.Viewport != before.Viewport {
		t.Errorf("ResetViewport changed an already fitted viewport: %+v vs %+v", after.Viewport, before.Viewport)
	}
	if err := h.ResetViewport(replay.RolePattern); !errors.Is(err, errors.ErrCodeNotMounted) {
		t.Errorf("ResetViewport(unmounted) error = %v", err)
	}
}

func TestSubscribeEvents(t *testing.T) {
	h, _, _ := newTestHost(t)
	var (
		mu     sync.Mutex
		events []Event
	)
	cancel := h.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	ctx := context.Background()
	_ = h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)})
	_, _ = h.Click(ctx, replay.RoleCode, "2")
	h.ApplyReplay(replay.DefaultState())
	cancel()
	h.Unmount(replay.RoleCode)

	want := []EventKind{EventMounted, EventLayout, EventReplay}
	if len(events) != len(want) {
		t.Fatalf("got %d events %+v, want %v", len(events), events, want)
	}
	for i, k := range want {
		if events[i].Kind != k || events[i].Role != replay.RoleCode {
			t.Errorf("event %d = %+v, want %s for code", i, events[i], k)
		}
	}
}

func TestExportImage(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	rs := NewResizeService(DefaultContainer)
	h := NewHost(Options{Resize: rs, Cache: fc, Logger: log.New(&bytes.Buffer{})})
	ctx := context.Background()
	_ = h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)})

	data, name, err := h.ExportImage(ctx, replay.RoleCode)
	if err != nil {
		t.Fatalf("ExportImage: %v", err)
	}
	if name != "main.png" {
		t.Errorf("filename = %s, want main.png", name)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("ExportImage did not return a PNG")
	}

	again, _, err := h.ExportImage(ctx, replay.RoleCode)
	if err != nil || !bytes.Equal(again, data) {
		t.Error("second export should return the cached bytes")
	}
}

func TestExportJSON(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx := context.Background()
	_ = h.Mount(ctx, replay.RoleCode, []build.Built{testTree(t)})

	data, name, err := h.Export(ctx, replay.RoleCode, graph.FormatJSON)
	if err != nil {
		t.Fatalf("Export(json): %v", err)
	}
	if name != "main.json" {
		t.Errorf("filename = %s", name)
	}
	f, err := graph.ReadFrame(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("exported JSON does not decode: %v", err)
	}
	if f.Label != "main" || len(f.Nodes) != 4 {
		t.Errorf("decoded frame = %s with %d nodes", f.Label, len(f.Nodes))
	}
}
