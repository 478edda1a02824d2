package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/pdaviz/pkg/core/build"
	"github.com/matzehuels/pdaviz/pkg/core/collapse"
	"github.com/matzehuels/pdaviz/pkg/core/layout"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/graph"
	"github.com/matzehuels/pdaviz/pkg/matcher"
	"github.com/matzehuels/pdaviz/pkg/observability"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
	"github.com/matzehuels/pdaviz/pkg/viz"
)

// =============================================================================
// Fixtures
// =============================================================================

type stubMatcher struct{}

func (stubMatcher) FetchGraph(_ context.Context, role replay.Role, _ string) ([]*build.Payload, error) {
	if role == replay.RolePattern {
		return []*build.Payload{
			{
				Label: "GRAPH",
				Kind:  build.KindAutomaton,
				Automaton: &build.Automaton{
					States:      []int{0, 1},
					Transitions: map[string][]build.Transition{"0": {{From: 0, To: 1}}},
				},
			},
			{Label: "TREE", Kind: build.KindTree, Tree: &build.TreeNode{Name: "Pattern", ID: "1"}},
		}, nil
	}
	return []*build.Payload{{
		Label: "main",
		Kind:  build.KindTree,
		Tree: &build.TreeNode{
			Name: "Module", ID: "1",
			Children: []*build.TreeNode{
				{Name: "Expr", ID: "2", Children: []*build.TreeNode{{Name: "Name", ID: "4"}}},
				{Name: "Pass", ID: "3"},
			},
		},
	}}, nil
}

func (stubMatcher) Match(context.Context, string, string) (*matcher.MatchResult, error) {
	return &matcher.MatchResult{
		Initial:     replay.Pair{PatternNode: "1", CodeNode: "1"},
		Steps:       1,
		MatchStates: []int{1},
	}, nil
}

func (stubMatcher) Step(_ context.Context, i int) (*matcher.Step, error) {
	return &matcher.Step{
		Index: i,
		State: replay.State{Current: replay.Pair{PatternNode: "1", CodeNode: "2"}},
	}, nil
}

func (stubMatcher) Validate(context.Context, string, string) (*matcher.Validation, error) {
	return &matcher.Validation{Valid: true}, nil
}

func newTestServer(t *testing.T, mount bool) *Server {
	t.Helper()
	logger := log.New(io.Discard)
	host := viz.NewHost(viz.Options{
		Resize: viz.NewResizeService(layout.Size{Width: 1020, Height: 675}),
		Logger: logger,
	})
	runner := pipeline.NewRunner(stubMatcher{}, host, pipeline.Options{Logger: logger})
	if mount {
		ctx := context.Background()
		if err := runner.SetText(ctx, replay.RoleCode, "x = 1"); err != nil {
			t.Fatal(err)
		}
		if err := runner.SetText(ctx, replay.RolePattern, "_ = _"); err != nil {
			t.Fatal(err)
		}
	}
	p := observability.NewPrometheus(prometheus.NewRegistry())
	s := New(runner, Options{Logger: logger, Metrics: p.Handler()})
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// =============================================================================
// Tests
// =============================================================================

func TestRootRedirects(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/view/pattern" {
		t.Errorf("Location = %q", loc)
	}
}

func TestFramesNotMounted(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/api/frames/code", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if resp.Code != "NOT_MOUNTED" {
		t.Errorf("code = %q, want NOT_MOUNTED", resp.Code)
	}
}

func TestFrames(t *testing.T) {
	s := newTestServer(t, true)

	rec := do(t, s, http.MethodGet, "/api/frames/code", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	f := decodeBody[graph.Frame](t, rec)
	if f.Label != "main" || f.Role != "code" {
		t.Errorf("frame = %s/%s, want code/main", f.Role, f.Label)
	}
	if len(f.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(f.Nodes))
	}

	rec = do(t, s, http.MethodGet, "/api/frames/pattern?all=1", "")
	frames := decodeBody[[]graph.Frame](t, rec)
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
}

func TestInvalidRole(t *testing.T) {
	s := newTestServer(t, true)
	rec := do(t, s, http.MethodGet, "/api/frames/both", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClick(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"fold", "/api/click/code", `{"node":"2"}`, http.StatusOK},
		{"hidden child", "/api/click/code", `{"node":"4"}`, http.StatusConflict},
		{"unknown", "/api/click/code", `{"node":"99"}`, http.StatusNotFound},
		{"automaton", "/api/click/pattern", `{"node":"0"}`, http.StatusConflict},
		{"bad body", "/api/click/code", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestClickResponse(t *testing.T) {
	s := newTestServer(t, true)
	rec := do(t, s, http.MethodPost, "/api/click/code", `{"node":"2"}`)
	resp := decodeBody[ClickResponse](t, rec)
	if !resp.Merged || resp.Node != "2" {
		t.Errorf("response = %+v, want node 2 merged", resp)
	}
	if len(resp.Hidden) != 1 || resp.Hidden[0] != "4" {
		t.Errorf("hidden = %v, want [4]", resp.Hidden)
	}
	n, ok := resp.Frame.Node("2")
	if !ok || !n.Merged {
		t.Errorf("frame node 2 = %+v, want merged", n)
	}
}

func TestSelect(t *testing.T) {
	s := newTestServer(t, true)

	rec := do(t, s, http.MethodPost, "/api/select/pattern", `{"label":"TREE"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if f := decodeBody[graph.Frame](t, rec); f.Label != "TREE" {
		t.Errorf("label = %q, want TREE", f.Label)
	}

	rec = do(t, s, http.MethodPost, "/api/select/pattern", `{"label":"NOPE"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestViewport(t *testing.T) {
	s := newTestServer(t, true)

	rec := do(t, s, http.MethodPost, "/api/viewport", `{"width":640,"height":480}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	want := viz.CanvasSize(layout.Size{Width: 640, Height: 480}, viz.DefaultControlBarHeight)
	f := decodeBody[graph.Frame](t, do(t, s, http.MethodGet, "/api/frames/code", ""))
	if f.Width != want.Width || f.Height != want.Height {
		t.Errorf("canvas = %vx%v, want %vx%v", f.Width, f.Height, want.Width, want.Height)
	}

	rec = do(t, s, http.MethodPost, "/api/viewport", `{"width":0,"height":480}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	if rec := do(t, s, http.MethodPost, "/api/reset/code", ""); rec.Code != http.StatusOK {
		t.Errorf("reset status = %d", rec.Code)
	}
}

func TestStep(t *testing.T) {
	s := newTestServer(t, true)

	rec := do(t, s, http.MethodPost, "/api/step", `{"action":"next"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("next before start: status = %d, want 400", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/step", `{"action":"start"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status = %d: %s", rec.Code, rec.Body)
	}
	snap := decodeBody[pipeline.Snapshot](t, rec)
	if !snap.HasStarted || snap.MaxStep != 1 {
		t.Errorf("snapshot = %+v, want started with max step 1", snap)
	}

	tests := []struct {
		body string
		step int
	}{
		{`{"action":"next"}`, 1},
		{`{"action":"next"}`, 1},
		{`{"action":"first"}`, 0},
		{`{"action":"last"}`, 1},
		{`{"action":"prev"}`, 0},
		{`{"action":"set","step":9}`, 1},
		{`{"action":"next_match"}`, 1},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodPost, "/api/step", tt.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d: %s", tt.body, rec.Code, rec.Body)
		}
		if got := decodeBody[pipeline.Snapshot](t, rec).Step; got != tt.step {
			t.Errorf("%s: step = %d, want %d", tt.body, got, tt.step)
		}
	}

	rec = do(t, s, http.MethodPost, "/api/step", `{"action":"reset"}`)
	if snap := decodeBody[pipeline.Snapshot](t, rec); snap.HasStarted {
		t.Error("reset left the match started")
	}

	rec = do(t, s, http.MethodPost, "/api/step", `{"action":"jump"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action: status = %d, want 400", rec.Code)
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		path   string
		status int
		ctype  string
		prefix string
	}{
		{"/export/code.json", http.StatusOK, "application/json", "{"},
		{"/export/code.svg", http.StatusOK, "image/svg+xml", ""},
		{"/export/code.png", http.StatusOK, "image/png", "\x89PNG"},
		{"/export/code.gif", http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.ctype) {
				t.Errorf("Content-Type = %q, want %q", ct, tt.ctype)
			}
			if !bytes.HasPrefix(rec.Body.Bytes(), []byte(tt.prefix)) {
				t.Errorf("body does not start with %q", tt.prefix)
			}
			if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "main.") {
				t.Errorf("Content-Disposition = %q", cd)
			}
		})
	}
}

func TestView(t *testing.T) {
	s := newTestServer(t, true)
	rec := do(t, s, http.MethodGet, "/view/code", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "echarts") {
		t.Error("view does not embed echarts")
	}
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestState(t *testing.T) {
	s := newTestServer(t, true)
	rec := do(t, s, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := decodeBody[pipeline.Snapshot](t, rec)
	if snap.Code != "x = 1" || snap.Pattern != "_ = _" || !snap.CanStart() {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidInput, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeNotMounted, "x"), http.StatusNotFound},
		{errors.New(errors.ErrCodeTimeout, "x"), http.StatusGatewayTimeout},
		{errors.New(errors.ErrCodeNetwork, "x"), http.StatusBadGateway},
		{errors.New(errors.ErrCodeInvalidPayload, "x"), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", collapse.ErrHidden), http.StatusConflict},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWebsocketPush(t *testing.T) {
	s := newTestServer(t, true)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() Message {
		t.Helper()
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}

	// Initial snapshot: one frame per role, then the state.
	for _, role := range replay.Roles {
		m := read()
		if m.Type != MessageFrame || m.Role != role.String() || m.Frame == nil {
			t.Fatalf("initial message = %+v, want %s frame", m, role)
		}
	}
	if m := read(); m.Type != MessageState || m.State == nil {
		t.Fatalf("initial message = %+v, want state", m)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := s.host.Click(context.Background(), replay.RoleCode, "2"); err != nil {
		t.Fatal(err)
	}
	m := read()
	if m.Type != MessageFrame || m.Event != viz.EventLayout || m.Role != "code" {
		t.Fatalf("push = %+v, want code layout frame", m)
	}
	if n, ok := m.Frame.Node("2"); !ok || !n.Merged {
		t.Errorf("pushed node 2 = %+v, want merged", n)
	}
}
