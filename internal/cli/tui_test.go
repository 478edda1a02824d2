package cli

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/matcher"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
)

type fakeStepper struct {
	calls []string
	err   error
	state *pipeline.State
}

func (f *fakeStepper) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeStepper) First(context.Context) error     { return f.record("first") }
func (f *fakeStepper) Prev(context.Context) error      { return f.record("prev") }
func (f *fakeStepper) Next(context.Context) error      { return f.record("next") }
func (f *fakeStepper) Last(context.Context) error      { return f.record("last") }
func (f *fakeStepper) NextMatch(context.Context) error { return f.record("match") }
func (f *fakeStepper) State() *pipeline.State          { return f.state }

func newFakeStepper() *fakeStepper {
	return &fakeStepper{state: pipeline.NewState()}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting step command to completion.
func press(t *testing.T, m ReplayModel, k string) ReplayModel {
	t.Helper()
	next, cmd := m.Update(key(k))
	m = next.(ReplayModel)
	if cmd == nil {
		return m
	}
	if !m.busy {
		t.Fatalf("key %q: model not busy while a step is pending", k)
	}
	next, _ = m.Update(cmd())
	return next.(ReplayModel)
}

func TestReplayModelKeys(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"left", "prev"},
		{"h", "prev"},
		{"right", "next"},
		{"l", "next"},
		{"home", "first"},
		{"end", "last"},
		{"g", "match"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f := newFakeStepper()
			m := press(t, NewReplayModel(context.Background(), f, nil), tt.key)
			if len(f.calls) != 1 || f.calls[0] != tt.want {
				t.Errorf("key %q called %v, want [%s]", tt.key, f.calls, tt.want)
			}
			if m.busy {
				t.Error("model still busy after the step finished")
			}
		})
	}
}

func TestReplayModelIgnoresKeysWhileBusy(t *testing.T) {
	f := newFakeStepper()
	m := NewReplayModel(context.Background(), f, nil)

	next, cmd := m.Update(key("right"))
	m = next.(ReplayModel)
	if cmd == nil {
		t.Fatal("expected a step command")
	}
	if _, cmd2 := m.Update(key("right")); cmd2 != nil {
		t.Error("second key while busy should not start another step")
	}
}

func TestReplayModelQuit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := NewReplayModel(context.Background(), newFakeStepper(), nil).Update(key(k))
		if cmd == nil {
			t.Fatalf("key %q returned no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %q did not quit", k)
		}
	}
}

func TestReplayModelShowsError(t *testing.T) {
	f := newFakeStepper()
	f.err = stderrors.New("matcher unreachable")
	m := press(t, NewReplayModel(context.Background(), f, nil), "right")
	if !strings.Contains(m.View(), "matcher unreachable") {
		t.Error("View() does not show the step error")
	}
}

func TestReplayModelLabels(t *testing.T) {
	var asked []replay.Role
	labels := func(role replay.Role, id string) string {
		asked = append(asked, role)
		return "lbl-" + id
	}
	m := NewReplayModel(context.Background(), newFakeStepper(), labels)
	if len(asked) != 2 {
		t.Fatalf("labeler called for %v, want both roles", asked)
	}
	// The default replay state has no pattern node.
	if m.patternLabel != "lbl-" {
		t.Errorf("patternLabel = %q", m.patternLabel)
	}
	if !strings.Contains(m.View(), "Match Replay") {
		t.Error("View() missing title")
	}
}

func TestLineOf(t *testing.T) {
	text := []rune("a = 1\nb = 2\nc = 3\n")
	tests := []struct {
		off  int
		want int
	}{
		{0, 0},
		{5, 0},
		{6, 1},
		{12, 2},
	}
	for _, tt := range tests {
		if got := lineOf(text, tt.off); got != tt.want {
			t.Errorf("lineOf(%d) = %d, want %d", tt.off, got, tt.want)
		}
	}
}

func TestSplitSpan(t *testing.T) {
	tests := []struct {
		name                string
		lineStart, from, to int
		before, hit, after  string
	}{
		{"inside", 10, 14, 17, "x = ", "foo", "()"},
		{"starts earlier", 10, 2, 13, "", "x =", " foo()"},
		{"ends later", 10, 14, 40, "x = ", "foo()", ""},
		{"outside", 10, 30, 40, "x = foo()", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, hit, after := splitSpan("x = foo()", tt.lineStart, tt.from, tt.to)
			if before != tt.before || hit != tt.hit || after != tt.after {
				t.Errorf("splitSpan() = %q, %q, %q; want %q, %q, %q",
					before, hit, after, tt.before, tt.hit, tt.after)
			}
		})
	}
}

func TestRenderCode(t *testing.T) {
	if renderCode("", matcher.Span{Start: 0, End: 3}) != "" {
		t.Error("renderCode of empty code should be empty")
	}

	code := "first\nsecond\nthird"
	out := renderCode(code, matcher.Span{Start: 6, End: 9})
	if !strings.Contains(out, "▶ second") {
		t.Errorf("renderCode() did not mark line 2:\n%s", out)
	}
	if strings.Contains(out, "▶ first") || strings.Contains(out, "▶ third") {
		t.Errorf("renderCode() marked the wrong line:\n%s", out)
	}

	// A span across a line break marks both lines.
	out = renderCode(code, matcher.Span{Start: 3, End: 8})
	if !strings.Contains(out, "▶ first") || !strings.Contains(out, "▶ second") {
		t.Errorf("renderCode() did not mark lines 1 and 2:\n%s", out)
	}

	out = renderCode(code, matcher.Span{})
	if strings.Contains(out, "▶") {
		t.Errorf("renderCode() with an empty span marked a line:\n%s", out)
	}
}

func TestNodeRef(t *testing.T) {
	if got := nodeRef("-1", ""); !strings.Contains(got, "-") || strings.Contains(got, "#") {
		t.Errorf("nodeRef(-1) = %q", got)
	}
	if got := nodeRef("4", "Call"); !strings.Contains(got, "Call") || !strings.Contains(got, "#4") {
		t.Errorf("nodeRef(4, Call) = %q", got)
	}
}
