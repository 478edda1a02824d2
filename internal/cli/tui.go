package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/matcher"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
	"github.com/matzehuels/pdaviz/pkg/viz"
)

// Replay view styles
var (
	replayLabelStyle    = lipgloss.NewStyle().Foreground(colorGray).Width(10)
	replayActiveStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	replayMatchStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	replayCodeStyle     = lipgloss.NewStyle().Foreground(colorWhite)
	replayCodeHitStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	replayCodeSpanStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorYellow)
	replayErrorStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// codeContext is the number of code lines shown around the current position.
const codeContext = 6

// =============================================================================
// ReplayModel - Interactive match stepping
// =============================================================================

// stepper is the part of the runner the replay view drives.
type stepper interface {
	First(ctx context.Context) error
	Prev(ctx context.Context) error
	Next(ctx context.Context) error
	Last(ctx context.Context) error
	NextMatch(ctx context.Context) error
	State() *pipeline.State
}

// labeler resolves a node ID to its display label.
type labeler func(role replay.Role, id string) string

// hostLabeler looks node labels up in the visible instance of each role.
func hostLabeler(host *viz.Host) labeler {
	return func(role replay.Role, id string) string {
		f, err := host.Snapshot(role)
		if err != nil {
			return ""
		}
		if n, ok := f.Node(id); ok {
			return n.Label
		}
		return ""
	}
}

// stepDoneMsg is sent when an async step request finishes.
type stepDoneMsg struct {
	err error
}

// ReplayModel is the bubbletea model for stepping through a match.
type ReplayModel struct {
	ctx    context.Context
	runner stepper
	labels labeler

	snap         pipeline.Snapshot
	patternLabel string
	codeLabel    string
	busy         bool
	err          error
}

// NewReplayModel creates a replay model over a started runner.
func NewReplayModel(ctx context.Context, runner stepper, labels labeler) ReplayModel {
	m := ReplayModel{ctx: ctx, runner: runner, labels: labels}
	m.refresh()
	return m
}

// Step returns the step currently shown.
func (m ReplayModel) Step() int { return m.snap.Step }

func (m *ReplayModel) refresh() {
	m.snap = m.runner.State().Snapshot()
	m.patternLabel, m.codeLabel = "", ""
	if m.labels == nil {
		return
	}
	cur := m.snap.Replay.Current
	m.patternLabel = m.labels(replay.RolePattern, cur.PatternNode)
	m.codeLabel = m.labels(replay.RoleCode, cur.CodeNode)
}

func (m ReplayModel) Init() tea.Cmd {
	return nil
}

func (m ReplayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		var fn func(context.Context) error
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h":
			fn = m.runner.Prev
		case "right", "l", " ":
			fn = m.runner.Next
		case "home":
			fn = m.runner.First
		case "end":
			fn = m.runner.Last
		case "g":
			fn = m.runner.NextMatch
		}
		if fn == nil || m.busy {
			return m, nil
		}
		m.busy = true
		ctx := m.ctx
		return m, func() tea.Msg {
			return stepDoneMsg{err: fn(ctx)}
		}

	case stepDoneMsg:
		m.busy = false
		m.err = msg.err
		m.refresh()
	}

	return m, nil
}

func (m ReplayModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Match Replay"))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  step %d/%d", m.snap.Step, m.snap.MaxStep)))
	if m.busy {
		b.WriteString(StyleDim.Render("  loading..."))
	}
	b.WriteString("\n\n")

	b.WriteString(replayRow("Matches", m.matchStates()))
	cur := m.snap.Replay.Current
	b.WriteString(replayRow("Pattern", nodeRef(cur.PatternNode, m.patternLabel)))
	b.WriteString(replayRow("Code", nodeRef(cur.CodeNode, m.codeLabel)))
	b.WriteString(replayRow("Matched", fmt.Sprintf("%s · %s",
		replayMatchStyle.Render(fmt.Sprintf("%d pairs", len(m.snap.Replay.Matched))),
		StyleDim.Render(fmt.Sprintf("%d previously", len(m.snap.Replay.PreviouslyMatched))))))
	b.WriteString(replayRow("Stack", StyleValue.Render(orDash(m.snap.CurrentStack))))
	b.WriteString(replayRow("Previous", StyleDim.Render(orDash(m.snap.PreviousStack))))
	b.WriteString("\n")

	b.WriteString(renderCode(m.snap.Code, m.snap.CodePos))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(replayErrorStyle.Render(iconError + " " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(StyleDim.Render("←/→ step • home/end first/last • g next match • q quit"))
	b.WriteString("\n")

	return b.String()
}

// matchStates lists the steps at which a match completed, marking the
// current one.
func (m ReplayModel) matchStates() string {
	if len(m.snap.MatchStates) == 0 {
		return StyleDim.Render("none")
	}
	parts := make([]string, len(m.snap.MatchStates))
	for i, s := range m.snap.MatchStates {
		if s == m.snap.Step {
			parts[i] = replayActiveStyle.Render(strconv.Itoa(s))
		} else {
			parts[i] = StyleNumber.Render(strconv.Itoa(s))
		}
	}
	return strings.Join(parts, StyleDim.Render(", "))
}

func replayRow(label, value string) string {
	return replayLabelStyle.Render(label) + " " + value + "\n"
}

func nodeRef(id, label string) string {
	if id == "" || id == "-1" {
		return StyleDim.Render("-")
	}
	if label == "" {
		return replayActiveStyle.Render("#" + id)
	}
	return replayActiveStyle.Render(label) + StyleDim.Render(" #"+id)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// renderCode prints the lines around span, marking every line it touches
// and highlighting the covered characters. An empty span shows the top of
// the file.
func renderCode(code string, span matcher.Span) string {
	if code == "" {
		return ""
	}
	text := []rune(code)
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	from, to, ok := span.Bounds(text)

	first, last := -1, -1
	lo, hi := 0, min(len(lines), 2*codeContext+1)
	if ok {
		first, last = lineOf(text, from), lineOf(text, to-1)
		lo, hi = max(0, first-codeContext), min(len(lines), last+codeContext+1)
	}

	var b strings.Builder
	start := 0
	for i, line := range lines {
		lineStart := start
		start += len([]rune(line)) + 1
		if i < lo || i >= hi {
			continue
		}
		num := StyleDim.Render(fmt.Sprintf("%4d ", i+1))
		if i < first || i > last {
			b.WriteString(num + replayCodeStyle.Render("  "+line) + "\n")
			continue
		}
		before, hit, after := splitSpan(line, lineStart, from, to)
		b.WriteString(num + replayCodeHitStyle.Render("▶ ") +
			replayCodeStyle.Render(before) + replayCodeSpanStyle.Render(hit) +
			replayCodeStyle.Render(after) + "\n")
	}
	return b.String()
}

// lineOf returns the 0-based line holding character offset off.
func lineOf(text []rune, off int) int {
	n := 0
	for _, r := range text[:off] {
		if r == '\n' {
			n++
		}
	}
	return n
}

// splitSpan cuts line, which begins at character offset lineStart, into the
// parts before, inside and after [from, to).
func splitSpan(line string, lineStart, from, to int) (before, hit, after string) {
	r := []rune(line)
	a := min(max(from-lineStart, 0), len(r))
	z := min(max(to-lineStart, a), len(r))
	return string(r[:a]), string(r[a:z]), string(r[z:])
}
