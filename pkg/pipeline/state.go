package pipeline

import (
	"slices"
	"sync"

	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/matcher"
)

// State holds the text of both roles and the progress of the current match.
// It is safe for concurrent use; readers get copies through [State.Snapshot].
type State struct {
	mu sync.RWMutex

	text       map[replay.Role]string
	validation map[replay.Role]string

	started     bool
	step        int
	maxStep     int
	matchStates []int
	replay      replay.State

	currentStack  string
	previousStack string
	codePos       matcher.Span

	lastError string
}

// Snapshot is a point-in-time copy of a [State].
type Snapshot struct {
	Code             string            `json:"code"`
	Pattern          string            `json:"pattern"`
	HasStarted       bool              `json:"has_started"`
	Step             int               `json:"step"`
	MaxStep          int               `json:"max_step"`
	MatchStates      []int             `json:"match_states"`
	Replay           replay.State      `json:"replay"`
	CurrentStack     string            `json:"current_stack"`
	PreviousStack    string            `json:"previous_stack"`
	CodePos          matcher.Span      `json:"code_pos"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// CanStart reports whether both texts are present.
func (s Snapshot) CanStart() bool {
	return s.Code != "" && s.Pattern != ""
}

// NewState returns an empty state with the default replay state.
func NewState() *State {
	return &State{
		text:       make(map[replay.Role]string),
		validation: make(map[replay.Role]string),
		replay:     replay.DefaultState(),
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Code:          s.text[replay.RoleCode],
		Pattern:       s.text[replay.RolePattern],
		HasStarted:    s.started,
		Step:          s.step,
		MaxStep:       s.maxStep,
		MatchStates:   slices.Clone(s.matchStates),
		Replay:        cloneReplay(s.replay),
		CurrentStack:  s.currentStack,
		PreviousStack: s.previousStack,
		CodePos:       s.codePos,
		Error:         s.lastError,
	}
	for role, msg := range s.validation {
		if msg == "" {
			continue
		}
		if snap.ValidationErrors == nil {
			snap.ValidationErrors = make(map[string]string)
		}
		snap.ValidationErrors[role.String()] = msg
	}
	return snap
}

// Text returns the stored text of role.
func (s *State) Text(role replay.Role) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text[role]
}

// Started reports whether a match is in progress.
func (s *State) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Step returns the current step index.
func (s *State) Step() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// setText stores text for role and resets the match.
func (s *State) setText(role replay.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text[role] = text
	s.validation[role] = ""
	s.resetMatchLocked()
}

func (s *State) setValidationError(role replay.Role, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validation[role] = msg
}

func (s *State) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// reset clears the match but keeps both texts.
func (s *State) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetMatchLocked()
	s.maxStep = 0
	s.matchStates = nil
	s.lastError = ""
}

func (s *State) resetMatchLocked() {
	s.replay = replay.DefaultState()
	s.started = false
	s.step = 0
	s.currentStack = ""
	s.previousStack = ""
	s.codePos = matcher.Span{}
}

// startMatch records a successful match request. The current pair is the
// match's initial pair until the first step arrives.
func (s *State) startMatch(res *matcher.MatchResult) replay.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.step = 0
	s.maxStep = res.MaxStep()
	s.matchStates = slices.Clone(res.MatchStates)
	s.replay = replay.State{Current: res.Initial}
	s.currentStack = ""
	s.previousStack = ""
	s.codePos = matcher.Span{}
	s.lastError = ""
	return cloneReplay(s.replay)
}

// failMatch records a failed match request.
func (s *State) failMatch(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.lastError = msg
}

// clampStep clamps n to [0, maxStep], stores it and returns it.
func (s *State) clampStep(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = max(0, min(n, s.maxStep))
	return s.step
}

// applyStep stores a fetched step.
func (s *State) applyStep(st *matcher.Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replay = cloneReplay(st.State)
	s.currentStack = st.CurrentStack
	s.previousStack = st.PreviousStack
	s.codePos = st.CodePos
}

// nextMatchState returns the first match state after the current step,
// wrapping around to the first one. ok is false when there are none.
func (s *State) nextMatchState() (step int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.matchStates) == 0 {
		return 0, false
	}
	sorted := slices.Sorted(slices.Values(s.matchStates))
	for _, m := range sorted {
		if m > s.step {
			return m, true
		}
	}
	return sorted[0], true
}

func cloneReplay(r replay.State) replay.State {
	return replay.State{
		Current:           r.Current,
		Matched:           slices.Clone(r.Matched),
		PreviouslyMatched: slices.Clone(r.PreviouslyMatched),
	}
}
