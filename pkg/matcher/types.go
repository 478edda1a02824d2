package matcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode"

	"github.com/matzehuels/pdaviz/pkg/core/build"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
)

// Status values of every matcher response.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Default validation languages per role.
const (
	LangCode    = "python"
	LangPattern = "pytterns"
)

// MatchResult is the answer to a match request.
type MatchResult struct {
	// Initial is the pair compared at step 0.
	Initial replay.Pair
	// Steps is the matcher's step count. Step indices run from 0 to Steps
	// inclusive.
	Steps int
	// MatchStates are the step indices at which a match completed.
	MatchStates []int
}

// MaxStep is the last step index.
func (m *MatchResult) MaxStep() int {
	if m.Steps <= 0 {
		return 0
	}
	return m.Steps
}

// Step is one step of the match trace.
type Step struct {
	Index         int
	State         replay.State
	CurrentStack  string
	PreviousStack string
	// CodePos is the span of code covered by the code node being compared.
	CodePos Span
}

// Span is a half-open range [Start, End) of character offsets into the
// code text. The matcher reports inclusive ends; [Client.Step] converts them.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Bounds clamps s to text and drops trailing whitespace
// from the range. ok is false when nothing is left to mark.
func (s Span) Bounds(text []rune) (from, to int, ok bool) {
	n := len(text)
	from = min(max(s.Start, 0), n)
	to = min(max(s.End, 0), n)
	for to > from && unicode.IsSpace(text[to-1]) {
		to--
	}
	return from, to, from < to
}

// Validation is the result of a syntax check.
type Validation struct {
	Valid   bool
	Message string
}

// =============================================================================
// Wire types
// =============================================================================

type envelope struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message,omitempty"`
}

// wirePair is a [pattern, code] node reference. IDs may arrive as numbers.
type wirePair [2]build.ID

func (p wirePair) pair() replay.Pair {
	return replay.Pair{PatternNode: string(p[0]), CodeNode: string(p[1])}
}

func pairs(in []wirePair) []replay.Pair {
	if len(in) == 0 {
		return nil
	}
	out := make([]replay.Pair, len(in))
	for i, p := range in {
		out[i] = p.pair()
	}
	return out
}

type graphRequest struct {
	Code string `json:"code"`
}

type graphResponse struct {
	Graph map[string]json.RawMessage `json:"graph"`
}

type matchRequest struct {
	Code    string `json:"code"`
	Pattern string `json:"pattern"`
}

type matchResponse struct {
	State       wirePair `json:"state"`
	NSteps      int      `json:"n_steps"`
	MatchStates []int    `json:"match_states"`
}

type stepRequest struct {
	Step int `json:"step"`
}

type stepResponse struct {
	State             wirePair   `json:"state"`
	CurrentMatchings  []wirePair `json:"current_matchings"`
	PreviousMatchings []wirePair `json:"previous_matchings"`
	CurrentStack      string     `json:"current_stack"`
	PreviousStack     string     `json:"previous_stack"`
	CodePos           [2]int     `json:"code_pos"`
}

type validateRequest struct {
	Code string `json:"code"`
	Lang string `json:"lang"`
}

type syntaxError struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Msg    string `json:"msg"`
}

// FormatValidationMessage renders the message field of a validation
// response. Object messages become "Error at line L:C - msg"; anything
// unreadable falls back to "Validation failed".
func FormatValidationMessage(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "Validation failed"
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		return "Validation failed"
	}
	var se syntaxError
	if err := json.Unmarshal(raw, &se); err != nil {
		return "Validation failed"
	}
	return fmt.Sprintf("Error at line %d:%d - %s", se.Line, se.Column, se.Msg)
}

// messageText extracts a plain message from an error envelope.
func messageText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	if raw[0] == '{' {
		return FormatValidationMessage(raw)
	}
	return string(raw)
}
