package build

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/matzehuels/pdaviz/pkg/core/condition"
	"github.com/matzehuels/pdaviz/pkg/errors"
)

// Kind is the explicit type tag that selects the builder mode.
type Kind string

const (
	KindTree      Kind = "TREE"
	KindAutomaton Kind = "GRAPH"
)

// ParseKind resolves a type tag. Accepted spellings are the matcher's
// enum names (TREE, GRAPH) in any case, "automaton", and the enum ordinals
// 0 and 1.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TREE", "0":
		return KindTree, nil
	case "GRAPH", "AUTOMATON", "1":
		return KindAutomaton, nil
	}
	return "", errors.New(errors.ErrCodeUnknownKind, "unrecognized payload type %q", s)
}

// ID is a node identifier that the matcher may send as a JSON string or
// number.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// TreeNode is one node of an abstract syntax tree payload.
type TreeNode struct {
	Name     string      `json:"name"`
	ID       ID          `json:"id"`
	Symbol   *string     `json:"symbol,omitempty"`
	Children []*TreeNode `json:"children"`
}

// StackWord is a stack pop or push. The matcher sends either a string or a
// list of stack symbols; lists are joined with ",".
type StackWord string

// UnmarshalJSON implements json.Unmarshaler.
func (w *StackWord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*w = ""
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*w = StackWord(strings.Join(parts, ","))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*w = StackWord(s)
	return nil
}

// Transition is one pushdown automaton transition.
type Transition struct {
	From      int             `json:"q"`
	Pop       StackWord       `json:"alpha"`
	Input     condition.Field `json:"A"`
	Movements []string        `json:"t"`
	To        int             `json:"q_prime"`
	Push      StackWord       `json:"beta"`
}

// Automaton is a pushdown automaton payload. Transitions are bucketed by
// source state.
type Automaton struct {
	States       []int                   `json:"states"`
	InputSymbols []string                `json:"input_symbols"`
	StackSymbols []string                `json:"stack_symbols"`
	Transitions  map[string][]Transition `json:"transitions"`
}

// Payload is one decoded sub-graph of a graph response.
type Payload struct {
	Label     string
	ID        string
	Kind      Kind
	Tree      *TreeNode
	Automaton *Automaton
}

// envelope is the tagged wrapper the matcher puts around each sub-graph.
type envelope struct {
	Type    json.RawMessage `json:"type"`
	ID      ID              `json:"id"`
	Content json.RawMessage `json:"content"`
}

// DecodePayload decodes the sub-graph stored under label. A tagged
// envelope {type, id, content} is preferred; a bare payload is tagged by its
// label (TREE or GRAPH). The shape of the content is never used to guess the
// kind.
func DecodePayload(label string, raw json.RawMessage) (*Payload, error) {
	p := &Payload{Label: label}

	content := raw
	tag := label
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Type) > 0 && len(env.Content) > 0 {
		tag = rawTag(env.Type)
		content = env.Content
		p.ID = string(env.ID)
	}

	kind, err := ParseKind(tag)
	if err != nil {
		return nil, err
	}
	p.Kind = kind

	switch kind {
	case KindTree:
		var root TreeNode
		if err := json.Unmarshal(content, &root); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "decode tree %q", label)
		}
		p.Tree = &root
	case KindAutomaton:
		var a Automaton
		if err := json.Unmarshal(content, &a); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "decode automaton %q", label)
		}
		p.Automaton = &a
	}
	return p, nil
}

// rawTag turns a JSON string or number into the text ParseKind accepts.
func rawTag(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.Itoa(n)
	}
	return string(raw)
}
