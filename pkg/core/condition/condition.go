// Package condition formats the input condition of a pushdown-automaton
// transition into a short edge label.
//
// A condition arrives from the matcher as a JSON object tagged by its "type"
// field. Older matcher builds send a bare string instead. [Decode] turns
// either form into one of the [Condition] variants and never fails: anything
// it cannot recognize becomes an [Unknown] value, which formats as "ε".
//
//	c := condition.Decode([]byte(`{"type":"NodeTransition","name":"Call","down":2,"up":1}`))
//	condition.Format(c) // "Call/2,1"
package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Epsilon is the label of an empty condition, stack pop, or stack push.
const Epsilon = "ε"

// internalSuffix is the matcher's internal node type suffix that never
// belongs in a user-facing label.
const internalSuffix = "Context"

// Condition is a decoded transition input condition. A nil Condition means
// the transition carries no condition.
type Condition interface {
	label() string
}

// NodeTransition consumes a tree node named Name, moving Down levels into
// the tree and Up levels out of it.
type NodeTransition struct {
	Name string
	Down int
	Up   int
}

// NamedTransition consumes a named symbol.
type NamedTransition struct {
	Name string
}

// CallTransition invokes a macro transformation.
type CallTransition struct {
	Macro          string
	Transformation string
	Args           []string
}

// Legacy is a condition sent as a bare string.
type Legacy string

// Unknown is any tagged object whose tag is not recognized.
type Unknown struct {
	Type string
}

func (c NodeTransition) label() string {
	l := orEpsilon(c.Name)
	if c.Down != 1 || c.Up != 1 {
		l += fmt.Sprintf("/%d,%d", c.Down, c.Up)
	}
	return l
}

func (c NamedTransition) label() string { return orEpsilon(c.Name) }

func (c CallTransition) label() string {
	return fmt.Sprintf("(%s.%s; %s)", c.Macro, c.Transformation, strings.Join(c.Args, ","))
}

func (c Legacy) label() string { return StripInternal(string(c)) }

func (Unknown) label() string { return Epsilon }

// Format returns the edge label for c. It never fails; a nil or unknown
// condition yields "ε".
func Format(c Condition) string {
	if c == nil {
		return Epsilon
	}
	return StripInternal(c.label())
}

// StripInternal removes every occurrence of the matcher's internal
// "Context" type suffix from s.
func StripInternal(s string) string {
	return strings.ReplaceAll(s, internalSuffix, "")
}

// TrimInternal removes a single trailing "Context" from a syntax tree
// node name, so "ExprContext" reads "Expr".
func TrimInternal(s string) string {
	return strings.TrimSuffix(s, internalSuffix)
}

func orEpsilon(s string) string {
	if s == "" {
		return Epsilon
	}
	return s
}

// wire is the union of every field the tagged variants carry.
type wire struct {
	Type           string            `json:"type"`
	Name           string            `json:"name"`
	Down           *int              `json:"down"`
	Up             *int              `json:"up"`
	MacroName      string            `json:"macro_name"`
	Transformation string            `json:"transformation_name"`
	Args           []json.RawMessage `json:"args"`
}

// Decode parses a raw JSON condition. Empty input and JSON null decode to a
// nil Condition; malformed input decodes to Unknown.
func Decode(data []byte) Condition {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Unknown{}
		}
		if s == "" {
			return nil
		}
		return Legacy(s)
	}

	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Unknown{}
	}

	switch w.Type {
	case "NodeTransition":
		return NodeTransition{Name: w.Name, Down: intOr(w.Down, 1), Up: intOr(w.Up, 1)}
	case "NamedTransition":
		return NamedTransition{Name: w.Name}
	case "CallTransition":
		return CallTransition{Macro: w.MacroName, Transformation: w.Transformation, Args: argStrings(w.Args)}
	default:
		return Unknown{Type: w.Type}
	}
}

// Field embeds a Condition in a JSON-decoded struct.
type Field struct {
	Condition
}

// UnmarshalJSON implements json.Unmarshaler. It never returns an error.
func (f *Field) UnmarshalJSON(data []byte) error {
	f.Condition = Decode(data)
	return nil
}

// String returns the formatted label.
func (f Field) String() string {
	return Format(f.Condition)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// argStrings keeps string arguments verbatim and falls back to the raw JSON
// text for anything else.
func argStrings(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(bytes.TrimSpace(r)))
	}
	return out
}
