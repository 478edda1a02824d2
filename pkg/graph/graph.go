package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Frame Serialization API
// =============================================================================

// MarshalFrame converts a frame to indented JSON bytes.
func MarshalFrame(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteFrame(f, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFrameFile writes a frame to a JSON file.
// The file is created with 0644 permissions.
func WriteFrameFile(f *Frame, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()
	return WriteFrame(f, out)
}

// WriteFrame writes a frame as JSON to an io.Writer.
func WriteFrame(f *Frame, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadFrameFile reads a JSON file and returns the decoded frame.
func ReadFrameFile(path string) (*Frame, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()
	return ReadFrame(in)
}

// ReadFrame decodes a JSON frame and checks that every edge endpoint
// resolves to a node.
func ReadFrame(r io.Reader) (*Frame, error) {
	var f Frame
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	ids := make(map[string]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		ids[n.ID] = true
	}
	for _, e := range f.Edges {
		if !ids[e.From] || !ids[e.To] {
			return nil, fmt.Errorf("edge %s -> %s references a missing node", e.From, e.To)
		}
	}
	return &f, nil
}
