package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
)

// Fingerprint identifies DOT source for artifact keys. CRLF line endings
// are folded to LF first, so a graph saved on Windows maps to the same
// artifact.
func Fingerprint(dot string) string {
	h := sha256.New()
	io.WriteString(h, strings.ReplaceAll(dot, "\r\n", "\n"))
	return hex.EncodeToString(h.Sum(nil))
}

// digestKey returns "<kind>:<hex sha256>" over the JSON encoding of desc.
// Descriptions are plain structs and strings, which always encode.
func digestKey(kind string, desc ...any) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(desc)
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}
