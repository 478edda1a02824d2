package errors

import (
	"strings"
	"unicode"
)

const (
	maxLabelLen = 200
	maxPathLen  = 500
)

// ValidateLabel checks that a sub-graph label is safe as a file name stem.
// Exports are written as "{label}.{ext}", so separators, traversal and
// control characters are rejected.
func ValidateLabel(label string) error {
	switch {
	case label == "":
		return New(ErrCodeInvalidLabel, "label cannot be empty")
	case len(label) > maxLabelLen:
		return New(ErrCodeInvalidLabel, "label too long (max %d characters)", maxLabelLen)
	case hasControl(label):
		return New(ErrCodeInvalidLabel, "label %q contains control characters", label)
	case strings.ContainsAny(label, `/\`) || strings.Contains(label, ".."):
		return New(ErrCodeInvalidLabel, "label %q contains path elements", label)
	}
	return nil
}

// ValidatePath checks a source path before it is stored in a session.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return New(ErrCodeInvalidPath, "path cannot be empty")
	case len(path) > maxPathLen:
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLen)
	case hasControl(path):
		return New(ErrCodeInvalidPath, "path contains control characters")
	case strings.Contains(path, ".."):
		return New(ErrCodeInvalidPath, "path cannot contain '..'")
	case strings.Contains(path, `\`):
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}
	return nil
}

// ValidateURL accepts only http and https matcher addresses.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL %q must use http or https", rawURL)
	}
	return nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
