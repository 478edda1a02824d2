// Package session persists replay sessions between runs.
//
// A session remembers which code and pattern files were matched and the
// step the user last viewed, so `pdaviz replay --resume` can pick up where
// the previous run stopped. Sessions expire after a TTL.
//
// # Usage
//
//	store, err := session.NewFileStore("") // ~/.config/pdaviz/sessions/
//	if err != nil {
//	    return err
//	}
//
//	sess, err := store.Find(ctx, codePath, patternPath)
//	if err != nil {
//	    return err
//	}
//	if sess == nil {
//	    sess, err = session.New(codePath, patternPath, session.DefaultTTL)
//	}
//	sess.Touch(step, session.DefaultTTL)
//	store.Set(ctx, sess)
package session

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	pderrors "github.com/matzehuels/pdaviz/pkg/errors"
)

// DefaultTTL is the default session lifetime.
const DefaultTTL = 30 * 24 * time.Hour

// Session stores the replay position of one code/pattern pair.
type Session struct {
	ID          string    `json:"id"`
	CodePath    string    `json:"code_path"`
	PatternPath string    `json:"pattern_path"`
	Step        int       `json:"step"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Matches reports whether the session belongs to the given file pair.
func (s *Session) Matches(codePath, patternPath string) bool {
	return s.CodePath == codePath && s.PatternPath == patternPath
}

// Touch records step and extends the expiry by ttl.
func (s *Session) Touch(step int, ttl time.Duration) {
	now := time.Now()
	s.Step = max(0, step)
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Find returns the most recently updated live session for a file pair.
	// Returns nil, nil if there is none.
	Find(ctx context.Context, codePath, patternPath string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, session *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error
}

// New creates a session for the given files. Both paths are made absolute.
func New(codePath, patternPath string, ttl time.Duration) (*Session, error) {
	code, err := NormalizePath(codePath)
	if err != nil {
		return nil, err
	}
	pattern, err := NormalizePath(patternPath)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		ID:          uuid.NewString(),
		CodePath:    code,
		PatternPath: pattern,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

// NormalizePath returns the cleaned absolute form of path.
func NormalizePath(path string) (string, error) {
	if path == "" {
		return "", pderrors.New(pderrors.ErrCodeInvalidPath, "path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", pderrors.Wrap(pderrors.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	if err := pderrors.ValidatePath(abs); err != nil {
		return "", err
	}
	return abs, nil
}
