package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pderrors "github.com/matzehuels/pdaviz/pkg/errors"
)

const sessionExt = ".json"

// FileStore keeps one JSON document per session in a directory.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore opens a store rooted at dir, creating it if needed.
// An empty dir selects [DefaultDir].
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// DefaultDir is $XDG_CONFIG_HOME/pdaviz/sessions, or ~/.config/pdaviz/sessions.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pdaviz", "sessions"), nil
}

func (s *FileStore) file(id string) (string, error) {
	if err := pderrors.ValidateLabel(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+sessionExt), nil
}

// Get loads a session. Expired sessions are removed and reported as absent.
func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	path, err := s.file(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	sess, err := decodeFile(path)
	s.mu.RUnlock()

	switch {
	case os.IsNotExist(err):
		return nil, nil
	case err != nil:
		return nil, err
	case sess.IsExpired():
		s.mu.Lock()
		os.Remove(path)
		s.mu.Unlock()
		return nil, nil
	}
	return sess, nil
}

// Find scans the directory for the newest live session of a file pair.
func (s *FileStore) Find(ctx context.Context, codePath, patternPath string) (*Session, error) {
	s.mu.RLock()
	all, err := s.list()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	var best *Session
	for _, e := range all {
		sess := e.sess
		if sess.IsExpired() || !sess.Matches(codePath, patternPath) {
			continue
		}
		if best == nil || sess.UpdatedAt.After(best.UpdatedAt) {
			best = sess
		}
	}
	return best, nil
}

// Set writes the session through a temp file so readers never see a
// partial document.
func (s *FileStore) Set(ctx context.Context, sess *Session) error {
	path, err := s.file(sess.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	path, err := s.file(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Cleanup removes every expired session file.
func (s *FileStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.list()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, e := range all {
		if now.After(e.sess.ExpiresAt) {
			os.Remove(e.path)
		}
	}
	return nil
}

type entry struct {
	path string
	sess *Session
}

// list decodes every session file. Files that fail to decode are skipped.
func (s *FileStore) list() ([]entry, error) {
	names, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}
	out := make([]entry, 0, len(names))
	for _, n := range names {
		if n.IsDir() || !strings.HasSuffix(n.Name(), sessionExt) {
			continue
		}
		path := filepath.Join(s.dir, n.Name())
		if sess, err := decodeFile(path); err == nil {
			out = append(out, entry{path: path, sess: sess})
		}
	}
	return out, nil
}

func decodeFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sess := new(Session)
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", filepath.Base(path), err)
	}
	return sess, nil
}

// Dir returns the directory holding session files.
func (s *FileStore) Dir() string { return s.dir }

var _ Store = (*FileStore)(nil)
