package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps state in a single JSON document:
//
//	{"sent": {"<hash>": <count>, ...}, "time": "<timestamp>" | null}
//
// Writes go to a temp file that is renamed over the document. Update holds
// an in-process mutex and an advisory lock on "<path>.lock" for the whole
// load → mutate → persist sequence.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore at path, creating its directory.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("dedup path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating dedup directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the location of the JSON document.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(_ context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(), nil
}

func (f *FileStore) Save(_ context.Context, s State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := lockFile(f.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()
	return f.write(s)
}

func (f *FileStore) Update(_ context.Context, fn func(s *State) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := lockFile(f.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	s := f.read()
	if err := fn(&s); err != nil {
		return err
	}
	return f.write(s)
}

func (f *FileStore) Close() error { return nil }

// read never fails: a missing document is a fresh state and a corrupt one
// is logged and treated as fresh.
func (f *FileStore) read() State {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("dedup state unreadable, starting empty", "file", f.path, "error", err)
		}
		return NewState()
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Warn("dedup state corrupt, starting empty", "file", f.path, "error", err)
		return NewState()
	}
	return s
}

func (f *FileStore) write(s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding dedup state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating dedup temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing dedup state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing dedup state: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing dedup state: %w", err)
	}
	return nil
}
