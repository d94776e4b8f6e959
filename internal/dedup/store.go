package dedup

import (
	"context"
	"fmt"
	"sync"
)

// Store persists dedup State.
type Store interface {
	// Load returns the current state. Missing or unreadable state yields an
	// empty state, not an error.
	Load(ctx context.Context) (State, error)
	// Save replaces the persisted state wholesale.
	Save(ctx context.Context, s State) error
	// Update loads the state, applies fn and persists the result as one
	// atomic step. Nothing is written when fn returns an error.
	Update(ctx context.Context, fn func(s *State) error) error
	Close() error
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: NewState()}
}

func (m *MemoryStore) Load(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.state), nil
}

func (m *MemoryStore) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = clone(s)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, fn func(s *State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := clone(m.state)
	if err := fn(&s); err != nil {
		return err
	}
	m.state = s
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func clone(s State) State {
	out := State{Sent: make(map[string]int, len(s.Sent)), LastActivity: s.LastActivity}
	for k, v := range s.Sent {
		out.Sent[k] = v
	}
	return out
}

// Open returns the Store named by driver. sqlite and mysql drivers need a
// SQL database, passed through sqlOpen so callers control its lifetime.
func Open(driver, path string, sqlOpen func() (*SQLStore, error)) (Store, error) {
	switch driver {
	case "", "file":
		return NewFileStore(path)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3", "mysql":
		if sqlOpen == nil {
			return nil, fmt.Errorf("dedup driver %q needs a database", driver)
		}
		st, err := sqlOpen()
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported dedup driver %q (supported: file, sqlite, mysql, memory)", driver)
	}
}
