package record

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/stepd/internal/steps"
)

// MemoryStore is an in-process Store for tests and ephemeral runs. It
// records every save in order.
type MemoryStore struct {
	mu      sync.Mutex
	fields  map[string]string
	history []steps.State
	loads   int

	loadErr  error
	saveErr  error
	saveHook func(steps.State)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed stores fields verbatim, bypassing Encode, to simulate any on-disk
// content including corrupt records.
func (s *MemoryStore) Seed(fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = fields
}

// SetLoadErr makes every following Load fail with err until reset with nil.
func (s *MemoryStore) SetLoadErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// SetSaveErr makes every following Save fail with err until reset with nil.
func (s *MemoryStore) SetSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// SetSaveHook installs fn to run inside Save before the record is replaced.
func (s *MemoryStore) SetSaveHook(fn func(steps.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveHook = fn
}

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) Load(_ context.Context) (*steps.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, persistErr(s.loadErr, s.Backend(), "load record")
	}
	return Decode(s.fields)
}

func (s *MemoryStore) Save(_ context.Context, st steps.State) error {
	s.mu.Lock()
	hook := s.saveHook
	s.mu.Unlock()
	if hook != nil {
		hook(st)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return persistErr(s.saveErr, s.Backend(), "save record")
	}
	s.fields = Encode(st)
	s.history = append(s.history, st)
	return nil
}

// Saved returns every successfully saved state in order.
func (s *MemoryStore) Saved() []steps.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]steps.State(nil), s.history...)
}

// Loads reports how many times Load was called.
func (s *MemoryStore) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *MemoryStore) Close() error { return nil }
