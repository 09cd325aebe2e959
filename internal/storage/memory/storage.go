package memory

import (
	"context"
	"sync"

	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/storage"
)

// Storage keeps the last snapshot in process memory. The snapshot is held
// encoded so callers can never alias the stored state.
type Storage struct {
	mu    sync.RWMutex
	data  []byte
	saves int
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) Load(ctx context.Context) (*model.PersistedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, nil
	}
	return storage.Decode(s.data)
}

func (s *Storage) Save(ctx context.Context, state *model.PersistedState) error {
	data, err := storage.Encode(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saves++
	return nil
}

func (s *Storage) Close() error {
	return nil
}

// SaveCount returns how many snapshots have been saved
func (s *Storage) SaveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
