package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/storage"
)

// Storage keeps the snapshot in a single JSON file on local disk.
// Writes are atomic replacements, so a crash never leaves a half-written
// snapshot behind.
type Storage struct {
	mu   sync.Mutex
	path string
}

// New creates a file store, creating the parent directory if needed
func New(path string) (*Storage, error) {
	if path == "" {
		return nil, errors.New("snapshot file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Storage{path: path}, nil
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// Path returns the snapshot file location
func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) Load(ctx context.Context) (*model.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return storage.Decode(data)
}

func (s *Storage) Save(ctx context.Context, state *model.PersistedState) error {
	data, err := storage.Encode(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	return nil
}
