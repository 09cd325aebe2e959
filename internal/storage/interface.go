package storage

import (
	"context"

	"github.com/mcoot/racecoord/internal/model"
)

// Store persists full-state snapshots for crash recovery
type Store interface {
	// Load returns the last saved snapshot, or nil if nothing has been saved
	Load(ctx context.Context) (*model.PersistedState, error)

	// Save replaces the stored snapshot
	Save(ctx context.Context, state *model.PersistedState) error

	// Close releases any held connections
	Close() error
}
