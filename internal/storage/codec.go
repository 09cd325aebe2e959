package storage

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/racecoord/internal/model"
)

// Encode serializes a snapshot to its JSON payload
func Encode(state *model.PersistedState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a JSON payload. Unparseable data is reported as corruption.
func Decode(data []byte) (*model.PersistedState, error) {
	var state model.PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, model.ErrPersistenceCorrupted.Withf("decode snapshot: %v", err)
	}
	return &state, nil
}
