package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/racecoord/internal/api/response"
	"github.com/mcoot/racecoord/internal/model"
)

// SnapshotSource builds per-player views
type SnapshotSource interface {
	SnapshotFor(ctx context.Context, playerID model.PlayerID) (*model.RaceSnapshot, error)
}

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	snapshots SnapshotSource
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(snapshots SnapshotSource) *PlayerHandler {
	return &PlayerHandler{
		snapshots: snapshots,
	}
}

// State handles GET /api/v1/players/{playerId}/state
func (h *PlayerHandler) State(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(mux.Vars(r)["playerId"])
	if playerID == "" {
		WriteError(w, NewInvalidRequestError("playerId is required"))
		return
	}

	snapshot, err := h.snapshots.SnapshotFor(r.Context(), model.PlayerID(playerID))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, snapshot)
}
