package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/racecoord/internal/api/response"
	"github.com/mcoot/racecoord/internal/model"
)

// AdminService is the operator surface of the race service
type AdminService interface {
	AdminOverview(ctx context.Context) (*model.AdminOverview, error)
	AdminKickPlayer(ctx context.Context, rawCode string, playerID model.PlayerID) ([]model.PlayerID, error)
	AdminForceLeaveMatch(ctx context.Context, rawCode string, playerID model.PlayerID) ([]model.PlayerID, error)
	AdminAbortMatch(ctx context.Context, rawCode string) ([]model.PlayerID, error)
	AdminRemoveDisconnectedPlayers(ctx context.Context, rawCode string) ([]model.PlayerID, error)
}

// Notifier pushes fresh state to connected players
type Notifier interface {
	NotifyPlayers(ctx context.Context, playerIDs []model.PlayerID)
}

// AdminHandler handles operator endpoints
type AdminHandler struct {
	admin    AdminService
	notifier Notifier
}

// NewAdminHandler creates a new admin handler. notifier may be nil when no
// transport is wired.
func NewAdminHandler(admin AdminService, notifier Notifier) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		notifier: notifier,
	}
}

// Overview handles GET /api/v1/admin/overview
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.admin.AdminOverview(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, overview)
}

// KickPlayer handles POST /api/v1/admin/rooms/{roomCode}/players/{playerId}/kick
func (h *AdminHandler) KickPlayer(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, h.admin.AdminKickPlayer)
}

// ForceLeaveMatch handles POST /api/v1/admin/rooms/{roomCode}/players/{playerId}/leave-match
func (h *AdminHandler) ForceLeaveMatch(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, h.admin.AdminForceLeaveMatch)
}

// AbortMatch handles POST /api/v1/admin/rooms/{roomCode}/abort-match
func (h *AdminHandler) AbortMatch(w http.ResponseWriter, r *http.Request) {
	h.roomAction(w, r, h.admin.AdminAbortMatch)
}

// RemoveDisconnected handles POST /api/v1/admin/rooms/{roomCode}/remove-disconnected
func (h *AdminHandler) RemoveDisconnected(w http.ResponseWriter, r *http.Request) {
	h.roomAction(w, r, h.admin.AdminRemoveDisconnectedPlayers)
}

func (h *AdminHandler) roomAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string) ([]model.PlayerID, error)) {
	roomCode := mux.Vars(r)["roomCode"]
	affected, err := action(r.Context(), roomCode)
	h.respond(w, r, affected, err)
}

func (h *AdminHandler) playerAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string, model.PlayerID) ([]model.PlayerID, error)) {
	vars := mux.Vars(r)
	playerID := strings.TrimSpace(vars["playerId"])
	if playerID == "" {
		WriteError(w, NewInvalidRequestError("playerId is required"))
		return
	}
	affected, err := action(r.Context(), vars["roomCode"], model.PlayerID(playerID))
	h.respond(w, r, affected, err)
}

func (h *AdminHandler) respond(w http.ResponseWriter, r *http.Request, affected []model.PlayerID, err error) {
	if err != nil {
		WriteError(w, err)
		return
	}
	if affected == nil {
		affected = []model.PlayerID{}
	}
	if h.notifier != nil && len(affected) > 0 {
		h.notifier.NotifyPlayers(r.Context(), affected)
	}
	response.JSON(w, http.StatusOK, response.AdminAction{Affected: affected})
}
