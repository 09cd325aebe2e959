package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/racecoord/internal/api/handler"
	"github.com/mcoot/racecoord/internal/api/middleware"
	"github.com/mcoot/racecoord/internal/dependencies/clock"
	"github.com/mcoot/racecoord/internal/protocol"
	"github.com/mcoot/racecoord/internal/services/race"
	"github.com/mcoot/racecoord/internal/services/supervisor"
	"github.com/mcoot/racecoord/internal/transport/ws"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Clock       clock.Clock
	RaceService *race.Service
	Hub         *ws.Hub
	Supervisor  *supervisor.Supervisor
	// AdminToken guards the admin routes. Empty leaves them unregistered.
	AdminToken string
}

// NewRouter creates a new router with the REST and websocket routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	var connections, graceTimers func() int
	if cfg.Hub != nil {
		connections = cfg.Hub.ClientCount
	}
	if cfg.Supervisor != nil {
		graceTimers = cfg.Supervisor.PendingGrace
	}
	statusHandler := handler.NewStatusHandler(cfg.RaceService, connections, graceTimers, cfg.Clock)
	playerHandler := handler.NewPlayerHandler(cfg.RaceService)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	// Bare health check for load balancers
	r.HandleFunc("/health", statusHandler.Health).Methods(http.MethodGet)

	// API subrouter
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", statusHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/status", statusHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/protocol", statusHandler.Protocol).Methods(http.MethodGet)
	api.HandleFunc("/players/{playerId}/state", playerHandler.State).Methods(http.MethodGet)

	// Admin subrouter
	if cfg.AdminToken != "" {
		var notifier handler.Notifier
		if cfg.Hub != nil {
			notifier = cfg.Hub
		}
		adminHandler := handler.NewAdminHandler(cfg.RaceService, notifier)

		admin := api.PathPrefix("/admin").Subrouter()
		admin.Use(middleware.AdminAuth(cfg.AdminToken))
		admin.HandleFunc("/overview", adminHandler.Overview).Methods(http.MethodGet)
		admin.HandleFunc("/rooms/{roomCode}/players/{playerId}/kick", adminHandler.KickPlayer).Methods(http.MethodPost)
		admin.HandleFunc("/rooms/{roomCode}/players/{playerId}/leave-match", adminHandler.ForceLeaveMatch).Methods(http.MethodPost)
		admin.HandleFunc("/rooms/{roomCode}/abort-match", adminHandler.AbortMatch).Methods(http.MethodPost)
		admin.HandleFunc("/rooms/{roomCode}/remove-disconnected", adminHandler.RemoveDisconnected).Methods(http.MethodPost)
	}

	// Websocket endpoint
	if cfg.Hub != nil {
		r.Handle(protocol.Path, cfg.Hub).Methods(http.MethodGet)
	}

	return r
}
