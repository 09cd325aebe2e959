package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mcoot/racecoord/internal/api/response"
	"github.com/mcoot/racecoord/internal/dependencies/clock"
	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/protocol"
)

// StatsSource reports coordinator counts and timing settings
type StatsSource interface {
	Stats(ctx context.Context) (model.Stats, error)
	ReconnectGrace() time.Duration
	PingTimeout() time.Duration
}

// StatusHandler handles health, status and protocol endpoints
type StatusHandler struct {
	stats       StatsSource
	connections func() int
	graceTimers func() int
	clock       clock.Clock
	startedAt   time.Time
}

// NewStatusHandler creates a new status handler. connections and graceTimers
// may be nil when no transport is wired.
func NewStatusHandler(stats StatsSource, connections, graceTimers func() int, clk clock.Clock) *StatusHandler {
	return &StatusHandler{
		stats:       stats,
		connections: connections,
		graceTimers: graceTimers,
		clock:       clk,
		startedAt:   clk.Now(),
	}
}

// Health handles GET /health and GET /api/v1/health
func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// Status handles GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	now := h.clock.Now()
	status := response.StatusFromStats(stats)
	status.Protocol = protocol.Version
	status.ServerTimeMs = now.UnixMilli()
	status.UptimeMs = now.Sub(h.startedAt).Milliseconds()
	status.ReconnectGraceMs = h.stats.ReconnectGrace().Milliseconds()
	status.PingTimeoutMs = h.stats.PingTimeout().Milliseconds()
	if h.connections != nil {
		status.OpenConnections = h.connections()
	}
	if h.graceTimers != nil {
		status.PendingGraceTimers = h.graceTimers()
	}

	response.JSON(w, http.StatusOK, status)
}

// Protocol handles GET /api/v1/protocol
func (h *StatusHandler) Protocol(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, protocol.BuildCatalog())
}
