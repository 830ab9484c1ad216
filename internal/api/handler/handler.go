// Package handler provides HTTP handlers for all API endpoints. Handlers
// are thin: they decode the request, call one collaborator and encode the
// result.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/scoracle-tickets/internal/api/respond"
	"github.com/albapepper/scoracle-tickets/internal/cache"
	"github.com/albapepper/scoracle-tickets/internal/collect"
	"github.com/albapepper/scoracle-tickets/internal/health"
	"github.com/albapepper/scoracle-tickets/internal/notifications"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

// TicketReader serves the read endpoints.
type TicketReader interface {
	List(ctx context.Context, f ticket.ListFilter) ([]ticket.Ticket, error)
	FindByID(ctx context.Context, id string) (*ticket.Ticket, error)
}

// Collector runs a collection cycle.
type Collector interface {
	Run(ctx context.Context) (*collect.Result, error)
}

// Dispatcher sends notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, ticketID string, typ notifications.Type) error
	ProcessPending(ctx context.Context) (notifications.PendingResult, error)
}

// CycleLog reads recorded collection cycles.
type CycleLog interface {
	Latest(ctx context.Context, status health.CycleStatus) (*health.CycleResult, error)
}

// Pinger checks database connectivity.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the handler's collaborators.
type Deps struct {
	Tickets    TicketReader
	Collector  Collector
	Dispatcher Dispatcher
	Cycles     CycleLog
	DB         Pinger
	Cache      *cache.Cache
	// CollectMaxAge is how old the last successful cycle may be before
	// /health/collect reports unhealthy.
	CollectMaxAge time.Duration
	Logger        *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	Deps
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Cache == nil {
		d.Cache = cache.New(false)
	}
	if d.CollectMaxAge <= 0 {
		d.CollectMaxAge = 2 * time.Hour
	}
	return &Handler{Deps: d}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Scoracle Away Tickets API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.Cache.Stats(),
		"timestamp": respond.Now(),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.HealthCheck(r.Context()); err != nil {
		h.Logger.Warn("database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": respond.Now(),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": respond.Now(),
	})
}

// HealthCheckCollect reports the most recent collection cycle.
// @Summary Collection health check
// @Description Healthy when the last successful collection cycle is recent enough.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/collect [get]
func (h *Handler) HealthCheckCollect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	last, err := h.Cycles.Latest(ctx, "")
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not read collection log", err.Error())
		return
	}
	lastOK, err := h.Cycles.Latest(ctx, health.CycleSuccess)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not read collection log", err.Error())
		return
	}

	status, code := "healthy", http.StatusOK
	if health.Stale(lastOK, time.Now(), h.CollectMaxAge) {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	respond.WriteJSONObject(w, code, map[string]interface{}{
		"status":        status,
		"lastCycle":     last,
		"lastSuccess":   lastOK,
		"maxAgeSeconds": int(h.CollectMaxAge.Seconds()),
		"timestamp":     respond.Now(),
	})
}
