package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/albapepper/scoracle-tickets/internal/api/respond"
	"github.com/albapepper/scoracle-tickets/internal/cache"
	"github.com/albapepper/scoracle-tickets/internal/collect"
	"github.com/albapepper/scoracle-tickets/internal/notifications"
)

// DispatchRequest is the task payload enqueued for each notification.
type DispatchRequest struct {
	TicketID         string             `json:"ticketId"`
	NotificationType notifications.Type `json:"notificationType"`
}

// RunCollection runs one collection cycle.
// @Summary Run collection cycle
// @Description Fetches listings, updates tickets and schedules notifications. Called by cron.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} collect.Result
// @Failure 502 {object} respond.ErrorResponse
// @Router /api/v1/collect [post]
func (h *Handler) RunCollection(w http.ResponseWriter, r *http.Request) {
	res, err := h.Collector.Run(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, collect.ErrFetchFailed) {
			status = http.StatusBadGateway
		}
		respond.WriteErrorDetail(w, status, "COLLECTION_FAILED", "Collection cycle failed", err.Error())
		return
	}
	h.Cache.InvalidatePrefix(cache.TicketPrefix)

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"result":    res,
		"failed":    len(res.Errors),
		"summary":   res.Summary(),
		"timestamp": respond.Now(),
	})
}

// DispatchNotification sends one notification at trigger time.
// @Summary Dispatch notification
// @Description Task-queue trigger. A non-2xx response asks the queue to retry.
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body DispatchRequest true "Notification to send"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /api/v1/notifications/dispatch [post]
func (h *Handler) DispatchNotification(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON", err.Error())
		return
	}
	if req.TicketID == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_TICKET_ID", "ticketId is required")
		return
	}
	if !req.NotificationType.Valid() {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_NOTIFICATION_TYPE",
			"notificationType must be day_before, hour_before or minutes_before")
		return
	}

	err := h.Dispatcher.Dispatch(r.Context(), req.TicketID, req.NotificationType)
	var derr *notifications.DispatchError
	switch {
	case err == nil:
	case errors.Is(err, notifications.ErrTicketNotFound):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Ticket not found: "+req.TicketID)
		return
	case errors.As(err, &derr):
		respond.WriteErrorDetail(w, http.StatusBadGateway, "DISPATCH_FAILED", "Notification delivery failed", derr.Err.Error())
		return
	default:
		h.Logger.Error("dispatch failed", "ticket_id", req.TicketID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not dispatch notification")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":           "sent",
		"ticketId":         req.TicketID,
		"notificationType": req.NotificationType,
		"timestamp":        respond.Now(),
	})
}

// ProcessPending sweeps due pending notifications.
// @Summary Process pending notifications
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} notifications.PendingResult
// @Router /api/v1/notifications/process-pending [post]
func (h *Handler) ProcessPending(w http.ResponseWriter, r *http.Request) {
	res, err := h.Dispatcher.ProcessPending(r.Context())
	if err != nil {
		h.Logger.Error("process pending failed", "error", err)
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not process pending notifications", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"processed": res.Processed,
		"failed":    res.Failed,
		"timestamp": respond.Now(),
	})
}
