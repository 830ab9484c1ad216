package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/scoracle-tickets/internal/api/respond"
	"github.com/albapepper/scoracle-tickets/internal/cache"
	"github.com/albapepper/scoracle-tickets/internal/sale"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

// ListTickets returns tracked tickets.
// @Summary List tickets
// @Description Returns tracked away-match tickets ordered by sale start.
// @Tags tickets
// @Produce json
// @Param status query string false "Sale status" Enums(before_sale, on_sale, sold_out, ended)
// @Param limit query int false "Max results (1-500)"
// @Success 200 {array} ticket.Ticket
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/tickets [get]
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ticket.ListFilter{Status: sale.Status(q.Get("status"))}
	if f.Status != "" && !f.Status.Valid() {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_STATUS", "Unknown sale status: "+string(f.Status))
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 500")
			return
		}
		f.Limit = n
	}

	cacheKey := fmt.Sprintf("%slist:%s:%d", cache.TicketPrefix, f.Status, f.Limit)
	ttl := cache.TTLTicketList
	if data, etag, ok := h.Cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	tickets, err := h.Tickets.List(r.Context(), f)
	if err != nil {
		h.Logger.Error("list tickets failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not list tickets")
		return
	}
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	raw, err := json.Marshal(tickets)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not encode tickets")
		return
	}

	etag := h.Cache.Set(cacheKey, raw, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, raw, etag, ttl, false)
}

// GetTicket returns one ticket by identity.
// @Summary Get ticket
// @Tags tickets
// @Produce json
// @Param id path string true "Ticket identity"
// @Success 200 {object} ticket.Ticket
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/tickets/{id} [get]
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cacheKey := cache.TicketPrefix + "id:" + id
	ttl := cache.TTLTicket

	if data, etag, ok := h.Cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	t, err := h.Tickets.FindByID(r.Context(), id)
	if err != nil {
		h.Logger.Error("get ticket failed", "ticket_id", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load ticket")
		return
	}
	if t == nil {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Ticket not found: "+id)
		return
	}

	raw, err := json.Marshal(t)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not encode ticket")
		return
	}
	etag := h.Cache.Set(cacheKey, raw, ttl)
	respond.WriteJSON(w, raw, etag, ttl, false)
}
