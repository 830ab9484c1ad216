// Package listener provides a Postgres LISTEN/NOTIFY consumer for ticket
// changes. It holds a dedicated pgx connection (not from the pool)
// listening on the `tickets_changed` channel, which a trigger on the
// tickets table feeds.
//
// Collection may run in another process (the ingest CLI, a cron job), so
// the API learns about new data through this channel rather than from the
// collector directly.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	channel          = "tickets_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// TicketEvent is the JSON payload from pg_notify('tickets_changed', ...).
type TicketEvent struct {
	ID         string `json:"id"`
	Op         string `json:"op"`
	SaleStatus string `json:"sale_status"`
}

// Handler is called for every event, on the listener goroutine.
type Handler func(TicketEvent)

// Start opens a dedicated connection and listens on the tickets_changed
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, handle Handler, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, handle, logger)
		if ctx.Err() != nil {
			logger.Info("Ticket listener stopped (context cancelled)")
			return
		}

		logger.Error("Ticket listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, handle Handler, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Ticket listener connected", "channel", channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := ParseEvent(n.Payload)
		if err != nil {
			logger.Warn("Failed to parse ticket event", "payload", n.Payload, "error", err)
			continue
		}
		logger.Debug("Ticket event received", "ticket_id", event.ID, "op", event.Op)
		handle(event)
	}
}

// ParseEvent decodes a notification payload.
func ParseEvent(payload string) (TicketEvent, error) {
	var e TicketEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return TicketEvent{}, err
	}
	if e.ID == "" {
		return TicketEvent{}, fmt.Errorf("event without ticket id")
	}
	return e, nil
}
