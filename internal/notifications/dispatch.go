package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/scoracle-tickets/internal/clock"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

// TicketFinder loads a ticket by identity, returning nil when absent.
type TicketFinder interface {
	FindByID(ctx context.Context, id string) (*ticket.Ticket, error)
}

// RecordStore is the part of the task queue the dispatcher needs.
type RecordStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Record, error)
	FindActive(ctx context.Context, ticketID string, typ Type) (*Record, error)
	Claim(ctx context.Context, id string) (*Record, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// PendingResult counts the outcome of one ProcessPending sweep.
type PendingResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Dispatcher delivers due notifications.
type Dispatcher struct {
	tickets TicketFinder
	records RecordStore
	sender  Sender
	clock   clock.Clock
	logger  *slog.Logger
}

// NewDispatcher wires a dispatcher from its collaborators.
func NewDispatcher(tickets TicketFinder, records RecordStore, sender Sender, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{tickets: tickets, records: records, sender: sender, clock: clk, logger: logger}
}

// Dispatch sends the typ alert for a ticket now. It is the task-queue
// trigger entry point. The matching pending record is claimed first and then
// marked sent or failed. A trigger with nothing left to claim (cancelled by a
// reschedule, already delivered, or in flight in the worker) is a no-op.
// Transport failures come back as *DispatchError so the caller's retry
// policy can act on them.
func (d *Dispatcher) Dispatch(ctx context.Context, ticketID string, typ Type) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	rec, err := d.records.FindActive(ctx, ticketID, typ)
	if err != nil {
		return err
	}
	if rec != nil {
		rec, err = d.records.Claim(ctx, rec.ID)
		if err != nil {
			return err
		}
	}
	if rec == nil {
		d.logger.Info("No pending notification to dispatch",
			"ticket_id", ticketID, "notification_type", typ)
		return nil
	}
	return d.deliver(ctx, rec)
}

// ProcessPending claims due pending notifications batch by batch until none
// are left and delivers each independently. Rows already past their trigger
// window are failed without sending. Individual failures are counted, not
// returned.
func (d *Dispatcher) ProcessPending(ctx context.Context) (PendingResult, error) {
	now := d.clock.Now()

	var res PendingResult
	for {
		claimed, err := d.records.ClaimDue(ctx, now, dispatchBatchSize)
		if err != nil {
			return res, err
		}
		for i := range claimed {
			rec := claimed[i]
			if Missed(rec.Type, rec.ScheduledAt, now) {
				d.markFailed(ctx, &rec, "missed trigger window")
				res.Failed++
				continue
			}
			if err := d.deliver(ctx, &rec); err != nil {
				d.logger.Warn("dispatch failed",
					"notification_id", rec.ID, "ticket_id", rec.TicketID, "error", err)
				res.Failed++
				continue
			}
			res.Processed++
		}
		if len(claimed) < dispatchBatchSize {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
}

// StartWorker runs ProcessPending every interval until ctx is cancelled.
// Intended to be called with `go`.
func (d *Dispatcher) StartWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultDispatchEvery
	}
	d.logger.Info("Notification dispatch worker started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := d.ProcessPending(ctx)
			if err != nil {
				d.logger.Error("dispatch error", "error", err)
			} else if res.Processed+res.Failed > 0 {
				d.logger.Info("dispatch batch", "sent", res.Processed, "failed", res.Failed)
			}
		case <-ctx.Done():
			d.logger.Info("Notification dispatch worker stopped")
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, rec *Record) error {
	t, err := d.tickets.FindByID(ctx, rec.TicketID)
	if err != nil {
		d.markFailed(ctx, rec, err.Error())
		return fmt.Errorf("load ticket %s: %w", rec.TicketID, err)
	}
	if t == nil {
		d.markFailed(ctx, rec, ErrTicketNotFound.Error())
		return fmt.Errorf("%w: %s", ErrTicketNotFound, rec.TicketID)
	}

	if err := d.sender.Send(ctx, BuildMessage(*t, rec.Type)); err != nil {
		d.markFailed(ctx, rec, err.Error())
		return &DispatchError{NotificationID: rec.ID, TicketID: rec.TicketID, Type: rec.Type, Err: err}
	}

	if err := d.records.MarkSent(ctx, rec.ID, d.clock.Now()); err != nil {
		d.logger.Warn("mark sent failed", "notification_id", rec.ID, "error", err)
	}
	return nil
}

func (d *Dispatcher) markFailed(ctx context.Context, rec *Record, reason string) {
	if err := d.records.MarkFailed(ctx, rec.ID, reason); err != nil {
		d.logger.Warn("mark failed failed", "notification_id", rec.ID, "error", err)
	}
}
