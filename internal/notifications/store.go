package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

const recordColumns = `id, ticket_id, notification_type, scheduled_at, sent_at, status, COALESCE(error_message, '')`

// Queue is the Postgres-backed notification task queue. Scheduling writes
// pending rows; the dispatcher claims them when they come due.
type Queue struct {
	pool *pgxpool.Pool
}

// NewQueue creates a queue on pool.
func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// ScheduleNotifications enqueues one pending row per timing. Re-enqueueing
// an identical (ticket, type, time) is a no-op, except that a previously
// cancelled row is revived.
func (q *Queue) ScheduleNotifications(ctx context.Context, t ticket.Ticket, timings []Timing) error {
	if len(timings) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, q.pool, func(tx pgx.Tx) error {
		for _, tm := range timings {
			_, err := tx.Exec(ctx, `
				INSERT INTO notifications (id, ticket_id, notification_type, scheduled_at, status)
				VALUES ($1, $2, $3, $4, 'pending')
				ON CONFLICT (ticket_id, notification_type, scheduled_at) DO UPDATE
				SET status = 'pending', error_message = NULL, sent_at = NULL, updated_at = NOW()
				WHERE notifications.status = 'cancelled'`,
				uuid.NewString(), t.ID, string(tm.Type), tm.ScheduledAt,
			)
			if err != nil {
				return fmt.Errorf("insert %s: %w", tm.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return &SchedulingError{TicketID: t.ID, Err: err}
	}
	return nil
}

// CancelNotifications marks every still-pending row of the given tickets
// cancelled. Rows already claimed or delivered are left alone.
func (q *Queue) CancelNotifications(ctx context.Context, ticketIDs []string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	_, err := q.pool.Exec(ctx, `
		UPDATE notifications SET status = 'cancelled', updated_at = NOW()
		WHERE ticket_id = ANY($1) AND status = 'pending'`, ticketIDs)
	if err != nil {
		return fmt.Errorf("cancel notifications: %w", err)
	}
	return nil
}

// ClaimDue atomically moves up to limit due pending rows to sending and
// returns them. FOR UPDATE SKIP LOCKED keeps concurrent dispatchers from
// claiming the same row. Rows left in sending for longer than the lease
// (a dispatcher died mid-send) are claimed again.
func (q *Queue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = dispatchBatchSize
	}
	rows, err := q.pool.Query(ctx, `
		UPDATE notifications
		SET status = 'sending', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE scheduled_at <= $1
			  AND (status = 'pending'
			       OR (status = 'sending' AND updated_at < NOW() - make_interval(secs => $3)))
			ORDER BY scheduled_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+recordColumns,
		now, limit, sendingLease.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("claim due notifications: %w", err)
	}
	defer rows.Close()

	var claimed []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed: %w", err)
		}
		claimed = append(claimed, r)
	}
	return claimed, rows.Err()
}

// Claim moves one pending row to sending. It returns nil when the row is
// no longer pending (already claimed, delivered or cancelled).
func (q *Queue) Claim(ctx context.Context, id string) (*Record, error) {
	r, err := scanRecord(q.pool.QueryRow(ctx, `
		UPDATE notifications SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+recordColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim notification %s: %w", id, err)
	}
	return &r, nil
}

// FindActive returns the earliest pending row for a ticket and type, or nil.
func (q *Queue) FindActive(ctx context.Context, ticketID string, typ Type) (*Record, error) {
	r, err := scanRecord(q.pool.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM notifications
		WHERE ticket_id = $1 AND notification_type = $2 AND status = 'pending'
		ORDER BY scheduled_at
		LIMIT 1`, ticketID, string(typ)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &r, nil
}

// ListForTicket returns all rows for a ticket, oldest schedule first.
func (q *Queue) ListForTicket(ctx context.Context, ticketID string) ([]Record, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM notifications
		WHERE ticket_id = $1
		ORDER BY scheduled_at, notification_type`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkSent marks a notification as delivered.
func (q *Queue) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $1`, id, at)
	return err
}

// MarkFailed marks a notification as failed with a reason.
func (q *Queue) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE notifications SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1`, id, reason)
	return err
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r      Record
		id     uuid.UUID
		typ    string
		status string
	)
	if err := row.Scan(&id, &r.TicketID, &typ, &r.ScheduledAt, &r.SentAt, &status, &r.ErrorMessage); err != nil {
		return Record{}, err
	}
	r.ID = id.String()
	r.Type = Type(typ)
	r.Status = Status(status)
	r.ScheduledAt = r.ScheduledAt.UTC()
	if r.SentAt != nil {
		s := r.SentAt.UTC()
		r.SentAt = &s
	}
	return r, nil
}

// DeleteFinishedBefore removes sent, failed and cancelled rows last touched
// before cutoff.
func (q *Queue) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE status IN ('sent', 'failed', 'cancelled')
		  AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete finished notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
