// Package health records the outcome of every collection cycle in
// collection_logs and answers "when did collection last succeed".
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CycleStatus is the terminal state of a collection cycle.
type CycleStatus string

const (
	CycleSuccess CycleStatus = "success"
	CycleError   CycleStatus = "error"
)

// CycleResult is one collection_logs row.
type CycleResult struct {
	ExecutedAt   time.Time   `json:"executedAt"`
	TicketsFound int         `json:"ticketsFound"`
	Status       CycleStatus `json:"status"`
	DurationMs   int64       `json:"durationMs"`
	ErrorDetails string      `json:"errorDetails,omitempty"`
}

// Store persists cycle results.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RecordCycleResult appends a cycle result.
func (s *Store) RecordCycleResult(ctx context.Context, r CycleResult) error {
	var details *string
	if r.ErrorDetails != "" {
		details = &r.ErrorDetails
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collection_logs (executed_at, tickets_found, status, duration_ms, error_details)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ExecutedAt, r.TicketsFound, string(r.Status), r.DurationMs, details)
	if err != nil {
		return fmt.Errorf("record cycle result: %w", err)
	}
	return nil
}

// Latest returns the most recent cycle, optionally restricted to a status.
// It returns nil when no matching cycle has been recorded.
func (s *Store) Latest(ctx context.Context, status CycleStatus) (*CycleResult, error) {
	var (
		r       CycleResult
		st      string
		details *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT executed_at, tickets_found, status, duration_ms, error_details
		FROM collection_logs
		WHERE $1 = '' OR status = $1
		ORDER BY executed_at DESC
		LIMIT 1`, string(status)).
		Scan(&r.ExecutedAt, &r.TicketsFound, &st, &r.DurationMs, &details)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest cycle result: %w", err)
	}
	r.ExecutedAt = r.ExecutedAt.UTC()
	r.Status = CycleStatus(st)
	if details != nil {
		r.ErrorDetails = *details
	}
	return &r, nil
}

// DeleteOlderThan removes cycle rows executed before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM collection_logs WHERE executed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete collection logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stale reports whether the last successful cycle is older than maxAge at
// now. A missing cycle counts as stale.
func Stale(last *CycleResult, now time.Time, maxAge time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(last.ExecutedAt) > maxAge
}
