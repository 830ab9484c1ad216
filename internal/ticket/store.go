package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/scoracle-tickets/internal/sale"
)

const columns = `id, match_name, match_date, home_team, away_team, venue,
	sale_start_date, sale_end_date, sale_status, ticket_types, ticket_url,
	notification_scheduled, scraped_at, created_at, updated_at`

// Store persists tickets in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a ticket store on pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindByID returns the ticket with the given identity, or nil when none is
// stored.
func (s *Store) FindByID(ctx context.Context, id string) (*Ticket, error) {
	t, err := scanTicket(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket %s: %w", id, err)
	}
	return &t, nil
}

// FindByIDs returns the stored tickets among ids, keyed by ID. Missing IDs
// are absent from the map.
func (s *Store) FindByIDs(ctx context.Context, ids []string) (map[string]Ticket, error) {
	out := make(map[string]Ticket, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM tickets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find tickets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

// Upsert inserts or replaces t and returns the stored row. created_at is
// kept from the first insert.
func (s *Store) Upsert(ctx context.Context, t Ticket) (Ticket, error) {
	return upsert(ctx, s.pool, t)
}

// UpsertMany upserts all tickets in one transaction.
func (s *Store) UpsertMany(ctx context.Context, tickets []Ticket) ([]Ticket, error) {
	out := make([]Ticket, 0, len(tickets))
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, t := range tickets {
			stored, err := upsert(ctx, tx, t)
			if err != nil {
				return err
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationScheduled sets the notification flag without touching
// any other field.
func (s *Store) MarkNotificationScheduled(ctx context.Context, id string, scheduled bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tickets SET notification_scheduled = $2, updated_at = NOW()
		WHERE id = $1`, id, scheduled)
	if err != nil {
		return fmt.Errorf("mark ticket %s scheduled=%v: %w", id, scheduled, err)
	}
	return nil
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Status sale.Status
	Limit  int
}

// List returns tickets ordered by sale start (undated last), then match name.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Ticket, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var status any
	if f.Status != "" {
		status = string(f.Status)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+columns+` FROM tickets
		WHERE ($1::text IS NULL OR sale_status = $1)
		ORDER BY sale_start_date ASC NULLS LAST, match_name
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func upsert(ctx context.Context, q querier, t Ticket) (Ticket, error) {
	types := t.TicketTypes
	if types == nil {
		types = []string{}
	}
	stored, err := scanTicket(q.QueryRow(ctx, `
		INSERT INTO tickets (`+columns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			match_name = EXCLUDED.match_name,
			match_date = EXCLUDED.match_date,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			venue = EXCLUDED.venue,
			sale_start_date = EXCLUDED.sale_start_date,
			sale_end_date = EXCLUDED.sale_end_date,
			sale_status = EXCLUDED.sale_status,
			ticket_types = EXCLUDED.ticket_types,
			ticket_url = EXCLUDED.ticket_url,
			notification_scheduled = EXCLUDED.notification_scheduled,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = EXCLUDED.updated_at
		RETURNING `+columns,
		t.ID, t.MatchName, t.MatchDate, t.HomeTeam, t.AwayTeam, t.Venue,
		t.SaleStartDate, t.SaleEndDate, string(t.SaleStatus), types, t.TicketURL,
		t.NotificationScheduled, t.ScrapedAt, t.CreatedAt, t.UpdatedAt,
	))
	if err != nil {
		return Ticket{}, fmt.Errorf("upsert ticket %s: %w", t.ID, err)
	}
	return stored, nil
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var (
		t      Ticket
		status string
	)
	err := row.Scan(
		&t.ID, &t.MatchName, &t.MatchDate, &t.HomeTeam, &t.AwayTeam, &t.Venue,
		&t.SaleStartDate, &t.SaleEndDate, &status, &t.TicketTypes, &t.TicketURL,
		&t.NotificationScheduled, &t.ScrapedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Ticket{}, err
	}
	t.SaleStatus = sale.Status(status)
	t.MatchDate = utcPtr(t.MatchDate)
	t.SaleStartDate = utcPtr(t.SaleStartDate)
	t.SaleEndDate = utcPtr(t.SaleEndDate)
	t.ScrapedAt = t.ScrapedAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
