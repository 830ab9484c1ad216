// Package collect runs one ingestion cycle: fetch listings, resolve their
// sale windows, merge them into stored tickets, schedule notifications for
// the tickets that need them and record the cycle's health.
//
// Tickets are processed one at a time in listing order. A failure on one
// ticket is recorded and the cycle moves on; only a failed fetch aborts.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/albapepper/scoracle-tickets/internal/clock"
	"github.com/albapepper/scoracle-tickets/internal/health"
	"github.com/albapepper/scoracle-tickets/internal/notifications"
	"github.com/albapepper/scoracle-tickets/internal/sale"
	"github.com/albapepper/scoracle-tickets/internal/scrape"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

const healthWriteTimeout = 10 * time.Second

// ErrFetchFailed aborts a cycle when the listing source cannot be read.
var ErrFetchFailed = errors.New("fetch tickets failed")

// TicketStore is the persistence the collector needs.
type TicketStore interface {
	FindByID(ctx context.Context, id string) (*ticket.Ticket, error)
	Upsert(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error)
	MarkNotificationScheduled(ctx context.Context, id string, scheduled bool) error
}

// Scheduler enqueues and cancels notification tasks.
type Scheduler interface {
	ScheduleNotifications(ctx context.Context, t ticket.Ticket, timings []notifications.Timing) error
	CancelNotifications(ctx context.Context, ticketIDs []string) error
}

// HealthSink records cycle outcomes.
type HealthSink interface {
	RecordCycleResult(ctx context.Context, r health.CycleResult) error
}

// TicketError is a failure confined to one listing.
type TicketError struct {
	TicketID  string
	MatchName string
	Err       error
}

func (e *TicketError) Error() string {
	if e.TicketID == "" {
		return fmt.Sprintf("ticket %q: %v", e.MatchName, e.Err)
	}
	return fmt.Sprintf("ticket %s (%s): %v", e.TicketID, e.MatchName, e.Err)
}

func (e *TicketError) Unwrap() error { return e.Err }

// Collector drives collection cycles. Cycles on one Collector never
// overlap.
type Collector struct {
	source    scrape.Source
	tickets   TicketStore
	scheduler Scheduler
	health    HealthSink
	clock     clock.Clock
	club      string
	logger    *slog.Logger

	mu sync.Mutex
}

// Config carries the collector's collaborators.
type Config struct {
	Source    scrape.Source
	Tickets   TicketStore
	Scheduler Scheduler
	Health    HealthSink
	Clock     clock.Clock
	// Club is our side's name, used as the away team when a listing only
	// names the opponent.
	Club   string
	Logger *slog.Logger
}

// New creates a collector.
func New(cfg Config) *Collector {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	return &Collector{
		source:    cfg.Source,
		tickets:   cfg.Tickets,
		scheduler: cfg.Scheduler,
		health:    cfg.Health,
		clock:     cfg.Clock,
		club:      cfg.Club,
		logger:    cfg.Logger,
	}
}

// Run executes one cycle. The returned error is non-nil only when the
// fetch failed; per-ticket and scheduling failures are reported in the
// result. A health row is written in every case.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.clock.Now()
	res := &Result{ExecutedAt: start}

	err := c.run(ctx, res)
	res.Duration = c.clock.Now().Sub(start)
	res.DurationMs = res.Duration.Milliseconds()
	c.recordHealth(ctx, res, err)

	if err != nil {
		c.logger.Error("Collection cycle failed", "error", err, "duration", res.Duration)
		return res, err
	}
	c.logger.Info("Collection cycle complete", "summary", res.Summary())
	return res, nil
}

func (c *Collector) run(ctx context.Context, res *Result) error {
	items, err := c.source.ScrapeTickets(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	res.Fetched = len(items)

	now := res.ExecutedAt
	var results []ticket.UpsertResult
	for _, item := range items {
		r, err := c.process(ctx, item, now)
		if err != nil {
			var terr *TicketError
			if !errors.As(err, &terr) {
				terr = &TicketError{MatchName: item.MatchName, Err: err}
			}
			c.logger.Warn("Ticket processing failed",
				"ticket_id", terr.TicketID, "match_name", terr.MatchName, "error", terr.Err)
			res.Errors = append(res.Errors, terr)
			continue
		}
		res.count(r)
		results = append(results, r)
	}

	c.schedule(ctx, ticket.FilterRequiringScheduling(results), now, res)
	return nil
}

// process builds, merges and stores one listing.
func (c *Collector) process(ctx context.Context, item scrape.ScrapedTicketData, now time.Time) (ticket.UpsertResult, error) {
	scraped, err := BuildTicket(item, c.club, now)
	if err != nil {
		return ticket.UpsertResult{}, &TicketError{MatchName: item.MatchName, Err: err}
	}

	existing, err := c.tickets.FindByID(ctx, scraped.ID)
	if err != nil {
		return ticket.UpsertResult{}, &TicketError{TicketID: scraped.ID, MatchName: scraped.MatchName, Err: err}
	}

	r := ticket.Merge(scraped, existing, now)
	stored, err := c.tickets.Upsert(ctx, r.Ticket)
	if err != nil {
		return ticket.UpsertResult{}, &TicketError{TicketID: scraped.ID, MatchName: scraped.MatchName, Err: err}
	}
	r.Ticket = stored
	return r, nil
}

// schedule hands the filtered batch to the scheduler. Stored tickets have
// their pending tasks cancelled first; re-enqueueing an unchanged timing
// revives the same task, so the cancel is safe for scheduling retries too.
func (c *Collector) schedule(ctx context.Context, batch []ticket.UpsertResult, now time.Time, res *Result) {
	if len(batch) == 0 {
		return
	}

	var stale []string
	for _, r := range batch {
		if !r.IsNew {
			stale = append(stale, r.Ticket.ID)
		}
	}
	cancelled := true
	if len(stale) > 0 {
		if err := c.scheduler.CancelNotifications(ctx, stale); err != nil {
			cancelled = false
			c.logger.Warn("Cancel notifications failed", "tickets", len(stale), "error", err)
			for _, id := range stale {
				res.SchedulingErrors = append(res.SchedulingErrors, &notifications.SchedulingError{TicketID: id, Err: err})
			}
		} else {
			for _, r := range batch {
				if r.Rescheduled() {
					res.Rescheduled++
				}
			}
		}
	}

	for _, r := range batch {
		t := r.Ticket
		if !r.IsNew && !cancelled {
			continue
		}
		if !ticket.ShouldSchedule(t) {
			continue
		}
		timings := notifications.CalculateTimes(t.SaleStartDate, now)
		if len(timings) == 0 {
			continue
		}
		if err := c.scheduler.ScheduleNotifications(ctx, t, timings); err != nil {
			var serr *notifications.SchedulingError
			if !errors.As(err, &serr) {
				serr = &notifications.SchedulingError{TicketID: t.ID, Err: err}
			}
			c.logger.Warn("Schedule notifications failed", "ticket_id", t.ID, "error", err)
			res.SchedulingErrors = append(res.SchedulingErrors, serr)
			continue
		}
		if err := c.tickets.MarkNotificationScheduled(ctx, t.ID, true); err != nil {
			c.logger.Warn("Mark notification scheduled failed", "ticket_id", t.ID, "error", err)
			res.SchedulingErrors = append(res.SchedulingErrors, &notifications.SchedulingError{TicketID: t.ID, Err: err})
			continue
		}
		res.Scheduled++
		res.NotificationsQueued += len(timings)
	}
}

// recordHealth writes the cycle row. It runs even when ctx is already
// cancelled, and its own failure is only logged.
func (c *Collector) recordHealth(ctx context.Context, res *Result, cycleErr error) {
	if c.health == nil {
		return
	}
	row := health.CycleResult{
		ExecutedAt:   res.ExecutedAt,
		TicketsFound: res.Processed(),
		Status:       health.CycleSuccess,
		DurationMs:   res.Duration.Milliseconds(),
	}
	if cycleErr != nil {
		row.TicketsFound = 0
		row.Status = health.CycleError
		row.ErrorDetails = cycleErr.Error()
	} else if len(res.Errors) > 0 {
		row.ErrorDetails = fmt.Sprintf("%d ticket(s) failed", len(res.Errors))
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), healthWriteTimeout)
	defer cancel()
	if err := c.health.RecordCycleResult(hctx, row); err != nil {
		c.logger.Error("Record cycle result failed", "error", err)
	}
}

// BuildTicket turns a raw listing into a ticket observed at now. The ID is
// the deterministic identity; notification state is left for Merge.
func BuildTicket(item scrape.ScrapedTicketData, club string, now time.Time) (ticket.Ticket, error) {
	if err := item.Validate(); err != nil {
		return ticket.Ticket{}, err
	}

	matchName := strings.TrimSpace(item.MatchName)
	venue := strings.TrimSpace(item.Venue)
	if venue == sale.Undetermined {
		venue = ""
	}
	url := strings.TrimSpace(item.TicketURL)

	matchDate, err := sale.ParseMatchDate(item.MatchDate, now)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("match date: %w", err)
	}

	var period sale.Period
	saleText := strings.TrimSpace(item.SaleDate)
	if saleText == "" || saleText == sale.Undetermined {
		period.Status = sale.ComputeStatus(nil, nil, now)
	} else if period, err = sale.ParsePeriod(saleText, now); err != nil {
		return ticket.Ticket{}, fmt.Errorf("sale date: %w", err)
	}

	home, away := ticket.SplitTeams(matchName, club)
	return ticket.Ticket{
		ID:            ticket.Identity(matchName, venue, url),
		MatchName:     matchName,
		MatchDate:     matchDate,
		HomeTeam:      home,
		AwayTeam:      away,
		Venue:         venue,
		SaleStartDate: period.Start,
		SaleEndDate:   period.End,
		SaleStatus:    period.Status,
		TicketTypes:   cleanTypes(item.TicketTypes),
		TicketURL:     url,
		ScrapedAt:     now,
	}, nil
}

func cleanTypes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || s == sale.Undetermined {
			continue
		}
		out = append(out, s)
	}
	return out
}
