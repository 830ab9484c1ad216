package ticket

import (
	"slices"
	"time"

	"github.com/albapepper/scoracle-tickets/internal/sale"
)

// UpsertResult is the diff engine's verdict for one scraped ticket.
type UpsertResult struct {
	// Ticket is the merged value to persist.
	Ticket Ticket
	// Previous is the stored ticket before this scrape, nil for new ones.
	Previous   *Ticket
	IsNew      bool
	HasChanged bool
}

// Merge decides what a fresh scrape means for the stored ticket with the
// same identity. Identity, creation time and the notification flag come
// from existing; every scrape-derived field comes from scraped. A change of
// sale start clears the notification flag so the ticket is scheduled again.
func Merge(scraped Ticket, existing *Ticket, now time.Time) UpsertResult {
	if existing == nil {
		t := scraped
		t.NotificationScheduled = false
		t.CreatedAt = now
		t.UpdatedAt = now
		return UpsertResult{Ticket: t, IsNew: true}
	}

	merged := scraped
	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	merged.NotificationScheduled = existing.NotificationScheduled
	merged.SaleStatus = carryStatus(scraped.SaleStatus, existing.SaleStatus)

	changed := !sameBusinessFields(merged, *existing)
	if changed {
		merged.UpdatedAt = now
	} else {
		merged.UpdatedAt = existing.UpdatedAt
	}
	if ShouldReschedule(merged, existing) {
		merged.NotificationScheduled = false
	}

	prev := *existing
	return UpsertResult{
		Ticket:     merged,
		Previous:   &prev,
		HasChanged: changed,
	}
}

// carryStatus keeps an externally set sold_out until the window closes.
func carryStatus(computed, stored sale.Status) sale.Status {
	if stored == sale.StatusSoldOut && computed != sale.StatusEnded {
		return sale.StatusSoldOut
	}
	return computed
}

// ShouldSchedule reports whether t still needs its notifications enqueued.
func ShouldSchedule(t Ticket) bool {
	return t.SaleStartDate != nil &&
		t.SaleStatus == sale.StatusBeforeSale &&
		!t.NotificationScheduled
}

// ShouldReschedule reports whether the sale start moved since previous,
// including appearing or disappearing. No other field change touches
// scheduling.
func ShouldReschedule(t Ticket, previous *Ticket) bool {
	if previous == nil {
		return false
	}
	return !sameInstant(t.SaleStartDate, previous.SaleStartDate)
}

// Rescheduled reports whether the tasks enqueued for Previous are stale.
func (r UpsertResult) Rescheduled() bool {
	return !r.IsNew && ShouldReschedule(r.Ticket, r.Previous)
}

// SchedulingRequired reports whether the ticket goes to the scheduler after
// the cycle: new tickets that should be scheduled, tickets whose sale start
// moved, and stored tickets whose earlier scheduling attempt never
// succeeded.
func (r UpsertResult) SchedulingRequired() bool {
	if r.IsNew {
		return ShouldSchedule(r.Ticket)
	}
	return r.Rescheduled() || ShouldSchedule(r.Ticket)
}

// FilterRequiringScheduling returns the results to hand to the scheduler,
// in input order.
func FilterRequiringScheduling(results []UpsertResult) []UpsertResult {
	var out []UpsertResult
	for _, r := range results {
		if r.SchedulingRequired() {
			out = append(out, r)
		}
	}
	return out
}

func sameBusinessFields(a, b Ticket) bool {
	return a.MatchName == b.MatchName &&
		sameInstant(a.MatchDate, b.MatchDate) &&
		a.HomeTeam == b.HomeTeam &&
		a.AwayTeam == b.AwayTeam &&
		a.Venue == b.Venue &&
		sameInstant(a.SaleStartDate, b.SaleStartDate) &&
		sameInstant(a.SaleEndDate, b.SaleEndDate) &&
		a.SaleStatus == b.SaleStatus &&
		slices.Equal(a.TicketTypes, b.TicketTypes) &&
		a.TicketURL == b.TicketURL
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
