// Package ticket holds the away-match ticket model, its deterministic
// identity, the diff engine that decides what a re-scrape means for a
// stored ticket, and the Postgres store that owns tickets.
package ticket

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/albapepper/scoracle-tickets/internal/sale"
)

// Ticket is one away-match ticket offering.
type Ticket struct {
	ID                    string      `json:"id"`
	MatchName             string      `json:"matchName"`
	MatchDate             *time.Time  `json:"matchDate,omitempty"`
	HomeTeam              string      `json:"homeTeam"`
	AwayTeam              string      `json:"awayTeam"`
	Venue                 string      `json:"venue"`
	SaleStartDate         *time.Time  `json:"saleStartDate,omitempty"`
	SaleEndDate           *time.Time  `json:"saleEndDate,omitempty"`
	SaleStatus            sale.Status `json:"saleStatus"`
	TicketTypes           []string    `json:"ticketTypes"`
	TicketURL             string      `json:"ticketUrl"`
	NotificationScheduled bool        `json:"notificationScheduled"`
	ScrapedAt             time.Time   `json:"scrapedAt"`
	CreatedAt             time.Time   `json:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt"`
}

// SplitTeams derives home and away sides from a match name. Names of the
// form "Home vs Away" are split as written. A bare opponent, with or
// without a leading "vs", is the home side and club is the away side.
func SplitTeams(matchName, club string) (home, away string) {
	name := strings.TrimSpace(norm.NFKC.String(matchName))
	lower := strings.ToLower(name)

	for _, sep := range []string{"vs.", "vs"} {
		idx := strings.Index(lower, sep)
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(name[:idx])
		right := strings.TrimSpace(name[idx+len(sep):])
		if left == "" {
			return right, club
		}
		return left, right
	}
	return name, club
}
