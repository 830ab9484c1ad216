// Package scrape adapts ticket-listing sources into validated
// ScrapedTicketData. Site-specific extraction happens upstream of the feed
// these clients read; this package owns only the ingestion boundary.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ScrapedTicketData is one raw listing as published by the sales site. Date
// fields are free text; "未定" means the value is not yet known.
type ScrapedTicketData struct {
	MatchName   string   `json:"matchName"`
	MatchDate   string   `json:"matchDate"`
	SaleDate    string   `json:"saleDate"`
	Venue       string   `json:"venue"`
	TicketTypes []string `json:"ticketTypes"`
	TicketURL   string   `json:"ticketUrl"`
}

// Source produces the current listings.
type Source interface {
	ScrapeTickets(ctx context.Context) ([]ScrapedTicketData, error)
}

var (
	ErrMissingMatchName = errors.New("match name is required")
	ErrInvalidTicketURL = errors.New("ticket url must be an absolute http(s) url")
)

// Validate checks the fields every later stage depends on.
func (d ScrapedTicketData) Validate() error {
	if strings.TrimSpace(d.MatchName) == "" {
		return ErrMissingMatchName
	}
	u, err := url.Parse(strings.TrimSpace(d.TicketURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidTicketURL, d.TicketURL)
	}
	return nil
}

// StaticSource serves a fixed set of listings. The CLI uses it to replay a
// captured feed file.
type StaticSource []ScrapedTicketData

func (s StaticSource) ScrapeTickets(ctx context.Context) ([]ScrapedTicketData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]ScrapedTicketData, len(s))
	copy(out, s)
	return out, nil
}
