package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const maxFeedBytes = 8 << 20

// feedEnvelope is the JSON document published by the scraper job.
type feedEnvelope struct {
	Tickets []ScrapedTicketData `json:"tickets"`
}

// FeedClient reads listings from an HTTP JSON feed.
//
// Items that fail validation are logged and skipped so a single malformed
// listing does not abort the cycle.
type FeedClient struct {
	httpClient *http.Client
	url        string
	limiter    *rate.Limiter
	logger     *slog.Logger
	maxBody    int64
}

// NewFeedClient creates a rate-limited feed client.
func NewFeedClient(feedURL string, requestsPerMinute int, logger *slog.Logger) *FeedClient {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 6
	}
	rps := float64(requestsPerMinute) / 60.0
	return &FeedClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        feedURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		maxBody:    maxFeedBytes,
	}
}

func (c *FeedClient) ScrapeTickets(ctx context.Context) ([]ScrapedTicketData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("feed body exceeds %d bytes", c.maxBody)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	items, err := Decode(body)
	if err != nil {
		return nil, err
	}

	valid := items[:0]
	for _, it := range items {
		if err := it.Validate(); err != nil {
			c.logger.Warn("Skipping invalid listing", "match_name", it.MatchName, "error", err)
			continue
		}
		valid = append(valid, it)
	}
	return valid, nil
}

// Decode parses a feed document. Both the {"tickets": [...]} envelope and a
// bare array are accepted.
func Decode(body []byte) ([]ScrapedTicketData, error) {
	var items []ScrapedTicketData
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var env feedEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return env.Tickets, nil
}

// truncate cuts b to at most maxLen bytes without splitting a UTF-8 sequence.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	n := maxLen
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n]) + "..."
}
