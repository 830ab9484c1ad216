package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Sender delivers a message over one messaging transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender for the configured webhook endpoints: a
// single WebhookSender, a MultiSender fanning out to several, or a
// LogSender when none are configured.
func NewSender(urls []string, requestsPerMinute int, logger *slog.Logger) Sender {
	switch len(urls) {
	case 0:
		return NewLogSender(logger)
	case 1:
		return NewWebhookSender(urls[0], requestsPerMinute, logger)
	}
	multi := make(MultiSender, 0, len(urls))
	for _, u := range urls {
		multi = append(multi, NewWebhookSender(u, requestsPerMinute, logger))
	}
	return multi
}

// --------------------------------------------------------------------------
// LogSender
// --------------------------------------------------------------------------

// LogSender only logs messages. Used when no transport is configured so
// the rest of the pipeline still runs in development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("Notification send (no transport configured)",
		"ticket_id", msg.TicketID, "notification_type", msg.Type, "title", msg.Title)
	return nil
}

// --------------------------------------------------------------------------
// WebhookSender
// --------------------------------------------------------------------------

// WebhookSender POSTs the message as JSON to a webhook endpoint. A token
// bucket keeps bursts of due notifications under the endpoint's limits.
type WebhookSender struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewWebhookSender creates a rate-limited webhook sender.
func NewWebhookSender(url string, requestsPerMinute int, logger *slog.Logger) *WebhookSender {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	return &WebhookSender{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
		logger:     logger,
	}
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, snippet)
	}
	s.logger.Debug("Webhook delivered", "ticket_id", msg.TicketID, "notification_type", msg.Type)
	return nil
}

// --------------------------------------------------------------------------
// MultiSender
// --------------------------------------------------------------------------

// MultiSender sends to every transport. All are attempted even when one
// fails; the failures are joined.
type MultiSender []Sender

func (m MultiSender) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
