// Package notifications computes when a ticket's sale alerts fire, keeps
// them as rows in the notifications table (the durable task queue), and
// delivers them through the configured messaging transports.
//
// Pipeline: sale start -> timings -> pending rows -> dispatch worker claims
// due rows -> message -> senders -> sent | failed.
package notifications

import (
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	dayBeforeHour        = 20 // 8 PM local on the eve of the sale
	hourBeforeOffset     = 60 * time.Minute
	minutesBeforeOffset  = 15 * time.Minute
	defaultDispatchEvery = 30 * time.Second
	dispatchBatchSize    = 100
	sendingLease         = 10 * time.Minute // claimed rows idle longer than this are reclaimable
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Type identifies which pre-sale alert a notification is.
type Type string

const (
	DayBefore     Type = "day_before"
	HourBefore    Type = "hour_before"
	MinutesBefore Type = "minutes_before"
)

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	switch t {
	case DayBefore, HourBefore, MinutesBefore:
		return true
	}
	return false
}

// Tolerance is how late a notification of this type may fire and still be
// worth sending.
func (t Type) Tolerance() time.Duration {
	switch t {
	case MinutesBefore:
		return 2 * time.Minute
	default:
		return 5 * time.Minute
	}
}

// Timing is one future alert for a ticket's sale start.
type Timing struct {
	Type        Type      `json:"type"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

// Status is a notification row's delivery state. sending marks a row
// claimed by a dispatcher; cancelled marks a row superseded by a new sale
// start.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record is a persisted notification.
type Record struct {
	ID           string     `json:"id"`
	TicketID     string     `json:"ticketId"`
	Type         Type       `json:"notificationType"`
	ScheduledAt  time.Time  `json:"scheduledAt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInvalidType    = errors.New("invalid notification type")
)

// SchedulingError reports a failure to enqueue or cancel a ticket's
// notifications. The ticket's notification flag stays false so the next
// collection cycle tries again.
type SchedulingError struct {
	TicketID string
	Err      error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("schedule notifications for ticket %s: %v", e.TicketID, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// DispatchError reports a transport failure at fire time. The record has
// already been marked failed when it is returned.
type DispatchError struct {
	NotificationID string
	TicketID       string
	Type           Type
	Err            error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s for ticket %s: %v", e.Type, e.TicketID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
