package collect

import (
	"fmt"
	"time"

	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

// Result tracks the outcome of one collection cycle.
type Result struct {
	ExecutedAt  time.Time     `json:"executedAt"`
	Fetched     int           `json:"fetched"`
	New         int           `json:"new"`
	Updated     int           `json:"updated"`
	Unchanged   int           `json:"unchanged"`
	Rescheduled int           `json:"rescheduled"`
	Scheduled   int           `json:"scheduled"`
	Duration    time.Duration `json:"-"`
	DurationMs  int64         `json:"durationMs"`
	// NotificationsQueued counts timings enqueued across scheduled tickets.
	NotificationsQueued int `json:"notificationsQueued"`

	Errors           []*TicketError `json:"-"`
	SchedulingErrors []error        `json:"-"`
}

// Processed is the number of listings stored this cycle. Failed listings
// are not counted.
func (r *Result) Processed() int {
	return r.New + r.Updated + r.Unchanged
}

func (r *Result) count(u ticket.UpsertResult) {
	switch {
	case u.IsNew:
		r.New++
	case u.HasChanged:
		r.Updated++
	default:
		r.Unchanged++
	}
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"fetched=%d new=%d updated=%d unchanged=%d failed=%d scheduled=%d rescheduled=%d queued=%d sched_errors=%d dur=%s",
		r.Fetched, r.New, r.Updated, r.Unchanged, len(r.Errors),
		r.Scheduled, r.Rescheduled, r.NotificationsQueued, len(r.SchedulingErrors),
		r.Duration.Round(time.Millisecond),
	)
}
