package sale

import "time"

// Status is a ticket's position in its sale lifecycle.
type Status string

const (
	StatusBeforeSale Status = "before_sale"
	StatusOnSale     Status = "on_sale"
	// StatusSoldOut is never derived from dates. It only arrives from an
	// outside signal and is preserved across re-scrapes.
	StatusSoldOut Status = "sold_out"
	StatusEnded   Status = "ended"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusBeforeSale, StatusOnSale, StatusSoldOut, StatusEnded:
		return true
	}
	return false
}

// ComputeStatus derives the status at observedAt from the optional sale
// window bounds. The end bound wins over the start bound.
func ComputeStatus(start, end *time.Time, observedAt time.Time) Status {
	if end != nil && observedAt.After(*end) {
		return StatusEnded
	}
	if start != nil && observedAt.Before(*start) {
		return StatusBeforeSale
	}
	return StatusOnSale
}
