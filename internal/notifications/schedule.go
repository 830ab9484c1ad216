package notifications

import (
	"time"

	"github.com/albapepper/scoracle-tickets/internal/sale"
)

// CalculateTimes returns the alerts still ahead of now for a sale opening
// at saleStart:
//
//	day_before      20:00 site-local on the day before the sale
//	hour_before     saleStart - 60m
//	minutes_before  saleStart - 15m
//
// Alerts at or before now are dropped. A nil saleStart yields nothing.
// The result happens to be in the order above; callers should not rely on
// it.
func CalculateTimes(saleStart *time.Time, now time.Time) []Timing {
	if saleStart == nil {
		return nil
	}

	local := saleStart.In(sale.Location)
	eve := time.Date(local.Year(), local.Month(), local.Day()-1, dayBeforeHour, 0, 0, 0, sale.Location)

	candidates := []Timing{
		{Type: DayBefore, ScheduledAt: eve.UTC()},
		{Type: HourBefore, ScheduledAt: saleStart.Add(-hourBeforeOffset).UTC()},
		{Type: MinutesBefore, ScheduledAt: saleStart.Add(-minutesBeforeOffset).UTC()},
	}

	var out []Timing
	for _, c := range candidates {
		if c.ScheduledAt.After(now) {
			out = append(out, c)
		}
	}
	return out
}

// Missed reports whether a notification scheduled at scheduledAt is
// already past its trigger window at now.
func Missed(typ Type, scheduledAt, now time.Time) bool {
	return now.After(scheduledAt.Add(typ.Tolerance()))
}
