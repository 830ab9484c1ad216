package sale

import (
	"fmt"
	"time"
)

// ResolveYear returns the calendar year a bare month refers to, as seen
// from ref in the site's timezone.
//
//	ref Nov-Dec, month Jan-Jun  -> next year (next season's early fixtures)
//	ref Jan-Feb, month Nov-Dec  -> previous year (tail of last season)
//	ref Jan-Feb, month Jul-Oct  -> this year
//	ref Mar-Dec, month < ref    -> next year (already past this year)
//	otherwise                   -> this year
func ResolveYear(month int, ref time.Time) int {
	local := ref.In(Location)
	curY, curM := local.Year(), int(local.Month())

	switch {
	case curM >= 11 && month >= 1 && month <= 6:
		return curY + 1
	case curM <= 2 && month >= 11:
		return curY - 1
	case curM <= 2 && month >= 7 && month <= 10:
		return curY
	case month < curM && curM >= 3:
		return curY + 1
	default:
		return curY
	}
}

// ResolveAbsolute builds the site-local wall-clock instant for the given
// month/day/time, inferring the year from ref, and returns it in UTC.
// Dates that do not exist on the calendar (02/30, 13/01, 25:00) fail with
// ErrInvalidDate instead of being normalized into a neighbouring day.
func ResolveAbsolute(month, day, hour, minute int, ref time.Time) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, &ParseError{
			Input: fmt.Sprintf("%02d/%02d %02d:%02d", month, day, hour, minute),
			Err:   ErrInvalidDate,
		}
	}

	return wallClock(ResolveYear(month, ref), month, day, hour, minute)
}

// wallClock builds a site-local instant for an explicit year, rejecting
// days that do not exist in that year's calendar.
func wallClock(year, month, day, hour, minute int) (time.Time, error) {
	local := time.Date(year, time.Month(month), day, hour, minute, 0, 0, Location)
	if local.Month() != time.Month(month) || local.Day() != day {
		return time.Time{}, &ParseError{
			Input: fmt.Sprintf("%04d/%02d/%02d", year, month, day),
			Err:   ErrInvalidDate,
		}
	}
	return local.UTC(), nil
}
