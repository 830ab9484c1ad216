// Package sale turns the ticket site's year-less date text into absolute
// instants and derives a ticket's sale status from its sale window.
//
// The site prints dates as "MM/DD(曜)HH:MM" in Japan time with no year.
// The club's season runs roughly February to January and next season's
// fixtures start appearing in November, so the year is inferred from the
// month being parsed relative to a reference instant.
package sale

import (
	"errors"
	"fmt"
	"time"
)

// Location is the ticket site's wall-clock timezone. Japan has no DST so a
// fixed offset avoids depending on the host's tzdata.
var Location = time.FixedZone("Asia/Tokyo", 9*60*60)

// Undetermined is the site's "not yet decided" placeholder. A field holding
// it is treated as absent.
const Undetermined = "未定"

var (
	ErrUnrecognizedSaleText = errors.New("unrecognized sale text")
	ErrInvalidDate          = errors.New("invalid calendar date")
)

// ParseError reports text that could not be turned into a date or sale
// window. It is never defaulted away: a ticket with an unparsed sale date
// could never be scheduled for notifications.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
