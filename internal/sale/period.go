package sale

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Period is a parsed sale window and the status it implies at the
// reference instant it was parsed against.
type Period struct {
	Start  *time.Time
	End    *time.Time
	Status Status
}

// Text is NFKC-normalized before matching, which folds full-width digits,
// parentheses and the full-width tilde into ASCII. The wave dash (U+301C)
// survives normalization and is matched explicitly.
const (
	dateFragment = `(\d{1,2})/(\d{1,2})\s*(?:\([^)]*\))?\s*(\d{1,2}):(\d{2})`
	rangeSep     = `\s*[〜~]\s*`
)

var (
	fullRangeRe = regexp.MustCompile(dateFragment + rangeSep + dateFragment)
	startOnlyRe = regexp.MustCompile(dateFragment + rangeSep + `$`)
	endOnlyRe   = regexp.MustCompile(`^\s*[〜~]\s*` + dateFragment)
	matchDateRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})\s*(?:\([^)]*\))?\s*(?:(\d{1,2}):(\d{2}))?`)
)

// ParsePeriod recognizes the three sale-period shapes the site prints:
//
//	"08/15(金)10:00〜"                 start only
//	"〜08/20(水)23:59"                 end only
//	"08/15(金)10:00〜08/20(水)23:59"   full range
//
// Each date is resolved against ref. Text matching none of them fails with
// ErrUnrecognizedSaleText; "未定" is not special-cased here because an
// undetermined sale date is the caller's decision, not a parse result.
func ParsePeriod(text string, ref time.Time) (Period, error) {
	s := strings.TrimSpace(norm.NFKC.String(text))

	var p Period
	switch {
	case fullRangeRe.MatchString(s):
		m := fullRangeRe.FindStringSubmatch(s)
		start, err := fragmentTime(m[1:5], ref)
		if err != nil {
			return Period{}, err
		}
		end, err := fragmentTime(m[5:9], ref)
		if err != nil {
			return Period{}, err
		}
		// A window always runs forward. When the season rule pushes the
		// start past the end, the sale opened last year.
		if start.After(end) {
			l := start.In(Location)
			start, err = wallClock(l.Year()-1, int(l.Month()), l.Day(), l.Hour(), l.Minute())
			if err != nil {
				return Period{}, err
			}
		}
		p.Start, p.End = &start, &end

	case startOnlyRe.MatchString(s):
		m := startOnlyRe.FindStringSubmatch(s)
		start, err := fragmentTime(m[1:5], ref)
		if err != nil {
			return Period{}, err
		}
		p.Start = &start

	case endOnlyRe.MatchString(s):
		m := endOnlyRe.FindStringSubmatch(s)
		end, err := fragmentTime(m[1:5], ref)
		if err != nil {
			return Period{}, err
		}
		p.End = &end

	default:
		return Period{}, &ParseError{Input: text, Err: ErrUnrecognizedSaleText}
	}

	p.Status = ComputeStatus(p.Start, p.End, ref)
	return p, nil
}

// ParseMatchDate parses a kickoff like "08/24(土) 19:00" or a bare
// "08/24(土)" (midnight local). It returns nil for the undetermined marker
// and for empty text.
func ParseMatchDate(text string, ref time.Time) (*time.Time, error) {
	s := strings.TrimSpace(norm.NFKC.String(text))
	if s == "" || s == Undetermined {
		return nil, nil
	}
	m := matchDateRe.FindStringSubmatch(s)
	if m == nil {
		return nil, &ParseError{Input: text, Err: ErrInvalidDate}
	}
	if m[3] == "" {
		m[3], m[4] = "0", "0"
	}
	t, err := fragmentTime(m[1:5], ref)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// fragmentTime resolves a [month, day, hour, minute] capture group.
func fragmentTime(parts []string, ref time.Time) (time.Time, error) {
	var n [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, &ParseError{Input: p, Err: ErrInvalidDate}
		}
		n[i] = v
	}
	return ResolveAbsolute(n[0], n[1], n[2], n[3], ref)
}
