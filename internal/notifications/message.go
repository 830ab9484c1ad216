package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/scoracle-tickets/internal/sale"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

// Message is the transport-neutral alert handed to a Sender.
type Message struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url"`
	TicketID string `json:"ticketId"`
	Type     Type   `json:"notificationType"`
}

var weekdays = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// BuildMessage renders the alert for a ticket and notification type.
func BuildMessage(t ticket.Ticket, typ Type) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.MatchName)
	if t.MatchDate != nil {
		fmt.Fprintf(&b, "試合日時: %s\n", formatLocal(*t.MatchDate))
	}
	if t.Venue != "" {
		fmt.Fprintf(&b, "会場: %s\n", t.Venue)
	}
	if t.SaleStartDate != nil {
		fmt.Fprintf(&b, "発売開始: %s\n", formatLocal(*t.SaleStartDate))
	}
	if len(t.TicketTypes) > 0 {
		fmt.Fprintf(&b, "券種: %s\n", strings.Join(t.TicketTypes, " / "))
	}
	b.WriteString(t.TicketURL)

	return Message{
		Title:    titleFor(typ),
		Body:     b.String(),
		URL:      t.TicketURL,
		TicketID: t.ID,
		Type:     typ,
	}
}

func titleFor(typ Type) string {
	switch typ {
	case DayBefore:
		return "【明日発売】アウェイチケット販売開始のお知らせ"
	case HourBefore:
		return "【1時間前】アウェイチケットまもなく発売"
	case MinutesBefore:
		return "【15分前】アウェイチケット発売直前"
	default:
		return "アウェイチケットのお知らせ"
	}
}

// formatLocal renders t as "8/15(木) 10:00" in site time.
func formatLocal(t time.Time) string {
	l := t.In(sale.Location)
	return fmt.Sprintf("%d/%d(%s) %02d:%02d", int(l.Month()), l.Day(), weekdays[l.Weekday()], l.Hour(), l.Minute())
}
