package collect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-tickets/internal/clock"
	"github.com/albapepper/scoracle-tickets/internal/health"
	"github.com/albapepper/scoracle-tickets/internal/notifications"
	"github.com/albapepper/scoracle-tickets/internal/sale"
	"github.com/albapepper/scoracle-tickets/internal/scrape"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// 2024-08-01 09:00 JST
var now = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeStore struct {
	tickets   map[string]ticket.Ticket
	failOn    string
	markCalls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{tickets: map[string]ticket.Ticket{}}
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*ticket.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) Upsert(_ context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	if f.failOn != "" && t.MatchName == f.failOn {
		return ticket.Ticket{}, errors.New("unique violation")
	}
	f.tickets[t.ID] = t
	return t, nil
}

func (f *fakeStore) MarkNotificationScheduled(_ context.Context, id string, scheduled bool) error {
	t := f.tickets[id]
	t.NotificationScheduled = scheduled
	f.tickets[id] = t
	f.markCalls = append(f.markCalls, id)
	return nil
}

type fakeScheduler struct {
	scheduled map[string][]notifications.Timing
	cancelled [][]string
	err       error
	cancelErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: map[string][]notifications.Timing{}}
}

func (f *fakeScheduler) ScheduleNotifications(_ context.Context, t ticket.Ticket, timings []notifications.Timing) error {
	if f.err != nil {
		return &notifications.SchedulingError{TicketID: t.ID, Err: f.err}
	}
	f.scheduled[t.ID] = timings
	return nil
}

func (f *fakeScheduler) CancelNotifications(_ context.Context, ids []string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, ids)
	return nil
}

type fakeHealth struct {
	rows []health.CycleResult
	err  error
}

func (f *fakeHealth) RecordCycleResult(_ context.Context, r health.CycleResult) error {
	f.rows = append(f.rows, r)
	return f.err
}

type failingSource struct{ err error }

func (s failingSource) ScrapeTickets(context.Context) ([]scrape.ScrapedTicketData, error) {
	return nil, s.err
}

func listing(name, saleDate string) scrape.ScrapedTicketData {
	return scrape.ScrapedTicketData{
		MatchName:   name,
		MatchDate:   "08/24(土) 19:00",
		SaleDate:    saleDate,
		Venue:       "カシマスタジアム",
		TicketTypes: []string{" ビジター自由席 ", "", "未定"},
		TicketURL:   "https://tickets.example/" + name,
	}
}

type harness struct {
	store     *fakeStore
	scheduler *fakeScheduler
	health    *fakeHealth
}

func newHarness() *harness {
	return &harness{store: newFakeStore(), scheduler: newFakeScheduler(), health: &fakeHealth{}}
}

func (h *harness) collector(src scrape.Source, at time.Time) *Collector {
	return New(Config{
		Source:    src,
		Tickets:   h.store,
		Scheduler: h.scheduler,
		Health:    h.health,
		Clock:     clock.NewFixed(at),
		Club:      "鹿島アントラーズ",
		Logger:    quiet,
	})
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRun_NewTicketsScheduled(t *testing.T) {
	t.Parallel()
	h := newHarness()
	src := scrape.StaticSource{
		listing("浦和レッズ", "08/15(木)10:00〜"),
		listing("川崎フロンターレ", "08/01(木)00:00〜08/01(木)08:00"),
	}

	res, err := h.collector(src, now).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.New)
	assert.Equal(t, 1, res.Scheduled)
	assert.Equal(t, 3, res.NotificationsQueued)
	assert.Empty(t, h.scheduler.cancelled)

	id := ticket.Identity("浦和レッズ", "カシマスタジアム", "https://tickets.example/浦和レッズ")
	stored := h.store.tickets[id]
	assert.True(t, stored.NotificationScheduled)
	assert.Equal(t, sale.StatusBeforeSale, stored.SaleStatus)
	assert.Equal(t, "浦和レッズ", stored.HomeTeam)
	assert.Equal(t, "鹿島アントラーズ", stored.AwayTeam)
	assert.Equal(t, []string{"ビジター自由席"}, stored.TicketTypes)
	require.NotNil(t, stored.MatchDate)
	assert.Len(t, h.scheduler.scheduled[id], 3)

	ended := ticket.Identity("川崎フロンターレ", "カシマスタジアム", "https://tickets.example/川崎フロンターレ")
	assert.Equal(t, sale.StatusEnded, h.store.tickets[ended].SaleStatus)
	assert.False(t, h.store.tickets[ended].NotificationScheduled)

	require.Len(t, h.health.rows, 1)
	assert.Equal(t, health.CycleSuccess, h.health.rows[0].Status)
	assert.Equal(t, 2, h.health.rows[0].TicketsFound)
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()
	h := newHarness()
	src := scrape.StaticSource{listing("浦和レッズ", "08/15(木)10:00〜")}

	_, err := h.collector(src, now).Run(context.Background())
	require.NoError(t, err)
	res, err := h.collector(src, now.Add(time.Hour)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.New)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 0, res.Scheduled)
	assert.Empty(t, h.scheduler.cancelled)
	assert.Len(t, h.store.markCalls, 1)
}

func TestRun_VenueChangeKeepsSchedule(t *testing.T) {
	t.Parallel()
	h := newHarness()
	first := listing("浦和レッズ", "08/15(木)10:00〜")

	_, err := h.collector(scrape.StaticSource{first}, now).Run(context.Background())
	require.NoError(t, err)
	h.scheduler.scheduled = map[string][]notifications.Timing{}

	second := first
	second.Venue = "カシマ スタジアム"
	res, err := h.collector(scrape.StaticSource{second}, now.Add(time.Hour)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Updated)
	assert.Empty(t, h.scheduler.scheduled)
	assert.Empty(t, h.scheduler.cancelled)

	require.Len(t, h.store.tickets, 1)
	for _, stored := range h.store.tickets {
		assert.Equal(t, "カシマ スタジアム", stored.Venue)
		assert.True(t, stored.NotificationScheduled)
	}
}

func TestRun_SaleStartChangeReschedules(t *testing.T) {
	t.Parallel()
	h := newHarness()
	first := listing("浦和レッズ", "08/15(木)10:00〜")

	_, err := h.collector(scrape.StaticSource{first}, now).Run(context.Background())
	require.NoError(t, err)

	moved := first
	moved.SaleDate = "08/17(土)10:00〜"
	res, err := h.collector(scrape.StaticSource{moved}, now.Add(time.Hour)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Rescheduled)
	assert.Equal(t, 1, res.Scheduled)
	require.Len(t, h.scheduler.cancelled, 1)

	id := ticket.Identity("浦和レッズ", "カシマスタジアム", "https://tickets.example/浦和レッズ")
	assert.Equal(t, []string{id}, h.scheduler.cancelled[0])
	timings := h.scheduler.scheduled[id]
	require.NotEmpty(t, timings)
	last := timings[len(timings)-1]
	assert.True(t, last.ScheduledAt.Equal(time.Date(2024, 8, 17, 9, 45, 0, 0, sale.Location)))
	assert.True(t, h.store.tickets[id].NotificationScheduled)
}

func TestRun_SchedulingFailureRetriesNextCycle(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.scheduler.err = errors.New("queue unavailable")
	src := scrape.StaticSource{listing("浦和レッズ", "08/15(木)10:00〜")}

	res, err := h.collector(src, now).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.SchedulingErrors, 1)
	var serr *notifications.SchedulingError
	assert.ErrorAs(t, res.SchedulingErrors[0], &serr)

	id := ticket.Identity("浦和レッズ", "カシマスタジアム", "https://tickets.example/浦和レッズ")
	assert.False(t, h.store.tickets[id].NotificationScheduled)

	h.scheduler.err = nil
	res, err = h.collector(src, now.Add(time.Hour)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scheduled)
	assert.True(t, h.store.tickets[id].NotificationScheduled)
}

func TestRun_CancelFailureSkipsReschedule(t *testing.T) {
	t.Parallel()
	h := newHarness()
	first := listing("浦和レッズ", "08/15(木)10:00〜")
	_, err := h.collector(scrape.StaticSource{first}, now).Run(context.Background())
	require.NoError(t, err)

	h.scheduler.cancelErr = errors.New("queue unavailable")
	h.scheduler.scheduled = map[string][]notifications.Timing{}
	moved := first
	moved.SaleDate = "08/17(土)10:00〜"
	res, err := h.collector(scrape.StaticSource{moved}, now.Add(time.Hour)).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.SchedulingErrors, 1)
	assert.Zero(t, res.Scheduled)
	assert.Empty(t, h.scheduler.scheduled)
	for _, stored := range h.store.tickets {
		assert.False(t, stored.NotificationScheduled)
	}
}

func TestRun_PerTicketErrorsAreIsolated(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.store.failOn = "川崎フロンターレ"
	src := scrape.StaticSource{
		listing("浦和レッズ", "08/15(木)10:00〜"),
		listing("ガンバ大阪", "来週発売"),
		listing("川崎フロンターレ", "08/20(火)10:00〜"),
		listing("FC東京", "08/25(日)10:00〜"),
	}

	res, err := h.collector(src, now).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 2, res.New)
	require.Len(t, res.Errors, 2)
	assert.ErrorIs(t, res.Errors[0], sale.ErrUnrecognizedSaleText)
	assert.Equal(t, "ガンバ大阪", res.Errors[0].MatchName)
	assert.NotEmpty(t, res.Errors[1].TicketID)

	require.Len(t, h.health.rows, 1)
	assert.Equal(t, health.CycleSuccess, h.health.rows[0].Status)
	assert.Equal(t, 2, h.health.rows[0].TicketsFound)
}

func TestRun_FetchFailure(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.health.err = errors.New("db down")

	res, err := h.collector(failingSource{err: errors.New("timeout")}, now).Run(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "timeout")
	require.NotNil(t, res)

	require.Len(t, h.health.rows, 1)
	row := h.health.rows[0]
	assert.Equal(t, health.CycleError, row.Status)
	assert.Zero(t, row.TicketsFound)
	assert.Contains(t, row.ErrorDetails, "timeout")
}

func TestRun_HealthWrittenAfterCancel(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.collector(scrape.StaticSource{listing("浦和レッズ", "")}, now).Run(ctx)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Len(t, h.health.rows, 1)
}

func TestBuildTicket(t *testing.T) {
	t.Parallel()

	t.Run("undetermined fields", func(t *testing.T) {
		item := listing("vs 浦和レッズ", "未定")
		item.MatchDate = "未定"
		item.Venue = "未定"

		got, err := BuildTicket(item, "鹿島アントラーズ", now)
		require.NoError(t, err)
		assert.Nil(t, got.MatchDate)
		assert.Nil(t, got.SaleStartDate)
		assert.Nil(t, got.SaleEndDate)
		assert.Empty(t, got.Venue)
		assert.Equal(t, "浦和レッズ", got.HomeTeam)
		assert.Equal(t, "鹿島アントラーズ", got.AwayTeam)
		assert.Equal(t, ticket.Identity("vs 浦和レッズ", "", item.TicketURL), got.ID)
		assert.True(t, got.ScrapedAt.Equal(now))
	})

	t.Run("start-only sale text", func(t *testing.T) {
		got, err := BuildTicket(listing("浦和レッズ", "08/15(金)10:00〜"), "鹿島", now)
		require.NoError(t, err)
		require.NotNil(t, got.SaleStartDate)
		assert.True(t, got.SaleStartDate.Equal(time.Date(2024, 8, 15, 10, 0, 0, 0, sale.Location)))
		assert.Nil(t, got.SaleEndDate)
		assert.Equal(t, sale.StatusBeforeSale, got.SaleStatus)
	})

	t.Run("bad match date", func(t *testing.T) {
		item := listing("浦和レッズ", "")
		item.MatchDate = "sometime"
		_, err := BuildTicket(item, "鹿島", now)
		var perr *sale.ParseError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("invalid listing", func(t *testing.T) {
		item := listing("浦和レッズ", "")
		item.TicketURL = ""
		_, err := BuildTicket(item, "鹿島", now)
		assert.ErrorIs(t, err, scrape.ErrInvalidTicketURL)
	})
}
