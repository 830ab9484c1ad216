package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-tickets/internal/clock"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

type fakeTickets struct {
	byID map[string]ticket.Ticket
	err  error
}

func (f *fakeTickets) FindByID(_ context.Context, id string) (*ticket.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type fakeRecords struct {
	due    []Record
	claims int
	active map[string]*Record
	sent   []string
	failed map[string]string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{active: map[string]*Record{}, failed: map[string]string{}}
}

func (f *fakeRecords) ClaimDue(_ context.Context, _ time.Time, limit int) ([]Record, error) {
	f.claims++
	n := min(limit, len(f.due))
	out := f.due[:n]
	f.due = f.due[n:]
	return out, nil
}

// FindActive and Claim model the status guards of the real queue: only
// pending rows are found or claimed.
func (f *fakeRecords) FindActive(_ context.Context, ticketID string, typ Type) (*Record, error) {
	r := f.active[ticketID+"/"+string(typ)]
	if r == nil || r.Status != StatusPending {
		return nil, nil
	}
	return r, nil
}

func (f *fakeRecords) Claim(_ context.Context, id string) (*Record, error) {
	for _, r := range f.active {
		if r.ID == id && r.Status == StatusPending {
			r.Status = StatusSending
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeRecords) MarkSent(_ context.Context, id string, _ time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeRecords) MarkFailed(_ context.Context, id string, reason string) error {
	f.failed[id] = reason
	return nil
}

type recordingSender struct {
	msgs []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

var dispatchNow = jst(2024, 8, 15, 9, 0)

func newTestDispatcher(tk *fakeTickets, recs *fakeRecords, s Sender) *Dispatcher {
	return NewDispatcher(tk, recs, s, clock.NewFixed(dispatchNow), quiet)
}

func TestDispatch_SendsAndMarksRecord(t *testing.T) {
	t.Parallel()

	tk := &fakeTickets{byID: map[string]ticket.Ticket{"t-1": sampleTicket()}}
	recs := newFakeRecords()
	recs.active["t-1/hour_before"] = &Record{ID: "n-1", TicketID: "t-1", Type: HourBefore, Status: StatusPending}
	s := &recordingSender{}

	require.NoError(t, newTestDispatcher(tk, recs, s).Dispatch(context.Background(), "t-1", HourBefore))
	require.Len(t, s.msgs, 1)
	assert.Equal(t, HourBefore, s.msgs[0].Type)
	assert.Equal(t, []string{"n-1"}, recs.sent)
}

func TestDispatch_WithoutQueuedRecordIsNoop(t *testing.T) {
	t.Parallel()

	tk := &fakeTickets{byID: map[string]ticket.Ticket{"t-1": sampleTicket()}}
	recs := newFakeRecords()
	s := &recordingSender{}

	require.NoError(t, newTestDispatcher(tk, recs, s).Dispatch(context.Background(), "t-1", DayBefore))
	assert.Empty(t, s.msgs)
	assert.Empty(t, recs.sent)
}

func TestDispatch_SkipsRecordClaimedByWorker(t *testing.T) {
	t.Parallel()

	tk := &fakeTickets{byID: map[string]ticket.Ticket{"t-1": sampleTicket()}}
	recs := newFakeRecords()
	recs.active["t-1/hour_before"] = &Record{ID: "n-1", TicketID: "t-1", Type: HourBefore, Status: StatusSending}
	s := &recordingSender{}

	require.NoError(t, newTestDispatcher(tk, recs, s).Dispatch(context.Background(), "t-1", HourBefore))
	assert.Empty(t, s.msgs)
	assert.Empty(t, recs.sent)
	assert.Empty(t, recs.failed)
}

func TestDispatch_SkipsCancelledRecord(t *testing.T) {
	t.Parallel()

	tk := &fakeTickets{byID: map[string]ticket.Ticket{"t-1": sampleTicket()}}
	recs := newFakeRecords()
	recs.active["t-1/day_before"] = &Record{ID: "n-3", TicketID: "t-1", Type: DayBefore, Status: StatusCancelled}
	s := &recordingSender{}

	require.NoError(t, newTestDispatcher(tk, recs, s).Dispatch(context.Background(), "t-1", DayBefore))
	assert.Empty(t, s.msgs)
}

func TestDispatch_SecondTriggerDoesNotResend(t *testing.T) {
	t.Parallel()

	tk := &fakeTickets{byID: map[string]ticket.Ticket{"t-1": sampleTicket()}}
	recs := newFakeRecords()
	recs.active["t-1/hour_before"] = &Record{ID: "n-1", TicketID: "t-1", Type: HourBefore, Status: StatusPending}
	s := &recordingSender{}
	d := newTestDispatcher(tk, recs, s)

	require.NoError(t, d.Dispatch(context.Background(), "t-1", HourBefore))
	require.NoError(t, d.Dispatch(context.Background(), "t-1", HourBefore))
	assert.Len(t, s.msgs, 1)
	assert.Equal(t, []string{"n-1"}, recs.sent)
}

func TestDispatch_TicketNotFound(t *testing.T) {
	t.Parallel()

	recs := newFakeRecords()
	recs.active["gone/day_before"] = &Record{ID: "n-9", TicketID: "gone", Type: DayBefore, Status: StatusPending}
	s := &recordingSender{}

	err := newTestDispatcher(&fakeTickets{}, recs, s).Dispatch(context.Background(), "gone", DayBefore)
	require.ErrorIs(t, err, ErrTicketNotFound)
	assert.Empty(t, s.msgs)
	assert.Equal(t, ErrTicketNotFound.Error(), recs.failed["n-9"])
}

func TestDispatch_InvalidType(t *testing.T) {
	t.Parallel()

	err := newTestDispatcher(&fakeTickets{}, newFakeRecords(), &recordingSender{}).
		Dispatch(context.Background(), "t-1", Type("week_before"))
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestDispatch_SendFailureIsDispatchError(t *testing.T) {
	t.Parallel()

	tk := &fakeTickets{byID: map[string]ticket.Ticket{"t-1": sampleTicket()}}
	recs := newFakeRecords()
	recs.active["t-1/minutes_before"] = &Record{ID: "n-2", TicketID: "t-1", Type: MinutesBefore, Status: StatusPending}
	transport := errors.New("connection refused")

	err := newTestDispatcher(tk, recs, &recordingSender{err: transport}).
		Dispatch(context.Background(), "t-1", MinutesBefore)

	var derr *DispatchError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "n-2", derr.NotificationID)
	assert.Equal(t, MinutesBefore, derr.Type)
	assert.ErrorIs(t, err, transport)
	assert.Contains(t, recs.failed["n-2"], "connection refused")
	assert.Empty(t, recs.sent)
}

func TestProcessPending(t *testing.T) {
	t.Parallel()

	tk := &fakeTickets{byID: map[string]ticket.Ticket{"t-1": sampleTicket()}}
	recs := newFakeRecords()
	recs.due = []Record{
		{ID: "ok", TicketID: "t-1", Type: HourBefore, ScheduledAt: dispatchNow.Add(-time.Minute)},
		{ID: "orphan", TicketID: "missing", Type: HourBefore, ScheduledAt: dispatchNow},
		{ID: "stale", TicketID: "t-1", Type: MinutesBefore, ScheduledAt: dispatchNow.Add(-10 * time.Minute)},
	}
	s := &recordingSender{}

	res, err := newTestDispatcher(tk, recs, s).ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PendingResult{Processed: 1, Failed: 2}, res)
	assert.Equal(t, []string{"ok"}, recs.sent)
	assert.Contains(t, recs.failed, "orphan")
	assert.Equal(t, "missed trigger window", recs.failed["stale"])
	assert.Len(t, s.msgs, 1)
}

func TestProcessPending_DrainsBacklog(t *testing.T) {
	t.Parallel()

	tk := &fakeTickets{byID: map[string]ticket.Ticket{"t-1": sampleTicket()}}
	recs := newFakeRecords()
	for i := range dispatchBatchSize + 50 {
		recs.due = append(recs.due, Record{
			ID: fmt.Sprintf("n-%d", i), TicketID: "t-1", Type: HourBefore, ScheduledAt: dispatchNow,
		})
	}
	s := &recordingSender{}

	res, err := newTestDispatcher(tk, recs, s).ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PendingResult{Processed: dispatchBatchSize + 50}, res)
	assert.Equal(t, 2, recs.claims)
	assert.Len(t, s.msgs, dispatchBatchSize+50)
}

func TestProcessPending_Empty(t *testing.T) {
	t.Parallel()

	res, err := newTestDispatcher(&fakeTickets{}, newFakeRecords(), &recordingSender{}).
		ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestStartWorker_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestDispatcher(&fakeTickets{}, newFakeRecords(), &recordingSender{}).StartWorker(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
