package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWebhookSender(t *testing.T) {
	t.Parallel()

	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, 600, quiet)
	msg := BuildMessage(sampleTicket(), DayBefore)
	require.NoError(t, s.Send(context.Background(), msg))
	assert.Equal(t, msg, got)
}

func TestWebhookSender_Non2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL, 600, quiet).Send(context.Background(), Message{TicketID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type stubSender struct {
	calls int
	err   error
}

func (s *stubSender) Send(context.Context, Message) error {
	s.calls++
	return s.err
}

func TestMultiSender_AttemptsAll(t *testing.T) {
	t.Parallel()

	first := &stubSender{err: errors.New("first down")}
	second := &stubSender{}
	third := &stubSender{err: errors.New("third down")}

	err := MultiSender{first, second, third}.Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first down")
	assert.Contains(t, err.Error(), "third down")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)

	assert.NoError(t, MultiSender{second}.Send(context.Background(), Message{}))
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &LogSender{}, NewSender(nil, 0, quiet))
	assert.IsType(t, &WebhookSender{}, NewSender([]string{"http://a"}, 0, quiet))
	multi, ok := NewSender([]string{"http://a", "http://b"}, 0, quiet).(MultiSender)
	require.True(t, ok)
	assert.Len(t, multi, 2)
}
