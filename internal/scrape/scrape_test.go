package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item ScrapedTicketData
		want error
	}{
		{"ok", ScrapedTicketData{MatchName: "vs 浦和", TicketURL: "https://t.example/1"}, nil},
		{"blank name", ScrapedTicketData{MatchName: "  ", TicketURL: "https://t.example/1"}, ErrMissingMatchName},
		{"relative url", ScrapedTicketData{MatchName: "vs 浦和", TicketURL: "/tickets/1"}, ErrInvalidTicketURL},
		{"ftp url", ScrapedTicketData{MatchName: "vs 浦和", TicketURL: "ftp://t.example/1"}, ErrInvalidTicketURL},
		{"empty url", ScrapedTicketData{MatchName: "vs 浦和"}, ErrInvalidTicketURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	bare, err := Decode([]byte(`[{"matchName":"vs 浦和","saleDate":"08/15(木)10:00〜","ticketUrl":"https://t.example/1"}]`))
	require.NoError(t, err)
	require.Len(t, bare, 1)
	assert.Equal(t, "08/15(木)10:00〜", bare[0].SaleDate)

	env, err := Decode([]byte(`{"tickets":[{"matchName":"a"},{"matchName":"b"}]}`))
	require.NoError(t, err)
	assert.Len(t, env, 2)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestFeedClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"tickets":[
			{"matchName":"鹿島 vs 川崎","matchDate":"08/24(土) 19:00","saleDate":"08/15(木)10:00〜","venue":"カシマ","ticketTypes":["ビジター自由席"],"ticketUrl":"https://t.example/1"},
			{"matchName":"","ticketUrl":"https://t.example/2"}
		]}`)
	}))
	defer srv.Close()

	items, err := NewFeedClient(srv.URL, 600, quiet).ScrapeTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "鹿島 vs 川崎", items[0].MatchName)
	assert.Equal(t, []string{"ビジター自由席"}, items[0].TicketTypes)
}

func TestFeedClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewFeedClient(srv.URL, 600, quiet).ScrapeTickets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFeedClient_BodyTooLarge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[`+strings.Repeat(" ", 128)+`]`)
	}))
	defer srv.Close()

	c := NewFeedClient(srv.URL, 600, quiet)
	c.maxBody = 64
	_, err := c.ScrapeTickets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate([]byte("short"), 200))

	// Each kana is three bytes; a cut at byte 4 would split the second one.
	got := truncate([]byte("メンテナンス中"), 4)
	assert.Equal(t, "メ...", got)
	assert.True(t, utf8.ValidString(got))
}

func TestStaticSource(t *testing.T) {
	t.Parallel()

	src := StaticSource{{MatchName: "vs 浦和", TicketURL: "https://t.example/1"}}
	got, err := src.ScrapeTickets(context.Background())
	require.NoError(t, err)
	got[0].MatchName = "mutated"
	assert.Equal(t, "vs 浦和", src[0].MatchName)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.ScrapeTickets(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
