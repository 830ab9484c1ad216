package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-tickets/internal/sale"
	"github.com/albapepper/scoracle-tickets/internal/testutil"
)

func TestStore(t *testing.T) {
	pool := testutil.NewTestPool(t)
	store := NewStore(pool)

	t.Run("FindByID returns nil for unknown identity", func(t *testing.T) {
		testutil.Migrate(t, pool)

		got, err := store.FindByID(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Upsert keeps created_at and replaces business fields", func(t *testing.T) {
		testutil.Migrate(t, pool)
		ctx := context.Background()

		first := Merge(scrapedTicket(), nil, now).Ticket
		stored, err := store.Upsert(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, first.ID, stored.ID)
		assert.Equal(t, first.TicketTypes, stored.TicketTypes)
		require.NotNil(t, stored.SaleStartDate)
		assert.True(t, first.SaleStartDate.Equal(*stored.SaleStartDate))

		rescraped := scrapedTicket()
		rescraped.Venue = "カシマ"
		rescraped.ScrapedAt = now.Add(time.Hour)
		merged := Merge(rescraped, &stored, now.Add(time.Hour)).Ticket
		merged.CreatedAt = now.Add(48 * time.Hour) // ignored on conflict

		updated, err := store.Upsert(ctx, merged)
		require.NoError(t, err)
		assert.Equal(t, "カシマ", updated.Venue)
		assert.True(t, stored.CreatedAt.Equal(updated.CreatedAt))
	})

	t.Run("UpsertMany, FindByIDs and MarkNotificationScheduled", func(t *testing.T) {
		testutil.Migrate(t, pool)
		ctx := context.Background()

		a := Merge(scrapedTicket(), nil, now).Ticket
		b := scrapedTicket()
		b.TicketURL = "https://tickets.example/m/2"
		b.ID = Identity(b.MatchName, b.Venue, b.TicketURL)
		b.SaleStatus = sale.StatusOnSale
		b.TicketTypes = nil
		b = Merge(b, nil, now).Ticket

		stored, err := store.UpsertMany(ctx, []Ticket{a, b})
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Empty(t, stored[1].TicketTypes)

		require.NoError(t, store.MarkNotificationScheduled(ctx, a.ID, true))

		found, err := store.FindByIDs(ctx, []string{a.ID, b.ID, "missing"})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.True(t, found[a.ID].NotificationScheduled)
		assert.False(t, found[b.ID].NotificationScheduled)

		onSale, err := store.List(ctx, ListFilter{Status: sale.StatusOnSale})
		require.NoError(t, err)
		require.Len(t, onSale, 1)
		assert.Equal(t, b.ID, onSale[0].ID)
	})
}
