package maintenance

import (
	"log/slog"

	"github.com/albapepper/scoracle-tickets/internal/cache"
	"github.com/albapepper/scoracle-tickets/internal/collect"
)

// AfterCollect drops cached ticket responses once a cycle has stored new
// data. Unchanged cycles keep the cache.
func AfterCollect(c *cache.Cache, res *collect.Result, logger *slog.Logger) {
	if c == nil || res == nil || res.New+res.Updated == 0 {
		return
	}
	n := c.InvalidatePrefix(cache.TicketPrefix)
	logger.Info("Invalidated ticket cache", "keys", n, "new", res.New, "updated", res.Updated)
}
