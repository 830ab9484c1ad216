// Package maintenance runs periodic background tasks as Go tickers:
// retention cleanup, cache eviction and, when enabled, collection cycles
// for deployments without an external cron.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/scoracle-tickets/internal/cache"
	"github.com/albapepper/scoracle-tickets/internal/clock"
	"github.com/albapepper/scoracle-tickets/internal/collect"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // finished notifications + old collection logs
	EvictInterval   time.Duration // expired cache entries
	CollectInterval time.Duration // in-process collection cycle
	Retention       time.Duration
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 6 * time.Hour,
		EvictInterval:   5 * time.Minute,
		Retention:       90 * 24 * time.Hour,
	}
}

// NotificationPurger deletes finished notification rows.
type NotificationPurger interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CyclePurger deletes old collection_logs rows.
type CyclePurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CycleRunner runs a collection cycle.
type CycleRunner interface {
	Run(ctx context.Context) (*collect.Result, error)
}

// Tasks are the collaborators the tickers act on. Nil members disable the
// tasks that need them.
type Tasks struct {
	Notifications NotificationPurger
	Cycles        CyclePurger
	Collector     CycleRunner
	Cache         *cache.Cache
	Clock         clock.Clock
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, tasks Tasks, cfg Config, logger *slog.Logger) {
	if tasks.Clock == nil {
		tasks.Clock = clock.NewSystem()
	}
	logger.Info("Maintenance tickers started",
		"cleanup", cfg.CleanupInterval,
		"evict", cfg.EvictInterval,
		"collect", cfg.CollectInterval)

	tickers := make([]*time.Ticker, 0, 3)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { Cleanup(ctx, tasks, cfg.Retention, logger) })
	}

	if cfg.EvictInterval > 0 && tasks.Cache != nil {
		t := time.NewTicker(cfg.EvictInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { tasks.Cache.Evict() })
	}

	if cfg.CollectInterval > 0 && tasks.Collector != nil {
		t := time.NewTicker(cfg.CollectInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { runCollection(ctx, tasks, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// Cleanup removes finished notifications and collection logs older than
// retention. Failures are logged; the next tick retries.
func Cleanup(ctx context.Context, tasks Tasks, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	cutoff := tasks.Clock.Now().Add(-retention)

	if tasks.Notifications != nil {
		n, err := tasks.Notifications.DeleteFinishedBefore(ctx, cutoff)
		if err != nil {
			logger.Warn("Cleanup: failed to purge old notifications", "error", err)
		} else if n > 0 {
			logger.Info("Cleanup: purged old notifications", "count", n)
		}
	}

	if tasks.Cycles != nil {
		n, err := tasks.Cycles.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			logger.Warn("Cleanup: failed to purge collection logs", "error", err)
		} else if n > 0 {
			logger.Info("Cleanup: purged collection logs", "count", n)
		}
	}
}

func runCollection(ctx context.Context, tasks Tasks, logger *slog.Logger) {
	res, err := tasks.Collector.Run(ctx)
	if err != nil {
		// The collector already logged and recorded the failure.
		return
	}
	AfterCollect(tasks.Cache, res, logger)
}
