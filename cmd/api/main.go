// Command api is the away-ticket tracker's HTTP server. Besides the API it
// runs the notification dispatch worker and the maintenance tickers.
//
// Usage:
//
//	tickets-api
//	API_PORT=8080 tickets-api

// @title Scoracle Away Tickets API
// @version 1.0.0
// @description Tracks away-match ticket sales and dispatches pre-sale notifications.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/scoracle-tickets/internal/api"
	"github.com/albapepper/scoracle-tickets/internal/api/handler"
	"github.com/albapepper/scoracle-tickets/internal/cache"
	"github.com/albapepper/scoracle-tickets/internal/clock"
	"github.com/albapepper/scoracle-tickets/internal/collect"
	"github.com/albapepper/scoracle-tickets/internal/config"
	"github.com/albapepper/scoracle-tickets/internal/db"
	"github.com/albapepper/scoracle-tickets/internal/health"
	"github.com/albapepper/scoracle-tickets/internal/listener"
	"github.com/albapepper/scoracle-tickets/internal/maintenance"
	"github.com/albapepper/scoracle-tickets/internal/notifications"
	"github.com/albapepper/scoracle-tickets/internal/scrape"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	clk := clock.NewSystem()
	tickets := ticket.NewStore(pool.Pool)
	queue := notifications.NewQueue(pool.Pool)
	cycles := health.NewStore(pool.Pool)

	sender := notifications.NewSender(cfg.WebhookURLs, cfg.WebhookRequestsPerMinute, logger)
	dispatcher := notifications.NewDispatcher(tickets, queue, sender, clk, logger)
	go dispatcher.StartWorker(ctx, cfg.DispatchInterval)

	var source scrape.Source = scrape.StaticSource(nil)
	if cfg.ScrapeFeedURL != "" {
		source = scrape.NewFeedClient(cfg.ScrapeFeedURL, cfg.ScrapeRequestsPerMinute, logger)
	} else {
		logger.Warn("SCRAPE_FEED_URL not set; collection cycles will find no tickets")
	}
	collector := collect.New(collect.Config{
		Source:    source,
		Tickets:   tickets,
		Scheduler: queue,
		Health:    cycles,
		Clock:     clk,
		Club:      cfg.ClubName,
		Logger:    logger,
	})

	// Collection may run in another process; ticket row changes arrive
	// over LISTEN/NOTIFY and drop the cached responses.
	go listener.Start(ctx, cfg.DatabaseURL, func(listener.TicketEvent) {
		appCache.InvalidatePrefix(cache.TicketPrefix)
	}, logger)

	mcfg := maintenance.DefaultConfig()
	mcfg.CollectInterval = cfg.CollectInterval
	mcfg.Retention = cfg.NotificationRetention
	go maintenance.Start(ctx, maintenance.Tasks{
		Notifications: queue,
		Cycles:        cycles,
		Collector:     collector,
		Cache:         appCache,
		Clock:         clk,
	}, mcfg, logger)

	collectMaxAge := 2 * time.Hour
	if cfg.CollectInterval > 0 {
		collectMaxAge = 3 * cfg.CollectInterval
	}
	h := handler.New(handler.Deps{
		Tickets:       tickets,
		Collector:     collector,
		Dispatcher:    dispatcher,
		Cycles:        cycles,
		DB:            pool,
		Cache:         appCache,
		CollectMaxAge: collectMaxAge,
		Logger:        logger,
	})
	router := api.NewRouter(h, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // collection runs inline on POST /api/v1/collect
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting Scoracle Away Tickets API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
