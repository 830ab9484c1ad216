// Command ingest is the away-ticket tracker's operations CLI.
//
// Usage:
//
//	tickets-ingest migrate
//	tickets-ingest collect
//	tickets-ingest collect --file listings.json
//	tickets-ingest notify send --ticket 3f2a... --type hour_before
//	tickets-ingest notify pending
//	tickets-ingest timings --sale "08/15(金)10:00〜08/20(水)23:59"
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-tickets/internal/clock"
	"github.com/albapepper/scoracle-tickets/internal/collect"
	"github.com/albapepper/scoracle-tickets/internal/config"
	"github.com/albapepper/scoracle-tickets/internal/db"
	"github.com/albapepper/scoracle-tickets/internal/health"
	"github.com/albapepper/scoracle-tickets/internal/notifications"
	"github.com/albapepper/scoracle-tickets/internal/sale"
	"github.com/albapepper/scoracle-tickets/internal/scrape"
	"github.com/albapepper/scoracle-tickets/internal/ticket"
	"github.com/albapepper/scoracle-tickets/migrations"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "tickets-ingest",
		Short:        "Away-ticket collection and notification CLI",
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(collectCmd())
	root.AddCommand(notifyCmd())
	root.AddCommand(timingsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				applied, err := migrations.Apply(ctx, pool.Pool)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					logger.Info("Schema up to date")
					return nil
				}
				logger.Info("Migrations applied", "versions", applied)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// collect command
// --------------------------------------------------------------------------

func collectCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle",
		Long: "Fetches listings from SCRAPE_FEED_URL (or --file), updates tickets and " +
			"schedules notifications. The cycle is recorded in collection_logs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				source, err := sourceFor(cfg, file)
				if err != nil {
					return err
				}
				collector := collect.New(collect.Config{
					Source:    source,
					Tickets:   ticket.NewStore(pool.Pool),
					Scheduler: notifications.NewQueue(pool.Pool),
					Health:    health.NewStore(pool.Pool),
					Clock:     clock.NewSystem(),
					Club:      cfg.ClubName,
					Logger:    logger,
				})

				res, err := collector.Run(ctx)
				if err != nil {
					return err
				}
				for _, e := range res.Errors {
					logger.Error("ticket error", "error", e)
				}
				for _, e := range res.SchedulingErrors {
					logger.Error("scheduling error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Read listings from a JSON file instead of the feed")
	return cmd
}

func sourceFor(cfg *config.Config, file string) (scrape.Source, error) {
	if file != "" {
		body, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read listings: %w", err)
		}
		items, err := scrape.Decode(body)
		if err != nil {
			return nil, err
		}
		return scrape.StaticSource(items), nil
	}
	if cfg.ScrapeFeedURL == "" {
		return nil, fmt.Errorf("SCRAPE_FEED_URL or --file is required")
	}
	return scrape.NewFeedClient(cfg.ScrapeFeedURL, cfg.ScrapeRequestsPerMinute, logger), nil
}

// --------------------------------------------------------------------------
// notify command
// --------------------------------------------------------------------------

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send notifications",
	}
	cmd.AddCommand(notifySendCmd())
	cmd.AddCommand(notifyPendingCmd())
	return cmd
}

func notifySendCmd() *cobra.Command {
	var ticketID, typ string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a ticket's pending notification now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				d := newDispatcher(cfg, pool)
				if err := d.Dispatch(ctx, ticketID, notifications.Type(typ)); err != nil {
					return err
				}
				logger.Info("Notification dispatched", "ticket_id", ticketID, "notification_type", typ)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ticketID, "ticket", "", "Ticket ID")
	cmd.Flags().StringVar(&typ, "type", string(notifications.DayBefore), "day_before, hour_before or minutes_before")
	_ = cmd.MarkFlagRequired("ticket")
	return cmd
}

func notifyPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Send every due pending notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				start := time.Now()
				res, err := newDispatcher(cfg, pool).ProcessPending(ctx)
				if err != nil {
					return err
				}
				logger.Info("Pending notifications processed",
					"processed", res.Processed, "failed", res.Failed,
					"duration", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
}

func newDispatcher(cfg *config.Config, pool *db.Pool) *notifications.Dispatcher {
	sender := notifications.NewSender(cfg.WebhookURLs, cfg.WebhookRequestsPerMinute, logger)
	return notifications.NewDispatcher(
		ticket.NewStore(pool.Pool), notifications.NewQueue(pool.Pool), sender, clock.NewSystem(), logger)
}

// --------------------------------------------------------------------------
// timings command
// --------------------------------------------------------------------------

func timingsCmd() *cobra.Command {
	var text, ref string
	cmd := &cobra.Command{
		Use:   "timings",
		Short: "Parse sale text and print the resulting window and notification times",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if ref != "" {
				t, err := time.ParseInLocation("2006-01-02T15:04", ref, sale.Location)
				if err != nil {
					return fmt.Errorf("parse --ref: %w", err)
				}
				now = t
			}

			p, err := sale.ParsePeriod(text, now)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reference  %s\n", now.In(sale.Location).Format(time.RFC3339))
			fmt.Fprintf(out, "start      %s\n", formatOptional(p.Start))
			fmt.Fprintf(out, "end        %s\n", formatOptional(p.End))
			fmt.Fprintf(out, "status     %s\n", p.Status)
			for _, tm := range notifications.CalculateTimes(p.Start, now) {
				fmt.Fprintf(out, "%-15s%s\n", tm.Type, tm.ScheduledAt.In(sale.Location).Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "sale", "", `Sale text, e.g. "08/15(金)10:00〜"`)
	cmd.Flags().StringVar(&ref, "ref", "", "Reference time in Japan time, 2006-01-02T15:04 (default now)")
	_ = cmd.MarkFlagRequired("sale")
	return cmd
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(sale.Location).Format(time.RFC3339)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// withDB handles the common config + pool lifecycle.
func withDB(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
