package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"postcrawler/pkg/config"
	"postcrawler/pkg/crawler"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/scheduler"
	"postcrawler/pkg/ui"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Crawl Active sources periodically",
	Long: `Run the crawl periodically at schedule.interval until interrupted.

The interval is either a duration ("6h", "@every 6h") or a five-field cron
expression evaluated in schedule.timezone. A tick that arrives while a run is
still in progress is skipped.`,
	Example: `  # Use the configured interval
  postcrawler schedule

  # Every morning at 07:30
  POSTCRAWLER_SCHEDULE="30 7 * * *" postcrawler schedule`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

// scheduledJob runs one crawl per tick
func scheduledJob(c *crawler.Crawler, log logger.Logger) scheduler.Job {
	return func(ctx context.Context) {
		summary, err := c.Run(ctx, crawler.TriggerSchedule)
		switch {
		case errors.Is(err, crawler.ErrBusy):
			log.Warn("Scheduled run skipped, another run is in progress")
		case err != nil:
			log.WithError(err).Error("Scheduled run failed")
		default:
			log.InfoWithFields("Scheduled run finished", map[string]interface{}{
				"run_id":    summary.RunID,
				"posts_new": summary.PostsNewTotal,
			})
		}
	}
}

func newScheduler(cfg *config.Config, c *crawler.Crawler, log logger.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(cfg.Schedule, scheduledJob(c, log), log)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(cfg, a.crawler, log)
	if err != nil {
		return err
	}

	ui.PrintBanner()
	ui.PrintInfo("Schedule", cfg.Schedule.Interval)
	return sched.Run(ctx)
}
