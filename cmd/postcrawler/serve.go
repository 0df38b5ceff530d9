package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"postcrawler/internal/server"
	"postcrawler/pkg/scheduler"
	"postcrawler/pkg/ui"
)

var (
	// Serve command flags
	serveAddress  string
	serveSchedule bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve on-demand crawls over HTTP",
	Long: `Start the HTTP front end for on-demand crawls.

  POST /crawl   {"urls": ["..."], "max_posts": 10}   crawl the given pages
  GET  /runs    ?limit=20                             recent run summaries
  GET  /health                                        liveness, no auth

POST /crawl and GET /runs require "Authorization: Bearer <server.api_secret>"
or an HS256 token signed with that secret when server.accept_jwt is set.
Only one crawl runs at a time; a second request gets 409.

With --schedule the periodic crawl runs in the same process.`,
	Example: `  POSTCRAWLER_API_SECRET=change-me postcrawler serve --address :8080

  curl -H "Authorization: Bearer change-me" -d '{"urls":["https://www.linkedin.com/in/someone"]}' localhost:8080/crawl`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddress, "address", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&serveSchedule, "schedule", false, "also run the periodic crawl")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	cfg.Server.MaxURLs = cfg.OnDemandURLLimit()
	log.InfoWithFields("On-demand request limits", map[string]interface{}{
		"max_urls": cfg.Server.MaxURLs,
		"timeout":  cfg.Server.Timeout,
	})

	srv, err := server.New(cfg.Server, a.crawler, a.history, log)
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if serveSchedule {
		if sched, err = newScheduler(cfg, a.crawler, log); err != nil {
			return err
		}
	}

	ui.PrintBanner()
	ui.PrintInfo("Listening on", cfg.Server.Address)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if sched != nil {
		ui.PrintInfo("Schedule", cfg.Schedule.Interval)
		g.Go(func() error { return sched.Run(gctx) })
	}

	return g.Wait()
}
