package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"postcrawler/pkg/crawler"
	"postcrawler/pkg/models"
	"postcrawler/pkg/ui"
)

var (
	// Run command flags
	runURLs             []string
	runMaxPosts         int
	runHeadless         bool
	runInterSourceDelay time.Duration
	runJSON             bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl every Active source once",
	Long: `Crawl every Active source from the record store once and save unseen posts.

One browser session is established for the whole run. A source that fails is
recorded in the run summary and the run moves on to the next one. Sources are
spaced by crawl.inter_source_delay (60s by default).

With --url the given pages are crawled instead of the source list.`,
	Example: `  # Crawl all Active sources
  postcrawler run

  # Crawl two pages on demand, at most 5 posts each
  postcrawler run --url https://www.linkedin.com/in/someone --url https://www.linkedin.com/company/acme --max-posts 5

  # Print the run summary as JSON
  postcrawler run --json`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVar(&runURLs, "url", nil, "crawl this page instead of the source list (repeatable)")
	runCmd.Flags().IntVar(&runMaxPosts, "max-posts", 10, "maximum posts saved per source")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "run the browser headless")
	runCmd.Flags().DurationVar(&runInterSourceDelay, "inter-source-delay", time.Minute, "pause between sources")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run summary as JSON")
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
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

	if !runJSON {
		ui.PrintBanner()
	}

	var summary *models.RunSummary
	if len(runURLs) > 0 {
		summary, err = a.crawler.CrawlURLs(ctx, runURLs, cfg.Extract.MaxPosts)
	} else {
		summary, err = a.crawler.Run(ctx, crawler.TriggerManual)
	}
	if errors.Is(err, crawler.ErrBusy) {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(summary); encErr != nil {
			return encErr
		}
	} else {
		ui.Print(ui.RenderRunSummary(summary))
	}

	if err != nil {
		return err
	}
	if summary.SourcesFailed > 0 {
		ui.PrintWarning("Some sources failed", summary.SourcesFailed)
	} else {
		ui.PrintSuccess("Run completed")
	}
	return nil
}
