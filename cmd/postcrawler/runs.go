package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"postcrawler/pkg/runlog"
	"postcrawler/pkg/store"
	"postcrawler/pkg/ui"
)

var (
	runsLimit int
	runsFile  bool
	runsJSON  bool
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent run summaries",
	Example: `  postcrawler runs --limit 5
  postcrawler runs --file --json`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
	runsCmd.Flags().BoolVar(&runsFile, "file", false, "read the run log file instead of the store")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "print as JSON")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var history store.RunLog
	if runsFile {
		fileLog, err := runlog.New(cfg.Store.RunLogFile, log)
		if err != nil {
			return err
		}
		history = fileLog
	} else {
		st, err := store.Open(cmd.Context(), cfg.Store, log)
		if err != nil {
			return err
		}
		defer st.Close()
		history = st
	}

	runs, err := history.RecentRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	if runsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	ui.Print(ui.RenderRuns(runs))
	return nil
}
