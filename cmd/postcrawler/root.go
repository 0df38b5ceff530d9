package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"postcrawler/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	accountName string
	storeDriver string
	storeDSN    string
	noColor     bool
	quiet       bool
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "postcrawler",
	Short: "Crawl recent posts from session-gated profile pages into a record store",
	Long: `postcrawler signs into a session-gated social platform with a headless browser,
visits every Active source, extracts recent posts and saves the ones not seen before.

Session material is resolved in this order:
  - cookies or an identifier/secret pair from the config file or POSTCRAWLER_* variables
  - the account stored with 'postcrawler auth save' (system keychain or encrypted file)

A run is triggered manually ('run'), periodically ('schedule'), or over HTTP ('serve').`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor || os.Getenv("NO_COLOR") != "")
		ui.SetQuietMode(quiet)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.postcrawler.yaml or ~/.config/postcrawler/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "stored account holding the session material")
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "record store driver (sqlite, postgres, airtable, memory)")
	rootCmd.PersistentFlags().StringVar(&storeDSN, "dsn", "", "record store DSN (sqlite path or postgres URL)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.SetVersionTemplate(`postcrawler {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
