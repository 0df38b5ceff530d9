package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"postcrawler/pkg/session"
	"postcrawler/pkg/ui"
)

var cookiesCheckFile string

// cookiesCmd represents the cookies command
var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Inspect session cookies",
}

// checkCmd represents the cookies check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate cookie material and predict when the session expires",
	Long: `Validate the cookie material the crawler would use and predict the expiry of
the primary session cookie. Exits non-zero when the cookies are malformed or expired.`,
	Example: `  # Check the resolved session material
  postcrawler cookies check

  # Check an export before saving it
  postcrawler cookies check --file cookies.json`,
	Args: cobra.NoArgs,
	RunE: runCookiesCheck,
}

func init() {
	rootCmd.AddCommand(cookiesCmd)
	cookiesCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&cookiesCheckFile, "file", "", "cookie export to check instead of the resolved material")
}

func runCookiesCheck(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var raw string
	if cookiesCheckFile != "" {
		data, err := os.ReadFile(cookiesCheckFile)
		if err != nil {
			return fmt.Errorf("failed to read cookies file: %w", err)
		}
		raw = string(data)
	} else {
		creds, err := newCredentialManager(cfg, log)
		if err != nil {
			return err
		}
		material, account := resolveMaterial(cfg, creds, log)
		if !material.HasCookies() {
			return fmt.Errorf("no cookie material for account %q", account)
		}
		ui.PrintInfo("Account", account)
		raw = material.Cookies
	}

	set, err := session.LoadCookies(raw)
	if err != nil {
		return err
	}
	ui.PrintInfo("Cookies", fmt.Sprintf("%d (%s)", len(set), strings.Join(set.Names(), ", ")))

	expiry := session.PredictExpiry(set, cfg.Platform.SessionCookie, time.Now())
	ui.PrintInfo("Session cookie", cfg.Platform.SessionCookie)
	ui.PrintInfo("Expiry", expiry.String())

	switch {
	case expiry.Expired:
		return fmt.Errorf("session cookie %s has expired; export fresh cookies", cfg.Platform.SessionCookie)
	case expiry.Assumed:
		ui.PrintWarning("Session cookie not found in the export; the credential fallback will be needed")
	case expiry.DaysLeft != nil && *expiry.DaysLeft < cfg.Session.ExpiryWarnDays:
		ui.PrintWarning("Session expires soon", expiry.String())
	default:
		ui.PrintSuccess("Cookies look usable")
	}
	return nil
}
