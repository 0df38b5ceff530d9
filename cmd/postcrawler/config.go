package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"postcrawler/pkg/auth"
	"postcrawler/pkg/config"
	"postcrawler/pkg/scheduler"
	"postcrawler/pkg/selectors"
	"postcrawler/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage postcrawler configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - POSTCRAWLER_* environment variables
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the defaults",
	Long: `Create a configuration file holding every option at its default value.

The file is written to '.postcrawler.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after all sources are merged.

Cookies, secrets, API keys and DSNs are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the merged configuration.

This command checks:
  - YAML syntax and value ranges
  - The store driver settings
  - The schedule expression
  - The selectors file
  - Session material availability`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".postcrawler.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	abs, _ := filepath.Abs(configPath)
	ui.PrintSuccess("Configuration written: " + abs)
	fmt.Println("\nNext steps:")
	fmt.Println("  postcrawler auth guide          # export session cookies")
	fmt.Println("  postcrawler auth save --cookies-file cookies.json")
	fmt.Println("  postcrawler sources add <profile-url>")
	fmt.Println("  postcrawler run")
	return nil
}

// maskedConfig returns a copy of cfg that is safe to print
func maskedConfig(cfg *config.Config) *config.Config {
	c := *cfg
	mask := func(s *string) {
		if *s != "" {
			*s = auth.MaskString(*s)
		}
	}
	mask(&c.Session.Cookies)
	mask(&c.Session.Secret)
	mask(&c.Session.Passphrase)
	mask(&c.Store.Airtable.APIKey)
	mask(&c.Server.APISecret)
	if c.Store.Driver == "postgres" {
		mask(&c.Store.DSN)
	}
	return &c
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(maskedConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return err
	}

	var problems, warnings []string

	if _, err := scheduler.NormalizeSpec(cfg.Schedule.Interval); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := selectors.Load(cfg.Extract.SelectorsFile); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if !cfg.HasCookies() && !cfg.HasCredentials() {
		warnings = append(warnings, "no session material in the configuration; the stored account will be used")
	}
	if cfg.Server.APISecret == "" {
		warnings = append(warnings, "server.api_secret is empty; 'serve' will refuse to start")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration error(s)", len(problems))
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Platform: %s\n", cfg.Platform.BaseURL)
	fmt.Printf("  Store: %s\n", cfg.Store.Driver)
	fmt.Printf("  Max posts per source: %d\n", cfg.Extract.MaxPosts)
	fmt.Printf("  Inter-source delay: %s\n", cfg.Crawl.InterSourceDelay)
	fmt.Printf("  Schedule: %s\n", cfg.Schedule.Interval)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
