package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"postcrawler/pkg/auth"
	"postcrawler/pkg/config"
	"postcrawler/pkg/session"
	"postcrawler/pkg/ui"
)

var (
	// Auth command flags
	authCookiesFile string
	authIdentifier  string
	authQuickGuide  bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored session material",
	Long: `Manage session material stored per account.

Material is stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - The session section of the config file (read-only)

Never share your cookies, secrets or config files!`,
}

// saveCmd represents the auth save command
var saveCmd = &cobra.Command{
	Use:   "save [account]",
	Short: "Store cookies and/or an identifier and secret for an account",
	Long: `Store session material for an account in the system keychain or encrypted file.

Cookies are read from --cookies-file, or pasted as a single line of JSON.
The identifier and secret are optional and only used when the cookies stop working;
the secret is read without echo.`,
	Example: `  # Save exported cookies for the default account
  postcrawler auth save --cookies-file cookies.json

  # Save a login fallback for a named account
  postcrawler auth save work --identifier me@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthSave,
}

// listAccountsCmd represents the auth list command
var listAccountsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

// deleteCmd represents the auth delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <account>",
	Short: "Remove stored material for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to export session cookies",
	Args:  cobra.NoArgs,
	RunE:  runAuthGuide,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(saveCmd)
	authCmd.AddCommand(listAccountsCmd)
	authCmd.AddCommand(deleteCmd)
	authCmd.AddCommand(guideCmd)

	saveCmd.Flags().StringVar(&authCookiesFile, "cookies-file", "", "JSON cookie export to store")
	saveCmd.Flags().StringVar(&authIdentifier, "identifier", "", "login identifier for the credential fallback")
	guideCmd.Flags().BoolVar(&authQuickGuide, "quick", false, "print the condensed guide")
}

func authManager(cmd *cobra.Command) (*config.Config, *auth.Manager, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	manager, err := newCredentialManager(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	return cfg, manager, nil
}

func runAuthSave(cmd *cobra.Command, args []string) error {
	cfg, manager, err := authManager(cmd)
	if err != nil {
		return err
	}

	name := cfg.Session.Account
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		return fmt.Errorf("account name is required")
	}

	reader := bufio.NewReader(os.Stdin)
	account := &auth.Account{Name: name, Identifier: authIdentifier}

	if existing, err := manager.Retrieve(name); err == nil {
		fmt.Printf("Account '%s' already exists. Update it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
		// keep what is not being replaced
		account.Cookies = existing.Cookies
		if account.Identifier == "" {
			account.Identifier = existing.Identifier
		}
		account.Secret = existing.Secret
	}

	cookies, err := readCookies(reader)
	if err != nil {
		return err
	}
	if cookies != "" {
		set, err := session.LoadCookies(cookies)
		if err != nil {
			return err
		}
		if _, ok := set.Find(cfg.Platform.SessionCookie); !ok {
			ui.PrintWarning("Cookie export has no session cookie", cfg.Platform.SessionCookie)
		}
		ui.PrintInfo("Session expiry", session.PredictExpiry(set, cfg.Platform.SessionCookie, time.Now()).String())
		account.Cookies = cookies
	}

	if account.Identifier != "" {
		fmt.Print("Secret (leave empty to keep the current one): ")
		secret, err := readSecret(reader)
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		if secret != "" {
			account.Secret = secret
		}
	}

	if err := manager.Store(account); err != nil {
		return err
	}

	sanitized := auth.SanitizeAccount(account)
	ui.PrintSuccess("Account saved: " + name)
	if sanitized.Cookies != "" {
		ui.PrintInfo("Cookies", sanitized.Cookies)
	}
	if sanitized.Identifier != "" {
		ui.PrintInfo("Identifier", sanitized.Identifier)
	}
	if name != cfg.Session.Account {
		fmt.Printf("\nUse it with: postcrawler run --account %s\n", name)
	}
	return nil
}

// readCookies reads the --cookies-file, or one pasted line of JSON
func readCookies(reader *bufio.Reader) (string, error) {
	if authCookiesFile != "" {
		data, err := os.ReadFile(authCookiesFile)
		if err != nil {
			return "", fmt.Errorf("failed to read cookies file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	fmt.Print("Cookie JSON (single line, leave empty to skip): ")
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads a secret from stdin without echoing
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return string(secret), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	_, manager, err := authManager(cmd)
	if err != nil {
		return err
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'postcrawler auth save' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("\n%d. %s\n", i+1, sanitized.Name)
		if sanitized.Cookies != "" {
			fmt.Printf("   Cookies: %s\n", sanitized.Cookies)
		}
		if sanitized.Identifier != "" {
			fmt.Printf("   Identifier: %s\n", sanitized.Identifier)
			fmt.Printf("   Secret: %s\n", sanitized.Secret)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	_, manager, err := authManager(cmd)
	if err != nil {
		return err
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + args[0])
	return nil
}

func runAuthGuide(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if authQuickGuide {
		auth.WriteQuickExportGuide(os.Stdout, cfg.Platform.SessionCookie)
		return nil
	}
	auth.WriteCookieExportGuide(os.Stdout, cfg.Platform.BaseURL, cfg.Platform.SessionCookie)
	return nil
}
