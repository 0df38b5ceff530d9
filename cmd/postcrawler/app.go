package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"postcrawler/pkg/auth"
	"postcrawler/pkg/browser"
	"postcrawler/pkg/config"
	"postcrawler/pkg/crawler"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/runlog"
	"postcrawler/pkg/selectors"
	"postcrawler/pkg/session"
	"postcrawler/pkg/store"
)

// app holds the wired pipeline shared by the run, schedule and serve commands
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   store.Store
	history store.RunLog
	creds   *auth.Manager
	crawler *crawler.Crawler
}

// commandFlags collects the flags the user set on cmd into the map config.Load merges
func commandFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("log-level") {
		flags["log-level"] = logLevel
	}
	if verbose {
		flags["log-level"] = "debug"
	}
	if changed("account") {
		flags["account"] = accountName
	}
	if changed("store") {
		flags["store"] = storeDriver
	}
	if changed("dsn") {
		flags["dsn"] = storeDSN
	}
	if changed("max-posts") {
		flags["max-posts"] = runMaxPosts
	}
	if changed("headless") {
		flags["headless"] = runHeadless
	}
	if changed("inter-source-delay") {
		flags["inter-source-delay"] = runInterSourceDelay
	}
	if changed("address") {
		flags["address"] = serveAddress
	}
	return flags
}

// loadConfig loads configuration and initialises the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}

func newCredentialManager(cfg *config.Config, log logger.Logger) (*auth.Manager, error) {
	return auth.NewManager(auth.Options{
		Passphrase: cfg.Session.Passphrase,
		Session:    &cfg.Session,
		Logger:     log,
	})
}

// resolveMaterial prefers explicit configuration, then the stored account
func resolveMaterial(cfg *config.Config, creds *auth.Manager, log logger.Logger) (session.Material, string) {
	if cfg.HasCookies() || cfg.HasCredentials() {
		return session.Material{
			Cookies:    cfg.Session.Cookies,
			Identifier: cfg.Session.Identifier,
			Secret:     cfg.Session.Secret,
		}, cfg.Session.Account
	}

	account, err := creds.RetrieveDefault(cfg.Session.Account)
	if err != nil {
		log.WithError(err).WarnWithFields("No session material found", map[string]interface{}{
			"account": cfg.Session.Account,
		})
		return session.Material{}, cfg.Session.Account
	}

	log.WithField("account", account.Name).Info("Using stored session material")
	return session.Material{
		Cookies:    account.Cookies,
		Identifier: account.Identifier,
		Secret:     account.Secret,
	}, account.Name
}

// freshCookieWriter stores cookies from a credential login back under account
func freshCookieWriter(creds *auth.Manager, account string) crawler.FreshCookiesFunc {
	return func(ctx context.Context, cookies session.CookieSet) error {
		raw, err := cookies.Marshal()
		if err != nil {
			return fmt.Errorf("encode cookies: %w", err)
		}
		return creds.UpdateCookies(account, raw)
	}
}

// newApp opens the store and builds the crawler
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	st, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: st, history: st}
	runLogs := []store.RunLog{st}
	if cfg.Store.RunLogFile != "" {
		fileLog, err := runlog.New(cfg.Store.RunLogFile, log)
		if err != nil {
			st.Close()
			return nil, err
		}
		runLogs = append(runLogs, fileLog)
	}

	sels, err := selectors.Load(cfg.Extract.SelectorsFile)
	if err != nil {
		st.Close()
		return nil, err
	}

	creds, err := newCredentialManager(cfg, log)
	if err != nil {
		st.Close()
		return nil, err
	}
	a.creds = creds
	material, account := resolveMaterial(cfg, creds, log)

	a.crawler, err = crawler.New(crawler.Deps{
		Config:         cfg,
		Sources:        st,
		Posts:          st,
		RunLogs:        runLogs,
		Launcher:       browser.NewChromeLauncher(cfg.Browser, cfg.Navigation.Timeout, log),
		Material:       material,
		Selectors:      sels,
		Logger:         log,
		OnFreshCookies: freshCookieWriter(creds, account),
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close store")
	}
}
