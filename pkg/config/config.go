package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "POSTCRAWLER_"

// Config holds all configuration options for the crawl pipeline
type Config struct {
	// Target platform surfaces
	Platform PlatformConfig `yaml:"platform" json:"platform"`

	// Session material and login behaviour
	Session SessionConfig `yaml:"session" json:"session"`

	// Headless browser settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Page navigation retry policy
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`

	// Post extraction settings
	Extract ExtractConfig `yaml:"extract" json:"extract"`

	// Run pacing
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Backing record store
	Store StoreConfig `yaml:"store" json:"store"`

	// Periodic trigger
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// On-demand HTTP front end
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PlatformConfig describes the URLs of the session-gated platform
type PlatformConfig struct {
	BaseURL               string   `yaml:"base_url" json:"base_url"`
	LandingPath           string   `yaml:"landing_path" json:"landing_path"`
	LoginPath             string   `yaml:"login_path" json:"login_path"`
	SessionCookie         string   `yaml:"session_cookie" json:"session_cookie"`
	ChallengePatterns     []string `yaml:"challenge_patterns" json:"challenge_patterns"`
	LoginPatterns         []string `yaml:"login_patterns" json:"login_patterns"`
	AuthenticatedPatterns []string `yaml:"authenticated_patterns" json:"authenticated_patterns"`
}

// SessionConfig holds session material and login pacing
type SessionConfig struct {
	Account        string        `yaml:"account" json:"account"`
	Cookies        string        `yaml:"cookies" json:"-"`
	CookiesFile    string        `yaml:"cookies_file" json:"cookies_file"`
	Identifier     string        `yaml:"identifier" json:"identifier"`
	Secret         string        `yaml:"secret" json:"-"`
	Passphrase     string        `yaml:"passphrase" json:"-"`
	SettleDelay    time.Duration `yaml:"settle_delay" json:"settle_delay"`
	ThinkTime      time.Duration `yaml:"think_time" json:"think_time"`
	LoginTimeout   time.Duration `yaml:"login_timeout" json:"login_timeout"`
	ExpiryWarnDays int           `yaml:"expiry_warn_days" json:"expiry_warn_days"`
}

// BrowserConfig holds headless browser settings
type BrowserConfig struct {
	Headless     bool   `yaml:"headless" json:"headless"`
	ExecPath     string `yaml:"exec_path" json:"exec_path"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`
	WindowWidth  int    `yaml:"window_width" json:"window_width"`
	WindowHeight int    `yaml:"window_height" json:"window_height"`
}

// NavigationConfig holds the retry policy for page loads
type NavigationConfig struct {
	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	BaseBackoff time.Duration `yaml:"base_backoff" json:"base_backoff"`
}

// ExtractConfig holds post extraction settings
type ExtractConfig struct {
	MaxPosts         int           `yaml:"max_posts" json:"max_posts"`
	ProfileScrolls   int           `yaml:"profile_scrolls" json:"profile_scrolls"`
	CompanyScrolls   int           `yaml:"company_scrolls" json:"company_scrolls"`
	ScrollDelay      time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
	MinContentLength int           `yaml:"min_content_length" json:"min_content_length"`
	MaxContentLength int           `yaml:"max_content_length" json:"max_content_length"`
	SelectorsFile    string        `yaml:"selectors_file" json:"selectors_file"`
}

// CrawlConfig holds run pacing options
type CrawlConfig struct {
	InterSourceDelay    time.Duration `yaml:"inter_source_delay" json:"inter_source_delay"`
	WriteDelay          time.Duration `yaml:"write_delay" json:"write_delay"`
	PersistFreshCookies bool          `yaml:"persist_fresh_cookies" json:"persist_fresh_cookies"`
}

// StoreConfig selects and configures the record store
type StoreConfig struct {
	Driver        string         `yaml:"driver" json:"driver"`
	DSN           string         `yaml:"dsn" json:"-"`
	RunLogFile    string         `yaml:"run_log_file" json:"run_log_file"`
	Airtable      AirtableConfig `yaml:"airtable" json:"airtable"`
	OnDemandGroup string         `yaml:"on_demand_group" json:"on_demand_group"`
}

// AirtableConfig holds settings for the hosted table backend
type AirtableConfig struct {
	APIKey       string `yaml:"api_key" json:"-"`
	BaseID       string `yaml:"base_id" json:"base_id"`
	BaseURL      string `yaml:"base_url" json:"base_url"`
	SourcesTable string `yaml:"sources_table" json:"sources_table"`
	PostsTable   string `yaml:"posts_table" json:"posts_table"`
	RunsTable    string `yaml:"runs_table" json:"runs_table"`
}

// ScheduleConfig holds the periodic trigger settings
type ScheduleConfig struct {
	Interval   string `yaml:"interval" json:"interval"`
	RunOnStart bool   `yaml:"run_on_start" json:"run_on_start"`
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// ServerConfig holds settings for the on-demand HTTP front end
type ServerConfig struct {
	Address   string        `yaml:"address" json:"address"`
	APISecret string        `yaml:"api_secret" json:"-"`
	AcceptJWT bool          `yaml:"accept_jwt" json:"accept_jwt"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	// MaxURLs caps the URLs of one crawl request; zero derives it from
	// Timeout and the per-source cost, see OnDemandURLLimit
	MaxURLs int `yaml:"max_urls" json:"max_urls"`
}

// MaxOnDemandURLs is the hard ceiling on URLs per crawl request
const MaxOnDemandURLs = 50

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			BaseURL:       "https://www.linkedin.com",
			LandingPath:   "/feed/",
			LoginPath:     "/login",
			SessionCookie: "li_at",
			ChallengePatterns: []string{
				"/checkpoint/challenge",
				"/checkpoint/",
				"/challenge",
				"/authwall",
			},
			LoginPatterns: []string{
				"/login",
				"/uas/login",
				"/signup",
			},
			AuthenticatedPatterns: []string{
				"/feed",
				"/mynetwork",
				"/in/",
			},
		},
		Session: SessionConfig{
			Account:        "default",
			SettleDelay:    3 * time.Second,
			ThinkTime:      150 * time.Millisecond,
			LoginTimeout:   30 * time.Second,
			ExpiryWarnDays: 7,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			WindowWidth:  1366,
			WindowHeight: 900,
		},
		Navigation: NavigationConfig{
			MaxRetries:  3,
			Timeout:     30 * time.Second,
			BaseBackoff: 2 * time.Second,
		},
		Extract: ExtractConfig{
			MaxPosts:         10,
			ProfileScrolls:   6,
			CompanyScrolls:   10,
			ScrollDelay:      2 * time.Second,
			MinContentLength: 10,
			MaxContentLength: 1000,
		},
		Crawl: CrawlConfig{
			InterSourceDelay:    60 * time.Second,
			WriteDelay:          time.Second,
			PersistFreshCookies: true,
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			DSN:           "postcrawler.db",
			OnDemandGroup: "on-demand",
			Airtable: AirtableConfig{
				BaseURL:      "https://api.airtable.com/v0",
				SourcesTable: "Sources",
				PostsTable:   "Posts",
			},
		},
		Schedule: ScheduleConfig{
			Interval:   "@every 6h",
			RunOnStart: true,
			Timezone:   "UTC",
		},
		Server: ServerConfig{
			Address:   ":8080",
			AcceptJWT: true,
			Timeout:   15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	// Session material
	setString("ACCOUNT", &c.Session.Account)
	setString("COOKIES", &c.Session.Cookies)
	setString("COOKIES_FILE", &c.Session.CookiesFile)
	setString("IDENTIFIER", &c.Session.Identifier)
	setString("SECRET", &c.Session.Secret)
	setString("PASSPHRASE", &c.Session.Passphrase)

	setString("BASE_URL", &c.Platform.BaseURL)
	setBool("HEADLESS", &c.Browser.Headless)
	setString("CHROME_PATH", &c.Browser.ExecPath)
	setString("USER_AGENT", &c.Browser.UserAgent)

	setInt("MAX_RETRIES", &c.Navigation.MaxRetries)
	setDuration("NAV_TIMEOUT", &c.Navigation.Timeout)
	setDuration("BASE_BACKOFF", &c.Navigation.BaseBackoff)

	setInt("MAX_POSTS", &c.Extract.MaxPosts)
	setString("SELECTORS_FILE", &c.Extract.SelectorsFile)

	setDuration("INTER_SOURCE_DELAY", &c.Crawl.InterSourceDelay)
	setDuration("WRITE_DELAY", &c.Crawl.WriteDelay)

	// Store
	setString("STORE_DRIVER", &c.Store.Driver)
	setString("DATABASE_URL", &c.Store.DSN)
	setString("RUN_LOG_FILE", &c.Store.RunLogFile)
	setString("AIRTABLE_API_KEY", &c.Store.Airtable.APIKey)
	setString("AIRTABLE_BASE_ID", &c.Store.Airtable.BaseID)

	setString("SCHEDULE", &c.Schedule.Interval)
	setBool("RUN_ON_START", &c.Schedule.RunOnStart)

	setString("ADDRESS", &c.Server.Address)
	setString("API_SECRET", &c.Server.APISecret)
	setInt("MAX_URLS", &c.Server.MaxURLs)
	setDuration("SERVER_TIMEOUT", &c.Server.Timeout)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ResolveCookies reads the cookies file into Session.Cookies when no inline value was given
func (c *Config) ResolveCookies() error {
	if c.Session.Cookies != "" || c.Session.CookiesFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.Session.CookiesFile)
	if err != nil {
		return fmt.Errorf("failed to read cookies file: %w", err)
	}
	c.Session.Cookies = strings.TrimSpace(string(data))
	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".postcrawler.yaml",
		".postcrawler.yml",
		filepath.Join(home, ".config", "postcrawler", "config.yaml"),
		filepath.Join(home, ".config", "postcrawler", "config.yml"),
		filepath.Join(home, ".postcrawler.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Platform
	if u, err := url.Parse(c.Platform.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("platform base URL must be an absolute URL"))
	}
	if c.Platform.SessionCookie == "" {
		errs = append(errs, errors.New("platform session cookie name is required"))
	}
	if !strings.HasPrefix(c.Platform.LandingPath, "/") || !strings.HasPrefix(c.Platform.LoginPath, "/") {
		errs = append(errs, errors.New("landing and login paths must start with /"))
	}

	// Navigation
	if c.Navigation.MaxRetries <= 0 {
		errs = append(errs, errors.New("navigation max retries must be positive"))
	}
	if c.Navigation.Timeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Navigation.BaseBackoff < 0 {
		errs = append(errs, errors.New("navigation base backoff cannot be negative"))
	}

	// Extraction
	if c.Extract.MaxPosts <= 0 {
		errs = append(errs, errors.New("max posts must be positive"))
	}
	if c.Extract.ProfileScrolls < 0 || c.Extract.CompanyScrolls < 0 {
		errs = append(errs, errors.New("scroll counts cannot be negative"))
	}
	if c.Extract.MinContentLength < 0 || c.Extract.MaxContentLength <= c.Extract.MinContentLength {
		errs = append(errs, errors.New("max content length must exceed min content length"))
	}

	// Pacing
	if c.Crawl.InterSourceDelay < 0 || c.Crawl.WriteDelay < 0 {
		errs = append(errs, errors.New("crawl delays cannot be negative"))
	}

	if c.Server.MaxURLs < 0 || c.Server.MaxURLs > MaxOnDemandURLs {
		errs = append(errs, fmt.Errorf("server max_urls must be between 0 and %d", MaxOnDemandURLs))
	}

	// Store
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store DSN is required for driver %s", c.Store.Driver))
		}
	case "airtable":
		if c.Store.Airtable.APIKey == "" || c.Store.Airtable.BaseID == "" {
			errs = append(errs, errors.New("airtable API key and base ID are required"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown store driver: %s", c.Store.Driver))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// OnDemandURLLimit is how many URLs one crawl request may carry so that the
// whole run fits in server.timeout. Each source is charged the inter-source
// delay, a full organization scroll pass and one navigation timeout.
// An explicit server.max_urls lowers the result further.
func (c *Config) OnDemandURLLimit() int {
	limit := MaxOnDemandURLs
	if c.Server.MaxURLs > 0 && c.Server.MaxURLs < limit {
		limit = c.Server.MaxURLs
	}

	perSource := c.Crawl.InterSourceDelay +
		time.Duration(c.Extract.CompanyScrolls)*c.Extract.ScrollDelay +
		c.Navigation.Timeout
	if c.Server.Timeout <= 0 || perSource <= 0 {
		return limit
	}
	fit := int(c.Server.Timeout / perSource)
	if fit < 1 {
		fit = 1
	}
	if fit < limit {
		limit = fit
	}
	return limit
}

// HasCookies reports whether cookie material was supplied
func (c *Config) HasCookies() bool {
	return strings.TrimSpace(c.Session.Cookies) != ""
}

// HasCredentials reports whether an identifier and secret pair was supplied
func (c *Config) HasCredentials() bool {
	return c.Session.Identifier != "" && c.Session.Secret != ""
}

// PlatformURL joins a path onto the platform base URL
func (c *Config) PlatformURL(path string) string {
	return strings.TrimRight(c.Platform.BaseURL, "/") + path
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
	if maxPosts, ok := flags["max-posts"].(int); ok && maxPosts > 0 {
		c.Extract.MaxPosts = maxPosts
	}
	if delay, ok := flags["inter-source-delay"].(time.Duration); ok && delay > 0 {
		c.Crawl.InterSourceDelay = delay
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if driver, ok := flags["store"].(string); ok && driver != "" {
		c.Store.Driver = driver
	}
	if dsn, ok := flags["dsn"].(string); ok && dsn != "" {
		c.Store.DSN = dsn
	}
	if addr, ok := flags["address"].(string); ok && addr != "" {
		c.Server.Address = addr
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Session.Account = account
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".postcrawler.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.ResolveCookies(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
