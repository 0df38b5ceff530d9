package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"postcrawler/pkg/config"
	"postcrawler/pkg/logger"
)

// Account is the session material kept for one platform account
type Account struct {
	Name         string    `json:"name"`
	Cookies      string    `json:"cookies,omitempty"`
	Identifier   string    `json:"identifier,omitempty"`
	Secret       string    `json:"secret,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// HasCookies reports whether serialized cookies are present
func (a *Account) HasCookies() bool {
	return strings.TrimSpace(a.Cookies) != ""
}

// HasCredentials reports whether an identifier and secret pair is present
func (a *Account) HasCredentials() bool {
	return a.Identifier != "" && a.Secret != ""
}

// CredentialStore is the interface for storing and retrieving session material
type CredentialStore interface {
	// Store saves material for an account
	Store(account *Account) error

	// Retrieve gets the material of one account
	Retrieve(name string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes an account
	Delete(name string) error

	// Exists checks if an account is stored
	Exists(name string) bool
}

// Options configures NewManager
type Options struct {
	// Dir holds the encrypted file; empty selects the platform config directory
	Dir string
	// Passphrase encrypts the file store; empty generates one kept next to the file
	Passphrase string
	// DisableKeyring skips the system keychain
	DisableKeyring bool
	// Session is consulted last, read-only
	Session *config.SessionConfig
	Logger  logger.Logger
}

// Manager handles session material storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
	logger logger.Logger
}

// NewManager creates a manager: keychain, then encrypted file, then configuration
func NewManager(opts Options) (*Manager, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var stores []CredentialStore

	if !opts.DisableKeyring {
		if keyringStore, err := NewKeyringStore(); err == nil {
			stores = append(stores, keyringStore)
		} else {
			log.WithError(err).Debug("System keychain unavailable")
		}
	}

	dir := opts.Dir
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), opts.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	if opts.Session != nil {
		stores = append(stores, NewConfigStore(*opts.Session))
	}

	return &Manager{stores: stores, logger: log}, nil
}

// Store saves material using the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return errors.New("account name is required")
	}
	if !account.HasCookies() && !account.HasCredentials() {
		return errors.New("cookies or an identifier and secret are required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		m.logger.WithError(err).Debug("Credential store rejected account")
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// UpdateCookies replaces the cookies of an account, keeping its other material
func (m *Manager) UpdateCookies(name, cookies string) error {
	account, err := m.Retrieve(name)
	if err != nil {
		account = &Account{Name: name}
	}
	account.Cookies = cookies
	return m.Store(account)
}

// Retrieve gets material from the first store that has it
func (m *Manager) Retrieve(name string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(name); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault gets the named account, or the most recently modified one when name is empty
func (m *Manager) RetrieveDefault(name string) (*Account, error) {
	if name != "" {
		return m.Retrieve(name)
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}
	return nil, ErrCredentialsNotFound
}

// List returns every stored account, newest first; the most recent copy wins
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := accountMap[account.Name]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Name] = account
			}
		}
	}

	result := make([]*Account, 0, len(accountMap))
	for _, account := range accountMap {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastModified.After(result[j].LastModified)
	})
	return result, nil
}

// Delete removes an account from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// ConfigDir returns the platform configuration directory, creating it
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "postcrawler")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "postcrawler")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "postcrawler")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "postcrawler")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount returns a copy with secrets masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	out := &Account{
		Name:         account.Name,
		Identifier:   account.Identifier,
		LastModified: account.LastModified,
	}
	if account.HasCookies() {
		out.Cookies = MaskString(account.Cookies)
	}
	if account.Secret != "" {
		out.Secret = MaskString(account.Secret)
	}
	return out
}

// MaskString masks all but the first and last 4 characters
func MaskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
