package auth

import (
	"strings"
	"time"

	"postcrawler/pkg/config"
)

// ConfigStore exposes session material supplied through configuration.
// It is read-only.
type ConfigStore struct {
	session config.SessionConfig
	loaded  time.Time
}

// NewConfigStore creates a store over the session configuration
func NewConfigStore(session config.SessionConfig) *ConfigStore {
	return &ConfigStore{session: session, loaded: time.Now()}
}

func (c *ConfigStore) name() string {
	if c.session.Account != "" {
		return c.session.Account
	}
	return "default"
}

func (c *ConfigStore) account() (*Account, bool) {
	acc := &Account{
		Name:         c.name(),
		Cookies:      strings.TrimSpace(c.session.Cookies),
		Identifier:   c.session.Identifier,
		Secret:       c.session.Secret,
		LastModified: c.loaded,
	}
	return acc, acc.HasCookies() || acc.HasCredentials()
}

// Store is not supported
func (c *ConfigStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the configured material; an empty name matches it too
func (c *ConfigStore) Retrieve(name string) (*Account, error) {
	acc, ok := c.account()
	if !ok || (name != "" && name != acc.Name) {
		return nil, ErrCredentialsNotFound
	}
	return acc, nil
}

// List returns the configured account if any material is set
func (c *ConfigStore) List() ([]*Account, error) {
	acc, ok := c.account()
	if !ok {
		return []*Account{}, nil
	}
	return []*Account{acc}, nil
}

// Delete is not supported
func (c *ConfigStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if configured material exists under name
func (c *ConfigStore) Exists(name string) bool {
	_, err := c.Retrieve(name)
	return err == nil
}
