// Package credential stores secrets in the system keyring so that the
// config file never carries a password or API key.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailmanager"

// Well-known credential keys.
const (
	// KeyIMAPPassword holds the mailbox password or app password.
	KeyIMAPPassword = "imap_password"

	// KeyAPIKey holds the cloud provider API key.
	KeyAPIKey = "api_key"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailmanager/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailmanager-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Has reports whether a credential is present without returning its
// value.
func Has(key string) bool {
	ring, err := openKeyring()
	if err != nil {
		return false
	}

	_, err = ring.Get(key)
	return err == nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
