package security

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeychainService is the service name used for storing passwords in the
// OS keychain.
const KeychainService = "nettle"

// Keychain provides secure credential storage using the OS keychain.
type Keychain struct{}

// NewKeychain creates a new keychain instance.
func NewKeychain() *Keychain {
	return &Keychain{}
}

// StorePassword stores a password under the given account name. An empty
// password deletes the entry instead.
func (k *Keychain) StorePassword(account, password string) error {
	if password == "" {
		return k.DeletePassword(account)
	}
	if err := keyring.Set(KeychainService, account, password); err != nil {
		return fmt.Errorf("failed to store password in keychain: %w", err)
	}
	return nil
}

// GetPassword retrieves the password for the given account name. A missing
// entry is not an error; it returns an empty string.
func (k *Keychain) GetPassword(account string) (string, error) {
	password, err := keyring.Get(KeychainService, account)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get password from keychain: %w", err)
	}
	return password, nil
}

// DeletePassword removes the password for the given account name.
func (k *Keychain) DeletePassword(account string) error {
	err := keyring.Delete(KeychainService, account)
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete password from keychain: %w", err)
	}
	return nil
}
