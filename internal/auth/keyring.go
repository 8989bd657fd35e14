package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service name for the OS credential store.
	keyringService = "compass"
	// Key for the local account's passphrase.
	keyringPassphraseKey = "local_passphrase"
)

// SecretStore keeps the local passphrase between runs.
type SecretStore interface {
	Passphrase() (string, error)
	SetPassphrase(passphrase string) error
	ClearPassphrase() error
}

// Keyring is a SecretStore backed by the OS credential store.
type Keyring struct {
	service string
}

// NewKeyring creates a Keyring for the compass service.
func NewKeyring() *Keyring {
	return &Keyring{service: keyringService}
}

// Passphrase returns the stored passphrase, or "" when none is stored.
func (k *Keyring) Passphrase() (string, error) {
	p, err := keyring.Get(k.service, keyringPassphraseKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("auth: read keyring: %w", err)
	}
	return p, nil
}

// SetPassphrase stores passphrase, replacing any previous value.
func (k *Keyring) SetPassphrase(passphrase string) error {
	if strings.TrimSpace(passphrase) == "" {
		return errors.New("auth: passphrase cannot be empty")
	}
	if err := keyring.Set(k.service, keyringPassphraseKey, passphrase); err != nil {
		return fmt.Errorf("auth: write keyring: %w", err)
	}
	return nil
}

// ClearPassphrase removes the stored passphrase. Clearing an empty keyring
// is not an error.
func (k *Keyring) ClearPassphrase() error {
	err := keyring.Delete(k.service, keyringPassphraseKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("auth: delete keyring entry: %w", err)
	}
	return nil
}
