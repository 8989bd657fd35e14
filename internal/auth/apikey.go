package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/compass/internal/store"
	"github.com/HendryAvila/compass/internal/vault"
)

// UserDirectory finds accounts by API key.
type UserDirectory interface {
	UserByAPIKey(ctx context.Context, apiKey string) (*store.User, error)
}

// APIKeyResolver authenticates remote callers by API key and, for accounts
// with encryption enabled, by passphrase.
type APIKeyResolver struct {
	users UserDirectory
}

// NewAPIKeyResolver creates an APIKeyResolver over users.
func NewAPIKeyResolver(users UserDirectory) *APIKeyResolver {
	return &APIKeyResolver{users: users}
}

// Resolve implements Resolver.
func (r *APIKeyResolver) Resolve(ctx context.Context, creds Credentials) (Identity, error) {
	if creds.APIKey == "" {
		return Identity{}, fmt.Errorf("missing api key: %w", ErrUnauthorized)
	}
	u, err := r.users.UserByAPIKey(ctx, creds.APIKey)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, fmt.Errorf("unknown api key: %w", ErrUnauthorized)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("auth: lookup api key: %w", err)
	}
	return verifyAccount(u, creds.Passphrase)
}

// verifyAccount gates an encrypted account on its verifier token. Plain
// accounts pass through and any supplied passphrase is dropped.
func verifyAccount(u *store.User, passphrase string) (Identity, error) {
	if !u.EncryptionEnabled {
		return Identity{UserID: u.ID}, nil
	}
	if passphrase == "" {
		return Identity{}, vault.ErrPassphraseRequired
	}
	if !vault.VerifyPassphrase(passphrase, u.PassphraseToken) {
		return Identity{}, vault.ErrInvalidPassphrase
	}
	return Identity{
		UserID:            u.ID,
		EncryptionEnabled: true,
		Passphrase:        passphrase,
		Verified:          true,
	}, nil
}
