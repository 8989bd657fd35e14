package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HendryAvila/compass/internal/store"
	"github.com/HendryAvila/compass/internal/vault"
)

// LocalUserID is the single account the stdio transport acts for.
const LocalUserID = "local"

// LocalAccounts is the slice of the store LocalResolver needs.
type LocalAccounts interface {
	EnsureUser(ctx context.Context, id, name string) (*store.User, error)
	SetPassphraseToken(ctx context.Context, userID, token string) error
}

// LocalResolver resolves every caller to the local account. The passphrase
// comes from the credentials, then the configured value, then the secret
// store. The first passphrase ever seen is enrolled: its verifier token is
// stored and encryption is switched on for the account.
type LocalResolver struct {
	accounts   LocalAccounts
	passphrase string
	secrets    SecretStore
	log        *zap.Logger
}

// NewLocalResolver creates a LocalResolver. secrets may be nil.
func NewLocalResolver(accounts LocalAccounts, passphrase string, secrets SecretStore, log *zap.Logger) *LocalResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalResolver{accounts: accounts, passphrase: passphrase, secrets: secrets, log: log}
}

// Resolve implements Resolver. creds.APIKey is ignored.
func (r *LocalResolver) Resolve(ctx context.Context, creds Credentials) (Identity, error) {
	passphrase := r.pickPassphrase(creds.Passphrase)

	u, err := r.accounts.EnsureUser(ctx, LocalUserID, "Local user")
	if err != nil {
		return Identity{}, fmt.Errorf("auth: local account: %w", err)
	}

	if !u.EncryptionEnabled && passphrase != "" {
		token, err := vault.HashPassphrase(passphrase)
		if err != nil {
			return Identity{}, fmt.Errorf("auth: enroll passphrase: %w", err)
		}
		if err := r.accounts.SetPassphraseToken(ctx, u.ID, token); err != nil {
			return Identity{}, fmt.Errorf("auth: enroll passphrase: %w", err)
		}
		r.log.Info("passphrase enrolled, encryption enabled", zap.String("user_id", u.ID))
		u.EncryptionEnabled = true
		u.PassphraseToken = token
	}
	return verifyAccount(u, passphrase)
}

// SavePassphrase checks passphrase against the local account (enrolling it
// if the account has none yet) and stores it in the secret store.
func (r *LocalResolver) SavePassphrase(ctx context.Context, passphrase string) error {
	if r.secrets == nil {
		return fmt.Errorf("auth: no secret store configured")
	}
	if _, err := r.Resolve(ctx, Credentials{Passphrase: passphrase}); err != nil {
		return err
	}
	return r.secrets.SetPassphrase(passphrase)
}

func (r *LocalResolver) pickPassphrase(supplied string) string {
	if supplied != "" {
		return supplied
	}
	if r.passphrase != "" {
		return r.passphrase
	}
	if r.secrets == nil {
		return ""
	}
	p, err := r.secrets.Passphrase()
	if err != nil {
		r.log.Warn("reading passphrase from keyring failed", zap.Error(err))
		return ""
	}
	return p
}
