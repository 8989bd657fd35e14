// Package auth turns transport credentials into the identity the tool
// dispatcher works with. Transports pick a Resolver: API keys for the
// multi-user HTTP surface, the fixed local account for stdio.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when credentials are missing or match no
// account.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Identity is everything downstream code learns about a caller. It never
// carries the raw API key.
type Identity struct {
	UserID            string
	EncryptionEnabled bool
	Passphrase        string
	// Verified is set when Passphrase was checked against the account's
	// verifier token.
	Verified bool
}

// Credentials are what a transport collected from the caller.
type Credentials struct {
	APIKey     string
	Passphrase string
}

// Resolver resolves credentials to an Identity.
type Resolver interface {
	Resolve(ctx context.Context, creds Credentials) (Identity, error)
}

// ─── Context plumbing ────────────────────────────────────────────────────────

type ctxKey struct{}

type ctxValue struct {
	ident Identity
	err   error
}

// WithIdentity returns a context carrying ident.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, ctxValue{ident: ident})
}

// WithError returns a context carrying a failed resolution. FromContext
// reports err, so tool calls surface it while protocol housekeeping such as
// initialize and tools/list keeps working.
func WithError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, ctxKey{}, ctxValue{err: err})
}

// FromContext returns the identity stored by WithIdentity, the error stored
// by WithError, or ErrUnauthorized when neither is present.
func FromContext(ctx context.Context) (Identity, error) {
	v, ok := ctx.Value(ctxKey{}).(ctxValue)
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	if v.err != nil {
		return Identity{}, v.err
	}
	return v.ident, nil
}
