package vault

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// The verifier lives in its own KDF domain: shorter salt, fewer iterations,
// SHA-512 and a 64-byte output. A stored token is never an envelope key.
const (
	verifierSaltSize = 16
	verifierKeySize  = 64
)

var verifierIterations = 10_000

// HashPassphrase returns a verification token of the form
// "<salt hex>:<derived hex>".
func HashPassphrase(passphrase string) (string, error) {
	salt := make([]byte, verifierSaltSize)
	if _, err := randRead(salt); err != nil {
		return "", fmt.Errorf("vault: read random: %w", err)
	}
	derived := deriveVerifier(passphrase, salt)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(derived), nil
}

// VerifyPassphrase checks passphrase against a token from HashPassphrase.
// Malformed tokens verify as false.
func VerifyPassphrase(passphrase, token string) bool {
	saltHex, hashHex, ok := strings.Cut(token, ":")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) != verifierSaltSize {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) != verifierKeySize {
		return false
	}
	got := deriveVerifier(passphrase, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func deriveVerifier(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, verifierIterations, verifierKeySize, sha512.New)
}
