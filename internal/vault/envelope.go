// Package vault implements the client-side envelope encryption used to
// persist a user's graph as opaque ciphertext, plus the one-way passphrase
// verifier the server keeps to gate access.
//
// Envelope layout (base64, standard encoding):
//
//	salt (32) ‖ nonce (16) ‖ tag (16) ‖ ciphertext
//
// The key is PBKDF2-HMAC-SHA256(passphrase, salt, 100k iterations) and the
// cipher is AES-256-GCM with a 16-byte nonce.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize  = 32
	nonceSize = 16
	tagSize   = 16
	keySize   = 32

	// minCiphertext is the slack LooksSealed requires beyond the header.
	minCiphertext = 10
)

// envelopeIterations is the PBKDF2 work factor for the envelope key.
// Tests may lower it; production code never changes it.
var envelopeIterations = 100_000

var (
	// ErrDecryptionFailed covers every way Open can fail: wrong passphrase,
	// tampered ciphertext, truncated or non-base64 input. The cases are
	// deliberately indistinguishable.
	ErrDecryptionFailed = errors.New("vault: decryption failed")

	// ErrPassphraseRequired is returned when encryption is enabled for an
	// account but no passphrase was supplied.
	ErrPassphraseRequired = errors.New("vault: passphrase required")

	// ErrInvalidPassphrase is returned by callers when VerifyPassphrase rejects
	// the supplied passphrase.
	ErrInvalidPassphrase = errors.New("vault: invalid passphrase")
)

// randRead is a package-level var to allow test injection.
var randRead = rand.Read

// Seal encodes doc as JSON and encrypts it under passphrase.
func Seal(doc any, passphrase string) (string, error) {
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("vault: encode document: %w", err)
	}

	header := make([]byte, saltSize+nonceSize)
	if _, err := randRead(header); err != nil {
		return "", fmt.Errorf("vault: read random: %w", err)
	}
	salt, nonce := header[:saltSize], header[saltSize:]

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return "", err
	}

	// GCM appends the tag to the ciphertext; the envelope stores it first.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, len(header)+tagSize+len(ct))
	out = append(out, header...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts an envelope produced by Seal and returns the JSON document.
func Open(envelope, passphrase string) (json.RawMessage, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil || len(raw) < saltSize+nonceSize+tagSize {
		return nil, ErrDecryptionFailed
	}

	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+nonceSize]
	tag := raw[saltSize+nonceSize : saltSize+nonceSize+tagSize]
	ct := raw[saltSize+nonceSize+tagSize:]

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if !json.Valid(plaintext) {
		return nil, ErrDecryptionFailed
	}
	return json.RawMessage(plaintext), nil
}

// LooksSealed reports whether value is shaped like an envelope. It only picks
// a decode path and must never be used to authorize anything.
func LooksSealed(value string) bool {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}
	return len(raw) > saltSize+nonceSize+tagSize+minCiphertext
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := deriveEnvelopeKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("vault: new gcm: %w", err)
	}
	return aead, nil
}

func deriveEnvelopeKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, envelopeIterations, keySize, sha256.New)
}
