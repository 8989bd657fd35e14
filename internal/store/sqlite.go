package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// randRead is a package-level var to allow test injection.
var randRead = rand.Read

// DBFile is the database filename inside the data directory.
const DBFile = "compass.db"

// APIKeyPrefix marks keys issued by CreateUser.
const APIKeyPrefix = "csk_"

// ─── Types ───────────────────────────────────────────────────────────────────

// User is one account in the user directory.
type User struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	EncryptionEnabled bool   `json:"encryption_enabled"`
	PassphraseToken   string `json:"-"`
	CreatedAt         string `json:"created_at"`
}

// ─── Store ───────────────────────────────────────────────────────────────────

// SQLite is the persistent store backed by a single SQLite file.
type SQLite struct {
	db    *sql.DB
	locks *keyedMutex
	hooks storeHooks
}

type storeHooks struct {
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		beginTx: func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
			return db.BeginTx(ctx, nil)
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

// Open creates the data directory if needed, opens SQLite with WAL mode
// and runs migrations.
func Open(dataDir string) (*SQLite, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// One connection: writers never race each other for the SQLite write
	// lock. It is only held for single statements and short write
	// transactions, never across an UpdateFunc.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &SQLite{db: db, locks: newKeyedMutex(), hooks: defaultStoreHooks()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			api_key_hash       TEXT UNIQUE,
			encryption_enabled INTEGER NOT NULL DEFAULT 0,
			passphrase_token   TEXT NOT NULL DEFAULT '',
			created_at         TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS blobs (
			user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Users ───────────────────────────────────────────────────────────────────

// CreateUser adds an account and returns it with its API key. The key is
// shown exactly once; only its SHA-256 is stored.
func (s *SQLite) CreateUser(ctx context.Context, name string) (*User, string, error) {
	buf := make([]byte, 32)
	if _, err := randRead(buf); err != nil {
		return nil, "", fmt.Errorf("store: generate api key: %w", err)
	}
	apiKey := APIKeyPrefix + hex.EncodeToString(buf)

	u := &User{ID: uuid.NewString(), Name: name, CreatedAt: now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, api_key_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, HashAPIKey(apiKey), u.CreatedAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("store: create user: %w", err)
	}
	return u, apiKey, nil
}

// EnsureUser returns the user with the given id, creating a keyless account
// if it does not exist yet.
func (s *SQLite) EnsureUser(ctx context.Context, id, name string) (*User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, name, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: ensure user: %w", err)
	}
	return s.UserByID(ctx, id)
}

// UserByID looks a user up by id.
func (s *SQLite) UserByID(ctx context.Context, id string) (*User, error) {
	return s.queryUser(ctx, `WHERE id = ?`, id)
}

// UserByAPIKey looks a user up by the SHA-256 of apiKey.
func (s *SQLite) UserByAPIKey(ctx context.Context, apiKey string) (*User, error) {
	if apiKey == "" {
		return nil, ErrNotFound
	}
	return s.queryUser(ctx, `WHERE api_key_hash = ?`, HashAPIKey(apiKey))
}

// SetPassphraseToken stores a verifier token and turns encryption on. An
// empty token turns encryption off again.
func (s *SQLite) SetPassphraseToken(ctx context.Context, userID, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET passphrase_token = ?, encryption_enabled = ? WHERE id = ?`,
		token, token != "", userID,
	)
	if err != nil {
		return fmt.Errorf("store: set passphrase token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: user %q: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) queryUser(ctx context.Context, where string, args ...any) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, encryption_enabled, passphrase_token, created_at FROM users `+where, args...,
	).Scan(&u.ID, &u.Name, &u.EncryptionEnabled, &u.PassphraseToken, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query user: %w", err)
	}
	return &u, nil
}

// ─── Blobs ───────────────────────────────────────────────────────────────────

// GetBlob returns the stored blob for userID.
func (s *SQLite) GetBlob(ctx context.Context, userID string) (string, bool, error) {
	return getBlob(ctx, s.db, userID)
}

// PutBlob overwrites the blob for userID.
func (s *SQLite) PutBlob(ctx context.Context, userID, raw string) error {
	return putBlob(ctx, s.db, userID, raw)
}

// UpdateBlob runs one read-modify-write cycle for userID. Cycles for the
// same user are serialized by the per-user lock. fn runs with no
// connection held, so a slow cycle for one user never stalls queries for
// another; only the write is wrapped in a transaction.
func (s *SQLite) UpdateBlob(ctx context.Context, userID string, fn UpdateFunc) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	current, _, err := getBlob(ctx, s.db, userID)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}

	tx, err := s.hooks.beginTx(ctx, s.db)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := putBlob(ctx, tx, userID, next); err != nil {
		return err
	}
	if err := s.hooks.commit(tx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBlob(ctx context.Context, q querier, userID string) (string, bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT data FROM blobs WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get blob: %w", err)
	}
	return raw, true, nil
}

func putBlob(ctx context.Context, q querier, userID, raw string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO blobs (user_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, raw, now(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("store: user %q: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("store: put blob: %w", err)
	}
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// HashAPIKey returns the hex SHA-256 of an API key.
func HashAPIKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
