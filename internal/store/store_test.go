package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a SQLite store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// blobStores returns every Blobs implementation with a user "u1" ready.
func blobStores(t *testing.T) map[string]Blobs {
	t.Helper()
	sq := newTestStore(t)
	_, err := sq.EnsureUser(context.Background(), "u1", "one")
	require.NoError(t, err)
	_, err = sq.EnsureUser(context.Background(), "u2", "two")
	require.NoError(t, err)
	return map[string]Blobs{"sqlite": sq, "memory": NewMemory()}
}

// ─── Open ───────────────────────────────────────────────────────────────────

func TestOpen_CreatesDBFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, DBFile))
	assert.NoError(t, err)
}

func TestOpen_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open(dir)
	require.NoError(t, err)
	_, err = s1.EnsureUser(ctx, "u1", "one")
	require.NoError(t, err)
	require.NoError(t, s1.PutBlob(ctx, "u1", `{"a":1}`))
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	raw, found, err := s2.GetBlob(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, raw)
}

func TestOpen_DBError(t *testing.T) {
	prev := openDB
	openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("boom") }
	t.Cleanup(func() { openDB = prev })

	_, err := Open(t.TempDir())
	assert.ErrorContains(t, err, "store: open database")
}

// ─── Users ──────────────────────────────────────────────────────────────────

func TestCreateUser_APIKeyLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, key, err := s.CreateUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, APIKeyPrefix))
	assert.Len(t, key, len(APIKeyPrefix)+64)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.EncryptionEnabled)

	got, err := s.UserByAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice", got.Name)

	_, err = s.UserByAPIKey(ctx, key+"x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UserByAPIKey(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUser_StoresOnlyHash(t *testing.T) {
	s := newTestStore(t)
	_, key, err := s.CreateUser(context.Background(), "bob")
	require.NoError(t, err)

	var stored string
	require.NoError(t, s.db.QueryRow(`SELECT api_key_hash FROM users`).Scan(&stored))
	assert.Equal(t, HashAPIKey(key), stored)
	assert.NotContains(t, stored, key)
}

func TestCreateUser_RandomFailure(t *testing.T) {
	s := newTestStore(t)
	prev := randRead
	randRead = func([]byte) (int, error) { return 0, errors.New("no entropy") }
	t.Cleanup(func() { randRead = prev })

	_, _, err := s.CreateUser(context.Background(), "x")
	assert.ErrorContains(t, err, "generate api key")
}

func TestEnsureUser_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.EnsureUser(ctx, "local", "Local user")
	require.NoError(t, err)
	require.NoError(t, s.SetPassphraseToken(ctx, "local", "salt:hash"))

	b, err := s.EnsureUser(ctx, "local", "renamed")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Local user", b.Name)
	assert.True(t, b.EncryptionEnabled, "ensure must not reset the account")
}

func TestSetPassphraseToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureUser(ctx, "u1", "one")
	require.NoError(t, err)

	require.NoError(t, s.SetPassphraseToken(ctx, "u1", "aa:bb"))
	u, err := s.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.EncryptionEnabled)
	assert.Equal(t, "aa:bb", u.PassphraseToken)

	require.NoError(t, s.SetPassphraseToken(ctx, "u1", ""))
	u, err = s.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, u.EncryptionEnabled)
	assert.Empty(t, u.PassphraseToken)

	assert.ErrorIs(t, s.SetPassphraseToken(ctx, "ghost", "x:y"), ErrNotFound)
}

// ─── Blobs ──────────────────────────────────────────────────────────────────

func TestBlobs_GetPut(t *testing.T) {
	for name, s := range blobStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			raw, found, err := s.GetBlob(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, found)
			assert.Empty(t, raw)

			require.NoError(t, s.PutBlob(ctx, "u1", "first"))
			require.NoError(t, s.PutBlob(ctx, "u1", "second"))
			raw, found, err = s.GetBlob(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "second", raw)

			_, found, err = s.GetBlob(ctx, "u2")
			require.NoError(t, err)
			assert.False(t, found, "blobs are partitioned by user")
		})
	}
}

func TestBlobs_UpdateAbortsOnError(t *testing.T) {
	for name, s := range blobStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.PutBlob(ctx, "u1", "keep"))

			boom := errors.New("boom")
			err := s.UpdateBlob(ctx, "u1", func(string) (string, error) { return "", boom })
			assert.ErrorIs(t, err, boom)

			raw, _, err := s.GetBlob(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "keep", raw)
		})
	}
}

func TestBlobs_ConcurrentUpdatesSerialized(t *testing.T) {
	for name, s := range blobStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const workers = 20

			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.UpdateBlob(ctx, "u1", func(cur string) (string, error) {
						n, _ := strconv.Atoi(cur)
						return strconv.Itoa(n + 1), nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			raw, _, err := s.GetBlob(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprint(workers), raw, "no update may be lost")
		})
	}
}

func TestSQLite_PutBlobUnknownUser(t *testing.T) {
	s := newTestStore(t)
	err := s.PutBlob(context.Background(), "ghost", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateCommitFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureUser(ctx, "u1", "one")
	require.NoError(t, err)

	s.hooks.commit = func(*sql.Tx) error { return errors.New("disk full") }
	err = s.UpdateBlob(ctx, "u1", func(string) (string, error) { return "new", nil })
	assert.ErrorContains(t, err, "store: commit")

	_, found, err := s.GetBlob(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found, "rolled back cycle must not persist")
}

func TestSQLite_SlowCycleDoesNotBlockOtherUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureUser(ctx, "u1", "one")
	require.NoError(t, err)
	u2, key2, err := s.CreateUser(ctx, "two")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	cycleDone := make(chan error, 1)
	go func() {
		cycleDone <- s.UpdateBlob(ctx, "u1", func(string) (string, error) {
			close(started)
			<-release
			return "slow", nil
		})
	}()
	<-started

	otherDone := make(chan error, 1)
	go func() {
		if _, err := s.UserByAPIKey(ctx, key2); err != nil {
			otherDone <- err
			return
		}
		if _, _, err := s.GetBlob(ctx, u2.ID); err != nil {
			otherDone <- err
			return
		}
		otherDone <- s.UpdateBlob(ctx, u2.ID, func(string) (string, error) { return "fast", nil })
	}()

	select {
	case err := <-otherDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("second user's queries waited on the first user's cycle")
	}

	close(release)
	require.NoError(t, <-cycleDone)

	raw, _, err := s.GetBlob(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "slow", raw)
	raw, _, err = s.GetBlob(ctx, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, "fast", raw)
}

// ─── keyedMutex ─────────────────────────────────────────────────────────────

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, k.size())
}
