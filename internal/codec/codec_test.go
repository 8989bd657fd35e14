package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/compass/internal/graph"
	"github.com/HendryAvila/compass/internal/vault"
)

const emptyGraphJSON = `{"objectives":[],"deliverables":[],"relationships":{},"lastUpdated":""}`

func sample() *graph.Graph {
	g := graph.Empty()
	graph.AddObjective(g, graph.ObjectiveInput{Title: "Ship v1"})
	graph.AddDeliverable(g, graph.DeliverableInput{Title: "Write docs", ObjectiveID: "obj-1", Relationship: "users need docs"})
	return g
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestLoad_EmptyBlob(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		for _, encrypted := range []bool{false, true} {
			g, err := Load(raw, encrypted, "")
			require.NoError(t, err)
			assert.JSONEq(t, emptyGraphJSON, mustJSON(t, g))
		}
	}
}

func TestLoad_CorruptPlainBlobDegradesToEmpty(t *testing.T) {
	for _, raw := range []string{"{not json", "[1,2,3]", "null", `"text"`} {
		g, err := Load(raw, false, "")
		require.NoError(t, err, raw)
		assert.JSONEq(t, emptyGraphJSON, mustJSON(t, g), raw)
	}
}

func TestStoreLoad_PlainRoundTrip(t *testing.T) {
	g := sample()
	raw, err := Store(g, false, "")
	require.NoError(t, err)
	assert.JSONEq(t, mustJSON(t, g), raw)
	assert.False(t, vault.LooksSealed(raw))

	back, err := Load(raw, false, "")
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestStoreLoad_EncryptedRoundTrip(t *testing.T) {
	g := sample()
	raw, err := Store(g, true, "hunter2")
	require.NoError(t, err)
	assert.True(t, vault.LooksSealed(raw))
	assert.NotContains(t, raw, "Ship v1")

	back, err := Load(raw, true, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestStore_EncryptedNeedsPassphrase(t *testing.T) {
	_, err := Store(sample(), true, "")
	assert.ErrorIs(t, err, vault.ErrPassphraseRequired)
}

func TestLoad_EncryptedErrors(t *testing.T) {
	raw, err := Store(sample(), true, "right")
	require.NoError(t, err)

	_, err = Load(raw, true, "")
	assert.ErrorIs(t, err, vault.ErrPassphraseRequired)

	_, err = Load(raw, true, "wrong")
	assert.ErrorIs(t, err, vault.ErrDecryptionFailed)
}

func TestLoad_PlainBlobOnEncryptedAccount(t *testing.T) {
	// Accounts that turn encryption on keep their plain blob readable until
	// the next write seals it.
	plain, err := Store(sample(), false, "")
	require.NoError(t, err)

	g, err := Load(plain, true, "any")
	require.NoError(t, err)
	assert.Len(t, g.Objectives, 1)
}

func TestStore_NormalizesNilCollections(t *testing.T) {
	raw, err := Store(&graph.Graph{}, false, "")
	require.NoError(t, err)
	assert.JSONEq(t, emptyGraphJSON, raw)
}
