// Package codec turns a stored blob into a graph and back. A blob is either
// absent, plain canonical JSON, or a vault envelope wrapping that JSON.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HendryAvila/compass/internal/graph"
	"github.com/HendryAvila/compass/internal/vault"
)

// Load decodes raw into a graph.
//
// An empty blob is the empty graph. When encrypted is set and raw looks like
// an envelope, it is opened with passphrase; a missing passphrase yields
// vault.ErrPassphraseRequired and a failed open vault.ErrDecryptionFailed.
// Anything else is parsed as plain JSON, and a blob that does not parse
// degrades to the empty graph instead of failing.
func Load(raw string, encrypted bool, passphrase string) (*graph.Graph, error) {
	if strings.TrimSpace(raw) == "" {
		return graph.Empty(), nil
	}

	if encrypted && vault.LooksSealed(raw) {
		if passphrase == "" {
			return nil, vault.ErrPassphraseRequired
		}
		doc, err := vault.Open(raw, passphrase)
		if err != nil {
			return nil, err
		}
		g, err := graph.Decode(doc)
		if err != nil {
			// Authenticated plaintext that is not a graph object.
			return graph.Empty(), nil
		}
		return g, nil
	}

	g, err := graph.Decode([]byte(raw))
	if err != nil {
		return graph.Empty(), nil
	}
	return g, nil
}

// Store encodes g for persistence: an envelope when encrypted is set,
// canonical JSON otherwise.
func Store(g *graph.Graph, encrypted bool, passphrase string) (string, error) {
	g.Normalize()
	if encrypted {
		if passphrase == "" {
			return "", vault.ErrPassphraseRequired
		}
		sealed, err := vault.Seal(g, passphrase)
		if err != nil {
			return "", fmt.Errorf("codec: seal graph: %w", err)
		}
		return sealed, nil
	}

	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("codec: encode graph: %w", err)
	}
	return string(data), nil
}
