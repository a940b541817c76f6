// Package document implements the document layer (spec.md §4.7, C7): JSON
// documents grouped into independent collection namespaces, persisted
// through a single trie.Trie whose current root is the document layer's one
// piece of durable state.
package document

import (
	"crypto/sha256"
	"encoding/json"
	"time"
)

// Metadata carries the bookkeeping fields every stored document gets
// (spec.md §4.7): version, created_at, updated_at.
type Metadata struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is a stored JSON body plus its metadata.
type Document struct {
	ID       string          `json:"id"`
	Body     json.RawMessage `json:"body"`
	Metadata Metadata        `json:"metadata"`
}

// now is overridable in tests that need deterministic timestamps.
var now = time.Now

const (
	docKindKeyTag      = 0x01
	docKindManifestTag = 0x02
)

// documentKey derives the stable trie key for one document: sha256(0x01 ||
// collection || 0x00 || id), matching spec.md §4.7's "stable key derivation
// from (collection name, document id)".
func documentKey(collection, id string) []byte {
	h := sha256.New()
	h.Write([]byte{docKindKeyTag})
	h.Write([]byte(collection))
	h.Write([]byte{0})
	h.Write([]byte(id))
	return h.Sum(nil)
}

// manifestKey derives the trie key holding a collection's document-id list.
func manifestKey(collection string) []byte {
	h := sha256.New()
	h.Write([]byte{docKindManifestTag})
	h.Write([]byte(collection))
	return h.Sum(nil)
}
