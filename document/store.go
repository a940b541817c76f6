package document

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/storage/page"
	"github.com/synerthink/dotlanth/trie"
)

// PageEngine is the narrow storage/engine.Engine surface the document layer
// needs to durably anchor its one trie root across restarts: an allocated
// page holds the 32-byte root hash, and its page id is tracked via the
// engine's named-root directory (storage/engine.Engine.GetRoot/SetRoot).
type PageEngine interface {
	AllocatePage() (uint64, error)
	ReadPage(id uint64) (*page.Page, error)
	WritePage(pg *page.Page) error
	GetRoot(key byte) (uint64, bool)
	SetRoot(key byte, pageID uint64) error
	PageSize() uint32
}

// manifest is the JSON body stored at a collection's manifestKey: the
// ordered set of live document ids in that collection.
type manifest struct {
	IDs []string `json:"ids"`
}

// Store is the document layer's trie-backed persistence (spec.md §4.7).
// One Store serves every collection; collections are namespaces within the
// same trie, not separate trees, so deleting a collection is an operation
// over the manifest plus a bounded sweep of its document keys.
type Store struct {
	mu   sync.Mutex
	tr   *trie.Trie
	root trie.Hash
}

// NewStore builds a Store over tr, starting from the empty trie. Callers
// that need durability across restarts should pair this with the
// PageEngine-backed SaveRoot/LoadStore helpers below.
func NewStore(tr *trie.Trie) *Store {
	return &Store{tr: tr, root: trie.EmptyRoot}
}

// Root returns the store's current trie root.
func (s *Store) Root() trie.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *Store) readManifestLocked(collection string) (manifest, error) {
	raw, err := s.tr.Get(s.root, manifestKey(collection))
	if err != nil {
		return manifest{}, nil // absent collection == empty manifest
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return manifest{}, errs.Wrap(errs.KindFormat, "corrupt collection manifest", err).
			With(map[string]any{"collection": collection})
	}
	return m, nil
}

func (s *Store) writeManifestLocked(collection string, m manifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return errs.Wrap(errs.KindFormat, "manifest marshal failed", err)
	}
	newRoot, err := s.tr.Put(s.root, manifestKey(collection), raw)
	if err != nil {
		return err
	}
	s.root = newRoot
	return nil
}

// InsertJSON validates body as JSON, assigns a fresh UUID, and writes a
// document with version=1, created_at=updated_at=now (spec.md §4.7).
func (s *Store) InsertJSON(collection string, body []byte) (string, error) {
	if !json.Valid(body) {
		return "", errs.New(errs.KindFormat, "invalid JSON document body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	ts := now()
	doc := Document{
		ID:       id,
		Body:     json.RawMessage(append([]byte(nil), body...)),
		Metadata: Metadata{Version: 1, CreatedAt: ts, UpdatedAt: ts},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", errs.Wrap(errs.KindFormat, "document marshal failed", err)
	}

	newRoot, err := s.tr.Put(s.root, documentKey(collection, id), raw)
	if err != nil {
		return "", err
	}
	s.root = newRoot

	m, err := s.readManifestLocked(collection)
	if err != nil {
		return "", err
	}
	m.IDs = append(m.IDs, id)
	if err := s.writeManifestLocked(collection, m); err != nil {
		return "", err
	}
	return id, nil
}

// GetJSON returns the raw JSON body of id, or (nil, nil) if absent (the
// "option<json>" return in spec.md §4.7).
func (s *Store) GetJSON(collection, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.getLocked(collection, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return doc.Body, nil
}

func (s *Store) getLocked(collection, id string) (Document, error) {
	raw, err := s.tr.Get(s.root, documentKey(collection, id))
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, errs.Wrap(errs.KindFormat, "corrupt document", err)
	}
	return doc, nil
}

func isNotFound(err error) bool {
	e, ok := err.(*errs.Error)
	return ok && e.Kind == errs.KindTrie
}

// UpdateJSON requires an existing document; version increments by 1,
// updated_at is refreshed, created_at is preserved (spec.md §4.7).
func (s *Store) UpdateJSON(collection, id string, body []byte) error {
	if !json.Valid(body) {
		return errs.New(errs.KindFormat, "invalid JSON document body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getLocked(collection, id)
	if err != nil {
		return errs.Wrap(errs.KindTrie, "document not found", err).With(map[string]any{"id": id})
	}

	existing.Body = json.RawMessage(append([]byte(nil), body...))
	existing.Metadata.Version++
	existing.Metadata.UpdatedAt = now()

	raw, err := json.Marshal(existing)
	if err != nil {
		return errs.Wrap(errs.KindFormat, "document marshal failed", err)
	}
	newRoot, err := s.tr.Put(s.root, documentKey(collection, id), raw)
	if err != nil {
		return err
	}
	s.root = newRoot
	return nil
}

// Delete removes a document, returning whether it existed.
func (s *Store) Delete(collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getLocked(collection, id); err != nil {
		return false, nil
	}
	newRoot, err := s.tr.Delete(s.root, documentKey(collection, id))
	if err != nil {
		return false, err
	}
	s.root = newRoot

	m, err := s.readManifestLocked(collection)
	if err != nil {
		return false, err
	}
	m.IDs = removeID(m.IDs, id)
	if err := s.writeManifestLocked(collection, m); err != nil {
		return false, err
	}
	return true, nil
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// ListDocumentIDs returns every live document id in collection.
func (s *Store) ListDocumentIDs(collection string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.readManifestLocked(collection)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), m.IDs...), nil
}

// Count returns the number of live documents in collection.
func (s *Store) Count(collection string) (int, error) {
	ids, err := s.ListDocumentIDs(collection)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// FieldMatch is one (id, document) hit from FindByField.
type FieldMatch struct {
	ID  string
	Doc json.RawMessage
}

// FindByField scans collection and returns every document whose named
// top-level field equals value exactly (spec.md §4.7: "The match is
// exact").
func (s *Store) FindByField(collection, field string, value json.RawMessage) ([]FieldMatch, error) {
	ids, err := s.ListDocumentIDs(collection)
	if err != nil {
		return nil, err
	}
	var matches []FieldMatch
	for _, id := range ids {
		body, err := s.GetJSON(collection, id)
		if err != nil {
			return nil, err
		}
		if body == nil {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			continue
		}
		got, ok := fields[field]
		if !ok {
			continue
		}
		if jsonEqual(got, value) {
			matches = append(matches, FieldMatch{ID: id, Doc: body})
		}
	}
	return matches, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
	}
	aNorm, _ := json.Marshal(av)
	bNorm, _ := json.Marshal(bv)
	return bytes.Equal(aNorm, bNorm)
}

// DeleteCollection atomically removes every document in collection plus its
// manifest (spec.md §4.7: "deleting a collection deletes all its documents
// atomically"). Atomicity here means the resulting trie root is published
// only after every constituent delete has succeeded; a mid-way failure
// leaves the prior root (and all its documents) untouched.
func (s *Store) DeleteCollection(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readManifestLocked(collection)
	if err != nil {
		return err
	}
	root := s.root
	for _, id := range m.IDs {
		newRoot, err := s.tr.Delete(root, documentKey(collection, id))
		if err != nil {
			return err
		}
		root = newRoot
	}
	newRoot, err := s.tr.Delete(root, manifestKey(collection))
	if err != nil && !isNotFound(err) {
		return err
	}
	if err == nil {
		root = newRoot
	}
	s.root = root
	return nil
}

// SaveRoot persists the store's current trie root through eng, so a
// subsequent LoadStore call against the same engine and key recovers it.
func (s *Store) SaveRoot(eng PageEngine, key byte) error {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()

	id, ok := eng.GetRoot(key)
	if !ok {
		newID, err := eng.AllocatePage()
		if err != nil {
			return err
		}
		id = newID
	}
	pg := page.New(id, page.TypeMeta, eng.PageSize())
	copy(pg.Payload, root[:])
	if err := eng.WritePage(pg); err != nil {
		return err
	}
	return eng.SetRoot(key, id)
}

// LoadStore builds a Store over tr, recovering its root from eng at key if
// one was previously saved with SaveRoot, or starting empty otherwise.
func LoadStore(tr *trie.Trie, eng PageEngine, key byte) (*Store, error) {
	s := NewStore(tr)
	id, ok := eng.GetRoot(key)
	if !ok {
		return s, nil
	}
	pg, err := eng.ReadPage(id)
	if err != nil {
		return nil, err
	}
	copy(s.root[:], pg.Payload[:32])
	return s, nil
}
