package document

import (
	"encoding/json"
	"testing"

	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/trie"
)

type memStore struct{ m map[[32]byte][]byte }

func newMemStore() *memStore { return &memStore{m: make(map[[32]byte][]byte)} }

func (s *memStore) Get(id [32]byte) ([]byte, error) {
	v, ok := s.m[id]
	if !ok {
		return nil, errs.New(errs.KindTrie, "node not found")
	}
	return v, nil
}
func (s *memStore) Put(id [32]byte, data []byte) error {
	s.m[id] = append([]byte(nil), data...)
	return nil
}
func (s *memStore) Has(id [32]byte) bool { _, ok := s.m[id]; return ok }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(trie.New(newMemStore()))
}

func TestInsertGetUpdateDelete(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertJSON("widgets", []byte(`{"name":"gear","count":3}`))
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetJSON("widgets", id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"name":"gear","count":3}` {
		t.Fatalf("unexpected body: %s", got)
	}

	if err := s.UpdateJSON("widgets", id, []byte(`{"name":"gear","count":4}`)); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetJSON("widgets", id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"name":"gear","count":4}` {
		t.Fatalf("unexpected body after update: %s", got)
	}

	ok, err := s.Delete("widgets", id)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	got, err = s.GetJSON("widgets", id)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil body for deleted document, got %s", got)
	}
}

func TestInsertRejectsInvalidJSON(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.InsertJSON("widgets", []byte(`not json`)); err == nil {
		t.Fatal("expected invalid JSON to be rejected")
	}
}

func TestUpdateRequiresExisting(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpdateJSON("widgets", "nope", []byte(`{}`)); err == nil {
		t.Fatal("expected update of missing document to fail")
	}
}

func TestListCountFindByField(t *testing.T) {
	s := newTestStore(t)
	id1, _ := s.InsertJSON("people", []byte(`{"name":"ann","role":"eng"}`))
	id2, _ := s.InsertJSON("people", []byte(`{"name":"bo","role":"eng"}`))
	_, _ = s.InsertJSON("people", []byte(`{"name":"cy","role":"sales"}`))

	ids, err := s.ListDocumentIDs("people")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("want 3 ids got %d", len(ids))
	}
	count, err := s.Count("people")
	if err != nil || count != 3 {
		t.Fatalf("count=%d err=%v", count, err)
	}

	matches, err := s.FindByField("people", "role", json.RawMessage(`"eng"`))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("want 2 matches got %d", len(matches))
	}
	gotIDs := map[string]bool{matches[0].ID: true, matches[1].ID: true}
	if !gotIDs[id1] || !gotIDs[id2] {
		t.Fatalf("expected matches for %s and %s, got %v", id1, id2, matches)
	}
}

func TestDeleteCollectionRemovesEverything(t *testing.T) {
	s := newTestStore(t)
	s.InsertJSON("temp", []byte(`{"a":1}`))
	s.InsertJSON("temp", []byte(`{"a":2}`))

	if err := s.DeleteCollection("temp"); err != nil {
		t.Fatal(err)
	}
	ids, err := s.ListDocumentIDs("temp")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty collection after delete, got %v", ids)
	}
}

func TestCollectionsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.InsertJSON("a", []byte(`{"v":1}`))
	if got, _ := s.GetJSON("b", id); got != nil {
		t.Fatal("expected document to be invisible from a different collection namespace")
	}
}
