package trie

import (
	"bytes"
	"testing"

	"github.com/synerthink/dotlanth/errs"
)

// memStore is a trivial in-memory Store used only by this package's tests;
// storage/engine.BlobStore is the production implementation.
type memStore struct {
	m map[[32]byte][]byte
}

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

func (s *memStore) Has(id [32]byte) bool {
	_, ok := s.m[id]
	return ok
}

func TestTriePutGet(t *testing.T) {
	tr := New(newMemStore())
	root := EmptyRoot

	entries := map[string]string{
		"alpha":   "1",
		"alphabet": "2",
		"beta":    "3",
		"b":       "4",
	}
	var err error
	for k, v := range entries {
		root, err = tr.Put(root, []byte(k), []byte(v))
		if err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	for k, v := range entries {
		got, err := tr.Get(root, []byte(k))
		if err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
		if string(got) != v {
			t.Fatalf("get %s: want %s got %s", k, v, got)
		}
	}

	if _, err := tr.Get(root, []byte("missing")); err == nil {
		t.Fatal("expected KeyNotFound for absent key")
	}
}

func TestTrieOverwrite(t *testing.T) {
	tr := New(newMemStore())
	root, err := tr.Put(EmptyRoot, []byte("k"), []byte("v1"))
	if err != nil {
		t.Fatal(err)
	}
	root, err = tr.Put(root, []byte("k"), []byte("v2"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := tr.Get(root, []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Fatalf("want v2 got %s", got)
	}
}

func TestTrieDeterministicRoot(t *testing.T) {
	// spec.md §8 property 3: identical key/value sets, any insertion order,
	// produce the same root.
	entries := [][2]string{{"a", "1"}, {"ab", "2"}, {"b", "3"}, {"abc", "4"}}

	build := func(order []int) Hash {
		tr := New(newMemStore())
		root := EmptyRoot
		var err error
		for _, i := range order {
			root, err = tr.Put(root, []byte(entries[i][0]), []byte(entries[i][1]))
			if err != nil {
				t.Fatal(err)
			}
		}
		return root
	}

	rootA := build([]int{0, 1, 2, 3})
	rootB := build([]int{3, 2, 1, 0})
	if rootA != rootB {
		t.Fatalf("roots differ by insertion order: %x vs %x", rootA, rootB)
	}
}

func TestTrieDeleteCollapses(t *testing.T) {
	tr := New(newMemStore())
	root, err := tr.Put(EmptyRoot, []byte("alpha"), []byte("1"))
	if err != nil {
		t.Fatal(err)
	}
	root, err = tr.Put(root, []byte("alphabet"), []byte("2"))
	if err != nil {
		t.Fatal(err)
	}

	root, err = tr.Delete(root, []byte("alphabet"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Get(root, []byte("alphabet")); err == nil {
		t.Fatal("expected deleted key to be absent")
	}
	got, err := tr.Get(root, []byte("alpha"))
	if err != nil || string(got) != "1" {
		t.Fatalf("expected surviving key alpha=1, got %q err=%v", got, err)
	}

	root, err = tr.Delete(root, []byte("alpha"))
	if err != nil {
		t.Fatal(err)
	}
	if root != EmptyRoot {
		t.Fatalf("expected empty root after deleting last key, got %x", root)
	}
}

func TestTrieDeleteMissingKeyFails(t *testing.T) {
	tr := New(newMemStore())
	root, err := tr.Put(EmptyRoot, []byte("k"), []byte("v"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Delete(root, []byte("missing")); err == nil {
		t.Fatal("expected KeyNotFound")
	}
}

func TestProveVerifyInclusion(t *testing.T) {
	tr := New(newMemStore())
	root := EmptyRoot
	var err error
	for _, kv := range [][2]string{{"alpha", "1"}, {"alphabet", "2"}, {"beta", "3"}} {
		root, err = tr.Put(root, []byte(kv[0]), []byte(kv[1]))
		if err != nil {
			t.Fatal(err)
		}
	}

	proof, err := tr.Prove(root, []byte("alphabet"))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := Verify(root, []byte("alphabet"), []byte("2"), proof)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected inclusion proof to verify")
	}

	if ok, _ := Verify(root, []byte("alphabet"), []byte("wrong-value"), proof); ok {
		t.Fatal("expected proof against wrong value to fail")
	}
}

func TestProveVerifyAbsence(t *testing.T) {
	tr := New(newMemStore())
	root, err := tr.Put(EmptyRoot, []byte("alpha"), []byte("1"))
	if err != nil {
		t.Fatal(err)
	}

	proof, err := tr.Prove(root, []byte("zzz"))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := Verify(root, []byte("zzz"), nil, proof)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected absence proof to verify")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	nodes := []*node{
		newLeaf([]byte{1, 2, 3}, []byte("value")),
		newExtension([]byte{4, 5}, Hash{1, 2, 3}),
		newBranch(),
	}
	for _, n := range nodes {
		enc := n.serialize()
		got, err := deserializeNode(enc)
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		if !bytes.Equal(got.serialize(), enc) {
			t.Fatalf("round trip mismatch for kind %d", n.Kind)
		}
	}
}
