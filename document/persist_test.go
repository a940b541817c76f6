package document

import (
	"testing"

	"github.com/synerthink/dotlanth/storage/engine"
	"github.com/synerthink/dotlanth/storage/page"
	"github.com/synerthink/dotlanth/trie"
)

const testDocRootKey = byte(engine.NamespaceDocument)

func TestSaveLoadRootRoundTrip(t *testing.T) {
	dir := t.TempDir()
	eng, err := engine.Create(engine.Options{DataDir: dir, PageSize: page.DefaultPageSize, BufferPoolSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	bs, err := engine.NewBlobStore(eng)
	if err != nil {
		t.Fatal(err)
	}
	tr := trie.New(bs)
	s := NewStore(tr)

	id, err := s.InsertJSON("widgets", []byte(`{"n":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRoot(eng, testDocRootKey); err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadStore(tr, eng, testDocRootKey)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.GetJSON("widgets", id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"n":1}` {
		t.Fatalf("unexpected body after reload: %s", got)
	}
}
