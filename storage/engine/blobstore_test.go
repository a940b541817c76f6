package engine

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/synerthink/dotlanth/storage/page"
)

func idOf(data []byte) [32]byte { return sha256.Sum256(data) }

func TestBlobStorePutGetSmall(t *testing.T) {
	e, err := Create(Options{DataDir: t.TempDir(), PageSize: page.DefaultPageSize, BufferPoolSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	bs, err := NewBlobStore(e)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte("a small trie node payload")
	id := idOf(data)
	if err := bs.Put(id, data); err != nil {
		t.Fatal(err)
	}
	if !bs.Has(id) {
		t.Fatal("expected Has to report true after Put")
	}
	got, err := bs.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("mismatch: want %q got %q", data, got)
	}
}

func TestBlobStoreChunksAcrossPages(t *testing.T) {
	// PageSize chosen small enough that a single chunk cannot hold the blob.
	e, err := Create(Options{DataDir: t.TempDir(), PageSize: 256, BufferPoolSize: 32})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	bs, err := NewBlobStore(e)
	if err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte{0xAB}, 5000)
	id := idOf(data)
	if err := bs.Put(id, data); err != nil {
		t.Fatal(err)
	}
	got, err := bs.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("chunked round trip mismatch: len want %d got %d", len(data), len(got))
	}
}

func TestBlobStoreManifestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(Options{DataDir: dir, PageSize: page.DefaultPageSize, BufferPoolSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	bs, err := NewBlobStore(e)
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("persisted node")
	id := idOf(data)
	if err := bs.Put(id, data); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e2, err := Open(Options{DataDir: dir, BufferPoolSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer e2.Close()
	bs2, err := NewBlobStore(e2)
	if err != nil {
		t.Fatal(err)
	}
	got, err := bs2.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("mismatch after reopen: want %q got %q", data, got)
	}
}
