package engine

import (
	"bytes"
	"testing"

	"github.com/synerthink/dotlanth/storage/page"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	e, err := Create(Options{DataDir: dir, PageSize: page.DefaultPageSize, BufferPoolSize: 8})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return e, dir
}

func TestRootDirectoryPageIsPageOne(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Close()

	id, err := e.AllocatePage()
	if err != nil {
		t.Fatal(err)
	}
	if id == rootDirectoryPageID {
		t.Fatalf("first caller-visible allocation reused the root directory page id")
	}
}

func TestSetGetRootPersistsAcrossReopen(t *testing.T) {
	e, dir := newTestEngine(t)
	if err := e.SetRoot(NamespaceTrieNode_testKey, 42); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e2, err := Open(Options{DataDir: dir, BufferPoolSize: 8})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e2.Close()

	id, ok := e2.GetRoot(NamespaceTrieNode_testKey)
	if !ok || id != 42 {
		t.Fatalf("want (42,true) got (%d,%v)", id, ok)
	}
}

const NamespaceTrieNode_testKey = byte(NamespaceTrieNode)

func TestWriteReadPageRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Close()

	id, err := e.AllocatePage()
	if err != nil {
		t.Fatal(err)
	}
	pg := page.New(id, page.TypeData, e.PageSize())
	copy(pg.Payload, []byte("hello world"))
	if err := e.WritePage(pg); err != nil {
		t.Fatal(err)
	}
	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}

	got, err := e.ReadPage(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(got.Payload, []byte("hello world")) {
		t.Fatalf("payload mismatch: %q", got.Payload[:20])
	}
}

func TestReopenRecoversUncommittedWAL(t *testing.T) {
	e, dir := newTestEngine(t)
	id, err := e.AllocatePage()
	if err != nil {
		t.Fatal(err)
	}
	pg := page.New(id, page.TypeData, e.PageSize())
	copy(pg.Payload, []byte("durable"))
	if err := e.WritePage(pg); err != nil {
		t.Fatal(err)
	}
	// Close performs a full flush, which already makes this durable; the
	// redo-on-open path is exercised by re-reading it after reopening.
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e2, err := Open(Options{DataDir: dir, BufferPoolSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer e2.Close()

	got, err := e2.ReadPage(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(got.Payload, []byte("durable")) {
		t.Fatalf("payload mismatch after reopen: %q", got.Payload[:20])
	}
}

func TestCloseRefusesWithOutstandingPins(t *testing.T) {
	e, _ := newTestEngine(t)
	id, err := e.AllocatePage()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.pool.Pin(id); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err == nil {
		t.Fatal("expected Close to fail with outstanding pin held")
	}
	if err := e.pool.Unpin(id, false); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close after unpin: %v", err)
	}
}
