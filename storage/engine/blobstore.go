package engine

import (
	"encoding/binary"
	"sync"

	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/storage/page"
)

// blobChunkHeader is the fixed-size header at the start of each page in a
// blob's page chain: the next page in the chain (0 if this is the last) and
// the number of payload bytes used in this page.
const blobChunkHeader = 8 + 4

// rootDirTrieManifest is the root-directory key under which BlobStore
// persists its hash -> head-page-id index.
const rootDirTrieManifest byte = 1

// BlobStore is a content-addressed store for arbitrarily sized blobs keyed
// by a caller-supplied 32-byte id (the trie's Keccak-256 node hash, spec.md
// §4.5). Each blob is written across a chain of engine pages.
type BlobStore struct {
	mu    sync.RWMutex
	eng   *Engine
	index map[[32]byte]uint64 // id -> head page id
}

// NewBlobStore opens (or initializes) the blob store backing a single
// engine instance, loading its manifest from the engine's root directory if
// one was previously persisted.
func NewBlobStore(eng *Engine) (*BlobStore, error) {
	bs := &BlobStore{eng: eng, index: make(map[[32]byte]uint64)}
	if manifestID, ok := eng.GetRoot(rootDirTrieManifest); ok {
		if err := bs.loadManifest(manifestID); err != nil {
			return nil, err
		}
	}
	return bs, nil
}

// Has reports whether id is present in the store.
func (bs *BlobStore) Has(id [32]byte) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	_, ok := bs.index[id]
	return ok
}

// Get returns the blob stored under id.
func (bs *BlobStore) Get(id [32]byte) ([]byte, error) {
	bs.mu.RLock()
	head, ok := bs.index[id]
	bs.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.KindTrie, "node not found").With(map[string]any{"node_id": id})
	}
	return bs.readChain(head)
}

func (bs *BlobStore) readChain(head uint64) ([]byte, error) {
	var out []byte
	next := head
	for next != 0 {
		pg, err := bs.eng.ReadPage(next)
		if err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint32(pg.Payload[8:12])
		out = append(out, pg.Payload[blobChunkHeader:blobChunkHeader+n]...)
		next = binary.LittleEndian.Uint64(pg.Payload[0:8])
	}
	return out, nil
}

// Put stores data under id. If id is already present the call is a no-op and
// the stored value is kept (for trie nodes the id is derived from the
// content itself, so the stored value is the same).
func (bs *BlobStore) Put(id [32]byte, data []byte) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if _, ok := bs.index[id]; ok {
		return nil
	}
	chunkCap := int(bs.eng.PageSize()) - page.HeaderSize - blobChunkHeader
	if chunkCap <= 0 {
		return errs.New(errs.KindResource, "page size too small for blob chunking")
	}

	var pageIDs []uint64
	for off := 0; off < len(data) || (off == 0 && len(data) == 0); off += chunkCap {
		id, err := bs.eng.AllocatePage()
		if err != nil {
			return err
		}
		pageIDs = append(pageIDs, id)
		if off+chunkCap >= len(data) {
			break
		}
	}
	if len(pageIDs) == 0 {
		id, err := bs.eng.AllocatePage()
		if err != nil {
			return err
		}
		pageIDs = []uint64{id}
	}

	for i, pid := range pageIDs {
		start := i * chunkCap
		end := start + chunkCap
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]
		pg := page.New(pid, page.TypeData, bs.eng.PageSize())
		var next uint64
		if i+1 < len(pageIDs) {
			next = pageIDs[i+1]
		}
		binary.LittleEndian.PutUint64(pg.Payload[0:8], next)
		binary.LittleEndian.PutUint32(pg.Payload[8:12], uint32(len(chunk)))
		copy(pg.Payload[blobChunkHeader:], chunk)
		if err := bs.eng.WritePage(pg); err != nil {
			return err
		}
	}

	bs.index[id] = pageIDs[0]
	return bs.persistManifestLocked()
}

// manifest layout: [count uint32][ (id [32]byte, headPageID uint64) ... ]
func (bs *BlobStore) persistManifestLocked() error {
	entrySize := 32 + 8
	data := make([]byte, 4+len(bs.index)*entrySize)
	binary.LittleEndian.PutUint32(data[0:4], uint32(len(bs.index)))
	off := 4
	for id, head := range bs.index {
		copy(data[off:off+32], id[:])
		binary.LittleEndian.PutUint64(data[off+32:off+40], head)
		off += entrySize
	}

	manifestID, ok := bs.eng.GetRoot(rootDirTrieManifest)
	if !ok {
		id, err := bs.eng.AllocatePage()
		if err != nil {
			return err
		}
		manifestID = id
	} else {
		// The head page is reused in place; pages of the old chain beyond
		// the head are not freed.
		if old, err := bs.readChain(manifestID); err == nil {
			_ = old
		}
	}

	chunkCap := int(bs.eng.PageSize()) - page.HeaderSize - blobChunkHeader
	var pageIDs []uint64 = []uint64{manifestID}
	for off := chunkCap; off < len(data); off += chunkCap {
		id, err := bs.eng.AllocatePage()
		if err != nil {
			return err
		}
		pageIDs = append(pageIDs, id)
	}
	for i, pid := range pageIDs {
		start := i * chunkCap
		end := start + chunkCap
		if end > len(data) {
			end = len(data)
		}
		if start > len(data) {
			start = len(data)
			end = len(data)
		}
		chunk := data[start:end]
		pg := page.New(pid, page.TypeMeta, bs.eng.PageSize())
		var next uint64
		if i+1 < len(pageIDs) {
			next = pageIDs[i+1]
		}
		binary.LittleEndian.PutUint64(pg.Payload[0:8], next)
		binary.LittleEndian.PutUint32(pg.Payload[8:12], uint32(len(chunk)))
		copy(pg.Payload[blobChunkHeader:], chunk)
		if err := bs.eng.WritePage(pg); err != nil {
			return err
		}
	}
	return bs.eng.SetRoot(rootDirTrieManifest, manifestID)
}

func (bs *BlobStore) loadManifest(head uint64) error {
	data, err := bs.readChain(head)
	if err != nil {
		return err
	}
	if len(data) < 4 {
		return nil
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	off := 4
	entrySize := 32 + 8
	for i := uint32(0); i < count; i++ {
		var id [32]byte
		copy(id[:], data[off:off+32])
		head := binary.LittleEndian.Uint64(data[off+32 : off+40])
		bs.index[id] = head
		off += entrySize
	}
	return nil
}
