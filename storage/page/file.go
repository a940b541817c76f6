package page

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/google/btree"

	"github.com/synerthink/dotlanth/errs"
)

// metaPageID is the fixed id of the metadata page (spec.md §6: "page 0 is a
// metadata page describing page size, magic, allocated page high-water mark,
// and free-list head").
const metaPageID uint64 = 0

// noFreePage sentinels an empty free list.
const noFreePage = ^uint64(0)

// freeListDegree is the branching factor of the in-memory free-id index.
const freeListDegree = 32

// preambleSize is a tiny fixed-size header written before page 0 that
// records the page size, so Open can compute page offsets before it has
// decoded anything. Without this, the size of page 0 itself would depend on
// a value only page 0 carries.
const preambleSize = 4

// File is the on-disk page store: a run of fixed-size pages memory-mapped
// for reads, with metadata (page size, high-water mark, free-list head/tail)
// persisted in page 0; Open reads the page size from the preamble. Page size is fixed at creation time and immutable
// thereafter (spec.md §4.1).
//
// Freed pages form a doubly-linked chain of page ids (each freed page's own
// payload carries its next/prev neighbors), so an arbitrary id can be
// spliced out of the chain in O(1) once located. freeIDs is an in-memory
// ordered index over that same set of ids, kept in sync on every free/alloc,
// so AllocatePage can always prefer reusing the lowest freed id (a more
// compact, more deterministic reuse order than the chain's natural LIFO)
// without a linear scan of the chain.
type File struct {
	mu sync.Mutex

	f        *os.File
	mm       mmap.MMap
	pageSize uint32

	highWater uint64 // number of pages ever allocated (next new id)
	freeHead  uint64 // head of the free-list chain, or noFreePage
	freeTail  uint64 // tail of the free-list chain, or noFreePage
	freeIDs   *btree.BTreeG[uint64]
}

// Create initializes a brand-new page file at path with the given page size.
func Create(path string, pageSize uint32) (*File, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "create page file", err)
	}
	pf := &File{
		f: f, pageSize: pageSize, highWater: 1,
		freeHead: noFreePage, freeTail: noFreePage,
		freeIDs: btree.NewOrderedG[uint64](freeListDegree),
	}
	if err := pf.growTo(1); err != nil {
		f.Close()
		return nil, err
	}
	binary.LittleEndian.PutUint32(pf.mm[0:preambleSize], pageSize)
	if err := pf.writeMeta(); err != nil {
		f.Close()
		return nil, err
	}
	if err := pf.Sync(); err != nil {
		f.Close()
		return nil, err
	}
	return pf, nil
}

// Open opens an existing page file and loads its metadata from page 0.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "open page file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindStorage, "stat page file", err)
	}
	if info.Size() < preambleSize {
		f.Close()
		return nil, errs.New(errs.KindStorage, "page file missing size preamble")
	}
	pf := &File{f: f, freeIDs: btree.NewOrderedG[uint64](freeListDegree)}
	if err := pf.mmapSize(info.Size()); err != nil {
		f.Close()
		return nil, err
	}
	pf.pageSize = binary.LittleEndian.Uint32(pf.mm[0:preambleSize])
	if err := pf.readMeta(); err != nil {
		f.Close()
		return nil, err
	}
	if err := pf.loadFreeIDs(); err != nil {
		f.Close()
		return nil, err
	}
	return pf, nil
}

// loadFreeIDs walks the on-disk free-list chain once, populating the
// in-memory ordered index used by AllocatePage.
func (pf *File) loadFreeIDs() error {
	for id := pf.freeHead; id != noFreePage; {
		start, end := pf.pageBounds(id)
		freed, err := Decode(pf.mm[start:end])
		if err != nil {
			return err
		}
		pf.freeIDs.ReplaceOrInsert(id)
		id = binary.LittleEndian.Uint64(freed.Payload[0:8])
	}
	return nil
}

func (pf *File) mmapSize(size int64) error {
	if pf.mm != nil {
		if err := pf.mm.Unmap(); err != nil {
			return errs.Wrap(errs.KindStorage, "unmap page file", err)
		}
	}
	mm, err := mmap.MapRegion(pf.f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		return errs.Wrap(errs.KindStorage, "mmap page file", err)
	}
	pf.mm = mm
	return nil
}

// growTo extends the file (and remaps it) to hold at least nPages pages
// plus the fixed size preamble.
func (pf *File) growTo(nPages uint64) error {
	want := int64(preambleSize) + int64(nPages)*int64(pf.pageSizeOrDefault())
	info, err := pf.f.Stat()
	if err != nil {
		return errs.Wrap(errs.KindStorage, "stat page file", err)
	}
	if info.Size() >= want {
		if pf.mm == nil {
			return pf.mmapSize(info.Size())
		}
		return nil
	}
	if err := pf.f.Truncate(want); err != nil {
		return errs.Wrap(errs.KindStorage, "grow page file", err)
	}
	return pf.mmapSize(want)
}

func (pf *File) pageSizeOrDefault() uint32 {
	if pf.pageSize == 0 {
		return DefaultPageSize
	}
	return pf.pageSize
}

// PageSize returns the immutable page size configured at creation time.
func (pf *File) PageSize() uint32 { return pf.pageSizeOrDefault() }

func (pf *File) pageBounds(id uint64) (int64, int64) {
	sz := int64(pf.pageSizeOrDefault())
	off := int64(preambleSize) + int64(id)*sz
	return off, off + sz
}

// writeMeta serializes {highWater, freeHead, freeTail, pageSize} into page
// 0's payload.
func (pf *File) writeMeta() error {
	meta := New(metaPageID, TypeMeta, pf.pageSizeOrDefault())
	binary.LittleEndian.PutUint64(meta.Payload[0:8], pf.highWater)
	binary.LittleEndian.PutUint64(meta.Payload[8:16], pf.freeHead)
	binary.LittleEndian.PutUint64(meta.Payload[16:24], pf.freeTail)
	binary.LittleEndian.PutUint32(meta.Payload[24:28], pf.pageSizeOrDefault())
	return pf.writePageLocked(meta)
}

func (pf *File) readMeta() error {
	start, end := pf.pageBounds(metaPageID)
	if int64(len(pf.mm)) < end {
		return errs.New(errs.KindStorage, "page file too short for meta page")
	}
	p, err := Decode(pf.mm[start:end])
	if err != nil {
		return err
	}
	pf.highWater = binary.LittleEndian.Uint64(p.Payload[0:8])
	pf.freeHead = binary.LittleEndian.Uint64(p.Payload[8:16])
	pf.freeTail = binary.LittleEndian.Uint64(p.Payload[16:24])
	return nil
}

// ReadPage reads and verifies the page with the given id.
// ReadPage fails with a KindStorage corruption error when the checksum
// mismatches or id falls outside the allocated range (spec.md §4.1, §8 property 1).
func (pf *File) ReadPage(id uint64) (*Page, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if id >= pf.highWater {
		return nil, errs.New(errs.KindStorage, "page id out of allocated range").With(map[string]any{"page_id": id})
	}
	start, end := pf.pageBounds(id)
	if end > int64(len(pf.mm)) {
		return nil, errs.New(errs.KindStorage, "page id beyond mapped region").With(map[string]any{"page_id": id})
	}
	return Decode(pf.mm[start:end])
}

// WritePage writes p to disk at its own id. The write does not by itself
// establish durability; call Sync for that (spec.md §4.1).
func (pf *File) WritePage(p *Page) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.writePageLocked(p)
}

func (pf *File) writePageLocked(p *Page) error {
	if p.Header.ID >= pf.highWater {
		if err := pf.growTo(p.Header.ID + 1); err != nil {
			return err
		}
	}
	start, end := pf.pageBounds(p.Header.ID)
	if end > int64(len(pf.mm)) {
		if err := pf.growTo(p.Header.ID + 1); err != nil {
			return err
		}
		start, end = pf.pageBounds(p.Header.ID)
	}
	p.Encode(pf.mm[start:end])
	return nil
}

// AllocatePage returns a fresh page id, preferring reuse of the lowest
// previously-freed id (via the free-list page chain, ordered by freeIDs)
// before extending the file (spec.md §4.1).
func (pf *File) AllocatePage() (uint64, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if id, ok := pf.freeIDs.Min(); ok {
		if err := pf.spliceFreeLocked(id); err != nil {
			return 0, err
		}
		pf.freeIDs.Delete(id)
		if err := pf.writeMeta(); err != nil {
			return 0, err
		}
		return id, nil
	}

	id := pf.highWater
	pf.highWater++
	if err := pf.growTo(pf.highWater); err != nil {
		pf.highWater--
		return 0, err
	}
	if err := pf.writeMeta(); err != nil {
		return 0, err
	}
	return id, nil
}

// spliceFreeLocked removes id from the doubly-linked free-list chain,
// patching its neighbors' next/prev pointers (or the chain head/tail) so an
// id anywhere in the chain, not just the head, can be reclaimed in O(1).
func (pf *File) spliceFreeLocked(id uint64) error {
	start, end := pf.pageBounds(id)
	node, err := Decode(pf.mm[start:end])
	if err != nil {
		return err
	}
	next := binary.LittleEndian.Uint64(node.Payload[0:8])
	prev := binary.LittleEndian.Uint64(node.Payload[8:16])

	if prev == noFreePage {
		pf.freeHead = next
	} else {
		pstart, pend := pf.pageBounds(prev)
		pnode, err := Decode(pf.mm[pstart:pend])
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(pnode.Payload[0:8], next)
		if err := pf.writePageLocked(pnode); err != nil {
			return err
		}
	}
	if next == noFreePage {
		pf.freeTail = prev
	} else {
		nstart, nend := pf.pageBounds(next)
		nnode, err := Decode(pf.mm[nstart:nend])
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(nnode.Payload[8:16], prev)
		if err := pf.writePageLocked(nnode); err != nil {
			return err
		}
	}
	return nil
}

// FreePage pushes id onto the head of the free-list chain and into the
// in-memory ordered index, for reuse by AllocatePage.
func (pf *File) FreePage(id uint64) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if id == metaPageID {
		return errs.New(errs.KindStorage, "cannot free the metadata page")
	}
	freed := New(id, TypeData, pf.pageSizeOrDefault())
	binary.LittleEndian.PutUint64(freed.Payload[0:8], pf.freeHead) // next
	binary.LittleEndian.PutUint64(freed.Payload[8:16], noFreePage) // prev
	if err := pf.writePageLocked(freed); err != nil {
		return err
	}
	if pf.freeHead != noFreePage {
		hstart, hend := pf.pageBounds(pf.freeHead)
		head, err := Decode(pf.mm[hstart:hend])
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(head.Payload[8:16], id)
		if err := pf.writePageLocked(head); err != nil {
			return err
		}
	} else {
		pf.freeTail = id
	}
	pf.freeHead = id
	pf.freeIDs.ReplaceOrInsert(id)
	return pf.writeMeta()
}

// HighWaterMark returns the number of page ids ever allocated (including freed ones).
func (pf *File) HighWaterMark() uint64 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.highWater
}

// Sync durably flushes file contents to stable storage. It is the only
// operation in this package that establishes durability (spec.md §4.1).
func (pf *File) Sync() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if err := pf.mm.Flush(); err != nil {
		return errs.Wrap(errs.KindStorage, "flush mmap", err)
	}
	if err := pf.f.Sync(); err != nil {
		return errs.Wrap(errs.KindStorage, "fsync page file", err)
	}
	return nil
}

// Close unmaps and closes the underlying file.
func (pf *File) Close() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pf.mm != nil {
		if err := pf.mm.Unmap(); err != nil {
			return errs.Wrap(errs.KindStorage, "unmap page file", err)
		}
	}
	return pf.f.Close()
}
