// Package engine implements the storage engine (C4, spec.md §4.4): it
// coordinates the page file (C1), buffer pool (C2) and write-ahead log (C3)
// behind a single read_page/write_page/allocate_page/free_page/flush/close
// surface, plus a small root-directory page used by higher layers (the
// trie's blob store, collection manifests) to find their own persisted
// roots across restarts.
package engine

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/internal/mathutil"
	"github.com/synerthink/dotlanth/storage/buffer"
	"github.com/synerthink/dotlanth/storage/page"
	"github.com/synerthink/dotlanth/storage/wal"
)

// rootDirectoryPageID is the fixed id of the page that holds named root
// pointers for higher layers. The engine allocates it immediately after
// creation, guaranteeing it is always page id 1.
const rootDirectoryPageID = 1

// Options configures a new or reopened storage engine.
type Options struct {
	DataDir        string
	PageSize       uint32
	BufferPoolSize int
	// MaxConcurrentPins bounds how many goroutines may have a page pin
	// in flight at once, independent of the buffer pool's own resident-frame
	// capacity. Defaults to BufferPoolSize.
	MaxConcurrentPins int
	Logger            *zap.Logger
}

// Engine is the coordinating storage layer (C4).
type Engine struct {
	mu sync.Mutex

	file *page.File
	log  *wal.Log
	pool *buffer.Pool
	pins *semaphore.Weighted

	logger *zap.Logger
	roots  map[byte]uint64
}

func pagesPath(dataDir string) string { return filepath.Join(dataDir, "data.pages") }
func walPath(dataDir string) string   { return filepath.Join(dataDir, "data.wal") }

// Create initializes a brand-new database directory.
func Create(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BufferPoolSize <= 0 {
		opts.BufferPoolSize = 256
	}
	if opts.MaxConcurrentPins <= 0 {
		opts.MaxConcurrentPins = opts.BufferPoolSize
	}
	pf, err := page.Create(pagesPath(opts.DataDir), opts.PageSize)
	if err != nil {
		return nil, err
	}
	l, err := wal.Create(walPath(opts.DataDir))
	if err != nil {
		return nil, err
	}
	pool, err := buffer.New(pf, l, opts.BufferPoolSize, opts.Logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		file: pf, log: l, pool: pool, logger: opts.Logger, roots: make(map[byte]uint64),
		pins: semaphore.NewWeighted(int64(opts.MaxConcurrentPins)),
	}

	id, err := pf.AllocatePage()
	if err != nil {
		return nil, err
	}
	if id != rootDirectoryPageID {
		return nil, errs.New(errs.KindStorage, "root directory page allocation invariant violated")
	}
	if err := e.writeRootsLocked(); err != nil {
		return nil, err
	}
	if err := e.flushLocked(); err != nil {
		return nil, err
	}
	return e, nil
}

// Open reopens an existing database directory, replaying the WAL.
func Open(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BufferPoolSize <= 0 {
		opts.BufferPoolSize = 256
	}
	if opts.MaxConcurrentPins <= 0 {
		opts.MaxConcurrentPins = opts.BufferPoolSize
	}
	pf, err := page.Open(pagesPath(opts.DataDir))
	if err != nil {
		return nil, err
	}
	l, records, err := wal.Open(walPath(opts.DataDir))
	if err != nil {
		return nil, err
	}
	// Recovery: reapply redo records whose LSN exceeds the page's on-disk
	// LSN (spec.md §4.3 "Recovery path").
	for _, rec := range records {
		pg, err := pf.ReadPage(rec.PageID)
		if err != nil {
			continue // page may not yet exist if it was freed/truncated; skip
		}
		if mathutil.LSNLess(pg.Header.LSN, rec.LSN) {
			pg.Payload = append([]byte(nil), rec.Redo...)
			pg.Header.LSN = rec.LSN
			if err := pf.WritePage(pg); err != nil {
				return nil, err
			}
		}
	}
	if err := pf.Sync(); err != nil {
		return nil, err
	}

	pool, err := buffer.New(pf, l, opts.BufferPoolSize, opts.Logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		file: pf, log: l, pool: pool, logger: opts.Logger, roots: make(map[byte]uint64),
		pins: semaphore.NewWeighted(int64(opts.MaxConcurrentPins)),
	}
	if err := e.readRoots(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) readRoots() error {
	pg, err := e.file.ReadPage(rootDirectoryPageID)
	if err != nil {
		return err
	}
	count := binary.LittleEndian.Uint32(pg.Payload[0:4])
	off := 4
	for i := uint32(0); i < count; i++ {
		key := pg.Payload[off]
		id := binary.LittleEndian.Uint64(pg.Payload[off+1 : off+9])
		e.roots[key] = id
		off += 9
	}
	return nil
}

func (e *Engine) writeRootsLocked() error {
	pg := page.New(rootDirectoryPageID, page.TypeMeta, e.file.PageSize())
	binary.LittleEndian.PutUint32(pg.Payload[0:4], uint32(len(e.roots)))
	off := 4
	for key, id := range e.roots {
		pg.Payload[off] = key
		binary.LittleEndian.PutUint64(pg.Payload[off+1:off+9], id)
		off += 9
	}
	return e.file.WritePage(pg)
}

// GetRoot returns the persisted page id for a named root (e.g. the trie
// blob store manifest), if one has been set.
func (e *Engine) GetRoot(key byte) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.roots[key]
	return id, ok
}

// SetRoot persists a named root pointer.
func (e *Engine) SetRoot(key byte, pageID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roots[key] = pageID
	return e.writeRootsLocked()
}

// AllocatePage allocates a fresh page id.
func (e *Engine) AllocatePage() (uint64, error) { return e.file.AllocatePage() }

// FreePage releases a page id for reuse.
func (e *Engine) FreePage(id uint64) error { return e.file.FreePage(id) }

// ReadPage pins, reads and unpins a page through the buffer pool. Concurrent
// pin acquisition across the engine is bounded by MaxConcurrentPins,
// independent of the buffer pool's own resident-frame capacity.
func (e *Engine) ReadPage(id uint64) (*page.Page, error) {
	if err := e.pins.Acquire(context.Background(), 1); err != nil {
		return nil, errs.Wrap(errs.KindConcurrency, "acquire pin slot", err)
	}
	defer e.pins.Release(1)

	pg, err := e.pool.Pin(id)
	if err != nil {
		return nil, err
	}
	cp := &page.Page{Header: pg.Header, Payload: append([]byte(nil), pg.Payload...)}
	if err := e.pool.Unpin(id, false); err != nil {
		return nil, err
	}
	return cp, nil
}

// WritePage appends a WAL redo record for pg's new payload, then pins,
// mutates and unpins the resident frame dirty, enforcing WAL-before-data on
// the eventual flush (spec.md §4.2, §5).
func (e *Engine) WritePage(pg *page.Page) error {
	if err := e.pins.Acquire(context.Background(), 1); err != nil {
		return errs.Wrap(errs.KindConcurrency, "acquire pin slot", err)
	}
	defer e.pins.Release(1)

	if _, err := e.pool.Pin(pg.Header.ID); err != nil {
		// Not resident yet: write through directly, the first pin will load it.
		if err := e.file.WritePage(pg); err != nil {
			return err
		}
	} else {
		if err := e.pool.Unpin(pg.Header.ID, false); err != nil {
			return err
		}
	}
	lsn, err := e.log.Append(0, pg.Header.ID, pg.Payload)
	if err != nil {
		return err
	}
	resident, err := e.pool.Pin(pg.Header.ID)
	if err != nil {
		return err
	}
	resident.Payload = append([]byte(nil), pg.Payload...)
	resident.Header.LSN = lsn
	e.pool.NotifyWrite(pg.Header.ID, lsn)
	return e.pool.Unpin(pg.Header.ID, true)
}

// Flush durably writes every dirty page and fsyncs the WAL.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	if _, err := e.log.Sync(); err != nil {
		return err
	}
	return e.file.Sync()
}

// Close flushes and releases all resources. Close fails with
// InvalidOperation (KindConcurrency) if outstanding pins exist (spec.md §4.4).
func (e *Engine) Close() error {
	if e.pool.OutstandingPins() > 0 {
		return errs.New(errs.KindConcurrency, "close with outstanding pins")
	}
	if err := e.Flush(); err != nil {
		return err
	}
	if err := e.log.Close(); err != nil {
		return err
	}
	return e.file.Close()
}

// PageSize returns the engine's fixed page size.
func (e *Engine) PageSize() uint32 { return e.file.PageSize() }
