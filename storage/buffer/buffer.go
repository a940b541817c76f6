// Package buffer implements the bounded in-memory page cache described in
// spec.md §4.2 and §6 (C2): pinned frames are never evicted, and a dirty
// frame may only reach disk after its governing WAL record is durable
// (the "WAL-before-data" rule, spec.md §5).
package buffer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"

	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/storage/page"
	"github.com/synerthink/dotlanth/storage/wal"
)

// frame holds one cached page plus its eviction/dirty bookkeeping
// (spec.md §3 "Buffer Pool Frame").
type frame struct {
	page     *page.Page
	dirty    bool
	pinCount int32
	lastLSN  uint64 // LSN of the WAL record covering this frame's latest write
}

// Pool is a bounded page cache with pin-aware LRU eviction. It is safe for
// concurrent use (spec.md §5).
type Pool struct {
	mu sync.Mutex

	file     *page.File
	log      *wal.Log
	capacity int
	logger   *zap.Logger

	frames     map[uint64]*frame
	order      *lru.LRU[uint64, struct{}] // recency order for eviction candidate selection
	durableLSN uint64
}

// New creates a buffer pool of the given capacity backed by file and log.
func New(file *page.File, log *wal.Log, capacity int, logger *zap.Logger) (*Pool, error) {
	if capacity <= 0 {
		return nil, errs.New(errs.KindResource, "buffer pool capacity must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	order, err := lru.NewLRU[uint64, struct{}](capacity, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindResource, "create buffer pool lru", err)
	}
	return &Pool{
		file:     file,
		log:      log,
		capacity: capacity,
		logger:   logger,
		frames:   make(map[uint64]*frame),
		order:    order,
	}, nil
}

// Pin loads (if necessary) and pins the page with the given id, returning it
// for the caller to read or mutate in place. Pin never evicts a pinned
// frame, and fails with BufferPoolFull if no evictable frame exists and the
// pool is at capacity.
func (p *Pool) Pin(id uint64) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fr, ok := p.frames[id]; ok {
		fr.pinCount++
		p.order.Add(id, struct{}{})
		return fr.page, nil
	}

	if len(p.frames) >= p.capacity {
		if err := p.evictLocked(); err != nil {
			return nil, err
		}
	}

	pg, err := p.file.ReadPage(id)
	if err != nil {
		return nil, err
	}
	p.frames[id] = &frame{page: pg, pinCount: 1}
	p.order.Add(id, struct{}{})
	return pg, nil
}

// Unpin releases one pin on id. If dirty is true the frame is marked dirty;
// NotifyWrite should be called beforehand with the LSN of the WAL record
// that covers the mutation, so eviction/flush can enforce WAL-before-data.
func (p *Pool) Unpin(id uint64, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	fr, ok := p.frames[id]
	if !ok {
		return errs.New(errs.KindConcurrency, "unpin of page not resident in pool").With(map[string]any{"page_id": id})
	}
	if fr.pinCount <= 0 {
		return errs.New(errs.KindConcurrency, "unpin without matching pin").With(map[string]any{"page_id": id})
	}
	fr.pinCount--
	if dirty {
		fr.dirty = true
	}
	return nil
}

// NotifyWrite records the LSN of the WAL record governing id's latest
// modification. It must be called before Unpin(id, true).
func (p *Pool) NotifyWrite(id uint64, lsn uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fr, ok := p.frames[id]; ok {
		fr.lastLSN = lsn
	}
}

// ensureDurableLocked fsyncs the WAL if any resident dirty frame's governing
// LSN is not yet known to be durable (WAL-before-data, spec.md §4.2/§5).
func (p *Pool) ensureDurableLocked(need uint64) error {
	if need <= p.durableLSN {
		return nil
	}
	durable, err := p.log.Sync()
	if err != nil {
		return err
	}
	p.durableLSN = durable
	if need > p.durableLSN {
		return errs.New(errs.KindStorage, "wal did not reach required durability").
			With(map[string]any{"need_lsn": need, "durable_lsn": p.durableLSN})
	}
	return nil
}

// flushFrameLocked writes a dirty frame to disk after ensuring durability.
func (p *Pool) flushFrameLocked(id uint64, fr *frame) error {
	if !fr.dirty {
		return nil
	}
	if err := p.ensureDurableLocked(fr.lastLSN); err != nil {
		return err
	}
	if err := p.file.WritePage(fr.page); err != nil {
		return err
	}
	fr.dirty = false
	return nil
}

// FlushAll writes every dirty frame to disk, each only after its governing
// WAL record is durable.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, fr := range p.frames {
		if err := p.flushFrameLocked(id, fr); err != nil {
			return err
		}
	}
	return nil
}

// EvictCandidate returns the id of a frame that is currently evictable
// (pin count 0), in least-recently-used order, without evicting it.
func (p *Pool) EvictCandidate() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evictCandidateLocked()
}

func (p *Pool) evictCandidateLocked() (uint64, bool) {
	for _, id := range p.order.Keys() {
		if fr, ok := p.frames[id]; ok && fr.pinCount == 0 {
			return id, true
		}
	}
	return 0, false
}

// evictLocked evicts one unpinned frame, flushing it first if dirty. It
// fails with BufferPoolFull (KindResource) if every resident frame is
// pinned (spec.md §4.2 failure semantics).
func (p *Pool) evictLocked() error {
	id, ok := p.evictCandidateLocked()
	if !ok {
		return errs.New(errs.KindResource, "buffer pool full: no evictable frame")
	}
	fr := p.frames[id]
	if err := p.flushFrameLocked(id, fr); err != nil {
		return err
	}
	delete(p.frames, id)
	p.order.Remove(id)
	return nil
}

// Resident reports how many frames are currently cached.
func (p *Pool) Resident() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

// OutstandingPins returns the sum of all live pin counts across resident
// frames, used by the storage engine to refuse Close while pins are held
// (spec.md §4.4).
func (p *Pool) OutstandingPins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, fr := range p.frames {
		total += int(fr.pinCount)
	}
	return total
}
