package state

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/synerthink/dotlanth/storage/wal"
)

// EventKind tags the three audit events spec.md §4.6 requires: "every
// proposal, validation result, finalization outcome is appended".
type EventKind string

const (
	EventProposed  EventKind = "proposed"
	EventValidated EventKind = "validated"
	EventFinalized EventKind = "finalized"
)

// Entry is one immutable audit log record.
type Entry struct {
	Kind         EventKind
	TransitionID string
	Status       Status
	Details      any
	Timestamp    time.Time
}

// AuditLog buffers entries in memory and persists them asynchronously via a
// bounded channel drained by a single worker goroutine writing redo records
// to a storage/wal.Log (spec.md §4.6: "buffered in memory and persisted
// asynchronously"). Ordering is preserved: proposals precede validations
// precede finalizations for a given transition id (spec.md §5), since the
// channel and the in-memory buffer are both FIFO and Append is the only
// producer path.
type AuditLog struct {
	mu      sync.Mutex
	buffer  []Entry
	ch      chan Entry
	wg      sync.WaitGroup
	log     *wal.Log
	logger  *zap.Logger
	nextTxn uint64
}

// NewAuditLog starts an audit log whose worker persists entries to w. The
// channel capacity bounds how far persistence may lag the in-memory buffer
// before Append blocks, per spec.md §5's back-pressure expectations for
// shared resources.
func NewAuditLog(w *wal.Log, logger *zap.Logger) *AuditLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AuditLog{
		ch:     make(chan Entry, 256),
		log:    w,
		logger: logger,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// NewDiscardAuditLog returns an AuditLog that keeps the in-memory buffer but
// never persists, for tests and callers that don't need durability.
func NewDiscardAuditLog() *AuditLog {
	a := &AuditLog{ch: make(chan Entry, 256)}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AuditLog) run() {
	defer a.wg.Done()
	for e := range a.ch {
		a.mu.Lock()
		a.buffer = append(a.buffer, e)
		a.mu.Unlock()

		if a.log == nil {
			continue
		}
		payload, err := json.Marshal(entryWire{
			Kind: e.Kind, TransitionID: e.TransitionID, Status: e.Status,
			Timestamp: e.Timestamp,
		})
		if err != nil {
			a.logger.Warn("audit entry marshal failed", zap.Error(err))
			continue
		}
		a.nextTxn++
		if _, err := a.log.Append(a.nextTxn, 0, payload); err != nil {
			a.logger.Error("audit entry persist failed", zap.Error(err))
		}
	}
}

type entryWire struct {
	Kind         EventKind
	TransitionID string
	Status       Status
	Timestamp    time.Time
}

// Append enqueues e for in-memory buffering and asynchronous persistence.
func (a *AuditLog) Append(e Entry) {
	a.ch <- e
}

// Entries returns a snapshot of the in-memory buffer.
func (a *AuditLog) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Entry(nil), a.buffer...)
}

// Close stops the worker goroutine once all queued entries have drained.
func (a *AuditLog) Close() {
	close(a.ch)
	a.wg.Wait()
}
