// Package wal implements the append-only write-ahead log described in
// spec.md §4.3 and §6 (C3): durability via grouped fsync, and crash recovery
// by replaying redo records whose LSN exceeds what a page already reflects.
package wal

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/internal/mathutil"
)

// Magic identifies a dotlanth WAL file.
const Magic uint32 = 0x444f5457 // "DOTW"

// headerSize is the fixed size of the file header: magic + 16-byte db id.
const headerSize = 4 + 16

// Record is one WAL entry: the redo image for a single page mutation
// (spec.md §3 "WAL Record"). Checksum covers every other field.
type Record struct {
	LSN      uint64
	TxnID    uint64
	PageID   uint64
	Redo     []byte
	Checksum uint32
}

func (r *Record) computeChecksum() uint32 {
	buf := make([]byte, 24+len(r.Redo))
	binary.LittleEndian.PutUint64(buf[0:8], r.LSN)
	binary.LittleEndian.PutUint64(buf[8:16], r.TxnID)
	binary.LittleEndian.PutUint64(buf[16:24], r.PageID)
	copy(buf[24:], r.Redo)
	return crc32.ChecksumIEEE(buf)
}

// Log is an append-only, fsync-batched redo log. Writes are buffered; a
// record is durable only after Sync returns (spec.md §4.3, §5 "WAL-before-data").
type Log struct {
	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	nextLSN uint64
	dbID    [16]byte
}

// Create initializes a new WAL file, writing the file header.
func Create(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "create wal file", err)
	}
	id := uuid.New()
	l := &Log{f: f, w: bufio.NewWriter(f), nextLSN: 1, dbID: id}
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	copy(hdr[4:20], id[:])
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindStorage, "write wal header", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindStorage, "fsync wal header", err)
	}
	return l, nil
}

// Open opens an existing WAL file for further appends, positioning past any
// trailing torn write (see Recover).
func Open(path string) (*Log, []Record, error) {
	records, dbID, nextLSN, validBytes, err := Recover(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindStorage, "reopen wal file", err)
	}
	if err := f.Truncate(validBytes); err != nil {
		f.Close()
		return nil, nil, errs.Wrap(errs.KindStorage, "truncate torn wal tail", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, nil, errs.Wrap(errs.KindStorage, "seek wal file", err)
	}
	return &Log{f: f, w: bufio.NewWriter(f), nextLSN: nextLSN, dbID: dbID}, records, nil
}

// Append buffers a redo record and returns its assigned LSN. The record is
// not yet durable; call Sync to fsync it (spec.md §4.3, §5).
func (l *Log) Append(txnID, pageID uint64, redo []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := &Record{LSN: l.nextLSN, TxnID: txnID, PageID: pageID, Redo: redo}
	rec.Checksum = rec.computeChecksum()
	next, overflow := mathutil.SafeAdd(l.nextLSN, 1)
	if overflow {
		return 0, errs.New(errs.KindStorage, "LSN wraparound").With(map[string]any{"lsn": l.nextLSN})
	}
	l.nextLSN = next

	body := make([]byte, 24+len(rec.Redo)+4)
	binary.LittleEndian.PutUint64(body[0:8], rec.LSN)
	binary.LittleEndian.PutUint64(body[8:16], rec.TxnID)
	binary.LittleEndian.PutUint64(body[16:24], rec.PageID)
	copy(body[24:], rec.Redo)
	binary.LittleEndian.PutUint32(body[24+len(rec.Redo):], rec.Checksum)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := l.w.Write(lenBuf[:]); err != nil {
		return 0, errs.Wrap(errs.KindStorage, "buffer wal record length", err)
	}
	if _, err := l.w.Write(body); err != nil {
		return 0, errs.Wrap(errs.KindStorage, "buffer wal record", err)
	}
	return rec.LSN, nil
}

// Sync flushes buffered records and fsyncs the file. Every record whose LSN
// is <= the returned LSN is durable (spec.md §8 property 2).
func (l *Log) Sync() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return 0, errs.Wrap(errs.KindStorage, "flush wal buffer", err)
	}
	if err := l.f.Sync(); err != nil {
		return 0, errs.Wrap(errs.KindStorage, "fsync wal file", err)
	}
	return l.nextLSN - 1, nil
}

// Close flushes, syncs and closes the WAL file.
func (l *Log) Close() error {
	if _, err := l.Sync(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// Recover scans the WAL from the start (no checkpoint support in this
// implementation; every record is replayed relative to each page's stored
// LSN), parsing length-prefixed records and stopping at the first truncated
// or corrupt record (a "torn write", spec.md §4.3). It returns every valid
// record, the database id, the next LSN to assign, and the byte offset up
// to which the file is well-formed (used to truncate the torn tail).
func Recover(path string) ([]Record, [16]byte, uint64, int64, error) {
	var dbID [16]byte
	f, err := os.Open(path)
	if err != nil {
		return nil, dbID, 1, 0, errs.Wrap(errs.KindStorage, "open wal for recovery", err)
	}
	defer f.Close()

	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return nil, dbID, 1, 0, errs.Wrap(errs.KindStorage, "read wal header", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != Magic {
		return nil, dbID, 1, 0, errs.New(errs.KindStorage, "wal header magic mismatch")
	}
	copy(dbID[:], hdr[4:20])

	var records []Record
	nextLSN := uint64(1)
	validBytes := int64(headerSize)

	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			break // EOF or short read: stop at last valid boundary
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if n < 24+4 {
			break // malformed length: torn write
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(f, body); err != nil {
			break // torn write: partial record
		}
		rec := Record{
			LSN:      binary.LittleEndian.Uint64(body[0:8]),
			TxnID:    binary.LittleEndian.Uint64(body[8:16]),
			PageID:   binary.LittleEndian.Uint64(body[16:24]),
			Redo:     append([]byte(nil), body[24:n-4]...),
			Checksum: binary.LittleEndian.Uint32(body[n-4:]),
		}
		if rec.computeChecksum() != rec.Checksum {
			break // corrupt record: treat as torn write, stop here
		}
		records = append(records, rec)
		if !mathutil.LSNLess(rec.LSN, nextLSN) {
			next, overflow := mathutil.SafeAdd(rec.LSN, 1)
			if overflow {
				break // LSN wraparound within a single database lifetime is not permitted (spec.md §4.1)
			}
			nextLSN = next
		}
		validBytes += int64(4 + n)
	}

	return records, dbID, nextLSN, validBytes, nil
}
