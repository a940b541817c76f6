// Package page implements the fixed-size paged file format described in
// spec.md §4.1 and §6 (C1): checksummed headers, CRC-32 payload integrity
// and page 0 as a metadata page carrying the allocation high-water mark and
// free-list head.
package page

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/synerthink/dotlanth/errs"
)

// Type distinguishes the four page kinds named in spec.md §3.
type Type uint8

const (
	TypeData Type = iota + 1
	TypeIndex
	TypeMeta
	TypeWAL
)

// Magic is the fixed 4-byte sentinel written into every page header.
const Magic uint32 = 0x444f5442 // "DOTB"

// HeaderSize is the on-disk size, in bytes, of a Header.
const HeaderSize = 4 + 8 + 1 + 4 + 8 // magic + id + type + checksum + lsn

// DefaultPageSize is used when a database is created without an explicit size.
const DefaultPageSize = 4096

// Header is the fixed header every page carries (spec.md §3 "Page").
type Header struct {
	Magic    uint32
	ID       uint64
	Type     Type
	Checksum uint32 // CRC-32 of the payload, excluding the header itself
	LSN      uint64 // last log sequence number that touched this page
}

// Page is one fixed-size unit of on-disk storage: a Header plus a payload
// whose length is PageSize-HeaderSize.
type Page struct {
	Header  Header
	Payload []byte
}

// New allocates a zeroed page of the given id, type and size.
func New(id uint64, typ Type, pageSize uint32) *Page {
	return &Page{
		Header:  Header{Magic: Magic, ID: id, Type: typ},
		Payload: make([]byte, int(pageSize)-HeaderSize),
	}
}

// Encode serializes the page (header + payload) into buf, which must be at
// least len(Payload)+HeaderSize bytes. The checksum is recomputed over the
// payload before encoding.
func (p *Page) Encode(buf []byte) {
	p.Header.Checksum = crc32.ChecksumIEEE(p.Payload)
	binary.LittleEndian.PutUint32(buf[0:4], p.Header.Magic)
	binary.LittleEndian.PutUint64(buf[4:12], p.Header.ID)
	buf[12] = byte(p.Header.Type)
	binary.LittleEndian.PutUint32(buf[13:17], p.Header.Checksum)
	binary.LittleEndian.PutUint64(buf[17:25], p.Header.LSN)
	copy(buf[HeaderSize:], p.Payload)
}

// Decode parses a page out of buf, which must be exactly pageSize bytes.
// Decode fails with a storage-corruption error (KindStorage) when the magic
// is wrong or the stored checksum disagrees with the recomputed payload
// checksum (spec.md §3 invariant, §8 property 1).
func Decode(buf []byte) (*Page, error) {
	if len(buf) < HeaderSize {
		return nil, errs.New(errs.KindStorage, "page buffer shorter than header")
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return nil, errs.New(errs.KindStorage, "page corruption: bad magic").With(map[string]any{"magic": magic})
	}
	p := &Page{
		Header: Header{
			Magic:    magic,
			ID:       binary.LittleEndian.Uint64(buf[4:12]),
			Type:     Type(buf[12]),
			Checksum: binary.LittleEndian.Uint32(buf[13:17]),
			LSN:      binary.LittleEndian.Uint64(buf[17:25]),
		},
		Payload: append([]byte(nil), buf[HeaderSize:]...),
	}
	if got := crc32.ChecksumIEEE(p.Payload); got != p.Header.Checksum {
		return nil, errs.New(errs.KindStorage, "page corruption: checksum mismatch").
			With(map[string]any{"page_id": p.Header.ID, "want": p.Header.Checksum, "got": got})
	}
	return p, nil
}
