package page

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAllocateReadWrite(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "db.pages"), 512)
	require.NoError(t, err)
	defer f.Close()

	id, err := f.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	p := New(id, TypeData, f.PageSize())
	copy(p.Payload, []byte("hello world"))
	require.NoError(t, f.WritePage(p))
	require.NoError(t, f.Sync())

	got, err := f.ReadPage(id)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got.Payload[:len("hello world")])
}

func TestReadPageOutOfRange(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "db.pages"), 512)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.ReadPage(999)
	require.Error(t, err)
}

func TestChecksumCorruptionDetected(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "db.pages"), 512)
	require.NoError(t, err)
	defer f.Close()

	id, err := f.AllocatePage()
	require.NoError(t, err)
	p := New(id, TypeData, f.PageSize())
	copy(p.Payload, []byte("data"))
	require.NoError(t, f.WritePage(p))

	start, _ := f.pageBounds(id)
	f.mm[start+HeaderSize] ^= 0xFF // flip a payload byte after the checksum was computed

	_, err = f.ReadPage(id)
	require.Error(t, err)
}

func TestAllocateReusesFreedPages(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "db.pages"), 512)
	require.NoError(t, err)
	defer f.Close()

	id1, err := f.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, f.FreePage(id1))

	id2, err := f.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestAllocatePrefersLowestFreedID(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "db.pages"), 512)
	require.NoError(t, err)
	defer f.Close()

	var ids []uint64
	for i := 0; i < 3; i++ {
		id, err := f.AllocatePage()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// Free out of order: freeing the highest id first means the LIFO chain
	// head is ids[2], but the lowest freed id is ids[0].
	require.NoError(t, f.FreePage(ids[2]))
	require.NoError(t, f.FreePage(ids[0]))
	require.NoError(t, f.FreePage(ids[1]))

	reused, err := f.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, ids[0], reused)

	reused2, err := f.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, ids[1], reused2)
}

func TestReopenPreservesFreeList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.pages")
	f, err := Create(path, 512)
	require.NoError(t, err)

	var ids []uint64
	for i := 0; i < 3; i++ {
		id, err := f.AllocatePage()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, f.FreePage(ids[1]))
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	f2, err := Open(path)
	require.NoError(t, err)
	defer f2.Close()

	reused, err := f2.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, ids[1], reused)
}

func TestReopenPreservesState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.pages")
	f, err := Create(path, 512)
	require.NoError(t, err)

	id, err := f.AllocatePage()
	require.NoError(t, err)
	p := New(id, TypeData, f.PageSize())
	copy(p.Payload, []byte("persisted"))
	require.NoError(t, f.WritePage(p))
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	f2, err := Open(path)
	require.NoError(t, err)
	defer f2.Close()

	got, err := f2.ReadPage(id)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), got.Payload[:len("persisted")])
}
