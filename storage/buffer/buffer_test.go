package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotlanth/storage/page"
	"github.com/synerthink/dotlanth/storage/wal"
)

func setup(t *testing.T, capacity int) (*Pool, *page.File, *wal.Log) {
	t.Helper()
	dir := t.TempDir()
	pf, err := page.Create(filepath.Join(dir, "db.pages"), 256)
	require.NoError(t, err)
	l, err := wal.Create(filepath.Join(dir, "db.wal"))
	require.NoError(t, err)
	pool, err := New(pf, l, capacity, nil)
	require.NoError(t, err)
	return pool, pf, l
}

func TestPinUnpinDirtyFlush(t *testing.T) {
	pool, pf, l := setup(t, 4)
	id, err := pf.AllocatePage()
	require.NoError(t, err)

	pg, err := pool.Pin(id)
	require.NoError(t, err)
	copy(pg.Payload, []byte("dirty-data"))

	lsn, err := l.Append(1, id, pg.Payload)
	require.NoError(t, err)
	pool.NotifyWrite(id, lsn)
	require.NoError(t, pool.Unpin(id, true))

	require.NoError(t, pool.FlushAll())

	got, err := pf.ReadPage(id)
	require.NoError(t, err)
	require.Equal(t, []byte("dirty-data"), got.Payload[:len("dirty-data")])
}

func TestPinnedFrameNeverEvicted(t *testing.T) {
	pool, pf, _ := setup(t, 1)
	id1, err := pf.AllocatePage()
	require.NoError(t, err)
	_, err = pool.Pin(id1)
	require.NoError(t, err)

	id2, err := pf.AllocatePage()
	require.NoError(t, err)
	_, err = pool.Pin(id2)
	require.Error(t, err) // pool full, id1 still pinned
}

func TestUnpinWithoutPinFails(t *testing.T) {
	pool, _, _ := setup(t, 4)
	err := pool.Unpin(42, false)
	require.Error(t, err)
}
