package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendSyncDurability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")
	l, err := Create(path)
	require.NoError(t, err)

	lsn1, err := l.Append(1, 10, []byte("before"))
	require.NoError(t, err)
	lsn2, err := l.Append(1, 11, []byte("after"))
	require.NoError(t, err)
	require.Greater(t, lsn2, lsn1)

	durable, err := l.Sync()
	require.NoError(t, err)
	require.Equal(t, lsn2, durable)
	require.NoError(t, l.Close())

	_, records, err := Open(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(10), records[0].PageID)
	require.Equal(t, []byte("after"), records[1].Redo)
}

func TestRecoveryTruncatesTornWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "torn.wal")
	l, err := Create(path)
	require.NoError(t, err)
	_, err = l.Append(1, 1, []byte("ok"))
	require.NoError(t, err)
	_, err = l.Sync()
	require.NoError(t, err)
	require.NoError(t, l.f.Close())

	// Simulate a crash mid-write: append a partial record directly.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xFF, 0xFF, 0xFF, 0x7F, 0x01, 0x02})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, _, _, _, err := Recover(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
