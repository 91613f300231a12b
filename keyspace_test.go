package keyspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keyspace/internal/partition"
)

func newTestKeyspace(t *testing.T) *Keyspace {
	t.Helper()
	ks, err := Create(t.TempDir(), WithCompactionWorkers(0), WithFlushInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return ks
}

func TestCreateMakesJournalAndPartitionsDirs(t *testing.T) {
	dir := t.TempDir()
	ks, err := Create(dir, WithCompactionWorkers(0), WithFlushInterval(0))
	require.NoError(t, err)
	defer ks.Close()

	assert.DirExists(t, filepath.Join(dir, journalDirName))
	assert.DirExists(t, filepath.Join(dir, partitionsDirName))
}

func TestOpenPartitionAndLookup(t *testing.T) {
	ks := newTestKeyspace(t)

	h, err := ks.OpenPartition("users", partition.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "users", h.Name())

	got, ok := ks.Partition("users")
	require.True(t, ok)
	assert.Same(t, h, got)

	_, ok = ks.Partition("missing")
	assert.False(t, ok)
}

func TestOpenPartitionDuplicateNameFails(t *testing.T) {
	ks := newTestKeyspace(t)
	_, err := ks.OpenPartition("users", partition.DefaultConfig())
	require.NoError(t, err)

	_, err = ks.OpenPartition("users", partition.DefaultConfig())
	assert.ErrorIs(t, err, ErrPartitionExists)
}

func TestOpenPartitionRejectsEmptyName(t *testing.T) {
	ks := newTestKeyspace(t)
	_, err := ks.OpenPartition("", partition.DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListPartitionsSorted(t *testing.T) {
	ks := newTestKeyspace(t)
	_, err := ks.OpenPartition("zebra", partition.DefaultConfig())
	require.NoError(t, err)
	_, err = ks.OpenPartition("alpha", partition.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "zebra"}, ks.ListPartitions())
}

func TestDropPartitionRemovesIt(t *testing.T) {
	ks := newTestKeyspace(t)
	_, err := ks.OpenPartition("users", partition.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, ks.DropPartition("users"))
	_, ok := ks.Partition("users")
	assert.False(t, ok)

	err = ks.DropPartition("users")
	assert.ErrorIs(t, err, ErrPartitionNotFound)
}

func TestReopenRestoresJournaledData(t *testing.T) {
	dir := t.TempDir()

	ks, err := Create(dir, WithCompactionWorkers(0), WithFlushInterval(0))
	require.NoError(t, err)
	_, err = ks.OpenPartition("users", partition.DefaultConfig())
	require.NoError(t, err)

	wtx, err := ks.Begin()
	require.NoError(t, err)
	require.NoError(t, wtx.Insert("users", []byte("alice"), []byte("30")))
	require.NoError(t, wtx.Insert("users", []byte("bob"), []byte("25")))
	require.NoError(t, wtx.Commit())
	require.NoError(t, ks.Close())

	ks2, err := Open(dir, WithCompactionWorkers(0), WithFlushInterval(0))
	require.NoError(t, err)
	defer ks2.Close()

	rtx := ks2.View()
	defer rtx.Close()

	v, err := rtx.Get("users", []byte("alice"))
	require.NoError(t, err)
	assert.Equal(t, "30", string(v))

	v, err = rtx.Get("users", []byte("bob"))
	require.NoError(t, err)
	assert.Equal(t, "25", string(v))
}
