package keyspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keyspace/internal/journal"
	"github.com/dreamware/keyspace/internal/partition"
)

func TestCommitAppliesAllPartitionsUnderOneSeqno(t *testing.T) {
	ks := newTestKeyspace(t)
	_, err := ks.OpenPartition("a", partition.DefaultConfig())
	require.NoError(t, err)
	_, err = ks.OpenPartition("b", partition.DefaultConfig())
	require.NoError(t, err)

	wtx, err := ks.Begin()
	require.NoError(t, err)
	require.NoError(t, wtx.Insert("a", []byte("k"), []byte("1")))
	require.NoError(t, wtx.Insert("b", []byte("k"), []byte("2")))
	require.NoError(t, wtx.Commit())

	ha, _ := ks.Partition("a")
	hb, _ := ks.Partition("b")

	va, ok := ha.Tree().Get([]byte("k"), ks.seqNo.Load())
	require.True(t, ok)
	vb, ok := hb.Tree().Get([]byte("k"), ks.seqNo.Load())
	require.True(t, ok)

	assert.Equal(t, "1", string(va))
	assert.Equal(t, "2", string(vb))
}

func TestCommitWithNoStagedWritesIsNoop(t *testing.T) {
	ks := newTestKeyspace(t)
	before := ks.seqNo.Load()

	wtx, err := ks.Begin()
	require.NoError(t, err)
	require.NoError(t, wtx.Commit())

	assert.Equal(t, before, ks.seqNo.Load())
}

func TestCommitBufferModeSkipsFlush(t *testing.T) {
	ks := newTestKeyspace(t)
	_, err := ks.OpenPartition("p", partition.DefaultConfig())
	require.NoError(t, err)

	wtx, err := ks.Begin()
	require.NoError(t, err)
	wtx.SetDurability(journal.Buffer)
	require.NoError(t, wtx.Insert("p", []byte("k"), []byte("v")))
	require.NoError(t, wtx.Commit())

	h, _ := ks.Partition("p")
	v, ok := h.Tree().Get([]byte("k"), ks.seqNo.Load())
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestCommitNotifiesCompactionOnThreshold(t *testing.T) {
	ks := newTestKeyspace(t)
	h, err := ks.OpenPartition("p", partition.Config{MaxMemtableSize: 1})
	require.NoError(t, err)

	wtx, err := ks.Begin()
	require.NoError(t, err)
	require.NoError(t, wtx.Insert("p", []byte("k"), []byte("v")))
	require.NoError(t, wtx.Commit())

	assert.Equal(t, 1, ks.compMgr.Len())
	assert.Equal(t, uint64(0), h.ApproxBytes(), "threshold crossing resets the byte estimate")
}

func TestBeginFailsOncePoisoned(t *testing.T) {
	ks := newTestKeyspace(t)
	ks.poisoned.Store(true)

	_, err := ks.Begin()
	assert.ErrorIs(t, err, ErrPoisoned)
}

func TestCommitUnknownPartitionFailsBeforeJournaling(t *testing.T) {
	ks := newTestKeyspace(t)
	_, err := ks.OpenPartition("p", partition.DefaultConfig())
	require.NoError(t, err)

	wtx, err := ks.Begin()
	require.NoError(t, err)
	require.NoError(t, wtx.Insert("p", []byte("k"), []byte("v")))

	require.NoError(t, ks.DropPartition("p"))

	err = wtx.Commit()
	assert.ErrorIs(t, err, ErrPartitionNotFound)
}
