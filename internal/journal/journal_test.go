package journal

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRoundRobinSelection(t *testing.T) {
	j, err := Create(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	seen := map[*Shard]bool{}
	for i := 0; i < j.ShardCount(); i++ {
		g := j.GetWriter()
		seen[g.Shard] = true
		g.Release()
	}
	assert.Len(t, seen, j.ShardCount(), "round-robin must visit every shard once per full cycle")
}

func TestJournalFlushOnlyTouchesDirtyShards(t *testing.T) {
	j, err := Create(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	g := j.GetWriter()
	require.NoError(t, g.Shard.WriteBatch(twoItemBatch(), 0, NoCompression))
	g.Release()

	require.NoError(t, j.Flush(SyncAll))

	for _, slot := range j.shards {
		assert.False(t, slot.shard.ShouldSync())
	}
}

func TestJournalRotateSealsAllShards(t *testing.T) {
	base := t.TempDir()
	j, err := Create(filepath.Join(base, "journal"))
	require.NoError(t, err)
	defer j.Close()

	for i := 0; i < j.ShardCount(); i++ {
		g := j.GetWriter()
		require.NoError(t, g.Shard.WriteBatch(twoItemBatch(), uint64(i), NoCompression))
		g.Release()
	}

	guards := j.FullLock()
	rotatedDir, err := j.Rotate(filepath.Join(base, "journal-rotated"), guards)
	releaseAll(guards)
	require.NoError(t, err)

	// Every rotated-out file has exactly one batch; every new active file is empty.
	for i := 0; i < j.ShardCount(); i++ {
		oldData, err := (&Shard{path: filepath.Join(rotatedDir, fmt.Sprintf("%d", i))}).ReadAll()
		require.NoError(t, err)
		assert.Len(t, Recover(oldData), 1)
	}

	all, err := j.RecoverAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestJournalOpenRestoresExistingShards(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	j, err := Create(dir)
	require.NoError(t, err)

	g := j.GetWriter()
	require.NoError(t, g.Shard.WriteBatch(twoItemBatch(), 42, NoCompression))
	g.Release()
	j.Close()

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.RecoverAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint64(42), all[0].SeqNo)
}
