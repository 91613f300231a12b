package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dreamware/keyspace/internal/xlog"
)

// ShardCount is the default, fixed number of journal shards.
const ShardCount = 4

type shardSlot struct {
	mu    sync.RWMutex
	shard *Shard
}

// Journal owns a fixed number of shard files and routes each write to one
// of them, distributing fsync contention. Selection is round-robin:
// fairness only, never hashed by key, since journal records self-identify
// their partition.
type Journal struct {
	dir        string
	shardCount int
	shards     []*shardSlot
	next       uint64
}

// ShardGuard represents an exclusively-held write lock on one shard. It
// must be released exactly once, normally via `defer guard.Release()`.
type ShardGuard struct {
	slot  *shardSlot
	Shard *Shard
}

// Release unlocks the guarded shard.
func (g *ShardGuard) Release() { g.slot.mu.Unlock() }

// Create makes a brand-new journal with ShardCount shard files under dir.
// dir is created if absent; the directory is fsynced afterward so the new
// shard files are durable on Unix.
func Create(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
	}

	shards := make([]*shardSlot, ShardCount)
	for i := range shards {
		sh, err := CreateNew(shardPath(dir, i))
		if err != nil {
			return nil, err
		}
		shards[i] = &shardSlot{shard: sh}
	}

	if err := fsyncDirectory(dir); err != nil {
		return nil, fmt.Errorf("journal: fsync dir %s: %w", dir, err)
	}

	return &Journal{dir: dir, shardCount: ShardCount, shards: shards}, nil
}

// Open restores an existing journal, opening each of its ShardCount shard
// files for appending.
func Open(dir string) (*Journal, error) {
	shards := make([]*shardSlot, ShardCount)
	for i := range shards {
		sh, err := FromFile(shardPath(dir, i))
		if err != nil {
			return nil, err
		}
		shards[i] = &shardSlot{shard: sh}
	}
	return &Journal{dir: dir, shardCount: ShardCount, shards: shards}, nil
}

func shardPath(dir string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("%d", idx))
}

// Dir returns the journal's base directory.
func (j *Journal) Dir() string { return j.dir }

// ShardCount returns the number of shards this journal owns.
func (j *Journal) ShardCount() int { return j.shardCount }

// GetWriter locks and returns exactly one shard, chosen round-robin, for
// the caller to append one batch to. The caller must call Release on the
// returned guard, typically via defer.
func (j *Journal) GetWriter() *ShardGuard {
	idx := atomic.AddUint64(&j.next, 1) % uint64(j.shardCount)
	slot := j.shards[idx]
	slot.mu.Lock()
	return &ShardGuard{slot: slot, Shard: slot.shard}
}

// FullLock acquires every shard's write lock in index order (0..N) and
// returns one guard per shard. Callers must never hold a single-shard
// guard from GetWriter while calling FullLock on the same goroutine — the
// fixed acquisition order this enforces is what keeps Flush and Rotate
// deadlock-free against concurrent single-shard writers.
func (j *Journal) FullLock() []*ShardGuard {
	guards := make([]*ShardGuard, j.shardCount)
	for i, slot := range j.shards {
		slot.mu.Lock()
		guards[i] = &ShardGuard{slot: slot, Shard: slot.shard}
	}
	return guards
}

// releaseAll unlocks every guard in the slice, in order.
func releaseAll(guards []*ShardGuard) {
	for _, g := range guards {
		g.Release()
	}
}

// Flush acquires every shard's lock in order and flushes any shard whose
// ShouldSync flag is set, skipping idle shards.
func (j *Journal) Flush(mode PersistMode) error {
	guards := j.FullLock()
	defer releaseAll(guards)

	for _, g := range guards {
		if !g.Shard.ShouldSync() {
			continue
		}
		if err := g.Shard.Flush(mode); err != nil {
			return err
		}
	}
	return nil
}

// Rotate seals every shard's current file by moving it into a new
// rotated-shard directory (named with a fresh UUID to avoid collisions
// between rapid rotations) and starts a fresh, empty file at the shard's
// original path, then fsyncs both directories. The returned path is the
// rotated-shard directory holding the sealed files.
// All shard locks must already be held by the caller (see FullLock);
// Rotate does not acquire them itself, matching the journal's no-upgrade
// locking discipline.
func (j *Journal) Rotate(rotatedRoot string, guards []*ShardGuard) (string, error) {
	newDir := filepath.Join(rotatedRoot, uuid.NewString())
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		return "", fmt.Errorf("journal: create rotation dir %s: %w", newDir, err)
	}

	for i, g := range guards {
		activePath := g.Shard.Path()
		if err := os.Rename(activePath, shardPath(newDir, i)); err != nil {
			return "", fmt.Errorf("journal: move sealed shard %s: %w", activePath, err)
		}
		if err := g.Shard.Rotate(activePath); err != nil {
			return "", err
		}
	}

	if err := fsyncDirectory(newDir); err != nil {
		return "", fmt.Errorf("journal: fsync rotation dir %s: %w", newDir, err)
	}
	if err := fsyncDirectory(j.dir); err != nil {
		return "", fmt.Errorf("journal: fsync dir %s: %w", j.dir, err)
	}

	return newDir, nil
}

// Close flushes every shard with SyncAll on a best-effort basis (errors
// are logged, not surfaced — §7) and closes every shard's file.
func (j *Journal) Close() {
	log := xlog.WithComponent("journal")

	if err := j.Flush(SyncAll); err != nil {
		log.Error().Err(err).Msg("flush error on journal close")
	}

	for _, slot := range j.shards {
		slot.mu.Lock()
		if err := slot.shard.Close(); err != nil {
			log.Error().Err(err).Str("path", slot.shard.Path()).Msg("error closing shard file")
		}
		slot.mu.Unlock()
	}
}

// RecoverAll reads and recovers every shard's committed batches, in shard
// index order. Batches across shards are not globally ordered by
// position in this slice — only by SeqNo (§5: "across shards, ordering is
// defined only by seqno") — so callers that need total order should sort
// the combined result by SeqNo before replaying.
func (j *Journal) RecoverAll() ([]Batch, error) {
	var all []Batch
	for _, slot := range j.shards {
		data, err := slot.shard.ReadAll()
		if err != nil {
			return nil, err
		}
		all = append(all, Recover(data)...)
	}
	return all, nil
}
