// Package keyspace implements an embedded, single-process key-value
// storage engine: a keyspace of independently-tunable, named partitions
// each backed by an LSM tree (internal/tree), made durable by a sharded
// write-ahead journal (internal/journal), read with snapshot isolation
// (internal/snapshot), and compacted in the background
// (internal/compaction).
//
// See SPEC_FULL.md for the full design; this file implements the
// top-level Keyspace container and its partition lifecycle, grounded on
// the teacher's internal/coordinator package (which owned the
// cluster-wide shard registry, health monitor, and node lifecycle) —
// generalized here from a distributed coordinator to a single
// in-process container.
package keyspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dreamware/keyspace/internal/compaction"
	"github.com/dreamware/keyspace/internal/journal"
	"github.com/dreamware/keyspace/internal/partition"
	"github.com/dreamware/keyspace/internal/snapshot"
	"github.com/dreamware/keyspace/internal/tree"
	"github.com/dreamware/keyspace/internal/xlog"
)

const (
	journalDirName    = "journal"
	rotatedDirName    = "journal-rotated"
	partitionsDirName = "partitions"
)

var log = xlog.WithComponent("keyspace")

// Keyspace is the top-level handle on an open storage engine instance.
// One process normally opens exactly one Keyspace per root directory.
type Keyspace struct {
	root string
	opts Options

	jnl      *journal.Journal
	registry *partition.Registry
	tracker  *snapshot.Tracker
	compMgr  *compaction.Manager

	writerMu sync.Mutex
	seqNo    atomic.Uint64

	poisoned atomic.Bool

	flusher   *flusher
	workerCtx context.Context
	workerCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

// Create initializes a brand-new keyspace rooted at dir, which must not
// already contain a journal directory.
func Create(dir string, opts ...Option) (*Keyspace, error) {
	options := DefaultOptions()
	for _, o := range opts {
		o(&options)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("keyspace: create root %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, partitionsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("keyspace: create partitions dir: %w", err)
	}

	jnl, err := journal.Create(filepath.Join(dir, journalDirName))
	if err != nil {
		return nil, err
	}

	ks := newKeyspace(dir, options, jnl)
	ks.start()
	return ks, nil
}

// Open restores a keyspace previously created at dir, replaying its
// journal to reconstruct every partition's live memtable (P6: the
// memtable-flush round trip this module substitutes, since the
// in-memory reference tree has no on-disk segment format of its own —
// see DESIGN.md).
func Open(dir string, opts ...Option) (*Keyspace, error) {
	options := DefaultOptions()
	for _, o := range opts {
		o(&options)
	}

	jnl, err := journal.Open(filepath.Join(dir, journalDirName))
	if err != nil {
		return nil, err
	}

	ks := newKeyspace(dir, options, jnl)

	if err := ks.replay(); err != nil {
		jnl.Close()
		return nil, err
	}

	ks.start()
	return ks, nil
}

func newKeyspace(dir string, opts Options, jnl *journal.Journal) *Keyspace {
	ctx, cancel := context.WithCancel(context.Background())
	return &Keyspace{
		root:         dir,
		opts:         opts,
		jnl:          jnl,
		registry:     partition.NewRegistry(),
		tracker:      snapshot.NewTracker(),
		compMgr:      compaction.NewManager(),
		workerCtx:    ctx,
		workerCancel: cancel,
	}
}

// replay reads every committed batch from the journal, in ascending
// seqno order, and applies it to the (possibly not-yet-registered)
// partitions it names, auto-registering any the journal mentions but
// this Open call hasn't explicitly opened yet.
func (ks *Keyspace) replay() error {
	batches, err := ks.jnl.RecoverAll()
	if err != nil {
		return err
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].SeqNo < batches[j].SeqNo })

	var maxSeq uint64
	for _, b := range batches {
		for _, it := range b.Items {
			h, ok := ks.registry.Get(it.Partition)
			if !ok {
				h = partition.New(it.Partition, tree.NewMemtable(), partition.DefaultConfig())
				if err := ks.registry.Register(h); err != nil {
					return err
				}
			}
			if err := h.Tree().Insert(it.Key, it.Value, b.SeqNo, kindFromJournal(it.Kind)); err != nil {
				return fmt.Errorf("keyspace: replay partition %q: %w", it.Partition, err)
			}
		}
		if b.SeqNo > maxSeq {
			maxSeq = b.SeqNo
		}
	}

	ks.seqNo.Store(maxSeq)
	ks.tracker.ObserveAllocated(maxSeq)
	log.Info().Int("batches", len(batches)).Uint64("max_seqno", maxSeq).Msg("journal replay complete")
	return nil
}

func kindFromJournal(k journal.ValueType) tree.Kind {
	if k == journal.Tombstone {
		return tree.KindTombstone
	}
	return tree.KindValue
}

func (ks *Keyspace) start() {
	ks.flusher = newFlusher(ks.jnl, ks.opts.FlushInterval)
	ks.flusher.start()

	for i := 0; i < ks.opts.CompactionWorkers; i++ {
		w := compaction.NewWorker(ks.compMgr, ks.tracker)
		ks.workerWG.Add(1)
		go w.Run(ks.workerCtx, &ks.workerWG)
	}
}

// OpenPartition registers and returns a new partition named name, backed
// by a fresh in-memory tree.Memtable. It is an error to open a partition
// name that already exists in this keyspace.
func (ks *Keyspace) OpenPartition(name string, cfg partition.Config) (*partition.Handle, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty partition name", ErrInvalidInput)
	}
	h := partition.New(name, tree.NewMemtable(), cfg)
	if err := ks.registry.Register(h); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPartitionExists, name)
	}
	return h, nil
}

// Partition returns the named partition's handle, if open.
func (ks *Keyspace) Partition(name string) (*partition.Handle, bool) {
	return ks.registry.Get(name)
}

// ListPartitions returns every open partition's name, sorted.
func (ks *Keyspace) ListPartitions() []string {
	return ks.registry.List()
}

// DropPartition removes a partition from the keyspace. Already-applied
// journal records for it are not retroactively erased (they are simply
// never replayed again once the partition is gone and not reopened).
func (ks *Keyspace) DropPartition(name string) error {
	if err := ks.registry.Drop(name); err != nil {
		return fmt.Errorf("%w: %s", ErrPartitionNotFound, name)
	}
	return nil
}

// View opens a new read transaction pinned to the keyspace's current
// sequence number. The caller must call Close (typically via defer) to
// release its snapshot nonce.
func (ks *Keyspace) View() *ReadTx {
	nonce := snapshot.New(ks.tracker, ks.seqNo.Load())
	return &ReadTx{ks: ks, nonce: nonce}
}

// Begin acquires the global writer lock (§5: "one global writer mutex
// ... held for the entire lifetime of a WriteTransaction") and returns a
// new write transaction. The caller must call Commit or Rollback exactly
// once to release the lock.
func (ks *Keyspace) Begin() (*WriteTx, error) {
	if ks.poisoned.Load() {
		return nil, ErrPoisoned
	}
	ks.writerMu.Lock()
	nonce := snapshot.New(ks.tracker, ks.seqNo.Load())
	return &WriteTx{
		ks:      ks,
		nonce:   nonce,
		staging: make(map[string]*tree.Memtable),
	}, nil
}

// RotateJournal seals every journal shard's current file and starts a
// fresh one, moving the sealed files under <root>/journal-rotated/<uuid>.
// It takes the journal's full lock (all shards, in order), so it blocks
// concurrent single-shard commits for its duration but does not take the
// global writer lock itself.
func (ks *Keyspace) RotateJournal() (string, error) {
	guards := ks.jnl.FullLock()
	defer func() {
		for _, g := range guards {
			g.Release()
		}
	}()
	return ks.jnl.Rotate(filepath.Join(ks.root, rotatedDirName), guards)
}

// Flush forces every journal shard to sync to stable storage with mode,
// independent of the background flusher's interval.
func (ks *Keyspace) Flush(mode journal.PersistMode) error {
	return ks.jnl.Flush(mode)
}

// CompactPartition runs one synchronous compaction pass over name's tree,
// pruning versions the snapshot tracker no longer considers live. Unlike
// the background compaction.Worker, this bypasses the notify queue
// entirely, so it is safe to call even when CompactionWorkers is zero.
func (ks *Keyspace) CompactPartition(name string) error {
	h, ok := ks.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartitionNotFound, name)
	}
	if err := h.SetState(partition.StateCompacting); err != nil {
		return err
	}
	defer h.SetState(partition.StateActive)
	return h.Tree().Compact(ks.tracker.SafeGCSeqno())
}

// allocSeqno returns the next strictly-increasing sequence number. Only
// called while the writer lock is held, so no additional synchronization
// is needed beyond the atomic increment itself (I1, P4).
func (ks *Keyspace) allocSeqno() uint64 {
	return ks.seqNo.Add(1)
}

// Close stops the background flusher and compaction workers, flushes
// every journal shard with SyncAll on a best-effort basis, and closes
// the journal. Matches spec.md §5's resource policy: "closed on keyspace
// drop with a best-effort final flush(SyncAll)".
func (ks *Keyspace) Close() error {
	ks.flusher.stop()
	ks.workerCancel()
	ks.workerWG.Wait()

	ks.jnl.Close()
	return nil
}
