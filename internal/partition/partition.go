package partition

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dreamware/keyspace/internal/tree"
)

// State is the operational state of a partition.
type State string

const (
	// StateActive accepts reads and writes normally.
	StateActive State = "active"
	// StateCompacting is still readable and writable, but a compaction
	// worker currently holds its tree's compaction lock.
	StateCompacting State = "compacting"
	// StateDropped rejects all further operations; set once and never
	// reset.
	StateDropped State = "dropped"
)

// Config holds the per-partition tunables that influence when a
// partition's memtable should be flushed and how its tree compacts.
type Config struct {
	// MaxMemtableSize is the approximate byte threshold at or above which
	// the keyspace commit path hands this partition to the compaction
	// manager (see ExceedsMemtableThreshold). Zero disables the check.
	MaxMemtableSize uint64
	// CompactionStrategy names the compaction policy a Worker should
	// apply to this partition's tree. The reference tree.Memtable only
	// implements one strategy ("prune-below-watermark"); this field
	// exists so a real segment-backed tree has somewhere to receive the
	// choice.
	CompactionStrategy string
}

// DefaultConfig returns the Config new partitions are opened with unless
// the caller overrides it.
func DefaultConfig() Config {
	return Config{
		MaxMemtableSize:    32 << 20, // 32 MiB
		CompactionStrategy: "prune-below-watermark",
	}
}

// Stats are cumulative operation counters for one partition, updated
// with sync/atomic so readers never block writers.
type Stats struct {
	Gets    uint64
	Inserts uint64
	Removes uint64
}

// Handle is one named, LSM-backed partition: an owned tree.Tree plus its
// configuration, state, and statistics (SPEC_FULL.md §4.J).
type Handle struct {
	name   string
	config Config
	tr     tree.Tree

	mu    sync.RWMutex
	state State

	gets        atomic.Uint64
	inserts     atomic.Uint64
	removes     atomic.Uint64
	approxBytes atomic.Uint64
}

// New returns an active Handle named name, owning tr, configured with
// cfg.
func New(name string, tr tree.Tree, cfg Config) *Handle {
	return &Handle{
		name:   name,
		config: cfg,
		tr:     tr,
		state:  StateActive,
	}
}

// Name returns the partition's name.
func (h *Handle) Name() string { return h.name }

// Config returns the partition's configuration.
func (h *Handle) Config() Config { return h.config }

// Tree returns the partition's underlying LSM tree.
func (h *Handle) Tree() tree.Tree { return h.tr }

// State returns the partition's current operational state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// SetState transitions the partition to state. Transitioning into
// StateDropped is terminal: once dropped, SetState to anything else is
// rejected.
func (h *Handle) SetState(state State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDropped {
		return fmt.Errorf("partition %q: already dropped", h.name)
	}
	h.state = state
	return nil
}

// Stats returns a point-in-time snapshot of the partition's operation
// counters.
func (h *Handle) Stats() Stats {
	return Stats{
		Gets:    h.gets.Load(),
		Inserts: h.inserts.Load(),
		Removes: h.removes.Load(),
	}
}

// RecordGet increments the Gets counter. Called once per ReadTx.Get,
// ReadTx.ContainsKey or WriteTx.Get resolved against this partition,
// regardless of whether the key was found.
func (h *Handle) RecordGet() { h.gets.Add(1) }

// RecordInsert increments the Inserts counter.
func (h *Handle) RecordInsert() { h.inserts.Add(1) }

// RecordRemove increments the Removes counter.
func (h *Handle) RecordRemove() { h.removes.Add(1) }

// AddApproxBytes accounts n more bytes toward the partition's live
// memtable, an estimate (key length + value length per applied record)
// used to decide when to notify the compaction manager. The reference
// tree.Memtable has no native notion of its own byte footprint, so the
// keyspace commit path tracks it here instead.
func (h *Handle) AddApproxBytes(n uint64) { h.approxBytes.Add(n) }

// ApproxBytes returns the running estimate set by AddApproxBytes.
func (h *Handle) ApproxBytes() uint64 { return h.approxBytes.Load() }

// ResetApproxBytes zeroes the byte estimate, called after a partition has
// been handed off for compaction so the next threshold check starts
// fresh.
func (h *Handle) ResetApproxBytes() { h.approxBytes.Store(0) }

// ExceedsMemtableThreshold reports whether ApproxBytes has crossed the
// partition's configured MaxMemtableSize. A zero threshold disables the
// check.
func (h *Handle) ExceedsMemtableThreshold() bool {
	return h.config.MaxMemtableSize > 0 && h.ApproxBytes() >= h.config.MaxMemtableSize
}
