package compaction

import (
	"context"
	"sync"

	"github.com/dreamware/keyspace/internal/partition"
	"github.com/dreamware/keyspace/internal/snapshot"
	"github.com/dreamware/keyspace/internal/xlog"
)

var log = xlog.WithComponent("compaction")

// Worker repeatedly waits on a Manager for queued partitions and
// compacts each one's tree down to the tracker's current safe-GC
// sequence number, grounded on original_source/src/compaction/worker.rs
// (pop one partition, invoke its tree's compact, log and continue on
// failure rather than aborting the loop).
type Worker struct {
	manager *Manager
	tracker *snapshot.Tracker
}

// NewWorker returns a Worker draining manager, consulting tracker for
// the GC watermark on every run.
func NewWorker(manager *Manager, tracker *snapshot.Tracker) *Worker {
	return &Worker{manager: manager, tracker: tracker}
}

// RunOne performs a single compaction cycle: wait for a queued
// partition, pop it, and compact its tree. Returns ctx.Err() if ctx was
// canceled before a partition arrived.
func (w *Worker) RunOne(ctx context.Context) error {
	if err := w.manager.Wait(ctx); err != nil {
		return err
	}

	h, ok := w.manager.Pop()
	if !ok {
		// Another worker won the race for the item Notify woke us for;
		// nothing to do this cycle.
		return nil
	}

	if err := h.SetState(partition.StateCompacting); err != nil {
		log.Warn().Str("partition", h.Name()).Err(err).Msg("skipping compaction on unavailable partition")
		return nil
	}
	defer func() {
		if h.State() == partition.StateCompacting {
			_ = h.SetState(partition.StateActive)
		}
	}()

	safeGC := w.tracker.SafeGCSeqno()
	if err := h.Tree().Compact(safeGC); err != nil {
		log.Error().Str("partition", h.Name()).Uint64("safe_gc_seqno", safeGC).Err(err).Msg("compaction failed")
		return nil
	}

	log.Debug().Str("partition", h.Name()).Uint64("safe_gc_seqno", safeGC).Msg("compaction complete")
	return nil
}

// Run loops RunOne until ctx is canceled, signaling done when it
// returns. Intended to be launched as `go worker.Run(ctx, &wg)` once per
// pool slot.
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		if err := w.RunOne(ctx); err != nil {
			return
		}
	}
}
