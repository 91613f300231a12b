package keyspace

import (
	"fmt"
	"sort"

	"github.com/dreamware/keyspace/internal/journal"
	"github.com/dreamware/keyspace/internal/partition"
	"github.com/dreamware/keyspace/internal/tree"
)

func toJournalKind(k tree.Kind) journal.ValueType {
	if k == tree.KindTombstone {
		return journal.Tombstone
	}
	return journal.Value
}

// pendingApply pairs a partition with the staged records bound for it,
// so application to the live tree (step 5) can happen after journaling
// (step 3-4) without re-walking the staging memtables.
type pendingApply struct {
	handle  *partition.Handle
	records []tree.Record
}

// commitBatch implements the batch commit algorithm of §4.H, run while
// w's writer lock is held:
//  1. allocate a fresh monotonic sequence number
//  2. rewrite every staged record's sentinel seqno to it (implicit: the
//     live tree Insert call below is given the real seqno directly)
//  3. serialize all records into one journal batch
//  4. append it via the journal's single-shard writer, flush per mode
//  5. apply the records to each partition's live tree, grouped by
//     partition
//  6. notify the compaction manager for any partition over threshold
//
// A panic anywhere between journaling and live-tree application would
// leave the journal and the in-memory trees disagreeing about what was
// committed, which no later operation could safely recover from; the
// deferred recover taints the keyspace with ErrPoisoned instead of
// letting the corrupted state linger unnoticed (§7).
func commitBatch(ks *Keyspace, w *WriteTx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ks.poisoned.Store(true)
			log.Error().Interface("panic", r).Msg("commit panicked, keyspace poisoned")
			err = fmt.Errorf("%w: %v", ErrPoisoned, r)
		}
	}()

	names := make([]string, 0, len(w.staging))
	for name := range w.staging {
		names = append(names, name)
	}
	sort.Strings(names)

	var items []journal.Item
	pending := make([]pendingApply, 0, len(names))

	for _, name := range names {
		h, ok := ks.registry.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrPartitionNotFound, name)
		}
		records := w.staging[name].Records()
		if len(records) == 0 {
			continue
		}
		for _, r := range records {
			items = append(items, journal.Item{Partition: name, Key: r.Key, Value: r.Value, Kind: toJournalKind(r.Kind)})
		}
		pending = append(pending, pendingApply{handle: h, records: records})
	}

	if len(items) == 0 {
		return nil
	}

	seq := ks.allocSeqno()

	guard := ks.jnl.GetWriter()
	defer guard.Release()

	if err := guard.Shard.WriteBatch(items, seq, ks.opts.Compression); err != nil {
		return fmt.Errorf("keyspace: commit: %w", err)
	}

	mode := ks.opts.DefaultPersistMode
	if w.durability != nil {
		mode = *w.durability
	}
	if mode != journal.Buffer {
		if err := guard.Shard.Flush(mode); err != nil {
			return fmt.Errorf("keyspace: commit flush: %w", err)
		}
	}

	for _, p := range pending {
		for _, r := range p.records {
			if err := p.handle.Tree().Insert(r.Key, r.Value, seq, r.Kind); err != nil {
				// The reference tree.Memtable's Insert is infallible; a
				// real segment-backed tree could fail here even though
				// the record is already durably journaled (§4.H step 5
				// "infallible for pure in-memory insertion" — this
				// branch only matters for a future non-memory Tree).
				log.Error().Err(err).Str("partition", p.handle.Name()).Msg("apply to live tree failed after journaling")
				continue
			}
			if r.Kind == tree.KindTombstone {
				p.handle.RecordRemove()
			} else {
				p.handle.RecordInsert()
			}
			p.handle.AddApproxBytes(uint64(len(r.Key) + len(r.Value)))
		}

		if p.handle.ExceedsMemtableThreshold() {
			ks.compMgr.Notify(p.handle)
			p.handle.ResetApproxBytes()
		}
	}

	ks.tracker.ObserveAllocated(seq)
	return nil
}
