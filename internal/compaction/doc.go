// Package compaction implements the background compaction dispatcher
// (SPEC_FULL.md §4.I): a producer/consumer queue of partitions whose
// approximate memtable size has crossed their MaxMemtableSize, drained by a small
// pool of Worker goroutines.
//
// The queue itself — a mutex-guarded FIFO plus a counting semaphore — is
// grounded on the original Rust implementation's CompactionManager
// (original_source/fjall/src/compaction/manager.rs): a
// Mutex<VecDeque<PartitionHandle>> paired with a semaphore that workers
// block on and the producer releases once per enqueued item. The
// semaphore here is golang.org/x/sync/semaphore's weighted semaphore,
// the same package the hastydb pack member uses for bounding concurrent
// work (other_examples), rather than a hand-rolled channel-based one.
//
// Worker.Run is grounded on original_source/src/compaction/worker.rs:
// pop one partition, ask its tree to compact down to the current
// snapshot.SafeGCSeqno, log and continue on error rather than panicking.
package compaction
