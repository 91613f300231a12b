package keyspace

import "errors"

// Sentinel errors per SPEC_FULL.md §7's error taxonomy. Io and
// Corruption are not separate sentinels here: Io errors are whatever the
// standard library/journal package returns, wrapped with context via
// fmt.Errorf's %w (surfaced verbatim per §7); Corruption never arises
// during normal operation since journal.Recover tolerates tail garbage
// by design rather than reporting it.
var (
	// ErrNotFound is returned when a lookup key has no visible value.
	ErrNotFound = errors.New("keyspace: not found")

	// ErrPartitionNotFound is returned when an operation names a
	// partition that has not been opened in this keyspace.
	ErrPartitionNotFound = errors.New("keyspace: partition not found")

	// ErrPartitionExists is returned by OpenPartition when a partition
	// with the same name is already registered.
	ErrPartitionExists = errors.New("keyspace: partition already exists")

	// ErrInvalidInput covers key/value size limits, empty partition
	// names, and other caller-supplied invariant violations (§3: keys
	// <= 64 KiB, values <= 4 GiB).
	ErrInvalidInput = errors.New("keyspace: invalid input")

	// ErrTxDone is returned when Commit, Rollback, or a staged operation
	// is attempted on a write transaction that has already committed or
	// rolled back.
	ErrTxDone = errors.New("keyspace: transaction already closed")

	// ErrPoisoned marks the keyspace unusable after a prior panic left
	// the writer lock or a shard lock poisoned. Go mutexes don't poison
	// themselves the way Rust's do, so this is only ever returned
	// deliberately — see batch.go's recover-and-poison wrapper in
	// commitBatch.
	ErrPoisoned = errors.New("keyspace: poisoned after a prior panic")
)

const (
	// MaxKeySize is the largest key this keyspace accepts, per §3.
	MaxKeySize = 64 * 1024
	// MaxValueSize is the largest value this keyspace accepts, per §3.
	MaxValueSize = 4 << 30
)
