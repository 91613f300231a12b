package keyspace

import (
	"bytes"
	"fmt"

	"github.com/dreamware/keyspace/internal/journal"
	"github.com/dreamware/keyspace/internal/partition"
	"github.com/dreamware/keyspace/internal/snapshot"
	"github.com/dreamware/keyspace/internal/tree"
)

// stagingSeqno is the sentinel sequence number every staged write carries
// until commit rewrites it to the freshly allocated seqno (§4.G.2: "the
// sentinel sequence number SeqNo::MAX"). Using the maximum representable
// uint64 guarantees a staged entry always sorts newest for its key within
// its own staging memtable and always wins an IterWithSeqno merge against
// the live tree.
const stagingSeqno = ^uint64(0)

// WriteTx is a write transaction (§4.G): it holds the keyspace's global
// writer lock for its entire lifetime, stages inserts/removes into
// private per-partition memtables for read-your-own-writes, and converts
// everything into one atomic batch on Commit.
type WriteTx struct {
	ks      *Keyspace
	nonce   snapshot.Nonce
	staging map[string]*tree.Memtable

	durability *journal.PersistMode
	done       bool
}

// partition resolves name to its registered Handle, failing if unknown.
func (w *WriteTx) partition(name string) (*partition.Handle, error) {
	h, ok := w.ks.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, name)
	}
	return h, nil
}

// stagingFor returns (creating if necessary) the private staging
// memtable for partitionName.
func (w *WriteTx) stagingFor(partitionName string) *tree.Memtable {
	mt, ok := w.staging[partitionName]
	if !ok {
		mt = tree.NewMemtable()
		w.staging[partitionName] = mt
	}
	return mt
}

func validateKV(key, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if len(value) > MaxValueSize {
		return fmt.Errorf("%w: value exceeds %d bytes", ErrInvalidInput, MaxValueSize)
	}
	return nil
}

func validateKey(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidInput)
	}
	if len(key) > MaxKeySize {
		return fmt.Errorf("%w: key exceeds %d bytes", ErrInvalidInput, MaxKeySize)
	}
	return nil
}

// Insert stages key=value for partitionName. Visible to subsequent reads
// on this transaction immediately; not durable or visible to other
// transactions until Commit.
func (w *WriteTx) Insert(partitionName string, key, value []byte) error {
	if w.done {
		return ErrTxDone
	}
	if err := validateKV(key, value); err != nil {
		return err
	}
	if _, err := w.partition(partitionName); err != nil {
		return err
	}
	return w.stagingFor(partitionName).Insert(key, value, stagingSeqno, tree.KindValue)
}

// Remove stages a tombstone for key in partitionName.
func (w *WriteTx) Remove(partitionName string, key []byte) error {
	if w.done {
		return ErrTxDone
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := w.partition(partitionName); err != nil {
		return err
	}
	return w.stagingFor(partitionName).Insert(key, nil, stagingSeqno, tree.KindTombstone)
}

// Get returns the read-your-own-writes view of key in partitionName:
// the staging memtable is consulted first (a staged tombstone reports
// ErrNotFound; a staged value returns directly); only if nothing is
// staged does it fall back to the tree snapshot at this transaction's
// nonce (§4.G.3).
func (w *WriteTx) Get(partitionName string, key []byte) ([]byte, error) {
	h, err := w.partition(partitionName)
	if err != nil {
		return nil, err
	}

	if mt, ok := w.staging[partitionName]; ok {
		if value, kind, found := mt.Peek(key); found {
			h.RecordGet()
			if kind == tree.KindTombstone {
				return nil, ErrNotFound
			}
			return value, nil
		}
	}

	v, ok := h.Tree().Get(key, w.nonce.Instant())
	h.RecordGet()
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// ContainsKey reports whether Get would succeed.
func (w *WriteTx) ContainsKey(partitionName string, key []byte) (bool, error) {
	_, err := w.Get(partitionName, key)
	if err == nil {
		return true, nil
	}
	if err == ErrNotFound {
		return false, nil
	}
	return false, err
}

// Iter returns every key visible to this transaction in partitionName —
// the tree snapshot merged with this transaction's own staged writes —
// in ascending key order.
func (w *WriteTx) Iter(partitionName string) ([]tree.KV, error) {
	h, err := w.partition(partitionName)
	if err != nil {
		return nil, err
	}
	return h.Tree().IterWithSeqno(w.nonce.Instant(), w.staging[partitionName]), nil
}

// Range is Iter restricted to [lo, hi).
func (w *WriteTx) Range(partitionName string, lo, hi []byte) ([]tree.KV, error) {
	h, err := w.partition(partitionName)
	if err != nil {
		return nil, err
	}
	return h.Tree().RangeWithSeqno(lo, hi, w.nonce.Instant(), w.staging[partitionName]), nil
}

// Prefix is Iter restricted to keys with the given prefix.
func (w *WriteTx) Prefix(partitionName string, prefix []byte) ([]tree.KV, error) {
	h, err := w.partition(partitionName)
	if err != nil {
		return nil, err
	}
	return h.Tree().PrefixWithSeqno(prefix, w.nonce.Instant(), w.staging[partitionName]), nil
}

// Len returns the number of keys visible to this transaction in
// partitionName.
func (w *WriteTx) Len(partitionName string) (int, error) {
	kvs, err := w.Iter(partitionName)
	if err != nil {
		return 0, err
	}
	return len(kvs), nil
}

// UpdateFunc computes a new value from the current one (nil if the key
// is absent) for FetchUpdate/UpdateFetch. Returning a nil new value with
// ok=false leaves the key untouched.
type UpdateFunc func(prev []byte, found bool) (next []byte, ok bool)

// FetchUpdate reads the current value of key in partitionName, applies f
// to compute its replacement, stages the result (insert or remove), and
// returns the value as it was *before* the update (§4.G.4). If f leaves
// the value unchanged, the staging write is skipped to keep the log
// small, matching the spec's explicit optimization.
func (w *WriteTx) FetchUpdate(partitionName string, key []byte, f UpdateFunc) (prev []byte, err error) {
	prev, _, err = w.applyUpdate(partitionName, key, f)
	return prev, err
}

// UpdateFetch is FetchUpdate but returns the *new* value instead of the
// previous one.
func (w *WriteTx) UpdateFetch(partitionName string, key []byte, f UpdateFunc) (next []byte, err error) {
	_, next, err = w.applyUpdate(partitionName, key, f)
	return next, err
}

func (w *WriteTx) applyUpdate(partitionName string, key []byte, f UpdateFunc) (prev, next []byte, err error) {
	if w.done {
		return nil, nil, ErrTxDone
	}

	prevValue, getErr := w.Get(partitionName, key)
	found := getErr == nil
	if getErr != nil && getErr != ErrNotFound {
		return nil, nil, getErr
	}

	newValue, ok := f(prevValue, found)
	if !ok {
		return prevValue, prevValue, nil
	}

	if newValue == nil {
		if !found {
			// Nothing staged and nothing live: deleting an absent key is
			// already the current state, so there is no write to skip.
			return prevValue, nil, nil
		}
		if err := w.Remove(partitionName, key); err != nil {
			return nil, nil, err
		}
		return prevValue, nil, nil
	}
	if found && bytes.Equal(prevValue, newValue) {
		return prevValue, newValue, nil
	}
	if err := w.Insert(partitionName, key, newValue); err != nil {
		return nil, nil, err
	}
	return prevValue, newValue, nil
}

// SetDurability overrides the PersistMode used by this transaction's
// Commit, taking precedence over the keyspace's DefaultPersistMode.
func (w *WriteTx) SetDurability(mode journal.PersistMode) {
	w.durability = &mode
}

// Commit converts all staged writes into one journal batch under a
// freshly allocated sequence number, applies them to their partitions'
// live trees, and releases the writer lock (§4.H). After Commit returns
// (successfully or not) the transaction is done and must not be reused.
func (w *WriteTx) Commit() error {
	if w.done {
		return ErrTxDone
	}
	defer w.finish()

	return commitBatch(w.ks, w)
}

// Rollback discards all staged writes without journaling them and
// releases the writer lock.
func (w *WriteTx) Rollback() {
	if w.done {
		return
	}
	w.finish()
}

func (w *WriteTx) finish() {
	w.done = true
	w.nonce.Release()
	w.ks.writerMu.Unlock()
}
