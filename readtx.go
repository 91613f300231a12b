package keyspace

import (
	"fmt"

	"github.com/dreamware/keyspace/internal/partition"
	"github.com/dreamware/keyspace/internal/snapshot"
	"github.com/dreamware/keyspace/internal/tree"
)

// ReadTx is a read transaction: a snapshot handle carrying one
// snapshot.Nonce (§4.F). Every lookup/iteration bound to it materializes
// the tree at nonce.Instant(), giving repeatable reads across the
// transaction's lifetime regardless of commits that happen afterward.
type ReadTx struct {
	ks    *Keyspace
	nonce snapshot.Nonce
}

// Close releases the transaction's snapshot nonce. Safe to call more
// than once. Callers should defer this immediately after View().
func (r *ReadTx) Close() {
	r.nonce.Release()
}

func (r *ReadTx) partition(name string) (*partition.Handle, error) {
	h, ok := r.ks.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, name)
	}
	return h, nil
}

// Get returns the newest value for key visible at this transaction's
// snapshot, or ErrNotFound.
func (r *ReadTx) Get(partitionName string, key []byte) ([]byte, error) {
	h, err := r.partition(partitionName)
	if err != nil {
		return nil, err
	}
	v, ok := h.Tree().Get(key, r.nonce.Instant())
	h.RecordGet()
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// ContainsKey reports whether Get would succeed.
func (r *ReadTx) ContainsKey(partitionName string, key []byte) (bool, error) {
	h, err := r.partition(partitionName)
	if err != nil {
		return false, err
	}
	ok := h.Tree().ContainsKey(key, r.nonce.Instant())
	h.RecordGet()
	return ok, nil
}

// Iter returns every visible key/value pair in partitionName, in
// ascending key order.
func (r *ReadTx) Iter(partitionName string) ([]tree.KV, error) {
	h, err := r.partition(partitionName)
	if err != nil {
		return nil, err
	}
	return h.Tree().IterWithSeqno(r.nonce.Instant(), nil), nil
}

// Range returns every visible key/value pair in partitionName within
// [lo, hi). A nil lo or hi is unbounded on that side.
func (r *ReadTx) Range(partitionName string, lo, hi []byte) ([]tree.KV, error) {
	h, err := r.partition(partitionName)
	if err != nil {
		return nil, err
	}
	return h.Tree().RangeWithSeqno(lo, hi, r.nonce.Instant(), nil), nil
}

// Prefix returns every visible key/value pair in partitionName whose key
// has the given prefix.
func (r *ReadTx) Prefix(partitionName string, prefix []byte) ([]tree.KV, error) {
	h, err := r.partition(partitionName)
	if err != nil {
		return nil, err
	}
	return h.Tree().PrefixWithSeqno(prefix, r.nonce.Instant(), nil), nil
}

// FirstKeyValue returns the lexicographically first visible key/value
// pair in partitionName, or ErrNotFound if the partition has no visible
// keys.
func (r *ReadTx) FirstKeyValue(partitionName string) (tree.KV, error) {
	kvs, err := r.Iter(partitionName)
	if err != nil {
		return tree.KV{}, err
	}
	if len(kvs) == 0 {
		return tree.KV{}, ErrNotFound
	}
	return kvs[0], nil
}

// LastKeyValue returns the lexicographically last visible key/value pair
// in partitionName, or ErrNotFound if the partition has no visible keys.
func (r *ReadTx) LastKeyValue(partitionName string) (tree.KV, error) {
	kvs, err := r.Iter(partitionName)
	if err != nil {
		return tree.KV{}, err
	}
	if len(kvs) == 0 {
		return tree.KV{}, ErrNotFound
	}
	return kvs[len(kvs)-1], nil
}

// Len returns the number of visible keys in partitionName at this
// transaction's snapshot. O(n) per §4.F.
func (r *ReadTx) Len(partitionName string) (int, error) {
	kvs, err := r.Iter(partitionName)
	if err != nil {
		return 0, err
	}
	return len(kvs), nil
}

// IsEmpty reports whether partitionName has no visible keys at this
// transaction's snapshot: equivalent to "FirstKeyValue is ErrNotFound".
func (r *ReadTx) IsEmpty(partitionName string) (bool, error) {
	_, err := r.FirstKeyValue(partitionName)
	if err == ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}
