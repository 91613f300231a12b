package tree

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// btreeDegree matches the degree memcp uses for its own delta index; it's
// a reasonable default for in-memory ordered maps of this size.
const btreeDegree = 32

type entry struct {
	key   []byte
	seqno uint64
	value []byte
	kind  Kind
}

// less orders entries by (key ASC, seqno DESC): for a fixed key, newer
// versions sort first.
func less(a, b entry) bool {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.seqno > b.seqno
}

// Memtable is an ordered, multi-versioned in-memory map from (key, seqno)
// to value-or-tombstone, the reference Tree implementation (see doc.go).
// It is also used, unversioned in spirit but identical in mechanism, as a
// write transaction's per-partition staging buffer (keyspace.WriteTx),
// where every staged entry carries the sentinel seqno math.MaxUint64 so
// it always dominates the underlying tree during read-your-own-writes.
type Memtable struct {
	mu sync.RWMutex
	bt *btree.BTreeG[entry]
}

// NewMemtable returns an empty Memtable.
func NewMemtable() *Memtable {
	return &Memtable{bt: btree.NewG(btreeDegree, less)}
}

// Insert applies one record at the given sequence number.
func (m *Memtable) Insert(key, value []byte, seqno uint64, kind Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bt.ReplaceOrInsert(entry{key: append([]byte(nil), key...), seqno: seqno, value: append([]byte(nil), value...), kind: kind})
	return nil
}

// newestAt returns the newest version of key with seqno <= asOf, if any.
func (m *Memtable) newestAt(key []byte, asOf uint64) (entry, bool) {
	var found entry
	ok := false
	pivot := entry{key: key, seqno: asOf}
	m.bt.AscendGreaterOrEqual(pivot, func(e entry) bool {
		if !bytes.Equal(e.key, key) {
			return false
		}
		found, ok = e, true
		return false
	})
	return found, ok
}

// Get returns the newest non-tombstone version of key visible at seqno.
func (m *Memtable) Get(key []byte, seqno uint64) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.newestAt(key, seqno)
	if !ok || e.kind == KindTombstone {
		return nil, false
	}
	return e.value, true
}

// ContainsKey reports whether Get would succeed.
func (m *Memtable) ContainsKey(key []byte, seqno uint64) bool {
	_, ok := m.Get(key, seqno)
	return ok
}

// raw returns the entry (possibly a tombstone) for key visible at seqno,
// without filtering tombstones out. Used internally for RYOW merges,
// where a staged tombstone must hide an underlying value rather than be
// treated as "not staged".
func (m *Memtable) raw(key []byte, asOf uint64) (entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.newestAt(key, asOf)
}

// collect walks the tree in ascending key order, resolving each distinct
// key to its newest version at seqno (or being overridden by additional,
// if non-nil and it holds a version for that key), emitting a KV for
// every key whose resolved version is live. If lo/hi/prefix are set, only
// matching keys are visited.
func (m *Memtable) collect(seqno uint64, additional *Memtable, lo, hi, prefix []byte) []KV {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []KV
	var lastKey []byte
	haveLast := false

	visit := func(e entry) bool {
		if haveLast && bytes.Equal(e.key, lastKey) {
			return true // already resolved this key's newest version
		}
		if e.seqno > seqno {
			return true // not yet visible; keep scanning for an older version of same key
		}
		lastKey = e.key
		haveLast = true

		resolved := e
		if additional != nil {
			if staged, ok := additional.raw(e.key, ^uint64(0)); ok {
				resolved = staged
			}
		}
		if resolved.kind != KindTombstone {
			out = append(out, KV{Key: append([]byte(nil), resolved.key...), Value: append([]byte(nil), resolved.value...)})
		}
		return true
	}

	switch {
	case prefix != nil:
		m.bt.AscendGreaterOrEqual(entry{key: prefix, seqno: ^uint64(0)}, func(e entry) bool {
			if !bytes.HasPrefix(e.key, prefix) {
				return false
			}
			return visit(e)
		})
	case lo != nil || hi != nil:
		start := entry{key: lo, seqno: ^uint64(0)}
		m.bt.AscendGreaterOrEqual(start, func(e entry) bool {
			if hi != nil && bytes.Compare(e.key, hi) >= 0 {
				return false
			}
			return visit(e)
		})
	default:
		m.bt.Ascend(func(e entry) bool { return visit(e) })
	}

	// Additional may stage brand-new keys the tree has never seen; merge
	// those in too, respecting the same bounds.
	if additional != nil {
		additional.mu.RLock()
		defer additional.mu.RUnlock()

		additional.bt.Ascend(func(e entry) bool {
			if prefix != nil && !bytes.HasPrefix(e.key, prefix) {
				return true
			}
			if lo != nil && bytes.Compare(e.key, lo) < 0 {
				return true
			}
			if hi != nil && bytes.Compare(e.key, hi) >= 0 {
				return true
			}
			if _, ok := m.newestAt(e.key, seqno); ok {
				return true // already handled above
			}
			if e.kind != KindTombstone {
				out = append(out, KV{Key: append([]byte(nil), e.key...), Value: append([]byte(nil), e.value...)})
			}
			return true
		})
		sortKVs(out)
		out = dedupKVs(out)
	}

	return out
}

func sortKVs(kvs []KV) {
	// Small-scale insertion-position sort keeps this dependency-free;
	// result sets are the visible key space of one partition scan, not a
	// hot path.
	for i := 1; i < len(kvs); i++ {
		for j := i; j > 0 && bytes.Compare(kvs[j-1].Key, kvs[j].Key) > 0; j-- {
			kvs[j-1], kvs[j] = kvs[j], kvs[j-1]
		}
	}
}

func dedupKVs(kvs []KV) []KV {
	if len(kvs) < 2 {
		return kvs
	}
	out := kvs[:1]
	for _, kv := range kvs[1:] {
		if !bytes.Equal(kv.Key, out[len(out)-1].Key) {
			out = append(out, kv)
		}
	}
	return out
}

// IterWithSeqno implements Tree.
func (m *Memtable) IterWithSeqno(seqno uint64, additional *Memtable) []KV {
	return m.collect(seqno, additional, nil, nil, nil)
}

// RangeWithSeqno implements Tree.
func (m *Memtable) RangeWithSeqno(lo, hi []byte, seqno uint64, additional *Memtable) []KV {
	return m.collect(seqno, additional, lo, hi, nil)
}

// PrefixWithSeqno implements Tree.
func (m *Memtable) PrefixWithSeqno(prefix []byte, seqno uint64, additional *Memtable) []KV {
	return m.collect(seqno, additional, nil, nil, prefix)
}

// Record is one staged write, as produced by Records for serialization
// into a journal batch. Unlike KV, Record carries its Kind so a staged
// tombstone can be told apart from a staged value.
type Record struct {
	Key   []byte
	Value []byte
	Kind  Kind
}

// Records returns every entry currently staged, in ascending key order.
// It is used only by the write-transaction commit path (keyspace package)
// to serialize a staging Memtable into journal records; it is not part
// of the Tree interface since a real segment-backed tree has no reason
// to expose its raw contents this way.
func (m *Memtable) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	m.bt.Ascend(func(e entry) bool {
		out = append(out, Record{Key: e.key, Value: e.value, Kind: e.kind})
		return true
	})
	return out
}

// Peek returns the entry staged for key, if any, without filtering
// tombstones — callers (WriteTx.Get) need to distinguish "staged
// tombstone" from "nothing staged" themselves.
func (m *Memtable) Peek(key []byte) (value []byte, kind Kind, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.newestAt(key, ^uint64(0))
	if !ok {
		return nil, 0, false
	}
	return e.value, e.kind, true
}

// Len implements Tree: the number of distinct live keys at the tree's
// current internal state (seqno = max).
func (m *Memtable) Len() int {
	return len(m.IterWithSeqno(^uint64(0), nil))
}

// Compact discards versions strictly older than safeGCSeqno whenever a
// newer version of the same key exists at or below that watermark (and is
// therefore visible to every live reader). This
// is necessarily a simplification of real LSM compaction (which merges
// on-disk segments); here it's an in-place prune of the in-memory tree.
func (m *Memtable) Compact(safeGCSeqno uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var toDelete []entry
	var lastKey []byte
	haveLast := false
	// covered is set once a version of lastKey at or below the watermark
	// has been seen; every older version of that key is then shadowed.
	covered := false

	m.bt.Ascend(func(e entry) bool {
		sameKey := haveLast && bytes.Equal(e.key, lastKey)
		if !sameKey {
			lastKey = e.key
			haveLast = true
			covered = e.seqno <= safeGCSeqno
			if e.seqno < safeGCSeqno && e.kind == KindTombstone {
				// The newest version is a tombstone every live reader
				// already sees; it and every older version are dropped,
				// leaving the key absent for all of them.
				toDelete = append(toDelete, e)
			}
			return true
		}
		if covered {
			toDelete = append(toDelete, e)
		} else if e.seqno <= safeGCSeqno {
			covered = true
		}
		return true
	})

	for _, e := range toDelete {
		m.bt.Delete(e)
	}
	return nil
}

// WaitForMemtableFlush implements Tree; a no-op for the in-memory
// reference tree.
func (m *Memtable) WaitForMemtableFlush() error { return nil }

var _ Tree = (*Memtable)(nil)
