// Package tree defines the LSM tree abstraction the keyspace core
// consumes (SPEC_FULL.md §6.3) and supplies one concrete, in-memory
// implementation of it, Memtable, backed by github.com/google/btree's
// generic B-tree (the same library the memcp pack member uses for its
// own in-memory ordered index).
//
// In a production deployment the Tree interface would be satisfied by a
// real LSM tree with on-disk segments, Bloom filters, and a block index —
// explicitly out of scope for this module (spec.md §1). Memtable exists so
// the rest of the module (read/write transactions, the batch commit path,
// the compaction dispatcher) has a real, testable tree to drive; nothing
// outside this package depends on it being backed by a B-tree rather than
// a skip list or any other ordered structure.
//
// # Version ordering
//
// Entries are ordered by (user key ascending, sequence number
// descending), so for any fixed key its versions appear newest-first.
// Looking up a key "as of" snapshot seqno S is then a single
// greater-or-equal descent: the first entry at or after (key, S) is the
// newest version not newer than S.
package tree
