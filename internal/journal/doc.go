// Package journal implements the keyspace's sharded write-ahead log: the
// on-disk framing of committed batches, crash-safe recovery of a shard file
// tolerating arbitrary tail corruption, and the rotation protocol that seals
// a shard and replaces it with a fresh one.
//
// # Overview
//
// A journal is split into a fixed number of independent shard files so that
// concurrent commits (serialized at the batch level by the keyspace's
// writer lock, but potentially issued back-to-back) don't all contend on
// the same file descriptor and fsync call. Each shard is a flat, append-only
// sequence of framed markers (see marker.go) forming a log of atomic batches.
//
// # Architecture
//
//	┌───────────────────────────────────────────┐
//	│                 Journal                    │
//	│   (round-robin shard selection, full-lock  │
//	│    flush/rotate coordination)              │
//	├───────────┬───────────┬───────────┬────────┤
//	│  Shard 0  │  Shard 1  │  Shard 2  │ Shard 3 │
//	│ (rwlock)  │ (rwlock)  │ (rwlock)  │(rwlock) │
//	└───────────┴───────────┴───────────┴─────────┘
//
// Recovery (Recover) reconstructs the ordered sequence of fully-formed
// batches from one shard file, discarding any trailing, malformed, or
// out-of-context markers without error — see the package-level Recover
// documentation for the exact contract tests depend on.
package journal
