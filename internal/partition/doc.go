// Package partition implements the per-partition storage unit the
// keyspace core operates on (SPEC_FULL.md §4.J), and the name-keyed
// registry that tracks every open partition (§4.K).
//
// A Handle owns exactly one tree.Tree, a Config describing its
// compaction/flush thresholds, and a set of cumulative, atomically
// updated operation counters. This is the in-process generalization of
// the teacher's internal/shard.Shard: where that type owned a
// network-addressable hash shard's store and stats, Handle owns a
// named LSM partition's tree and stats — same shape, different axis of
// partitioning (by name, not by consistent-hash bucket).
package partition
