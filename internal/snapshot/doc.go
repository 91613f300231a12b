// Package snapshot implements the keyspace's snapshot watermark: the
// Tracker that finds the minimum sequence number still visible to any
// live reader, and the Nonce each reader/writer holds to pin its view.
//
// Compaction may only discard a version strictly older than
// Tracker.SafeGCSeqno — never older than any nonce currently registered.
// This is the mechanism that keeps a long-running reader's snapshot
// consistent even while compaction and new commits proceed concurrently.
package snapshot
