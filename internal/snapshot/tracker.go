package snapshot

import "sync"

// Tracker maintains, for every currently-pinned sequence number, a
// refcount of how many readers/writers are pinning it. It exposes the
// minimum pinned instant as the watermark below which compacted-away
// versions can never be observed.
//
// All operations are protected by a single mutex. Register and Release
// are O(1) map updates; SafeGCSeqno and MinLive scan every pinned
// instant and are O(n), where n is the number of distinct instants with
// at least one live pin, which in practice is small (most readers share
// a recent instant).
type Tracker struct {
	mu                 sync.Mutex
	liveCounts         map[uint64]int
	latestAllocatedSeq uint64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{liveCounts: make(map[uint64]int)}
}

// Register pins instant, incrementing its refcount.
func (t *Tracker) Register(instant uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.liveCounts[instant]++
}

// Release unpins instant, decrementing its refcount and removing the
// entry once it reaches zero.
func (t *Tracker) Release(instant uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.liveCounts[instant]
	if !ok {
		return
	}
	if n <= 1 {
		delete(t.liveCounts, instant)
		return
	}
	t.liveCounts[instant] = n - 1
}

// ObserveAllocated records that seqno has been allocated (by a commit),
// so SafeGCSeqno has a sensible answer even when no reader is currently
// live.
func (t *Tracker) ObserveAllocated(seqno uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seqno > t.latestAllocatedSeq {
		t.latestAllocatedSeq = seqno
	}
}

// SafeGCSeqno returns the minimum live-pinned instant, or
// latestAllocatedSeq+1 when nothing is pinned — i.e. every version ever
// committed is safe to compact away down to the newest one, since no
// reader could possibly be looking at an older one.
func (t *Tracker) SafeGCSeqno() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	min, any := uint64(0), false
	for k := range t.liveCounts {
		if !any || k < min {
			min = k
			any = true
		}
	}
	if any {
		return min
	}
	return t.latestAllocatedSeq + 1
}

// MinLive returns the minimum live-pinned instant and whether any
// instant is currently pinned at all.
func (t *Tracker) MinLive() (instant uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	min, any := uint64(0), false
	for k := range t.liveCounts {
		if !any || k < min {
			min = k
			any = true
		}
	}
	return min, any
}
