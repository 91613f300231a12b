package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerSafeGCSeqnoWithNoLiveNonce(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, uint64(1), tr.SafeGCSeqno())

	tr.ObserveAllocated(10)
	assert.Equal(t, uint64(11), tr.SafeGCSeqno())
}

func TestTrackerSafeGCSeqnoIsMinLive(t *testing.T) {
	tr := NewTracker()
	tr.ObserveAllocated(100)

	tr.Register(5)
	tr.Register(8)
	assert.Equal(t, uint64(5), tr.SafeGCSeqno())

	tr.Release(5)
	assert.Equal(t, uint64(8), tr.SafeGCSeqno())

	tr.Release(8)
	assert.Equal(t, uint64(101), tr.SafeGCSeqno())
}

func TestTrackerConcurrentNoncesAtSameInstantDontCrossRelease(t *testing.T) {
	tr := NewTracker()

	n1 := New(tr, 5)
	n2 := New(tr, 5)

	min, ok := tr.MinLive()
	assert.True(t, ok)
	assert.Equal(t, uint64(5), min)

	n1.Release()
	// n2 still pins 5.
	min, ok = tr.MinLive()
	assert.True(t, ok)
	assert.Equal(t, uint64(5), min)

	n2.Release()
	_, ok = tr.MinLive()
	assert.False(t, ok)
}

func TestNonceDoubleReleaseIsNoop(t *testing.T) {
	tr := NewTracker()
	n := New(tr, 3)
	n.Release()
	n.Release()

	_, ok := tr.MinLive()
	assert.False(t, ok)
}

// P7: SafeGCSeqno never exceeds any registered nonce's instant.
func TestSafeGCNeverExceedsLiveInstant(t *testing.T) {
	tr := NewTracker()
	instants := []uint64{50, 10, 30, 99, 2}

	var nonces []Nonce
	for _, inst := range instants {
		nonces = append(nonces, New(tr, inst))
	}

	for _, inst := range instants {
		assert.LessOrEqual(t, tr.SafeGCSeqno(), inst)
	}

	for i := range nonces {
		nonces[i].Release()
	}
}
