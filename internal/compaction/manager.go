package compaction

import (
	"container/list"
	"context"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dreamware/keyspace/internal/partition"
)

// unbounded is the Weighted semaphore's total capacity. Manager uses it
// purely as a counting semaphore (see doc.go): the full capacity is
// acquired up front so the count starts at zero, and every enqueued
// partition releases exactly one unit for a waiting worker to acquire.
const unbounded = math.MaxInt64 / 2

// Manager is the compaction dispatcher: a FIFO queue of partitions
// needing compaction, gated by a counting semaphore so Wait blocks until
// at least one partition is pending.
type Manager struct {
	mu    sync.Mutex
	queue *list.List
	sem   *semaphore.Weighted
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	m := &Manager{
		queue: list.New(),
		sem:   semaphore.NewWeighted(unbounded),
	}
	// Drain the semaphore to zero so Wait blocks until Notify releases.
	_ = m.sem.Acquire(context.Background(), unbounded)
	return m
}

// Notify enqueues h for compaction and wakes one waiter.
func (m *Manager) Notify(h *partition.Handle) {
	m.mu.Lock()
	m.queue.PushBack(h)
	m.mu.Unlock()
	m.sem.Release(1)
}

// Pop removes and returns the oldest queued partition, or (nil, false)
// if the queue is empty. Non-blocking; pair with Wait to block until an
// item is available.
func (m *Manager) Pop() (*partition.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	front := m.queue.Front()
	if front == nil {
		return nil, false
	}
	m.queue.Remove(front)
	return front.Value.(*partition.Handle), true
}

// Wait blocks until at least one partition is queued, or ctx is
// canceled. On success, the caller should immediately Pop.
func (m *Manager) Wait(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

// Len reports the number of partitions currently queued.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}
