package keyspace

import (
	"context"
	"sync"
	"time"

	"github.com/dreamware/keyspace/internal/journal"
)

// flusher is the background durability scheduler described in
// SPEC_FULL.md §4.L: a context-cancelable ticker loop, grounded on the
// teacher's internal/coordinator.HealthMonitor (ticker + context +
// sync.WaitGroup for graceful shutdown, configurable interval) —
// repurposed here from polling node health over HTTP to periodically
// flushing any journal shard left dirty by a Buffer-mode commit.
type flusher struct {
	jnl      *journal.Journal
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newFlusher(jnl *journal.Journal, interval time.Duration) *flusher {
	ctx, cancel := context.WithCancel(context.Background())
	return &flusher{jnl: jnl, interval: interval, ctx: ctx, cancel: cancel}
}

// start launches the flusher's ticker goroutine. A zero interval
// disables it entirely, leaving durability solely up to explicit
// per-commit PersistMode choices.
func (f *flusher) start() {
	if f.interval <= 0 {
		return
	}
	f.wg.Add(1)
	go f.run()
}

func (f *flusher) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.jnl.Flush(journal.SyncData); err != nil {
				log.Error().Err(err).Msg("background flush failed")
			}
		case <-f.ctx.Done():
			return
		}
	}
}

// stop cancels the ticker goroutine and waits for it to exit.
func (f *flusher) stop() {
	f.cancel()
	f.wg.Wait()
}
