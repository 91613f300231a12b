package keyspace

import (
	"time"

	"github.com/dreamware/keyspace/internal/journal"
)

// Options configures a Keyspace at Open/Create time. Zero value is not
// directly usable; construct with DefaultOptions and override fields, or
// use the With* functional options with Open/Create.
type Options struct {
	// DefaultPersistMode is used for a commit whose WriteTx did not set
	// its own durability override (§4.G "Durability setter").
	DefaultPersistMode journal.PersistMode

	// Compression selects the on-disk compression applied to journal
	// Item value payloads (§6.1).
	Compression journal.CompressionKind

	// CompactionWorkers is the number of compaction.Worker goroutines
	// started by Open/Create. Zero disables background compaction
	// entirely (compactions can still be driven manually in tests).
	CompactionWorkers int

	// FlushInterval is the background flush scheduler's tick period
	// (§4.L). Zero disables the scheduler.
	FlushInterval time.Duration
}

// DefaultOptions returns the Options a Keyspace is opened with unless the
// caller overrides them.
func DefaultOptions() Options {
	return Options{
		DefaultPersistMode: journal.SyncData,
		Compression:        journal.NoCompression,
		CompactionWorkers:  2,
		FlushInterval:      500 * time.Millisecond,
	}
}

// Option mutates Options in place; passed variadically to Open/Create.
type Option func(*Options)

// WithDefaultPersistMode overrides the keyspace-wide default durability
// level applied to commits that don't set their own.
func WithDefaultPersistMode(mode journal.PersistMode) Option {
	return func(o *Options) { o.DefaultPersistMode = mode }
}

// WithCompression overrides the journal's value-payload compression.
func WithCompression(kind journal.CompressionKind) Option {
	return func(o *Options) { o.Compression = kind }
}

// WithCompactionWorkers overrides the number of background compaction
// workers. Zero disables them.
func WithCompactionWorkers(n int) Option {
	return func(o *Options) { o.CompactionWorkers = n }
}

// WithFlushInterval overrides the background flush scheduler's tick
// period. Zero disables the scheduler.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Options) { o.FlushInterval = d }
}
