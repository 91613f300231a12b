package journal

import (
	"fmt"
	"os"
)

// PersistMode is the durability level requested for a flush. Buffer only
// guarantees the bytes are in the process's or the OS's write buffer;
// SyncData and SyncAll both escalate to a full fsync (Go's standard
// library does not expose a portable fdatasync, so the two are
// equivalent here — see DESIGN.md).
type PersistMode uint8

const (
	// Buffer performs no flush beyond whatever buffering the OS already does.
	Buffer PersistMode = iota
	// SyncData fsyncs file contents.
	SyncData
	// SyncAll fsyncs file contents and metadata.
	SyncAll
)

// Shard owns exactly one journal file and its write buffer. Callers hold
// a single shard's lock (via Journal.GetWriter) for one batch at a time;
// Shard itself does no locking.
type Shard struct {
	file        *os.File
	path        string
	shouldSync  bool
	writeBuffer []byte
}

// CreateNew creates a brand-new, empty shard file at path. It fails if a
// file already exists there or the create otherwise fails.
func CreateNew(path string) (*Shard, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: create shard %s: %w", path, err)
	}
	return &Shard{file: f, path: path}, nil
}

// FromFile opens an existing shard file for appending, preserving any
// prior content and seeking to its end.
func FromFile(path string) (*Shard, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open shard %s: %w", path, err)
	}
	return &Shard{file: f, path: path}, nil
}

// Path returns the shard's current file path.
func (s *Shard) Path() string { return s.path }

// ShouldSync reports whether a write_batch has happened since the last
// flush with a non-Buffer mode. The outer Journal uses this to skip
// fsyncing idle shards during a full flush.
func (s *Shard) ShouldSync() bool { return s.shouldSync }

// WriteBatch serializes items as one framed batch record (Start · Item* ·
// End) and appends it to the shard file. On success the bytes are at
// least in the OS's buffer; WriteBatch itself never fsyncs.
func (s *Shard) WriteBatch(items []Item, seqno uint64, compression CompressionKind) error {
	s.writeBuffer = encodeBatch(s.writeBuffer[:0], items, seqno, compression)

	if _, err := s.file.Write(s.writeBuffer); err != nil {
		return fmt.Errorf("journal: write batch to %s: %w", s.path, err)
	}
	s.shouldSync = true
	return nil
}

// Flush escalates durability per mode. It is idempotent: calling it
// repeatedly leaves the file in the same state. Flush(Buffer) is a no-op
// that never fails; every SyncData or SyncAll call issues an fsync, which
// can fail.
func (s *Shard) Flush(mode PersistMode) error {
	if mode == Buffer {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("journal: fsync shard %s: %w", s.path, err)
	}
	s.shouldSync = false
	return nil
}

// Rotate atomically replaces this shard's active file with a freshly
// created one at newPath. The old file descriptor is closed only after
// the new one exists and is ready, so a failure to create the new file
// leaves the old one writable.
func (s *Shard) Rotate(newPath string) error {
	newFile, err := os.OpenFile(newPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("journal: rotate shard to %s: %w", newPath, err)
	}

	old := s.file
	s.file = newFile
	s.path = newPath
	s.shouldSync = false

	if err := old.Close(); err != nil {
		return fmt.Errorf("journal: close rotated-out shard: %w", err)
	}
	return nil
}

// Close releases the shard's file descriptor without flushing. Callers
// that need durability should Flush first.
func (s *Shard) Close() error {
	return s.file.Close()
}

// ReadAll reads the shard file's full contents from the beginning,
// leaving the write position (end of file) untouched for subsequent
// appends. Used by Recover.
func (s *Shard) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("journal: read shard %s: %w", s.path, err)
	}
	return data, nil
}
