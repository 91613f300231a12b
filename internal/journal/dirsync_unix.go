//go:build unix

package journal

import "os"

// fsyncDirectory fsyncs a directory so that newly created files within it
// (a fresh shard, a rotated-shard subdirectory) survive a crash. A no-op
// on non-Unix platforms, where the OS doesn't require this.
func fsyncDirectory(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
