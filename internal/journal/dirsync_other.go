//go:build !unix

package journal

// fsyncDirectory is a no-op outside Unix, where directory entries don't
// need an explicit fsync to be durable.
func fsyncDirectory(path string) error {
	return nil
}
