//go:build !unix

package fsutil

import "os"

// Fsync flushes f's data and metadata to stable storage.
func Fsync(f *os.File) error {
	return f.Sync()
}
