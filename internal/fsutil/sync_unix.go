//go:build unix

// Package fsutil holds tiny platform-specific disk durability helpers
// shared by the namespace engine's fsimage writer and the data node's
// block store, split per-OS the way the teacher's local backend splits
// fadvise/preallocate/lchtimes into _unix/_windows files.
package fsutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// Fsync flushes f's data and metadata to stable storage before a
// rename-into-place is allowed to proceed, so a crash between write
// and rename cannot observe a zero-length or truncated target.
func Fsync(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
