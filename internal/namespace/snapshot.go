package namespace

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tarunmenon95/gohdfs/internal/fsutil"
)

// snapshotState is the gob-encodable projection of Table's private
// fields; gob needs exported fields to reach via reflection, so the
// live Table (kept small-surface on purpose) is copied into this shape
// only at persistence time.
type snapshotState struct {
	Inodes [Capacity]inode
	Bitmap [Capacity]bool
}

// persist serializes the table to its fsimage path, writing to a
// temporary file in the same directory and renaming over the target so
// a crash mid-write never leaves a torn fsimage.
func (t *Table) persist() error {
	state := snapshotState{Inodes: t.inodes, Bitmap: t.bitmap}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&state); err != nil {
		return fmt.Errorf("encode fsimage: %w", err)
	}

	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, ".fsimage-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp fsimage: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp fsimage: %w", err)
	}
	if err := fsutil.Fsync(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("fsync temp fsimage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp fsimage: %w", err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename fsimage: %w", err)
	}
	return nil
}

// load reconstitutes a Table from the fsimage at path.
func load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state snapshotState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return nil, fmt.Errorf("decode fsimage: %w", err)
	}
	return &Table{path: path, inodes: state.Inodes, bitmap: state.Bitmap}, nil
}
