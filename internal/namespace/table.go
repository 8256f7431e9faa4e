package namespace

import (
	"errors"
	"os"
)

// Capacity is the fixed number of inode slots (N = 4096, per spec).
const Capacity = 4096

const rootSlot = 0

// Table is the in-memory inode arena: a fixed-capacity array of slots
// paired with a parallel occupancy bitmap. It is not internally
// synchronized — callers (the name service's request handler) must
// serialize mutations. Each mutating method rewrites the fsimage
// itself before returning.
type Table struct {
	path   string
	inodes [Capacity]inode
	bitmap [Capacity]bool
}

// New builds a fresh one-root tree at path (not yet written to disk).
func New(path string) *Table {
	t := &Table{path: path}
	t.inodes[rootSlot] = newDir("/")
	t.bitmap[rootSlot] = true
	return t
}

// Open loads the fsimage at path if it exists, or creates a fresh
// one-root tree otherwise.
func Open(path string) (*Table, error) {
	t, err := load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(path), nil
		}
		return nil, err
	}
	return t, nil
}

// alloc finds the first free slot by linear scan, marks it occupied,
// and stores n there. Returns CapacityError if the table is full.
func (t *Table) alloc(n inode) (int, error) {
	for i := 0; i < Capacity; i++ {
		if !t.bitmap[i] {
			t.bitmap[i] = true
			t.inodes[i] = n
			return i, nil
		}
	}
	return 0, &CapacityError{Err: errors.New("inode table full")}
}

// freeSubtree clears the bitmap bit for slot and recurses into its
// children (a no-op for files, whose Children list is always empty).
// The slot's contents are left as garbage; nothing may reference a
// cleared slot afterward.
func (t *Table) freeSubtree(slot int) {
	t.bitmap[slot] = false
	for _, c := range t.inodes[slot].Children {
		t.freeSubtree(c.Slot)
	}
}

// OccupiedCount returns the number of set bitmap bits: the inode_slots_used
// gauge's source of truth, also used by tests to check recursive free.
func (t *Table) OccupiedCount() int {
	n := 0
	for _, b := range t.bitmap {
		if b {
			n++
		}
	}
	return n
}
