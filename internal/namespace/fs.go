package namespace

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Entry is a single (name, kind) pair as returned by List; Kind is "f"
// or "d".
type Entry struct {
	Name string
	Kind string
}

// splitPath normalizes an absolute path into its components, dropping
// any empty components produced by the split (so "/a//b/" and "/a/b"
// both yield ["a","b"]). It rejects non-absolute paths.
func splitPath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, errors.New("must specify absolute path")
	}
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// splitParentLeaf normalizes path and splits it into its parent's
// components and its leaf name. It rejects the root path, which has no
// leaf.
func splitParentLeaf(path string) ([]string, string, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, "", err
	}
	if len(parts) == 0 {
		return nil, "", errors.New("root has no parent")
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// resolveSlot walks dirs from the root, requiring every traversed node
// to be a directory in order to search its children. When expectDir is
// true, the final resolved node must also be a directory; when false,
// it may be a file (resolveSlot only enforces "directory" on nodes it
// must search *through*).
func (t *Table) resolveSlot(dirs []string, expectDir bool) (int, error) {
	slot := rootSlot
	for _, name := range dirs {
		cur := &t.inodes[slot]
		if cur.Kind != KindDir {
			return 0, errors.New("not a directory: " + cur.Name)
		}
		next, ok := cur.findChild(name)
		if !ok {
			return 0, errors.New("not found: " + name)
		}
		slot = next
		if expectDir && t.inodes[slot].Kind != KindDir {
			return 0, errors.New("not a directory: " + t.inodes[slot].Name)
		}
	}
	return slot, nil
}

// List returns the ordered (name, kind) children of the directory at
// path.
func (t *Table) List(path string) ([]Entry, error) {
	dirs, err := splitPath(path)
	if err != nil {
		return nil, pathErr("list", path, err)
	}
	slot, err := t.resolveSlot(dirs, true)
	if err != nil {
		return nil, pathErr("list", path, err)
	}
	children := t.inodes[slot].Children
	out := make([]Entry, 0, len(children))
	for _, c := range children {
		out = append(out, Entry{Name: c.Name, Kind: t.inodes[c.Slot].Kind.letter()})
	}
	return out, nil
}

// LookupBlock returns the block id of the file at path.
func (t *Table) LookupBlock(path string) (string, error) {
	dirs, err := splitPath(path)
	if err != nil {
		return "", pathErr("lookup_block", path, err)
	}
	slot, err := t.resolveSlot(dirs, false)
	if err != nil {
		return "", pathErr("lookup_block", path, err)
	}
	if t.inodes[slot].Kind != KindFile {
		return "", pathErr("lookup_block", path, errors.New("is a directory"))
	}
	return t.inodes[slot].BlockID, nil
}

// Mkdir creates a new, empty directory at path. The parent must
// already exist and be a directory; the leaf must not already exist.
func (t *Table) Mkdir(path string) error {
	parentDirs, leaf, err := splitParentLeaf(path)
	if err != nil {
		return pathErr("mkdir", path, err)
	}
	parentSlot, err := t.resolveSlot(parentDirs, true)
	if err != nil {
		return pathErr("mkdir", path, err)
	}
	parent := &t.inodes[parentSlot]
	if _, exists := parent.findChild(leaf); exists {
		return pathErr("mkdir", path, errors.New("already exists"))
	}
	slot, err := t.alloc(newDir(leaf))
	if err != nil {
		return err
	}
	parent.addChild(slot, leaf)
	if err := t.persist(); err != nil {
		return err
	}
	return nil
}

// Mkfile creates a new, empty file at path and returns its freshly
// assigned block id (a UUID, minted here). The parent must already
// exist and be a directory; the leaf must not already exist.
func (t *Table) Mkfile(path string) (string, error) {
	parentDirs, leaf, err := splitParentLeaf(path)
	if err != nil {
		return "", pathErr("mkfile", path, err)
	}
	parentSlot, err := t.resolveSlot(parentDirs, true)
	if err != nil {
		return "", pathErr("mkfile", path, err)
	}
	parent := &t.inodes[parentSlot]
	if _, exists := parent.findChild(leaf); exists {
		return "", pathErr("mkfile", path, errors.New("already exists"))
	}
	blockID := uuid.NewString()
	slot, err := t.alloc(newFile(leaf, blockID))
	if err != nil {
		return "", err
	}
	parent.addChild(slot, leaf)
	if err := t.persist(); err != nil {
		return "", err
	}
	return blockID, nil
}

// Rmdir removes the (empty or non-empty) directory at path and
// everything beneath it. Root may not be removed.
func (t *Table) Rmdir(path string) error {
	parentDirs, leaf, err := splitParentLeaf(path)
	if err != nil {
		return pathErr("rmdir", path, err)
	}
	parentSlot, err := t.resolveSlot(parentDirs, true)
	if err != nil {
		return pathErr("rmdir", path, err)
	}
	parent := &t.inodes[parentSlot]
	slot, exists := parent.findChild(leaf)
	if !exists {
		return pathErr("rmdir", path, errors.New("not found"))
	}
	if t.inodes[slot].Kind != KindDir {
		return pathErr("rmdir", path, errors.New("not a directory"))
	}
	parent.removeChild(slot)
	t.freeSubtree(slot)
	if err := t.persist(); err != nil {
		return err
	}
	return nil
}

// Rmfile removes the file at path and returns its (now-forgotten)
// block id. It does not instruct any data node to delete the
// underlying bytes, leaking disk space on data nodes.
//
// The parent is always resolved expecting a directory, for every
// mutation including this one: a prior implementation resolved
// rmfile's parent without that expectation, which is very likely a
// bug since parents must always be directories.
func (t *Table) Rmfile(path string) (string, error) {
	parentDirs, leaf, err := splitParentLeaf(path)
	if err != nil {
		return "", pathErr("rmfile", path, err)
	}
	parentSlot, err := t.resolveSlot(parentDirs, true)
	if err != nil {
		return "", pathErr("rmfile", path, err)
	}
	parent := &t.inodes[parentSlot]
	slot, exists := parent.findChild(leaf)
	if !exists {
		return "", pathErr("rmfile", path, errors.New("not found"))
	}
	if t.inodes[slot].Kind != KindFile {
		return "", pathErr("rmfile", path, errors.New("not a file"))
	}
	blockID := t.inodes[slot].BlockID
	parent.removeChild(slot)
	t.freeSubtree(slot)
	if err := t.persist(); err != nil {
		return "", err
	}
	return blockID, nil
}
