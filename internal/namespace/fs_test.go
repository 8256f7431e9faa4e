package namespace

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "fsimage"))
}

func TestMkdirThenList(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Mkdir("/a"))

	entries, err := tbl.List("/")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "a", Kind: "d"}}, entries)
}

func TestMkfileThenLookupAndList(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Mkdir("/a"))

	blockID, err := tbl.Mkfile("/a/f")
	require.NoError(t, err)
	assert.NotEmpty(t, blockID)

	got, err := tbl.LookupBlock("/a/f")
	require.NoError(t, err)
	assert.Equal(t, blockID, got)

	entries, err := tbl.List("/a")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "f", Kind: "f"}}, entries)
}

func TestMkfileDuplicateRejected(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Mkfile("/f")
	require.NoError(t, err)

	_, err = tbl.Mkfile("/f")
	require.Error(t, err)
	var pe *PathError
	assert.ErrorAs(t, err, &pe)
}

func TestRmfileRoundTrip(t *testing.T) {
	tbl := newTestTable(t)
	blockID, err := tbl.Mkfile("/f")
	require.NoError(t, err)

	removed, err := tbl.Rmfile("/f")
	require.NoError(t, err)
	assert.Equal(t, blockID, removed)

	_, err = tbl.LookupBlock("/f")
	assert.Error(t, err)
}

func TestRmdirIsRecursive(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Mkdir("/a"))
	require.NoError(t, tbl.Mkdir("/a/b"))
	_, err := tbl.Mkfile("/a/b/c")
	require.NoError(t, err)

	require.NoError(t, tbl.Rmdir("/a"))

	entries, err := tbl.List("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, tbl.OccupiedCount())
}

func TestRmdirRejectsFile(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Mkfile("/f")
	require.NoError(t, err)

	err = tbl.Rmdir("/f")
	assert.Error(t, err)
}

func TestParentMustBeDirectory(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Mkfile("/f")
	require.NoError(t, err)

	err = tbl.Mkdir("/f/sub")
	assert.Error(t, err)

	_, err = tbl.Mkfile("/f/sub")
	assert.Error(t, err)
}

func TestCapacityExhausted(t *testing.T) {
	tbl := newTestTable(t)
	for i := 0; i < Capacity-1; i++ {
		_, err := tbl.Mkfile("/f" + strconv.Itoa(i))
		require.NoError(t, err)
	}
	_, err := tbl.Mkfile("/one-too-many")
	require.Error(t, err)
	var ce *CapacityError
	assert.ErrorAs(t, err, &ce)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsimage")
	tbl := New(path)
	require.NoError(t, tbl.Mkdir("/a"))
	blockID, err := tbl.Mkfile("/a/f")
	require.NoError(t, err)

	reloaded, err := Open(path)
	require.NoError(t, err)

	entries, err := reloaded.List("/a")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "f", Kind: "f"}}, entries)

	got, err := reloaded.LookupBlock("/a/f")
	require.NoError(t, err)
	assert.Equal(t, blockID, got)
}

func TestOpenWithoutExistingFsimageCreatesRoot(t *testing.T) {
	tbl, err := Open(filepath.Join(t.TempDir(), "fsimage"))
	require.NoError(t, err)
	entries, err := tbl.List("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
