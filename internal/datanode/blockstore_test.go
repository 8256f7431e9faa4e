package datanode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockStorePutGetRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put("b1", []byte("hello")))
	assert.True(t, store.Has("b1"))

	got, err := store.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestBlockStoreGetMissing(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("missing")
	assert.Error(t, err)
	var be *BlockError
	assert.ErrorAs(t, err, &be)
}

func TestBlockStoreSeedsFromExistingDirectory(t *testing.T) {
	root := t.TempDir()
	store, err := Open(root)
	require.NoError(t, err)
	require.NoError(t, store.Put("pre-existing", []byte("data")))

	reopened, err := Open(root)
	require.NoError(t, err)
	assert.True(t, reopened.Has("pre-existing"))
	assert.Contains(t, reopened.BlockIDs(), "pre-existing")
}
