package flatfs

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"uptime/datamodel/block"
	"uptime/oid"
)

func TestPutGetDelete(t *testing.T) {
	fs, err := New(t.TempDir())
	require.NoError(t, err)

	data := bytes.Repeat([]byte("checker"), 1000)
	b := block.New(oid.OidTypeState, data)

	o, err := fs.Put(b)
	require.NoError(t, err)

	// Second put of the same content is a no-op
	_, err = fs.Put(b)
	require.NoError(t, err)

	has, err := fs.Has(o)
	require.NoError(t, err)
	require.True(t, has)

	got, err := fs.Get(o)
	require.NoError(t, err)
	require.Equal(t, data, got.Data)
	require.Equal(t, uint64(len(data)), got.Length)

	oids, err := fs.Enumerate()
	require.NoError(t, err)
	require.Len(t, oids, 1)
	require.True(t, oids[0].Equal(o))

	require.NoError(t, fs.Delete(o))
	_, err = fs.Get(o)
	require.ErrorIs(t, err, block.ErrNotFound)
	require.NoError(t, fs.Delete(o))
}

func TestGetDetectsCorruption(t *testing.T) {
	fs, err := New(t.TempDir())
	require.NoError(t, err)

	b := block.New(oid.OidTypeRaw, []byte("original"))
	o, err := fs.Put(b)
	require.NoError(t, err)

	_, path := fs.oidToPath(o)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	_, err = fs.Get(o)
	require.ErrorIs(t, err, block.ErrCorrupted)
}
