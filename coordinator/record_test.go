package coordinator

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestRecordFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	rec := NewRecordFile(fsys, "/work/.qasego-run")

	_, ok, err := rec.Read()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, rec.Write(1234))

	// A fresh handle sees the same id
	id, ok, err := NewRecordFile(fsys, "/work/.qasego-run").Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1234), id)

	require.NoError(t, rec.Remove())
	require.NoError(t, rec.Remove())

	_, ok, err = rec.Read()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordFile_Invalid(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/work/.qasego-run", []byte("not-a-number"), 0644))

	_, _, err := NewRecordFile(fsys, "/work/.qasego-run").Read()
	require.Error(t, err)
}

func TestRecordFile_TrailingNewline(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/work/.qasego-run", []byte("77\n"), 0644))

	id, ok, err := NewRecordFile(fsys, "/work/.qasego-run").Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(77), id)
}
