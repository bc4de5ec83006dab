package storage

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStorage struct{}

func (stubStorage) SaveFile(context.Context, []byte, string) (string, error) {
	return "https://example.com/file", nil
}

func TestResolve(t *testing.T) {
	available := map[string]FileStorage{
		"qase":    stubStorage{},
		LocalName: NewLocal(t.TempDir()),
	}

	t.Run("none disables storage", func(t *testing.T) {
		require.Nil(t, Resolve(zerolog.Nop(), None, available))
	})

	t.Run("none is case insensitive", func(t *testing.T) {
		var buf bytes.Buffer
		require.Nil(t, Resolve(zerolog.New(&buf), "None", available))
		assert.NotContains(t, buf.String(), "Unable to find")
	})

	t.Run("known name", func(t *testing.T) {
		require.Equal(t, stubStorage{}, Resolve(zerolog.Nop(), "qase", available))
	})

	t.Run("unknown name lists available storages", func(t *testing.T) {
		var buf bytes.Buffer
		require.Nil(t, Resolve(zerolog.New(&buf), "s3", available))
		assert.Contains(t, buf.String(), "Unable to find s3 file storage. Available storages: local, qase")
	})
}

func TestLocal_SaveFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := NewLocal("/artifacts", WithFs(fsys))

	url, err := l.SaveFile(context.Background(), []byte("png"), "staging/chrome/run-7/TestLogin/screenshot.png")
	require.NoError(t, err)
	require.Equal(t, "file:///artifacts/staging/chrome/run-7/TestLogin/screenshot.png", url)

	data, err := afero.ReadFile(fsys, "/artifacts/staging/chrome/run-7/TestLogin/screenshot.png")
	require.NoError(t, err)
	require.Equal(t, []byte("png"), data)
}

func TestLocal_SaveFileStaysBelowRoot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := NewLocal("/artifacts", WithFs(fsys), WithBaseURL("https://files.example.com/"))

	url, err := l.SaveFile(context.Background(), []byte("x"), "../../etc/Test Name/html.html")
	require.NoError(t, err)
	require.Equal(t, "https://files.example.com/etc/Test%20Name/html.html", url)

	exists, err := afero.Exists(fsys, "/artifacts/etc/Test Name/html.html")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestLocal_SaveFileEmptyName(t *testing.T) {
	_, err := NewLocal("/artifacts", WithFs(afero.NewMemMapFs())).SaveFile(context.Background(), nil, "")
	require.Error(t, err)
}
