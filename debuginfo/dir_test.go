package debuginfo

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestArtifactDir(t *testing.T) {
	a := ArtifactDir("/debug", "/src/shop/e2e", "TestLogin/with_card")
	b := ArtifactDir("/debug", "/src/shop/e2e", "TestLogin")
	c := ArtifactDir("/debug", "/src/shop/api", "TestLogin")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Contains(t, a, "/debug/")
}

func TestDirSource_RoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	dir := ArtifactDir("/debug", "/src/shop/e2e", "TestLogin")

	require.Nil(t, NewDirSource(fsys, dir))

	require.NoError(t, Save(fsys, dir, Snapshot{
		Screenshot: []byte("png"),
		HTML:       "<html/>",
		BrowserLog: []LogEntry{{Timestamp: 1, Level: "INFO", Message: "hi"}},
		URL:        "https://shop.example.com/\n",
	}))

	src := NewDirSource(fsys, dir)
	require.NotNil(t, src)

	shot, err := src.Screenshot()
	require.NoError(t, err)
	require.Equal(t, []byte("png"), shot)

	html, err := src.PageSource()
	require.NoError(t, err)
	require.Equal(t, "<html/>", html)

	entries, err := src.BrowserLog()
	require.NoError(t, err)
	require.Equal(t, []LogEntry{{Timestamp: 1, Level: "INFO", Message: "hi"}}, entries)

	url, err := src.CurrentURL()
	require.NoError(t, err)
	require.Equal(t, "https://shop.example.com/", url)
}

func TestDirSource_MissingArtifact(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, Save(fsys, "/debug/x", Snapshot{HTML: "<html/>"}))

	src := NewDirSource(fsys, "/debug/x")
	_, err := src.Screenshot()
	require.Error(t, err)

	info := Collect(zerolog.Nop(), "TestX", src)
	require.False(t, info.Screenshot.Present)
	require.True(t, info.HTML.Present)
}
