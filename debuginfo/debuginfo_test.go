package debuginfo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	screenshotErr error
	htmlErr       error
	logErr        error
}

func (f fakeSource) Screenshot() ([]byte, error) {
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return []byte("png"), nil
}

func (f fakeSource) PageSource() (string, error) {
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	return "<html></html>", nil
}

func (f fakeSource) BrowserLog() ([]LogEntry, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	return []LogEntry{{Timestamp: 1700000000123, Level: "SEVERE", Message: "boom"}}, nil
}

func (f fakeSource) CurrentURL() (string, error) {
	return "https://shop.example.com/cart", nil
}

// recordingStorage returns storage:// URLs and fails for names in failFor
type recordingStorage struct {
	saved   map[string][]byte
	failFor string
}

func (r *recordingStorage) SaveFile(_ context.Context, content []byte, filename string) (string, error) {
	if r.failFor != "" && strings.HasSuffix(filename, r.failFor) {
		return "", errors.New("upload refused")
	}
	if r.saved == nil {
		r.saved = map[string][]byte{}
	}
	r.saved[filename] = content
	return "storage://" + filename, nil
}

func TestFormatLog(t *testing.T) {
	got := FormatLog([]LogEntry{
		{Timestamp: 1700000000123, Level: "SEVERE", Message: "boom"},
		{Timestamp: 0, Level: "INFO", Message: "start"},
	})
	require.Equal(t, "2023-11-14 22:13:20.123000 SEVERE - boom\n1970-01-01 00:00:00.000000 INFO - start", got)
}

func TestFolder(t *testing.T) {
	require.Equal(t, "staging/chrome/run-12/TestLogin", Folder("staging", "chrome", 12, "TestLogin"))
}

func TestComment_AllArtifacts(t *testing.T) {
	fs := &recordingStorage{}
	info := Collect(zerolog.Nop(), "TestLogin", fakeSource{})

	got := info.Comment(context.Background(), fs, "staging/chrome/run-12/TestLogin")
	want := `
---

* URL: [URL](https://shop.example.com/cart)
* Browser log: [Browser log](storage://staging/chrome/run-12/TestLogin/browser_log.txt)
* Screenshot: ![driver screenshot](storage://staging/chrome/run-12/TestLogin/screenshot.png)
* HTML: [HTML file](storage://staging/chrome/run-12/TestLogin/html.html)

---
`
	require.Equal(t, want, got)
	require.Equal(t, []byte("png"), fs.saved["staging/chrome/run-12/TestLogin/screenshot.png"])
	require.Equal(t, []byte("<html></html>"), fs.saved["staging/chrome/run-12/TestLogin/html.html"])
}

func TestComment_ScreenshotExtractionFails(t *testing.T) {
	fs := &recordingStorage{}
	info := Collect(zerolog.Nop(), "TestLogin", fakeSource{screenshotErr: errors.New("no session")})

	got := info.Comment(context.Background(), fs, "f")
	assert.Contains(t, got, "![driver screenshot]()")
	assert.Contains(t, got, "[HTML file](storage://f/html.html)")
	assert.Contains(t, got, "[Browser log](storage://f/browser_log.txt)")
	assert.NotContains(t, fs.saved, "f/screenshot.png")
}

func TestComment_UploadFailureIsIsolated(t *testing.T) {
	fs := &recordingStorage{failFor: HTMLFile}
	info := Collect(zerolog.Nop(), "TestLogin", fakeSource{})

	got := info.Comment(context.Background(), fs, "f")
	assert.Contains(t, got, "[HTML file]()")
	assert.Contains(t, got, "![driver screenshot](storage://f/screenshot.png)")
	assert.Contains(t, got, "[Browser log](storage://f/browser_log.txt)")
}
