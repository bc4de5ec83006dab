package debuginfo

// Package debuginfo collects browser diagnostics of a failed test and turns
// them into the markdown block appended to the failure comment.

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/qasego/qasego/storage"
	"github.com/rs/zerolog"
)

const (
	ScreenshotFile = "screenshot.png"
	HTMLFile       = "html.html"
	BrowserLogFile = "browser_log.txt"

	logTimestampLayout = "2006-01-02 15:04:05.000000"

	commentTemplate = `
---

* URL: [URL](%s)
* Browser log: [Browser log](%s)
* Screenshot: ![driver screenshot](%s)
* HTML: [HTML file](%s)

---
`
)

// LogEntry is one browser console line.
type LogEntry struct {
	// Milliseconds since the unix epoch
	Timestamp int64  `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Source gives access to the browser state of a failed test.
type Source interface {
	Screenshot() ([]byte, error)
	PageSource() (string, error)
	BrowserLog() ([]LogEntry, error)
	CurrentURL() (string, error)
}

// Artifact is one extracted file. Present is false when extraction failed.
type Artifact struct {
	Data    []byte
	Present bool
}

// Info holds whatever could be extracted from a Source.
type Info struct {
	logger     zerolog.Logger
	TestName   string
	URL        string
	Screenshot Artifact
	HTML       Artifact
	BrowserLog Artifact
}

// Collect extracts every artifact from src. A failing extraction leaves that
// artifact absent and does not affect the others.
func Collect(logger zerolog.Logger, testName string, src Source) *Info {
	logger = logger.With().Str("test", testName).Logger()
	info := &Info{logger: logger, TestName: testName}

	if data, err := src.Screenshot(); err != nil {
		logger.Error().Err(err).Msg("Can't extract screenshot")
	} else {
		info.Screenshot = Artifact{Data: data, Present: true}
	}

	if html, err := src.PageSource(); err != nil {
		logger.Error().Err(err).Msg("Can't extract HTML")
	} else {
		info.HTML = Artifact{Data: []byte(html), Present: true}
	}

	if entries, err := src.BrowserLog(); err != nil {
		logger.Error().Err(err).Msg("Can't extract browser log")
	} else {
		info.BrowserLog = Artifact{Data: []byte(FormatLog(entries)), Present: true}
	}

	if url, err := src.CurrentURL(); err != nil {
		logger.Error().Err(err).Msg("Can't extract current URL")
	} else {
		info.URL = url
	}

	return info
}

// FormatLog renders browser log entries one per line.
func FormatLog(entries []LogEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		ts := time.UnixMilli(e.Timestamp).UTC().Format(logTimestampLayout)
		lines = append(lines, fmt.Sprintf("%s %s - %s", ts, e.Level, e.Message))
	}
	return strings.Join(lines, "\n")
}

// Folder returns the storage folder of a test's artifacts.
func Folder(env, browser string, runID int64, testName string) string {
	return fmt.Sprintf("%s/%s/run-%d/%s", env, browser, runID, testName)
}

// Comment uploads every present artifact below folder and renders the
// diagnostics block. An upload failure leaves that link empty.
func (i *Info) Comment(ctx context.Context, fs storage.FileStorage, folder string) string {
	screenshotURL := i.upload(ctx, fs, folder, ScreenshotFile, i.Screenshot)
	htmlURL := i.upload(ctx, fs, folder, HTMLFile, i.HTML)
	browserLogURL := i.upload(ctx, fs, folder, BrowserLogFile, i.BrowserLog)

	return fmt.Sprintf(commentTemplate, i.URL, browserLogURL, screenshotURL, htmlURL)
}

func (i *Info) upload(ctx context.Context, fs storage.FileStorage, folder, name string, a Artifact) string {
	if !a.Present {
		return ""
	}

	filename := path.Join(folder, name)
	url, err := fs.SaveFile(ctx, a.Data, filename)
	if err != nil {
		i.logger.Error().Err(err).Str("file", filename).Msgf("Can't save %s to storage", name)
		return ""
	}

	i.logger.Debug().Str("file", filename).Str("url", url).Msg("Uploaded debug artifact")
	return url
}
