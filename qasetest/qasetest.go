// Package qasetest contains helpers for tests reported by qasego.
//
//	//qase:case PRJ-42
//	func TestLogin(t *testing.T) {
//		page := openLogin(t)
//		t.Cleanup(func() {
//			if t.Failed() {
//				qasetest.SaveDebug(t, page.Snapshot())
//			}
//		})
//		...
//	}
package qasetest

import (
	"os"
	"testing"

	"github.com/qasego/qasego/debuginfo"
	"github.com/qasego/qasego/model"
	"github.com/spf13/afero"
)

// fs is replaced in tests
var fs = afero.NewOsFs()

// XFail marks t as expected to fail and skips it. The test is reported as
// blocked with reason.
func XFail(t testing.TB, reason string) {
	t.Helper()
	t.Log(model.XfailPrefix + reason)
	t.SkipNow()
}

// SaveDebug stores the browser state of t for the failure comment. It is a
// no-op when the test does not run under qasego.
func SaveDebug(t testing.TB, snap debuginfo.Snapshot) {
	t.Helper()

	root := os.Getenv(debuginfo.DirEnv)
	if root == "" {
		return
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Logf("qasetest: unable to save debug info: %v", err)
		return
	}
	if err := debuginfo.Save(fs, debuginfo.ArtifactDir(root, wd, t.Name()), snap); err != nil {
		t.Logf("qasetest: unable to save debug info: %v", err)
	}
}
