package cli

// This file contains the providers registered by default. They answer last,
// after everything registered with WithProviders.

import (
	"path/filepath"

	"github.com/qasego/qasego/debuginfo"
	"github.com/qasego/qasego/history"
	"github.com/qasego/qasego/model"
	"github.com/qasego/qasego/plugin"
	"github.com/qasego/qasego/qase"
	"github.com/qasego/qasego/storage"
	"github.com/spf13/afero"
)

func (a *App) registry(client *qase.Client, opts *testOptions) *plugin.Registry {
	r := plugin.NewRegistry()
	for _, register := range a.providers {
		register(r)
	}

	fs := afero.NewOsFs()
	r.AddStorages(func() map[string]storage.FileStorage {
		return map[string]storage.FileStorage{
			qase.StorageName:  qase.NewAttachmentStorage(client),
			storage.LocalName: storage.NewLocal(filepath.Join(history.Root(opts.repoRoot), "artifacts")),
		}
	})
	r.AddBrowser(func() string { return opts.browser })
	r.AddRunName(func() string { return opts.runName })
	r.AddDebug(func(item model.TestItem) debuginfo.Source {
		src := debuginfo.NewDirSource(fs, debuginfo.ArtifactDir(opts.debugDir, item.Dir, item.Name))
		if src == nil {
			return nil
		}
		return src
	})
	return r
}
