package plugin

import (
	"context"
	"testing"

	"github.com/qasego/qasego/debuginfo"
	"github.com/qasego/qasego/model"
	"github.com/qasego/qasego/storage"
	"github.com/stretchr/testify/require"
)

type namedStorage string

func (n namedStorage) SaveFile(context.Context, []byte, string) (string, error) {
	return string(n), nil
}

func TestRegistry_FirstAnswerWins(t *testing.T) {
	r := NewRegistry()

	require.Empty(t, r.Browser())
	require.Empty(t, r.RunName())
	require.Nil(t, r.Storages())
	require.Nil(t, r.Debug(model.TestItem{}))

	r.AddBrowser(func() string { return "" })
	r.AddBrowser(func() string { return "firefox" })
	r.AddBrowser(func() string { return "chrome" })
	require.Equal(t, "firefox", r.Browser())

	r.AddRunName(func() string { return "nightly" })
	require.Equal(t, "nightly", r.RunName())

	r.AddStorages(func() map[string]storage.FileStorage { return nil })
	r.AddStorages(func() map[string]storage.FileStorage {
		return map[string]storage.FileStorage{"s3": namedStorage("s3")}
	})
	r.AddStorages(func() map[string]storage.FileStorage {
		return map[string]storage.FileStorage{"qase": namedStorage("qase")}
	})
	require.Equal(t, map[string]storage.FileStorage{"s3": namedStorage("s3")}, r.Storages())
}

type stubSource struct{ debuginfo.Source }

func TestRegistry_DebugPerItem(t *testing.T) {
	r := NewRegistry()
	want := stubSource{}

	r.AddDebug(func(item model.TestItem) debuginfo.Source {
		if item.Name == "TestLogin" {
			return want
		}
		return nil
	})
	r.AddDebug(func(model.TestItem) debuginfo.Source { return nil })

	require.Equal(t, want, r.Debug(model.TestItem{Name: "TestLogin"}))
	require.Nil(t, r.Debug(model.TestItem{Name: "TestLogout"}))
}
