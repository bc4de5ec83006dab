package plugin

// This file contains the provider registry. Every capability keeps an ordered
// list of providers; the first provider giving an answer wins. Defaults are
// registered after everything else so any earlier provider overrides them.

import (
	"github.com/qasego/qasego/debuginfo"
	"github.com/qasego/qasego/model"
	"github.com/qasego/qasego/storage"
)

type (
	// StoragesProvider returns the file storages it knows, by name
	StoragesProvider func() map[string]storage.FileStorage
	// BrowserProvider returns the browser label of the session
	BrowserProvider func() string
	// DebugProvider returns the debug source of a failed test, or nil
	DebugProvider func(item model.TestItem) debuginfo.Source
	// RunNameProvider returns a custom run title
	RunNameProvider func() string
)

// Registry holds providers in registration order.
type Registry struct {
	storages []StoragesProvider
	browsers []BrowserProvider
	debug    []DebugProvider
	runNames []RunNameProvider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) AddStorages(p StoragesProvider) { r.storages = append(r.storages, p) }
func (r *Registry) AddBrowser(p BrowserProvider)   { r.browsers = append(r.browsers, p) }
func (r *Registry) AddDebug(p DebugProvider)       { r.debug = append(r.debug, p) }
func (r *Registry) AddRunName(p RunNameProvider)   { r.runNames = append(r.runNames, p) }

// Storages returns the first non-empty storage mapping.
func (r *Registry) Storages() map[string]storage.FileStorage {
	m, _ := first(len(r.storages), func(i int) map[string]storage.FileStorage {
		return r.storages[i]()
	}, func(m map[string]storage.FileStorage) bool {
		return len(m) > 0
	})
	return m
}

// Browser returns the first non-empty browser label.
func (r *Registry) Browser() string {
	b, _ := first(len(r.browsers), func(i int) string {
		return r.browsers[i]()
	}, nonEmpty)
	return b
}

// RunName returns the first non-empty custom run name.
func (r *Registry) RunName() string {
	n, _ := first(len(r.runNames), func(i int) string {
		return r.runNames[i]()
	}, nonEmpty)
	return n
}

// Debug returns the first debug source available for item.
func (r *Registry) Debug(item model.TestItem) debuginfo.Source {
	src, _ := first(len(r.debug), func(i int) debuginfo.Source {
		return r.debug[i](item)
	}, func(s debuginfo.Source) bool {
		return s != nil
	})
	return src
}

func nonEmpty(s string) bool {
	return s != ""
}

// first queries n candidates in order and returns the first answered value.
func first[T any](n int, answer func(i int) T, answered func(T) bool) (T, bool) {
	for i := range n {
		if v := answer(i); answered(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
