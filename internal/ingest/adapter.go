package ingest

import (
	"context"
	"path/filepath"
	"strings"
)

// Adapter reads one table file format into a RawTable
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// Extensions returns the file extensions this adapter reads, with leading dot
	Extensions() []string

	// Read loads the file at path
	Read(ctx context.Context, path string) (*RawTable, error)
}

// Registry manages file format adapters
type Registry struct {
	adapters []Adapter
	byExt    map[string]Adapter
}

// NewRegistry creates a registry with the built-in CSV and XLSX adapters
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
		byExt:    make(map[string]Adapter),
	}

	registry.Register(NewCSVAdapter())
	registry.Register(NewXLSXAdapter())

	return registry
}

// Register registers an adapter; earlier registrations win on extension clashes
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
	for _, ext := range adapter.Extensions() {
		ext = strings.ToLower(ext)
		if _, ok := r.byExt[ext]; !ok {
			r.byExt[ext] = adapter
		}
	}
}

// Extensions returns all known extensions in registration order
func (r *Registry) Extensions() []string {
	var exts []string
	for _, a := range r.adapters {
		for _, ext := range a.Extensions() {
			if r.byExt[strings.ToLower(ext)] == a {
				exts = append(exts, strings.ToLower(ext))
			}
		}
	}
	return exts
}

// FindAdapter finds the adapter for a file path, or nil
func (r *Registry) FindAdapter(path string) Adapter {
	return r.byExt[strings.ToLower(filepath.Ext(path))]
}
