package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/gstgraph/internal/model"
)

// Source produces a complete raw snapshot of the five tables
type Source interface {
	Load(ctx context.Context) (*RawDataset, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func(ctx context.Context) (*RawDataset, error)

// Load calls f(ctx)
func (f SourceFunc) Load(ctx context.Context) (*RawDataset, error) {
	return f(ctx)
}

// DirSource loads tables from files named after each table in one directory
type DirSource struct {
	dir      string
	registry *Registry
}

// NewDirSource creates a source over dir; a nil registry uses the defaults
func NewDirSource(dir string, registry *Registry) *DirSource {
	if registry == nil {
		registry = NewRegistry()
	}
	return &DirSource{dir: dir, registry: registry}
}

// Dir returns the dataset directory
func (s *DirSource) Dir() string {
	return s.dir
}

// Load reads all tables concurrently. A missing required table is a DataIntegrityError.
func (s *DirSource) Load(ctx context.Context) (*RawDataset, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("dataset dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset dir: %s is not a directory", s.dir)
	}

	tables := make([]*RawTable, len(TableNames))
	g, gctx := errgroup.WithContext(ctx)

	for i, name := range TableNames {
		g.Go(func() error {
			path, adapter := s.locate(name)
			if adapter == nil {
				if optionalTables[name] {
					return nil
				}
				return &model.DataIntegrityError{Table: name}
			}
			table, err := adapter.Read(gctx, path)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			table.Name = name
			tables[i] = table
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw := NewRawDataset()
	for _, t := range tables {
		if t != nil {
			raw.Add(t)
		}
	}
	return raw, nil
}

// locate finds the first existing file for a table in extension registration order
func (s *DirSource) locate(name string) (string, Adapter) {
	for _, ext := range s.registry.Extensions() {
		path := filepath.Join(s.dir, name+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, s.registry.FindAdapter(path)
		}
	}
	return "", nil
}
