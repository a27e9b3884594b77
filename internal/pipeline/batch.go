package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ppiankov/gstgraph/internal/ingest"
	"github.com/ppiankov/gstgraph/internal/model"
)

// DirBuilder analyzes dataset directories independently, one engine per directory
type DirBuilder struct {
	config   *model.Config
	registry *ingest.Registry
	renderer *Renderer
	outRoot  string
}

// NewDirBuilder creates a builder; with a renderer, outputs go to outRoot/<dir name>
func NewDirBuilder(cfg *model.Config, renderer *Renderer, outRoot string) *DirBuilder {
	return &DirBuilder{
		config:   cfg,
		registry: ingest.NewRegistry(),
		renderer: renderer,
		outRoot:  outRoot,
	}
}

// BuildDir builds dir and renders its outputs when configured
func (b *DirBuilder) BuildDir(ctx context.Context, dir string) (*model.Snapshot, error) {
	p, err := NewPipeline(b.config, ingest.NewDirSource(dir, b.registry))
	if err != nil {
		return nil, err
	}

	snap, err := NewEngine(p).Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", dir, err)
	}

	if b.renderer != nil && b.outRoot != "" {
		if _, err := b.renderer.WriteDir(snap, b.OutputDir(dir)); err != nil {
			return nil, fmt.Errorf("render %s: %w", dir, err)
		}
	}
	return snap, nil
}

// OutputDir returns where outputs for dir are written
func (b *DirBuilder) OutputDir(dir string) string {
	return filepath.Join(b.outRoot, filepath.Base(filepath.Clean(dir)))
}
