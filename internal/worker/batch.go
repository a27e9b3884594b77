package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/gstgraph/internal/model"
)

// Builder analyzes one dataset directory
type Builder interface {
	BuildDir(ctx context.Context, dir string) (*model.Snapshot, error)
}

// BuildJob represents the analysis of one dataset directory
type BuildJob struct {
	Index   int
	Dir     string
	Builder Builder
}

// Execute executes the build job
func (j *BuildJob) Execute(ctx context.Context) Result {
	snap, err := j.Builder.BuildDir(ctx, j.Dir)
	if err != nil {
		return &BuildResult{Index: j.Index, Dir: j.Dir, Error: err}
	}
	return &BuildResult{Index: j.Index, Dir: j.Dir, Snapshot: snap}
}

// BuildResult represents the result of a build job
type BuildResult struct {
	Index    int
	Dir      string
	Snapshot *model.Snapshot
	Error    error
}

// GetError returns the error from the build result
func (r *BuildResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple dataset directories concurrently
type BatchProcessor struct {
	builder     Builder
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(builder Builder, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		builder:     builder,
		concurrency: concurrency,
	}
}

// ProcessDirs builds every directory and returns results in input order
func (b *BatchProcessor) ProcessDirs(ctx context.Context, dirs []string) []*BuildResult {
	if len(dirs) == 0 {
		return []*BuildResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for i, dir := range dirs {
		pool.Submit(&BuildJob{Index: i, Dir: dir, Builder: b.builder})
	}

	results := pool.Wait()

	ordered := make([]*BuildResult, len(dirs))
	for _, result := range results {
		br := result.(*BuildResult)
		ordered[br.Index] = br
	}
	for i, dir := range dirs {
		if ordered[i] == nil {
			ordered[i] = &BuildResult{Index: i, Dir: dir, Error: fmt.Errorf("build %s: %w", dir, context.Cause(ctx))}
		}
	}

	return ordered
}

// ProcessFile reads directories from a list file and builds them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BuildResult, error) {
	dirs, err := ReadDirsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read directories: %w", err)
	}

	return b.ProcessDirs(ctx, dirs), nil
}

// ReadDirsFromFile reads dataset directories from a file (one per line).
// Relative entries resolve against the list file's own directory.
func ReadDirsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var dirs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		line = filepath.Clean(line)

		if !seen[line] {
			seen[line] = true
			dirs = append(dirs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return dirs, nil
}
