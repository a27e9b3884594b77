package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/gstgraph/internal/logger"
	"github.com/ppiankov/gstgraph/internal/metrics"
	"github.com/ppiankov/gstgraph/internal/model"
)

// Engine owns the published snapshot of one dataset and serializes rebuilds.
// Readers never block: Current returns whatever snapshot was last published.
type Engine struct {
	pipeline *Pipeline
	current  atomic.Pointer[model.Snapshot]

	mu      sync.Mutex
	running *buildCall
	pending *buildCall
}

// buildCall is one build shared by every request coalesced into it
type buildCall struct {
	done    chan struct{}
	waiters int
	snap    *model.Snapshot
	err     error
}

// NewEngine creates an engine with no published snapshot
func NewEngine(p *Pipeline) *Engine {
	return &Engine{pipeline: p}
}

// Current returns the last published snapshot, or nil before the first successful build
func (e *Engine) Current() *model.Snapshot {
	return e.current.Load()
}

// Rebuild requests a build and waits for it.
// Requests arriving while a build runs share a single follow-up build that
// starts once the running one completes. A cancelled ctx stops the wait,
// not the build.
func (e *Engine) Rebuild(ctx context.Context) (*model.Snapshot, error) {
	e.mu.Lock()
	var call *buildCall
	switch {
	case e.running == nil:
		call = &buildCall{done: make(chan struct{})}
		e.running = call
		go e.run(call)
	case e.pending == nil:
		call = &buildCall{done: make(chan struct{})}
		e.pending = call
		metrics.RecordCoalesced()
	default:
		call = e.pending
		metrics.RecordCoalesced()
	}
	call.waiters++
	e.mu.Unlock()

	select {
	case <-call.done:
		return call.snap, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run executes call and then any follow-up queued behind it
func (e *Engine) run(call *buildCall) {
	for call != nil {
		e.mu.Lock()
		waiters := call.waiters
		e.mu.Unlock()
		logger.Debug("build started", zap.Int("requests", waiters))

		call.snap, call.err = e.build()
		close(call.done)

		e.mu.Lock()
		call = e.pending
		e.pending = nil
		e.running = call
		e.mu.Unlock()
	}
}

// build derives a snapshot and publishes it on success.
// The version only advances when the dataset fingerprint changes.
func (e *Engine) build() (*model.Snapshot, error) {
	start := time.Now()

	snap, err := e.pipeline.Build(context.Background())
	if err != nil {
		metrics.RecordBuild(false, time.Since(start).Seconds())
		fields := []zap.Field{zap.Error(err)}
		if prev := e.current.Load(); prev != nil {
			fields = append(fields, zap.Uint64("serving_version", prev.Version))
		}
		logger.Error("build failed, previous snapshot kept", fields...)
		return nil, err
	}

	snap.Version = 1
	if prev := e.current.Load(); prev != nil {
		snap.Version = prev.Version
		if prev.Fingerprint != snap.Fingerprint {
			snap.Version++
		}
	}
	e.current.Store(snap)

	metrics.RecordBuild(true, time.Since(start).Seconds())
	metrics.RecordSnapshot(snap)
	logger.Info("snapshot published",
		zap.Uint64("version", snap.Version),
		zap.String("fingerprint", snap.Fingerprint),
		zap.Int("nodes", len(snap.Graph.Nodes)),
		zap.Int("edges", len(snap.Graph.Edges)),
		zap.Int("mismatches", len(snap.Reconciliation.Mismatches)),
		zap.Int("patterns", len(snap.Patterns.Patterns)),
		zap.Int("anomalies", len(snap.Anomalies.Anomalies)),
		zap.Int("alerts", len(snap.Alerts)),
		zap.Int("warnings", len(snap.Warnings)),
		zap.Duration("duration", snap.Duration))
	return snap, nil
}
