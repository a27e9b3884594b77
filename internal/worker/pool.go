package worker

import (
	"context"
	"fmt"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a pool of workers that execute jobs concurrently
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	collected  []Result
	collectWG  sync.WaitGroup
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs observe parent cancellation
func NewPoolWithContext(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.collectWG.Add(1)
	go func() {
		defer p.collectWG.Done()
		for result := range p.results {
			p.collected = append(p.collected, result)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit submits a job to the pool for execution
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait waits for all submitted jobs and returns their results in completion order
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
	p.cancelFunc()
	return p.collected
}

// Shutdown stops the pool without draining queued jobs
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Stage is a named, independent piece of one build
type Stage struct {
	Name string
	Run  func(ctx context.Context) (any, error)
}

// StageResult is the outcome of one stage
type StageResult struct {
	Name  string
	Value any
	Error error
}

// GetError returns the stage error
func (r *StageResult) GetError() error {
	return r.Error
}

// Execute runs the stage, converting a panic into an error
func (s Stage) Execute(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &StageResult{Name: s.Name, Error: fmt.Errorf("%s: panic: %v", s.Name, r)}
		}
	}()
	value, err := s.Run(ctx)
	return &StageResult{Name: s.Name, Value: value, Error: err}
}

// RunStages executes stages on a fresh pool and returns their values keyed by name.
// On failure it returns the error of the first failing stage in submission order.
func RunStages(ctx context.Context, workers int, stages []Stage) (map[string]any, error) {
	pool := NewPoolWithContext(ctx, workers)
	pool.Start()
	for _, s := range stages {
		pool.Submit(s)
	}
	results := pool.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byName := make(map[string]*StageResult, len(results))
	for _, r := range results {
		sr := r.(*StageResult)
		byName[sr.Name] = sr
	}

	values := make(map[string]any, len(stages))
	for _, s := range stages {
		sr, ok := byName[s.Name]
		if !ok {
			return nil, fmt.Errorf("stage %s: no result", s.Name)
		}
		if sr.Error != nil {
			return nil, fmt.Errorf("stage %s: %w", s.Name, sr.Error)
		}
		values[s.Name] = sr.Value
	}
	return values, nil
}
