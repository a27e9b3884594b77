package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/gstgraph/internal/alert"
	"github.com/ppiankov/gstgraph/internal/anomaly"
	"github.com/ppiankov/gstgraph/internal/detect"
	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/ingest"
	"github.com/ppiankov/gstgraph/internal/logger"
	"github.com/ppiankov/gstgraph/internal/model"
	"github.com/ppiankov/gstgraph/internal/reconcile"
	"github.com/ppiankov/gstgraph/internal/score"
	"github.com/ppiankov/gstgraph/internal/validate"
	"github.com/ppiankov/gstgraph/internal/worker"
)

const (
	stageReconcile = "reconcile"
	stageAnomaly   = "anomaly"
)

// Pipeline derives one complete snapshot from one dataset source
type Pipeline struct {
	source        ingest.Source
	decoder       *ingest.Decoder
	reconciler    *reconcile.Engine
	detectors     []detect.Detector
	analyzer      *anomaly.Analyzer
	scorer        *score.Scorer
	synthesizer   *alert.Synthesizer
	jurisdictions *validate.JurisdictionRegistry
	config        *model.Config
}

// NewPipeline creates a pipeline over source with the given configuration
func NewPipeline(cfg *model.Config, source ingest.Source) (*Pipeline, error) {
	mode, err := validate.ParseMode(cfg.Validation.IDMode)
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	return &Pipeline{
		source:        source,
		decoder:       ingest.NewDecoder(validate.NewValidator(mode)),
		reconciler:    reconcile.NewEngine(cfg.Reconcile),
		detectors:     detect.All(cfg.Detect),
		analyzer:      anomaly.NewAnalyzer(cfg.Anomaly),
		scorer:        score.NewScorer(cfg.Score),
		synthesizer:   alert.NewSynthesizer(),
		jurisdictions: validate.NewJurisdictionRegistry(nil),
		config:        cfg,
	}, nil
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() *model.Config {
	return p.config
}

// Build loads the source and derives an unversioned snapshot.
// Any error aborts the whole build; nothing partial is returned.
func (p *Pipeline) Build(ctx context.Context) (*model.Snapshot, error) {
	start := time.Now()

	// 1. Load raw tables
	raw, err := p.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	// 2. Decode into typed, sorted records
	ds, warnings, err := p.decoder.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	fingerprint, err := ingest.Fingerprint(ds)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset decoded",
		zap.String("fingerprint", fingerprint),
		zap.Int("entities", len(ds.Entities)),
		zap.Int("outward", len(ds.Outward)),
		zap.Int("inward", len(ds.Inward)),
		zap.Int("summaries", len(ds.Summaries)))

	// 3. Graph and PageRank
	g, refWarnings := graph.Build(ds.Entities, ds.Outward, ds.Inward)
	warnings = append(warnings, refWarnings...)

	pr := graph.PageRank(g, p.config.Graph.PageRank)
	if w := pr.Warning(); w != nil {
		warnings = append(warnings, *w)
		logger.Warn("pagerank did not converge", zap.Int("iterations", pr.Iterations))
	}

	// 4. Independent analyses on the immutable graph and dataset
	values, err := worker.RunStages(ctx, p.config.Concurrency.Workers, p.stages(ds, g, pr))
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	rec := values[stageReconcile].(*model.ReconciliationResult)
	findings := make([]detect.Findings, 0, len(p.detectors))
	for _, d := range p.detectors {
		findings = append(findings, values[detectStage(d)].(detect.Findings))
	}
	patterns := detect.Merge(findings...)
	anomalies := values[stageAnomaly].(anomalyOutput)
	warnings = append(warnings, anomalies.warnings...)

	// 5. Risk scoring depends on graph and reconciliation
	risk := p.scorer.Calculate(score.Input{
		Graph:          g,
		PageRank:       pr,
		Dataset:        ds,
		Reconciliation: rec,
	})

	// 6. Alerts depend on everything before
	alerts := p.synthesizer.Synthesize(alert.Input{
		Reconciliation: rec,
		Patterns:       patterns,
		Anomalies:      anomalies.result,
		Risk:           risk,
	})

	snap := &model.Snapshot{
		Fingerprint:    fingerprint,
		Graph:          p.graphView(g, pr, rec, patterns, risk),
		Reconciliation: *rec,
		Patterns:       *patterns,
		Risk:           risk,
		Anomalies:      *anomalies.result,
		Alerts:         alerts,
		Warnings:       warnings,
		Stats:          ds.Stats,
		BuiltAt:        time.Now().UTC(),
		Duration:       time.Since(start),
	}
	if snap.Warnings == nil {
		snap.Warnings = []model.Warning{}
	}
	if snap.Alerts == nil {
		snap.Alerts = []model.Alert{}
	}
	if snap.Risk == nil {
		snap.Risk = []model.RiskScore{}
	}
	return snap, nil
}

type anomalyOutput struct {
	result   *model.AnomalyResult
	warnings []model.Warning
}

func detectStage(d detect.Detector) string {
	return "detect:" + string(d.Type())
}

func (p *Pipeline) stages(ds *model.Dataset, g *graph.Graph, pr *graph.PageRankResult) []worker.Stage {
	in := detect.Input{Graph: g, PageRank: pr}

	stages := []worker.Stage{{
		Name: stageReconcile,
		Run: func(ctx context.Context) (any, error) {
			return p.reconciler.Reconcile(ds), nil
		},
	}}
	for _, d := range p.detectors {
		stages = append(stages, worker.Stage{
			Name: detectStage(d),
			Run: func(ctx context.Context) (any, error) {
				return d.Detect(in), nil
			},
		})
	}
	stages = append(stages, worker.Stage{
		Name: stageAnomaly,
		Run: func(ctx context.Context) (any, error) {
			result, warnings := p.analyzer.Analyze(ds)
			return anomalyOutput{result: result, warnings: warnings}, nil
		},
	})
	return stages
}
