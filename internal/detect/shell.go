package detect

import (
	"github.com/ppiankov/gstgraph/internal/model"
)

// ShellDetector flags entities that move a lot of value while being structurally unimportant
type ShellDetector struct {
	cfg model.ShellConfig
}

// NewShellDetector creates a shell company detector
func NewShellDetector(cfg model.ShellConfig) *ShellDetector {
	return &ShellDetector{cfg: cfg}
}

// Type returns SHELL
func (d *ShellDetector) Type() model.PatternType {
	return model.PatternShell
}

// Detect flags nodes with PageRank below the threshold and volume above it
func (d *ShellDetector) Detect(in Input) Findings {
	g := in.Graph
	findings := Findings{Type: model.PatternShell}
	critical := d.cfg.VolumeThreshold * d.cfg.CriticalVolumeMultiplier

	for _, id := range g.NodeIDs() {
		pr := in.PageRank.Score(id)
		volume := g.Volume(id)
		if pr >= d.cfg.PageRankThreshold || volume <= d.cfg.VolumeThreshold {
			continue
		}

		severity := model.SeverityHigh
		if volume >= critical {
			severity = model.SeverityCritical
		}

		findings.Patterns = append(findings.Patterns, model.FraudPattern{
			ID:       PatternID(model.PatternShell, id),
			Type:     model.PatternShell,
			Severity: severity,
			Entities: []string{id},
			Shell: &model.ShellPayload{
				EntityID:     id,
				PageRank:     model.Round(pr, 6),
				Volume:       model.Round(volume, 2),
				InvoiceCount: g.InDegree(id) + g.OutDegree(id),
			},
		})
	}
	return findings
}
