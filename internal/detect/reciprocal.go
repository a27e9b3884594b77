package detect

import (
	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
)

// ReciprocalDetector finds pairs invoicing each other in both directions
type ReciprocalDetector struct {
	cfg model.ReciprocalConfig
}

// NewReciprocalDetector creates a reciprocal trading detector
func NewReciprocalDetector(cfg model.ReciprocalConfig) *ReciprocalDetector {
	return &ReciprocalDetector{cfg: cfg}
}

// Type returns RECIPROCAL
func (d *ReciprocalDetector) Type() model.PatternType {
	return model.PatternReciprocal
}

// Detect reports each unordered pair once, with the smaller ID as party A
func (d *ReciprocalDetector) Detect(in Input) Findings {
	g := in.Graph
	findings := Findings{Type: model.PatternReciprocal}

	for _, a := range g.NodeIDs() {
		for _, b := range g.Successors(a) {
			if b <= a || !g.HasEdge(b, a) {
				continue
			}
			abValue, abCount := flow(g, a, b)
			baValue, baCount := flow(g, b, a)

			severity := model.SeverityWarning
			if model.RelativeDiff(abValue, baValue) <= d.cfg.Tolerance {
				severity = model.SeverityCritical
			}

			findings.Patterns = append(findings.Patterns, model.FraudPattern{
				ID:       PatternID(model.PatternReciprocal, a+"<>"+b),
				Type:     model.PatternReciprocal,
				Severity: severity,
				Entities: []string{a, b},
				Reciprocal: &model.ReciprocalPayload{
					PartyA:       a,
					PartyB:       b,
					AToBValue:    model.Round(abValue, 2),
					BToAValue:    model.Round(baValue, 2),
					AToBInvoices: abCount,
					BToAInvoices: baCount,
				},
			})
		}
	}
	return findings
}

// flow sums distinct invoices from -> to
func flow(g *graph.Graph, from, to string) (float64, int) {
	total := 0.0
	count := 0
	for _, e := range graph.Distinct(g.OutEdges(from)) {
		if e.To == to {
			total += e.Value
			count++
		}
	}
	return total, count
}
