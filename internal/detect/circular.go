package detect

import (
	"strings"

	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
)

// CircularDetector finds closed invoice chains A -> B -> ... -> A
type CircularDetector struct {
	cfg model.CircularConfig
}

// NewCircularDetector creates a circular trading detector
func NewCircularDetector(cfg model.CircularConfig) *CircularDetector {
	return &CircularDetector{cfg: cfg}
}

// Type returns CIRCULAR
func (d *CircularDetector) Type() model.PatternType {
	return model.PatternCircular
}

// Detect enumerates simple cycles over unique successor sets.
// A cycle is only grown from its smallest member through larger IDs,
// so each cycle is reported once, as the rotation starting at its smallest ID.
func (d *CircularDetector) Detect(in Input) Findings {
	g := in.Graph
	findings := Findings{Type: model.PatternCircular}

	var cycles [][]string
	path := make([]string, 0, d.cfg.MaxLength)
	onPath := make(map[string]bool)

	var visit func(start, node string) bool
	visit = func(start, node string) bool {
		for _, next := range g.Successors(node) {
			if next == start {
				if len(path) < d.cfg.MinLength {
					continue
				}
				if d.cfg.MaxCycles > 0 && len(cycles) >= d.cfg.MaxCycles {
					findings.Truncated = true
					return false
				}
				cycles = append(cycles, append([]string(nil), path...))
				continue
			}
			if next < start || onPath[next] || len(path) >= d.cfg.MaxLength {
				continue
			}
			path = append(path, next)
			onPath[next] = true
			ok := visit(start, next)
			onPath[next] = false
			path = path[:len(path)-1]
			if !ok {
				return false
			}
		}
		return true
	}

	for _, start := range g.NodeIDs() {
		path = append(path[:0], start)
		onPath[start] = true
		ok := visit(start, start)
		onPath[start] = false
		if !ok {
			break
		}
	}

	for _, chain := range cycles {
		findings.Patterns = append(findings.Patterns, d.pattern(g, chain))
	}
	return findings
}

func (d *CircularDetector) pattern(g *graph.Graph, chain []string) model.FraudPattern {
	edges := make([]model.ChainEdge, len(chain))
	total := 0.0
	for i, from := range chain {
		to := chain[(i+1)%len(chain)]
		e := strongestEdge(g, from, to)
		edges[i] = model.ChainEdge{From: from, To: to, InvoiceID: e.InvoiceID, Value: e.Value}
		total += e.Value
	}

	mastermind := chain[0]
	for _, id := range chain[1:] {
		v, best := g.OutValue(id), g.OutValue(mastermind)
		if v > best || (v == best && id < mastermind) {
			mastermind = id
		}
	}

	return model.FraudPattern{
		ID:       PatternID(model.PatternCircular, strings.Join(chain, ">")),
		Type:     model.PatternCircular,
		Severity: model.SeverityCritical,
		Entities: sortedCopy(chain),
		Circular: &model.CircularPayload{
			Chain:      chain,
			Edges:      edges,
			TotalValue: model.Round(total, 2),
			Mastermind: mastermind,
		},
	}
}

// strongestEdge picks the highest-value parallel edge, ties to the smallest invoice ID
func strongestEdge(g *graph.Graph, from, to string) graph.Edge {
	var best graph.Edge
	found := false
	for _, e := range g.OutEdges(from) {
		if e.To != to {
			continue
		}
		if !found || e.Value > best.Value || (e.Value == best.Value && e.InvoiceID < best.InvoiceID) {
			best = e
			found = true
		}
	}
	return best
}
