package pipeline

import (
	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
)

// graphView projects the graph with risk annotations for rendering
func (p *Pipeline) graphView(g *graph.Graph, pr *graph.PageRankResult, rec *model.ReconciliationResult, patterns *model.PatternResult, risk []model.RiskScore) model.GraphView {
	byEntity := make(map[string]model.RiskScore, len(risk))
	for _, r := range risk {
		byEntity[r.EntityID] = r
	}

	masterminds := make(map[string]bool)
	riskPairs := make(map[string]bool)
	riskInvoices := make(map[string]bool)
	shells := make(map[string]bool)
	for _, pat := range patterns.Patterns {
		switch {
		case pat.Circular != nil:
			masterminds[pat.Circular.Mastermind] = true
			for _, e := range pat.Circular.Edges {
				riskPairs[e.From+">"+e.To] = true
			}
		case pat.Shell != nil:
			shells[pat.Shell.EntityID] = true
		case pat.Reciprocal != nil:
			riskPairs[pat.Reciprocal.PartyA+">"+pat.Reciprocal.PartyB] = true
			riskPairs[pat.Reciprocal.PartyB+">"+pat.Reciprocal.PartyA] = true
		case pat.FakeInvoice != nil:
			for _, id := range pat.FakeInvoice.FlaggedInvoices {
				riskInvoices[id] = true
			}
		}
	}

	mismatched := make(map[string]bool)
	for _, m := range rec.Mismatches {
		if m.InvoiceID != "" {
			mismatched[m.InvoiceID] = true
		}
	}

	view := model.GraphView{
		Nodes:             make([]model.NodeView, 0, g.NodeCount()),
		Edges:             make([]model.EdgeView, 0, g.EdgeCount()),
		PageRankConverged: pr.Converged,
		PageRankIters:     pr.Iterations,
	}

	for _, id := range g.NodeIDs() {
		node, _ := g.Node(id)
		r := byEntity[id]
		view.Nodes = append(view.Nodes, model.NodeView{
			ID:           id,
			LegalName:    node.Entity.LegalName,
			Jurisdiction: p.jurisdictions.Name(node.Entity.JurisdictionCode),
			Status:       string(node.Entity.Status),
			Unknown:      node.Placeholder,
			PageRank:     model.Round(pr.Score(id), 6),
			InDegree:     g.InDegree(id),
			OutDegree:    g.OutDegree(id),
			RiskScore:    r.Score,
			RiskLevel:    r.Level,
			Mastermind:   masterminds[id],
		})
	}

	for _, e := range g.Edges() {
		view.Edges = append(view.Edges, model.EdgeView{
			From:         e.From,
			To:           e.To,
			InvoiceID:    e.InvoiceID,
			Value:        e.Value,
			TaxAmount:    e.TaxAmount,
			Date:         e.Date,
			Source:       e.Source,
			IsRisk:       riskPairs[e.From+">"+e.To] || riskInvoices[e.InvoiceID] || shells[e.From] || shells[e.To],
			IsMismatched: mismatched[e.InvoiceID],
		})
	}

	return view
}
