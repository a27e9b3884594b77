package graph

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/gstgraph/internal/logger"
	"github.com/ppiankov/gstgraph/internal/model"
)

// Edge is one invoice row: a directed supply from supplier to receiver
type Edge struct {
	From      string
	To        string
	InvoiceID string
	Value     float64
	TaxAmount float64
	Date      string
	Source    model.Source
}

// Node is a taxpayer; placeholders stand in for IDs missing from the entity table
type Node struct {
	ID          string
	Entity      model.Entity
	Placeholder bool
}

// Graph is an immutable directed multigraph of invoices between taxpayers.
// Parallel edges are kept and edges from the two invoice sources are never merged.
type Graph struct {
	nodes map[string]*Node
	ids   []string
	edges []Edge
	out   map[string][]int
	in    map[string][]int
	succ  map[string][]string

	outValue map[string]float64
	inValue  map[string]float64
}

// Build creates the graph from entities and both invoice sources.
// Every invoice yields exactly one edge; unknown endpoints get a placeholder node
// and one REFERENCE_WARNING per unknown ID.
func Build(entities []model.Entity, outward, inward []model.Invoice) (*Graph, []model.Warning) {
	g := &Graph{
		nodes:    make(map[string]*Node, len(entities)),
		out:      make(map[string][]int),
		in:       make(map[string][]int),
		succ:     make(map[string][]string),
		outValue: make(map[string]float64),
		inValue:  make(map[string]float64),
	}

	for _, e := range entities {
		if _, ok := g.nodes[e.ID]; ok {
			continue
		}
		g.nodes[e.ID] = &Node{ID: e.ID, Entity: e}
	}

	var warnings []model.Warning
	ensure := func(id, invoiceID string) {
		if _, ok := g.nodes[id]; ok {
			return
		}
		g.nodes[id] = &Node{
			ID:          id,
			Entity:      model.Entity{ID: id, LegalName: "unknown entity"},
			Placeholder: true,
		}
		warnings = append(warnings, model.Warning{
			Kind:    model.WarnReference,
			Message: fmt.Sprintf("invoice %s references unknown entity %s; placeholder node added", invoiceID, id),
			Ref:     id,
		})
		logger.Warn("unknown entity referenced by invoice",
			zap.String("entity_id", id),
			zap.String("invoice_id", invoiceID))
	}

	for _, table := range [][]model.Invoice{outward, inward} {
		for _, inv := range table {
			ensure(inv.SupplierID, inv.InvoiceID)
			ensure(inv.ReceiverID, inv.InvoiceID)
			g.addEdge(Edge{
				From:      inv.SupplierID,
				To:        inv.ReceiverID,
				InvoiceID: inv.InvoiceID,
				Value:     inv.Value,
				TaxAmount: inv.TaxAmount,
				Date:      inv.Date,
				Source:    inv.Source,
			})
		}
	}

	g.ids = make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		g.ids = append(g.ids, id)
	}
	sort.Strings(g.ids)

	for from, idxs := range g.out {
		seen := make(map[string]bool, len(idxs))
		var succ []string
		for _, i := range idxs {
			to := g.edges[i].To
			if !seen[to] {
				seen[to] = true
				succ = append(succ, to)
			}
		}
		sort.Strings(succ)
		g.succ[from] = succ

		for _, e := range Distinct(g.collect(idxs)) {
			g.outValue[from] += e.Value
		}
	}
	for to, idxs := range g.in {
		for _, e := range Distinct(g.collect(idxs)) {
			g.inValue[to] += e.Value
		}
	}

	return g, warnings
}

func (g *Graph) addEdge(e Edge) {
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.From] = append(g.out[e.From], idx)
	g.in[e.To] = append(g.in[e.To], idx)
}

// NodeIDs returns all node IDs, sorted
func (g *Graph) NodeIDs() []string {
	return g.ids
}

// Node returns the node for id
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.ids)
}

// EdgeCount returns the number of edges, parallel edges included
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Edges returns all edges: source A edges then source B edges, each in invoice ID order
func (g *Graph) Edges() []Edge {
	return g.edges
}

// OutEdges returns the edges leaving id
func (g *Graph) OutEdges(id string) []Edge {
	return g.collect(g.out[id])
}

// InEdges returns the edges entering id
func (g *Graph) InEdges(id string) []Edge {
	return g.collect(g.in[id])
}

func (g *Graph) collect(idxs []int) []Edge {
	edges := make([]Edge, len(idxs))
	for i, idx := range idxs {
		edges[i] = g.edges[idx]
	}
	return edges
}

// Successors returns the distinct receivers id has invoiced, sorted
func (g *Graph) Successors(id string) []string {
	return g.succ[id]
}

// HasEdge reports whether at least one edge runs from -> to
func (g *Graph) HasEdge(from, to string) bool {
	succ := g.succ[from]
	i := sort.SearchStrings(succ, to)
	return i < len(succ) && succ[i] == to
}

// OutDegree counts edges leaving id
func (g *Graph) OutDegree(id string) int {
	return len(g.out[id])
}

// InDegree counts edges entering id
func (g *Graph) InDegree(id string) int {
	return len(g.in[id])
}

// Distinct keeps the first edge per invoice ID. Source A edges are added first,
// so an invoice present in both sources is represented by its supplier-filed edge.
func Distinct(edges []Edge) []Edge {
	seen := make(map[string]bool, len(edges))
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if seen[e.InvoiceID] {
			continue
		}
		seen[e.InvoiceID] = true
		out = append(out, e)
	}
	return out
}

// OutValue sums the value of distinct invoices leaving id
func (g *Graph) OutValue(id string) float64 {
	return g.outValue[id]
}

// InValue sums the value of distinct invoices entering id
func (g *Graph) InValue(id string) float64 {
	return g.inValue[id]
}

// Volume is inward plus outward value
func (g *Graph) Volume(id string) float64 {
	return g.outValue[id] + g.inValue[id]
}
