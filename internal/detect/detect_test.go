package detect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
)

type invoice struct {
	id, from, to string
	value        float64
	date         string
}

func buildInput(t *testing.T, invoices ...invoice) Input {
	t.Helper()
	var outward []model.Invoice
	for _, i := range invoices {
		outward = append(outward, model.Invoice{
			InvoiceID: i.id, SupplierID: i.from, ReceiverID: i.to,
			Value: i.value, Date: i.date, Source: model.SourceOutward,
		})
	}
	g, _ := graph.Build(nil, outward, nil)
	return Input{Graph: g, PageRank: graph.PageRank(g, model.DefaultConfig().Graph.PageRank)}
}

func defaults() model.DetectConfig {
	return model.DefaultConfig().Detect
}

func TestCircular_ThreeNodeRing(t *testing.T) {
	in := buildInput(t,
		invoice{"I1", "A", "B", 100000, "2024-04-01"},
		invoice{"I2", "B", "C", 100000, "2024-04-02"},
		invoice{"I3", "C", "A", 100000, "2024-04-03"},
	)

	f := NewCircularDetector(defaults().Circular).Detect(in)

	require.Len(t, f.Patterns, 1)
	p := f.Patterns[0]
	assert.Equal(t, model.PatternCircular, p.Type)
	assert.Equal(t, model.SeverityCritical, p.Severity)
	assert.Equal(t, []string{"A", "B", "C"}, p.Entities)
	require.NotNil(t, p.Circular)
	assert.Equal(t, []string{"A", "B", "C"}, p.Circular.Chain)
	assert.Equal(t, 300000.0, p.Circular.TotalValue)
	assert.Equal(t, "A", p.Circular.Mastermind, "ties go to the lowest ID")
	assert.Equal(t, []model.ChainEdge{
		{From: "A", To: "B", InvoiceID: "I1", Value: 100000},
		{From: "B", To: "C", InvoiceID: "I2", Value: 100000},
		{From: "C", To: "A", InvoiceID: "I3", Value: 100000},
	}, p.Circular.Edges)
	assert.False(t, f.Truncated)
}

func completeGraph(t *testing.T, nodes ...string) Input {
	var invoices []invoice
	n := 0
	for _, a := range nodes {
		for _, b := range nodes {
			if a == b {
				continue
			}
			n++
			invoices = append(invoices, invoice{fmt.Sprintf("I%03d", n), a, b, 1000, ""})
		}
	}
	return buildInput(t, invoices...)
}

func TestCircular_EachCycleOnceRegardlessOfRotation(t *testing.T) {
	in := completeGraph(t, "A", "B", "C", "D")

	f := NewCircularDetector(defaults().Circular).Detect(in)

	// 4 choose 3 triangles in two directions, plus 3! Hamiltonian cycles
	require.Len(t, f.Patterns, 14)

	seen := make(map[string]bool)
	for _, p := range f.Patterns {
		chain := p.Circular.Chain
		assert.Equal(t, p.Entities[0], chain[0], "chain starts at its smallest member")

		for r := 0; r < len(chain); r++ {
			rotated := append(append([]string{}, chain[r:]...), chain[:r]...)
			key := strings.Join(rotated, ">")
			assert.False(t, seen[key], "cycle %v reported twice", chain)
			seen[key] = true
		}
	}
}

func TestCircular_LengthBounds(t *testing.T) {
	in := completeGraph(t, "A", "B", "C", "D")

	cfg := defaults().Circular
	cfg.MaxLength = 3
	f := NewCircularDetector(cfg).Detect(in)
	assert.Len(t, f.Patterns, 8)

	two := buildInput(t, invoice{"I1", "A", "B", 1, ""}, invoice{"I2", "B", "A", 1, ""})
	f = NewCircularDetector(defaults().Circular).Detect(two)
	assert.Empty(t, f.Patterns, "two-node loops are reciprocal, not circular")
}

func TestCircular_Cap(t *testing.T) {
	in := completeGraph(t, "A", "B", "C", "D")

	cfg := defaults().Circular
	cfg.MaxCycles = 5
	f := NewCircularDetector(cfg).Detect(in)

	assert.Len(t, f.Patterns, 5)
	assert.True(t, f.Truncated)

	res := Merge(f)
	assert.True(t, res.Summary.CyclesCapped)
}

func TestCircular_ParallelEdgesAndMastermind(t *testing.T) {
	in := buildInput(t,
		invoice{"I1", "A", "B", 100, ""},
		invoice{"I0", "A", "B", 300, ""},
		invoice{"I9", "A", "B", 300, ""},
		invoice{"I2", "B", "C", 100, ""},
		invoice{"I3", "C", "A", 100, ""},
		invoice{"I4", "C", "X", 5000, ""},
	)

	f := NewCircularDetector(defaults().Circular).Detect(in)

	require.Len(t, f.Patterns, 1)
	c := f.Patterns[0].Circular
	assert.Equal(t, "I0", c.Edges[0].InvoiceID, "largest value, ties to smallest invoice ID")
	assert.Equal(t, 500.0, c.TotalValue)
	assert.Equal(t, "C", c.Mastermind)
}

func TestShell(t *testing.T) {
	in := buildInput(t,
		invoice{"I1", "A", "S1", 15_000_000, ""},
		invoice{"I2", "A", "S2", 25_000_000, ""},
		invoice{"I3", "A", "BIG", 50_000_000, ""},
		invoice{"I4", "A", "SMALL", 100, ""},
	)
	in.PageRank = &graph.PageRankResult{Scores: map[string]float64{
		"A": 0.001, "S1": 0.005, "S2": 0.009, "BIG": 0.5, "SMALL": 0.001,
	}, Converged: true}

	f := NewShellDetector(defaults().Shell).Detect(in)

	got := make(map[string]model.Severity)
	for _, p := range f.Patterns {
		got[p.Shell.EntityID] = p.Severity
	}
	assert.Equal(t, map[string]model.Severity{
		"A":  model.SeverityCritical,
		"S1": model.SeverityHigh,
		"S2": model.SeverityCritical,
	}, got)
}

func TestReciprocal(t *testing.T) {
	in := buildInput(t,
		invoice{"I1", "B", "A", 100, ""},
		invoice{"I2", "A", "B", 98, ""},
		invoice{"I3", "C", "D", 100, ""},
		invoice{"I4", "D", "C", 30, ""},
		invoice{"I5", "D", "C", 20, ""},
		invoice{"I6", "E", "F", 10, ""},
	)

	f := NewReciprocalDetector(defaults().Reciprocal).Detect(in)

	require.Len(t, f.Patterns, 2)
	ab := f.Patterns[0].Reciprocal
	assert.Equal(t, "A", ab.PartyA)
	assert.Equal(t, "B", ab.PartyB)
	assert.Equal(t, 98.0, ab.AToBValue)
	assert.Equal(t, 100.0, ab.BToAValue)
	assert.Equal(t, model.SeverityCritical, f.Patterns[0].Severity)

	cd := f.Patterns[1].Reciprocal
	assert.Equal(t, 2, cd.BToAInvoices)
	assert.Equal(t, 50.0, cd.BToAValue)
	assert.Equal(t, model.SeverityWarning, f.Patterns[1].Severity)
}

func TestReciprocal_MatchedInvoiceCountsOnce(t *testing.T) {
	outward := []model.Invoice{
		{InvoiceID: "I1", SupplierID: "A", ReceiverID: "B", Value: 100, Source: model.SourceOutward},
		{InvoiceID: "I2", SupplierID: "B", ReceiverID: "A", Value: 100, Source: model.SourceOutward},
	}
	inward := []model.Invoice{
		{InvoiceID: "I1", SupplierID: "A", ReceiverID: "B", Value: 100, Source: model.SourceInward},
	}
	g, _ := graph.Build(nil, outward, inward)

	f := NewReciprocalDetector(defaults().Reciprocal).Detect(Input{Graph: g})

	require.Len(t, f.Patterns, 1)
	assert.Equal(t, 1, f.Patterns[0].Reciprocal.AToBInvoices)
	assert.Equal(t, model.SeverityCritical, f.Patterns[0].Severity)
}

func TestFakeInvoice(t *testing.T) {
	in := buildInput(t,
		// Round only
		invoice{"R1", "A", "B", 500000, "2024-04-01"},
		invoice{"R2", "A", "B", 550000, "2024-04-02"},
		invoice{"R3", "A", "B", 400000, "2024-04-03"},
		// Repeated only
		invoice{"P1", "C", "D", 12345.5, "2024-04-01"},
		invoice{"P2", "C", "D", 12345.5, "2024-04-01"},
		invoice{"P3", "C", "D", 12345.5, "2024-05-01"},
		// Repeated and round
		invoice{"X1", "E", "F", 700000, "2024-04-01"},
		invoice{"X2", "E", "F", 700000, "2024-04-02"},
		invoice{"X3", "E", "F", 700000, "2024-04-03"},
		// Repeated on a single date is not flagged
		invoice{"S1", "G", "H", 999, "2024-04-01"},
		invoice{"S2", "G", "H", 999, "2024-04-01"},
		invoice{"S3", "G", "H", 999, "2024-04-01"},
	)

	f := NewFakeInvoiceDetector(defaults().Fake).Detect(in)

	bySupplier := make(map[string]model.FraudPattern)
	for _, p := range f.Patterns {
		bySupplier[p.FakeInvoice.SupplierID] = p
	}
	require.Len(t, bySupplier, 3)

	a := bySupplier["A"]
	assert.Equal(t, model.SeverityWarning, a.Severity)
	assert.Equal(t, []string{"R1"}, a.FakeInvoice.RoundInvoices)

	c := bySupplier["C"]
	assert.Equal(t, model.SeverityHigh, c.Severity)
	require.Len(t, c.FakeInvoice.RepeatedAmounts, 1)
	assert.Equal(t, 3, c.FakeInvoice.RepeatedAmounts[0].Count)
	assert.Equal(t, 2, c.FakeInvoice.RepeatedAmounts[0].Dates)
	assert.Equal(t, 37036.5, c.FakeInvoice.TotalValue)

	e := bySupplier["E"]
	assert.Equal(t, model.SeverityCritical, e.Severity)
	assert.Equal(t, []string{"X1", "X2", "X3"}, e.FakeInvoice.FlaggedInvoices)
	assert.Equal(t, []string{"E", "F"}, e.Entities)
}

func TestFakeInvoice_IsRound(t *testing.T) {
	d := NewFakeInvoiceDetector(defaults().Fake)
	assert.True(t, d.IsRound(500000))
	assert.True(t, d.IsRound(1200000))
	assert.False(t, d.IsRound(500000.01))
	assert.False(t, d.IsRound(300000))
	assert.False(t, d.IsRound(650000))
}

func TestMergeAndRun(t *testing.T) {
	in := buildInput(t,
		invoice{"I1", "A", "B", 100000, "2024-04-01"},
		invoice{"I2", "B", "C", 100000, "2024-04-02"},
		invoice{"I3", "C", "A", 100000, "2024-04-03"},
		invoice{"I4", "C", "B", 100000, "2024-04-04"},
	)

	res := Run(in, All(defaults()))

	assert.Equal(t, 1, res.Summary.ByType[model.PatternCircular])
	assert.Equal(t, 1, res.Summary.ByType[model.PatternReciprocal])
	assert.Equal(t, 0, res.Summary.ByType[model.PatternShell])
	assert.Equal(t, 0, res.Summary.ByType[model.PatternFakeInvoice])
	assert.Equal(t, 2, res.Summary.TotalPatterns)
	assert.Equal(t, 3, res.Summary.UniqueEntities)
	assert.Equal(t, model.PatternCircular, res.Patterns[0].Type, "critical circular sorts first")

	again := Run(in, All(defaults()))
	assert.Equal(t, res, again, "detection is deterministic")
	assert.Equal(t, PatternID(model.PatternCircular, "A>B>C"), res.Patterns[0].ID)
}
