package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/gstgraph/internal/model"
)

func inv(id, from, to string, value float64, src model.Source) model.Invoice {
	return model.Invoice{InvoiceID: id, SupplierID: from, ReceiverID: to, Value: value, Source: src}
}

func entities(ids ...string) []model.Entity {
	out := make([]model.Entity, len(ids))
	for i, id := range ids {
		out[i] = model.Entity{ID: id, LegalName: "Entity " + id}
	}
	return out
}

func TestBuild_ParallelEdgesAndSources(t *testing.T) {
	outward := []model.Invoice{
		inv("I1", "A", "B", 100, model.SourceOutward),
		inv("I2", "A", "B", 50, model.SourceOutward),
	}
	inward := []model.Invoice{
		inv("I1", "A", "B", 100, model.SourceInward),
	}

	g, warnings := Build(entities("A", "B"), outward, inward)

	assert.Empty(t, warnings)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount(), "parallel edges and both sources are kept")
	assert.Equal(t, 3, g.OutDegree("A"))
	assert.Equal(t, 3, g.InDegree("B"))
	assert.Equal(t, []string{"B"}, g.Successors("A"))
	assert.Equal(t, 150.0, g.OutValue("A"), "an invoice in both sources counts once")
	assert.Equal(t, 150.0, g.InValue("B"))
	assert.Equal(t, 150.0, g.Volume("B"))
	assert.True(t, g.HasEdge("A", "B"))
	assert.False(t, g.HasEdge("B", "A"))

	edges := g.OutEdges("A")
	require.Len(t, edges, 3)
	assert.Equal(t, model.SourceOutward, edges[0].Source)
	assert.Equal(t, model.SourceInward, edges[2].Source)

	distinct := Distinct(edges)
	require.Len(t, distinct, 2)
	assert.Equal(t, model.SourceOutward, distinct[0].Source)
}

func TestBuild_PlaceholderNodes(t *testing.T) {
	outward := []model.Invoice{
		inv("I1", "A", "GHOST", 10, model.SourceOutward),
		inv("I2", "GHOST", "A", 10, model.SourceOutward),
		inv("I3", "PHANTOM", "A", 10, model.SourceOutward),
	}

	g, warnings := Build(entities("A"), outward, nil)

	assert.Equal(t, []string{"A", "GHOST", "PHANTOM"}, g.NodeIDs())
	assert.Equal(t, 3, g.EdgeCount(), "every invoice yields an edge")

	require.Len(t, warnings, 2, "one warning per unknown entity")
	assert.Equal(t, model.WarnReference, warnings[0].Kind)
	assert.Equal(t, "GHOST", warnings[0].Ref)
	assert.Equal(t, "PHANTOM", warnings[1].Ref)

	node, ok := g.Node("GHOST")
	require.True(t, ok)
	assert.True(t, node.Placeholder)
	assert.Equal(t, "unknown entity", node.Entity.LegalName)

	known, _ := g.Node("A")
	assert.False(t, known.Placeholder)
}

func TestPageRank_SumsToOne(t *testing.T) {
	var outward []model.Invoice
	ids := []string{"A", "B", "C", "D", "E", "F"}
	for i := 0; i < 12; i++ {
		from := ids[i%len(ids)]
		to := ids[(i*5+1)%len(ids)]
		outward = append(outward, inv(fmt.Sprintf("I%02d", i), from, to, 1, model.SourceOutward))
	}
	g, _ := Build(entities(ids...), outward, nil)

	pr := PageRank(g, model.DefaultConfig().Graph.PageRank)

	assert.True(t, pr.Converged)
	assert.Nil(t, pr.Warning())
	total := 0.0
	for _, id := range g.NodeIDs() {
		total += pr.Score(id)
	}
	assert.InDelta(t, 1.0, total, 1e-6)
}

func TestPageRank_StarCenterRanksHighest(t *testing.T) {
	outward := []model.Invoice{
		inv("I1", "A", "HUB", 1, model.SourceOutward),
		inv("I2", "B", "HUB", 1, model.SourceOutward),
		inv("I3", "C", "HUB", 1, model.SourceOutward),
		inv("I4", "C", "HUB", 1, model.SourceOutward),
	}
	g, _ := Build(entities("A", "B", "C", "HUB"), outward, nil)

	pr := PageRank(g, model.DefaultConfig().Graph.PageRank)

	assert.Equal(t, pr.Max(), pr.Score("HUB"))
	assert.InDelta(t, pr.Score("A"), pr.Score("C"), 1e-12, "parallel edges are collapsed")
}

func TestPageRank_NonConvergence(t *testing.T) {
	outward := []model.Invoice{
		inv("I1", "A", "B", 1, model.SourceOutward),
		inv("I2", "B", "C", 1, model.SourceOutward),
	}
	g, _ := Build(entities("A", "B", "C"), outward, nil)

	cfg := model.DefaultConfig().Graph.PageRank
	cfg.MaxIterations = 1
	cfg.Tolerance = 1e-15

	pr := PageRank(g, cfg)

	assert.False(t, pr.Converged)
	assert.Equal(t, 1, pr.Iterations)
	w := pr.Warning()
	require.NotNil(t, w)
	assert.Equal(t, model.WarnConvergence, w.Kind)

	total := 0.0
	for _, s := range pr.Scores {
		total += s
	}
	assert.InDelta(t, 1.0, total, 1e-9, "best-effort scores still sum to one")
}

func TestPageRank_Empty(t *testing.T) {
	g, _ := Build(nil, nil, nil)
	pr := PageRank(g, model.DefaultConfig().Graph.PageRank)
	assert.True(t, pr.Converged)
	assert.Empty(t, pr.Scores)
	assert.Equal(t, 0.0, pr.Max())
}
