package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
)

func buildInput(t *testing.T, ds *model.Dataset, rec *model.ReconciliationResult) Input {
	t.Helper()
	g, _ := graph.Build(ds.Entities, ds.Outward, ds.Inward)
	return Input{
		Graph:          g,
		PageRank:       graph.PageRank(g, model.DefaultConfig().Graph.PageRank),
		Dataset:        ds,
		Reconciliation: rec,
	}
}

func sampleDataset() *model.Dataset {
	return &model.Dataset{
		Entities: []model.Entity{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		Outward: []model.Invoice{
			{InvoiceID: "I1", SupplierID: "A", ReceiverID: "B", Value: 1000, Source: model.SourceOutward},
			{InvoiceID: "I2", SupplierID: "B", ReceiverID: "C", Value: 500, Source: model.SourceOutward},
			{InvoiceID: "I3", SupplierID: "C", ReceiverID: "GHOST", Value: 10, Source: model.SourceOutward},
		},
		Summaries: []model.PeriodSummary{
			{EntityID: "A", Period: "2024-04", DeclaredSales: 1000, ClaimedCredit: 2000, CashTaxPaid: 0},
			{EntityID: "B", Period: "2024-04", DeclaredSales: 0, ClaimedCredit: 50000, CashTaxPaid: 10},
		},
	}
}

func find(t *testing.T, scores []model.RiskScore, id string) model.RiskScore {
	t.Helper()
	for _, s := range scores {
		if s.EntityID == id {
			return s
		}
	}
	require.Failf(t, "missing score", "no score for %s", id)
	return model.RiskScore{}
}

func contributionOf(rs model.RiskScore, feature string) model.Contribution {
	for _, c := range rs.Contributions {
		if c.Feature == feature {
			return c
		}
	}
	return model.Contribution{}
}

func TestCalculate_ScoresEveryNode(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Score)

	scores := scorer.Calculate(buildInput(t, sampleDataset(), nil))

	require.Len(t, scores, 4, "placeholder nodes are scored too")
	for i := 1; i < len(scores); i++ {
		prev, cur := scores[i-1], scores[i]
		if prev.Score == cur.Score {
			assert.Less(t, prev.EntityID, cur.EntityID)
		} else {
			assert.Greater(t, prev.Score, cur.Score)
		}
	}
	for _, s := range scores {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
		assert.Len(t, s.Contributions, 7)
	}
}

func TestCalculate_ContributionsSumToScore(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Score)

	scores := scorer.Calculate(buildInput(t, sampleDataset(), nil))

	for _, s := range scores {
		total := 0.0
		for _, c := range s.Contributions {
			assert.NotEmpty(t, c.Formula, "%s/%s", s.EntityID, c.Feature)
			total += c.Value
		}
		assert.InDelta(t, total, s.Score, 1e-3, s.EntityID)
	}
}

func TestCalculate_ITCRatio(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Score)

	scores := scorer.Calculate(buildInput(t, sampleDataset(), nil))

	a := find(t, scores, "A")
	assert.Equal(t, 2.0, a.Features.ITCToSalesRatio)
	assert.Equal(t, 1.0, contributionOf(a, "itc_ratio").Component, "ratio saturates at 1")
	assert.Equal(t, 0.25, contributionOf(a, "itc_ratio").Value)
	assert.Equal(t, 1, a.Features.ZeroCashPeriods)
	assert.Equal(t, 0.2, contributionOf(a, "zero_cash").Value)

	b := find(t, scores, "B")
	assert.Equal(t, 0.0, b.Features.ITCToSalesRatio, "zero declared sales skips the ratio")
	assert.Equal(t, 0.0, contributionOf(b, "itc_ratio").Value)
	assert.True(t, b.Features.ITCRatioGuarded)
	assert.Contains(t, contributionOf(b, "itc_ratio").Formula, "division guard")
	assert.Equal(t, 0, b.Features.ZeroCashPeriods)

	assert.False(t, a.Features.ITCRatioGuarded)
	assert.NotContains(t, contributionOf(a, "itc_ratio").Formula, "division guard")
}

func TestCalculate_GraphFeatures(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Score)

	scores := scorer.Calculate(buildInput(t, sampleDataset(), nil))

	a := find(t, scores, "A")
	assert.Equal(t, 1000.0, a.Features.TotalOutwardValue)
	assert.Equal(t, 1, a.Features.InvoicesIssued)
	assert.Equal(t, 1.0, contributionOf(a, "volume").Component)

	b := find(t, scores, "B")
	assert.Equal(t, 1, b.Features.InDegree)
	assert.Equal(t, 1, b.Features.OutDegree)
	assert.Equal(t, 1.0, contributionOf(b, "degree").Component)
	assert.Equal(t, 0.5, contributionOf(b, "volume").Component)

	ghost := find(t, scores, "GHOST")
	assert.Equal(t, 0.0, contributionOf(ghost, "volume").Component)
	assert.Equal(t, 0.0, contributionOf(ghost, "shell_signal").Component)
}

func TestCalculate_Mismatches(t *testing.T) {
	rec := &model.ReconciliationResult{Mismatches: []model.Mismatch{
		{InvoiceID: "I1", SupplierID: "A", ReceiverID: "B", Status: model.StatusValueMismatch, Severity: model.SeverityCritical},
		{InvoiceID: "I2", SupplierID: "B", ReceiverID: "C", Status: model.StatusMissingInGSTR2B, Severity: model.SeverityWarning},
		{EntityID: "A", Period: "2024-04", Status: model.StatusITCOverclaimed, Severity: model.SeverityCritical},
	}}
	scorer := NewScorer(model.DefaultConfig().Score)

	scores := scorer.Calculate(buildInput(t, sampleDataset(), rec))

	a := find(t, scores, "A")
	assert.Equal(t, 1, a.Features.CriticalMismatches)
	assert.Equal(t, 1, a.Features.OverclaimedPeriods)
	assert.Equal(t, 0.2, contributionOf(a, "mismatch").Component)
	assert.Equal(t, 1.0, contributionOf(a, "overclaim").Component)

	b := find(t, scores, "B")
	assert.Equal(t, 1, b.Features.CriticalMismatches, "warning mismatches are not counted")
	assert.Equal(t, 0, find(t, scores, "C").Features.CriticalMismatches)
}

func TestCalculate_KnownFraudOverride(t *testing.T) {
	ds := sampleDataset()
	ds.Labels = []model.FraudLabel{
		{EntityID: "C", IsFraud: true, FraudType: "circular_trading"},
		{EntityID: "B", IsFraud: false},
	}
	scorer := NewScorer(model.DefaultConfig().Score)

	scores := scorer.Calculate(buildInput(t, ds, nil))

	c := find(t, scores, "C")
	assert.True(t, c.GroundTruthOverride)
	assert.True(t, c.Features.KnownFraud)
	assert.Equal(t, 0.95, c.Score)
	assert.Equal(t, model.RiskCritical, c.Level)
	assert.Equal(t, "circular_trading", c.FraudType)
	assert.Equal(t, "C", scores[0].EntityID)

	b := find(t, scores, "B")
	assert.False(t, b.GroundTruthOverride)
	assert.False(t, b.Features.KnownFraud)
}

func TestLevel(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Score)

	tests := []struct {
		score float64
		want  model.RiskLevel
	}{
		{1.0, model.RiskCritical},
		{0.86, model.RiskCritical},
		{0.85, model.RiskHigh},
		{0.66, model.RiskHigh},
		{0.65, model.RiskMedium},
		{0.36, model.RiskMedium},
		{0.35, model.RiskLow},
		{0, model.RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scorer.Level(tt.score), "score %v", tt.score)
	}
}

func TestCalculate_Empty(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Score)

	scores := scorer.Calculate(buildInput(t, &model.Dataset{}, nil))

	assert.Empty(t, scores)
}
