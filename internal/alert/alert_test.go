package alert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/gstgraph/internal/detect"
	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
	"github.com/ppiankov/gstgraph/internal/reconcile"
)

func TestFormatINR(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "₹0"},
		{999, "₹999"},
		{1000, "₹1,000"},
		{100000, "₹1,00,000"},
		{300000, "₹3,00,000"},
		{1234567.5, "₹12,34,567.50"},
		{123456789, "₹12,34,56,789"},
		{-50000, "-₹50,000"},
		{0.005, "₹0.01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatINR(tt.in), "%v", tt.in)
	}
}

func ringInput(t *testing.T) Input {
	t.Helper()
	ds := &model.Dataset{
		Entities: []model.Entity{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		Outward: []model.Invoice{
			{InvoiceID: "I1", SupplierID: "A", ReceiverID: "B", Value: 100000, Date: "2024-04-01", Source: model.SourceOutward},
			{InvoiceID: "I2", SupplierID: "B", ReceiverID: "C", Value: 100000, Date: "2024-04-02", Source: model.SourceOutward},
			{InvoiceID: "I3", SupplierID: "C", ReceiverID: "A", Value: 100000, Date: "2024-04-03", Source: model.SourceOutward},
		},
	}
	cfg := model.DefaultConfig()
	g, _ := graph.Build(ds.Entities, ds.Outward, ds.Inward)
	pr := graph.PageRank(g, cfg.Graph.PageRank)

	return Input{
		Reconciliation: reconcile.NewEngine(cfg.Reconcile).Reconcile(ds),
		Patterns:       detect.Run(detect.Input{Graph: g, PageRank: pr}, []detect.Detector{detect.NewCircularDetector(cfg.Detect.Circular)}),
		Anomalies:      &model.AnomalyResult{},
	}
}

func TestSynthesize_CircularRingEscalatesMismatches(t *testing.T) {
	alerts := NewSynthesizer().Synthesize(ringInput(t))

	var mismatches, fraud []model.Alert
	for _, a := range alerts {
		switch a.Type {
		case model.AlertMismatch:
			mismatches = append(mismatches, a)
		case model.AlertFraud:
			fraud = append(fraud, a)
		}
	}

	require.Len(t, mismatches, 3)
	for _, a := range mismatches {
		assert.Equal(t, model.SeverityCritical, a.Severity, a.SourceRef)
		assert.Contains(t, a.Message, "circular trading chain")
		assert.Contains(t, a.Message, "₹1,00,000")
	}

	require.Len(t, fraud, 1)
	assert.Equal(t, []string{"A", "B", "C"}, fraud[0].EntityIDs)
	assert.Contains(t, fraud[0].Message, "A → B → C → A")
	assert.Contains(t, fraud[0].Message, "₹3,00,000")
}

func TestSynthesize_Deterministic(t *testing.T) {
	first := NewSynthesizer().Synthesize(ringInput(t))
	second := NewSynthesizer().Synthesize(ringInput(t))

	assert.Equal(t, first, second)
	ids := make(map[string]bool)
	for _, a := range first {
		assert.False(t, ids[a.ID], "duplicate id %s", a.ID)
		ids[a.ID] = true
	}
}

func TestSynthesize_Ordering(t *testing.T) {
	in := Input{
		Reconciliation: &model.ReconciliationResult{Mismatches: []model.Mismatch{
			{InvoiceID: "I9", SupplierID: "X", ReceiverID: "Y", Status: model.StatusMissingInGSTR2B, Severity: model.SeverityWarning, ValueA: 10},
			{EntityID: "X", Period: "2024-04", Status: model.StatusITCOverclaimed, Severity: model.SeverityCritical, ClaimedCredit: 5000, EligibleCredit: 100},
		}},
		Anomalies: &model.AnomalyResult{Anomalies: []model.Anomaly{
			{Type: model.AnomalyInvoice, Severity: model.SeverityHigh, EntityID: "X", InvoiceID: "I9", Value: 1e6, ZScore: 4.2, Direction: "HIGH"},
			{Type: model.AnomalyInvoice, Severity: model.SeverityLow, EntityID: "Y", InvoiceID: "I8", Value: 10, ZScore: 2.6, Direction: "HIGH"},
		}},
		Risk: []model.RiskScore{
			{EntityID: "X", Score: 0.95, Level: model.RiskCritical, GroundTruthOverride: true, FraudType: "shell"},
			{EntityID: "Y", Score: 0.5, Level: model.RiskMedium},
		},
	}

	alerts := NewSynthesizer().Synthesize(in)

	require.Len(t, alerts, 4, "LOW anomalies and non-critical risk stay out")
	assert.Equal(t, model.AlertITCOverclaim, alerts[0].Type)
	assert.Equal(t, model.AlertRisk, alerts[1].Type)
	assert.Equal(t, model.AlertAnomaly, alerts[2].Type)
	assert.Equal(t, model.AlertMismatch, alerts[3].Type)
	assert.Equal(t, model.SeverityWarning, alerts[3].Severity)

	assert.Contains(t, alerts[0].Message, "₹5,000")
	assert.Contains(t, alerts[1].Message, "known fraud (shell)")
	assert.Equal(t, "RISK:X", alerts[1].SourceRef)
}

func TestSynthesize_FraudRaisedByHighAnomaly(t *testing.T) {
	pattern := model.FraudPattern{
		ID:       "p1",
		Type:     model.PatternFakeInvoice,
		Severity: model.SeverityWarning,
		Entities: []string{"S", "R"},
		FakeInvoice: &model.FakeInvoicePayload{
			SupplierID: "S", ReceiverID: "R",
			FlaggedInvoices: []string{"F1"}, TotalValue: 100000,
		},
	}
	in := Input{
		Reconciliation: &model.ReconciliationResult{Mismatches: []model.Mismatch{
			{InvoiceID: "F1", SupplierID: "S", ReceiverID: "R", Status: model.StatusMissingInGSTR2B, Severity: model.SeverityWarning},
		}},
		Patterns: &model.PatternResult{Patterns: []model.FraudPattern{pattern}},
		Anomalies: &model.AnomalyResult{Anomalies: []model.Anomaly{
			{Type: model.AnomalyVendor, Severity: model.SeverityHigh, EntityID: "S", Metric: "total_volume"},
		}},
	}

	alerts := NewSynthesizer().Synthesize(in)

	byType := make(map[model.AlertType]model.Alert)
	for _, a := range alerts {
		byType[a.Type] = a
	}
	assert.Equal(t, model.SeverityHigh, byType[model.AlertFraud].Severity)
	assert.True(t, strings.Contains(byType[model.AlertFraud].Message, "corroborated"))
	assert.Equal(t, model.SeverityCritical, byType[model.AlertMismatch].Severity, "fake invoice escalates the mismatch")
	assert.Equal(t, []string{"F1"}, byType[model.AlertFraud].InvoiceIDs)
}

func TestAlertID_Stable(t *testing.T) {
	assert.Equal(t, AlertID(model.AlertRisk, "RISK:X"), AlertID(model.AlertRisk, "RISK:X"))
	assert.NotEqual(t, AlertID(model.AlertRisk, "RISK:X"), AlertID(model.AlertFraud, "RISK:X"))
}

func TestSynthesize_Empty(t *testing.T) {
	assert.Empty(t, NewSynthesizer().Synthesize(Input{}))
}
