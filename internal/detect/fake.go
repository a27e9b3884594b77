package detect

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
)

// FakeInvoiceDetector flags supplier/receiver pairs billing suspiciously round or repeated amounts
type FakeInvoiceDetector struct {
	cfg      model.FakeConfig
	unit     decimal.Decimal
	minRound decimal.Decimal
}

// NewFakeInvoiceDetector creates a fake invoice detector
func NewFakeInvoiceDetector(cfg model.FakeConfig) *FakeInvoiceDetector {
	return &FakeInvoiceDetector{
		cfg:      cfg,
		unit:     decimal.NewFromFloat(cfg.RoundUnit),
		minRound: decimal.NewFromFloat(cfg.MinRoundValue),
	}
}

// Type returns FAKE_INVOICE
func (d *FakeInvoiceDetector) Type() model.PatternType {
	return model.PatternFakeInvoice
}

// Detect checks every ordered (supplier, receiver) pair over distinct invoice IDs
func (d *FakeInvoiceDetector) Detect(in Input) Findings {
	g := in.Graph
	findings := Findings{Type: model.PatternFakeInvoice}

	for _, supplier := range g.NodeIDs() {
		byReceiver := make(map[string][]graph.Edge)
		for _, e := range graph.Distinct(g.OutEdges(supplier)) {
			byReceiver[e.To] = append(byReceiver[e.To], e)
		}
		for _, receiver := range g.Successors(supplier) {
			if p, ok := d.check(supplier, receiver, byReceiver[receiver]); ok {
				findings.Patterns = append(findings.Patterns, p)
			}
		}
	}
	return findings
}

// IsRound reports whether value is an exact multiple of the round unit and at least the minimum
func (d *FakeInvoiceDetector) IsRound(value float64) bool {
	v := decimal.NewFromFloat(value)
	if d.unit.IsZero() || v.LessThan(d.minRound) {
		return false
	}
	return v.Mod(d.unit).IsZero()
}

func (d *FakeInvoiceDetector) check(supplier, receiver string, edges []graph.Edge) (model.FraudPattern, bool) {
	var round []string
	flagged := make(map[string]float64)

	type group struct {
		amount   float64
		invoices []string
		dates    map[string]bool
	}
	groups := make(map[string]*group)

	for _, e := range edges {
		if d.IsRound(e.Value) {
			round = append(round, e.InvoiceID)
			flagged[e.InvoiceID] = e.Value
		}
		key := decimal.NewFromFloat(e.Value).String()
		grp, ok := groups[key]
		if !ok {
			grp = &group{amount: e.Value, dates: make(map[string]bool)}
			groups[key] = grp
		}
		grp.invoices = append(grp.invoices, e.InvoiceID)
		if e.Date != "" {
			grp.dates[e.Date] = true
		}
	}

	var repeated []model.RepeatedAmount
	for _, grp := range groups {
		if len(grp.invoices) < d.cfg.RepeatThreshold || len(grp.dates) < d.cfg.MinRepeatDates {
			continue
		}
		ids := sortedCopy(grp.invoices)
		repeated = append(repeated, model.RepeatedAmount{
			Amount:     grp.amount,
			Count:      len(ids),
			Dates:      len(grp.dates),
			InvoiceIDs: ids,
		})
		for _, id := range ids {
			flagged[id] = grp.amount
		}
	}

	if len(flagged) == 0 {
		return model.FraudPattern{}, false
	}

	sort.Slice(repeated, func(i, j int) bool { return repeated[i].Amount < repeated[j].Amount })
	sort.Strings(round)

	ids := make([]string, 0, len(flagged))
	total := 0.0
	for id := range flagged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		total += flagged[id]
	}

	var severity model.Severity
	switch {
	case len(repeated) > 0 && len(round) > 0:
		severity = model.SeverityCritical
	case len(repeated) > 0:
		severity = model.SeverityHigh
	default:
		severity = model.SeverityWarning
	}

	return model.FraudPattern{
		ID:       PatternID(model.PatternFakeInvoice, supplier+">"+receiver),
		Type:     model.PatternFakeInvoice,
		Severity: severity,
		Entities: sortedCopy([]string{supplier, receiver}),
		FakeInvoice: &model.FakeInvoicePayload{
			SupplierID:      supplier,
			ReceiverID:      receiver,
			RoundInvoices:   round,
			RepeatedAmounts: repeated,
			FlaggedInvoices: ids,
			TotalValue:      model.Round(total, 2),
		},
	}, true
}
