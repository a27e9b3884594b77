package reconcile

import (
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/gstgraph/internal/model"
)

// invoiceStatuses are the statuses that partition invoice IDs
var invoiceStatuses = []model.MismatchStatus{
	model.StatusMissingInGSTR2B,
	model.StatusMissingInGSTR1,
	model.StatusValueMismatch,
	model.StatusTaxMismatch,
}

// Engine reconciles supplier filings, receiver credit statements and monthly returns
type Engine struct {
	cfg model.ReconcileConfig
}

// NewEngine creates a reconciliation engine
func NewEngine(cfg model.ReconcileConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Reconcile classifies every invoice ID found in either source and checks
// claimed credit per (entity, period) against credit available on the receiver side.
func (e *Engine) Reconcile(ds *model.Dataset) *model.ReconciliationResult {
	outward := indexInvoices(ds.Outward)
	inward := indexInvoices(ds.Inward)

	ids := make([]string, 0, len(outward)+len(inward))
	for id := range outward {
		ids = append(ids, id)
	}
	for id := range inward {
		if _, ok := outward[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var mismatches []model.Mismatch
	reconciled := 0
	for _, id := range ids {
		a, inA := outward[id]
		b, inB := inward[id]
		m, ok := e.classify(a, inA, b, inB)
		if !ok {
			reconciled++
			continue
		}
		mismatches = append(mismatches, m)
	}

	mismatches = append(mismatches, e.checkCredit(ds)...)
	sortMismatches(mismatches)

	return &model.ReconciliationResult{
		Mismatches: mismatches,
		Summary:    summarize(mismatches, len(ids), reconciled),
	}
}

// classify returns the mismatch for one invoice ID, or false when fully reconciled
func (e *Engine) classify(a model.Invoice, inA bool, b model.Invoice, inB bool) (model.Mismatch, bool) {
	switch {
	case inA && !inB:
		return model.Mismatch{
			InvoiceID:         a.InvoiceID,
			SupplierID:        a.SupplierID,
			ReceiverID:        a.ReceiverID,
			Status:            model.StatusMissingInGSTR2B,
			Severity:          model.SeverityWarning,
			ValueA:            a.Value,
			ValueDiff:         model.Round(math.Abs(a.Value), 2),
			RelativeValueDiff: model.Round(model.RelativeDiff(a.Value, 0), 4),
			TaxA:              a.TaxAmount,
			TaxDiff:           model.Round(math.Abs(a.TaxAmount), 2),
		}, true
	case !inA && inB:
		return model.Mismatch{
			InvoiceID:         b.InvoiceID,
			SupplierID:        b.SupplierID,
			ReceiverID:        b.ReceiverID,
			Status:            model.StatusMissingInGSTR1,
			Severity:          model.SeverityCritical,
			ValueB:            b.Value,
			ValueDiff:         model.Round(math.Abs(b.Value), 2),
			RelativeValueDiff: model.Round(model.RelativeDiff(0, b.Value), 4),
			TaxB:              b.TaxAmount,
			TaxDiff:           model.Round(math.Abs(b.TaxAmount), 2),
		}, true
	}

	valueRel := model.RelativeDiff(a.Value, b.Value)
	taxRel := model.RelativeDiff(a.TaxAmount, b.TaxAmount)

	m := model.Mismatch{
		InvoiceID:         a.InvoiceID,
		SupplierID:        a.SupplierID,
		ReceiverID:        a.ReceiverID,
		ValueA:            a.Value,
		ValueB:            b.Value,
		ValueDiff:         model.Round(math.Abs(a.Value-b.Value), 2),
		RelativeValueDiff: model.Round(valueRel, 4),
		TaxA:              a.TaxAmount,
		TaxB:              b.TaxAmount,
		TaxDiff:           model.Round(math.Abs(a.TaxAmount-b.TaxAmount), 2),
	}

	switch {
	case valueRel > e.cfg.ValueTolerance:
		m.Status = model.StatusValueMismatch
		m.Severity = model.SeverityWarning
		if valueRel > e.cfg.CriticalValueDiff {
			m.Severity = model.SeverityCritical
		}
		return m, true
	case taxRel > e.cfg.TaxTolerance:
		m.Status = model.StatusTaxMismatch
		m.Severity = model.SeverityWarning
		return m, true
	default:
		return model.Mismatch{}, false
	}
}

// checkCredit flags (entity, period) rows claiming more credit than the receiver side supports
func (e *Engine) checkCredit(ds *model.Dataset) []model.Mismatch {
	total := make(map[string]float64)
	byPeriod := make(map[string]float64)
	for _, inv := range ds.Inward {
		total[inv.ReceiverID] += inv.TaxAmount
		if len(inv.Date) >= 7 {
			byPeriod[inv.ReceiverID+"|"+inv.Date[:7]] += inv.TaxAmount
		}
	}

	var out []model.Mismatch
	for _, s := range ds.Summaries {
		eligible := total[s.EntityID]
		if e.cfg.ITCMatchPeriod {
			eligible = byPeriod[s.EntityID+"|"+s.Period]
		}
		eligible = model.Round(eligible, 2)
		if s.ClaimedCredit <= eligible*(1+e.cfg.ITCTolerance) {
			continue
		}
		out = append(out, model.Mismatch{
			Status:            model.StatusITCOverclaimed,
			Severity:          model.SeverityCritical,
			ValueDiff:         model.Round(s.ClaimedCredit-eligible, 2),
			RelativeValueDiff: model.Round(model.RelativeDiff(s.ClaimedCredit, eligible), 4),
			EntityID:          s.EntityID,
			Period:            s.Period,
			ClaimedCredit:     s.ClaimedCredit,
			EligibleCredit:    eligible,
		})
	}
	return out
}

func indexInvoices(invoices []model.Invoice) map[string]model.Invoice {
	idx := make(map[string]model.Invoice, len(invoices))
	for _, inv := range invoices {
		if _, ok := idx[inv.InvoiceID]; !ok {
			idx[inv.InvoiceID] = inv
		}
	}
	return idx
}

func sortMismatches(ms []model.Mismatch) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		return sortKey(a) < sortKey(b)
	})
}

func sortKey(m model.Mismatch) string {
	if m.Status == model.StatusITCOverclaimed {
		return strings.Join([]string{m.EntityID, m.Period}, "|")
	}
	return m.InvoiceID
}

func summarize(ms []model.Mismatch, total, reconciled int) model.ReconciliationSummary {
	summary := model.ReconciliationSummary{
		TotalInvoices:   total,
		FullyReconciled: reconciled,
		ByStatus:        make(map[model.MismatchStatus]int, len(invoiceStatuses)+1),
	}
	for _, s := range invoiceStatuses {
		summary.ByStatus[s] = 0
	}
	for _, m := range ms {
		summary.ByStatus[m.Status]++
		if m.Status == model.StatusITCOverclaimed {
			summary.ITCOverclaimed++
		}
	}
	if total > 0 {
		summary.ReconciliationRate = model.Round(float64(reconciled)/float64(total)*100, 1)
	}
	return summary
}
