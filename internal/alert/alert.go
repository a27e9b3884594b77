package alert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/gstgraph/internal/model"
)

// alertNamespace seeds name-based alert IDs
var alertNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("gstgraph/alerts"))

var typeOrder = map[model.AlertType]int{
	model.AlertMismatch:     0,
	model.AlertITCOverclaim: 1,
	model.AlertFraud:        2,
	model.AlertAnomaly:      3,
	model.AlertRisk:         4,
}

// Input holds the results of one build that alerts are projected from
type Input struct {
	Reconciliation *model.ReconciliationResult
	Patterns       *model.PatternResult
	Anomalies      *model.AnomalyResult
	Risk           []model.RiskScore
}

// Synthesizer turns build results into ranked, human-readable alerts.
// It holds no state; identical input yields identical alerts.
type Synthesizer struct{}

// NewSynthesizer creates an alert synthesizer
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// evidence indexes corroborating findings across components
type evidence struct {
	chainHops    map[string]bool // "from>to" hops of circular chains
	fakeInvoices map[string]bool
	highAnomaly  map[string]bool // entities with a HIGH anomaly
}

func collectEvidence(in Input) evidence {
	ev := evidence{
		chainHops:    make(map[string]bool),
		fakeInvoices: make(map[string]bool),
		highAnomaly:  make(map[string]bool),
	}
	if in.Patterns != nil {
		for _, p := range in.Patterns.Patterns {
			switch {
			case p.Circular != nil:
				for _, e := range p.Circular.Edges {
					ev.chainHops[e.From+">"+e.To] = true
				}
			case p.FakeInvoice != nil:
				for _, id := range p.FakeInvoice.FlaggedInvoices {
					ev.fakeInvoices[id] = true
				}
			}
		}
	}
	if in.Anomalies != nil {
		for _, a := range in.Anomalies.Anomalies {
			if a.Severity == model.SeverityHigh {
				ev.highAnomaly[a.EntityID] = true
			}
		}
	}
	return ev
}

// Synthesize projects every finding into alerts sorted by severity desc,
// alert type, then ID
func (s *Synthesizer) Synthesize(in Input) []model.Alert {
	ev := collectEvidence(in)
	var alerts []model.Alert

	if in.Reconciliation != nil {
		for _, m := range in.Reconciliation.Mismatches {
			if m.Status == model.StatusITCOverclaimed {
				alerts = append(alerts, overclaimAlert(m))
				continue
			}
			alerts = append(alerts, mismatchAlert(m, ev))
		}
	}

	if in.Patterns != nil {
		for _, p := range in.Patterns.Patterns {
			alerts = append(alerts, fraudAlert(p, ev))
		}
	}

	if in.Anomalies != nil {
		for _, a := range in.Anomalies.Anomalies {
			if a.Severity == model.SeverityHigh {
				alerts = append(alerts, anomalyAlert(a))
			}
		}
	}

	for _, r := range in.Risk {
		if r.Level == model.RiskCritical {
			alerts = append(alerts, riskAlert(r))
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if typeOrder[a.Type] != typeOrder[b.Type] {
			return typeOrder[a.Type] < typeOrder[b.Type]
		}
		return a.ID < b.ID
	})
	return alerts
}

// AlertID derives a stable ID from the alert type and its source key
func AlertID(typ model.AlertType, ref string) string {
	return uuid.NewSHA1(alertNamespace, []byte(string(typ)+"|"+ref)).String()
}

func newAlert(typ model.AlertType, sev model.Severity, ref, title, message string) model.Alert {
	return model.Alert{
		ID:        AlertID(typ, ref),
		Type:      typ,
		Severity:  sev,
		Title:     title,
		Message:   message,
		SourceRef: ref,
	}
}

func mismatchAlert(m model.Mismatch, ev evidence) model.Alert {
	var title, message string
	switch m.Status {
	case model.StatusMissingInGSTR2B:
		title = fmt.Sprintf("Invoice %s missing from GSTR-2B", m.InvoiceID)
		message = fmt.Sprintf("Invoice %s for %s filed by %s does not appear in the GSTR-2B of %s",
			m.InvoiceID, FormatINR(m.ValueA), m.SupplierID, m.ReceiverID)
	case model.StatusMissingInGSTR1:
		title = fmt.Sprintf("Invoice %s missing from GSTR-1", m.InvoiceID)
		message = fmt.Sprintf("%s holds credit on invoice %s for %s that supplier %s never filed",
			m.ReceiverID, m.InvoiceID, FormatINR(m.ValueB), m.SupplierID)
	case model.StatusValueMismatch:
		title = fmt.Sprintf("Invoice %s value mismatch", m.InvoiceID)
		message = fmt.Sprintf("Invoice %s from %s to %s: GSTR-1 value %s, GSTR-2B value %s (%.1f%% apart)",
			m.InvoiceID, m.SupplierID, m.ReceiverID, FormatINR(m.ValueA), FormatINR(m.ValueB), m.RelativeValueDiff*100)
	default:
		title = fmt.Sprintf("Invoice %s tax mismatch", m.InvoiceID)
		message = fmt.Sprintf("Invoice %s from %s to %s: GSTR-1 tax %s, GSTR-2B tax %s",
			m.InvoiceID, m.SupplierID, m.ReceiverID, FormatINR(m.TaxA), FormatINR(m.TaxB))
	}

	sev := m.Severity
	if ev.chainHops[m.SupplierID+">"+m.ReceiverID] {
		sev = model.SeverityCritical
		message += "; the invoice lies on a circular trading chain"
	}
	if ev.fakeInvoices[m.InvoiceID] {
		sev = model.SeverityCritical
		message += "; the invoice is flagged as a suspected fake invoice"
	}

	a := newAlert(model.AlertMismatch, sev, m.Key(), title, message)
	a.EntityIDs = entityPair(m.SupplierID, m.ReceiverID)
	a.InvoiceIDs = []string{m.InvoiceID}
	return a
}

func overclaimAlert(m model.Mismatch) model.Alert {
	a := newAlert(model.AlertITCOverclaim, m.Severity, m.Key(),
		fmt.Sprintf("ITC overclaimed by %s in %s", m.EntityID, m.Period),
		fmt.Sprintf("%s claimed %s of input tax credit in %s against %s supported by inward invoices",
			m.EntityID, FormatINR(m.ClaimedCredit), m.Period, FormatINR(m.EligibleCredit)))
	a.EntityIDs = []string{m.EntityID}
	return a
}

func fraudAlert(p model.FraudPattern, ev evidence) model.Alert {
	var title, message string
	var invoices []string

	switch {
	case p.Circular != nil:
		c := p.Circular
		loop := append(append([]string{}, c.Chain...), c.Chain[0])
		title = fmt.Sprintf("Circular trading across %d entities", len(c.Chain))
		message = fmt.Sprintf("Invoices flow %s worth %s in total; suspected mastermind %s",
			strings.Join(loop, " → "), FormatINR(c.TotalValue), c.Mastermind)
		for _, e := range c.Edges {
			invoices = append(invoices, e.InvoiceID)
		}
	case p.Shell != nil:
		sh := p.Shell
		title = fmt.Sprintf("Suspected shell entity %s", sh.EntityID)
		message = fmt.Sprintf("%s moved %s across %d invoices with PageRank %.6f",
			sh.EntityID, FormatINR(sh.Volume), sh.InvoiceCount, sh.PageRank)
	case p.Reciprocal != nil:
		r := p.Reciprocal
		title = fmt.Sprintf("Reciprocal trading between %s and %s", r.PartyA, r.PartyB)
		message = fmt.Sprintf("%s billed %s %s over %d invoices and was billed %s over %d invoices in return",
			r.PartyA, r.PartyB, FormatINR(r.AToBValue), r.AToBInvoices, FormatINR(r.BToAValue), r.BToAInvoices)
	case p.FakeInvoice != nil:
		f := p.FakeInvoice
		title = fmt.Sprintf("Suspected fake invoices from %s to %s", f.SupplierID, f.ReceiverID)
		message = fmt.Sprintf("%d invoices worth %s show round or repeated amounts",
			len(f.FlaggedInvoices), FormatINR(f.TotalValue))
		invoices = append(invoices, f.FlaggedInvoices...)
	}

	sev := p.Severity
	for _, id := range p.Entities {
		if ev.highAnomaly[id] && sev != model.SeverityCritical {
			sev = sev.Raise()
			message += "; corroborated by a high-severity anomaly on " + id
			break
		}
	}

	a := newAlert(model.AlertFraud, sev, p.ID, title, message)
	a.EntityIDs = p.Entities
	a.InvoiceIDs = invoices
	return a
}

func anomalyAlert(an model.Anomaly) model.Alert {
	var title, message string
	switch an.Type {
	case model.AnomalyInvoice:
		title = fmt.Sprintf("Outlier invoice %s", an.InvoiceID)
		message = fmt.Sprintf("Invoice %s from %s for %s sits %.2f standard deviations from the mean",
			an.InvoiceID, an.EntityID, FormatINR(an.Value), an.ZScore)
	case model.AnomalyVendor:
		title = fmt.Sprintf("Outlier vendor %s", an.EntityID)
		message = fmt.Sprintf("%s has %s of %s, %.2f IQRs outside [%s, %s]",
			an.EntityID, an.Metric, FormatINR(an.Value), an.Deviation, FormatINR(an.LowerFence), FormatINR(an.UpperFence))
	default:
		title = fmt.Sprintf("Outlier ITC ratio for %s in %s", an.EntityID, an.Period)
		message = fmt.Sprintf("%s claimed credit at %.2f times declared sales in %s (z=%.2f)",
			an.EntityID, an.Value, an.Period, an.ZScore)
	}

	a := newAlert(model.AlertAnomaly, an.Severity, an.Key(), title, message)
	a.EntityIDs = []string{an.EntityID}
	if an.InvoiceID != "" {
		a.InvoiceIDs = []string{an.InvoiceID}
	}
	return a
}

func riskAlert(r model.RiskScore) model.Alert {
	message := fmt.Sprintf("%s scored %.4f", r.EntityID, r.Score)
	if top, ok := topContribution(r.Contributions); ok {
		message += fmt.Sprintf("; largest factor %s (%.4f)", top.Feature, top.Value)
	}
	if r.GroundTruthOverride {
		message += "; labelled as known fraud"
		if r.FraudType != "" {
			message += " (" + r.FraudType + ")"
		}
	}

	a := newAlert(model.AlertRisk, model.SeverityCritical, "RISK:"+r.EntityID,
		fmt.Sprintf("Critical risk entity %s", r.EntityID), message)
	a.EntityIDs = []string{r.EntityID}
	return a
}

func topContribution(cs []model.Contribution) (model.Contribution, bool) {
	var top model.Contribution
	found := false
	for _, c := range cs {
		if c.Value > 0 && (!found || c.Value > top.Value) {
			top, found = c, true
		}
	}
	return top, found
}

func entityPair(a, b string) []string {
	switch {
	case a == b:
		return []string{a}
	case a < b:
		return []string{a, b}
	default:
		return []string{b, a}
	}
}
