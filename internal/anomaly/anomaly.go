package anomaly

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ppiankov/gstgraph/internal/model"
)

// typeOrder fixes the order of anomaly types in results
var typeOrder = map[model.AnomalyType]int{
	model.AnomalyInvoice:  0,
	model.AnomalyVendor:   1,
	model.AnomalyITCRatio: 2,
}

// Analyzer runs the three statistical outlier detectors over a dataset
type Analyzer struct {
	cfg model.AnomalyConfig
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(cfg model.AnomalyConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze runs all detectors and returns a sorted result.
// Division guards are returned as warnings and counted in the summary.
func (a *Analyzer) Analyze(ds *model.Dataset) (*model.AnomalyResult, []model.Warning) {
	var anomalies []model.Anomaly
	anomalies = append(anomalies, a.InvoiceOutliers(ds)...)
	anomalies = append(anomalies, a.VendorOutliers(ds)...)
	ratios, warnings := a.ITCRatioOutliers(ds)
	anomalies = append(anomalies, ratios...)

	sortAnomalies(anomalies)

	summary := model.AnomalySummary{
		ByType:         make(map[model.AnomalyType]int, len(typeOrder)),
		Total:          len(anomalies),
		DivisionGuards: len(warnings),
	}
	for typ := range typeOrder {
		summary.ByType[typ] = 0
	}
	entities := make(map[string]bool)
	for _, an := range anomalies {
		summary.ByType[an.Type]++
		entities[an.EntityID] = true
	}
	summary.UniqueEntities = len(entities)

	if anomalies == nil {
		anomalies = make([]model.Anomaly, 0)
	}
	return &model.AnomalyResult{Anomalies: anomalies, Summary: summary}, warnings
}

// InvoiceOutliers flags invoice values far from the mean. The population is every
// supplier-filed invoice plus invoices only present on the receiver side.
func (a *Analyzer) InvoiceOutliers(ds *model.Dataset) []model.Anomaly {
	population := make([]model.Invoice, 0, len(ds.Outward)+len(ds.Inward))
	seen := make(map[string]bool, len(ds.Outward))
	for _, inv := range ds.Outward {
		seen[inv.InvoiceID] = true
		population = append(population, inv)
	}
	for _, inv := range ds.Inward {
		if !seen[inv.InvoiceID] {
			population = append(population, inv)
		}
	}

	values := make([]float64, len(population))
	for i, inv := range population {
		values[i] = inv.Value
	}
	z, ok := a.zScores(values)
	if !ok {
		return nil
	}

	var out []model.Anomaly
	for i, inv := range population {
		if math.Abs(z[i]) <= a.cfg.InvoiceZThreshold {
			continue
		}
		out = append(out, model.Anomaly{
			Type:       model.AnomalyInvoice,
			Severity:   zSeverity(z[i]),
			Confidence: zConfidence(z[i]),
			EntityID:   inv.SupplierID,
			InvoiceID:  inv.InvoiceID,
			ReceiverID: inv.ReceiverID,
			Metric:     "value",
			Value:      inv.Value,
			ZScore:     model.Round(z[i], 3),
			Direction:  direction(z[i]),
		})
	}
	return out
}

// VendorOutliers flags suppliers whose total or average invoice value falls outside the IQR fences
func (a *Analyzer) VendorOutliers(ds *model.Dataset) []model.Anomaly {
	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, inv := range ds.Outward {
		totals[inv.SupplierID] += inv.Value
		counts[inv.SupplierID]++
	}

	vendors := make([]string, 0, len(totals))
	for id := range totals {
		vendors = append(vendors, id)
	}
	sort.Strings(vendors)

	metrics := []struct {
		name  string
		value func(id string) float64
	}{
		{"total_volume", func(id string) float64 { return totals[id] }},
		{"avg_invoice", func(id string) float64 { return totals[id] / float64(counts[id]) }},
	}

	var out []model.Anomaly
	for _, m := range metrics {
		values := make([]float64, len(vendors))
		for i, id := range vendors {
			values[i] = m.value(id)
		}
		out = append(out, a.iqrOutliers(vendors, values, m.name)...)
	}
	return out
}

func (a *Analyzer) iqrOutliers(ids []string, values []float64, metric string) []model.Anomaly {
	if len(values) < a.cfg.MinVendors {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	if iqr <= 0 {
		return nil
	}
	lower := q1 - a.cfg.IQRMultiplier*iqr
	upper := q3 + a.cfg.IQRMultiplier*iqr

	var out []model.Anomaly
	for i, v := range values {
		var dev float64
		var dir string
		switch {
		case v > upper:
			dev, dir = (v-upper)/iqr, "HIGH"
		case v < lower:
			dev, dir = (lower-v)/iqr, "LOW"
		default:
			continue
		}
		out = append(out, model.Anomaly{
			Type:       model.AnomalyVendor,
			Severity:   iqrSeverity(dev),
			Confidence: model.Round(math.Min(dev/3, 1), 3),
			EntityID:   ids[i],
			Metric:     metric,
			Value:      model.Round(v, 2),
			Deviation:  model.Round(dev, 3),
			LowerFence: model.Round(lower, 2),
			UpperFence: model.Round(upper, 2),
			Direction:  dir,
		})
	}
	return out
}

// ITCRatioOutliers flags (entity, period) credit-to-sales ratios far from the mean.
// Rows with zero declared sales are skipped with a DIVISION_GUARD warning.
func (a *Analyzer) ITCRatioOutliers(ds *model.Dataset) ([]model.Anomaly, []model.Warning) {
	var (
		rows     []model.PeriodSummary
		values   []float64
		warnings []model.Warning
	)
	for _, s := range ds.Summaries {
		if s.DeclaredSales == 0 {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnDivision,
				Message: fmt.Sprintf("credit-to-sales ratio skipped for %s %s: declared sales are zero", s.EntityID, s.Period),
				Ref:     s.EntityID + "|" + s.Period,
			})
			continue
		}
		rows = append(rows, s)
		values = append(values, s.ClaimedCredit/s.DeclaredSales)
	}

	z, ok := a.zScores(values)
	if !ok {
		return nil, warnings
	}

	var out []model.Anomaly
	for i, s := range rows {
		if math.Abs(z[i]) <= a.cfg.ITCZThreshold {
			continue
		}
		out = append(out, model.Anomaly{
			Type:       model.AnomalyITCRatio,
			Severity:   zSeverity(z[i]),
			Confidence: zConfidence(z[i]),
			EntityID:   s.EntityID,
			Period:     s.Period,
			Metric:     "itc_ratio",
			Value:      model.Round(values[i], 4),
			ZScore:     model.Round(z[i], 3),
			Direction:  direction(z[i]),
		})
	}
	return out, warnings
}

// zScores standardizes values with the sample standard deviation.
// It reports false when there are too few values or no spread.
func (a *Analyzer) zScores(values []float64) ([]float64, bool) {
	if len(values) < a.cfg.MinSamples || len(values) < 2 {
		return nil, false
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return nil, false
	}
	z := make([]float64, len(values))
	for i, v := range values {
		z[i] = (v - mean) / std
	}
	return z, true
}

func zSeverity(z float64) model.Severity {
	switch abs := math.Abs(z); {
	case abs >= 4:
		return model.SeverityHigh
	case abs >= 3:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func zConfidence(z float64) float64 {
	return model.Round(math.Min(math.Abs(z)/5, 1), 3)
}

func iqrSeverity(dev float64) model.Severity {
	switch {
	case dev >= 3:
		return model.SeverityHigh
	case dev >= 1.5:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func direction(z float64) string {
	if z > 0 {
		return "HIGH"
	}
	return "LOW"
}

func sortAnomalies(as []model.Anomaly) {
	sort.SliceStable(as, func(i, j int) bool {
		a, b := as[i], as[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Type != b.Type {
			return typeOrder[a.Type] < typeOrder[b.Type]
		}
		return a.Key() < b.Key()
	})
}
