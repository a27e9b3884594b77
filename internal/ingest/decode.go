package ingest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/gstgraph/internal/model"
	"github.com/ppiankov/gstgraph/internal/validate"
)

// tableSpec describes the canonical columns of one table and their accepted aliases
type tableSpec struct {
	required []string
	aliases  map[string][]string
}

var (
	entitySpec = tableSpec{
		required: []string{"id"},
		aliases: map[string][]string{
			"id":                {"gstin", "entity_id", "taxpayer_id"},
			"legal_name":        {"name", "trade_name", "business_name"},
			"jurisdiction_code": {"state_code", "state"},
			"status":            {"registration_status"},
			"trust_score":       {"compliance_score"},
		},
	}

	invoiceSpec = tableSpec{
		required: []string{"invoice_id", "supplier_id", "receiver_id", "value"},
		aliases: map[string][]string{
			"invoice_id":  {"invoice_no", "invoice_number"},
			"supplier_id": {"supplier_gstin", "seller_gstin"},
			"receiver_id": {"receiver_gstin", "buyer_gstin"},
			"value":       {"total_value", "invoice_value", "taxable_value"},
			"tax_amount":  {"tax", "total_tax", "itc_available"},
			"date":        {"invoice_date"},
		},
	}

	summarySpec = tableSpec{
		required: []string{"entity_id", "period"},
		aliases: map[string][]string{
			"entity_id":      {"gstin"},
			"period":         {"return_period"},
			"declared_sales": {"total_sales_declared", "total_sales"},
			"claimed_credit": {"total_itc_claimed", "itc_claimed", "total_itc"},
			"cash_tax_paid":  {"tax_paid_cash"},
		},
	}

	labelSpec = tableSpec{
		required: []string{"entity_id", "is_fraud"},
		aliases: map[string][]string{
			"entity_id":  {"gstin"},
			"is_fraud":   {"fraud", "label"},
			"fraud_type": {"type"},
		},
	}
)

// columns maps canonical column names to header positions
type columns map[string]int

func (s tableSpec) resolve(table string, header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}

	cols := make(columns, len(s.aliases))
	for canonical, aliases := range s.aliases {
		for _, name := range append([]string{canonical}, aliases...) {
			if i, ok := index[name]; ok {
				cols[canonical] = i
				break
			}
		}
	}

	for _, req := range s.required {
		if _, ok := cols[req]; !ok {
			return nil, &model.DataIntegrityError{Table: table, Column: req}
		}
	}
	return cols, nil
}

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.ReplaceAll(h, "-", "_")
}

type skipReason int

const (
	keep skipReason = iota
	skipEmpty
	skipDuplicate
	skipInvalidID
	skipBadNumber
)

func tally(stats *model.TableStats, r skipReason) {
	switch r {
	case keep:
		stats.Accepted++
	case skipEmpty:
		stats.EmptyValue++
	case skipDuplicate:
		stats.Duplicate++
	case skipInvalidID:
		stats.InvalidID++
	case skipBadNumber:
		stats.BadNumber++
	}
}

// Decoder turns raw tables into typed, validated and deduplicated records
type Decoder struct {
	validator *validate.Validator
}

// NewDecoder creates a decoder; a nil validator uses length checking
func NewDecoder(v *validate.Validator) *Decoder {
	if v == nil {
		v = validate.NewValidator(validate.ModeLength)
	}
	return &Decoder{validator: v}
}

// Decode builds a Dataset from raw tables.
// Records are sorted by key so the result does not depend on row order.
func (d *Decoder) Decode(raw *RawDataset) (*model.Dataset, []model.Warning, error) {
	for _, name := range TableNames {
		if raw.Table(name) == nil && !optionalTables[name] {
			return nil, nil, &model.DataIntegrityError{Table: name}
		}
	}

	ds := &model.Dataset{Stats: model.DecodeStats{Tables: make(map[string]model.TableStats)}}
	var (
		stats model.TableStats
		err   error
	)

	if ds.Entities, stats, err = d.decodeEntities(raw.Table(TableEntities)); err != nil {
		return nil, nil, err
	}
	ds.Stats.Tables[TableEntities] = stats

	if ds.Outward, stats, err = d.decodeInvoices(raw.Table(TableOutward), model.SourceOutward); err != nil {
		return nil, nil, err
	}
	ds.Stats.Tables[TableOutward] = stats

	if ds.Inward, stats, err = d.decodeInvoices(raw.Table(TableInward), model.SourceInward); err != nil {
		return nil, nil, err
	}
	ds.Stats.Tables[TableInward] = stats

	if ds.Summaries, stats, err = d.decodeSummaries(raw.Table(TableSummaries)); err != nil {
		return nil, nil, err
	}
	ds.Stats.Tables[TableSummaries] = stats

	if t := raw.Table(TableLabels); t != nil {
		if ds.Labels, stats, err = d.decodeLabels(t); err != nil {
			return nil, nil, err
		}
		ds.Stats.Tables[TableLabels] = stats
	}

	var warnings []model.Warning
	for _, name := range TableNames {
		st, ok := ds.Stats.Tables[name]
		if !ok || st.Skipped() == 0 {
			continue
		}
		warnings = append(warnings, model.Warning{
			Kind: model.WarnSkippedRow,
			Message: fmt.Sprintf("%s: skipped %d of %d rows (empty %d, duplicate %d, invalid id %d, bad number %d)",
				name, st.Skipped(), st.Rows, st.EmptyValue, st.Duplicate, st.InvalidID, st.BadNumber),
			Ref: name,
		})
	}

	sortDataset(ds)
	return ds, warnings, nil
}

func (d *Decoder) decodeEntities(t *RawTable) ([]model.Entity, model.TableStats, error) {
	var stats model.TableStats
	cols, err := entitySpec.resolve(TableEntities, t.Header)
	if err != nil {
		return nil, stats, err
	}

	seen := make(map[string]bool)
	out := make([]model.Entity, 0, len(t.Rows))
	for _, row := range t.Rows {
		stats.Rows++
		e, reason := d.entityRow(cols, row, seen)
		tally(&stats, reason)
		if reason == keep {
			out = append(out, e)
		}
	}
	return out, stats, nil
}

func (d *Decoder) entityRow(cols columns, row []string, seen map[string]bool) (model.Entity, skipReason) {
	id := normalizeID(cols.get(row, "id"))
	if id == "" {
		return model.Entity{}, skipEmpty
	}
	if !d.validator.Valid(id) {
		return model.Entity{}, skipInvalidID
	}
	if seen[id] {
		return model.Entity{}, skipDuplicate
	}

	trust := 0.5
	if raw := cols.get(row, "trust_score"); raw != "" {
		v, err := parseNumber(raw)
		if err != nil {
			return model.Entity{}, skipBadNumber
		}
		trust = v
	}

	seen[id] = true
	return model.Entity{
		ID:               id,
		LegalName:        cols.get(row, "legal_name"),
		JurisdictionCode: validate.NormalizeCode(cols.get(row, "jurisdiction_code")),
		Status:           parseStatus(cols.get(row, "status")),
		TrustScore:       trust,
	}, keep
}

func (d *Decoder) decodeInvoices(t *RawTable, source model.Source) ([]model.Invoice, model.TableStats, error) {
	var stats model.TableStats
	name := TableOutward
	if source == model.SourceInward {
		name = TableInward
	}
	cols, err := invoiceSpec.resolve(name, t.Header)
	if err != nil {
		return nil, stats, err
	}

	seen := make(map[string]bool)
	out := make([]model.Invoice, 0, len(t.Rows))
	for _, row := range t.Rows {
		stats.Rows++
		inv, reason := d.invoiceRow(cols, row, source, seen)
		tally(&stats, reason)
		if reason == keep {
			out = append(out, inv)
		}
	}
	return out, stats, nil
}

func (d *Decoder) invoiceRow(cols columns, row []string, source model.Source, seen map[string]bool) (model.Invoice, skipReason) {
	id := cols.get(row, "invoice_id")
	supplier := normalizeID(cols.get(row, "supplier_id"))
	receiver := normalizeID(cols.get(row, "receiver_id"))
	rawValue := cols.get(row, "value")
	if id == "" || supplier == "" || receiver == "" || rawValue == "" {
		return model.Invoice{}, skipEmpty
	}
	if !d.validator.Valid(supplier) || !d.validator.Valid(receiver) {
		return model.Invoice{}, skipInvalidID
	}
	if seen[id] {
		return model.Invoice{}, skipDuplicate
	}

	value, err := parseMoney(rawValue)
	if err != nil {
		return model.Invoice{}, skipBadNumber
	}
	tax, err := parseMoney(cols.get(row, "tax_amount"))
	if err != nil {
		return model.Invoice{}, skipBadNumber
	}

	seen[id] = true
	return model.Invoice{
		InvoiceID:  id,
		SupplierID: supplier,
		ReceiverID: receiver,
		Value:      value,
		TaxAmount:  tax,
		Date:       normalizeDate(cols.get(row, "date")),
		Source:     source,
	}, keep
}

func (d *Decoder) decodeSummaries(t *RawTable) ([]model.PeriodSummary, model.TableStats, error) {
	var stats model.TableStats
	cols, err := summarySpec.resolve(TableSummaries, t.Header)
	if err != nil {
		return nil, stats, err
	}

	seen := make(map[string]bool)
	out := make([]model.PeriodSummary, 0, len(t.Rows))
	for _, row := range t.Rows {
		stats.Rows++
		s, reason := d.summaryRow(cols, row, seen)
		tally(&stats, reason)
		if reason == keep {
			out = append(out, s)
		}
	}
	return out, stats, nil
}

func (d *Decoder) summaryRow(cols columns, row []string, seen map[string]bool) (model.PeriodSummary, skipReason) {
	id := normalizeID(cols.get(row, "entity_id"))
	period := normalizePeriod(cols.get(row, "period"))
	if id == "" || period == "" {
		return model.PeriodSummary{}, skipEmpty
	}
	if !d.validator.Valid(id) {
		return model.PeriodSummary{}, skipInvalidID
	}
	key := id + "|" + period
	if seen[key] {
		return model.PeriodSummary{}, skipDuplicate
	}

	var amounts [3]float64
	for i, col := range []string{"declared_sales", "claimed_credit", "cash_tax_paid"} {
		v, err := parseMoney(cols.get(row, col))
		if err != nil {
			return model.PeriodSummary{}, skipBadNumber
		}
		amounts[i] = v
	}

	seen[key] = true
	return model.PeriodSummary{
		EntityID:      id,
		Period:        period,
		DeclaredSales: amounts[0],
		ClaimedCredit: amounts[1],
		CashTaxPaid:   amounts[2],
	}, keep
}

func (d *Decoder) decodeLabels(t *RawTable) ([]model.FraudLabel, model.TableStats, error) {
	var stats model.TableStats
	cols, err := labelSpec.resolve(TableLabels, t.Header)
	if err != nil {
		return nil, stats, err
	}

	seen := make(map[string]bool)
	out := make([]model.FraudLabel, 0, len(t.Rows))
	for _, row := range t.Rows {
		stats.Rows++
		l, reason := d.labelRow(cols, row, seen)
		tally(&stats, reason)
		if reason == keep {
			out = append(out, l)
		}
	}
	return out, stats, nil
}

func (d *Decoder) labelRow(cols columns, row []string, seen map[string]bool) (model.FraudLabel, skipReason) {
	id := normalizeID(cols.get(row, "entity_id"))
	rawFlag := cols.get(row, "is_fraud")
	if id == "" || rawFlag == "" {
		return model.FraudLabel{}, skipEmpty
	}
	if !d.validator.Valid(id) {
		return model.FraudLabel{}, skipInvalidID
	}
	if seen[id] {
		return model.FraudLabel{}, skipDuplicate
	}
	flag, ok := parseBool(rawFlag)
	if !ok {
		return model.FraudLabel{}, skipBadNumber
	}

	seen[id] = true
	return model.FraudLabel{
		EntityID:  id,
		IsFraud:   flag,
		FraudType: cols.get(row, "fraud_type"),
	}, keep
}

func sortDataset(ds *model.Dataset) {
	sort.Slice(ds.Entities, func(i, j int) bool { return ds.Entities[i].ID < ds.Entities[j].ID })
	sort.Slice(ds.Outward, func(i, j int) bool { return ds.Outward[i].InvoiceID < ds.Outward[j].InvoiceID })
	sort.Slice(ds.Inward, func(i, j int) bool { return ds.Inward[i].InvoiceID < ds.Inward[j].InvoiceID })
	sort.Slice(ds.Summaries, func(i, j int) bool {
		a, b := ds.Summaries[i], ds.Summaries[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Period < b.Period
	})
	sort.Slice(ds.Labels, func(i, j int) bool { return ds.Labels[i].EntityID < ds.Labels[j].EntityID })
}

func normalizeID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// parseMoney parses an amount in rupees, tolerating ₹ and thousands separators, rounded to paise.
// An empty string is zero.
func parseMoney(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "₹"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Round(2).InexactFloat64(), nil
}

func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "t", "yes", "y":
		return true, true
	case "0", "0.0", "false", "f", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func parseStatus(s string) model.EntityStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return model.StatusActive
	case "suspended":
		return model.StatusSuspended
	case "cancelled", "canceled":
		return model.StatusCancelled
	default:
		return model.EntityStatus(strings.TrimSpace(s))
	}
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00", "02-01-2006", "02/01/2006", "2006/01/02"}

// normalizeDate returns YYYY-MM-DD for recognised layouts and the trimmed input otherwise
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

var periodLayouts = []string{"2006-01", "01-2006", "012006", "2006-01-02", "Jan-2006", "Jan 2006"}

// normalizePeriod returns YYYY-MM for recognised layouts (including the MMYYYY return period) and the trimmed input otherwise
func normalizePeriod(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01")
		}
	}
	return s
}
