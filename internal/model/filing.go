package model

// Entity represents a registered taxpayer (one row of the taxpayer table)
type Entity struct {
	ID               string       `json:"id"`                // 15-character tax ID
	LegalName        string       `json:"legal_name"`        // Registered legal name
	JurisdictionCode string       `json:"jurisdiction_code"` // 2-digit state code
	Status           EntityStatus `json:"status"`            // Active, Suspended, Cancelled
	TrustScore       float64      `json:"trust_score"`       // 0.0-1.0
}

// EntityStatus is the registration status of a taxpayer
type EntityStatus string

const (
	StatusActive    EntityStatus = "Active"
	StatusSuspended EntityStatus = "Suspended"
	StatusCancelled EntityStatus = "Cancelled"
)

// Source tags the filing an invoice row came from
type Source string

const (
	SourceOutward Source = "GSTR1"  // Supplier-filed outward supplies (source A)
	SourceInward  Source = "GSTR2B" // Receiver-side inward credit statement (source B)
)

// Invoice is a single declared supply, as filed by one side of the transaction
type Invoice struct {
	InvoiceID  string  `json:"invoice_id"`
	SupplierID string  `json:"supplier_id"`
	ReceiverID string  `json:"receiver_id"`
	Value      float64 `json:"value"`
	TaxAmount  float64 `json:"tax_amount"`
	Date       string  `json:"date,omitempty"` // YYYY-MM-DD when known
	Source     Source  `json:"source"`
}

// PeriodSummary is one monthly return of an entity (source C)
type PeriodSummary struct {
	EntityID      string  `json:"entity_id"`
	Period        string  `json:"period"` // YYYY-MM
	DeclaredSales float64 `json:"declared_sales"`
	ClaimedCredit float64 `json:"claimed_credit"`
	CashTaxPaid   float64 `json:"cash_tax_paid"`
}

// FraudLabel is optional ground truth for an entity
type FraudLabel struct {
	EntityID  string `json:"entity_id"`
	IsFraud   bool   `json:"is_fraud"`
	FraudType string `json:"fraud_type,omitempty"`
}

// Dataset is a complete, decoded snapshot of the five input tables
type Dataset struct {
	Entities  []Entity        `json:"entities"`
	Outward   []Invoice       `json:"outward"`
	Inward    []Invoice       `json:"inward"`
	Summaries []PeriodSummary `json:"summaries"`
	Labels    []FraudLabel    `json:"labels"`

	Stats DecodeStats `json:"-"`
}

// DecodeStats counts rows that were read, skipped or dropped while decoding
type DecodeStats struct {
	Tables map[string]TableStats `json:"tables"`
}

// TableStats counts decode outcomes for one table
type TableStats struct {
	Rows       int `json:"rows"`        // Data rows read (header excluded)
	Accepted   int `json:"accepted"`    // Rows turned into records
	EmptyValue int `json:"empty_value"` // Skipped: a required value was blank
	Duplicate  int `json:"duplicate"`   // Skipped: key already seen (first row wins)
	InvalidID  int `json:"invalid_id"`  // Skipped: an ID failed validation
	BadNumber  int `json:"bad_number"`  // Skipped: a numeric value failed to parse
}

// Skipped returns the total number of rows that did not become records
func (s TableStats) Skipped() int {
	return s.EmptyValue + s.Duplicate + s.InvalidID + s.BadNumber
}

// LabelIndex returns fraud labels keyed by entity ID
func (d *Dataset) LabelIndex() map[string]FraudLabel {
	idx := make(map[string]FraudLabel, len(d.Labels))
	for _, l := range d.Labels {
		idx[l.EntityID] = l
	}
	return idx
}
