package model

// MismatchStatus is the reconciliation outcome for an invoice or an (entity, period)
type MismatchStatus string

const (
	StatusMissingInGSTR2B MismatchStatus = "MISSING_IN_GSTR2B" // Filed by supplier, absent on receiver side
	StatusMissingInGSTR1  MismatchStatus = "MISSING_IN_GSTR1"  // Claimed by receiver, never filed by supplier
	StatusValueMismatch   MismatchStatus = "VALUE_MISMATCH"
	StatusTaxMismatch     MismatchStatus = "TAX_MISMATCH"
	StatusFullyReconciled MismatchStatus = "FULLY_RECONCILED"
	StatusITCOverclaimed  MismatchStatus = "ITC_OVERCLAIMED" // Per (entity, period), not per invoice
)

// Mismatch is one failed reconciliation
type Mismatch struct {
	InvoiceID         string         `json:"invoice_id,omitempty"`
	SupplierID        string         `json:"supplier_id,omitempty"`
	ReceiverID        string         `json:"receiver_id,omitempty"`
	Status            MismatchStatus `json:"status"`
	Severity          Severity       `json:"severity"`
	ValueA            float64        `json:"gstr1_value"`
	ValueB            float64        `json:"gstr2b_value"`
	ValueDiff         float64        `json:"value_difference"`
	RelativeValueDiff float64        `json:"relative_value_difference"`
	TaxA              float64        `json:"gstr1_tax"`
	TaxB              float64        `json:"gstr2b_tax"`
	TaxDiff           float64        `json:"tax_difference"`

	// ITC_OVERCLAIMED only
	EntityID       string  `json:"entity_id,omitempty"`
	Period         string  `json:"period,omitempty"`
	ClaimedCredit  float64 `json:"claimed_credit,omitempty"`
	EligibleCredit float64 `json:"eligible_credit,omitempty"`
}

// Key identifies the mismatch within one build
func (m Mismatch) Key() string {
	if m.Status == StatusITCOverclaimed {
		return string(m.Status) + ":" + m.EntityID + ":" + m.Period
	}
	return string(m.Status) + ":" + m.InvoiceID
}

// ReconciliationSummary aggregates statuses over all distinct invoice IDs
type ReconciliationSummary struct {
	TotalInvoices      int                    `json:"total_invoices"`
	FullyReconciled    int                    `json:"fully_reconciled"`
	ByStatus           map[MismatchStatus]int `json:"by_status"`
	ITCOverclaimed     int                    `json:"itc_overclaimed_count"`
	ReconciliationRate float64                `json:"reconciliation_rate"` // Percent, one decimal
}

// ReconciliationResult is the output of the reconciliation engine
type ReconciliationResult struct {
	Mismatches []Mismatch            `json:"mismatches"`
	Summary    ReconciliationSummary `json:"summary"`
}

// PatternType discriminates fraud pattern payloads
type PatternType string

const (
	PatternCircular    PatternType = "CIRCULAR"
	PatternShell       PatternType = "SHELL"
	PatternReciprocal  PatternType = "RECIPROCAL"
	PatternFakeInvoice PatternType = "FAKE_INVOICE"
)

// FraudPattern is a closed tagged variant: exactly one payload matches Type
type FraudPattern struct {
	ID       string      `json:"id"`
	Type     PatternType `json:"type"`
	Severity Severity    `json:"severity"`
	Entities []string    `json:"entities"` // Sorted, implicated entity IDs

	Circular    *CircularPayload    `json:"circular,omitempty"`
	Shell       *ShellPayload       `json:"shell,omitempty"`
	Reciprocal  *ReciprocalPayload  `json:"reciprocal,omitempty"`
	FakeInvoice *FakeInvoicePayload `json:"fake_invoice,omitempty"`
}

// ChainEdge is one hop of a reported circular chain
type ChainEdge struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	InvoiceID string  `json:"invoice_id"`
	Value     float64 `json:"value"`
}

// CircularPayload describes a closed invoice chain
type CircularPayload struct {
	Chain      []string    `json:"chain"` // Rotation starting at the smallest ID
	Edges      []ChainEdge `json:"edges"`
	TotalValue float64     `json:"total_value"`
	Mastermind string      `json:"mastermind"`
}

// ShellPayload describes a structurally unimportant but financially central node
type ShellPayload struct {
	EntityID     string  `json:"entity_id"`
	PageRank     float64 `json:"pagerank"`
	Volume       float64 `json:"volume"`
	InvoiceCount int     `json:"invoice_count"`
}

// ReciprocalPayload describes invoices flowing both ways between two entities
type ReciprocalPayload struct {
	PartyA       string  `json:"party_a"` // Smaller ID
	PartyB       string  `json:"party_b"`
	AToBValue    float64 `json:"a_to_b_value"`
	BToAValue    float64 `json:"b_to_a_value"`
	AToBInvoices int     `json:"a_to_b_invoices"`
	BToAInvoices int     `json:"b_to_a_invoices"`
}

// FakeInvoicePayload describes suspicious invoices between one supplier and receiver
type FakeInvoicePayload struct {
	SupplierID      string           `json:"supplier_id"`
	ReceiverID      string           `json:"receiver_id"`
	RoundInvoices   []string         `json:"round_invoices,omitempty"`
	RepeatedAmounts []RepeatedAmount `json:"repeated_amounts,omitempty"`
	FlaggedInvoices []string         `json:"flagged_invoices"`
	TotalValue      float64          `json:"total_value"`
}

// RepeatedAmount is an identical value billed on several invoices
type RepeatedAmount struct {
	Amount     float64  `json:"amount"`
	Count      int      `json:"count"`
	Dates      int      `json:"distinct_dates"`
	InvoiceIDs []string `json:"invoice_ids"`
}

// PatternSummary counts detections
type PatternSummary struct {
	ByType         map[PatternType]int `json:"by_type"`
	TotalPatterns  int                 `json:"total_patterns"`
	UniqueEntities int                 `json:"unique_entities"`
	CyclesCapped   bool                `json:"cycles_capped"`
}

// PatternResult is the output of the four fraud detectors
type PatternResult struct {
	Patterns []FraudPattern `json:"patterns"`
	Summary  PatternSummary `json:"summary"`
}

// RiskLevel bands a composite risk score
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskFeatures is the raw feature vector for one entity
type RiskFeatures struct {
	PageRank           float64 `json:"pagerank"`
	InDegree           int     `json:"in_degree"`
	OutDegree          int     `json:"out_degree"`
	ITCToSalesRatio    float64 `json:"itc_to_sales_ratio"`
	ITCRatioGuarded    bool    `json:"itc_ratio_guarded,omitempty"` // Credit claimed against zero declared sales
	ZeroCashPeriods    int     `json:"zero_cash_periods"`
	FilingPeriods      int     `json:"filing_periods"`
	TotalOutwardValue  float64 `json:"total_outward_value"`
	InvoicesIssued     int     `json:"invoices_issued"`
	CriticalMismatches int     `json:"critical_mismatches"`
	OverclaimedPeriods int     `json:"overclaimed_periods"`
	KnownFraud         bool    `json:"known_fraud"`
}

// Contribution is one weighted term of a composite score
type Contribution struct {
	Feature   string  `json:"feature"`
	Component float64 `json:"component"` // Normalized to [0,1]
	Weight    float64 `json:"weight"`
	Value     float64 `json:"value"` // Component * Weight
	Formula   string  `json:"formula"`
}

// RiskScore is the composite risk of one entity
type RiskScore struct {
	EntityID            string         `json:"entity_id"`
	Score               float64        `json:"score"`
	Level               RiskLevel      `json:"level"`
	Features            RiskFeatures   `json:"features"`
	Contributions       []Contribution `json:"contributions"`
	GroundTruthOverride bool           `json:"ground_truth_override"`
	FraudType           string         `json:"fraud_type,omitempty"`
}

// AnomalyType discriminates anomaly payloads
type AnomalyType string

const (
	AnomalyInvoice  AnomalyType = "INVOICE_OUTLIER"
	AnomalyVendor   AnomalyType = "VENDOR_OUTLIER"
	AnomalyITCRatio AnomalyType = "ITC_RATIO_OUTLIER"
)

// Anomaly is a statistical outlier
type Anomaly struct {
	Type       AnomalyType `json:"type"`
	Severity   Severity    `json:"severity"`   // LOW, MEDIUM or HIGH
	Confidence float64     `json:"confidence"` // 0.0-1.0
	EntityID   string      `json:"entity_id"`
	InvoiceID  string      `json:"invoice_id,omitempty"`
	ReceiverID string      `json:"receiver_id,omitempty"`
	Period     string      `json:"period,omitempty"`
	Metric     string      `json:"metric,omitempty"` // total_volume, avg_invoice, value, itc_ratio
	Value      float64     `json:"value"`
	ZScore     float64     `json:"z_score,omitempty"`
	Deviation  float64     `json:"iqr_deviation,omitempty"`
	LowerFence float64     `json:"lower_fence,omitempty"`
	UpperFence float64     `json:"upper_fence,omitempty"`
	Direction  string      `json:"direction"` // HIGH or LOW
}

// Key identifies the anomaly within one build
func (a Anomaly) Key() string {
	return string(a.Type) + ":" + a.EntityID + ":" + a.InvoiceID + ":" + a.Period + ":" + a.Metric
}

// AnomalySummary counts outliers
type AnomalySummary struct {
	ByType         map[AnomalyType]int `json:"by_type"`
	Total          int                 `json:"total"`
	UniqueEntities int                 `json:"unique_entities"`
	DivisionGuards int                 `json:"division_guards"`
}

// AnomalyResult is the output of the anomaly detectors
type AnomalyResult struct {
	Anomalies []Anomaly      `json:"anomalies"`
	Summary   AnomalySummary `json:"summary"`
}

// AlertType classifies alerts by the component they project
type AlertType string

const (
	AlertMismatch     AlertType = "MISMATCH"
	AlertITCOverclaim AlertType = "ITC_OVERCLAIM"
	AlertFraud        AlertType = "FRAUD"
	AlertAnomaly      AlertType = "ANOMALY"
	AlertRisk         AlertType = "RISK"
)

// Alert is a severity-ranked, human-readable projection of one finding
type Alert struct {
	ID         string    `json:"id"`
	Type       AlertType `json:"type"`
	Severity   Severity  `json:"severity"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityIDs  []string  `json:"entity_ids,omitempty"`
	InvoiceIDs []string  `json:"invoice_ids,omitempty"`
	SourceRef  string    `json:"source_ref"` // Key of the mismatch, pattern, anomaly or score
}
