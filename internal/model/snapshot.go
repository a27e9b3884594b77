package model

import "time"

// Snapshot is one immutable, fully derived view of a dataset.
// A snapshot is never mutated after it is published.
type Snapshot struct {
	Version     uint64 `json:"version"`
	Fingerprint string `json:"fingerprint"` // SHA-256 of the canonical dataset

	Graph          GraphView            `json:"graph"`
	Reconciliation ReconciliationResult `json:"reconciliation"`
	Patterns       PatternResult        `json:"patterns"`
	Risk           []RiskScore          `json:"risk"` // Every node, score desc then ID
	Anomalies      AnomalyResult        `json:"anomalies"`
	Alerts         []Alert              `json:"alerts"`
	Warnings       []Warning            `json:"warnings"`
	Stats          DecodeStats          `json:"stats"`

	BuiltAt  time.Time     `json:"-"`
	Duration time.Duration `json:"-"`
}

// Leaderboard returns the top n risk scores (all when n <= 0)
func (s *Snapshot) Leaderboard(n int) []RiskScore {
	if n <= 0 || n >= len(s.Risk) {
		return s.Risk
	}
	return s.Risk[:n]
}

// GraphView is the serializable projection of the transaction graph
type GraphView struct {
	Nodes             []NodeView `json:"nodes"`
	Edges             []EdgeView `json:"edges"`
	PageRankConverged bool       `json:"pagerank_converged"`
	PageRankIters     int        `json:"pagerank_iterations"`
}

// NodeView is a taxpayer node annotated with analysis results
type NodeView struct {
	ID           string    `json:"id"`
	LegalName    string    `json:"legal_name,omitempty"`
	Jurisdiction string    `json:"jurisdiction,omitempty"` // State name when the code is known
	Status       string    `json:"status,omitempty"`
	Unknown      bool      `json:"unknown"` // Placeholder synthesized for a dangling reference
	PageRank     float64   `json:"pagerank"`
	InDegree     int       `json:"in_degree"`
	OutDegree    int       `json:"out_degree"`
	RiskScore    float64   `json:"risk_score"`
	RiskLevel    RiskLevel `json:"risk_level"`
	Mastermind   bool      `json:"is_mastermind"`
}

// EdgeView is one invoice edge annotated with analysis results
type EdgeView struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	InvoiceID    string  `json:"invoice_id"`
	Value        float64 `json:"value"`
	TaxAmount    float64 `json:"tax_amount"`
	Date         string  `json:"date,omitempty"`
	Source       Source  `json:"source"`
	IsRisk       bool    `json:"is_risk"` // Part of a detected pattern
	IsMismatched bool    `json:"is_mismatched"`
}

// BuildInfo is the metadata rendered to build.json
type BuildInfo struct {
	Version     uint64      `json:"version"`
	Fingerprint string      `json:"fingerprint"`
	Stats       DecodeStats `json:"stats"`
	Warnings    []Warning   `json:"warnings"`
	Nodes       int         `json:"nodes"`
	Edges       int         `json:"edges"`
	Patterns    int         `json:"patterns"`
	Mismatches  int         `json:"mismatches"`
	Anomalies   int         `json:"anomalies"`
	Alerts      int         `json:"alerts"`
}

// Info summarizes the snapshot without timing data
func (s *Snapshot) Info() BuildInfo {
	return BuildInfo{
		Version:     s.Version,
		Fingerprint: s.Fingerprint,
		Stats:       s.Stats,
		Warnings:    s.Warnings,
		Nodes:       len(s.Graph.Nodes),
		Edges:       len(s.Graph.Edges),
		Patterns:    len(s.Patterns.Patterns),
		Mismatches:  len(s.Reconciliation.Mismatches),
		Anomalies:   len(s.Anomalies.Anomalies),
		Alerts:      len(s.Alerts),
	}
}
