package pipeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/gstgraph/internal/alert"
	"github.com/ppiankov/gstgraph/internal/cache"
	"github.com/ppiankov/gstgraph/internal/model"
)

// Rendered section file names
const (
	SectionGraph      = "graph.json"
	SectionMismatches = "mismatches.json"
	SectionPatterns   = "patterns.json"
	SectionRisk       = "risk.json"
	SectionAnomalies  = "anomalies.json"
	SectionAlerts     = "alerts.json"
	SectionBuild      = "build.json"
	SectionSummary    = "summary.md"
)

// Sections lists every rendered file in write order
var Sections = []string{
	SectionGraph,
	SectionMismatches,
	SectionPatterns,
	SectionRisk,
	SectionAnomalies,
	SectionAlerts,
	SectionBuild,
	SectionSummary,
}

// riskDocument is the payload of risk.json
type riskDocument struct {
	Entities    int               `json:"entities"`
	Leaderboard []model.RiskScore `json:"leaderboard"`
}

// Renderer turns snapshots into files. Content sections are cached by
// dataset fingerprint plus decode outcome; build.json carries the version and is never cached.
type Renderer struct {
	cache       cache.Cache
	ttl         time.Duration
	indent      bool
	leaderboard int
}

// NewRenderer creates a renderer; a nil cache disables caching
func NewRenderer(c cache.Cache, ttl time.Duration, indent bool, leaderboard int) *Renderer {
	if c == nil {
		c = cache.NopCache{}
	}
	return &Renderer{cache: c, ttl: ttl, indent: indent, leaderboard: leaderboard}
}

// Section renders one named section of snap
func (r *Renderer) Section(snap *model.Snapshot, name string) ([]byte, error) {
	if name == SectionBuild {
		return r.encode(snap.Info())
	}

	data, _, err := cache.GetOrRender(r.cache, cache.SectionKey(contentKey(snap), name), r.ttl, func() ([]byte, error) {
		return r.render(snap, name)
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return data, nil
}

// contentKey extends the dataset fingerprint with the decode stats and warnings.
// Skipped rows leave the fingerprint unchanged but still show up in the summary.
func contentKey(snap *model.Snapshot) string {
	h := sha256.New()
	h.Write([]byte(snap.Fingerprint))
	enc := json.NewEncoder(h)
	_ = enc.Encode(snap.Stats)
	_ = enc.Encode(snap.Warnings)
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Renderer) render(snap *model.Snapshot, name string) ([]byte, error) {
	switch name {
	case SectionGraph:
		return r.encode(snap.Graph)
	case SectionMismatches:
		return r.encode(snap.Reconciliation)
	case SectionPatterns:
		return r.encode(snap.Patterns)
	case SectionRisk:
		return r.encode(riskDocument{Entities: len(snap.Risk), Leaderboard: snap.Leaderboard(r.leaderboard)})
	case SectionAnomalies:
		return r.encode(snap.Anomalies)
	case SectionAlerts:
		return r.encode(snap.Alerts)
	case SectionSummary:
		return r.RenderMarkdown(snap), nil
	default:
		return nil, fmt.Errorf("unknown section %q", name)
	}
}

func (r *Renderer) encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if r.indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDir writes every section of snap into dir and returns the written paths
func (r *Renderer) WriteDir(snap *model.Snapshot, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(Sections))
	for _, name := range Sections {
		data, err := r.Section(snap, name)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		if err := writeFileAtomic(path, data); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeFileAtomic replaces path via a temp file so readers never see a partial file
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RenderMarkdown renders a human-readable summary of snap
func (r *Renderer) RenderMarkdown(snap *model.Snapshot) []byte {
	var b strings.Builder

	b.WriteString("# GST Fraud Analysis\n\n")
	fmt.Fprintf(&b, "- Dataset fingerprint: `%s`\n", snap.Fingerprint)
	fmt.Fprintf(&b, "- Taxpayers: %d, invoice edges: %d\n", len(snap.Graph.Nodes), len(snap.Graph.Edges))
	if !snap.Graph.PageRankConverged {
		fmt.Fprintf(&b, "- PageRank did not converge after %d iterations; scores are best effort\n", snap.Graph.PageRankIters)
	}
	b.WriteString("\n")

	rs := snap.Reconciliation.Summary
	b.WriteString("## Reconciliation\n\n")
	fmt.Fprintf(&b, "%d invoices, %d fully reconciled (%.1f%%), %d ITC overclaims.\n\n",
		rs.TotalInvoices, rs.FullyReconciled, rs.ReconciliationRate, rs.ITCOverclaimed)
	b.WriteString("| Status | Count |\n|---|---|\n")
	for _, st := range []model.MismatchStatus{
		model.StatusMissingInGSTR2B, model.StatusMissingInGSTR1, model.StatusValueMismatch, model.StatusTaxMismatch,
	} {
		fmt.Fprintf(&b, "| %s | %d |\n", st, rs.ByStatus[st])
	}
	b.WriteString("\n")

	ps := snap.Patterns.Summary
	b.WriteString("## Fraud Patterns\n\n")
	fmt.Fprintf(&b, "%d patterns across %d entities.", ps.TotalPatterns, ps.UniqueEntities)
	if ps.CyclesCapped {
		b.WriteString(" Cycle enumeration stopped at its cap.")
	}
	b.WriteString("\n\n| Type | Count |\n|---|---|\n")
	for _, typ := range []model.PatternType{
		model.PatternCircular, model.PatternShell, model.PatternReciprocal, model.PatternFakeInvoice,
	} {
		fmt.Fprintf(&b, "| %s | %d |\n", typ, ps.ByType[typ])
	}
	b.WriteString("\n")

	b.WriteString("## Risk Leaderboard\n\n")
	b.WriteString("| # | Entity | Score | Level |\n|---|---|---|---|\n")
	for i, score := range snap.Leaderboard(r.leaderboard) {
		level := string(score.Level)
		if score.GroundTruthOverride {
			level += " (known fraud)"
		}
		fmt.Fprintf(&b, "| %d | %s | %.4f | %s |\n", i+1, score.EntityID, score.Score, level)
	}
	b.WriteString("\n")

	as := snap.Anomalies.Summary
	b.WriteString("## Anomalies\n\n")
	fmt.Fprintf(&b, "%d outliers across %d entities (%d ratios skipped on zero sales).\n\n",
		as.Total, as.UniqueEntities, as.DivisionGuards)

	b.WriteString("## Alerts\n\n")
	if len(snap.Alerts) == 0 {
		b.WriteString("No alerts.\n")
	}
	for _, a := range snap.Alerts {
		fmt.Fprintf(&b, "- **%s** %s: %s\n", a.Severity, a.Title, a.Message)
	}

	if len(snap.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range snap.Warnings {
			fmt.Fprintf(&b, "- %s: %s\n", w.Kind, w.Message)
		}
	}

	return []byte(b.String())
}

// RenderSummary prints a short build summary
func (r *Renderer) RenderSummary(w io.Writer, snap *model.Snapshot) {
	severities := make(map[model.Severity]int)
	for _, a := range snap.Alerts {
		severities[a.Severity]++
	}
	flagged := 0.0
	for _, p := range snap.Patterns.Patterns {
		if p.Circular != nil {
			flagged += p.Circular.TotalValue
		}
	}

	_, _ = fmt.Fprintf(w, "Snapshot v%d (%s)\n", snap.Version, shortFingerprint(snap.Fingerprint))
	_, _ = fmt.Fprintf(w, "  Taxpayers:      %d\n", len(snap.Graph.Nodes))
	_, _ = fmt.Fprintf(w, "  Invoice edges:  %d\n", len(snap.Graph.Edges))
	_, _ = fmt.Fprintf(w, "  Reconciled:     %.1f%%\n", snap.Reconciliation.Summary.ReconciliationRate)
	_, _ = fmt.Fprintf(w, "  Fraud patterns: %d (circular value %s)\n", snap.Patterns.Summary.TotalPatterns, alert.FormatINR(flagged))
	_, _ = fmt.Fprintf(w, "  Anomalies:      %d\n", snap.Anomalies.Summary.Total)
	_, _ = fmt.Fprintf(w, "  Alerts:         %d critical, %d high, %d total\n",
		severities[model.SeverityCritical], severities[model.SeverityHigh], len(snap.Alerts))
	if len(snap.Warnings) > 0 {
		_, _ = fmt.Fprintf(w, "  Warnings:       %d\n", len(snap.Warnings))
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
