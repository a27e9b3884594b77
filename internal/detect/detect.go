package detect

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
)

// patternNamespace seeds name-based pattern IDs
var patternNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("gstgraph/patterns"))

// typeOrder fixes the order of pattern types in results
var typeOrder = map[model.PatternType]int{
	model.PatternCircular:    0,
	model.PatternShell:       1,
	model.PatternReciprocal:  2,
	model.PatternFakeInvoice: 3,
}

// Input is the read-only view every detector works from
type Input struct {
	Graph    *graph.Graph
	PageRank *graph.PageRankResult
}

// Findings is the output of one detector
type Findings struct {
	Type      model.PatternType
	Patterns  []model.FraudPattern
	Truncated bool // Enumeration stopped at its configured cap
}

// Detector is one of the closed set of fraud pattern detectors.
// Detectors never mutate their input and may run concurrently.
type Detector interface {
	Type() model.PatternType
	Detect(in Input) Findings
}

// All returns the four detectors in result order
func All(cfg model.DetectConfig) []Detector {
	return []Detector{
		NewCircularDetector(cfg.Circular),
		NewShellDetector(cfg.Shell),
		NewReciprocalDetector(cfg.Reciprocal),
		NewFakeInvoiceDetector(cfg.Fake),
	}
}

// Run executes detectors sequentially and merges their findings
func Run(in Input, detectors []Detector) *model.PatternResult {
	findings := make([]Findings, 0, len(detectors))
	for _, d := range detectors {
		findings = append(findings, d.Detect(in))
	}
	return Merge(findings...)
}

// Merge combines detector findings into one sorted result with a summary
func Merge(findings ...Findings) *model.PatternResult {
	result := &model.PatternResult{
		Patterns: make([]model.FraudPattern, 0),
		Summary: model.PatternSummary{
			ByType: make(map[model.PatternType]int, len(typeOrder)),
		},
	}
	for typ := range typeOrder {
		result.Summary.ByType[typ] = 0
	}

	entities := make(map[string]bool)
	for _, f := range findings {
		if f.Truncated {
			result.Summary.CyclesCapped = true
		}
		for _, p := range f.Patterns {
			result.Patterns = append(result.Patterns, p)
			result.Summary.ByType[p.Type]++
			for _, id := range p.Entities {
				entities[id] = true
			}
		}
	}

	sort.SliceStable(result.Patterns, func(i, j int) bool {
		a, b := result.Patterns[i], result.Patterns[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if a.Type != b.Type {
			return typeOrder[a.Type] < typeOrder[b.Type]
		}
		if ka, kb := strings.Join(a.Entities, ","), strings.Join(b.Entities, ","); ka != kb {
			return ka < kb
		}
		return a.ID < b.ID
	})

	result.Summary.TotalPatterns = len(result.Patterns)
	result.Summary.UniqueEntities = len(entities)
	return result
}

// PatternID derives a stable ID from the pattern type and its natural key
func PatternID(typ model.PatternType, key string) string {
	return uuid.NewSHA1(patternNamespace, []byte(string(typ)+":"+key)).String()
}

// sortedCopy returns the distinct IDs in ascending order
func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
