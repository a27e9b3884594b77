package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/gstgraph/internal/graph"
	"github.com/ppiankov/gstgraph/internal/model"
)

// Input is everything the risk model reads from one build
type Input struct {
	Graph          *graph.Graph
	PageRank       *graph.PageRankResult
	Dataset        *model.Dataset
	Reconciliation *model.ReconciliationResult
}

// Scorer calculates composite entity risk with transparent per-feature contributions
type Scorer struct {
	cfg model.ScoreConfig
}

// NewScorer creates a new scorer
func NewScorer(cfg model.ScoreConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// norms holds graph-wide maxima used to normalize features
type norms struct {
	maxPageRank float64
	maxOutward  float64
	maxDegree   int
}

// Calculate scores every graph node, placeholders included.
// The result is sorted by score descending, ties by entity ID.
func (s *Scorer) Calculate(in Input) []model.RiskScore {
	features := s.extract(in)

	n := norms{maxPageRank: in.PageRank.Max()}
	for _, f := range features {
		n.maxOutward = math.Max(n.maxOutward, f.TotalOutwardValue)
		if d := f.InDegree + f.OutDegree; d > n.maxDegree {
			n.maxDegree = d
		}
	}

	labels := in.Dataset.LabelIndex()
	scores := make([]model.RiskScore, 0, len(features))
	for _, id := range in.Graph.NodeIDs() {
		scores = append(scores, s.scoreEntity(id, features[id], n, labels[id]))
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].EntityID < scores[j].EntityID
	})
	return scores
}

// Level bands a composite score
func (s *Scorer) Level(score float64) model.RiskLevel {
	switch {
	case score > s.cfg.CriticalAbove:
		return model.RiskCritical
	case score > s.cfg.HighAbove:
		return model.RiskHigh
	case score > s.cfg.MediumAbove:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func (s *Scorer) scoreEntity(id string, f model.RiskFeatures, n norms, label model.FraudLabel) model.RiskScore {
	w := s.cfg.Weights
	contributions := []model.Contribution{
		s.calculateITCRatio(f, w.ITCRatio),
		s.calculateZeroCash(f, w.ZeroCash),
		s.calculateShellSignal(f, n, w.ShellSignal),
		s.calculateMismatch(f, w.Mismatch),
		s.calculateOverclaim(f, w.Overclaim),
		s.calculateDegree(f, n, w.Degree),
		s.calculateVolume(f, n, w.Volume),
	}

	total := 0.0
	for _, c := range contributions {
		total += c.Value
	}
	total = model.Round(math.Min(math.Max(total, 0), 1), 4)

	rs := model.RiskScore{
		EntityID:      id,
		Score:         total,
		Level:         s.Level(total),
		Features:      f,
		Contributions: contributions,
	}

	if label.IsFraud {
		rs.Score = math.Max(rs.Score, s.cfg.KnownFraudFloor)
		rs.Level = model.RiskCritical
		rs.GroundTruthOverride = true
		rs.FraudType = label.FraudType
	}
	return rs
}

// extract computes the raw feature vector of every node
func (s *Scorer) extract(in Input) map[string]model.RiskFeatures {
	g := in.Graph
	features := make(map[string]model.RiskFeatures, g.NodeCount())
	labels := in.Dataset.LabelIndex()

	for _, id := range g.NodeIDs() {
		features[id] = model.RiskFeatures{
			PageRank:          model.Round(in.PageRank.Score(id), 6),
			InDegree:          g.InDegree(id),
			OutDegree:         g.OutDegree(id),
			TotalOutwardValue: model.Round(g.OutValue(id), 2),
			InvoicesIssued:    len(graph.Distinct(g.OutEdges(id))),
			KnownFraud:        labels[id].IsFraud,
		}
	}

	declared := make(map[string]float64)
	claimed := make(map[string]float64)
	for _, sum := range in.Dataset.Summaries {
		f, ok := features[sum.EntityID]
		if !ok {
			continue
		}
		f.FilingPeriods++
		if sum.CashTaxPaid == 0 {
			f.ZeroCashPeriods++
		}
		declared[sum.EntityID] += sum.DeclaredSales
		claimed[sum.EntityID] += sum.ClaimedCredit
		features[sum.EntityID] = f
	}
	for id, d := range declared {
		f := features[id]
		if d == 0 {
			f.ITCRatioGuarded = claimed[id] > 0
		} else {
			f.ITCToSalesRatio = model.Round(claimed[id]/d, 4)
		}
		features[id] = f
	}

	if in.Reconciliation != nil {
		for _, m := range in.Reconciliation.Mismatches {
			switch {
			case m.Status == model.StatusITCOverclaimed:
				bump(features, m.EntityID, func(f *model.RiskFeatures) { f.OverclaimedPeriods++ })
			case m.Severity == model.SeverityCritical:
				bump(features, m.SupplierID, func(f *model.RiskFeatures) { f.CriticalMismatches++ })
				if m.ReceiverID != m.SupplierID {
					bump(features, m.ReceiverID, func(f *model.RiskFeatures) { f.CriticalMismatches++ })
				}
			}
		}
	}
	return features
}

func bump(features map[string]model.RiskFeatures, id string, fn func(*model.RiskFeatures)) {
	f, ok := features[id]
	if !ok {
		return
	}
	fn(&f)
	features[id] = f
}

func contribution(feature string, component, weight float64, formula string) model.Contribution {
	component = math.Min(math.Max(component, 0), 1)
	return model.Contribution{
		Feature:   feature,
		Component: model.Round(component, 4),
		Weight:    weight,
		Value:     model.Round(component*weight, 4),
		Formula:   formula,
	}
}

// calculateITCRatio saturates once claimed credit reaches declared sales.
// Credit claimed with no declared sales is left to the overclaim term.
func (s *Scorer) calculateITCRatio(f model.RiskFeatures, weight float64) model.Contribution {
	if f.ITCRatioGuarded {
		return contribution("itc_ratio", 0, weight,
			"0 (division guard: total_sales_declared is 0, claimed credit scored by overclaim)")
	}
	return contribution("itc_ratio", math.Min(f.ITCToSalesRatio, 1), weight,
		"min(total_itc_claimed / total_sales_declared, 1)")
}

func (s *Scorer) calculateZeroCash(f model.RiskFeatures, weight float64) model.Contribution {
	component := 0.0
	if f.FilingPeriods > 0 {
		component = float64(f.ZeroCashPeriods) / float64(f.FilingPeriods)
	}
	return contribution("zero_cash", component, weight, "zero_cash_periods / filing_periods")
}

// calculateShellSignal is high for nodes that carry value but attract little structural importance
func (s *Scorer) calculateShellSignal(f model.RiskFeatures, n norms, weight float64) model.Contribution {
	component := 0.0
	if n.maxOutward > 0 {
		importance := 0.0
		if n.maxPageRank > 0 {
			importance = f.PageRank / n.maxPageRank
		}
		component = (1 - importance) * (f.TotalOutwardValue / n.maxOutward)
	}
	return contribution("shell_signal", component, weight,
		"(1 - pagerank / max_pagerank) * (outward_value / max_outward_value)")
}

func (s *Scorer) calculateMismatch(f model.RiskFeatures, weight float64) model.Contribution {
	saturation := s.cfg.MismatchSaturation
	if saturation <= 0 {
		saturation = 1
	}
	return contribution("mismatch", float64(f.CriticalMismatches)/float64(saturation), weight,
		fmt.Sprintf("min(critical_mismatches / %d, 1)", saturation))
}

func (s *Scorer) calculateOverclaim(f model.RiskFeatures, weight float64) model.Contribution {
	component := 0.0
	if f.FilingPeriods > 0 {
		component = float64(f.OverclaimedPeriods) / float64(f.FilingPeriods)
	}
	return contribution("overclaim", component, weight, "overclaimed_periods / filing_periods")
}

func (s *Scorer) calculateDegree(f model.RiskFeatures, n norms, weight float64) model.Contribution {
	component := 0.0
	if n.maxDegree > 0 {
		component = float64(f.InDegree+f.OutDegree) / float64(n.maxDegree)
	}
	return contribution("degree", component, weight, "(in_degree + out_degree) / max_degree")
}

func (s *Scorer) calculateVolume(f model.RiskFeatures, n norms, weight float64) model.Contribution {
	component := 0.0
	if n.maxOutward > 0 {
		component = f.TotalOutwardValue / n.maxOutward
	}
	return contribution("volume", component, weight, "outward_value / max_outward_value")
}
