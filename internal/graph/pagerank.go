package graph

import (
	"fmt"
	"math"

	"github.com/ppiankov/gstgraph/internal/model"
)

// PageRankResult holds PageRank scores over the collapsed graph
type PageRankResult struct {
	Scores     map[string]float64
	Iterations int
	Converged  bool
}

// Score returns the PageRank of id (0 when absent)
func (r *PageRankResult) Score(id string) float64 {
	return r.Scores[id]
}

// Max returns the largest score
func (r *PageRankResult) Max() float64 {
	maxScore := 0.0
	for _, s := range r.Scores {
		maxScore = math.Max(maxScore, s)
	}
	return maxScore
}

// Warning returns a CONVERGENCE_WARNING when the iteration limit was reached
func (r *PageRankResult) Warning() *model.Warning {
	if r.Converged {
		return nil
	}
	return &model.Warning{
		Kind:    model.WarnConvergence,
		Message: fmt.Sprintf("pagerank did not converge within %d iterations; scores are best effort", r.Iterations),
		Ref:     "pagerank",
	}
}

// PageRank runs power iteration over unique successor sets.
// Mass of nodes without successors is spread uniformly. Convergence is an L1 change below N*tol.
func PageRank(g *Graph, cfg model.PageRankConfig) *PageRankResult {
	n := g.NodeCount()
	result := &PageRankResult{Scores: make(map[string]float64, n), Converged: true}
	if n == 0 {
		return result
	}

	ids := g.NodeIDs()
	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	succ := make([][]int, n)
	for i, id := range ids {
		for _, to := range g.Successors(id) {
			succ[i] = append(succ[i], index[to])
		}
	}

	d := cfg.Damping
	nf := float64(n)
	pr := make([]float64, n)
	for i := range pr {
		pr[i] = 1 / nf
	}
	next := make([]float64, n)

	result.Converged = false
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		dangling := 0.0
		for i := range pr {
			if len(succ[i]) == 0 {
				dangling += pr[i]
			}
		}
		base := (1-d)/nf + d*dangling/nf
		for i := range next {
			next[i] = base
		}
		for i, targets := range succ {
			if len(targets) == 0 {
				continue
			}
			share := d * pr[i] / float64(len(targets))
			for _, k := range targets {
				next[k] += share
			}
		}

		diff := 0.0
		for i := range pr {
			diff += math.Abs(next[i] - pr[i])
		}
		pr, next = next, pr
		result.Iterations = iter

		if diff < nf*cfg.Tolerance {
			result.Converged = true
			break
		}
	}

	for i, id := range ids {
		result.Scores[id] = pr[i]
	}
	return result
}
