// Package costmodel implements the cardinality estimator and cost model
// the join-order solver (§4.H, in internal/planner) scores candidate
// subplans with (§4.I).
package costmodel

import "graphflow/internal/catalog"

// Tunable knobs; defaults chosen to reproduce the join orders in §8.
const (
	SIPRatio                        = 100.0
	BuildPenalty                    = 2.0
	EqualityPredicateSelectivity    = 0.1
	NonEqualityPredicateSelectivity = 0.3
	MaxLevelToPlanExactly           = 12
)

// clamp enforces the "all estimates are clamped to >= 1" rule.
func clamp(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}

// NodeStats is the immutable per-table statistic the estimator reads.
type NodeStats struct {
	NumRows int64
	// Domain maps a property name to its estimated distinct-value count,
	// used as the join-key domain size in hash-join/intersect estimation.
	Domain map[string]int64
}

// RelStats is the immutable per-rel-table statistic.
type RelStats struct {
	NumRows int64
}

// Estimator holds the statistics snapshot a planning pass reads; it never
// mutates once constructed.
type Estimator struct {
	Nodes map[catalog.TableID]NodeStats
	Rels  map[catalog.TableID]RelStats
}

func NewEstimator(nodes map[catalog.TableID]NodeStats, rels map[catalog.TableID]RelStats) *Estimator {
	return &Estimator{Nodes: nodes, Rels: rels}
}

// EstimateScanNode sums the row counts of the given node tables.
func (e *Estimator) EstimateScanNode(tables ...catalog.TableID) float64 {
	var total float64
	for _, t := range tables {
		total += float64(e.Nodes[t].NumRows)
	}
	return clamp(total)
}

// Domain returns the distinct-value count for a (table, property) pair,
// clamped to at least 1 so it is always safe as a divisor.
func (e *Estimator) Domain(table catalog.TableID, property string) float64 {
	if d, ok := e.Nodes[table].Domain[property]; ok && d > 0 {
		return float64(d)
	}
	return 1
}

// EstimateHashJoin = probe.card * build_flat_card / prod(domain(key_i)).
// buildFlatCard is the build side's cardinality re-flattened across any
// unflat join-key groups — the caller supplies it already multiplied out,
// a pessimistic flat-ordering assumption for the build side.
func (e *Estimator) EstimateHashJoin(probeCard, buildFlatCard float64, keyDomains []float64) float64 {
	denom := 1.0
	for _, d := range keyDomains {
		if d < 1 {
			d = 1
		}
		denom *= d
	}
	return clamp(probeCard * buildFlatCard / denom)
}

// EstimateCrossProduct = a.card * b.card.
func (e *Estimator) EstimateCrossProduct(a, b float64) float64 {
	return clamp(a * b)
}

// EstimateIntersect = min(probe.card * NON_EQ_SEL, probe.card *
// prod(build.card) / prod(domain(key))).
func (e *Estimator) EstimateIntersect(probeCard float64, buildCards []float64, keyDomains []float64) float64 {
	bySelectivity := probeCard * NonEqualityPredicateSelectivity
	prodBuild := 1.0
	for _, b := range buildCards {
		prodBuild *= b
	}
	denom := 1.0
	for _, d := range keyDomains {
		if d < 1 {
			d = 1
		}
		denom *= d
	}
	byDomain := probeCard * prodBuild / denom
	if bySelectivity < byDomain {
		return clamp(bySelectivity)
	}
	return clamp(byDomain)
}

// Predicate describes a filter for estimation; IsPrimaryKeyEqual lets a
// caller route equality-on-primary-key predicates to the card=1 special
// case in EstimateFilter.
type Predicate struct {
	IsEquality        bool
	IsPrimaryKeyEqual bool
}

// EstimateFilter applies a predicate's selectivity to an input cardinality.
func (e *Estimator) EstimateFilter(card float64, pred Predicate) float64 {
	if pred.IsPrimaryKeyEqual {
		return 1
	}
	if pred.IsEquality {
		return clamp(card * EqualityPredicateSelectivity)
	}
	return clamp(card * NonEqualityPredicateSelectivity)
}

// ExtensionRate is |r| / |n| for a rel r pinned at node table n.
func (e *Estimator) ExtensionRate(rel, node catalog.TableID) float64 {
	n := float64(e.Nodes[node].NumRows)
	if n < 1 {
		n = 1
	}
	return float64(e.Rels[rel].NumRows) / n
}

// CostModel turns cardinality estimates into an additive cost, matching
// the original's bottom-up accumulation: every plan node's Cost already
// includes its children's.
type CostModel struct{}

// ExtendCost = child.cost + child.card.
func (CostModel) ExtendCost(childCost, childCard float64) float64 {
	return childCost + childCard
}

// RecursiveExtendCost = BUILD_PENALTY * child.card * rate * upper.
func (CostModel) RecursiveExtendCost(childCard, rate float64, upper int) float64 {
	return BuildPenalty * childCard * rate * float64(upper)
}

// HashJoinCost = probe.cost + build.cost + probe.card + BUILD_PENALTY*buildFlatCard.
func (CostModel) HashJoinCost(probeCost, buildCost, probeCard, buildFlatCard float64) float64 {
	return probeCost + buildCost + probeCard + BuildPenalty*buildFlatCard
}

// MarkJoinCost is identical to HashJoinCost (a mark join is a hash join
// whose probe side carries a boolean marker column instead of emitting a
// cross product of matches).
func (c CostModel) MarkJoinCost(probeCost, buildCost, probeCard, buildFlatCard float64) float64 {
	return c.HashJoinCost(probeCost, buildCost, probeCard, buildFlatCard)
}

// IntersectCost = probe.cost + probe.card + sum(build.cost).
func (CostModel) IntersectCost(probeCost, probeCard float64, buildCosts []float64) float64 {
	total := probeCost + probeCard
	for _, b := range buildCosts {
		total += b
	}
	return total
}
