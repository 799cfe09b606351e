package costmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"graphflow/internal/catalog"
)

func sampleEstimator() *Estimator {
	return NewEstimator(
		map[catalog.TableID]NodeStats{
			1: {NumRows: 8, Domain: map[string]int64{"id": 8}},
			2: {NumRows: 1},
		},
		map[catalog.TableID]RelStats{10: {NumRows: 14}},
	)
}

func TestEstimateScanNodeSumsTables(t *testing.T) {
	e := sampleEstimator()
	assert.Equal(t, float64(8), e.EstimateScanNode(1))
	assert.Equal(t, float64(9), e.EstimateScanNode(1, 2))
}

func TestEstimatesClampToOne(t *testing.T) {
	e := sampleEstimator()
	assert.Equal(t, float64(1), e.EstimateScanNode(999))
	assert.Equal(t, float64(1), e.EstimateCrossProduct(0, 0))
}

func TestEstimateHashJoinDividesByKeyDomain(t *testing.T) {
	e := sampleEstimator()
	got := e.EstimateHashJoin(8, 8, []float64{8})
	assert.Equal(t, float64(8), got) // 8*8/8 = 8
}

func TestEstimateFilterPrimaryKeyEqualityIsOne(t *testing.T) {
	e := sampleEstimator()
	got := e.EstimateFilter(100, Predicate{IsEquality: true, IsPrimaryKeyEqual: true})
	assert.Equal(t, float64(1), got)
}

func TestEstimateFilterEqualityVsNonEquality(t *testing.T) {
	e := sampleEstimator()
	eq := e.EstimateFilter(100, Predicate{IsEquality: true})
	neq := e.EstimateFilter(100, Predicate{IsEquality: false})
	assert.Equal(t, float64(10), eq)
	assert.Equal(t, float64(30), neq)
}

func TestExtensionRate(t *testing.T) {
	e := sampleEstimator()
	assert.Equal(t, float64(14)/8, e.ExtensionRate(10, 1))
}

func TestIntersectCostSumsBuilds(t *testing.T) {
	c := CostModel{}
	got := c.IntersectCost(5, 10, []float64{2, 3})
	assert.Equal(t, float64(20), got)
}

func TestHashJoinAndMarkJoinCostAgree(t *testing.T) {
	c := CostModel{}
	hj := c.HashJoinCost(1, 2, 10, 5)
	mj := c.MarkJoinCost(1, 2, 10, 5)
	assert.Equal(t, hj, mj)
}
