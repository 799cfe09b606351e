package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/catalog"
	"graphflow/internal/costmodel"
)

const (
	personTable catalog.TableID = 1
	orgTable    catalog.TableID = 2
	knowsTable  catalog.TableID = 10
	worksTable  catalog.TableID = 11
)

func sampleGraphEstimator() *costmodel.Estimator {
	return costmodel.NewEstimator(
		map[catalog.TableID]costmodel.NodeStats{
			personTable: {NumRows: 8, Domain: map[string]int64{"id": 8}},
			orgTable:    {NumRows: 2, Domain: map[string]int64{"id": 2}},
		},
		map[catalog.TableID]costmodel.RelStats{
			knowsTable: {NumRows: 14},
			worksTable: {NumRows: 4},
		},
	)
}

// TestPlanTwoTableJoinPicksCheaperBuildSide builds p1-[knows]->p2 and
// checks the solver folds the rel into an INLJ-style extend from the
// smaller/earlier-bound side rather than a generic hash join, and that
// every query node/rel ends up bound in the final tree.
func TestPlanTwoTableJoinPicksCheaperBuildSide(t *testing.T) {
	// Node 2 is intentionally left out of Nodes: its only role is as the
	// rel's destination, bound purely by the extend, with no separate
	// property scan requested — the minimal leaf set for a single-hop
	// query.
	qg := QueryGraph{
		Nodes: []QueryNode{{ID: 1, Table: personTable}},
		Rels:  []QueryRel{{ID: 100, Table: knowsTable, Src: 1, Dst: 2, Dir: catalog.Fwd}},
	}
	est := sampleGraphEstimator()
	tree, err := Plan(qg, est, costmodel.CostModel{})
	require.NoError(t, err)

	assert.Equal(t, RelScanKind, tree.Root.Kind)
	assert.Len(t, tree.Root.Children, 1)
	assert.True(t, tree.Cardinality > 0)
	assert.True(t, tree.Cost > 0)
}

// TestPlanStarPatternUsesMultiwayJoin builds a single person p1 with two
// rels to distinct rel tables both landing on the same new variable x
// (find x both known-by and worked-with by p1), which should fold into
// a MultiwayJoin intersecting both rels' neighbor sets instead of
// nesting two binary joins.
func TestPlanStarPatternUsesMultiwayJoin(t *testing.T) {
	// Node 2 (the shared target "x") is left out of Nodes for the same
	// reason as the single-hop test: it is bound purely by the two
	// intersected extends, with no separate property scan requested.
	qg := QueryGraph{
		Nodes: []QueryNode{{ID: 1, Table: personTable}},
		Rels: []QueryRel{
			{ID: 100, Table: knowsTable, Src: 1, Dst: 2, Dir: catalog.Fwd},
			{ID: 101, Table: worksTable, Src: 1, Dst: 2, Dir: catalog.Fwd},
		},
	}
	est := sampleGraphEstimator()
	tree, err := Plan(qg, est, costmodel.CostModel{})
	require.NoError(t, err)

	assert.Equal(t, MultiwayJoinKind, tree.Root.Kind)
	require.Len(t, tree.Root.Children, 3)
	assert.Equal(t, NodeScanKind, tree.Root.Children[0].Kind)
	assert.Equal(t, uint32(1), tree.Root.Extra.JoinNode)
}

// TestPlanChainQueryDoesNotMisuseIntersect builds a 3-node chain
// p1-[knows]->p2-[knows]->p3, whose two rels share node p2 but target
// DIFFERENT new variables (p1 and p3) — this must NOT fold into a
// MultiwayJoin (which would incorrectly merge p1 and p3 into one
// column), only ordinary extends/joins.
func TestPlanChainQueryDoesNotMisuseIntersect(t *testing.T) {
	qg := QueryGraph{
		Nodes: []QueryNode{{ID: 1, Table: personTable}, {ID: 2, Table: personTable}, {ID: 3, Table: personTable}},
		Rels: []QueryRel{
			{ID: 100, Table: knowsTable, Src: 1, Dst: 2, Dir: catalog.Fwd},
			{ID: 101, Table: knowsTable, Src: 2, Dst: 3, Dir: catalog.Fwd},
		},
	}
	est := sampleGraphEstimator()
	tree, err := Plan(qg, est, costmodel.CostModel{})
	require.NoError(t, err)

	assert.NotEqual(t, MultiwayJoinKind, tree.Root.Kind)
	assert.Equal(t, map[uint32]bool{1: true, 2: true, 3: true}, tree.boundNodes)
}

// TestPlanAppliesEqualityPredicateAtEarliestLevel checks a predicate on
// node 1 is folded into the level-1 NodeScan leaf (where it first
// becomes attachable) and narrows that leaf's cardinality, rather than
// waiting for the top-level join.
func TestPlanAppliesEqualityPredicateAtEarliestLevel(t *testing.T) {
	qg := QueryGraph{
		Nodes: []QueryNode{{ID: 1, Table: personTable}, {ID: 2, Table: personTable}},
		Rels:  []QueryRel{{ID: 100, Table: knowsTable, Src: 1, Dst: 2, Dir: catalog.Fwd}},
		Predicates: []PredicateRef{
			{Var: 1, Property: "name", Pred: costmodel.Predicate{IsEquality: true}},
		},
	}
	est := sampleGraphEstimator()
	leaves := buildLeaves(qg, est, costmodel.CostModel{})

	var node1Leaf *JoinTree
	for _, lf := range leaves {
		if lf.Root.Kind == NodeScanKind && lf.Root.Extra.NodeVar == 1 {
			node1Leaf = lf
		}
	}
	require.NotNil(t, node1Leaf)
	assert.Len(t, node1Leaf.Root.Extra.PredicateIdx, 1)
	// 8 * EqualityPredicateSelectivity(0.1) = 0.8, clamped to the >= 1 floor.
	assert.Equal(t, float64(1), node1Leaf.Cardinality)
}

// TestPlanDisconnectedGraphErrors checks two node scans with no
// connecting rel never combine under implicit-join pruning, so the
// solver reports the graph as unplannable rather than emitting a cross
// product.
func TestPlanDisconnectedGraphErrors(t *testing.T) {
	qg := QueryGraph{
		Nodes: []QueryNode{{ID: 1, Table: personTable}, {ID: 2, Table: orgTable}},
	}
	est := sampleGraphEstimator()
	_, err := Plan(qg, est, costmodel.CostModel{})
	assert.Error(t, err)
}

// TestPlanExprScanLeafForCorrelatedSubquery checks a query node marked
// as bound by an outer correlated subquery is planned as a single
// ExprScan leaf instead of a fresh NodeScan.
func TestPlanExprScanLeafForCorrelatedSubquery(t *testing.T) {
	qg := QueryGraph{
		Nodes:        []QueryNode{{ID: 1, Table: personTable}},
		ExprScanVars: []uint32{1},
	}
	est := sampleGraphEstimator()
	leaves := buildLeaves(qg, est, costmodel.CostModel{})
	require.Len(t, leaves, 1)
	assert.Equal(t, ExprScanKind, leaves[0].Root.Kind)
	assert.Equal(t, float64(1), leaves[0].Cardinality)
}
