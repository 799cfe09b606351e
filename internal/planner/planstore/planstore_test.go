package planstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"graphflow/internal/catalog"
	"graphflow/internal/costmodel"
	"graphflow/internal/planner"
)

func sampleGraph() planner.QueryGraph {
	return planner.QueryGraph{
		Nodes: []planner.QueryNode{{ID: 1, Table: 1}, {ID: 2, Table: 1}},
		Rels:  []planner.QueryRel{{ID: 100, Table: 10, Src: 1, Dst: 2, Dir: catalog.Fwd}},
	}
}

func TestHashQueryGraphIsOrderIndependent(t *testing.T) {
	a := sampleGraph()
	b := planner.QueryGraph{
		Nodes: []planner.QueryNode{{ID: 2, Table: 1}, {ID: 1, Table: 1}},
		Rels:  a.Rels,
	}
	assert.Equal(t, hashQueryGraph(a), hashQueryGraph(b))
}

func TestHashQueryGraphDiffersOnShape(t *testing.T) {
	a := sampleGraph()
	b := sampleGraph()
	b.Rels[0].Dir = catalog.Bwd
	assert.NotEqual(t, hashQueryGraph(a), hashQueryGraph(b))
}

func TestHashQueryGraphIgnoresPredicateValues(t *testing.T) {
	a := sampleGraph()
	a.Predicates = []planner.PredicateRef{{Var: 1, Property: "name", Pred: costmodel.Predicate{IsEquality: true}}}
	b := sampleGraph()
	b.Predicates = []planner.PredicateRef{{Var: 1, Property: "name", Pred: costmodel.Predicate{IsEquality: false}}}
	assert.Equal(t, hashQueryGraph(a), hashQueryGraph(b))
}
