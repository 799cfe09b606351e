package materializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/catalog"
	"graphflow/internal/costmodel"
	"graphflow/internal/operator"
	"graphflow/internal/planner"
	"graphflow/internal/vector"
)

const (
	personTable catalog.TableID = 1
	knowsTable  catalog.TableID = 10
	worksTable  catalog.TableID = 11
)

func nid(table catalog.TableID, offset uint64) vector.NodeIDVal {
	return vector.NodeIDVal{TableID: uint64(table), Offset: offset}
}

// fakeIter walks a fixed, pre-sorted neighbor slice.
type fakeIter struct {
	items []vector.NodeIDVal
	idx   int
}

func (it *fakeIter) Next() (vector.NodeIDVal, bool) {
	if it.idx >= len(it.items) {
		return vector.NodeIDVal{}, false
	}
	v := it.items[it.idx]
	it.idx++
	return v, true
}

// fakeStorage is a minimal in-memory catalog.Storage over a handful of
// person nodes and two rel tables, enough to exercise every lowering
// shape without a real storage backend.
type fakeStorage struct {
	maxOffset map[catalog.TableID]uint64
	names     map[vector.NodeIDVal]string
	adj       map[catalog.TableID]map[vector.NodeIDVal][]vector.NodeIDVal
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		maxOffset: map[catalog.TableID]uint64{personTable: 4},
		names: map[vector.NodeIDVal]string{
			nid(personTable, 0): "alice",
			nid(personTable, 1): "bob",
			nid(personTable, 2): "carol",
			nid(personTable, 3): "dave",
		},
		adj: map[catalog.TableID]map[vector.NodeIDVal][]vector.NodeIDVal{
			knowsTable: {
				nid(personTable, 0): {nid(personTable, 1), nid(personTable, 2)},
				nid(personTable, 1): {nid(personTable, 2)},
			},
			worksTable: {
				nid(personTable, 0): {nid(personTable, 2), nid(personTable, 3)},
			},
		},
	}
}

func (s *fakeStorage) MaxOffset(table catalog.TableID) (uint64, error) {
	return s.maxOffset[table], nil
}

func (s *fakeStorage) ReadColumn(table catalog.TableID, property string, nodeIDs, out *vector.Vector) error {
	nodeIDs.State.ForEach(func(_, pos int) {
		out.SetString(pos, s.names[nodeIDs.GetNodeID(pos)])
	})
	return nil
}

func (s *fakeStorage) ReadUnstructured(table catalog.TableID, property string, nodeIDs, out *vector.Vector) error {
	return nil
}

func (s *fakeStorage) AdjColumn(relTable catalog.TableID, dir catalog.Direction, nodeIDs, out *vector.Vector) error {
	nodeIDs.State.ForEach(func(_, pos int) {
		lst := s.adj[relTable][nodeIDs.GetNodeID(pos)]
		if len(lst) == 0 {
			out.SetNull(pos, true)
			return
		}
		out.SetNodeID(pos, lst[0])
	})
	return nil
}

func (s *fakeStorage) AdjListIterator(relTable catalog.TableID, dir catalog.Direction, nodeID vector.NodeIDVal) (catalog.AdjListIterator, error) {
	return &fakeIter{items: s.adj[relTable][nodeID]}, nil
}

// fakeCatalog exposes personTable/knowsTable/worksTable as many-to-many
// rel tables, satisfying catalog.Catalog for the lowering paths under
// test.
type fakeCatalog struct{}

func (fakeCatalog) NodeTable(name string) (catalog.NodeTableSchema, bool) { return catalog.NodeTableSchema{}, false }
func (fakeCatalog) RelTable(name string) (catalog.RelTableSchema, bool)   { return catalog.RelTableSchema{}, false }

func (fakeCatalog) NodeTableByID(id catalog.TableID) (catalog.NodeTableSchema, bool) {
	if id == personTable {
		return catalog.NodeTableSchema{ID: personTable, Name: "Person", Properties: []catalog.PropertySchema{{Name: "name", Type: vector.String}}}, true
	}
	return catalog.NodeTableSchema{}, false
}

func (fakeCatalog) RelTableByID(id catalog.TableID) (catalog.RelTableSchema, bool) {
	switch id {
	case knowsTable:
		return catalog.RelTableSchema{ID: knowsTable, Name: "Knows", SrcTable: personTable, DstTable: personTable, ManyToMany: true}, true
	case worksTable:
		return catalog.RelTableSchema{ID: worksTable, Name: "WorksWith", SrcTable: personTable, DstTable: personTable, ManyToMany: true}, true
	}
	return catalog.RelTableSchema{}, false
}

func (fakeCatalog) BoundAndNeighborTables(rel catalog.RelTableSchema, dir catalog.Direction) (catalog.TableID, catalog.TableID) {
	if dir == catalog.Fwd {
		return rel.SrcTable, rel.DstTable
	}
	return rel.DstTable, rel.SrcTable
}

func (fakeCatalog) AllNodeTables() []catalog.NodeTableSchema { return nil }
func (fakeCatalog) AllRelTables() []catalog.RelTableSchema   { return nil }

func sampleEstimator() *costmodel.Estimator {
	return costmodel.NewEstimator(
		map[catalog.TableID]costmodel.NodeStats{personTable: {NumRows: 4, Domain: map[string]int64{"id": 4}}},
		map[catalog.TableID]costmodel.RelStats{knowsTable: {NumRows: 3}, worksTable: {NumRows: 2}},
	)
}

func drain(t *testing.T, op operator.Operator) *operator.ResultCollector {
	t.Helper()
	rc := operator.NewResultCollector(op)
	require.NoError(t, rc.InitResultSet(nil))
	_, err := rc.Next()
	require.NoError(t, err)
	return rc
}

func TestMaterializeNodeScanWithProperty(t *testing.T) {
	qg := planner.QueryGraph{
		Nodes:      []planner.QueryNode{{ID: 1, Table: personTable}},
		Properties: map[uint32][]string{1: {"name"}},
	}
	tree := &planner.JoinTree{Root: &planner.PlanNode{
		Kind:  planner.NodeScanKind,
		Extra: planner.ExtraInfo{NodeVar: 1, Properties: []string{"name"}},
	}}

	m := New(fakeCatalog{}, newFakeStorage(), 8, nil)
	op, err := m.Materialize(qg, tree)
	require.NoError(t, err)

	rc := drain(t, op)
	require.Len(t, rc.Rows, 4)
	var names []string
	for _, row := range rc.Rows {
		require.Len(t, row, 2)
		names = append(names, row[1].StrVal)
	}
	assert.ElementsMatch(t, []string{"alice", "bob", "carol", "dave"}, names)
}

func TestMaterializeBareRelScanExtendsForward(t *testing.T) {
	qg := planner.QueryGraph{
		Rels: []planner.QueryRel{{ID: 100, Table: knowsTable, Src: 1, Dst: 2, Dir: catalog.Fwd}},
	}
	tree := &planner.JoinTree{Root: &planner.PlanNode{
		Kind:  planner.RelScanKind,
		Extra: planner.ExtraInfo{RelVar: 100, Dir: catalog.Fwd},
	}}

	m := New(fakeCatalog{}, newFakeStorage(), 8, nil)
	op, err := m.Materialize(qg, tree)
	require.NoError(t, err)

	rc := drain(t, op)
	require.Len(t, rc.Rows, 3) // (0,1) (0,2) (1,2)
	for _, row := range rc.Rows {
		require.Len(t, row, 2, "src column plus dst column, not just the neighbor")
	}
	got := map[[2]uint64]bool{}
	for _, row := range rc.Rows {
		got[[2]uint64{row[0].NodeVal.Offset, row[1].NodeVal.Offset}] = true
	}
	assert.Equal(t, map[[2]uint64]bool{{0, 1}: true, {0, 2}: true, {1, 2}: true}, got)
}

func TestMaterializeMissingPredicateErrors(t *testing.T) {
	qg := planner.QueryGraph{
		Nodes:      []planner.QueryNode{{ID: 1, Table: personTable}},
		Predicates: []planner.PredicateRef{{Var: 1, Property: "name", Pred: costmodel.Predicate{IsEquality: true}}},
	}
	tree := &planner.JoinTree{Root: &planner.PlanNode{
		Kind:  planner.NodeScanKind,
		Extra: planner.ExtraInfo{NodeVar: 1, PredicateIdx: []int{0}},
	}}

	m := New(fakeCatalog{}, newFakeStorage(), 8, nil)
	_, err := m.Materialize(qg, tree)
	assert.Error(t, err)
}

// TestMaterializeChainQueryViaPlanner plans and materializes the
// 3-node chain p1-[knows]->p2-[knows]->p3 end to end, checking the
// MultiwayJoin-avoidance decision from the planner survives lowering and
// produces the one valid 2-hop path in the fake graph: 0->1->2.
func TestMaterializeChainQueryViaPlanner(t *testing.T) {
	qg := planner.QueryGraph{
		Nodes: []planner.QueryNode{{ID: 1, Table: personTable}, {ID: 2, Table: personTable}, {ID: 3, Table: personTable}},
		Rels: []planner.QueryRel{
			{ID: 100, Table: knowsTable, Src: 1, Dst: 2, Dir: catalog.Fwd},
			{ID: 101, Table: knowsTable, Src: 2, Dst: 3, Dir: catalog.Fwd},
		},
	}
	tree, err := planner.Plan(qg, sampleEstimator(), costmodel.CostModel{})
	require.NoError(t, err)
	require.NotEqual(t, planner.MultiwayJoinKind, tree.Root.Kind)

	m := New(fakeCatalog{}, newFakeStorage(), 8, nil)
	op, err := m.Materialize(qg, tree)
	require.NoError(t, err)

	rc := drain(t, op)
	require.Len(t, rc.Rows, 1)
	row := rc.Rows[0]
	require.Len(t, row, 3, "one column per bound query variable, not just the last hop's neighbor")
	offsets := map[uint64]bool{}
	for _, s := range row {
		offsets[s.NodeVal.Offset] = true
	}
	assert.Equal(t, map[uint64]bool{0: true, 1: true, 2: true}, offsets)
}

// TestMaterializeStarQueryViaPlanner plans and materializes the
// single-pivot star pattern (p1 both knows and works-with x), checking
// the planner's MultiwayJoin lowers to an Intersect that finds the one
// node (2) reachable through both rel tables from node 0.
func TestMaterializeStarQueryViaPlanner(t *testing.T) {
	qg := planner.QueryGraph{
		Nodes: []planner.QueryNode{{ID: 1, Table: personTable}},
		Rels: []planner.QueryRel{
			{ID: 100, Table: knowsTable, Src: 1, Dst: 2, Dir: catalog.Fwd},
			{ID: 101, Table: worksTable, Src: 1, Dst: 2, Dir: catalog.Fwd},
		},
	}
	tree, err := planner.Plan(qg, sampleEstimator(), costmodel.CostModel{})
	require.NoError(t, err)
	require.Equal(t, planner.MultiwayJoinKind, tree.Root.Kind)

	m := New(fakeCatalog{}, newFakeStorage(), 8, nil)
	op, err := m.Materialize(qg, tree)
	require.NoError(t, err)

	rc := drain(t, op)
	require.Len(t, rc.Rows, 1)
	assert.Equal(t, nid(personTable, 0), rc.Rows[0][0].NodeVal)
	assert.Equal(t, nid(personTable, 2), rc.Rows[0][1].NodeVal)
}
