package recursive

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/catalog"
	"graphflow/internal/vector"
)

func n(offset uint64) vector.NodeIDVal { return vector.NodeIDVal{TableID: 1, Offset: offset} }

// diamondStorage implements catalog.Storage over a small fixed graph:
// 0->1, 0->2, 1->3, 2->3, 3->4, 4->4 (self-loop).
type diamondStorage struct {
	edges map[uint64][]uint64
}

func newDiamondStorage() *diamondStorage {
	return &diamondStorage{edges: map[uint64][]uint64{
		0: {1, 2},
		1: {3},
		2: {3},
		3: {4},
		4: {4},
	}}
}

func (d *diamondStorage) MaxOffset(catalog.TableID) (uint64, error) { return 0, nil }
func (d *diamondStorage) ReadColumn(catalog.TableID, string, *vector.Vector, *vector.Vector) error {
	return nil
}
func (d *diamondStorage) ReadUnstructured(catalog.TableID, string, *vector.Vector, *vector.Vector) error {
	return nil
}
func (d *diamondStorage) AdjColumn(catalog.TableID, catalog.Direction, *vector.Vector, *vector.Vector) error {
	return nil
}

type offsetIter struct {
	vals []uint64
	idx  int
}

func (it *offsetIter) Next() (vector.NodeIDVal, bool) {
	if it.idx >= len(it.vals) {
		return vector.NodeIDVal{}, false
	}
	v := it.vals[it.idx]
	it.idx++
	return n(v), true
}

func (d *diamondStorage) AdjListIterator(_ catalog.TableID, _ catalog.Direction, id vector.NodeIDVal) (catalog.AdjListIterator, error) {
	return &offsetIter{vals: d.edges[id.Offset]}, nil
}

func TestShortestPathTerminatesOnAllTargetsFound(t *testing.T) {
	storage := newDiamondStorage()
	targets := map[vector.NodeIDVal]bool{n(3): true, n(4): true}
	_, outputs, err := Run(n(0), storage, 1, catalog.Fwd, 0, 5, targets, false, ShortestPathStrategy{})
	require.NoError(t, err)

	byDst := map[vector.NodeIDVal]OutputTuple{}
	for _, o := range outputs {
		byDst[o.Dst] = o
	}
	require.Contains(t, byDst, n(3))
	require.Contains(t, byDst, n(4))
	assert.Equal(t, 2, byDst[n(3)].Length)
	assert.Equal(t, 3, byDst[n(4)].Length)
}

func TestAllShortestPathCountsParallelMinimalPaths(t *testing.T) {
	storage := newDiamondStorage()
	targets := map[vector.NodeIDVal]bool{n(3): true}
	_, outputs, err := Run(n(0), storage, 1, catalog.Fwd, 0, 5, targets, true, AllShortestPathStrategy{})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, 2, outputs[0].Length)
	assert.Equal(t, uint64(2), outputs[0].Multiplicity)
}

func TestVariableLengthEmitsMultiplicityPerLength(t *testing.T) {
	storage := newDiamondStorage()
	targets := map[vector.NodeIDVal]bool{n(3): true}
	_, outputs, err := Run(n(0), storage, 1, catalog.Fwd, 1, 3, targets, false, VariableLengthStrategy{})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, 2, outputs[0].Length)
	assert.Equal(t, uint64(2), outputs[0].Multiplicity)
}

func TestBoundaryZeroLowerUpperEmitsOnlySourceAsTarget(t *testing.T) {
	storage := newDiamondStorage()
	_, outputs, err := Run(n(0), storage, 1, catalog.Fwd, 0, 0, map[vector.NodeIDVal]bool{n(0): true}, false, ShortestPathStrategy{})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, n(0), outputs[0].Dst)
	assert.Equal(t, 0, outputs[0].Length)
}

func TestPathScannerReconstructsBothShortestPaths(t *testing.T) {
	storage := newDiamondStorage()
	targets := map[vector.NodeIDVal]bool{n(3): true}
	state, _, err := Run(n(0), storage, 1, catalog.Fwd, 0, 5, targets, true, ShortestPathStrategy{})
	require.NoError(t, err)

	ps := &PathScanner{State: state}
	paths := ps.PathsTo(n(3), 2)
	require.Len(t, paths, 2)

	var middles []uint64
	for _, p := range paths {
		require.Len(t, p.Nodes, 3)
		assert.Equal(t, n(0), p.Nodes[0])
		assert.Equal(t, n(3), p.Nodes[2])
		middles = append(middles, p.Nodes[1].Offset)
	}
	sort.Slice(middles, func(i, j int) bool { return middles[i] < middles[j] })
	assert.Equal(t, []uint64{1, 2}, middles)
}

func TestDstNodeWithMultiplicityScannerExpandsRows(t *testing.T) {
	tuples := []OutputTuple{{Dst: n(3), Length: 2, Multiplicity: 3}}
	rows := DstNodeWithMultiplicityScanner{}.Expand(tuples)
	assert.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, n(3), r)
	}
}
