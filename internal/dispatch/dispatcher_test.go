package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/catalog"
	"graphflow/internal/recursive"
	"graphflow/internal/vector"
)

func nid(offset uint64) vector.NodeIDVal { return vector.NodeIDVal{TableID: 1, Offset: offset} }

// chainStorage is a fixed adjacency graph: 0->1, 0->2, 1->3, 2->3, 3->4.
type chainStorage struct {
	edges map[uint64][]uint64
}

func newChainStorage() *chainStorage {
	return &chainStorage{edges: map[uint64][]uint64{
		0: {1, 2},
		1: {3},
		2: {3},
		3: {4},
	}}
}

func (c *chainStorage) MaxOffset(catalog.TableID) (uint64, error) { return 0, nil }
func (c *chainStorage) ReadColumn(catalog.TableID, string, *vector.Vector, *vector.Vector) error {
	return nil
}
func (c *chainStorage) ReadUnstructured(catalog.TableID, string, *vector.Vector, *vector.Vector) error {
	return nil
}
func (c *chainStorage) AdjColumn(catalog.TableID, catalog.Direction, *vector.Vector, *vector.Vector) error {
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
	return nid(v), true
}

func (c *chainStorage) AdjListIterator(_ catalog.TableID, _ catalog.Direction, id vector.NodeIDVal) (catalog.AdjListIterator, error) {
	return &offsetIter{vals: c.edges[id.Offset]}, nil
}

// queueFTable serves a fixed list of sources then reports exhaustion.
type queueFTable struct {
	mu      sync.Mutex
	sources []Source
	idx     int
}

func (q *queueFTable) NextRow() (Source, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.idx >= len(q.sources) {
		return Source{}, false
	}
	s := q.sources[q.idx]
	q.idx++
	return s, true
}

func TestDispatcherOneThreadOneSource(t *testing.T) {
	storage := newChainStorage()
	ftable := &queueFTable{sources: []Source{{
		Node: nid(0), Storage: storage, RelTable: 1, Dir: catalog.Fwd,
		Lower: 0, Upper: 5, Targets: map[vector.NodeIDVal]bool{nid(3): true, nid(4): true},
		Strategy: recursive.ShortestPathStrategy{},
	}}}
	d := NewDispatcher(OneThreadOneSource, 10, 1, ftable)

	RunWorker(d, 0)

	assert.Equal(t, Complete, d.State())
	outputs := d.Outputs(0)
	require.Len(t, outputs, 2)
	byDst := map[vector.NodeIDVal]recursive.OutputTuple{}
	for _, o := range outputs {
		byDst[o.Dst] = o
	}
	assert.Equal(t, 2, byDst[nid(3)].Length)
	assert.Equal(t, 3, byDst[nid(4)].Length)
}

func TestDispatcherNThreadsKSourcesConcurrent(t *testing.T) {
	storage := newChainStorage()
	ftable := &queueFTable{sources: []Source{
		{
			Node: nid(0), Storage: storage, RelTable: 1, Dir: catalog.Fwd,
			Lower: 0, Upper: 5, Targets: map[vector.NodeIDVal]bool{nid(4): true},
			Strategy: recursive.ShortestPathStrategy{},
		},
		{
			Node: nid(1), Storage: storage, RelTable: 1, Dir: catalog.Fwd,
			Lower: 0, Upper: 5, Targets: map[vector.NodeIDVal]bool{nid(3): true},
			Strategy: recursive.ShortestPathStrategy{},
		},
	}}
	d := NewDispatcher(NThreadsKSources, 10, 2, ftable)

	var wg sync.WaitGroup
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			RunWorker(d, id)
		}(w)
	}
	wg.Wait()

	assert.Equal(t, Complete, d.State())
	out0 := d.Outputs(0)
	require.Len(t, out0, 1)
	assert.Equal(t, 3, out0[0].Length)

	out1 := d.Outputs(1)
	require.Len(t, out1, 1)
	assert.Equal(t, 1, out1[0].Length)
}

func TestGetBFSMorselNoWorkToShareWhenEntryWriting(t *testing.T) {
	storage := newChainStorage()
	ftable := &queueFTable{sources: []Source{{
		Node: nid(4), Storage: storage, RelTable: 1, Dir: catalog.Fwd,
		Lower: 0, Upper: 0, Targets: map[vector.NodeIDVal]bool{nid(4): true},
		Strategy: recursive.ShortestPathStrategy{},
	}}}
	d := NewDispatcher(OneThreadOneSource, 10, 1, ftable)

	m1 := d.GetBFSMorsel(0)
	require.Equal(t, FrontierScanMorsel, m1.Kind)
	d.FinishBFSMorsel(m1, nil)

	// Lower=Upper=0 terminates as soon as level 0's single morsel
	// finishes, so the next claim is a path-write morsel.
	m2 := d.GetBFSMorsel(0)
	assert.Equal(t, PathWriteMorsel, m2.Kind)

	// The single output is already claimed while the entry is still
	// writing, so another worker finds nothing to claim.
	m3 := d.GetBFSMorsel(1)
	assert.Equal(t, NoWorkToShare, m3.Kind)
	d.WriteMorsel(0, m2)

	assert.True(t, d.entries[0].complete)
}
