package operator

import (
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// Intersect is the worst-case-optimal multi-way join: the probe side
// supplies one binding per row, each build side supplies a neighbor list
// for that binding, and the operator emits the set intersection of all
// neighbor lists.
type Intersect struct {
	Probe  Operator
	Builds []Operator
	// NeighborsOf returns the sorted neighbor-NodeID list for a probe
	// binding from the i'th build child; materializer wires this to a
	// Storage.AdjListIterator or Storage.AdjColumn lookup per build side.
	NeighborsOf func(buildIdx int, bound vector.NodeIDVal) ([]vector.NodeIDVal, error)

	probeChunk *vector.DataChunk
	probePos   []int
	probeIdx   int
	current    []vector.NodeIDVal
	curIdx     int
	outVec     *vector.Vector
	result     *vector.ResultSet
}

func NewIntersect(probe Operator, builds []Operator, neighborsOf func(int, vector.NodeIDVal) ([]vector.NodeIDVal, error)) *Intersect {
	return &Intersect{Probe: probe, Builds: builds, NeighborsOf: neighborsOf}
}

func (n *Intersect) InitResultSet(mm *memmgr.MemoryManager) error {
	if err := n.Probe.InitResultSet(mm); err != nil {
		return err
	}
	for _, b := range n.Builds {
		if err := b.InitResultSet(mm); err != nil {
			return err
		}
	}
	n.outVec = vector.NewVector(vector.NodeID)
	return nil
}

func (n *Intersect) ReInitToRerun() {
	n.Probe.ReInitToRerun()
	for _, b := range n.Builds {
		b.ReInitToRerun()
	}
	n.probeChunk = nil
	n.current = nil
	n.curIdx = 0
}

func (n *Intersect) Next() (bool, error) {
	for {
		if n.curIdx < len(n.current) {
			nb := n.current[n.curIdx]
			n.curIdx++
			n.outVec.Reserve(1)
			n.outVec.State = vector.NewFlatState(0)
			n.outVec.SetNodeID(0, nb)
			probeCp := *n.boundProbeVector()
			probeCp.State = vector.NewFlatState(n.probePos[n.probeIdx-1])
			chunk := &vector.DataChunk{Vectors: []*vector.Vector{&probeCp, n.outVec}, State: n.outVec.State}
			n.result = vector.NewResultSet(chunk)
			return true, nil
		}

		if n.probeChunk == nil || n.probeIdx >= len(n.probePos) {
			ok, err := n.Probe.Next()
			if err != nil || !ok {
				return ok, err
			}
			rs := n.Probe.ResultSet()
			if len(rs.Chunks) == 0 {
				continue
			}
			n.probeChunk = rs.Chunks[0]
			n.probePos = nil
			n.probeChunk.State.ForEach(func(_, pos int) { n.probePos = append(n.probePos, pos) })
			n.probeIdx = 0
			if len(n.probePos) == 0 {
				n.probeChunk = nil
				continue
			}
		}

		pos := n.probePos[n.probeIdx]
		n.probeIdx++
		bound := n.boundProbeVector().GetNodeID(pos)

		lists := make([][]vector.NodeIDVal, len(n.Builds))
		for i := range n.Builds {
			lst, err := n.NeighborsOf(i, bound)
			if err != nil {
				return false, err
			}
			lists[i] = lst
		}
		n.current = intersectSorted(lists)
		n.curIdx = 0
	}
}

func (n *Intersect) boundProbeVector() *vector.Vector {
	return findNodeIDVector(n.probeChunk)
}

// intersectSorted computes the intersection of already-sorted NodeID
// lists via a merge walk, preserving order.
func intersectSorted(lists [][]vector.NodeIDVal) []vector.NodeIDVal {
	if len(lists) == 0 {
		return nil
	}
	result := lists[0]
	for _, next := range lists[1:] {
		result = mergeIntersect(result, next)
		if len(result) == 0 {
			break
		}
	}
	return result
}

func mergeIntersect(a, b []vector.NodeIDVal) []vector.NodeIDVal {
	var out []vector.NodeIDVal
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case lessNodeID(a[i], b[j]):
			i++
		case lessNodeID(b[j], a[i]):
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func lessNodeID(a, b vector.NodeIDVal) bool {
	if a.TableID != b.TableID {
		return a.TableID < b.TableID
	}
	return a.Offset < b.Offset
}

func (n *Intersect) ResultSet() *vector.ResultSet { return n.result }

func (n *Intersect) Clone() Operator {
	builds := make([]Operator, len(n.Builds))
	for i, b := range n.Builds {
		builds[i] = b.Clone()
	}
	return &Intersect{Probe: n.Probe.Clone(), Builds: builds, NeighborsOf: n.NeighborsOf}
}
