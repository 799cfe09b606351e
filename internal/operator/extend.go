package operator

import (
	"graphflow/internal/catalog"
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// AdjColumnExtend reads a single-valued adjacency column (a to-one
// relationship) at the positions given by the input NodeID vector and
// discards null neighbors, tightening the selection state so every
// surviving row has a non-null neighbor.
type AdjColumnExtend struct {
	Child    Operator
	Storage  catalog.Storage
	RelTable catalog.TableID
	Dir      catalog.Direction

	result   *vector.ResultSet
	srcChunk *vector.DataChunk
	dstCol   *vector.Vector
}

func NewAdjColumnExtend(child Operator, storage catalog.Storage, relTable catalog.TableID, dir catalog.Direction) *AdjColumnExtend {
	return &AdjColumnExtend{Child: child, Storage: storage, RelTable: relTable, Dir: dir}
}

func (a *AdjColumnExtend) InitResultSet(mm *memmgr.MemoryManager) error {
	if err := a.Child.InitResultSet(mm); err != nil {
		return err
	}
	a.dstCol = vector.NewVector(vector.NodeID)
	return nil
}

func (a *AdjColumnExtend) ReInitToRerun() { a.Child.ReInitToRerun() }

func (a *AdjColumnExtend) Next() (bool, error) {
	for {
		ok, err := a.Child.Next()
		if err != nil || !ok {
			return ok, err
		}
		rs := a.Child.ResultSet()
		if len(rs.Chunks) == 0 {
			continue
		}
		a.srcChunk = rs.Chunks[0]
		srcCol := findNodeIDVector(a.srcChunk)
		if srcCol == nil {
			continue
		}

		n := a.srcChunk.Cardinality()
		a.dstCol.Reserve(n)
		a.dstCol.State = a.srcChunk.State
		if err := a.Storage.AdjColumn(a.RelTable, a.Dir, srcCol, a.dstCol); err != nil {
			return false, err
		}

		keep := make([]bool, n)
		any := false
		a.srcChunk.State.ForEach(func(i, pos int) {
			if !a.dstCol.IsNull(pos) {
				keep[i] = true
				any = true
			}
		})
		if !any {
			continue
		}
		narrowed := a.srcChunk.State.Filter(keep)
		newChunk := &vector.DataChunk{Vectors: append(append([]*vector.Vector{}, a.srcChunk.Vectors...), a.dstCol), State: narrowed}
		for _, v := range newChunk.Vectors {
			v.State = narrowed
		}
		a.result = vector.NewResultSet(newChunk)
		a.result.Multiplicity = rs.Multiplicity
		return true, nil
	}
}

func (a *AdjColumnExtend) ResultSet() *vector.ResultSet { return a.result }

func (a *AdjColumnExtend) Clone() Operator {
	return &AdjColumnExtend{Child: a.Child.Clone(), Storage: a.Storage, RelTable: a.RelTable, Dir: a.Dir}
}

func findNodeIDVector(c *vector.DataChunk) *vector.Vector {
	for _, v := range c.Vectors {
		if v.Type == vector.NodeID {
			return v
		}
	}
	return nil
}

// boundRow is one probe-side row captured before its adjacency list is
// walked, so every neighbor batch AdjListExtend emits for it can carry the
// row's other columns forward the same way AdjColumnExtend does.
type boundRow struct {
	node         vector.NodeIDVal
	types        []vector.LogicalType
	vals         []vector.Scalar
	multiplicity uint64
}

// AdjListExtend produces a lazy neighbor stream per bound node: because
// list widths vary, it buffers partial progress between Next calls,
// exposing at most one bound node's neighbor batch per call, and fully
// iterates the current bound node's neighbors before advancing. Each
// emitted chunk carries the bound row's original columns broadcast across
// every neighbor, plus the new neighbor column, matching AdjColumnExtend
// and ScanProperty's column-preserving shape.
type AdjListExtend struct {
	Child    Operator
	Storage  catalog.Storage
	RelTable catalog.TableID
	Dir      catalog.Direction
	Capacity int

	result    *vector.ResultSet
	boundRows []boundRow
	boundIdx  int
	iter      catalog.AdjListIterator
}

func NewAdjListExtend(child Operator, storage catalog.Storage, relTable catalog.TableID, dir catalog.Direction, capacity int) *AdjListExtend {
	return &AdjListExtend{Child: child, Storage: storage, RelTable: relTable, Dir: dir, Capacity: capacity}
}

func (a *AdjListExtend) InitResultSet(mm *memmgr.MemoryManager) error {
	return a.Child.InitResultSet(mm)
}

func (a *AdjListExtend) ReInitToRerun() {
	a.Child.ReInitToRerun()
	a.boundRows = nil
	a.boundIdx = 0
	a.iter = nil
}

func (a *AdjListExtend) Next() (bool, error) {
	for {
		if a.iter == nil {
			if a.boundIdx >= len(a.boundRows) {
				ok, err := a.Child.Next()
				if err != nil || !ok {
					return ok, err
				}
				rs := a.Child.ResultSet()
				a.boundRows = a.boundRows[:0]
				for _, c := range rs.Chunks {
					col := findNodeIDVector(c)
					if col == nil {
						continue
					}
					types := make([]vector.LogicalType, len(c.Vectors))
					for i, v := range c.Vectors {
						types[i] = v.Type
					}
					c.State.ForEach(func(_, pos int) {
						vals := make([]vector.Scalar, len(c.Vectors))
						for i, v := range c.Vectors {
							vals[i] = v.GetScalar(pos)
						}
						a.boundRows = append(a.boundRows, boundRow{
							node:         col.GetNodeID(pos),
							types:        types,
							vals:         vals,
							multiplicity: rs.Multiplicity,
						})
					})
				}
				a.boundIdx = 0
				if len(a.boundRows) == 0 {
					continue
				}
			}
			bound := a.boundRows[a.boundIdx]
			it, err := a.Storage.AdjListIterator(a.RelTable, a.Dir, bound.node)
			if err != nil {
				return false, err
			}
			a.iter = it
		}

		bound := a.boundRows[a.boundIdx]
		dst := vector.NewVectorCapacity(vector.NodeID, a.Capacity)
		count := 0
		for count < a.Capacity {
			nb, ok := a.iter.Next()
			if !ok {
				break
			}
			dst.SetNodeID(count, nb)
			count++
		}
		if count == 0 {
			a.iter = nil
			a.boundIdx++
			continue
		}
		state := vector.NewUnflatState(count)
		dst.State = state

		vectors := make([]*vector.Vector, 0, len(bound.types)+1)
		for i, t := range bound.types {
			v := vector.NewVectorCapacity(t, count)
			v.State = state
			for pos := 0; pos < count; pos++ {
				v.SetScalar(pos, bound.vals[i])
			}
			vectors = append(vectors, v)
		}
		vectors = append(vectors, dst)

		chunk := &vector.DataChunk{Vectors: vectors, State: state}
		a.result = vector.NewResultSet(chunk)
		a.result.Multiplicity = bound.multiplicity
		if count < a.Capacity {
			// exhausted this bound node's list this call
			a.iter = nil
			a.boundIdx++
		}
		return true, nil
	}
}

func (a *AdjListExtend) ResultSet() *vector.ResultSet { return a.result }

func (a *AdjListExtend) Clone() Operator {
	return &AdjListExtend{Child: a.Child.Clone(), Storage: a.Storage, RelTable: a.RelTable, Dir: a.Dir, Capacity: a.Capacity}
}
