package operator

import (
	"graphflow/internal/aggregate"
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// Distinct deduplicates its child's output rows by every column, reusing
// the §4.D aggregate hash table as a group-by with zero aggregate funcs:
// one entry per distinct key tuple is exactly one emitted row. Like
// ResultCollector it drains its child to exhaustion on the first Next,
// then re-emits one flat chunk per distinct group.
type Distinct struct {
	Child    Operator
	Types    []vector.LogicalType
	Capacity int

	table   *aggregate.HashTable
	groups  [][]vector.Scalar
	idx     int
	drained bool
	result  *vector.ResultSet
}

func NewDistinct(child Operator, types []vector.LogicalType, capacity int) *Distinct {
	return &Distinct{Child: child, Types: types, Capacity: capacity}
}

func (d *Distinct) InitResultSet(mm *memmgr.MemoryManager) error {
	return d.Child.InitResultSet(mm)
}

func (d *Distinct) ReInitToRerun() {
	d.Child.ReInitToRerun()
	d.table = nil
	d.groups = nil
	d.idx = 0
	d.drained = false
}

func (d *Distinct) Next() (bool, error) {
	if !d.drained {
		if err := d.drain(); err != nil {
			return false, err
		}
		d.drained = true
	}
	if d.idx >= len(d.groups) {
		return false, nil
	}
	keys := d.groups[d.idx]
	d.idx++

	vecs := make([]*vector.Vector, len(keys))
	for i, k := range keys {
		v := vector.NewVectorCapacity(d.Types[i], 1)
		v.State = vector.NewFlatState(0)
		v.SetScalar(0, k)
		vecs[i] = v
	}
	chunk := &vector.DataChunk{Vectors: vecs, State: vector.NewFlatState(0)}
	d.result = vector.NewResultSet(chunk)
	return true, nil
}

func (d *Distinct) drain() error {
	d.table = aggregate.NewHashTable(d.Types, nil, d.Capacity)
	for {
		ok, err := d.Child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rs := d.Child.ResultSet()
		for _, chunk := range rs.Chunks {
			var appendErr error
			chunk.State.ForEach(func(_, pos int) {
				if appendErr != nil {
					return
				}
				groupPos := make([]int, len(chunk.Vectors))
				for i := range chunk.Vectors {
					groupPos[i] = pos
				}
				appendErr = d.table.Append(chunk.Vectors, groupPos, nil, nil, 1)
			})
			if appendErr != nil {
				return appendErr
			}
		}
	}
	d.table.Finalize(func(keys []vector.Scalar, _ []vector.Scalar) {
		d.groups = append(d.groups, keys)
	})
	return nil
}

func (d *Distinct) ResultSet() *vector.ResultSet { return d.result }

func (d *Distinct) Clone() Operator {
	return &Distinct{Child: d.Child.Clone(), Types: d.Types, Capacity: d.Capacity}
}
