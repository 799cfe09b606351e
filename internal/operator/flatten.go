package operator

import (
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// Flatten chooses the current chunk and advances a single logical cursor
// through its selected positions one at a time, refilling from its child
// once the chunk is exhausted. Downstream operators see a flat (one
// selected row) chunk on every Next.
type Flatten struct {
	Child Operator

	chunk      *vector.DataChunk
	positions  []int
	cursor     int
	result     *vector.ResultSet
	multiplier uint64
}

func NewFlatten(child Operator) *Flatten {
	return &Flatten{Child: child}
}

func (f *Flatten) InitResultSet(mm *memmgr.MemoryManager) error { return f.Child.InitResultSet(mm) }

func (f *Flatten) ReInitToRerun() {
	f.Child.ReInitToRerun()
	f.chunk = nil
	f.positions = nil
	f.cursor = 0
}

func (f *Flatten) Next() (bool, error) {
	for f.chunk == nil || f.cursor >= len(f.positions) {
		ok, err := f.Child.Next()
		if err != nil || !ok {
			return ok, err
		}
		rs := f.Child.ResultSet()
		if len(rs.Chunks) == 0 {
			continue
		}
		f.chunk = rs.Chunks[0]
		f.multiplier = rs.Multiplicity
		f.positions = nil
		f.chunk.State.ForEach(func(_, pos int) {
			f.positions = append(f.positions, pos)
		})
		f.cursor = 0
		if len(f.positions) == 0 {
			f.chunk = nil
		}
	}

	pos := f.positions[f.cursor]
	f.cursor++
	flatState := vector.NewFlatState(pos)

	// A fresh vector view per flattened row, so f.chunk.State (the unflat
	// cursor) survives untouched for the next flatten step.
	viewVectors := make([]*vector.Vector, len(f.chunk.Vectors))
	for i, v := range f.chunk.Vectors {
		cp := *v
		cp.State = flatState
		viewVectors[i] = &cp
	}
	flatChunk := &vector.DataChunk{Vectors: viewVectors, State: flatState}

	f.result = vector.NewResultSet(flatChunk)
	f.result.Multiplicity = f.multiplier
	return true, nil
}

func (f *Flatten) ResultSet() *vector.ResultSet { return f.result }

func (f *Flatten) Clone() Operator { return &Flatten{Child: f.Child.Clone()} }
