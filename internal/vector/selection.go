package vector

// SelectionState describes which logical positions of a Vector participate
// in the current operation. A flat vector has exactly one selected position
// (CurrentIdx); an unflat vector has SelectedSize positions, either the
// identity 0..SelectedSize-1 run (when SelectedPositions is nil, i.e.
// "unfiltered") or the explicit SelectedPositions slice left behind by a
// Filter operator.
type SelectionState struct {
	SelectedSize      int
	SelectedPositions []int
	IsFlat            bool
	CurrentIdx        int
}

// NewUnflatState returns a selection over the identity run 0..size-1.
func NewUnflatState(size int) *SelectionState {
	return &SelectionState{SelectedSize: size}
}

// NewFlatState returns a selection pinned to a single position, the shape
// an Extend/Flatten operator produces for the vector it duplicated.
func NewFlatState(idx int) *SelectionState {
	return &SelectionState{IsFlat: true, CurrentIdx: idx, SelectedSize: 1}
}

// IsUnfiltered reports whether this is the identity 0..size-1 run, i.e. no
// Filter has narrowed it yet.
func (s *SelectionState) IsUnfiltered() bool {
	return !s.IsFlat && s.SelectedPositions == nil
}

// PositionAt maps a logical index i (0..SelectedSize-1) to the underlying
// vector slot it refers to.
func (s *SelectionState) PositionAt(i int) int {
	if s.IsFlat {
		return s.CurrentIdx
	}
	if s.SelectedPositions != nil {
		return s.SelectedPositions[i]
	}
	return i
}

// ForEach visits every selected (logical index, vector position) pair in
// order.
func (s *SelectionState) ForEach(fn func(i, pos int)) {
	if s.IsFlat {
		fn(0, s.CurrentIdx)
		return
	}
	if s.SelectedPositions != nil {
		for i, pos := range s.SelectedPositions {
			fn(i, pos)
		}
		return
	}
	for i := 0; i < s.SelectedSize; i++ {
		fn(i, i)
	}
}

// SetFlat collapses the state to a single pinned position.
func (s *SelectionState) SetFlat(idx int) {
	s.IsFlat = true
	s.CurrentIdx = idx
	s.SelectedSize = 1
	s.SelectedPositions = nil
}

// SetUnflat resets the state to the identity run over size positions.
func (s *SelectionState) SetUnflat(size int) {
	s.IsFlat = false
	s.SelectedSize = size
	s.SelectedPositions = nil
}

// Filter narrows the state to the positions for which keep[i] is true,
// where i indexes the current selection (not the underlying vector).
func (s *SelectionState) Filter(keep []bool) *SelectionState {
	out := &SelectionState{}
	positions := make([]int, 0, len(keep))
	s.ForEach(func(i, pos int) {
		if i < len(keep) && keep[i] {
			positions = append(positions, pos)
		}
	})
	out.SelectedPositions = positions
	out.SelectedSize = len(positions)
	return out
}
