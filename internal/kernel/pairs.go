// Package kernel implements the scalar operation library: arithmetic,
// comparison, boolean three-valued logic, hashing, and casts, each
// dispatching over the vector flatness combinations described by the
// vector package's SelectionState.
package kernel

import "graphflow/internal/vector"

// forEachPair iterates the logical rows of a binary operation, yielding
// the underlying vector position for the left operand, the right operand,
// and the output slot, for one output row at a time.
//
// This collapses the four flatness combinations (both flat, left-flat,
// right-flat, both unflat) into a single generic walk: a flat selection
// contributes the same position on every iteration, an unflat one advances.
// The output count is always the larger of the two input counts (a flat
// input never shrinks the result — it broadcasts).
func forEachPair(left, right *vector.SelectionState, fn func(leftPos, rightPos, outPos int)) {
	n := left.SelectedSize
	if right.SelectedSize > n {
		n = right.SelectedSize
	}
	for i := 0; i < n; i++ {
		li := i
		if left.IsFlat {
			li = 0
		}
		ri := i
		if right.IsFlat {
			ri = 0
		}
		fn(left.PositionAt(li), right.PositionAt(ri), i)
	}
}

// forEach iterates a unary operation's logical rows, yielding the input
// vector position and the output slot.
func forEach(state *vector.SelectionState, fn func(pos, outPos int)) {
	state.ForEach(func(i, pos int) { fn(pos, i) })
}
