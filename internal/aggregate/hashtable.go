package aggregate

import (
	"graphflow/internal/kernel"
	"graphflow/internal/vector"
	"graphflow/internal/xerrors"
)

// LoadFactor is the occupancy ratio at which append triggers a resize,
// per EngineConfig.LoadFactor (default 0.75).
const LoadFactor = 0.75

// entry is one group's storage: its 64-bit key hash (so resize can
// re-probe without recomputing), the group-key scalars, and one
// aggregate State per requested Func.
type entry struct {
	hash    uint64
	keys    []vector.Scalar
	states  []*State
	blockID uint64 // >=1 iff occupied; mirrors the §4.D slot invariant
}

// HashTable is the open-addressing, linear-probing aggregate hash table.
// Entries live in a flat slice addressed by blockID-1 (the "entry
// storage, never resized" described in §4.D — only the slot array moves);
// slots hold an index into entries, or 0 meaning empty.
type HashTable struct {
	funcs    []*Func
	keyTypes []vector.LogicalType

	slots      []uint64 // 0 = empty, else blockID
	entries    []*entry
	numGroups  int
	nextBlockID uint64
}

// NewHashTable creates a table sized for capacity initial slots (rounded
// up internally) aggregating with funcs over group keys typed keyTypes.
func NewHashTable(keyTypes []vector.LogicalType, funcs []*Func, capacity int) *HashTable {
	size := 8
	for size < capacity {
		size <<= 1
	}
	capacity = size
	return &HashTable{
		funcs:    funcs,
		keyTypes: keyTypes,
		slots:    make([]uint64, capacity),
	}
}

// Append folds one row (identified by its position across the group-key
// vectors and the per-func input vectors) into the table: computes the
// key hash, probes for the matching or first-empty slot, then either
// seeds a new entry or calls each func's Update against the existing one.
//
// groupVectors and aggInputs must all share the selection state that
// selects this single row (the caller flattens/iterates one row at a
// time, as the operator driving the hash table does per §4.C).
func (h *HashTable) Append(groupVectors []*vector.Vector, groupPos []int, aggInputs []*vector.Vector, aggPos []int, multiplicity uint64) error {
	keys := make([]vector.Scalar, len(groupVectors))
	var hash uint64
	for i, gv := range groupVectors {
		keys[i] = gv.GetScalar(groupPos[i])
		hash = kernel.CombineHash(hash, kernel.Hash64(gv, groupPos[i]))
	}

	slotIdx, found := h.probe(hash, keys)
	if found {
		e := h.entries[h.slots[slotIdx]-1]
		return h.updateEntry(e, aggInputs, aggPos, multiplicity)
	}

	e := &entry{hash: hash, keys: keys, states: make([]*State, len(h.funcs))}
	for i, f := range h.funcs {
		e.states[i] = f.Init()
	}
	if err := h.updateEntry(e, aggInputs, aggPos, multiplicity); err != nil {
		return err
	}

	h.nextBlockID++
	e.blockID = h.nextBlockID
	h.entries = append(h.entries, e)
	h.slots[slotIdx] = e.blockID
	h.numGroups++

	if float64(h.numGroups)/float64(len(h.slots)) >= LoadFactor {
		h.resize()
	}
	return nil
}

func (h *HashTable) updateEntry(e *entry, aggInputs []*vector.Vector, aggPos []int, multiplicity uint64) error {
	for i, f := range h.funcs {
		var in *vector.Vector
		if i < len(aggInputs) {
			in = aggInputs[i]
		}
		if in == nil {
			if err := f.Update(e.states[i], nullRowVector(f.Type), multiplicity); err != nil {
				return err
			}
			continue
		}
		row := singleRowView(in, aggPos[i])
		if err := f.Update(e.states[i], row, multiplicity); err != nil {
			return err
		}
	}
	return nil
}

// singleRowView returns a Vector sharing the same backing slices as in,
// but with a flat selection state pinned to pos, so a Func.Update written
// against "a vector" can be reused to fold a single row.
func singleRowView(in *vector.Vector, pos int) *vector.Vector {
	view := *in
	view.State = vector.NewFlatState(pos)
	return &view
}

// nullRowVector supplies COUNT_STAR's ignored input: a one-row vector
// that is always null, so Update's "skip if null" branch for Count-like
// funcs behaves, while CountStar's Update ignores the vector entirely.
func nullRowVector(t vector.LogicalType) *vector.Vector {
	v := vector.NewVectorCapacity(t, 1)
	v.State = vector.NewFlatState(0)
	v.SetNull(0, true)
	return v
}

// probe walks slots starting at hash%len(slots), returning either the
// index of the matching occupied slot (found=true) or the first empty
// slot to claim (found=false).
func (h *HashTable) probe(hash uint64, keys []vector.Scalar) (int, bool) {
	n := len(h.slots)
	start := int(hash % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if h.slots[idx] == 0 {
			return idx, false
		}
		e := h.entries[h.slots[idx]-1]
		if e.hash == hash && scalarsEqual(e.keys, keys) {
			return idx, true
		}
	}
	// Table full without an empty slot reachable; caller must resize
	// before this happens (resize triggers at LoadFactor well before 1.0).
	return -1, false
}

func scalarsEqual(a, b []vector.Scalar) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].IsNull != b[i].IsNull {
			return false
		}
		if a[i].IsNull {
			continue
		}
		if compareScalars(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

// resize doubles capacity and rebuilds the slot array by iterating
// entries in order and re-probing, per §4.D. Entry storage itself is
// untouched; only slot assignments move, preserving the "exactly one slot
// points to each entry" invariant.
func (h *HashTable) resize() {
	newSize := len(h.slots) * 2
	h.slots = make([]uint64, newSize)
	for _, e := range h.entries {
		idx := int(e.hash % uint64(newSize))
		for h.slots[idx] != 0 {
			idx = (idx + 1) % newSize
		}
		h.slots[idx] = e.blockID
	}
}

// NumGroups returns the number of distinct group keys seen so far.
func (h *HashTable) NumGroups() int { return h.numGroups }

// Capacity returns the current slot array size.
func (h *HashTable) Capacity() int { return len(h.slots) }

// Finalize iterates every group, in entry-insertion order, invoking fn
// with the group keys and the finalized aggregate scalars.
func (h *HashTable) Finalize(fn func(keys []vector.Scalar, results []vector.Scalar)) {
	for _, e := range h.entries {
		results := make([]vector.Scalar, len(h.funcs))
		for i, f := range h.funcs {
			results[i] = f.Finalize(e.states[i])
		}
		fn(e.keys, results)
	}
}

// Merge combines another table's groups into this one (the combine half
// of the §4.C idempotence property: finalize(update(B1⧺B2)) ==
// finalize(combine(update(B1), update(B2)))), used when per-worker tables
// are reduced into a single result.
func (h *HashTable) Merge(other *HashTable) error {
	if len(other.funcs) != len(h.funcs) {
		return xerrors.ExecutionInvariantErr("aggregate.Merge", "mismatched aggregate function count")
	}
	for _, oe := range other.entries {
		idx, found := h.probe(oe.hash, oe.keys)
		if found {
			e := h.entries[h.slots[idx]-1]
			for i, f := range h.funcs {
				f.Combine(e.states[i], oe.states[i])
			}
			continue
		}
		h.nextBlockID++
		ne := &entry{hash: oe.hash, keys: oe.keys, states: oe.states, blockID: h.nextBlockID}
		h.entries = append(h.entries, ne)
		h.slots[idx] = ne.blockID
		h.numGroups++
		if float64(h.numGroups)/float64(len(h.slots)) >= LoadFactor {
			h.resize()
		}
	}
	return nil
}
