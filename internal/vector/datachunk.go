package vector

// DataChunk is a horizontal slice of a pipeline: a fixed set of Vectors
// that all share one SelectionState. Operators read and write DataChunks
// as they flow through a pipeline built by the materializer.
type DataChunk struct {
	Vectors []*Vector
	State   *SelectionState
}

// NewDataChunk allocates one Vector per requested type, all sharing a
// fresh unflat state of DefaultCapacity.
func NewDataChunk(types []LogicalType) *DataChunk {
	state := NewUnflatState(DefaultCapacity)
	vectors := make([]*Vector, len(types))
	for i, t := range types {
		vectors[i] = NewVectorCapacity(t, DefaultCapacity)
		vectors[i].State = state
	}
	return &DataChunk{Vectors: vectors, State: state}
}

// NumValueVectors returns how many columns this chunk carries.
func (c *DataChunk) NumValueVectors() int { return len(c.Vectors) }

// Cardinality is the number of logical rows currently selected.
func (c *DataChunk) Cardinality() int {
	if c.State == nil {
		return 0
	}
	return c.State.SelectedSize
}

// SetState replaces the chunk's shared selection state and propagates it
// to every vector (the shape a Filter or Flatten operator produces).
func (c *DataChunk) SetState(s *SelectionState) {
	c.State = s
	for _, v := range c.Vectors {
		v.State = s
	}
}
