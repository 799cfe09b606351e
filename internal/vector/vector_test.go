package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSetGetScalar(t *testing.T) {
	v := NewVectorCapacity(Int64, 8)
	v.SetScalar(0, Int64Scalar(42))
	v.SetScalar(1, NullScalar(Int64))

	got := v.GetScalar(0)
	require.False(t, got.IsNull)
	assert.Equal(t, int64(42), got.Int64Val)

	assert.True(t, v.IsNull(1))
	assert.True(t, v.GetScalar(1).IsNull)
}

func TestVectorNoNullsGuaranteeFastPath(t *testing.T) {
	v := NewVectorCapacity(Bool, 4)
	assert.True(t, v.HasNoNullsGuarantee())
	assert.False(t, v.IsNull(2))

	v.SetNull(2, true)
	assert.False(t, v.HasNoNullsGuarantee())
	assert.True(t, v.IsNull(2))
}

func TestSelectionStateFlat(t *testing.T) {
	s := NewFlatState(5)
	assert.True(t, s.IsFlat)
	assert.Equal(t, 5, s.PositionAt(0))
	assert.Equal(t, 5, s.PositionAt(99))

	visited := 0
	s.ForEach(func(i, pos int) {
		visited++
		assert.Equal(t, 5, pos)
	})
	assert.Equal(t, 1, visited)
}

func TestSelectionStateUnfilteredIdentity(t *testing.T) {
	s := NewUnflatState(3)
	assert.True(t, s.IsUnfiltered())
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, s.PositionAt(i))
	}
}

func TestSelectionStateFilterNarrows(t *testing.T) {
	s := NewUnflatState(5)
	keep := []bool{true, false, true, false, true}
	filtered := s.Filter(keep)
	assert.Equal(t, 3, filtered.SelectedSize)
	assert.Equal(t, []int{0, 2, 4}, filtered.SelectedPositions)
	assert.False(t, filtered.IsUnfiltered())
}

func TestSelectionStateFilterOnAlreadyFiltered(t *testing.T) {
	s := &SelectionState{SelectedSize: 3, SelectedPositions: []int{1, 3, 7}}
	keep := []bool{false, true, true}
	filtered := s.Filter(keep)
	assert.Equal(t, []int{3, 7}, filtered.SelectedPositions)
}

func TestDataChunkCardinality(t *testing.T) {
	chunk := NewDataChunk([]LogicalType{Int64, String})
	assert.Equal(t, DefaultCapacity, chunk.Cardinality())

	narrowed := NewUnflatState(10)
	chunk.SetState(narrowed)
	assert.Equal(t, 10, chunk.Cardinality())
	for _, v := range chunk.Vectors {
		assert.Same(t, narrowed, v.State)
	}
}

func TestResultSetCardinalityWithMultiplicity(t *testing.T) {
	chunk := NewDataChunk([]LogicalType{Int64})
	chunk.SetState(NewUnflatState(4))
	rs := NewResultSet(chunk)
	rs.Multiplicity = 3
	assert.Equal(t, uint64(12), rs.Cardinality())
}

func TestVectorReservePreservesContents(t *testing.T) {
	v := NewVectorCapacity(Int64, 2)
	v.SetInt64(0, 7)
	v.SetInt64(1, 8)
	v.Reserve(10)
	assert.Equal(t, 10, v.Capacity())
	assert.Equal(t, int64(7), v.GetInt64(0))
	assert.Equal(t, int64(8), v.GetInt64(1))
}

func TestLogicalTypeString(t *testing.T) {
	assert.Equal(t, "NODE_ID", NodeID.String())
	assert.Equal(t, "UNSTRUCTURED", Unstructured.String())
}
