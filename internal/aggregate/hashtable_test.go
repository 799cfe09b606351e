package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/vector"
)

func groupVec(vals ...int64) *vector.Vector {
	v := vector.NewVectorCapacity(vector.Int64, len(vals))
	v.State = vector.NewUnflatState(len(vals))
	for i, x := range vals {
		v.SetInt64(i, x)
	}
	return v
}

func TestHashTableGroupsAndCounts(t *testing.T) {
	countStar, err := NewFunc(CountStar, vector.Int64)
	require.NoError(t, err)

	ht := NewHashTable([]vector.LogicalType{vector.Int64}, []*Func{countStar}, 8)

	groups := groupVec(1, 2, 1, 1, 2, 3)
	for i := 0; i < groups.Capacity(); i++ {
		require.NoError(t, ht.Append([]*vector.Vector{groups}, []int{i}, nil, nil, 1))
	}

	assert.Equal(t, 3, ht.NumGroups())

	counts := map[int64]int64{}
	ht.Finalize(func(keys []vector.Scalar, results []vector.Scalar) {
		counts[keys[0].Int64Val] = results[0].Int64Val
	})
	assert.Equal(t, int64(3), counts[1])
	assert.Equal(t, int64(2), counts[2])
	assert.Equal(t, int64(1), counts[3])
}

func TestHashTableResizeAtLoadFactor(t *testing.T) {
	countStar, err := NewFunc(CountStar, vector.Int64)
	require.NoError(t, err)
	ht := NewHashTable([]vector.LogicalType{vector.Int64}, []*Func{countStar}, 8)

	vals := make([]int64, 20)
	for i := range vals {
		vals[i] = int64(i) // all distinct groups
	}
	groups := groupVec(vals...)
	for i := range vals {
		require.NoError(t, ht.Append([]*vector.Vector{groups}, []int{i}, nil, nil, 1))
	}

	assert.Equal(t, 20, ht.NumGroups())
	assert.Greater(t, ht.Capacity(), 8)

	seen := map[int64]bool{}
	ht.Finalize(func(keys []vector.Scalar, _ []vector.Scalar) {
		assert.False(t, seen[keys[0].Int64Val], "duplicate entry for group after resize")
		seen[keys[0].Int64Val] = true
	})
	assert.Len(t, seen, 20)
}

func TestHashTableMergeCombinesGroups(t *testing.T) {
	sumF, err := NewFunc(Sum, vector.Int64)
	require.NoError(t, err)

	ht1 := NewHashTable([]vector.LogicalType{vector.Int64}, []*Func{sumF}, 8)
	g1 := groupVec(1, 1, 2)
	vals1 := groupVec(10, 20, 30)
	for i := 0; i < 3; i++ {
		require.NoError(t, ht1.Append([]*vector.Vector{g1}, []int{i}, []*vector.Vector{vals1}, []int{i}, 1))
	}

	ht2 := NewHashTable([]vector.LogicalType{vector.Int64}, []*Func{sumF}, 8)
	g2 := groupVec(1, 3)
	vals2 := groupVec(5, 100)
	for i := 0; i < 2; i++ {
		require.NoError(t, ht2.Append([]*vector.Vector{g2}, []int{i}, []*vector.Vector{vals2}, []int{i}, 1))
	}

	require.NoError(t, ht1.Merge(ht2))
	assert.Equal(t, 3, ht1.NumGroups())

	sums := map[int64]int64{}
	ht1.Finalize(func(keys []vector.Scalar, results []vector.Scalar) {
		sums[keys[0].Int64Val] = results[0].Int64Val
	})
	assert.Equal(t, int64(35), sums[1]) // 10+20+5
	assert.Equal(t, int64(30), sums[2])
	assert.Equal(t, int64(100), sums[3])
}
