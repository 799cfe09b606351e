package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/vector"
)

// batch100EvenNull builds [0..100) with even-indexed positions null, per
// §8's literal aggregate kernel test inputs.
func batch100EvenNull() *vector.Vector {
	v := vector.NewVectorCapacity(vector.Int64, 100)
	v.State = vector.NewUnflatState(100)
	for i := 0; i < 100; i++ {
		v.SetInt64(i, int64(i))
		if i%2 == 0 {
			v.SetNull(i, true)
		}
	}
	return v
}

func TestCountStarCombine(t *testing.T) {
	f, err := NewFunc(CountStar, vector.Int64)
	require.NoError(t, err)

	s := f.Init()
	require.NoError(t, f.Update(s, batch100EvenNull(), 100))

	other := f.Init()
	other.CountVal = 10
	f.Combine(s, other)

	got := f.Finalize(s)
	assert.Equal(t, int64(110), got.Int64Val)
}

func TestCountNonNullThenCombine(t *testing.T) {
	f, err := NewFunc(Count, vector.Int64)
	require.NoError(t, err)

	s := f.Init()
	require.NoError(t, f.Update(s, batch100EvenNull(), 1))

	other := f.Init()
	other.CountVal = 10
	f.Combine(s, other)

	assert.Equal(t, int64(60), f.Finalize(s).Int64Val)
}

func TestSumOddValuesCombine(t *testing.T) {
	f, err := NewFunc(Sum, vector.Int64)
	require.NoError(t, err)

	s := f.Init()
	require.NoError(t, f.Update(s, batch100EvenNull(), 1))

	var wantSum int64
	for i := 1; i < 100; i += 2 {
		wantSum += int64(i)
	}

	other := f.Init()
	other.IsNull = false
	other.SumInt = 10
	f.Combine(s, other)

	assert.Equal(t, wantSum+10, f.Finalize(s).Int64Val)
}

func TestAvgCombine(t *testing.T) {
	f, err := NewFunc(Avg, vector.Int64)
	require.NoError(t, err)

	s := f.Init()
	require.NoError(t, f.Update(s, batch100EvenNull(), 1))

	var wantSum float64
	for i := 1; i < 100; i += 2 {
		wantSum += float64(i)
	}

	other := f.Init()
	other.IsNull = false
	other.SumFloat = 10
	other.AvgCount = 1
	f.Combine(s, other)

	assert.InDelta(t, (wantSum+10)/51, f.Finalize(s).DoubleVal, 1e-9)
}

func TestMinMaxAgainstSeeds(t *testing.T) {
	minF, err := NewFunc(Min, vector.Int64)
	require.NoError(t, err)
	maxF, err := NewFunc(Max, vector.Int64)
	require.NoError(t, err)

	minS := minF.Init()
	require.NoError(t, minF.Update(minS, batch100EvenNull(), 1))
	seedMin := minF.Init()
	seedMin.IsNull = false
	seedMin.MinMaxVal = vector.Int64Scalar(-10)
	minF.Combine(minS, seedMin)
	assert.Equal(t, int64(-10), minF.Finalize(minS).Int64Val)

	maxS := maxF.Init()
	require.NoError(t, maxF.Update(maxS, batch100EvenNull(), 1))
	seedMax := maxF.Init()
	seedMax.IsNull = false
	seedMax.MinMaxVal = vector.Int64Scalar(101)
	maxF.Combine(maxS, seedMax)
	assert.Equal(t, int64(101), maxF.Finalize(maxS).Int64Val)
}

func TestSumUnsupportedTypeIsUnsupportedFunction(t *testing.T) {
	_, err := NewFunc(Sum, vector.String)
	require.Error(t, err)
}

func TestAggregateIdempotentUnderSplitBatches(t *testing.T) {
	full := batch100EvenNull()

	f, err := NewFunc(Sum, vector.Int64)
	require.NoError(t, err)

	whole := f.Init()
	require.NoError(t, f.Update(whole, full, 1))

	b1 := sliceVector(full, 0, 50)
	b2 := sliceVector(full, 50, 100)
	s1 := f.Init()
	require.NoError(t, f.Update(s1, b1, 1))
	s2 := f.Init()
	require.NoError(t, f.Update(s2, b2, 1))
	f.Combine(s1, s2)

	assert.Equal(t, f.Finalize(whole).Int64Val, f.Finalize(s1).Int64Val)
}

func sliceVector(v *vector.Vector, lo, hi int) *vector.Vector {
	positions := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		positions = append(positions, i)
	}
	view := *v
	view.State = &vector.SelectionState{SelectedSize: len(positions), SelectedPositions: positions}
	return &view
}
