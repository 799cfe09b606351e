package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/vector"
)

func intVec(vals ...int64) *vector.Vector {
	v := vector.NewVectorCapacity(vector.Int64, len(vals))
	for i, x := range vals {
		v.SetInt64(i, x)
	}
	v.State = vector.NewUnflatState(len(vals))
	return v
}

func TestArithmeticIntPromotion(t *testing.T) {
	l := intVec(4, 10)
	r := intVec(2, 3)
	out := vector.NewVectorCapacity(vector.Int64, 2)
	out.State = vector.NewUnflatState(2)

	require.NoError(t, Arithmetic(OpAdd, l, r, out))
	assert.Equal(t, int64(6), out.GetInt64(0))
	assert.Equal(t, int64(13), out.GetInt64(1))
}

func TestArithmeticPowerAlwaysDouble(t *testing.T) {
	l := intVec(2)
	r := intVec(10)
	assert.Equal(t, vector.Double, PromoteType(OpPower, vector.Int64, vector.Int64))

	out := vector.NewVectorCapacity(vector.Double, 1)
	out.State = vector.NewUnflatState(1)
	require.NoError(t, Arithmetic(OpPower, l, r, out))
	assert.Equal(t, float64(1024), out.GetDouble(0))
}

func TestArithmeticDivisionByZeroIsError(t *testing.T) {
	l := intVec(5)
	r := intVec(0)
	out := vector.NewVectorCapacity(vector.Int64, 1)
	out.State = vector.NewUnflatState(1)
	err := Arithmetic(OpDivide, l, r, out)
	require.Error(t, err)
}

func TestCompareFlatBroadcast(t *testing.T) {
	l := intVec(5)
	l.State = vector.NewFlatState(0)
	r := intVec(1, 5, 9)
	out := vector.NewVectorCapacity(vector.Bool, 3)
	out.State = vector.NewUnflatState(3)

	require.NoError(t, Compare(OpEq, l, r, out))
	assert.False(t, out.GetBool(0))
	assert.True(t, out.GetBool(1))
	assert.False(t, out.GetBool(2))
}

func TestCompareTypeMismatchErrors(t *testing.T) {
	l := intVec(1)
	r := vector.NewVectorCapacity(vector.String, 1)
	r.SetString(0, "x")
	r.State = vector.NewUnflatState(1)
	out := vector.NewVectorCapacity(vector.Bool, 1)
	out.State = vector.NewUnflatState(1)
	err := Compare(OpEq, l, r, out)
	require.Error(t, err)
}

func TestSelectWritesPositions(t *testing.T) {
	l := intVec(1, 2, 3, 4, 5)
	r := intVec(3, 3, 3, 3, 3)
	positions := make([]int, 5)
	n, err := Select(OpLt, l, r, positions)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 1}, positions[:n])
}

func boolVecVals(vals []*bool) *vector.Vector {
	v := vector.NewVectorCapacity(vector.Bool, len(vals))
	v.State = vector.NewUnflatState(len(vals))
	for i, x := range vals {
		if x == nil {
			v.SetNull(i, true)
		} else {
			v.SetBool(i, *x)
		}
	}
	return v
}

func bp(b bool) *bool { return &b }

func TestThreeValuedAnd(t *testing.T) {
	l := boolVecVals([]*bool{nil, nil, bp(true)})
	r := boolVecVals([]*bool{bp(false), bp(true), nil})
	out := vector.NewVectorCapacity(vector.Bool, 3)
	out.State = vector.NewUnflatState(3)
	require.NoError(t, And(l, r, out))

	assert.False(t, out.IsNull(0))
	assert.False(t, out.GetBool(0)) // NULL AND FALSE = FALSE
	assert.True(t, out.IsNull(1))   // NULL AND TRUE = NULL
	assert.True(t, out.IsNull(2))   // TRUE AND NULL = NULL
}

func TestThreeValuedOr(t *testing.T) {
	l := boolVecVals([]*bool{nil, nil})
	r := boolVecVals([]*bool{bp(true), bp(false)})
	out := vector.NewVectorCapacity(vector.Bool, 2)
	out.State = vector.NewUnflatState(2)
	require.NoError(t, Or(l, r, out))

	assert.False(t, out.IsNull(0))
	assert.True(t, out.GetBool(0)) // NULL OR TRUE = TRUE
	assert.True(t, out.IsNull(1))  // NULL OR FALSE = NULL
}

func TestThreeValuedXorAndNot(t *testing.T) {
	l := boolVecVals([]*bool{bp(true), nil})
	r := boolVecVals([]*bool{bp(false), bp(true)})
	out := vector.NewVectorCapacity(vector.Bool, 2)
	out.State = vector.NewUnflatState(2)
	require.NoError(t, Xor(l, r, out))
	assert.True(t, out.GetBool(0))
	assert.True(t, out.IsNull(1))

	notOut := vector.NewVectorCapacity(vector.Bool, 2)
	notOut.State = vector.NewUnflatState(2)
	require.NoError(t, Not(l, notOut))
	assert.False(t, notOut.GetBool(0))
	assert.True(t, notOut.IsNull(1))
}

func TestHash64DeterministicAndNullDistinct(t *testing.T) {
	v := intVec(42, 42)
	h0 := Hash64(v, 0)
	h1 := Hash64(v, 1)
	assert.Equal(t, h0, h1)

	v.SetNull(0, true)
	assert.Equal(t, nullHash, Hash64(v, 0))
}

func TestCastIntToDoubleAndString(t *testing.T) {
	in := intVec(7)
	outD := vector.NewVectorCapacity(vector.Double, 1)
	outD.State = vector.NewUnflatState(1)
	require.NoError(t, Cast(in, outD))
	assert.Equal(t, float64(7), outD.GetDouble(0))

	outS := vector.NewVectorCapacity(vector.String, 1)
	outS.State = vector.NewUnflatState(1)
	require.NoError(t, Cast(in, outS))
	assert.Equal(t, "7", outS.GetString(0))
}

func TestCastUnsupportedIsError(t *testing.T) {
	in := vector.NewVectorCapacity(vector.Bool, 1)
	in.State = vector.NewUnflatState(1)
	in.SetBool(0, true)
	out := vector.NewVectorCapacity(vector.Int64, 1)
	out.State = vector.NewUnflatState(1)
	err := Cast(in, out)
	require.Error(t, err)
}
