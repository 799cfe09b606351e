package kernel

import (
	"math"

	"graphflow/internal/vector"
	"graphflow/internal/xerrors"
)

// promote decides the output LogicalType for a binary arithmetic op given
// both operand types, per spec: Int op Int -> Int (except Power -> Double),
// any Double operand -> Double.
func promote(l, r vector.LogicalType, alwaysDouble bool) vector.LogicalType {
	if alwaysDouble || l == vector.Double || r == vector.Double {
		return vector.Double
	}
	return vector.Int64
}

type arithOp int

const (
	OpAdd arithOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpPower
)

// Arithmetic executes a binary arithmetic kernel, writing into out.
// out must already be typed per promote(left.Type, right.Type, op==OpPower).
func Arithmetic(op arithOp, left, right, out *vector.Vector) error {
	var kernelErr error
	forEachPair(left.State, right.State, func(lp, rp, op_ int) {
		if kernelErr != nil {
			return
		}
		if left.IsNull(lp) || right.IsNull(rp) {
			out.SetNull(op_, true)
			return
		}
		val, err := applyArith(op, left, lp, right, rp, out.Type)
		if err != nil {
			kernelErr = err
			return
		}
		out.SetScalar(op_, val)
	})
	return kernelErr
}

func applyArith(op arithOp, left *vector.Vector, lp int, right *vector.Vector, rp int, outType vector.LogicalType) (vector.Scalar, error) {
	if op == OpPower {
		lf := asFloat(left, lp)
		rf := asFloat(right, rp)
		return vector.DoubleScalar(math.Pow(lf, rf)), nil
	}

	if outType == vector.Int64 {
		li := left.GetInt64(lp)
		ri := right.GetInt64(rp)
		switch op {
		case OpAdd:
			return vector.Int64Scalar(li + ri), nil
		case OpSubtract:
			return vector.Int64Scalar(li - ri), nil
		case OpMultiply:
			return vector.Int64Scalar(li * ri), nil
		case OpDivide:
			if ri == 0 {
				return vector.Scalar{}, xerrors.ArithmeticErr("kernel.Divide", "division by zero")
			}
			return vector.Int64Scalar(li / ri), nil
		case OpModulo:
			if ri == 0 {
				return vector.Scalar{}, xerrors.ArithmeticErr("kernel.Modulo", "modulo by zero")
			}
			return vector.Int64Scalar(li % ri), nil
		}
	}

	lf := asFloat(left, lp)
	rf := asFloat(right, rp)
	switch op {
	case OpAdd:
		return vector.DoubleScalar(lf + rf), nil
	case OpSubtract:
		return vector.DoubleScalar(lf - rf), nil
	case OpMultiply:
		return vector.DoubleScalar(lf * rf), nil
	case OpDivide:
		if rf == 0 {
			return vector.Scalar{}, xerrors.ArithmeticErr("kernel.Divide", "division by zero")
		}
		return vector.DoubleScalar(lf / rf), nil
	case OpModulo:
		if rf == 0 {
			return vector.Scalar{}, xerrors.ArithmeticErr("kernel.Modulo", "modulo by zero")
		}
		return vector.DoubleScalar(math.Mod(lf, rf)), nil
	}
	return vector.Scalar{}, xerrors.ExecutionInvariantErr("kernel.Arithmetic", "unreachable op %d", op)
}

func asFloat(v *vector.Vector, pos int) float64 {
	if v.Type == vector.Int64 {
		return float64(v.GetInt64(pos))
	}
	return v.GetDouble(pos)
}

// PromoteType exposes the promotion rule for callers (operators, planner)
// building the output vector before calling Arithmetic.
func PromoteType(op arithOp, left, right vector.LogicalType) vector.LogicalType {
	return promote(left, right, op == OpPower)
}

// Negate preserves the input type.
func Negate(in, out *vector.Vector) error {
	var kernelErr error
	forEach(in.State, func(pos, outPos int) {
		if kernelErr != nil {
			return
		}
		if in.IsNull(pos) {
			out.SetNull(outPos, true)
			return
		}
		switch in.Type {
		case vector.Int64:
			out.SetInt64(outPos, -in.GetInt64(pos))
		case vector.Double:
			out.SetDouble(outPos, -in.GetDouble(pos))
		default:
			kernelErr = xerrors.TypeMismatchErr("kernel.Negate", "cannot negate %s", in.Type)
		}
	})
	return kernelErr
}
