package kernel

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"graphflow/internal/vector"
	"graphflow/internal/xerrors"
)

// stringCollator backs locale-aware string ordering for Compare/Select,
// instead of raw Go byte ordering, so e.g. accented characters sort the
// way users expect. internal/aggregate builds an identical collator of its
// own for the MIN/MAX<string> aggregate functions.
var stringCollator = collate.New(language.Und)

type cmpOp int

const (
	OpEq cmpOp = iota
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
)

// Compare executes a binary comparison kernel, writing a Bool result.
// Operands must already match type after implicit widening by the caller;
// a type mismatch not coverable by int/double widening is an error.
func Compare(op cmpOp, left, right, out *vector.Vector) error {
	var kernelErr error
	forEachPair(left.State, right.State, func(lp, rp, outp int) {
		if kernelErr != nil {
			return
		}
		if left.IsNull(lp) || right.IsNull(rp) {
			out.SetNull(outp, true)
			return
		}
		c, err := compareAt(left, lp, right, rp)
		if err != nil {
			kernelErr = err
			return
		}
		out.SetBool(outp, applyCmp(op, c))
	})
	return kernelErr
}

// compareAt returns -1/0/1 the way three-way comparators do, widening
// Int64/Double pairs and treating booleans as 0 < 1.
func compareAt(left *vector.Vector, lp int, right *vector.Vector, rp int) (int, error) {
	if left.Type == vector.Bool && right.Type == vector.Bool {
		return cmpBool(left.GetBool(lp), right.GetBool(rp)), nil
	}
	if isNumeric(left.Type) && isNumeric(right.Type) {
		lf := asFloat(left, lp)
		rf := asFloat(right, rp)
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if left.Type == vector.String && right.Type == vector.String {
		return stringCollator.CompareString(left.GetString(lp), right.GetString(rp)), nil
	}
	if left.Type == right.Type {
		switch left.Type {
		case vector.NodeID:
			return cmpNodeID(left.GetNodeID(lp), right.GetNodeID(rp)), nil
		case vector.RelID:
			return cmpNodeID(vector.NodeIDVal(left.GetRelID(lp)), vector.NodeIDVal(right.GetRelID(rp))), nil
		case vector.Date:
			return cmpInt64(int64(left.GetDate(lp).Days), int64(right.GetDate(rp).Days)), nil
		case vector.Timestamp:
			return cmpInt64(left.GetTimestamp(lp).Micros, right.GetTimestamp(rp).Micros), nil
		}
	}
	return 0, xerrors.TypeMismatchErr("kernel.Compare", "cannot compare %s and %s", left.Type, right.Type)
}

func isNumeric(t vector.LogicalType) bool { return t == vector.Int64 || t == vector.Double }

func cmpBool(a, b bool) int {
	ai, bi := 0, 0
	if a {
		ai = 1
	}
	if b {
		bi = 1
	}
	return cmpInt64(int64(ai), int64(bi))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpNodeID(a, b vector.NodeIDVal) int {
	if a.TableID != b.TableID {
		return cmpInt64(int64(a.TableID), int64(b.TableID))
	}
	return cmpInt64(int64(a.Offset), int64(b.Offset))
}

func applyCmp(op cmpOp, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNeq:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

// Select runs a comparison as a filter: it writes the selected positions
// (rows where the comparison is true and neither operand is null) into
// positions, a pre-sized buffer, and returns how many were written.
func Select(op cmpOp, left, right *vector.Vector, positions []int) (int, error) {
	count := 0
	var kernelErr error
	forEachPair(left.State, right.State, func(lp, rp, outp int) {
		if kernelErr != nil {
			return
		}
		if left.IsNull(lp) || right.IsNull(rp) {
			return
		}
		c, err := compareAt(left, lp, right, rp)
		if err != nil {
			kernelErr = err
			return
		}
		if applyCmp(op, c) {
			positions[count] = outp
			count++
		}
	})
	if kernelErr != nil {
		return 0, kernelErr
	}
	return count, nil
}
