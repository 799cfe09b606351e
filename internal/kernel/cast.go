package kernel

import (
	"strconv"

	"graphflow/internal/vector"
	"graphflow/internal/xerrors"
)

// Cast converts every selected row of in into out, which must already be
// allocated with the target LogicalType. Only the widening conversions the
// arithmetic/comparison promotion rules rely on are supported; anything
// else is a TypeMismatch.
func Cast(in, out *vector.Vector) error {
	var kernelErr error
	forEach(in.State, func(pos, outPos int) {
		if kernelErr != nil {
			return
		}
		if in.IsNull(pos) {
			out.SetNull(outPos, true)
			return
		}
		if err := castOne(in, pos, out, outPos); err != nil {
			kernelErr = err
		}
	})
	return kernelErr
}

func castOne(in *vector.Vector, pos int, out *vector.Vector, outPos int) error {
	switch {
	case in.Type == out.Type:
		out.SetScalar(outPos, in.GetScalar(pos))
		return nil
	case in.Type == vector.Int64 && out.Type == vector.Double:
		out.SetDouble(outPos, float64(in.GetInt64(pos)))
		return nil
	case in.Type == vector.Int64 && out.Type == vector.String:
		out.SetString(outPos, strconv.FormatInt(in.GetInt64(pos), 10))
		return nil
	case in.Type == vector.Double && out.Type == vector.String:
		out.SetString(outPos, strconv.FormatFloat(in.GetDouble(pos), 'g', -1, 64))
		return nil
	case in.Type == vector.Bool && out.Type == vector.String:
		if in.GetBool(pos) {
			out.SetString(outPos, "true")
		} else {
			out.SetString(outPos, "false")
		}
		return nil
	case in.Type == vector.String && out.Type == vector.Int64:
		n, err := strconv.ParseInt(in.GetString(pos), 10, 64)
		if err != nil {
			return xerrors.TypeMismatchErr("kernel.Cast", "cannot cast %q to INT64", in.GetString(pos))
		}
		out.SetInt64(outPos, n)
		return nil
	case in.Type == vector.String && out.Type == vector.Double:
		f, err := strconv.ParseFloat(in.GetString(pos), 64)
		if err != nil {
			return xerrors.TypeMismatchErr("kernel.Cast", "cannot cast %q to DOUBLE", in.GetString(pos))
		}
		out.SetDouble(outPos, f)
		return nil
	default:
		return xerrors.TypeMismatchErr("kernel.Cast", "no implicit cast from %s to %s", in.Type, out.Type)
	}
}
