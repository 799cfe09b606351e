package httpapi

import (
	"strconv"

	"graphflow/internal/vector"
)

// rowToMap converts one collected result row into a JSON-friendly map
// keyed by column position, unwrapping each Scalar's tagged union into
// a single native value (or nil when null).
func rowToMap(row []vector.Scalar) map[string]any {
	out := make(map[string]any, len(row))
	for i, s := range row {
		out[columnKey(i)] = scalarValue(s)
	}
	return out
}

func columnKey(i int) string {
	return "c" + strconv.Itoa(i)
}

func scalarValue(s vector.Scalar) any {
	if s.IsNull {
		return nil
	}
	switch s.Type {
	case vector.Bool:
		return s.BoolVal
	case vector.Int64:
		return s.Int64Val
	case vector.Double:
		return s.DoubleVal
	case vector.String:
		return s.StrVal
	case vector.NodeID:
		return map[string]uint64{"table": s.NodeVal.TableID, "offset": s.NodeVal.Offset}
	case vector.RelID:
		return map[string]any{"src": s.RelVal}
	default:
		return nil
	}
}
