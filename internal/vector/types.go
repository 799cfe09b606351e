// Package vector implements the value and vector model: typed column
// batches, null masks, and the selection state shared across the vectors
// of one DataChunk.
package vector

import "fmt"

// LogicalType is the closed enumeration of primitive semantic types a
// Vector can carry.
type LogicalType uint8

const (
	Bool LogicalType = iota
	Int64
	Double
	String
	Date
	Timestamp
	Interval
	NodeID
	RelID
	Unstructured
)

func (t LogicalType) String() string {
	switch t {
	case Bool:
		return "BOOL"
	case Int64:
		return "INT64"
	case Double:
		return "DOUBLE"
	case String:
		return "STRING"
	case Date:
		return "DATE"
	case Timestamp:
		return "TIMESTAMP"
	case Interval:
		return "INTERVAL"
	case NodeID:
		return "NODE_ID"
	case RelID:
		return "REL_ID"
	case Unstructured:
		return "UNSTRUCTURED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// NodeIDVal identifies a node by the table it belongs to and its offset
// within that table's column store.
type NodeIDVal struct {
	TableID uint64
	Offset  uint64
}

// RelIDVal identifies a relationship the same way a NodeIDVal identifies a
// node: the pair is the logical record pointer used throughout the core.
type RelIDVal struct {
	TableID uint64
	Offset  uint64
}

// DateVal is a day count, matching how the storage layer persists dates.
type DateVal struct {
	Days int32
}

// TimestampVal is microseconds since the Unix epoch.
type TimestampVal struct {
	Micros int64
}

// IntervalVal is a calendar interval split into months/days/micros so that
// arithmetic on it (e.g. adding to a Date) doesn't need a fixed day length.
type IntervalVal struct {
	Months int32
	Days   int32
	Micros int64
}

// Scalar is a tagged value carrying any one primitive type. It backs both
// query literals and the Unstructured property payload described in the
// data model (a schema-less property is a Scalar whose Type varies row to
// row).
type Scalar struct {
	Type      LogicalType
	IsNull    bool
	BoolVal   bool
	Int64Val  int64
	DoubleVal float64
	StrVal    string
	DateVal   DateVal
	TsVal     TimestampVal
	IntervalVal IntervalVal
	NodeVal   NodeIDVal
	RelVal    RelIDVal
}

func NullScalar(t LogicalType) Scalar { return Scalar{Type: t, IsNull: true} }

func BoolScalar(v bool) Scalar   { return Scalar{Type: Bool, BoolVal: v} }
func Int64Scalar(v int64) Scalar { return Scalar{Type: Int64, Int64Val: v} }
func DoubleScalar(v float64) Scalar { return Scalar{Type: Double, DoubleVal: v} }
func StringScalar(v string) Scalar  { return Scalar{Type: String, StrVal: v} }
func NodeIDScalar(v NodeIDVal) Scalar { return Scalar{Type: NodeID, NodeVal: v} }
func RelIDScalar(v RelIDVal) Scalar   { return Scalar{Type: RelID, RelVal: v} }

// String renders the value the way a result printer would, never the type.
func (s Scalar) String() string {
	if s.IsNull {
		return "NULL"
	}
	switch s.Type {
	case Bool:
		if s.BoolVal {
			return "true"
		}
		return "false"
	case Int64:
		return fmt.Sprintf("%d", s.Int64Val)
	case Double:
		return fmt.Sprintf("%g", s.DoubleVal)
	case String:
		return s.StrVal
	case NodeID:
		return fmt.Sprintf("%d:%d", s.NodeVal.TableID, s.NodeVal.Offset)
	case RelID:
		return fmt.Sprintf("%d:%d", s.RelVal.TableID, s.RelVal.Offset)
	case Date:
		return fmt.Sprintf("date(%d)", s.DateVal.Days)
	case Timestamp:
		return fmt.Sprintf("ts(%d)", s.TsVal.Micros)
	default:
		return fmt.Sprintf("<%s>", s.Type)
	}
}

// ValueAndType renders like a debugger would: the type tag alongside the
// value, e.g. "Int64(3)".
func (s Scalar) ValueAndType() string {
	if s.IsNull {
		return fmt.Sprintf("%s(NULL)", s.Type)
	}
	return fmt.Sprintf("%s(%s)", s.Type, s.String())
}
