// Package aggregate implements the aggregate hash table (§4.D) and the
// aggregate function library (§4.E): COUNT_STAR, COUNT, SUM, AVG, MIN, MAX,
// each expressed as the same four-operation shape — initialize, update,
// combine, finalize — as a tagged enum of kinds rather than a class
// hierarchy, per the design notes' guidance on closed sums over virtual
// dispatch.
package aggregate

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"graphflow/internal/vector"
	"graphflow/internal/xerrors"
)

// stringCollator backs MIN/MAX<string>'s ordering, matching the
// locale-aware comparison internal/kernel uses for string Lt/Le/Gt/Ge.
var stringCollator = collate.New(language.Und)

// Kind is the closed set of aggregate functions.
type Kind int

const (
	CountStar Kind = iota
	Count
	Sum
	Avg
	Min
	Max
)

// State is the per-group accumulator for one aggregate. Only the typed
// fields the owning Kind/LogicalType uses are meaningful: usually one,
// while AVG uses SumFloat together with AvgCount.
type State struct {
	IsNull     bool
	CountVal   uint64
	SumInt     int64
	SumFloat   float64
	MinMaxVal  vector.Scalar
	AvgCount   uint64
}

// Func bundles the four operations for one (Kind, LogicalType) pair. Init
// returns a fresh zero state; Update folds one input vector (respecting
// its selection state and an optional multiplicity) into the state;
// Combine merges another state produced by a disjoint partition of the
// same input; Finalize converts the accumulated state to the output
// Scalar.
type Func struct {
	Kind Kind
	Type vector.LogicalType

	Init     func() *State
	Update   func(s *State, in *vector.Vector, multiplicity uint64) error
	Combine  func(s, other *State)
	Finalize func(s *State) vector.Scalar
}

// NewFunc builds the Func for a (kind, type) pair, or an
// UnsupportedFunction error if that combination has no overload (the
// planner consults this before materializing a plan).
func NewFunc(kind Kind, t vector.LogicalType) (*Func, error) {
	switch kind {
	case CountStar:
		return countStarFunc(), nil
	case Count:
		return countFunc(), nil
	case Sum:
		if t != vector.Int64 && t != vector.Double {
			return nil, xerrors.UnsupportedFunctionErr("aggregate.SUM", "SUM not defined for %s", t)
		}
		return sumFunc(t), nil
	case Avg:
		if t != vector.Int64 && t != vector.Double {
			return nil, xerrors.UnsupportedFunctionErr("aggregate.AVG", "AVG not defined for %s", t)
		}
		return avgFunc(t), nil
	case Min:
		return minMaxFunc(t, true)
	case Max:
		return minMaxFunc(t, false)
	default:
		return nil, xerrors.UnsupportedFunctionErr("aggregate.NewFunc", "unknown aggregate kind %d", kind)
	}
}

func countStarFunc() *Func {
	return &Func{
		Kind: CountStar,
		Init: func() *State { return &State{} },
		Update: func(s *State, in *vector.Vector, multiplicity uint64) error {
			if multiplicity == 0 {
				multiplicity = 1
			}
			s.CountVal += multiplicity
			return nil
		},
		Combine:  func(s, other *State) { s.CountVal += other.CountVal },
		Finalize: func(s *State) vector.Scalar { return vector.Int64Scalar(int64(s.CountVal)) },
	}
}

func countFunc() *Func {
	return &Func{
		Kind: Count,
		Init: func() *State { return &State{} },
		Update: func(s *State, in *vector.Vector, multiplicity uint64) error {
			if multiplicity == 0 {
				multiplicity = 1
			}
			in.State.ForEach(func(_, pos int) {
				if !in.IsNull(pos) {
					s.CountVal += multiplicity
				}
			})
			return nil
		},
		Combine:  func(s, other *State) { s.CountVal += other.CountVal },
		Finalize: func(s *State) vector.Scalar { return vector.Int64Scalar(int64(s.CountVal)) },
	}
}

func sumFunc(t vector.LogicalType) *Func {
	return &Func{
		Kind: Sum, Type: t,
		Init: func() *State { return &State{IsNull: true} },
		Update: func(s *State, in *vector.Vector, multiplicity uint64) error {
			if multiplicity == 0 {
				multiplicity = 1
			}
			in.State.ForEach(func(_, pos int) {
				if in.IsNull(pos) {
					return
				}
				s.IsNull = false
				if t == vector.Int64 {
					s.SumInt += in.GetInt64(pos) * int64(multiplicity)
				} else {
					s.SumFloat += in.GetDouble(pos) * float64(multiplicity)
				}
			})
			return nil
		},
		Combine: func(s, other *State) {
			if other.IsNull {
				return
			}
			s.IsNull = false
			s.SumInt += other.SumInt
			s.SumFloat += other.SumFloat
		},
		Finalize: func(s *State) vector.Scalar {
			if s.IsNull {
				return vector.NullScalar(t)
			}
			if t == vector.Int64 {
				return vector.Int64Scalar(s.SumInt)
			}
			return vector.DoubleScalar(s.SumFloat)
		},
	}
}

func avgFunc(t vector.LogicalType) *Func {
	return &Func{
		Kind: Avg, Type: t,
		Init: func() *State { return &State{IsNull: true} },
		Update: func(s *State, in *vector.Vector, multiplicity uint64) error {
			if multiplicity == 0 {
				multiplicity = 1
			}
			in.State.ForEach(func(_, pos int) {
				if in.IsNull(pos) {
					return
				}
				s.IsNull = false
				var f float64
				if t == vector.Int64 {
					f = float64(in.GetInt64(pos))
				} else {
					f = in.GetDouble(pos)
				}
				s.SumFloat += f * float64(multiplicity)
				s.AvgCount += multiplicity
			})
			return nil
		},
		Combine: func(s, other *State) {
			if other.IsNull {
				return
			}
			s.IsNull = false
			s.SumFloat += other.SumFloat
			s.AvgCount += other.AvgCount
		},
		Finalize: func(s *State) vector.Scalar {
			if s.IsNull || s.AvgCount == 0 {
				return vector.NullScalar(vector.Double)
			}
			return vector.DoubleScalar(s.SumFloat / float64(s.AvgCount))
		},
	}
}

func minMaxFunc(t vector.LogicalType, isMin bool) (*Func, error) {
	kind := Max
	if isMin {
		kind = Min
	}
	wins := func(candidate, current vector.Scalar) bool {
		c := compareScalars(candidate, current)
		if isMin {
			return c < 0
		}
		return c > 0
	}
	return &Func{
		Kind: kind, Type: t,
		Init: func() *State { return &State{IsNull: true} },
		Update: func(s *State, in *vector.Vector, multiplicity uint64) error {
			in.State.ForEach(func(_, pos int) {
				if in.IsNull(pos) {
					return
				}
				cand := in.GetScalar(pos)
				if s.IsNull || wins(cand, s.MinMaxVal) {
					s.IsNull = false
					s.MinMaxVal = cand
				}
			})
			return nil
		},
		Combine: func(s, other *State) {
			if other.IsNull {
				return
			}
			if s.IsNull || wins(other.MinMaxVal, s.MinMaxVal) {
				s.IsNull = false
				s.MinMaxVal = other.MinMaxVal
			}
		},
		Finalize: func(s *State) vector.Scalar {
			if s.IsNull {
				return vector.NullScalar(t)
			}
			return s.MinMaxVal
		},
	}, nil
}

// compareScalars orders two like-typed scalars; strings compare via
// stringCollator, NodeIDs lexicographically on (table_id, offset).
func compareScalars(a, b vector.Scalar) int {
	switch a.Type {
	case vector.Int64:
		return cmp64(a.Int64Val, b.Int64Val)
	case vector.Double:
		switch {
		case a.DoubleVal < b.DoubleVal:
			return -1
		case a.DoubleVal > b.DoubleVal:
			return 1
		default:
			return 0
		}
	case vector.String:
		return stringCollator.CompareString(a.StrVal, b.StrVal)
	case vector.NodeID, vector.RelID:
		av, bv := a.NodeVal, b.NodeVal
		if a.Type == vector.RelID {
			av, bv = vector.NodeIDVal(a.RelVal), vector.NodeIDVal(b.RelVal)
		}
		if av.TableID != bv.TableID {
			return cmp64(int64(av.TableID), int64(bv.TableID))
		}
		return cmp64(int64(av.Offset), int64(bv.Offset))
	default:
		return 0
	}
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
