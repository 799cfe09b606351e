package vector

// DefaultCapacity is the number of logical rows a single Vector holds,
// matching the engine's default morsel/vector size (EngineConfig.VectorCapacity).
const DefaultCapacity = 2048

// Vector is a single typed column batch: one Go slice per LogicalType, only
// the one matching Type is populated. Vectors never change Type after
// construction; a cast produces a new Vector.
type Vector struct {
	Type  LogicalType
	State *SelectionState

	nulls            []bool
	noNullsGuarantee bool

	bools        []bool
	int64s       []int64
	doubles      []float64
	strs         []string
	dates        []DateVal
	timestamps   []TimestampVal
	intervals    []IntervalVal
	nodeIDs      []NodeIDVal
	relIDs       []RelIDVal
	unstructured []Scalar
}

// NewVector allocates a Vector of the given type with DefaultCapacity slots,
// flat at position 0, with the no-nulls guarantee set (the common case for
// freshly scanned data).
func NewVector(t LogicalType) *Vector {
	return NewVectorCapacity(t, DefaultCapacity)
}

// NewVectorCapacity allocates a Vector with an explicit slot count.
func NewVectorCapacity(t LogicalType, capacity int) *Vector {
	v := &Vector{
		Type:             t,
		State:            NewUnflatState(capacity),
		nulls:            make([]bool, capacity),
		noNullsGuarantee: true,
	}
	switch t {
	case Bool:
		v.bools = make([]bool, capacity)
	case Int64, NodeID, RelID:
		v.int64s = make([]int64, capacity)
		v.nodeIDs = make([]NodeIDVal, capacity)
		v.relIDs = make([]RelIDVal, capacity)
	case Double:
		v.doubles = make([]float64, capacity)
	case String:
		v.strs = make([]string, capacity)
	case Date:
		v.dates = make([]DateVal, capacity)
	case Timestamp:
		v.timestamps = make([]TimestampVal, capacity)
	case Interval:
		v.intervals = make([]IntervalVal, capacity)
	case Unstructured:
		v.unstructured = make([]Scalar, capacity)
	}
	return v
}

// Capacity returns the number of physical slots backing the vector.
func (v *Vector) Capacity() int { return len(v.nulls) }

// Reserve grows the backing slices to at least the requested capacity,
// preserving existing contents.
func (v *Vector) Reserve(capacity int) {
	if capacity <= v.Capacity() {
		return
	}
	grow := func(old []bool) []bool {
		n := make([]bool, capacity)
		copy(n, old)
		return n
	}
	v.nulls = grow(v.nulls)
	switch v.Type {
	case Bool:
		n := make([]bool, capacity)
		copy(n, v.bools)
		v.bools = n
	case Int64:
		n := make([]int64, capacity)
		copy(n, v.int64s)
		v.int64s = n
	case Double:
		n := make([]float64, capacity)
		copy(n, v.doubles)
		v.doubles = n
	case String:
		n := make([]string, capacity)
		copy(n, v.strs)
		v.strs = n
	case Date:
		n := make([]DateVal, capacity)
		copy(n, v.dates)
		v.dates = n
	case Timestamp:
		n := make([]TimestampVal, capacity)
		copy(n, v.timestamps)
		v.timestamps = n
	case Interval:
		n := make([]IntervalVal, capacity)
		copy(n, v.intervals)
		v.intervals = n
	case NodeID:
		n := make([]NodeIDVal, capacity)
		copy(n, v.nodeIDs)
		v.nodeIDs = n
	case RelID:
		n := make([]RelIDVal, capacity)
		copy(n, v.relIDs)
		v.relIDs = n
	case Unstructured:
		n := make([]Scalar, capacity)
		copy(n, v.unstructured)
		v.unstructured = n
	}
}

// HasNoNullsGuarantee reports whether the caller has certified no position
// in this vector is null, letting kernels skip the null check fast path.
func (v *Vector) HasNoNullsGuarantee() bool { return v.noNullsGuarantee }

// SetNoNullsGuarantee sets or clears the fast-path flag.
func (v *Vector) SetNoNullsGuarantee(b bool) { v.noNullsGuarantee = b }

// IsNull reports whether the slot at pos is null.
func (v *Vector) IsNull(pos int) bool {
	if v.noNullsGuarantee {
		return false
	}
	return v.nulls[pos]
}

// SetNull marks the slot at pos null or not.
func (v *Vector) SetNull(pos int, isNull bool) {
	if isNull {
		v.noNullsGuarantee = false
	}
	v.nulls[pos] = isNull
}

func (v *Vector) GetBool(pos int) bool           { return v.bools[pos] }
func (v *Vector) SetBool(pos int, val bool)      { v.bools[pos] = val }
func (v *Vector) GetInt64(pos int) int64         { return v.int64s[pos] }
func (v *Vector) SetInt64(pos int, val int64)    { v.int64s[pos] = val }
func (v *Vector) GetDouble(pos int) float64      { return v.doubles[pos] }
func (v *Vector) SetDouble(pos int, val float64) { v.doubles[pos] = val }
func (v *Vector) GetString(pos int) string       { return v.strs[pos] }
func (v *Vector) SetString(pos int, val string)  { v.strs[pos] = val }
func (v *Vector) GetDate(pos int) DateVal         { return v.dates[pos] }
func (v *Vector) SetDate(pos int, val DateVal)    { v.dates[pos] = val }
func (v *Vector) GetTimestamp(pos int) TimestampVal      { return v.timestamps[pos] }
func (v *Vector) SetTimestamp(pos int, val TimestampVal) { v.timestamps[pos] = val }
func (v *Vector) GetInterval(pos int) IntervalVal        { return v.intervals[pos] }
func (v *Vector) SetInterval(pos int, val IntervalVal)   { v.intervals[pos] = val }
func (v *Vector) GetNodeID(pos int) NodeIDVal     { return v.nodeIDs[pos] }
func (v *Vector) SetNodeID(pos int, val NodeIDVal) { v.nodeIDs[pos] = val }
func (v *Vector) GetRelID(pos int) RelIDVal       { return v.relIDs[pos] }
func (v *Vector) SetRelID(pos int, val RelIDVal)  { v.relIDs[pos] = val }
func (v *Vector) GetUnstructured(pos int) Scalar      { return v.unstructured[pos] }
func (v *Vector) SetUnstructured(pos int, val Scalar) { v.unstructured[pos] = val }

// GetScalar reads the slot at pos into a type-tagged Scalar, regardless of
// the vector's LogicalType. Useful for printers and equality kernels that
// operate generically.
func (v *Vector) GetScalar(pos int) Scalar {
	if v.IsNull(pos) {
		return NullScalar(v.Type)
	}
	switch v.Type {
	case Bool:
		return BoolScalar(v.bools[pos])
	case Int64:
		return Int64Scalar(v.int64s[pos])
	case Double:
		return DoubleScalar(v.doubles[pos])
	case String:
		return StringScalar(v.strs[pos])
	case Date:
		return Scalar{Type: Date, DateVal: v.dates[pos]}
	case Timestamp:
		return Scalar{Type: Timestamp, TsVal: v.timestamps[pos]}
	case Interval:
		return Scalar{Type: Interval, IntervalVal: v.intervals[pos]}
	case NodeID:
		return NodeIDScalar(v.nodeIDs[pos])
	case RelID:
		return RelIDScalar(v.relIDs[pos])
	case Unstructured:
		return v.unstructured[pos]
	default:
		return NullScalar(v.Type)
	}
}

// SetScalar writes a Scalar into the slot at pos, converting from its tag
// to this vector's backing slice (Type must match, except for Unstructured
// vectors which accept any tag).
func (v *Vector) SetScalar(pos int, s Scalar) {
	if s.IsNull {
		v.SetNull(pos, true)
		return
	}
	if v.Type == Unstructured {
		v.unstructured[pos] = s
		return
	}
	switch v.Type {
	case Bool:
		v.bools[pos] = s.BoolVal
	case Int64:
		v.int64s[pos] = s.Int64Val
	case Double:
		v.doubles[pos] = s.DoubleVal
	case String:
		v.strs[pos] = s.StrVal
	case Date:
		v.dates[pos] = s.DateVal
	case Timestamp:
		v.timestamps[pos] = s.TsVal
	case Interval:
		v.intervals[pos] = s.IntervalVal
	case NodeID:
		v.nodeIDs[pos] = s.NodeVal
	case RelID:
		v.relIDs[pos] = s.RelVal
	}
}
