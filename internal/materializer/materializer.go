// Package materializer lowers a planner.JoinTree into an executable
// internal/operator pipeline (§4.J): it walks the tree bottom-up,
// choosing ScanNodeID/Extend/HashJoin/Intersect shapes from each
// PlanNode's Kind and wiring them against a live Catalog/Storage pair.
package materializer

import (
	"sort"

	"graphflow/internal/catalog"
	"graphflow/internal/memmgr"
	"graphflow/internal/operator"
	"graphflow/internal/planner"
	"graphflow/internal/vector"
	"graphflow/internal/xerrors"
)

// schemaCol records which query-graph variable, if any, a lowered
// pipeline's i'th output column holds. Var is 0 for a projected property
// column, which never participates in a join/intersect key lookup.
type schemaCol struct {
	Var  uint32
	Type vector.LogicalType
}

// lowered pairs a constructed operator with the schema describing its
// output columns, threaded bottom-up so a parent node can find the
// column index backing a join node's variable.
type lowered struct {
	op     operator.Operator
	schema []schemaCol
}

func colIndex(schema []schemaCol, v uint32) (int, bool) {
	for i, c := range schema {
		if c.Var == v {
			return i, true
		}
	}
	return -1, false
}

func typesOf(schema []schemaCol) []vector.LogicalType {
	ts := make([]vector.LogicalType, len(schema))
	for i, c := range schema {
		ts[i] = c.Type
	}
	return ts
}

// Materializer lowers JoinTrees against one Catalog/Storage pair.
//
// Predicates supplies the compiled boolean expression for each
// PredicateRef index a PlanNode carries in its PredicateIdx — compiling a
// costmodel.Predicate into an evaluable operator.Predicate is a binder's
// job (literal values, property comparisons), out of this package's
// scope; the driver assembling a bound query supplies the closures here,
// keyed by the same index the planner used to cost it.
//
// OuterTuple wires an ExprScan leaf to the enclosing correlated
// subquery's currently-flattened row; it is nil for top-level queries
// with no ExprScan leaf.
type Materializer struct {
	Catalog    catalog.Catalog
	Storage    catalog.Storage
	Capacity   int
	Predicates map[int]operator.Predicate
	OuterTuple func() *vector.DataChunk
}

func New(cat catalog.Catalog, storage catalog.Storage, capacity int, predicates map[int]operator.Predicate) *Materializer {
	if capacity <= 0 {
		capacity = vector.DefaultCapacity
	}
	return &Materializer{Catalog: cat, Storage: storage, Capacity: capacity, Predicates: predicates}
}

// Materialize lowers tree's root into a runnable operator pipeline.
func (m *Materializer) Materialize(qg planner.QueryGraph, tree *planner.JoinTree) (operator.Operator, error) {
	lw, err := m.lower(qg, tree.Root)
	if err != nil {
		return nil, err
	}
	return lw.op, nil
}

func (m *Materializer) lower(qg planner.QueryGraph, n *planner.PlanNode) (lowered, error) {
	switch n.Kind {
	case planner.NodeScanKind:
		return m.lowerNodeScan(qg, n)
	case planner.ExprScanKind:
		return m.lowerExprScan(qg, n)
	case planner.RelScanKind:
		return m.lowerRelScan(qg, n)
	case planner.BinaryJoinKind:
		return m.lowerBinaryJoin(qg, n)
	case planner.MultiwayJoinKind:
		return m.lowerMultiwayJoin(qg, n)
	default:
		return lowered{}, xerrors.NotImplementedErr("materializer.lower", "unhandled plan node kind %d", n.Kind)
	}
}

func nodeTableFor(qg planner.QueryGraph, v uint32) (catalog.TableID, bool) {
	for _, n := range qg.Nodes {
		if n.ID == v {
			return n.Table, true
		}
	}
	return 0, false
}

func relFor(qg planner.QueryGraph, v uint32) (planner.QueryRel, bool) {
	for _, r := range qg.Rels {
		if r.ID == v {
			return r, true
		}
	}
	return planner.QueryRel{}, false
}

func opposite(d catalog.Direction) catalog.Direction {
	if d == catalog.Fwd {
		return catalog.Bwd
	}
	return catalog.Fwd
}

// relWalkDirAndOutVar returns the physical adjacency-walk direction and
// the newly bound query-node variable for a rel extended from boundVar:
// walking from the rel's recorded Src keeps its stored Dir, walking from
// Dst flips it (§4.J: "direction inferred from parent's join-node
// binding").
func relWalkDirAndOutVar(rel planner.QueryRel, boundVar uint32) (catalog.Direction, uint32) {
	if boundVar == rel.Src {
		return rel.Dir, rel.Dst
	}
	return opposite(rel.Dir), rel.Src
}

// copyColumnExpr builds a Projection Expr that copies column idx through
// unchanged, used to reorder a schema without touching its values.
func copyColumnExpr(idx int) operator.Expr {
	return func(chunk *vector.DataChunk, out *vector.Vector) error {
		src := chunk.Vectors[idx]
		chunk.State.ForEach(func(_, pos int) {
			if src.IsNull(pos) {
				out.SetNull(pos, true)
				return
			}
			out.SetScalar(pos, src.GetScalar(pos))
		})
		return nil
	}
}

// moveKeyToFront reorders a lowered pipeline's columns so the one
// carrying key is at index 0, the convention operator.HashJoin and
// operator.Intersect both rely on (a single KeyIdx/first-NodeID-vector
// shared across probe and build sides).
func moveKeyToFront(op operator.Operator, schema []schemaCol, key uint32) (operator.Operator, []schemaCol, error) {
	idx, ok := colIndex(schema, key)
	if !ok {
		return nil, nil, xerrors.ExecutionInvariantErr("materializer.moveKeyToFront", "join node var %d not bound by this subplan", key)
	}
	if idx == 0 {
		return op, schema, nil
	}
	order := make([]int, 0, len(schema))
	order = append(order, idx)
	for i := range schema {
		if i != idx {
			order = append(order, i)
		}
	}
	exprs := make([]operator.Expr, len(order))
	newSchema := make([]schemaCol, len(order))
	for outPos, inIdx := range order {
		exprs[outPos] = copyColumnExpr(inIdx)
		newSchema[outPos] = schema[inIdx]
	}
	return operator.NewProjection(op, exprs, typesOf(newSchema)), newSchema, nil
}

func (m *Materializer) attachProperties(op operator.Operator, schema []schemaCol, table catalog.TableID, props []string) (operator.Operator, []schemaCol) {
	if len(props) == 0 {
		return op, schema
	}
	nodeSchema, found := m.Catalog.NodeTableByID(table)
	out := op
	newSchema := schema
	for _, name := range props {
		propType := vector.Unstructured
		unstructured := true
		if found {
			for _, p := range nodeSchema.Properties {
				if p.Name == name {
					propType = p.Type
					unstructured = false
					break
				}
			}
		}
		out = operator.NewScanProperty(out, m.Storage, table, name, propType, unstructured)
		newSchema = append(newSchema, schemaCol{Type: propType})
	}
	return out, newSchema
}

func (m *Materializer) attachFilters(op operator.Operator, idxs []int) (operator.Operator, error) {
	out := op
	for _, idx := range idxs {
		pred, ok := m.Predicates[idx]
		if !ok {
			return nil, xerrors.NotImplementedErr("materializer.attachFilters", "no compiled predicate supplied for predicate index %d", idx)
		}
		out = operator.NewFilter(out, pred)
	}
	return out, nil
}

// lowerNodeScan: NodeScan -> ScanNodeID -> (ScanProperty)* -> filters.
func (m *Materializer) lowerNodeScan(qg planner.QueryGraph, n *planner.PlanNode) (lowered, error) {
	table, ok := nodeTableFor(qg, n.Extra.NodeVar)
	if !ok {
		return lowered{}, xerrors.ExecutionInvariantErr("materializer.lowerNodeScan", "no table bound for node var %d", n.Extra.NodeVar)
	}
	maxOffset, err := m.Storage.MaxOffset(table)
	if err != nil {
		return lowered{}, err
	}
	morsel := operator.NewMorselDesc(maxOffset)
	var op operator.Operator = operator.NewScanNodeID(uint64(table), morsel, m.Capacity)
	schema := []schemaCol{{Var: n.Extra.NodeVar, Type: vector.NodeID}}

	op, schema = m.attachProperties(op, schema, table, n.Extra.Properties)
	op, err = m.attachFilters(op, n.Extra.PredicateIdx)
	if err != nil {
		return lowered{}, err
	}
	return lowered{op: op, schema: schema}, nil
}

// lowerExprScan: ExprScan -> project the bound correlated expressions ->
// filter -> distinct.
func (m *Materializer) lowerExprScan(qg planner.QueryGraph, n *planner.PlanNode) (lowered, error) {
	if m.OuterTuple == nil {
		return lowered{}, xerrors.ExecutionInvariantErr("materializer.lowerExprScan", "no outer tuple wired for correlated ExprScan")
	}
	var op operator.Operator = operator.NewSelectScan(m.OuterTuple)

	schema := make([]schemaCol, 0, len(qg.ExprScanVars))
	exprs := make([]operator.Expr, 0, len(qg.ExprScanVars))
	for i, v := range qg.ExprScanVars {
		exprs = append(exprs, copyColumnExpr(i))
		schema = append(schema, schemaCol{Var: v, Type: vector.NodeID})
	}
	if len(exprs) > 0 {
		op = operator.NewProjection(op, exprs, typesOf(schema))
	}

	op, err := m.attachFilters(op, n.Extra.PredicateIdx)
	if err != nil {
		return lowered{}, err
	}
	op = operator.NewDistinct(op, typesOf(schema), m.Capacity)
	return lowered{op: op, schema: schema}, nil
}

// lowerRelScan: a bare RelScan lowers to ScanNodeID(src) -> Extend ->
// filters; an INLJ-folded RelScan (one child) recurses into its probe
// child instead of scanning a fresh src table.
func (m *Materializer) lowerRelScan(qg planner.QueryGraph, n *planner.PlanNode) (lowered, error) {
	rel, ok := relFor(qg, n.Extra.RelVar)
	if !ok {
		return lowered{}, xerrors.ExecutionInvariantErr("materializer.lowerRelScan", "no rel bound for rel var %d", n.Extra.RelVar)
	}
	relSchema, ok := m.Catalog.RelTableByID(rel.Table)
	if !ok {
		return lowered{}, xerrors.ExecutionInvariantErr("materializer.lowerRelScan", "unknown rel table %d", rel.Table)
	}

	var probe lowered
	var boundVar uint32
	if len(n.Children) == 0 {
		srcTable, ok := nodeTableFor(qg, rel.Src)
		if !ok {
			srcTable, _ = m.Catalog.BoundAndNeighborTables(relSchema, rel.Dir)
		}
		maxOffset, err := m.Storage.MaxOffset(srcTable)
		if err != nil {
			return lowered{}, err
		}
		morsel := operator.NewMorselDesc(maxOffset)
		probe = lowered{
			op:     operator.NewScanNodeID(uint64(srcTable), morsel, m.Capacity),
			schema: []schemaCol{{Var: rel.Src, Type: vector.NodeID}},
		}
		boundVar = rel.Src
	} else {
		var err error
		probe, err = m.lower(qg, n.Children[0])
		if err != nil {
			return lowered{}, err
		}
		boundVar = n.Extra.JoinNode
	}

	dir, outVar := relWalkDirAndOutVar(rel, boundVar)
	var extended operator.Operator
	if relSchema.ManyToMany {
		extended = operator.NewAdjListExtend(probe.op, m.Storage, rel.Table, dir, m.Capacity)
	} else {
		extended = operator.NewAdjColumnExtend(probe.op, m.Storage, rel.Table, dir)
	}
	schema := append(append([]schemaCol{}, probe.schema...), schemaCol{Var: outVar, Type: vector.NodeID})

	out, err := m.attachFilters(extended, n.Extra.PredicateIdx)
	if err != nil {
		return lowered{}, err
	}
	return lowered{op: out, schema: schema}, nil
}

// lowerBinaryJoin: hash-join of recursively-lowered children keyed on
// Extra.JoinNode, followed by the node's own filters.
func (m *Materializer) lowerBinaryJoin(qg planner.QueryGraph, n *planner.PlanNode) (lowered, error) {
	left, err := m.lower(qg, n.Children[0])
	if err != nil {
		return lowered{}, err
	}
	right, err := m.lower(qg, n.Children[1])
	if err != nil {
		return lowered{}, err
	}

	probeOp, probeSchema, err := moveKeyToFront(left.op, left.schema, n.Extra.JoinNode)
	if err != nil {
		return lowered{}, err
	}
	buildOp, buildSchema, err := moveKeyToFront(right.op, right.schema, n.Extra.JoinNode)
	if err != nil {
		return lowered{}, err
	}

	joined := operator.NewHashJoin(probeOp, buildOp, 0)
	schema := append(append([]schemaCol{}, probeSchema...), buildSchema...)

	out, err := m.attachFilters(joined, n.Extra.PredicateIdx)
	if err != nil {
		return lowered{}, err
	}
	return lowered{op: out, schema: schema}, nil
}

// noopBuild satisfies operator.Operator for an Intersect build slot whose
// actual data comes from NeighborsOf rather than Next: Intersect only
// drives each build's Init/ReInitToRerun lifecycle, never its Next.
type noopBuild struct{}

func (noopBuild) InitResultSet(mm *memmgr.MemoryManager) error { return nil }
func (noopBuild) ReInitToRerun()                                {}
func (noopBuild) Next() (bool, error)                            { return false, nil }
func (noopBuild) ResultSet() *vector.ResultSet                   { return nil }
func (noopBuild) Clone() operator.Operator                       { return noopBuild{} }

func lessNodeID(a, b vector.NodeIDVal) bool {
	if a.TableID != b.TableID {
		return a.TableID < b.TableID
	}
	return a.Offset < b.Offset
}

// neighborsOf returns the sorted-neighbor-list function Intersect needs
// for one build side: AdjListIterator for many-to-many rels, a single
// AdjColumn lookup otherwise.
func (m *Materializer) neighborsOf(rel planner.QueryRel, relSchema catalog.RelTableSchema, dir catalog.Direction) func(vector.NodeIDVal) ([]vector.NodeIDVal, error) {
	return func(bound vector.NodeIDVal) ([]vector.NodeIDVal, error) {
		if relSchema.ManyToMany {
			it, err := m.Storage.AdjListIterator(rel.Table, dir, bound)
			if err != nil {
				return nil, err
			}
			var out []vector.NodeIDVal
			for {
				nb, ok := it.Next()
				if !ok {
					break
				}
				out = append(out, nb)
			}
			sort.Slice(out, func(i, j int) bool { return lessNodeID(out[i], out[j]) })
			return out, nil
		}

		in := vector.NewVectorCapacity(vector.NodeID, 1)
		in.State = vector.NewFlatState(0)
		in.SetNodeID(0, bound)
		out := vector.NewVectorCapacity(vector.NodeID, 1)
		out.State = vector.NewFlatState(0)
		if err := m.Storage.AdjColumn(rel.Table, dir, in, out); err != nil {
			return nil, err
		}
		if out.IsNull(0) {
			return nil, nil
		}
		return []vector.NodeIDVal{out.GetNodeID(0)}, nil
	}
}

// lowerMultiwayJoin: recursively lower one probe child and N-1 build
// children (each a bare rel scan), emit Intersect keyed on the single
// join node, then filter.
func (m *Materializer) lowerMultiwayJoin(qg planner.QueryGraph, n *planner.PlanNode) (lowered, error) {
	probe, err := m.lower(qg, n.Children[0])
	if err != nil {
		return lowered{}, err
	}
	probeOp, probeSchema, err := moveKeyToFront(probe.op, probe.schema, n.Extra.JoinNode)
	if err != nil {
		return lowered{}, err
	}

	builds := make([]operator.Operator, 0, len(n.Children)-1)
	neighborFns := make([]func(vector.NodeIDVal) ([]vector.NodeIDVal, error), 0, len(n.Children)-1)
	var outVar uint32
	for _, c := range n.Children[1:] {
		if c.Kind != planner.RelScanKind || len(c.Children) != 0 {
			return lowered{}, xerrors.ExecutionInvariantErr("materializer.lowerMultiwayJoin", "multiway build child must be a bare rel scan")
		}
		rel, ok := relFor(qg, c.Extra.RelVar)
		if !ok {
			return lowered{}, xerrors.ExecutionInvariantErr("materializer.lowerMultiwayJoin", "no rel bound for rel var %d", c.Extra.RelVar)
		}
		relSchema, ok := m.Catalog.RelTableByID(rel.Table)
		if !ok {
			return lowered{}, xerrors.ExecutionInvariantErr("materializer.lowerMultiwayJoin", "unknown rel table %d", rel.Table)
		}
		dir, ov := relWalkDirAndOutVar(rel, n.Extra.JoinNode)
		outVar = ov
		builds = append(builds, noopBuild{})
		neighborFns = append(neighborFns, m.neighborsOf(rel, relSchema, dir))
	}

	intersect := operator.NewIntersect(probeOp, builds, func(buildIdx int, bound vector.NodeIDVal) ([]vector.NodeIDVal, error) {
		return neighborFns[buildIdx](bound)
	})
	// operator.Intersect emits only the probe's bound NodeID column
	// (post-reorder, probeSchema[0]) alongside the new neighbor column —
	// any other columns the probe pipeline carried do not survive it.
	schema := []schemaCol{probeSchema[0], {Var: outVar, Type: vector.NodeID}}

	out, err := m.attachFilters(intersect, n.Extra.PredicateIdx)
	if err != nil {
		return lowered{}, err
	}
	return lowered{op: out, schema: schema}, nil
}
