package planner

import "graphflow/internal/catalog"

// NodeKind tags the physical shape a PlanNode lowers to at
// materialization time (§3.5, §4.J).
type NodeKind int

const (
	NodeScanKind NodeKind = iota
	RelScanKind
	ExprScanKind
	BinaryJoinKind
	MultiwayJoinKind
)

func (k NodeKind) String() string {
	switch k {
	case NodeScanKind:
		return "NodeScan"
	case RelScanKind:
		return "RelScan"
	case ExprScanKind:
		return "ExprScan"
	case BinaryJoinKind:
		return "BinaryJoin"
	case MultiwayJoinKind:
		return "MultiwayJoin"
	default:
		return "Unknown"
	}
}

// ExtraInfo carries the physical detail a PlanNode needs at
// materialization: which variable(s) it scans or joins on, the
// direction a rel is walked, the shared join-node for a BinaryJoin or
// MultiwayJoin, and the predicates/properties that attach at this
// level of the tree.
type ExtraInfo struct {
	NodeVar    uint32 // NodeScan/ExprScan leaf: the query-node variable
	RelVar     uint32 // RelScan leaf: the query-rel variable
	Dir        catalog.Direction
	JoinNode   uint32 // BinaryJoin/MultiwayJoin/INLJ-folded RelScan: shared query-node ID
	// PredicateIdx indexes QueryGraph.Predicates: the predicates that
	// first become fully bound at this tree level and so are applied
	// here rather than by a descendant.
	PredicateIdx []int
	Properties   []string
}

// PlanNode is one node of a JoinTree (§3.5). Leaves (NodeScan, RelScan,
// ExprScan) have no children; RelScan gains exactly one child when the
// solver folds an index-nested-loop join into it (§4.H); BinaryJoin has
// two children; MultiwayJoin has a probe child followed by one build
// child per intersected rel.
type PlanNode struct {
	Kind     NodeKind
	Extra    ExtraInfo
	Children []*PlanNode
}

// JoinTree wraps a root plan node with its estimated cardinality and
// cost (§3.5). The DP solver in planner.go additionally tracks which
// query-node and query-rel variables a subplan has bound, used purely
// as bookkeeping to test connectivity between candidate subplans; it is
// not part of the materializer-facing tree shape.
type JoinTree struct {
	Root        *PlanNode
	Cardinality float64
	Cost        float64

	boundNodes map[uint32]bool
	boundRels  map[uint32]bool
	order      int // insertion sequence, for the tie-break rule
}
