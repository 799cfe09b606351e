// Package planner implements the cost-based join-order solver (§4.H): a
// bottom-up dynamic program over subgraphs of a QueryGraph that produces a
// JoinTree, scored by internal/costmodel.
package planner

import (
	"graphflow/internal/catalog"
	"graphflow/internal/costmodel"
)

// QueryNode is one bound node variable in the query graph.
type QueryNode struct {
	ID    uint32
	Table catalog.TableID
}

// QueryRel is one bound rel variable connecting two query-node variables.
type QueryRel struct {
	ID       uint32
	Table    catalog.TableID
	Src, Dst uint32 // query-node IDs this rel connects
	Dir      catalog.Direction
}

// PredicateRef pins a costmodel.Predicate to the query-node or query-rel
// variable it reads and the property it filters on.
type PredicateRef struct {
	Var      uint32
	IsRel    bool
	Property string
	Pred     costmodel.Predicate
}

// QueryGraph is the planner's input (§4.H): the bound node/rel variables,
// the predicates that filter them, and the properties later materializer
// stages project out.
type QueryGraph struct {
	Nodes      []QueryNode
	Rels       []QueryRel
	Predicates []PredicateRef
	// Properties maps a node/rel variable ID to the property names a
	// downstream operator needs projected out of its scan.
	Properties map[uint32][]string
	// ExprScanVars names query-node variables bound by an outer
	// correlated subquery; plan_base_scans emits these as a single
	// ExprScan leaf instead of a NodeScan (§4.H step 1).
	ExprScanVars []uint32
}
