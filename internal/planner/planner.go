package planner

import (
	"fmt"
	"math/bits"

	"graphflow/internal/catalog"
	"graphflow/internal/costmodel"
	"graphflow/internal/logging"
)

// primaryKeyProperty is the join-key property used for hash-join and
// intersect key-domain lookups; every node table in scope carries one.
const primaryKeyProperty = "id"

func clamp(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}

// leaf builds one level-1 PlanNode (plan_base_scans, §4.H step 1) and
// evaluates it.
func leaf(kind NodeKind, extra ExtraInfo, bound map[uint32]bool, boundRels map[uint32]bool, qg QueryGraph, est *costmodel.Estimator, cm costmodel.CostModel, order int) *JoinTree {
	node := &PlanNode{Kind: kind, Extra: extra}
	card, cost := evalTree(node, qg, est, cm)
	return &JoinTree{Root: node, Cardinality: card, Cost: cost, boundNodes: bound, boundRels: boundRels, order: order}
}

func nodeTable(qg QueryGraph, nodeVar uint32) (catalog.TableID, bool) {
	for _, n := range qg.Nodes {
		if n.ID == nodeVar {
			return n.Table, true
		}
	}
	return 0, false
}

func relByVar(qg QueryGraph, relVar uint32) (QueryRel, bool) {
	for _, r := range qg.Rels {
		if r.ID == relVar {
			return r, true
		}
	}
	return QueryRel{}, false
}

// buildLeaves constructs the level-1 leaf set: one NodeScan per query
// node not bound by a correlated subquery, one ExprScan for the
// correlated set (if any), and one RelScan per query rel.
func buildLeaves(qg QueryGraph, est *costmodel.Estimator, cm costmodel.CostModel) []*JoinTree {
	exprVars := map[uint32]bool{}
	for _, v := range qg.ExprScanVars {
		exprVars[v] = true
	}

	var leaves []*JoinTree
	order := 0

	if len(exprVars) > 0 {
		bound := map[uint32]bool{}
		var props []string
		for v := range exprVars {
			bound[v] = true
			props = append(props, qg.Properties[v]...)
		}
		extra := ExtraInfo{Properties: props}
		leaves = append(leaves, leaf(ExprScanKind, extra, bound, map[uint32]bool{}, qg, est, cm, order))
		order++
	}

	for _, n := range qg.Nodes {
		if exprVars[n.ID] {
			continue
		}
		bound := map[uint32]bool{n.ID: true}
		extra := ExtraInfo{NodeVar: n.ID, Properties: qg.Properties[n.ID]}
		leaves = append(leaves, leaf(NodeScanKind, extra, bound, map[uint32]bool{}, qg, est, cm, order))
		order++
	}

	for _, r := range qg.Rels {
		bound := map[uint32]bool{r.Src: true, r.Dst: true}
		boundRels := map[uint32]bool{r.ID: true}
		extra := ExtraInfo{RelVar: r.ID, Dir: r.Dir, Properties: qg.Properties[r.ID]}
		leaves = append(leaves, leaf(RelScanKind, extra, bound, boundRels, qg, est, cm, order))
		order++
	}

	for _, lf := range leaves {
		applyAttachablePredicates(lf, qg, est, cm)
	}
	return leaves
}

// attachablePredicates returns the indices of predicates whose variable
// is bound by t but not yet attached anywhere in t's tree.
func attachablePredicates(t *JoinTree, qg QueryGraph) []int {
	already := collectAttached(t.Root)
	var idx []int
	for i, p := range qg.Predicates {
		if already[i] {
			continue
		}
		if p.IsRel {
			if t.boundRels[p.Var] {
				idx = append(idx, i)
			}
		} else if t.boundNodes[p.Var] {
			idx = append(idx, i)
		}
	}
	return idx
}

func collectAttached(n *PlanNode) map[int]bool {
	out := map[int]bool{}
	if n == nil {
		return out
	}
	for _, i := range n.Extra.PredicateIdx {
		out[i] = true
	}
	for _, c := range n.Children {
		for i := range collectAttached(c) {
			out[i] = true
		}
	}
	return out
}

// applyAttachablePredicates folds newly-attachable predicates into t's
// root and recomputes its cardinality/cost.
func applyAttachablePredicates(t *JoinTree, qg QueryGraph, est *costmodel.Estimator, cm costmodel.CostModel) {
	idx := attachablePredicates(t, qg)
	if len(idx) == 0 {
		return
	}
	t.Root.Extra.PredicateIdx = append(t.Root.Extra.PredicateIdx, idx...)
	t.Cardinality, t.Cost = evalTree(t.Root, qg, est, cm)
}

// evalTree recomputes a PlanNode subtree's (cardinality, cost) bottom-up
// from its Kind, Extra, and Children — the single source of truth the DP
// solver and its helpers call after constructing or mutating a tree.
func evalTree(n *PlanNode, qg QueryGraph, est *costmodel.Estimator, cm costmodel.CostModel) (float64, float64) {
	var card, cost float64
	switch n.Kind {
	case NodeScanKind:
		table, _ := nodeTable(qg, n.Extra.NodeVar)
		card = est.EstimateScanNode(table)
		cost = card
	case ExprScanKind:
		card = 1
		cost = 1
	case RelScanKind:
		if len(n.Children) == 0 {
			rel, _ := relByVar(qg, n.Extra.RelVar)
			card = clamp(float64(est.Rels[rel.Table].NumRows))
			cost = card
		} else {
			probeCard, probeCost := evalTree(n.Children[0], qg, est, cm)
			rel, _ := relByVar(qg, n.Extra.RelVar)
			boundTable, _ := nodeTable(qg, n.Extra.JoinNode)
			card = clamp(probeCard * est.ExtensionRate(rel.Table, boundTable))
			cost = cm.ExtendCost(probeCost, probeCard)
		}
	case BinaryJoinKind:
		leftCard, leftCost := evalTree(n.Children[0], qg, est, cm)
		rightCard, rightCost := evalTree(n.Children[1], qg, est, cm)
		domain := joinKeyDomain(qg, est, n.Extra.JoinNode)
		if leftCard <= rightCard {
			card = est.EstimateHashJoin(rightCard, leftCard, []float64{domain})
			cost = cm.HashJoinCost(rightCost, leftCost, rightCard, leftCard)
		} else {
			card = est.EstimateHashJoin(leftCard, rightCard, []float64{domain})
			cost = cm.HashJoinCost(leftCost, rightCost, leftCard, rightCard)
		}
	case MultiwayJoinKind:
		probeCard, probeCost := evalTree(n.Children[0], qg, est, cm)
		var buildCards, buildCosts []float64
		for _, b := range n.Children[1:] {
			bc, bk := evalTree(b, qg, est, cm)
			buildCards = append(buildCards, bc)
			buildCosts = append(buildCosts, bk)
		}
		domain := joinKeyDomain(qg, est, n.Extra.JoinNode)
		card = est.EstimateIntersect(probeCard, buildCards, []float64{domain})
		cost = cm.IntersectCost(probeCost, probeCard, buildCosts)
	}
	for _, idx := range n.Extra.PredicateIdx {
		card = est.EstimateFilter(card, qg.Predicates[idx].Pred)
	}
	return card, cost
}

func joinKeyDomain(qg QueryGraph, est *costmodel.Estimator, joinNode uint32) float64 {
	table, ok := nodeTable(qg, joinNode)
	if !ok {
		return 1
	}
	return est.Domain(table, primaryKeyProperty)
}

// connectingNodes returns the query-node IDs shared by both subplans'
// bound-node sets.
func connectingNodes(a, b *JoinTree) []uint32 {
	var shared []uint32
	for n := range a.boundNodes {
		if b.boundNodes[n] {
			shared = append(shared, n)
		}
	}
	return shared
}

func union(a, b map[uint32]bool) map[uint32]bool {
	out := map[uint32]bool{}
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func isINLJAccumulator(t *JoinTree, joinNode uint32) bool {
	return t.Root.Kind == RelScanKind && len(t.Root.Children) == 1 && t.Root.Extra.JoinNode == joinNode
}

func isMultiwayAccumulator(t *JoinTree, joinNode uint32) bool {
	return t.Root.Kind == MultiwayJoinKind && t.Root.Extra.JoinNode == joinNode
}

func isBareRelLeaf(t *JoinTree, joinNode uint32) bool {
	return t.Root.Kind == RelScanKind && len(t.Root.Children) == 0 && t.boundNodes[joinNode]
}

// relOutVar returns the query-node variable a bare RelScan plan node
// binds other than joinNode — the "new" variable it extends to.
func relOutVar(qg QueryGraph, relVar, joinNode uint32) uint32 {
	rel, _ := relByVar(qg, relVar)
	if rel.Src == joinNode {
		return rel.Dst
	}
	return rel.Src
}

// tryGrowMultiway handles §4.H's worst-case-optimal-join rule: once an
// accumulator subplan already folds one rel incident to joinNode (an
// INLJ-folded RelScan) or several (a MultiwayJoin), and a further fresh
// rel leaf shares the same joinNode AND targets the same new variable as
// the existing build(s), fold it in as one more intersected build rather
// than nesting another binary join. Rels incident to joinNode but
// targeting a different new variable do not intersect meaningfully (the
// Intersect operator merges all builds into a single output column) and
// fall back to an ordinary join.
func tryGrowMultiway(acc, relLeaf *JoinTree, joinNode uint32, qg QueryGraph, est *costmodel.Estimator, cm costmodel.CostModel) *PlanNode {
	newVar := relOutVar(qg, relLeaf.Root.Extra.RelVar, joinNode)

	var probe *PlanNode
	var builds []*PlanNode
	switch {
	case isMultiwayAccumulator(acc, joinNode):
		existingVar := relOutVar(qg, acc.Root.Children[1].Extra.RelVar, joinNode)
		if existingVar != newVar {
			return nil
		}
		probe = acc.Root.Children[0]
		builds = append(append([]*PlanNode{}, acc.Root.Children[1:]...), relLeaf.Root)
	case isINLJAccumulator(acc, joinNode):
		existingVar := relOutVar(qg, acc.Root.Extra.RelVar, joinNode)
		if existingVar != newVar {
			return nil
		}
		probe = acc.Root.Children[0]
		bareFirst := &PlanNode{Kind: RelScanKind, Extra: acc.Root.Extra}
		bareFirst.Extra.PredicateIdx = append([]int{}, acc.Root.Extra.PredicateIdx...)
		builds = []*PlanNode{bareFirst, relLeaf.Root}
	default:
		return nil
	}
	return &PlanNode{Kind: MultiwayJoinKind, Extra: ExtraInfo{JoinNode: joinNode}, Children: append([]*PlanNode{probe}, builds...)}
}

// rootForPivot builds a candidate join root treating candidate as the
// pivot/join node connecting left and right, trying the
// worst-case-optimal/INLJ special cases before falling back to a hash
// join. Two rels between the same node pair share both endpoints (len
// conn==2); either endpoint can serve as the pivot, so the caller tries
// each candidate and keeps the cheapest.
func rootForPivot(left, right *JoinTree, candidate uint32, qg QueryGraph, est *costmodel.Estimator, cm costmodel.CostModel) *PlanNode {
	switch {
	case isBareRelLeaf(right, candidate) && (isINLJAccumulator(left, candidate) || isMultiwayAccumulator(left, candidate)):
		if root := tryGrowMultiway(left, right, candidate, qg, est, cm); root != nil {
			return root
		}
	case isBareRelLeaf(left, candidate) && (isINLJAccumulator(right, candidate) || isMultiwayAccumulator(right, candidate)):
		if root := tryGrowMultiway(right, left, candidate, qg, est, cm); root != nil {
			return root
		}
	}
	switch {
	case isBareRelLeaf(right, candidate) && !isBareRelLeaf(left, candidate):
		extra := right.Root.Extra
		extra.JoinNode = candidate
		return &PlanNode{Kind: RelScanKind, Extra: extra, Children: []*PlanNode{left.Root}}
	case isBareRelLeaf(left, candidate) && !isBareRelLeaf(right, candidate):
		extra := left.Root.Extra
		extra.JoinNode = candidate
		return &PlanNode{Kind: RelScanKind, Extra: extra, Children: []*PlanNode{right.Root}}
	}
	return nil
}

func tryJoin(left, right *JoinTree, qg QueryGraph, est *costmodel.Estimator, cm costmodel.CostModel, order int) *JoinTree {
	conn := connectingNodes(left, right)
	if len(conn) == 0 {
		// No shared node: a cross product, pruned out of scope (§4.H
		// step 2, "implicit-join pruning").
		return nil
	}

	var root *PlanNode
	for _, candidate := range conn {
		if r := rootForPivot(left, right, candidate, qg, est, cm); r != nil {
			root = r
			break
		}
	}
	if root == nil {
		if len(conn) != 1 {
			// More than one connection point and neither side offers a
			// pivot-based special case: a cyclic multi-key join, out of
			// scope (§4.H step 2, "implicit-join pruning").
			return nil
		}
		root = &PlanNode{Kind: BinaryJoinKind, Extra: ExtraInfo{JoinNode: conn[0]}, Children: []*PlanNode{left.Root, right.Root}}
	}

	bound := union(left.boundNodes, right.boundNodes)
	boundRels := union(left.boundRels, right.boundRels)
	t := &JoinTree{Root: root, boundNodes: bound, boundRels: boundRels, order: order}
	applyAttachablePredicates(t, qg, est, cm)
	t.Cardinality, t.Cost = evalTree(t.Root, qg, est, cm)
	return t
}

// Plan runs the bottom-up DP join-order solver (§4.H) and returns the
// cheapest JoinTree spanning every node and rel in qg. Ties retain the
// first-inserted tree, which the DP's fixed submask iteration order
// guarantees is deterministic.
func Plan(qg QueryGraph, est *costmodel.Estimator, cm costmodel.CostModel) (*JoinTree, error) {
	leaves := buildLeaves(qg, est, cm)
	n := len(leaves)
	if n == 0 {
		return nil, fmt.Errorf("planner: empty query graph")
	}
	if n > 20 {
		return nil, fmt.Errorf("planner: query graph too large for exact DP (%d leaves)", n)
	}

	dp := make([]*JoinTree, 1<<n)
	for i, lf := range leaves {
		dp[1<<i] = lf
	}

	order := n
	for size := 2; size <= n; size++ {
		for mask := 1; mask < (1 << n); mask++ {
			if bits.OnesCount(uint(mask)) != size {
				continue
			}
			var best *JoinTree
			for sub := (mask - 1) & mask; sub > 0; sub = (sub - 1) & mask {
				comp := mask ^ sub
				if sub > comp {
					continue // (left,right) and (right,left) both examined via the symmetric sub
				}
				left, right := dp[sub], dp[comp]
				if left == nil || right == nil {
					continue
				}
				cand := tryJoin(left, right, qg, est, cm, order)
				if cand == nil {
					continue
				}
				order++
				if best == nil || cand.Cost < best.Cost {
					best = cand
				}
			}
			dp[mask] = best
		}
	}

	full := (1 << n) - 1
	result := dp[full]
	if result == nil {
		return nil, fmt.Errorf("planner: query graph is disconnected")
	}
	logging.PlannerLogger.Debug("join order solved",
		"leaves", n, "cardinality", result.Cardinality, "cost", result.Cost)
	return result, nil
}
