package recursive

import "graphflow/internal/vector"

// OutputTuple is one emitted (destination, length, multiplicity) row a
// strategy's CollectOutputs produces once its BFS has terminated.
type OutputTuple struct {
	Dst          vector.NodeIDVal
	Length       int
	Multiplicity uint64
}

// Strategy is the closed family of recursive-join join types (§4.F): each
// controls which frontier nodes get expanded, how a discovery merges into
// the shared visited state, when the BFS terminates, and what output rows
// a completed BFS produces.
type Strategy interface {
	ShouldExpand(s *BFSSharedState, node vector.NodeIDVal) bool
	MarkVisited(s *BFSSharedState, node, via vector.NodeIDVal, depth int)
	Terminate(s *BFSSharedState) bool
	CollectOutputs(s *BFSSharedState) []OutputTuple
}

func candidates(s *BFSSharedState) []vector.NodeIDVal {
	if s.Targets != nil {
		out := make([]vector.NodeIDVal, 0, len(s.Targets))
		for t, want := range s.Targets {
			if want {
				out = append(out, t)
			}
		}
		return out
	}
	out := make([]vector.NodeIDVal, 0, len(s.visited))
	for n := range s.visited {
		out = append(out, n)
	}
	return out
}

func allTargetsFound(s *BFSSharedState) bool {
	if len(s.Targets) == 0 {
		return false
	}
	for t, want := range s.Targets {
		if !want {
			continue
		}
		if _, ok := s.visited[t]; !ok {
			return false
		}
	}
	return true
}

// ShortestPathStrategy emits exactly one tuple per reachable target: the
// length of its first-arrival (shortest) path. BFS stops as soon as the
// frontier is exhausted, the depth bound is hit, or every target has
// already been found.
type ShortestPathStrategy struct{}

func (ShortestPathStrategy) ShouldExpand(*BFSSharedState, vector.NodeIDVal) bool { return true }

func (ShortestPathStrategy) MarkVisited(s *BFSSharedState, node, via vector.NodeIDVal, depth int) {
	if r, ok := s.visited[node]; ok {
		if r.minDepth() == depth {
			s.record(node, via, depth) // multi-edge: another path of the same shortest length
		}
		return
	}
	s.record(node, via, depth)
}

func (ShortestPathStrategy) Terminate(s *BFSSharedState) bool {
	return len(s.Current.Nodes) == 0 || s.Level >= s.Upper || allTargetsFound(s)
}

func (ShortestPathStrategy) CollectOutputs(s *BFSSharedState) []OutputTuple {
	var out []OutputTuple
	for _, dst := range candidates(s) {
		depth, ok := s.VisitedAt(dst)
		if !ok || depth < s.Lower || depth > s.Upper {
			continue
		}
		out = append(out, OutputTuple{Dst: dst, Length: depth, Multiplicity: 1})
	}
	return out
}

// VariableLengthStrategy emits multiplicity-many tuples for every length
// in [lower, upper] a destination is reachable at, not just the shortest:
// nodes are re-expanded at every depth up to upper since longer walks
// through an already-visited node are still valid output rows.
type VariableLengthStrategy struct{}

func (VariableLengthStrategy) ShouldExpand(*BFSSharedState, vector.NodeIDVal) bool { return true }

func (VariableLengthStrategy) MarkVisited(s *BFSSharedState, node, via vector.NodeIDVal, depth int) {
	if depth > s.Upper {
		return
	}
	s.record(node, via, depth)
}

func (VariableLengthStrategy) Terminate(s *BFSSharedState) bool {
	return len(s.Current.Nodes) == 0 || s.Level >= s.Upper
}

func (VariableLengthStrategy) CollectOutputs(s *BFSSharedState) []OutputTuple {
	var out []OutputTuple
	for _, dst := range candidates(s) {
		for _, depth := range s.depthsOf(dst) {
			if depth < s.Lower || depth > s.Upper {
				continue
			}
			out = append(out, OutputTuple{Dst: dst, Length: depth, Multiplicity: s.MultiplicityAt(dst, depth)})
		}
	}
	return out
}

// AllShortestPathStrategy emits every shortest-length path to a
// destination (multiplicity > 1 when several distinct minimal-length
// paths exist), stopping one extra level past the point every target's
// minimum distance was found so that all equal-length alternatives at
// that final level are captured.
type AllShortestPathStrategy struct{}

func (AllShortestPathStrategy) ShouldExpand(*BFSSharedState, vector.NodeIDVal) bool { return true }

func (AllShortestPathStrategy) MarkVisited(s *BFSSharedState, node, via vector.NodeIDVal, depth int) {
	if r, ok := s.visited[node]; ok {
		if r.minDepth() == depth {
			s.record(node, via, depth)
		}
		return
	}
	s.record(node, via, depth)
}

func (AllShortestPathStrategy) Terminate(s *BFSSharedState) bool {
	if len(s.Current.Nodes) == 0 || s.Level >= s.Upper {
		return true
	}
	if !allTargetsFound(s) {
		return false
	}
	minDistance := -1
	for t, want := range s.Targets {
		if !want {
			continue
		}
		d, _ := s.VisitedAt(t)
		if minDistance == -1 || d < minDistance {
			minDistance = d
		}
	}
	return s.Level > minDistance
}

func (AllShortestPathStrategy) CollectOutputs(s *BFSSharedState) []OutputTuple {
	var out []OutputTuple
	for _, dst := range candidates(s) {
		depth, ok := s.VisitedAt(dst)
		if !ok || depth < s.Lower || depth > s.Upper {
			continue
		}
		out = append(out, OutputTuple{Dst: dst, Length: depth, Multiplicity: s.MultiplicityAt(dst, depth)})
	}
	return out
}
