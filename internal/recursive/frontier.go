// Package recursive implements the BFS recursive-extend engine (§4.F):
// the three join strategies (ShortestPath, VariableLength,
// AllShortestPath), their shared per-source frontier/visited-set state,
// and the scanners that turn a completed BFS into output tuples.
package recursive

import (
	"graphflow/internal/catalog"
	"graphflow/internal/vector"
)

// Frontier is the set of node IDs reached at one BFS level.
type Frontier struct {
	Nodes []vector.NodeIDVal
}

// visitRecord tracks, per discovered node, the multiplicity of walks
// landing on it at each depth it was reached at. ShortestPath/
// AllShortestPath only ever populate one depth (the first); VariableLength
// populates one entry per depth in [lower, upper] the node is reachable
// at, since distinct-length paths through the same node are all valid
// output rows.
type visitRecord struct {
	depths map[int]uint64
}

func (r *visitRecord) minDepth() int {
	min := -1
	for d := range r.depths {
		if min == -1 || d < min {
			min = d
		}
	}
	return min
}

// BFSSharedState holds the per-source mutable state a BFS strategy reads
// and writes across levels: the visited set, the current/next frontier,
// and (when path tracking is enabled) the backward-edge lists a
// PathScanner later walks to reconstruct full paths.
//
// Concurrent access from multiple dispatcher workers is serialized by the
// caller (internal/dispatch) holding its per-entry mutex; this type itself
// does no locking, matching the morsel-handoff contract in §4.G where the
// dispatcher already guards every mutation before a merge.
type BFSSharedState struct {
	Source     vector.NodeIDVal
	Lower      int
	Upper      int
	TrackPaths bool
	// Targets restricts emitted destinations; nil means "every reachable
	// node is a target" (a plain variable-length extend with no join).
	Targets map[vector.NodeIDVal]bool

	Level   int
	Current Frontier
	next    Frontier

	visited  map[vector.NodeIDVal]*visitRecord
	bwdEdges map[vector.NodeIDVal][]vector.NodeIDVal

	Complete bool
}

// NewBFSSharedState seeds the state with source marked visited at depth 0.
func NewBFSSharedState(source vector.NodeIDVal, lower, upper int, targets map[vector.NodeIDVal]bool, trackPaths bool) *BFSSharedState {
	s := &BFSSharedState{
		Source:     source,
		Lower:      lower,
		Upper:      upper,
		TrackPaths: trackPaths,
		Targets:    targets,
		visited:    make(map[vector.NodeIDVal]*visitRecord),
	}
	if trackPaths {
		s.bwdEdges = make(map[vector.NodeIDVal][]vector.NodeIDVal)
	}
	s.visited[source] = &visitRecord{depths: map[int]uint64{0: 1}}
	s.Current = Frontier{Nodes: []vector.NodeIDVal{source}}
	return s
}

// VisitedAt reports the minimum depth a node was reached at, if any.
func (s *BFSSharedState) VisitedAt(n vector.NodeIDVal) (int, bool) {
	r, ok := s.visited[n]
	if !ok {
		return 0, false
	}
	return r.minDepth(), true
}

// MultiplicityAt returns how many distinct walks of exactly depth d reach
// n, or 0 if none.
func (s *BFSSharedState) MultiplicityAt(n vector.NodeIDVal, d int) uint64 {
	r, ok := s.visited[n]
	if !ok {
		return 0
	}
	return r.depths[d]
}

// depthsOf returns the sorted set of depths n was reached at.
func (s *BFSSharedState) depthsOf(n vector.NodeIDVal) []int {
	r, ok := s.visited[n]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(r.depths))
	for d := range r.depths {
		out = append(out, d)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// record adds a (node, depth) arrival, bumping its multiplicity and
// backward-edge list. Returns true if this (node, depth) pair is new.
func (s *BFSSharedState) record(n, via vector.NodeIDVal, depth int) bool {
	r, seen := s.visited[n]
	if !seen {
		r = &visitRecord{depths: make(map[int]uint64)}
		s.visited[n] = r
	}
	_, depthSeen := r.depths[depth]
	add := uint64(1)
	if vr, ok := s.visited[via]; ok && vr.depths[depth-1] > 0 {
		add = vr.depths[depth-1]
	}
	r.depths[depth] += add
	if !depthSeen {
		s.next.Nodes = append(s.next.Nodes, n)
	}
	if s.TrackPaths {
		s.bwdEdges[n] = append(s.bwdEdges[n], via)
	}
	return !depthSeen
}

// BwdEdges returns the backward edges recorded into n (the predecessors
// that discovered it), for PathScanner's DFS walk.
func (s *BFSSharedState) BwdEdges(n vector.NodeIDVal) []vector.NodeIDVal {
	return s.bwdEdges[n]
}

// extend walks storage for every node in the current frontier, asking the
// strategy whether each should be expanded, and merges discoveries via
// strategy's markVisited contract.
func (s *BFSSharedState) extend(storage catalog.Storage, relTable catalog.TableID, dir catalog.Direction, strat Strategy) error {
	s.next = Frontier{}
	depth := s.Level + 1
	for _, n := range s.Current.Nodes {
		if !strat.ShouldExpand(s, n) {
			continue
		}
		it, err := storage.AdjListIterator(relTable, dir, n)
		if err != nil {
			return err
		}
		for {
			nb, ok := it.Next()
			if !ok {
				break
			}
			strat.MarkVisited(s, nb, n, depth)
		}
	}
	return nil
}

// Advance swaps next into Current and increments the level counter. The
// dispatcher calls this directly when it drives extension one morsel at
// a time instead of through Run's single-threaded loop.
func (s *BFSSharedState) Advance() {
	s.Current = s.next
	s.next = Frontier{}
	s.Level++
}
