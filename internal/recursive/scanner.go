package recursive

import "graphflow/internal/vector"

// Path is one fully reconstructed walk from a BFS source to a destination,
// source first.
type Path struct {
	Nodes []vector.NodeIDVal
}

// FrontierScanner walks a completed BFS's output tuples for the strategy
// it ran under, optionally reconstructing full paths via PathScanner when
// the state tracked backward edges.
type FrontierScanner struct {
	State    *BFSSharedState
	Strategy Strategy
}

// Scan returns the (destination, length, multiplicity) tuples the
// strategy produces from the finished BFS.
func (f *FrontierScanner) Scan() []OutputTuple {
	return f.Strategy.CollectOutputs(f.State)
}

// ScanWithPaths reconstructs every distinct path behind each output
// tuple; requires the state to have been run with trackPaths true.
func (f *FrontierScanner) ScanWithPaths() []Path {
	ps := &PathScanner{State: f.State}
	var out []Path
	for _, t := range f.Strategy.CollectOutputs(f.State) {
		out = append(out, ps.PathsTo(t.Dst, t.Length)...)
	}
	return out
}

// PathScanner reconstructs paths to a destination by walking the
// backward-edge lists recorded during BFS. The walk is expressed
// recursively; each recursive call corresponds to one (node, cursor)
// frame of the DFS stack described in §4.F.
type PathScanner struct {
	State *BFSSharedState
}

// PathsTo returns every distinct path of exactly the given length ending
// at dst. A self-loop source-as-target path is the length-0 case.
func (p *PathScanner) PathsTo(dst vector.NodeIDVal, length int) []Path {
	if length == 0 {
		if dst == p.State.Source {
			return []Path{{Nodes: []vector.NodeIDVal{dst}}}
		}
		return nil
	}

	var out []Path
	var walk func(node vector.NodeIDVal, remaining int, tail []vector.NodeIDVal)
	walk = func(node vector.NodeIDVal, remaining int, tail []vector.NodeIDVal) {
		full := append([]vector.NodeIDVal{node}, tail...)
		if remaining == 0 {
			if node == p.State.Source {
				out = append(out, Path{Nodes: append([]vector.NodeIDVal{}, full...)})
			}
			return
		}
		for _, pred := range p.State.BwdEdges(node) {
			walk(pred, remaining-1, full)
		}
	}
	walk(dst, length, nil)
	return out
}

// DstNodeWithMultiplicityScanner expands a destination's output tuple
// into `multiplicity` repeated rows, the shape VariableLength output
// without path tracking uses.
type DstNodeWithMultiplicityScanner struct{}

func (DstNodeWithMultiplicityScanner) Expand(tuples []OutputTuple) []vector.NodeIDVal {
	var out []vector.NodeIDVal
	for _, t := range tuples {
		for i := uint64(0); i < t.Multiplicity; i++ {
			out = append(out, t.Dst)
		}
	}
	return out
}
