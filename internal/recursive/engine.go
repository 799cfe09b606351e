package recursive

import (
	"graphflow/internal/catalog"
	"graphflow/internal/vector"
)

// Run drives one source node's BFS to completion against the chosen
// strategy and returns the finished state plus its output tuples. The
// per-level loop matches §4.F: extend the current frontier, swap in the
// next one, repeat until the strategy's Terminate condition fires.
func Run(source vector.NodeIDVal, storage catalog.Storage, relTable catalog.TableID, dir catalog.Direction, lower, upper int, targets map[vector.NodeIDVal]bool, trackPaths bool, strat Strategy) (*BFSSharedState, []OutputTuple, error) {
	state := NewBFSSharedState(source, lower, upper, targets, trackPaths)
	for !strat.Terminate(state) {
		if err := state.extend(storage, relTable, dir, strat); err != nil {
			return state, nil, err
		}
		state.Advance()
	}
	state.Complete = true
	return state, strat.CollectOutputs(state), nil
}
