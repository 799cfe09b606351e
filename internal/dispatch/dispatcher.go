// Package dispatch implements the BFS morsel dispatcher (§4.G): the
// scheduling layer that hands recursive-join workers frontier-scan and
// path-write morsels across one or many concurrently active
// recursive.BFSSharedStates, tracking a global InProgress ->
// InProgressAllSrcScanned -> Complete state machine.
package dispatch

import (
	"sync"

	"graphflow/internal/catalog"
	"graphflow/internal/logging"
	"graphflow/internal/recursive"
	"graphflow/internal/vector"
)

// GlobalState is the dispatcher-wide state machine.
type GlobalState int

const (
	InProgress GlobalState = iota
	InProgressAllSrcScanned
	Complete
)

// Mode selects the scheduling discipline: 1T1S processes one source at a
// time per worker end-to-end; nTkS lets any worker pick a morsel from any
// of up to n_threads concurrently active BFSSharedStates.
type Mode int

const (
	OneThreadOneSource Mode = iota
	NThreadsKSources
)

// MorselKind tags what a GetBFSMorsel call handed back.
type MorselKind int

const (
	NoWorkToShare MorselKind = iota
	FrontierScanMorsel
	PathWriteMorsel
)

// BFSMorsel is a unit of work a worker claims from the dispatcher.
type BFSMorsel struct {
	Kind       MorselKind
	EntryID    int
	Nodes      []vector.NodeIDVal // FrontierScanMorsel: frontier nodes to extend
	Depth      int                // depth neighbors discovered from Nodes will be recorded at
	WriteStart int                // PathWriteMorsel: output tuple range [WriteStart, WriteEnd)
	WriteEnd   int
}

// Discovery is one (neighbor, predecessor) pair a worker found while
// locally expanding a FrontierScanMorsel's nodes, reported back via
// FinishBFSMorsel for the dispatcher to merge under the entry's lock.
type Discovery struct {
	Node vector.NodeIDVal
	Via  vector.NodeIDVal
}

type bfsEntry struct {
	mu sync.Mutex

	state    *recursive.BFSSharedState
	strategy recursive.Strategy
	storage  catalog.Storage
	relTable catalog.TableID
	dir      catalog.Direction

	frontierCursor int
	activeThreads  int

	writing      bool
	outputs      []recursive.OutputTuple
	writeCursor  int
	priorWriters map[int]bool
	complete     bool
}

// Source describes one BFS the dispatcher should run to completion.
type Source struct {
	Node       vector.NodeIDVal
	Storage    catalog.Storage
	RelTable   catalog.TableID
	Dir        catalog.Direction
	Lower      int
	Upper      int
	Targets    map[vector.NodeIDVal]bool
	TrackPaths bool
	Strategy   recursive.Strategy
}

// FTable supplies one source row at a time, matching the FactorizedTable
// scan shared state the recursive join's input side claims morsels from
// (§6 External Interfaces). The core never modifies it.
type FTable interface {
	NextRow() (Source, bool)
}

// Dispatcher coordinates concurrent BFSSharedStates for a recursive join.
// Lock ordering: the dispatcher mutex is acquired first; an entry's own
// mutex is never held while re-acquiring the dispatcher mutex.
type Dispatcher struct {
	mu       sync.Mutex
	state    GlobalState
	mode     Mode
	capacity int
	nThreads int

	ftable  FTable
	drained bool
	entries []*bfsEntry
}

func NewDispatcher(mode Mode, capacity, nThreads int, ftable FTable) *Dispatcher {
	return &Dispatcher{mode: mode, capacity: capacity, nThreads: nThreads, ftable: ftable}
}

func (d *Dispatcher) State() GlobalState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// fillFromFTable pulls sources off the FTable until the live entry count
// reaches the mode's concurrency limit, called with d.mu held.
func (d *Dispatcher) fillFromFTable() {
	if d.drained {
		return
	}
	limit := 1
	if d.mode == NThreadsKSources {
		limit = d.nThreads
	}
	for d.liveEntryCount() < limit {
		src, ok := d.ftable.NextRow()
		if !ok {
			d.drained = true
			if len(d.entries) == 0 || d.allEntriesCompleteLocked() {
				d.state = Complete
			} else {
				d.state = InProgressAllSrcScanned
			}
			logging.DispatcherLogger.Debug("source ftable drained", "entries", len(d.entries), "state", int(d.state))
			return
		}
		e := &bfsEntry{
			state:        recursive.NewBFSSharedState(src.Node, src.Lower, src.Upper, src.Targets, src.TrackPaths),
			strategy:     src.Strategy,
			storage:      src.Storage,
			relTable:     src.RelTable,
			dir:          src.Dir,
			priorWriters: make(map[int]bool),
		}
		d.entries = append(d.entries, e)
		d.state = InProgress
	}
}

func (d *Dispatcher) liveEntryCount() int {
	n := 0
	for _, e := range d.entries {
		if !e.complete {
			n++
		}
	}
	return n
}

// GetBFSMorsel claims the next unit of work for workerID: a frontier-scan
// morsel from an entry mid-level, or a path-write morsel from an entry
// that finished BFS and is now emitting outputs. Returns NoWorkToShare
// when nothing is currently claimable.
func (d *Dispatcher) GetBFSMorsel(workerID int) BFSMorsel {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fillFromFTable()

	for i, e := range d.entries {
		if m, ok := d.claimFrom(i, e, workerID); ok {
			return m
		}
	}
	return BFSMorsel{Kind: NoWorkToShare}
}

// claimFrom is called with d.mu held; it additionally takes e.mu, the
// only ordering this package ever uses (dispatcher, then entry).
func (d *Dispatcher) claimFrom(idx int, e *bfsEntry, workerID int) (BFSMorsel, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.complete {
		return BFSMorsel{}, false
	}
	if e.writing {
		if e.writeCursor >= len(e.outputs) {
			return BFSMorsel{}, false
		}
		start := e.writeCursor
		end := start + d.capacity
		if end > len(e.outputs) {
			end = len(e.outputs)
		}
		e.writeCursor = end
		e.priorWriters[workerID] = true
		return BFSMorsel{Kind: PathWriteMorsel, EntryID: idx, WriteStart: start, WriteEnd: end}, true
	}
	if e.frontierCursor < len(e.state.Current.Nodes) {
		start := e.frontierCursor
		end := start + d.capacity
		if end > len(e.state.Current.Nodes) {
			end = len(e.state.Current.Nodes)
		}
		e.frontierCursor = end
		e.activeThreads++
		nodes := append([]vector.NodeIDVal{}, e.state.Current.Nodes[start:end]...)
		return BFSMorsel{Kind: FrontierScanMorsel, EntryID: idx, Nodes: nodes, Depth: e.state.Level + 1}, true
	}
	return BFSMorsel{}, false
}

// entryAt fetches an entry pointer under the dispatcher lock; the slice
// only ever grows, so the pointer itself is stable once read.
func (d *Dispatcher) entryAt(id int) *bfsEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries[id]
}

// FinishBFSMorsel merges a worker's thread-local discoveries (gathered by
// walking storage for m.Nodes outside any lock) into the shared state,
// decrements the active-thread counter, and — if this was the level's
// last outstanding morsel — advances the level or switches the entry into
// its path-write phase.
func (d *Dispatcher) FinishBFSMorsel(m BFSMorsel, discoveries []Discovery) {
	e := d.entryAt(m.EntryID)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, disc := range discoveries {
		e.strategy.MarkVisited(e.state, disc.Node, disc.Via, m.Depth)
	}
	e.activeThreads--
	if e.activeThreads > 0 || e.frontierCursor < len(e.state.Current.Nodes) {
		return
	}

	if e.strategy.Terminate(e.state) {
		e.writing = true
		e.outputs = e.strategy.CollectOutputs(e.state)
		e.writeCursor = 0
		return
	}
	e.state.Advance()
	e.frontierCursor = 0
}

// WriteMorsel reports a worker's completion of a PathWriteMorsel. Per
// §4.G, the entry is only marked complete when this worker previously
// wrote for it AND the active-thread counter is zero — together these
// prevent a reused entry slot from being falsely reported complete (an
// ABA hazard on slot reuse).
func (d *Dispatcher) WriteMorsel(workerID int, m BFSMorsel) {
	e := d.entryAt(m.EntryID)

	e.mu.Lock()
	justCompleted := false
	if e.writeCursor >= len(e.outputs) && e.priorWriters[workerID] && e.activeThreads == 0 && !e.complete {
		e.complete = true
		justCompleted = true
	}
	e.mu.Unlock()

	if !justCompleted {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.drained && d.allEntriesCompleteLocked() {
		d.state = Complete
	}
}

// allEntriesCompleteLocked requires d.mu held.
func (d *Dispatcher) allEntriesCompleteLocked() bool {
	for _, e := range d.entries {
		e.mu.Lock()
		done := e.complete
		e.mu.Unlock()
		if !done {
			return false
		}
	}
	return true
}

// EntryDeps returns the storage handle and rel-table/direction a
// FrontierScanMorsel's nodes should be expanded against.
func (d *Dispatcher) EntryDeps(entryID int) (catalog.Storage, catalog.TableID, catalog.Direction) {
	e := d.entryAt(entryID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.storage, e.relTable, e.dir
}

// Outputs returns an entry's finished output tuples once it is complete.
func (d *Dispatcher) Outputs(entryID int) []recursive.OutputTuple {
	e := d.entryAt(entryID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputs
}
