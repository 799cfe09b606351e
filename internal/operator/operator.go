// Package operator implements the vectorized physical operators (§4.C):
// a closed sum of push-at-data/pull-at-control operators, each exposing
// Init, ReInitToRerun, Next, and Clone, composed into pipelines by
// internal/materializer.
package operator

import (
	"sync/atomic"

	"graphflow/internal/catalog"
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// Operator is the common interface every physical operator variant
// implements. The materializer picks each operator's concrete type at
// construction time from the plan node's kind; each operator's Next is its
// own implementation and pulls from its children through this interface.
type Operator interface {
	// InitResultSet prepares the operator's owned ResultSet/vectors using
	// the given memory manager. Called once per worker before the first
	// Next.
	InitResultSet(mm *memmgr.MemoryManager) error

	// ReInitToRerun resets one-shot/consumed state so the operator can be
	// driven again from the top, used by correlated-subquery re-execution.
	ReInitToRerun()

	// Next pulls the next batch from this operator's children (if any)
	// and exposes it via ResultSet(). Returns false at end of stream.
	Next() (bool, error)

	// ResultSet returns the ResultSet most recently filled by Next.
	ResultSet() *vector.ResultSet

	// Clone returns a cheap structural copy for a new worker: shared
	// read-only catalog/storage references, fresh private vectors and
	// selection state.
	Clone() Operator
}

// MorselDesc is the shared atomic cursor a ScanNodeID pulls sequential
// node-ID ranges from. One MorselDesc is shared across all worker clones
// of a single ScanNodeID pipeline.
type MorselDesc struct {
	current uint64
	max     uint64
}

// NewMorselDesc creates a cursor over [0, max).
func NewMorselDesc(max uint64) *MorselDesc {
	return &MorselDesc{max: max}
}

// Reserve atomically carves up to n sequential offsets starting at the
// cursor's current value, returning [start, end) and whether any offsets
// were available.
func (m *MorselDesc) Reserve(n uint64) (start, end uint64, ok bool) {
	for {
		cur := atomic.LoadUint64(&m.current)
		if cur >= m.max {
			return 0, 0, false
		}
		want := cur + n
		if want > m.max {
			want = m.max
		}
		if atomic.CompareAndSwapUint64(&m.current, cur, want) {
			return cur, want, true
		}
	}
}

// Reset rewinds the cursor to 0, used by ReInitToRerun on a scan pipeline
// driving a correlated subquery.
func (m *MorselDesc) Reset() { atomic.StoreUint64(&m.current, 0) }

// direction re-exports catalog.Direction under the operator package's own
// name so operator call sites don't need to import catalog just to spell
// Fwd/Bwd.
type direction = catalog.Direction

const (
	fwd = catalog.Fwd
	bwd = catalog.Bwd
)
