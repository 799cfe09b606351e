package operator

import (
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// SelectScan drives the inner side of a correlated subquery: it copies
// exactly one flat tuple from an outer pipeline's current ResultSet into
// this pipeline on the first call to Next, and reports end of stream on
// the second. ReInitToRerun restores the one-shot behavior so the
// materializer can replay the inner pipeline once per outer tuple.
type SelectScan struct {
	// OuterTuple returns the outer pipeline's currently-flattened chunk;
	// the materializer passes in its own OuterTuple field.
	OuterTuple func() *vector.DataChunk

	called bool
	result *vector.ResultSet
}

func NewSelectScan(outerTuple func() *vector.DataChunk) *SelectScan {
	return &SelectScan{OuterTuple: outerTuple}
}

func (s *SelectScan) InitResultSet(mm *memmgr.MemoryManager) error {
	s.called = false
	return nil
}

func (s *SelectScan) ReInitToRerun() { s.called = false }

func (s *SelectScan) Next() (bool, error) {
	if s.called {
		return false, nil
	}
	s.called = true
	chunk := s.OuterTuple()
	s.result = vector.NewResultSet(chunk)
	return true, nil
}

func (s *SelectScan) ResultSet() *vector.ResultSet { return s.result }

func (s *SelectScan) Clone() Operator {
	return &SelectScan{OuterTuple: s.OuterTuple}
}
