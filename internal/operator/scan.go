package operator

import (
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// ScanNodeID emits sequential node IDs drawn from a shared MorselDesc.
// Each Next reserves up to VectorCapacity offsets; returns false once the
// cursor has reached max.
type ScanNodeID struct {
	Table    uint64
	Morsel   *MorselDesc
	Capacity int

	result *vector.ResultSet
	chunk  *vector.DataChunk
}

// NewScanNodeID builds a scan over [0, maxOffset) of the given table,
// sharing morsel across worker clones.
func NewScanNodeID(table uint64, morsel *MorselDesc, capacity int) *ScanNodeID {
	return &ScanNodeID{Table: table, Morsel: morsel, Capacity: capacity}
}

func (s *ScanNodeID) InitResultSet(mm *memmgr.MemoryManager) error {
	s.chunk = vector.NewDataChunk([]vector.LogicalType{vector.NodeID})
	s.result = vector.NewResultSet(s.chunk)
	return nil
}

func (s *ScanNodeID) ReInitToRerun() {
	s.Morsel.Reset()
}

func (s *ScanNodeID) Next() (bool, error) {
	start, end, ok := s.Morsel.Reserve(uint64(s.Capacity))
	if !ok || start == end {
		return false, nil
	}
	n := int(end - start)
	v := s.chunk.Vectors[0]
	for i := 0; i < n; i++ {
		v.SetNodeID(i, vector.NodeIDVal{TableID: s.Table, Offset: start + uint64(i)})
	}
	s.chunk.SetState(vector.NewUnflatState(n))
	return true, nil
}

func (s *ScanNodeID) ResultSet() *vector.ResultSet { return s.result }

func (s *ScanNodeID) Clone() Operator {
	return &ScanNodeID{Table: s.Table, Morsel: s.Morsel, Capacity: s.Capacity}
}
